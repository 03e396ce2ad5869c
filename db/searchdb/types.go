package searchdb

import (
	"errors"
	"fmt"
	"strconv"
)

// Fields of every index document, besides one field per term prefix code.
const (
	FieldModel   = "M"
	FieldModelID = "I"
	FieldText    = "text"
	FieldStemmed = "Z"
)

// ValueField is the name of the field holding value slot slot.
func ValueField(slot int) string {
	return "v" + strconv.Itoa(slot)
}

// Document is one record rendered for the index. Fields maps field names to string, []string, float64 or
// time.Time values.
type Document struct {
	Key    string
	Fields map[string]any
}

var (
	ErrNotInitialized      = errors.New("search index not initialized")
	ErrConcurrentWriter    = errors.New("search index already has a writer")
	ErrRebuildPathConflict = errors.New("unexpected data at index path")
)

type NotInitializedError struct {
	Path string
}

func (e *NotInitializedError) Error() string {
	return fmt.Sprintf("search index at %s has not been built; run rebuild-index first", e.Path)
}

func (e *NotInitializedError) Is(target error) bool {
	return target == ErrNotInitialized
}

type ConcurrentWriterError struct {
	Path string
}

func (e *ConcurrentWriterError) Error() string {
	return fmt.Sprintf("a writer is already open for search index %s", e.Path)
}

func (e *ConcurrentWriterError) Is(target error) bool {
	return target == ErrConcurrentWriter
}

type RebuildPathConflictError struct {
	Path string
}

func (e *RebuildPathConflictError) Error() string {
	return fmt.Sprintf("found existing %s which is not a search index, please delete it", e.Path)
}

func (e *RebuildPathConflictError) Is(target error) bool {
	return target == ErrRebuildPathConflict
}
