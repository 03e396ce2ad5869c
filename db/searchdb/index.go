package searchdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/meghashyamc/searchsync/logger"
	"github.com/meghashyamc/searchsync/registry"
)

// boltTimeout bounds how long opening an index waits on another process holding its root file.
const boltTimeout = "5s"

// Index is the handle on the index at one live path P. It owns the read-only handle used for queries and
// hands out writers for P (incremental updates) and P.new (rebuilds).
//
// The read handle is a snapshot: it does not see writes made after it was opened until Reopen is called.
// While a writer for P is open in this process the read handle is closed, because both would take the
// index's file lock, and queries are served through the writer. The read handle is reopened when that
// writer closes.
type Index struct {
	path    string
	mapping *mapping.IndexMappingImpl
	logger  logger.Logger

	mu           sync.RWMutex
	reader       bleve.Index
	liveWriter   *Writer
	reopenReader bool
}

func New(logger logger.Logger, reg *registry.Registry, indexPath string) (*Index, error) {
	absPath, err := filepath.Abs(indexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve index path %s: %w", indexPath, err)
	}

	return &Index{
		path:    absPath,
		mapping: createIndexMapping(reg),
		logger:  logger,
	}, nil
}

func (ix *Index) Path() string {
	return ix.path
}

// Open opens the read handle if it is not open yet.
func (ix *Index) Open() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.reader != nil || ix.liveWriter != nil {
		return nil
	}

	return ix.openReaderLocked()
}

// Reopen replaces the read handle with one that sees everything flushed so far.
func (ix *Index) Reopen() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.liveWriter != nil {
		ix.reopenReader = true
		return nil
	}

	if err := ix.closeReaderLocked(); err != nil {
		return err
	}

	return ix.openReaderLocked()
}

func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.reopenReader = false

	return ix.closeReaderLocked()
}

func (ix *Index) Search(ctx context.Context, request *bleve.SearchRequest) (*bleve.SearchResult, error) {
	var result *bleve.SearchResult
	err := ix.withReadHandle(func(handle bleve.Index) error {
		var err error
		result, err = handle.SearchInContext(ctx, request)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrNotInitialized) {
			ix.logger.Error("search failed", "err", err.Error())
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}

	return result, nil
}

// Terms calls fn for each term of field in dictionary order until fn returns false.
func (ix *Index) Terms(field string, fn func(term string, count uint64) bool) error {
	return ix.withReadHandle(func(handle bleve.Index) error {
		dict, err := handle.FieldDict(field)
		if err != nil {
			return fmt.Errorf("failed to read dictionary of %s: %w", field, err)
		}
		defer dict.Close()

		for {
			entry, err := dict.Next()
			if err != nil {
				return fmt.Errorf("failed to read dictionary of %s: %w", field, err)
			}
			if entry == nil || !fn(entry.Term, entry.Count) {
				return nil
			}
		}
	})
}

func (ix *Index) DocCount() (uint64, error) {
	var count uint64
	err := ix.withReadHandle(func(handle bleve.Index) error {
		var err error
		count, err = handle.DocCount()
		return err
	})

	return count, err
}

// Analyze runs text through the analyzer of field and returns the resulting terms.
func (ix *Index) Analyze(field string, text string) ([]string, error) {
	tokens, err := ix.mapping.AnalyzeText(ix.mapping.AnalyzerNameForPath(field), []byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to analyze text for %s: %w", field, err)
	}

	terms := make([]string, 0, len(tokens))
	for _, token := range tokens {
		terms = append(terms, string(token.Term))
	}

	return terms, nil
}

// HasOpenWriter reports whether any writer, live or rebuild, is open for this index in this process.
func (ix *Index) HasOpenWriter() bool {
	return writerOpen(ix.path)
}

// OpenWriter opens the live index for writing, creating it if it does not exist yet.
func (ix *Index) OpenWriter() (*Writer, error) {
	lock, err := acquireWriter(ix.path)
	if err != nil {
		ix.logger.Warn("could not open index writer", "path", ix.path, "err", err.Error())
		return nil, err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.reopenReader = ix.reopenReader || ix.reader != nil
	if err := ix.closeReaderLocked(); err != nil {
		releaseWriter(ix.path, lock)
		return nil, err
	}

	index, err := ix.openOrCreate(ix.path)
	if err != nil {
		releaseWriter(ix.path, lock)
		ix.reopenReaderLocked()
		return nil, err
	}

	writer := newWriter(ix, index, ix.path, lock, true)
	ix.liveWriter = writer

	return writer, nil
}

// OpenRebuildWriter opens a fresh index at P.new. A leftover P.new from an earlier attempt is deleted
// first, but only if it carries the sentinel marker.
func (ix *Index) OpenRebuildWriter() (*Writer, error) {
	lock, err := acquireWriter(ix.path)
	if err != nil {
		ix.logger.Warn("could not open rebuild writer", "path", ix.path, "err", err.Error())
		return nil, err
	}

	newPath := ix.path + ".new"
	if err := removeIndexDir(newPath); err != nil {
		ix.logger.Error("could not clear previous rebuild", "path", newPath, "err", err.Error())
		releaseWriter(ix.path, lock)
		return nil, err
	}

	index, err := ix.create(newPath)
	if err != nil {
		releaseWriter(ix.path, lock)
		return nil, err
	}

	return newWriter(ix, index, newPath, lock, false), nil
}

func (ix *Index) withReadHandle(fn func(handle bleve.Index) error) error {
	for attempt := 0; attempt < 2; attempt++ {
		ix.mu.RLock()
		handle := ix.reader
		if ix.liveWriter != nil {
			handle = ix.liveWriter.index
		}
		if handle != nil {
			err := fn(handle)
			ix.mu.RUnlock()
			return err
		}
		ix.mu.RUnlock()

		if err := ix.Open(); err != nil {
			return err
		}
	}

	return &NotInitializedError{Path: ix.path}
}

func (ix *Index) openReaderLocked() error {
	if !hasSentinel(ix.path) {
		return &NotInitializedError{Path: ix.path}
	}

	reader, err := bleve.OpenUsing(ix.path, map[string]interface{}{"read_only": true, "bolt_timeout": boltTimeout})
	if err != nil {
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			return &NotInitializedError{Path: ix.path}
		}
		ix.logger.Error("could not open index", "path", ix.path, "err", err.Error())
		return fmt.Errorf("could not open index %s: %w", ix.path, err)
	}

	ix.reader = reader

	return nil
}

func (ix *Index) closeReaderLocked() error {
	if ix.reader == nil {
		return nil
	}

	reader := ix.reader
	ix.reader = nil
	if err := reader.Close(); err != nil {
		ix.logger.Error("could not close search index", "path", ix.path, "err", err.Error())
		return err
	}

	return nil
}

// reopenReaderLocked restores the read handle after the live writer is gone, if one was open before.
func (ix *Index) reopenReaderLocked() {
	if !ix.reopenReader {
		return
	}
	ix.reopenReader = false

	if err := ix.openReaderLocked(); err != nil {
		ix.logger.Warn("could not reopen index reader", "path", ix.path, "err", err.Error())
	}
}

func (ix *Index) openOrCreate(indexPath string) (bleve.Index, error) {
	found, err := exists(indexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", indexPath, err)
	}
	if !found {
		return ix.create(indexPath)
	}
	if !hasSentinel(indexPath) {
		return nil, &RebuildPathConflictError{Path: indexPath}
	}

	index, err := bleve.OpenUsing(indexPath, map[string]interface{}{"bolt_timeout": boltTimeout})
	if err != nil {
		ix.logger.Error("could not open index", "path", indexPath, "err", err.Error())
		return nil, fmt.Errorf("could not open index %s: %w", indexPath, err)
	}

	return index, nil
}

func (ix *Index) create(indexPath string) (bleve.Index, error) {
	index, err := bleve.New(indexPath, ix.mapping)
	if err != nil {
		ix.logger.Error("could not create index", "path", indexPath, "err", err.Error())
		return nil, fmt.Errorf("could not create index %s: %w", indexPath, err)
	}

	if err := writeSentinel(indexPath); err != nil {
		index.Close()
		ix.logger.Error("could not write index sentinel", "path", indexPath, "err", err.Error())
		return nil, fmt.Errorf("could not write index sentinel in %s: %w", indexPath, err)
	}

	return index, nil
}
