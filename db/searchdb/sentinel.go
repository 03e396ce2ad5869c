package searchdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// sentinelFile marks a directory as an index created by this package. Nothing is deleted or moved away
// unless it carries the marker.
const sentinelFile = "searchsync.sentinel"

type sentinel struct {
	CreatedAt time.Time `json:"created_at"`
	Engine    string    `json:"engine"`
}

func writeSentinel(indexPath string) error {
	data, err := json.Marshal(sentinel{CreatedAt: time.Now().UTC(), Engine: "bleve"})
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(indexPath, sentinelFile), data, 0644)
}

func hasSentinel(indexPath string) bool {
	info, err := os.Stat(filepath.Join(indexPath, sentinelFile))
	return err == nil && info.Mode().IsRegular()
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	return false, err
}

// removeIndexDir deletes path if it is an index directory, and refuses to touch anything else.
func removeIndexDir(path string) error {
	found, err := exists(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !found {
		return nil
	}
	if !hasSentinel(path) {
		return &RebuildPathConflictError{Path: path}
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}

	return nil
}
