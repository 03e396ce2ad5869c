package searchdb

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// At most one writer per live index path. openWriters covers this process; the flock on "<path>.lock"
// covers other processes.
var (
	writersMu   sync.Mutex
	openWriters = map[string]struct{}{}
)

func acquireWriter(livePath string) (*flock.Flock, error) {
	writersMu.Lock()
	defer writersMu.Unlock()

	if _, ok := openWriters[livePath]; ok {
		return nil, &ConcurrentWriterError{Path: livePath}
	}

	if err := os.MkdirAll(filepath.Dir(livePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	lock := flock.New(livePath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", lock.Path(), err)
	}
	if !locked {
		return nil, &ConcurrentWriterError{Path: livePath}
	}

	openWriters[livePath] = struct{}{}

	return lock, nil
}

func releaseWriter(livePath string, lock *flock.Flock) error {
	writersMu.Lock()
	defer writersMu.Unlock()

	delete(openWriters, livePath)

	return lock.Unlock()
}

func writerOpen(livePath string) bool {
	writersMu.Lock()
	defer writersMu.Unlock()

	_, ok := openWriters[livePath]
	return ok
}
