package searchdb

import (
	"errors"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/gofrs/flock"
)

const flushThreshold = 1000

var errWriterClosed = errors.New("index writer is closed")

// Writer buffers document changes for one index directory. Buffered changes become durable on Flush, and
// are discarded by Close. A Writer is not safe for concurrent use.
type Writer struct {
	owner  *Index
	index  bleve.Index
	batch  *bleve.Batch
	path   string
	lock   *flock.Flock
	live   bool
	closed bool
}

func newWriter(owner *Index, index bleve.Index, path string, lock *flock.Flock, live bool) *Writer {
	return &Writer{
		owner: owner,
		index: index,
		batch: index.NewBatch(),
		path:  path,
		lock:  lock,
		live:  live,
	}
}

// Path is the directory being written: the live path, or "<live path>.new" for a rebuild.
func (w *Writer) Path() string {
	return w.path
}

// Replace adds doc, replacing any document with the same key.
func (w *Writer) Replace(doc Document) error {
	if w.closed {
		return errWriterClosed
	}

	if err := w.batch.Index(doc.Key, doc.Fields); err != nil {
		w.owner.logger.Error("could not index document", "key", doc.Key, "err", err.Error())
		return fmt.Errorf("could not index document %s: %w", doc.Key, err)
	}

	return w.flushIfFull()
}

// Delete removes the document with key. Deleting a missing document is not an error.
func (w *Writer) Delete(key string) error {
	if w.closed {
		return errWriterClosed
	}

	w.batch.Delete(key)

	return w.flushIfFull()
}

func (w *Writer) Flush() error {
	if w.closed {
		return errWriterClosed
	}
	if w.batch.Size() == 0 {
		return nil
	}

	if err := w.index.Batch(w.batch); err != nil {
		w.owner.logger.Error("could not flush index changes", "path", w.path, "err", err.Error())
		return fmt.Errorf("could not flush index changes to %s: %w", w.path, err)
	}
	w.batch.Reset()

	return nil
}

func (w *Writer) flushIfFull() error {
	if w.batch.Size() < flushThreshold {
		return nil
	}

	return w.Flush()
}

// DocCount counts the flushed documents.
func (w *Writer) DocCount() (uint64, error) {
	if w.closed {
		return 0, errWriterClosed
	}

	return w.index.DocCount()
}

// Close releases the writer without flushing. Closing twice is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.closeIndex()
	if releaseErr := releaseWriter(w.owner.path, w.lock); releaseErr != nil && err == nil {
		err = fmt.Errorf("could not release index lock: %w", releaseErr)
	}

	return err
}

func (w *Writer) closeIndex() error {
	if w.live {
		w.owner.mu.Lock()
		defer w.owner.mu.Unlock()
		w.owner.liveWriter = nil
		defer w.owner.reopenReaderLocked()
	}

	if err := w.index.Close(); err != nil {
		w.owner.logger.Error("could not close index writer", "path", w.path, "err", err.Error())
		return fmt.Errorf("could not close index %s: %w", w.path, err)
	}

	return nil
}

// Activate flushes a rebuilt index and swaps it in at the live path, then releases the writer. The index
// previously at the live path is deleted. Readers keep their old snapshot until reopened.
func (w *Writer) Activate() error {
	if w.live {
		return errors.New("only a rebuild writer can be activated")
	}
	if w.closed {
		return errWriterClosed
	}

	if err := w.Flush(); err != nil {
		w.Close()
		return err
	}

	w.closed = true
	defer func() {
		if err := releaseWriter(w.owner.path, w.lock); err != nil {
			w.owner.logger.Warn("could not release index lock", "path", w.owner.path, "err", err.Error())
		}
	}()

	if err := w.closeIndex(); err != nil {
		return err
	}

	return swapIndexDirs(w.owner.path, w.path)
}

// swapIndexDirs moves newPath to livePath by way of "<livePath>.tmp".
func swapIndexDirs(livePath, newPath string) error {
	tmpPath := livePath + ".tmp"
	if err := removeIndexDir(tmpPath); err != nil {
		return err
	}

	hadLive, err := exists(livePath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", livePath, err)
	}
	if hadLive {
		if err := os.Rename(livePath, tmpPath); err != nil {
			return fmt.Errorf("failed to move %s aside: %w", livePath, err)
		}
	}

	if err := os.Rename(newPath, livePath); err != nil {
		if hadLive {
			os.Rename(tmpPath, livePath)
		}
		return fmt.Errorf("failed to move %s into place: %w", newPath, err)
	}

	return removeIndexDir(tmpPath)
}
