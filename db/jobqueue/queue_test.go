package jobqueue

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/meghashyamc/searchsync/db/kvdb"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func newTestQueue(t *testing.T) *Queue {
	testLogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	db, err := kvdb.New(testLogger, filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err, "could not open kv database")
	t.Cleanup(func() { db.Close() })

	queue, err := New(testLogger, db)
	require.NoError(t, err, "could not create job queue")

	return queue
}

func TestEnqueueReplacesPendingJobForSameKey(t *testing.T) {
	assert := require.New(t)
	queue := newTestQueue(t)

	first, err := queue.Enqueue("Article", 1, ActionUpdate)
	assert.NoError(err)
	_, err = queue.Enqueue("Article", 2, ActionUpdate)
	assert.NoError(err)
	second, err := queue.Enqueue("Article", 1, ActionDestroy)
	assert.NoError(err)
	assert.Greater(second.ID, first.ID)

	ids, err := queue.PendingIDs()
	assert.NoError(err)
	assert.Len(ids, 2, "two keys should leave two jobs")
	assert.NotContains(ids, first.ID, "replaced job should be gone")

	job, err := queue.Get(second.ID)
	assert.NoError(err)
	assert.Equal(ActionDestroy, job.Action, "last writer wins on action")
	assert.Equal("Article", job.EntityType)
	assert.Equal(uint64(1), job.EntityID)

	_, err = queue.Get(first.ID)
	assert.ErrorIs(err, ErrNotFound)
}

func TestPendingIDsIsASnapshot(t *testing.T) {
	assert := require.New(t)
	queue := newTestQueue(t)

	_, err := queue.Enqueue("Article", 1, ActionUpdate)
	assert.NoError(err)

	snapshot, err := queue.PendingIDs()
	assert.NoError(err)

	_, err = queue.Enqueue("Article", 2, ActionUpdate)
	assert.NoError(err)

	assert.Len(snapshot, 1)
	n, err := queue.Len()
	assert.NoError(err)
	assert.Equal(2, n)
}

func TestDeleteKeepsNewerJobForSameKey(t *testing.T) {
	assert := require.New(t)
	queue := newTestQueue(t)

	old, err := queue.Enqueue("Article", 1, ActionUpdate)
	assert.NoError(err)
	newer, err := queue.Enqueue("Article", 1, ActionUpdate)
	assert.NoError(err)

	assert.NoError(queue.Delete(old.ID), "deleting an already replaced job is a no-op")
	_, err = queue.Get(newer.ID)
	assert.NoError(err)

	replacement, err := queue.Enqueue("Article", 1, ActionDestroy)
	assert.NoError(err)
	_, err = queue.Get(newer.ID)
	assert.ErrorIs(err, ErrNotFound, "key should still have pointed at the newer job")
	n, err := queue.Len()
	assert.NoError(err)
	assert.Equal(1, n)

	assert.NoError(queue.Delete(replacement.ID))
	n, err = queue.Len()
	assert.NoError(err)
	assert.Zero(n)
}

func TestClearAll(t *testing.T) {
	assert := require.New(t)
	queue := newTestQueue(t)

	var last *Job
	for id := uint64(1); id <= 3; id++ {
		job, err := queue.Enqueue("Article", id, ActionUpdate)
		assert.NoError(err)
		last = job
	}

	assert.NoError(queue.ClearAll())
	ids, err := queue.PendingIDs()
	assert.NoError(err)
	assert.Empty(ids)

	job, err := queue.Enqueue("Article", 1, ActionUpdate)
	assert.NoError(err)
	assert.Greater(job.ID, last.ID, "ids should not be reused after a clear")
}

func TestEnqueueTxRollsBackWithCaller(t *testing.T) {
	assert := require.New(t)
	queue := newTestQueue(t)

	err := queue.db.Update(func(tx *bolt.Tx) error {
		if _, err := queue.EnqueueTx(tx, "Article", 7, ActionUpdate); err != nil {
			return err
		}
		return os.ErrInvalid
	})
	assert.ErrorIs(err, os.ErrInvalid)

	n, err := queue.Len()
	assert.NoError(err)
	assert.Zero(n, "job should roll back with the caller's transaction")
}
