package jobqueue

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/meghashyamc/searchsync/db/kvdb"
	"github.com/meghashyamc/searchsync/logger"
	"github.com/meghashyamc/searchsync/registry"
	bolt "go.etcd.io/bbolt"
)

const (
	jobsBucket    = "index_jobs"
	jobKeysBucket = "index_job_keys"
)

// Queue is the durable store of pending index jobs. jobsBucket holds jobs by id, jobKeysBucket maps a
// document key to the id of its single pending job.
type Queue struct {
	db     kvdb.DB
	logger logger.Logger
}

func New(logger logger.Logger, db kvdb.DB) (*Queue, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{jobsBucket, jobKeysBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("failed to initialize job queue", "err", err.Error())
		return nil, err
	}

	return &Queue{db: db, logger: logger}, nil
}

// Enqueue replaces any pending job for (entityType, entityID) with a new one carrying action.
func (q *Queue) Enqueue(entityType string, entityID uint64, action Action) (*Job, error) {
	var job *Job
	err := q.db.Update(func(tx *bolt.Tx) error {
		var err error
		job, err = q.EnqueueTx(tx, entityType, entityID, action)
		return err
	})
	if err != nil {
		return nil, err
	}

	return job, nil
}

// EnqueueTx is Enqueue inside a caller-owned transaction, so a record write and its job commit together.
func (q *Queue) EnqueueTx(tx *bolt.Tx, entityType string, entityID uint64, action Action) (*Job, error) {
	jobs, keys := tx.Bucket([]byte(jobsBucket)), tx.Bucket([]byte(jobKeysBucket))
	documentKey := []byte(registry.DocumentKey(entityType, entityID))

	if existing := keys.Get(documentKey); existing != nil {
		if err := jobs.Delete(existing); err != nil {
			q.logger.Error("failed to delete replaced job", "document_key", string(documentKey), "err", err.Error())
			return nil, fmt.Errorf("failed to delete replaced job for %s: %w", documentKey, err)
		}
	}

	id, err := jobs.NextSequence()
	if err != nil {
		q.logger.Error("failed to allocate job id", "err", err.Error())
		return nil, fmt.Errorf("failed to allocate job id: %w", err)
	}

	job := &Job{
		ID:         id,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		CreatedAt:  time.Now().UTC(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job for %s: %w", documentKey, err)
	}

	if err := jobs.Put(itob(id), data); err != nil {
		q.logger.Error("failed to store job", "job_id", id, "err", err.Error())
		return nil, fmt.Errorf("failed to store job %d: %w", id, err)
	}
	if err := keys.Put(documentKey, itob(id)); err != nil {
		q.logger.Error("failed to store job key", "job_id", id, "err", err.Error())
		return nil, fmt.Errorf("failed to store job key for %s: %w", documentKey, err)
	}

	return job, nil
}

// PendingIDs returns the ids of the jobs queued at the time of the call, oldest first.
func (q *Queue) PendingIDs() ([]uint64, error) {
	var ids []uint64
	err := q.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(jobsBucket)).ForEach(func(k, _ []byte) error {
			ids = append(ids, btoi(k))
			return nil
		})
	})
	if err != nil {
		q.logger.Error("failed to list pending jobs", "err", err.Error())
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}

	return ids, nil
}

func (q *Queue) Get(id uint64) (*Job, error) {
	var job Job
	err := q.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(jobsBucket)).Get(itob(id))
		if data == nil {
			return &NotFoundError{ID: id}
		}
		return json.Unmarshal(data, &job)
	})
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// Delete removes the given jobs. Ids that are no longer queued are ignored, and a key is only released
// if it still points at the deleted job.
func (q *Queue) Delete(ids ...uint64) error {
	return q.db.Update(func(tx *bolt.Tx) error {
		jobs, keys := tx.Bucket([]byte(jobsBucket)), tx.Bucket([]byte(jobKeysBucket))
		for _, id := range ids {
			data := jobs.Get(itob(id))
			if data == nil {
				continue
			}

			var job Job
			if err := json.Unmarshal(data, &job); err != nil {
				q.logger.Error("failed to decode job", "job_id", id, "err", err.Error())
				return fmt.Errorf("failed to decode job %d: %w", id, err)
			}

			if err := jobs.Delete(itob(id)); err != nil {
				return fmt.Errorf("failed to delete job %d: %w", id, err)
			}

			documentKey := []byte(registry.DocumentKey(job.EntityType, job.EntityID))
			if bytes.Equal(keys.Get(documentKey), itob(id)) {
				if err := keys.Delete(documentKey); err != nil {
					return fmt.Errorf("failed to delete job key for %s: %w", documentKey, err)
				}
			}
		}
		return nil
	})
}

// ClearAll drops every pending job. The id sequence carries on from where it was.
func (q *Queue) ClearAll() error {
	err := q.db.Update(func(tx *bolt.Tx) error {
		sequence := tx.Bucket([]byte(jobsBucket)).Sequence()
		for _, name := range []string{jobsBucket, jobKeysBucket} {
			if err := tx.DeleteBucket([]byte(name)); err != nil {
				return fmt.Errorf("failed to delete bucket %s: %w", name, err)
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return fmt.Errorf("failed to recreate bucket %s: %w", name, err)
			}
		}
		return tx.Bucket([]byte(jobsBucket)).SetSequence(sequence)
	})
	if err != nil {
		q.logger.Error("failed to clear job queue", "err", err.Error())
		return err
	}

	return nil
}

func (q *Queue) Len() (int, error) {
	var n int
	err := q.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(jobsBucket)).Stats().KeyN
		return nil
	})

	return n, err
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
