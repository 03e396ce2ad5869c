package recorddb

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/meghashyamc/searchsync/db/jobqueue"
	"github.com/meghashyamc/searchsync/db/kvdb"
	"github.com/meghashyamc/searchsync/logger"
	bolt "go.etcd.io/bbolt"
)

const bucketPrefix = "records/"

var ErrUnknownEntityType = errors.New("unknown entity type")

type Record struct {
	ID         uint64             `json:"id"`
	EntityType string             `json:"entity_type"`
	Fields     map[string]any     `json:"fields"`
	Related    map[string]*Record `json:"related,omitempty"`
}

// Enqueuer is the job queue hook called in the same transaction as every record write.
type Enqueuer interface {
	EnqueueTx(tx *bolt.Tx, entityType string, entityID uint64, action jobqueue.Action) (*jobqueue.Job, error)
}

// Store keeps application records, one bucket per entity type, keyed by big-endian id so that iteration
// order is id order.
type Store struct {
	db     kvdb.DB
	logger logger.Logger
	queue  Enqueuer
}

func New(logger logger.Logger, db kvdb.DB, queue Enqueuer, entityTypes []string) (*Store, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, entityType := range entityTypes {
			if _, err := tx.CreateBucketIfNotExists(bucketName(entityType)); err != nil {
				return fmt.Errorf("failed to create bucket for %s: %w", entityType, err)
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("failed to initialize record store", "err", err.Error())
		return nil, err
	}

	return &Store{db: db, logger: logger, queue: queue}, nil
}

// Save writes the record and queues it for indexing.
func (s *Store) Save(record *Record) error {
	if record.ID == 0 {
		return fmt.Errorf("record id must be set")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal %s %d: %w", record.EntityType, record.ID, err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := s.bucket(tx, record.EntityType)
		if err != nil {
			return err
		}
		if err := bucket.Put(itob(record.ID), data); err != nil {
			s.logger.Error("failed to save record", "entity_type", record.EntityType, "entity_id", record.ID, "err", err.Error())
			return fmt.Errorf("failed to save %s %d: %w", record.EntityType, record.ID, err)
		}
		if s.queue == nil {
			return nil
		}
		_, err = s.queue.EnqueueTx(tx, record.EntityType, record.ID, jobqueue.ActionUpdate)
		return err
	})
}

// Destroy deletes the record and queues the removal of its index document.
func (s *Store) Destroy(entityType string, id uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := s.bucket(tx, entityType)
		if err != nil {
			return err
		}
		if err := bucket.Delete(itob(id)); err != nil {
			s.logger.Error("failed to delete record", "entity_type", entityType, "entity_id", id, "err", err.Error())
			return fmt.Errorf("failed to delete %s %d: %w", entityType, id, err)
		}
		if s.queue == nil {
			return nil
		}
		_, err = s.queue.EnqueueTx(tx, entityType, id, jobqueue.ActionDestroy)
		return err
	})
}

// Get reports found=false, without an error, when the record does not exist.
func (s *Store) Get(entityType string, id uint64) (*Record, bool, error) {
	var record *Record
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket, err := s.bucket(tx, entityType)
		if err != nil {
			return err
		}
		data := bucket.Get(itob(id))
		if data == nil {
			return nil
		}
		record, err = decode(data)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	return record, record != nil, nil
}

// GetMany fetches every record of entityType whose id is in ids, in one read transaction.
// Missing ids are skipped.
func (s *Store) GetMany(entityType string, ids []uint64) ([]*Record, error) {
	records := make([]*Record, 0, len(ids))
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket, err := s.bucket(tx, entityType)
		if err != nil {
			return err
		}
		for _, id := range ids {
			data := bucket.Get(itob(id))
			if data == nil {
				continue
			}
			record, err := decode(data)
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to fetch records", "entity_type", entityType, "err", err.Error())
		return nil, err
	}

	return records, nil
}

func (s *Store) Count(entityType string) (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket, err := s.bucket(tx, entityType)
		if err != nil {
			return err
		}
		n = bucket.Stats().KeyN
		return nil
	})

	return n, err
}

// Page returns up to limit records of entityType in id order, skipping the first offset.
func (s *Store) Page(entityType string, offset int, limit int) ([]*Record, error) {
	var records []*Record
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket, err := s.bucket(tx, entityType)
		if err != nil {
			return err
		}

		cursor := bucket.Cursor()
		skipped := 0
		for k, v := cursor.First(); k != nil && len(records) < limit; k, v = cursor.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			record, err := decode(v)
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to page records", "entity_type", entityType, "offset", offset, "err", err.Error())
		return nil, err
	}

	return records, nil
}

func (s *Store) bucket(tx *bolt.Tx, entityType string) (*bolt.Bucket, error) {
	bucket := tx.Bucket(bucketName(entityType))
	if bucket == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntityType, entityType)
	}

	return bucket, nil
}

func decode(data []byte) (*Record, error) {
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}

	return &record, nil
}

func bucketName(entityType string) []byte {
	return []byte(bucketPrefix + entityType)
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
