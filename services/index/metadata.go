package index

import (
	"github.com/meghashyamc/searchsync/db/jobqueue"
	"github.com/meghashyamc/searchsync/db/recorddb"
	"github.com/meghashyamc/searchsync/db/searchdb"
)

// RecordStore is the backing store the index is generated from.
type RecordStore interface {
	Get(entityType string, id uint64) (*recorddb.Record, bool, error)
	Page(entityType string, offset int, limit int) ([]*recorddb.Record, error)
}

type JobQueue interface {
	PendingIDs() ([]uint64, error)
	Get(id uint64) (*jobqueue.Job, error)
	Delete(ids ...uint64) error
	ClearAll() error
}

type SearchIndex interface {
	OpenWriter() (*searchdb.Writer, error)
	OpenRebuildWriter() (*searchdb.Writer, error)
}

// StatusStore keeps the progress of asynchronous update requests.
type StatusStore interface {
	Set(bucket string, key string, value string) error
	Get(bucket string, key string) (string, error)
	Delete(bucket string, key string) error
	GetAllKeys(bucket string) ([]string, error)
}
