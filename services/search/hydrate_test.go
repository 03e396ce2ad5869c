package search

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/meghashyamc/searchsync/db/recorddb"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu      sync.Mutex
	records map[string]map[uint64]*recorddb.Record
	calls   map[string]int
	err     error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		records: map[string]map[uint64]*recorddb.Record{
			"Article": {
				1: {ID: 1, EntityType: "Article", Fields: map[string]any{"body": "red car", "author_id": float64(10)}},
				3: {ID: 3, EntityType: "Article", Fields: map[string]any{"body": "red bike", "author_id": float64(11)}},
			},
			"Author": {
				10: {ID: 10, EntityType: "Author", Fields: map[string]any{"name": "alice"}},
			},
		},
		calls: map[string]int{},
	}
}

func (f *fakeFetcher) GetMany(entityType string, ids []uint64) ([]*recorddb.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[entityType]++
	if f.err != nil {
		return nil, f.err
	}

	var records []*recorddb.Record
	for _, id := range ids {
		if record, ok := f.records[entityType][id]; ok {
			copied := *record
			records = append(records, &copied)
		}
	}

	return records, nil
}

func newTestHydrator(t *testing.T, fetcher RecordFetcher) *Hydrator {
	testLogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewHydrator(testLogger, newTestRegistry(t), fetcher)
}

func TestHydratePreservesRankOrder(t *testing.T) {
	assert := require.New(t)
	fetcher := newFakeFetcher()
	hydrator := newTestHydrator(t, fetcher)

	hits := []Result{
		{DocumentKey: "Article-3", Percent: 100},
		{DocumentKey: "Author-10", Percent: 90},
		{DocumentKey: "Article-1", Percent: 80},
		{DocumentKey: "Article-2", Percent: 70},
		{DocumentKey: "garbage", Percent: 60},
	}

	results, err := hydrator.Hydrate(context.Background(), hits)
	assert.NoError(err)
	assert.Equal([]string{"Article-3", "Author-10", "Article-1", "Article-2", "garbage"}, documentKeys(results))
	assert.Equal([]int{100, 90, 80, 70, 60}, []int{results[0].Percent, results[1].Percent, results[2].Percent, results[3].Percent, results[4].Percent})

	assert.Equal("red bike", results[0].Record.Fields["body"])
	assert.Equal("alice", results[1].Record.Fields["name"])
	assert.Equal("red car", results[2].Record.Fields["body"])
	assert.Nil(results[3].Record, "deleted records hydrate to nil")
	assert.Nil(results[4].Record)

	assert.Equal("alice", results[2].Record.Related["author"].Fields["name"])
	assert.Contains(results[0].Record.Related, "author")
	assert.Nil(results[0].Record.Related["author"], "a missing related record is nil")

	// one lookup per entity type, plus one per eager load
	assert.Equal(map[string]int{"Article": 1, "Author": 2}, fetcher.calls)

	assert.Nil(hits[0].Record, "hydration should not modify its input")
}

func TestHydrateFetchError(t *testing.T) {
	assert := require.New(t)
	fetcher := newFakeFetcher()
	fetcher.err = errors.New("disk on fire")
	hydrator := newTestHydrator(t, fetcher)

	_, err := hydrator.Hydrate(context.Background(), []Result{{DocumentKey: "Article-1"}})
	assert.ErrorIs(err, fetcher.err)
}

func TestHydrateEmpty(t *testing.T) {
	assert := require.New(t)
	fetcher := newFakeFetcher()
	hydrator := newTestHydrator(t, fetcher)

	results, err := hydrator.Hydrate(context.Background(), nil)
	assert.NoError(err)
	assert.NotNil(results)
	assert.Empty(results)
	assert.Empty(fetcher.calls)
}

func TestResultsAreCached(t *testing.T) {
	assert := require.New(t)
	fetcher := newFakeFetcher()
	q := &Query{
		engine: &Engine{hydrator: newTestHydrator(t, fetcher)},
		hits:   []Result{{DocumentKey: "Author-10"}},
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := q.Results(context.Background())
			assert.NoError(err)
			assert.Equal("alice", results[0].Record.Fields["name"])
		}()
	}
	wg.Wait()

	assert.Equal(map[string]int{"Author": 1}, fetcher.calls)
}
