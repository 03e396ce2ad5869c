package search

import (
	"context"
	"fmt"
	"time"

	"github.com/meghashyamc/searchsync/db/recorddb"
	"github.com/meghashyamc/searchsync/logger"
	"github.com/meghashyamc/searchsync/metrics"
	"github.com/meghashyamc/searchsync/registry"
	"golang.org/x/sync/errgroup"
)

// RecordFetcher loads records by id. Missing ids are left out of the result.
type RecordFetcher interface {
	GetMany(entityType string, ids []uint64) ([]*recorddb.Record, error)
}

// Hydrator joins ranked results to their records with one batched lookup per entity type.
type Hydrator struct {
	logger   logger.Logger
	registry *registry.Registry
	records  RecordFetcher
}

func NewHydrator(log logger.Logger, reg *registry.Registry, records RecordFetcher) *Hydrator {
	return &Hydrator{logger: logger.WithComponent(log, "hydrator"), registry: reg, records: records}
}

type typeGroup struct {
	entityType string
	ids        []uint64
	found      map[uint64]*recorddb.Record
}

// Hydrate returns a copy of results, in the same order, with records attached.
func (h *Hydrator) Hydrate(ctx context.Context, results []Result) ([]Result, error) {
	start := time.Now()
	defer func() { metrics.HydrationDuration.Observe(time.Since(start).Seconds()) }()

	type documentRef struct {
		group *typeGroup
		id    uint64
	}

	var groups []*typeGroup
	groupsByType := map[string]*typeGroup{}
	refs := make([]documentRef, len(results))
	for i, result := range results {
		entityType, id, err := registry.ParseDocumentKey(result.DocumentKey)
		if err != nil {
			h.logger.Warn("skipping unreadable document key", "document_key", result.DocumentKey, "err", err.Error())
			continue
		}

		group, ok := groupsByType[entityType]
		if !ok {
			group = &typeGroup{entityType: entityType}
			groupsByType[entityType] = group
			groups = append(groups, group)
		}
		group.ids = append(group.ids, id)
		refs[i] = documentRef{group: group, id: id}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, group := range groups {
		g.Go(func() error {
			return h.fetchGroup(ctx, group)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	hydrated := make([]Result, len(results))
	for i, result := range results {
		hydrated[i] = result
		hydrated[i].Record = nil
		if refs[i].group == nil {
			continue
		}
		record, ok := refs[i].group.found[refs[i].id]
		if !ok {
			metrics.HydrationMissingTotal.Inc()
			continue
		}
		hydrated[i].Record = record
	}

	return hydrated, nil
}

func (h *Hydrator) fetchGroup(ctx context.Context, group *typeGroup) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	records, err := h.records.GetMany(group.entityType, group.ids)
	if err != nil {
		h.logger.Error("failed to fetch search results", "entity_type", group.entityType, "ids", len(group.ids), "err", err.Error())
		return fmt.Errorf("failed to fetch %s results: %w", group.entityType, err)
	}

	group.found = make(map[uint64]*recorddb.Record, len(records))
	for _, record := range records {
		group.found[record.ID] = record
	}

	declaration, err := h.registry.Entity(group.entityType)
	if err != nil {
		// indexed under a type that is no longer declared
		return nil
	}

	return h.eagerLoad(ctx, declaration, records)
}

// eagerLoad attaches the records each declared eager_load field points at, one lookup per field.
func (h *Hydrator) eagerLoad(ctx context.Context, declaration registry.Declaration, records []*recorddb.Record) error {
	for _, eager := range declaration.EagerLoad {
		if err := ctx.Err(); err != nil {
			return err
		}

		var ids []uint64
		seen := map[uint64]bool{}
		for _, record := range records {
			id, ok := recordID(record.Fields[eager.Field])
			if ok && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			continue
		}

		related, err := h.records.GetMany(eager.EntityType, ids)
		if err != nil {
			h.logger.Error("failed to eager load related records", "entity_type", declaration.EntityType, "related_type", eager.EntityType, "err", err.Error())
			return fmt.Errorf("failed to load %s of %s results: %w", eager.As, declaration.EntityType, err)
		}
		relatedByID := make(map[uint64]*recorddb.Record, len(related))
		for _, record := range related {
			relatedByID[record.ID] = record
		}

		for _, record := range records {
			id, ok := recordID(record.Fields[eager.Field])
			if !ok {
				continue
			}
			if record.Related == nil {
				record.Related = map[string]*recorddb.Record{}
			}
			record.Related[eager.As] = relatedByID[id]
		}
	}

	return nil
}

func recordID(value any) (uint64, bool) {
	switch v := value.(type) {
	case float64:
		return uint64(v), v > 0
	case int:
		return uint64(v), v > 0
	case uint64:
		return v, v > 0
	}

	return 0, false
}
