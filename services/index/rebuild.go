package index

import (
	"context"
	"fmt"

	"github.com/meghashyamc/searchsync/metrics"
	"github.com/meghashyamc/searchsync/registry"
)

type RebuildReport struct {
	Indexed map[string]int `json:"indexed"`
	Skipped int            `json:"skipped"`
}

// RebuildIndex regenerates the index for entityTypes from the record store into a fresh directory and swaps it in
// for the live index. Pending jobs are dropped, since the rebuild supersedes them. The live index is untouched by
// any failure before the swap. Open readers keep serving the old index until they are reopened.
func (s *Service) RebuildIndex(ctx context.Context, entityTypes []string, verbose bool) (*RebuildReport, error) {
	if len(entityTypes) == 0 {
		return nil, &registry.ConfigurationError{Reason: "no entity types given to rebuild"}
	}

	declarations := make([]registry.Declaration, 0, len(entityTypes))
	for _, entityType := range entityTypes {
		declaration, err := s.registry.Entity(entityType)
		if err != nil {
			return nil, err
		}
		declarations = append(declarations, declaration)
	}

	report, err := s.rebuild(ctx, declarations, verbose)
	if err != nil {
		metrics.RebuildsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.RebuildsTotal.WithLabelValues("ok").Inc()

	return report, nil
}

func (s *Service) rebuild(ctx context.Context, declarations []registry.Declaration, verbose bool) (*RebuildReport, error) {
	writer, err := s.index.OpenRebuildWriter()
	if err != nil {
		s.logger.Error("could not open index for rebuild", "err", err.Error())
		return nil, err
	}
	activated := false
	defer func() {
		if !activated {
			writer.Close()
		}
	}()

	if err := s.queue.ClearAll(); err != nil {
		return nil, err
	}

	report := &RebuildReport{Indexed: map[string]int{}}
	for _, declaration := range declarations {
		entityType := declaration.EntityType
		s.logger.Info("rebuilding index", "entity_type", entityType, "path", writer.Path())
		report.Indexed[entityType] = 0

		for offset := 0; ; offset += s.rebuildBatchSize {
			if err := ctx.Err(); err != nil {
				s.logger.Warn("index rebuild cancelled", "entity_type", entityType, "err", err.Error())
				return nil, err
			}

			records, err := s.records.Page(entityType, offset, s.rebuildBatchSize)
			if err != nil {
				return nil, err
			}
			if verbose {
				s.logger.Info("rebuilding batch", "entity_type", entityType, "offset", offset, "records", len(records))
			}

			for _, record := range records {
				if !shouldIndex(declaration, record) {
					report.Skipped++
					continue
				}
				if verbose {
					s.logger.Info("indexing record", "entity_type", entityType, "entity_id", record.ID)
				}

				doc, err := buildDocument(declaration, record)
				if err != nil {
					s.logger.Error("could not build document", "entity_type", entityType, "entity_id", record.ID, "err", err.Error())
					return nil, fmt.Errorf("could not rebuild %s: %w", entityType, err)
				}
				if err := writer.Replace(doc); err != nil {
					return nil, err
				}
				report.Indexed[entityType]++
			}

			if len(records) < s.rebuildBatchSize {
				break
			}
		}
		metrics.RebuildDocumentsTotal.WithLabelValues(entityType).Add(float64(report.Indexed[entityType]))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	activated = true
	if err := writer.Activate(); err != nil {
		s.logger.Error("could not activate rebuilt index", "path", writer.Path(), "err", err.Error())
		return nil, fmt.Errorf("could not activate rebuilt index: %w", err)
	}

	s.logger.Info("index rebuilt", "indexed", report.Indexed, "skipped", report.Skipped)

	return report, nil
}
