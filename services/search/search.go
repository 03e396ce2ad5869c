package search

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/meghashyamc/searchsync/db/searchdb"
	"github.com/meghashyamc/searchsync/logger"
	"github.com/meghashyamc/searchsync/metrics"
	"github.com/meghashyamc/searchsync/registry"
)

// lookahead is how many matches past the requested page are retrieved so that collapsing and sorting behave
// the same near page boundaries.
const lookahead = 100

// SearchIndex is the read side of the search index.
type SearchIndex interface {
	Search(ctx context.Context, request *bleve.SearchRequest) (*bleve.SearchResult, error)
	Terms(field string, fn func(term string, count uint64) bool) error
	Analyze(field string, text string) ([]string, error)
	DocCount() (uint64, error)
}

// QuerySpec describes one query. A negative or zero Limit returns every match from Offset on.
type QuerySpec struct {
	EntityTypes    []string
	Query          string
	Offset         int
	Limit          int
	SortBy         string
	SortDescending bool
	CollapseBy     string
}

type Engine struct {
	logger   logger.Logger
	registry *registry.Registry
	index    SearchIndex
	hydrator *Hydrator
}

func New(log logger.Logger, reg *registry.Registry, index SearchIndex, records RecordFetcher) *Engine {
	return &Engine{
		logger:   logger.WithComponent(log, "search"),
		registry: reg,
		index:    index,
		hydrator: NewHydrator(log, reg, records),
	}
}

// Execute runs spec against the index. The returned Query holds the ranked page; records are fetched by
// Query.Results.
func (e *Engine) Execute(ctx context.Context, spec QuerySpec) (*Query, error) {
	start := time.Now()

	q, err := e.execute(ctx, spec)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.QueryDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	q.runtime = time.Since(start)
	e.logger.Debug("search query", "query", q.raw, "description", q.Description(), "matches", q.estimated, "runtime", q.runtime.String())

	return q, nil
}

// ExecuteRelated runs spec against the records related to owner through relation, the way a declared
// association is searched.
func (e *Engine) ExecuteRelated(ctx context.Context, ownerType string, relation string, ownerID uint64, spec QuerySpec) (*Query, error) {
	related, err := e.registry.Relation(ownerType, relation)
	if err != nil {
		return nil, err
	}

	spec.EntityTypes = []string{related.EntityType}
	spec.Query = fmt.Sprintf("%s:%d %s", related.Term, ownerID, spec.Query)

	return e.Execute(ctx, spec)
}

func (e *Engine) execute(ctx context.Context, spec QuerySpec) (*Query, error) {
	if err := e.validate(spec); err != nil {
		return nil, err
	}

	userQuery, words, err := parseQuery(e.registry, e.index, spec.Query)
	if err != nil {
		return nil, err
	}

	root := typeFilter(spec.EntityTypes)
	if userQuery != nil {
		root = &boolNode{op: opAnd, children: []node{root, userQuery}}
	}

	from, size, err := e.window(spec)
	if err != nil {
		return nil, err
	}

	request := bleve.NewSearchRequestOptions(root.toQuery(), size, from, false)
	request.SortByCustom(e.sortOrder(spec))
	collapseField := ""
	if spec.CollapseBy != "" {
		value, _ := e.registry.Slot(spec.CollapseBy)
		collapseField = searchdb.ValueField(value.Slot)
		request.Fields = []string{collapseField}
	}

	result, err := e.index.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	hits, suppressed := collapse(result.Hits, collapseField)
	hits = page(hits, spec.Offset-from, spec.Limit)

	q := &Query{
		engine:    e,
		raw:       spec.Query,
		root:      root,
		words:     words,
		estimated: max(int(result.Total)-suppressed, 0),
		hits:      make([]Result, len(hits)),
	}
	for i, hit := range hits {
		q.hits[i] = Result{
			DocumentKey:   hit.ID,
			Percent:       percent(hit.Score, result.MaxScore),
			Weight:        hit.Score,
			CollapseCount: hit.collapseCount,
		}
	}

	return q, nil
}

func (e *Engine) validate(spec QuerySpec) error {
	if len(spec.EntityTypes) == 0 {
		return &registry.ConfigurationError{Reason: "no entity types to search"}
	}
	for _, entityType := range spec.EntityTypes {
		if _, err := e.registry.Entity(entityType); err != nil {
			return err
		}
	}
	if spec.Offset < 0 {
		return &registry.ConfigurationError{Reason: fmt.Sprintf("offset must not be negative, got %d", spec.Offset)}
	}
	if spec.SortBy != "" {
		if _, err := e.registry.Slot(spec.SortBy); err != nil {
			return err
		}
	}
	if spec.CollapseBy != "" {
		if _, err := e.registry.Slot(spec.CollapseBy); err != nil {
			return err
		}
	}

	return nil
}

// window returns the offset and size of the ranked window to retrieve. Collapsing has to see every match
// before the page, so it always starts at the first match.
func (e *Engine) window(spec QuerySpec) (int, int, error) {
	from := spec.Offset
	if spec.CollapseBy != "" {
		from = 0
	}

	if spec.Limit > 0 {
		return from, spec.Offset - from + spec.Limit + lookahead, nil
	}

	count, err := e.index.DocCount()
	if err != nil {
		return 0, 0, err
	}

	return from, max(int(count), 1), nil
}

func (e *Engine) sortOrder(spec QuerySpec) search.SortOrder {
	if spec.SortBy == "" {
		return search.SortOrder{&search.SortScore{Desc: true}, &search.SortDocID{}}
	}

	value, _ := e.registry.Slot(spec.SortBy)
	sortField := &search.SortField{
		Field:   searchdb.ValueField(value.Slot),
		Desc:    spec.SortDescending,
		Type:    search.SortFieldAsString,
		Missing: search.SortFieldMissingLast,
	}
	switch value.Type {
	case registry.ValueTypeDate:
		sortField.Type = search.SortFieldAsDate
	case registry.ValueTypeNumber:
		sortField.Type = search.SortFieldAsNumber
	}

	return search.SortOrder{sortField, &search.SortScore{Desc: true}, &search.SortDocID{}}
}

type rankedHit struct {
	*search.DocumentMatch
	collapseCount int
}

// collapse keeps the first hit for each value of field and counts the hits it suppresses. Hits without a
// value are never collapsed.
func collapse(matches search.DocumentMatchCollection, field string) ([]*rankedHit, int) {
	hits := make([]*rankedHit, 0, len(matches))
	if field == "" {
		for _, match := range matches {
			hits = append(hits, &rankedHit{DocumentMatch: match})
		}
		return hits, 0
	}

	suppressed := 0
	kept := map[string]*rankedHit{}
	for _, match := range matches {
		value, ok := match.Fields[field]
		if !ok || value == nil {
			hits = append(hits, &rankedHit{DocumentMatch: match})
			continue
		}

		key := fmt.Sprint(value)
		if first, ok := kept[key]; ok {
			first.collapseCount++
			suppressed++
			continue
		}
		hit := &rankedHit{DocumentMatch: match}
		kept[key] = hit
		hits = append(hits, hit)
	}

	return hits, suppressed
}

func page(hits []*rankedHit, skip int, limit int) []*rankedHit {
	if skip >= len(hits) {
		return nil
	}
	hits = hits[skip:]
	if limit > 0 && limit < len(hits) {
		hits = hits[:limit]
	}

	return hits
}

func percent(score float64, maxScore float64) int {
	if maxScore <= 0 {
		return 0
	}

	return int(math.Round(score / maxScore * 100))
}
