package search

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	blevesearch "github.com/blevesearch/bleve/v2/search"
	"github.com/meghashyamc/searchsync/db/recorddb"
	"github.com/meghashyamc/searchsync/db/searchdb"
)

const maxSpellingDistance = 2

var (
	highlightPunctuation = regexp.MustCompile(`[^\p{L}\p{N}_:./]+`)
	highlightExcluded    = regexp.MustCompile(`[:./]`)
	booleanOperator      = regexp.MustCompile(`^(AND|NOT|OR|XOR)$`)
)

// Result is one ranked match. Record is nil until the query is hydrated, and stays nil if the record has been
// deleted since it was indexed.
type Result struct {
	DocumentKey   string           `json:"document_key"`
	Percent       int              `json:"percent"`
	Weight        float64          `json:"weight"`
	CollapseCount int              `json:"collapse_count"`
	Record        *recorddb.Record `json:"record"`
}

// Query is an executed search. It is safe for concurrent use.
type Query struct {
	engine    *Engine
	raw       string
	root      node
	words     []plainWord
	estimated int
	hits      []Result
	runtime   time.Duration

	resultsMu sync.Mutex
	results   []Result
}

// MatchesEstimated is an estimate of the total number of matches, not only those on the page.
func (q *Query) MatchesEstimated() int {
	return q.estimated
}

// Description renders the query as it was resolved against the registry.
func (q *Query) Description() string {
	return "Query(" + q.root.String() + ")"
}

func (q *Query) Runtime() time.Duration {
	return q.runtime
}

// Hits returns the ranked page without records.
func (q *Query) Hits() []Result {
	hits := make([]Result, len(q.hits))
	copy(hits, q.hits)
	return hits
}

// Results returns the ranked page with records attached. Records are fetched on the first call only.
func (q *Query) Results(ctx context.Context) ([]Result, error) {
	q.resultsMu.Lock()
	defer q.resultsMu.Unlock()

	if q.results != nil {
		return q.results, nil
	}

	results, err := q.engine.hydrator.Hydrate(ctx, q.hits)
	if err != nil {
		return nil, err
	}
	q.results = results

	return results, nil
}

// WordsToHighlight returns the plain words of the query string, without operators or anything holding a
// ":", "." or "/".
func (q *Query) WordsToHighlight() []string {
	return wordsToHighlight(q.raw)
}

func wordsToHighlight(queryString string) []string {
	words := []string{}
	for _, word := range strings.Fields(highlightPunctuation.ReplaceAllString(queryString, " ")) {
		if highlightExcluded.MatchString(word) || booleanOperator.MatchString(word) {
			continue
		}
		words = append(words, word)
	}

	return words
}

// SpellingCorrection returns the query string with each unknown plain word replaced by the closest known
// word, or "" if there is nothing to correct.
func (q *Query) SpellingCorrection() (string, error) {
	type candidate struct {
		word      plainWord
		term      string
		best      string
		distance  int
		frequency uint64
	}

	var candidates []*candidate
	for _, word := range q.words {
		terms, err := q.engine.index.Analyze(searchdb.FieldText, word.text)
		if err != nil {
			return "", err
		}
		// stop words and words that split into several terms are left alone
		if len(terms) != 1 {
			continue
		}
		candidates = append(candidates, &candidate{word: word, term: terms[0], distance: maxSpellingDistance + 1})
	}
	if len(candidates) == 0 {
		return "", nil
	}

	err := q.engine.index.Terms(searchdb.FieldText, func(term string, count uint64) bool {
		for _, c := range candidates {
			if c.distance == 0 {
				continue
			}
			if term == c.term {
				c.best, c.distance = "", 0
				continue
			}
			distance := blevesearch.LevenshteinDistance(c.term, term)
			if distance < c.distance || (distance == c.distance && count > c.frequency) {
				c.best, c.distance, c.frequency = term, distance, count
			}
		}
		return true
	})
	if err != nil {
		return "", err
	}

	var corrected strings.Builder
	last := 0
	for _, c := range candidates {
		if c.distance == 0 || c.distance > maxSpellingDistance {
			continue
		}
		corrected.WriteString(q.raw[last:c.word.start])
		corrected.WriteString(c.best)
		last = c.word.end
	}
	if last == 0 {
		return "", nil
	}
	corrected.WriteString(q.raw[last:])

	return corrected.String(), nil
}
