package search

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/meghashyamc/searchsync/db/searchdb"
	"github.com/meghashyamc/searchsync/registry"
	"github.com/stretchr/testify/require"
)

func newParseRegistry(t *testing.T) *registry.Registry {
	reg, err := registry.New(registry.Declaration{
		EntityType: "Article",
		Terms:      []registry.TermMapping{{Field: "section", Code: "S", Name: "section"}},
		Values: []registry.ValueMapping{
			{Field: "published_at", Slot: 0, Name: "published", Type: registry.ValueTypeDate},
			{Field: "word_count", Slot: 2, Name: "words", Type: registry.ValueTypeNumber},
		},
		Texts: []string{"body"},
	})
	require.NoError(t, err, "could not build registry")

	return reg
}

// newParseAnalyzer returns an index handle that is never built. Analysis only needs its mapping.
func newParseAnalyzer(t *testing.T, reg *registry.Registry) termAnalyzer {
	testLogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	index, err := searchdb.New(testLogger, reg, filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err, "could not create index handle")

	return index
}

var parseTestCases = []struct {
	name        string
	query       string
	description string
	words       []string
}{
	{name: "Single word", query: "red", description: "text:red", words: []string{"red"}},
	{name: "Implicit AND", query: "red car", description: "(text:red AND text:car)", words: []string{"red", "car"}},
	{name: "Explicit AND", query: "red AND car", description: "(text:red AND text:car)", words: []string{"red", "car"}},
	{name: "OR", query: "red OR car", description: "(text:red OR text:car)", words: []string{"red", "car"}},
	{name: "XOR", query: "red XOR car", description: "(text:red XOR text:car)", words: []string{"red", "car"}},
	{name: "NOT", query: "red NOT car", description: "(text:red AND_NOT text:car)", words: []string{"red", "car"}},
	{name: "Hate", query: "red -car", description: "(text:red AND_NOT text:car)", words: []string{"red", "car"}},
	{name: "Love", query: "+red car", description: "(text:red AND text:car)", words: []string{"red", "car"}},
	{name: "Only excluded", query: "-car", description: "(<alldocuments> AND_NOT text:car)", words: []string{"car"}},
	{name: "Lowercase operators are words", query: "red xor car", description: "(text:red AND text:xor AND text:car)", words: []string{"red", "xor", "car"}},
	{name: "Grouping", query: "(red OR blue) car", description: "((text:red OR text:blue) AND text:car)", words: []string{"red", "blue", "car"}},
	{name: "Phrase", query: `"red car"`, description: `text:"red car"`},
	{name: "Prefixed phrase", query: `section:"world news"`, description: `section:"world news"`},
	{name: "Term prefix", query: "section:news red", description: "(section:news AND text:red)", words: []string{"red"}},
	{name: "Wildcard", query: "car*", description: "text:car*"},
	{name: "Number range", query: "words:1..5", description: "words:1..5"},
	{name: "Open date range", query: "published:2024-01-01..", description: "published:2024-01-01.."},
	{name: "Model", query: "model:Article", description: "model:Article"},
	{name: "Unknown prefix", query: "foo:bar", description: "text:foo:bar", words: []string{"foo:bar"}},
	{name: "Unbalanced parenthesis", query: "(red car", description: "(text:red AND text:car)", words: []string{"red", "car"}},
	{name: "Stray parenthesis", query: "red) car", description: "(text:red AND text:car)", words: []string{"red", "car"}},
	{name: "Dangling operator", query: "red OR", description: "text:red", words: []string{"red"}},
	{name: "Stop word is dropped", query: "the red", description: "text:red", words: []string{"red"}},
	{name: "Stop words in a conjunction", query: "a red car", description: "(text:red AND text:car)", words: []string{"red", "car"}},
	{name: "Punctuation word is dropped", query: "red &", description: "text:red", words: []string{"red"}},
	{name: "Stop word in OR", query: "the OR red", description: "text:red", words: []string{"red"}},
	{name: "Excluded stop word", query: "red -the", description: "text:red", words: []string{"red"}},
	{name: "Stop word phrase", query: `"of the" red`, description: "text:red", words: []string{"red"}},
	{name: "Only stop words", query: "the a", description: "<nothing>"},
}

func TestParseQuery(t *testing.T) {
	reg := newParseRegistry(t)
	analyzer := newParseAnalyzer(t, reg)

	for _, tc := range parseTestCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := require.New(t)

			root, words, err := parseQuery(reg, analyzer, tc.query)
			assert.NoError(err)
			assert.NotNil(root)
			assert.Equal(tc.description, root.String())

			texts := make([]string, 0, len(words))
			for _, word := range words {
				texts = append(texts, word.text)
				assert.Equal(word.text, tc.query[word.start:word.end], "word positions should point into the query")
			}
			if tc.words == nil {
				tc.words = []string{}
			}
			assert.Equal(tc.words, texts)
		})
	}
}

func TestParseEmptyQuery(t *testing.T) {
	assert := require.New(t)
	reg := newParseRegistry(t)

	analyzer := newParseAnalyzer(t, reg)

	for _, query := range []string{"", "   ", "AND OR", "()", "-the", "NOT of"} {
		root, words, err := parseQuery(reg, analyzer, query)
		assert.NoError(err)
		assert.Nil(root, "query %q should have no terms", query)
		assert.Empty(words)
	}
}

func TestParseInvalidRange(t *testing.T) {
	assert := require.New(t)
	reg := newParseRegistry(t)

	analyzer := newParseAnalyzer(t, reg)

	_, _, err := parseQuery(reg, analyzer, "published:yesterday..today")
	assert.ErrorIs(err, registry.ErrConfiguration)

	_, _, err = parseQuery(reg, analyzer, "words:one..two")
	assert.ErrorIs(err, registry.ErrConfiguration)
}

func TestDateRangeIncludesWholeUpperDay(t *testing.T) {
	assert := require.New(t)
	reg := newParseRegistry(t)

	root, _, err := parseQuery(reg, newParseAnalyzer(t, reg), "published:2024-03-01..2024-03-02")
	assert.NoError(err)

	rangeQuery, ok := root.(*rangeNode)
	assert.True(ok)
	assert.Equal("2024-03-03T00:00:00Z", rangeQuery.hiTime.Format("2006-01-02T15:04:05Z07:00"))
	assert.False(rangeQuery.hiTimeInclusive)
}

var highlightTestCases = []struct {
	name  string
	query string
	words []string
}{
	{name: "Plain words", query: "red car", words: []string{"red", "car"}},
	{name: "Operators are dropped", query: "red AND car OR NOT bike XOR boat", words: []string{"red", "car", "bike", "boat"}},
	{name: "Prefixed terms are dropped", query: "section:news red", words: []string{"red"}},
	{name: "Punctuation is stripped", query: `"red car" -bike (boat)`, words: []string{"red", "car", "bike", "boat"}},
	{name: "Dotted and slashed words are dropped", query: "www.example.com a/b red", words: []string{"red"}},
	{name: "Non-ASCII words", query: "café -naïve Straße", words: []string{"café", "naïve", "Straße"}},
	{name: "Empty", query: "", words: []string{}},
}

func TestWordsToHighlight(t *testing.T) {
	for _, tc := range highlightTestCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := require.New(t)
			assert.Equal(tc.words, wordsToHighlight(tc.query))
		})
	}
}
