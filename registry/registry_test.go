package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func articleDeclaration() Declaration {
	return Declaration{
		EntityType: "Article",
		Terms:      []TermMapping{{Field: "author", Code: "A", Name: "author"}},
		Values: []ValueMapping{
			{Field: "published_at", Slot: 0, Name: "published", Type: ValueTypeDate},
			{Field: "title", Slot: 1, Name: "title", Type: ValueTypeString},
		},
		Texts: []string{"title", "body"},
		If:    "visible",
	}
}

var newRegistryTestCases = []struct {
	name         string
	declarations func() []Declaration
	expectErr    bool
}{
	{
		name:         "NoDeclarations",
		declarations: func() []Declaration { return nil },
		expectErr:    true,
	},
	{
		name:         "Valid",
		declarations: func() []Declaration { return []Declaration{articleDeclaration()} },
	},
	{
		name: "LowercaseCode",
		declarations: func() []Declaration {
			d := articleDeclaration()
			d.Terms[0].Code = "a"
			return []Declaration{d}
		},
		expectErr: true,
	},
	{
		name: "CodeTooLong",
		declarations: func() []Declaration {
			d := articleDeclaration()
			d.Terms[0].Code = "ABCD"
			return []Declaration{d}
		},
		expectErr: true,
	},
	{
		name: "ReservedModelCode",
		declarations: func() []Declaration {
			d := articleDeclaration()
			d.Terms[0].Code = "M"
			return []Declaration{d}
		},
		expectErr: true,
	},
	{
		name: "ReservedIDCode",
		declarations: func() []Declaration {
			d := articleDeclaration()
			d.Terms[0].Code = "I"
			return []Declaration{d}
		},
		expectErr: true,
	},
	{
		name: "ReservedStemCode",
		declarations: func() []Declaration {
			d := articleDeclaration()
			d.Terms[0].Code = "Z"
			return []Declaration{d}
		},
		expectErr: true,
	},
	{
		name: "ReservedPrefixName",
		declarations: func() []Declaration {
			d := articleDeclaration()
			d.Terms[0].Name = "modelid"
			return []Declaration{d}
		},
		expectErr: true,
	},
	{
		name: "SharedCodeSameName",
		declarations: func() []Declaration {
			other := Declaration{EntityType: "Book", Terms: []TermMapping{{Field: "writer", Code: "A", Name: "author"}}}
			return []Declaration{articleDeclaration(), other}
		},
	},
	{
		name: "SharedCodeDifferentName",
		declarations: func() []Declaration {
			other := Declaration{EntityType: "Book", Terms: []TermMapping{{Field: "writer", Code: "A", Name: "writer"}}}
			return []Declaration{articleDeclaration(), other}
		},
		expectErr: true,
	},
	{
		name: "SharedSlotDifferentName",
		declarations: func() []Declaration {
			other := Declaration{EntityType: "Book", Values: []ValueMapping{{Field: "isbn", Slot: 1, Name: "isbn", Type: ValueTypeString}}}
			return []Declaration{articleDeclaration(), other}
		},
		expectErr: true,
	},
	{
		name: "SharedSlotSameName",
		declarations: func() []Declaration {
			other := Declaration{EntityType: "Book", Values: []ValueMapping{{Field: "name", Slot: 1, Name: "title", Type: ValueTypeString}}}
			return []Declaration{articleDeclaration(), other}
		},
	},
	{
		name: "UnknownValueType",
		declarations: func() []Declaration {
			d := articleDeclaration()
			d.Values[0].Type = "boolean"
			return []Declaration{d}
		},
		expectErr: true,
	},
	{
		name: "EntityTypeWithDash",
		declarations: func() []Declaration {
			d := articleDeclaration()
			d.EntityType = "Blog-Post"
			return []Declaration{d}
		},
		expectErr: true,
	},
	{
		name: "DuplicateEntityType",
		declarations: func() []Declaration {
			return []Declaration{articleDeclaration(), articleDeclaration()}
		},
		expectErr: true,
	},
	{
		name: "RelationToUndeclaredTerm",
		declarations: func() []Declaration {
			d := articleDeclaration()
			d.Relations = []Relation{{Name: "comments", EntityType: "Comment", Term: "article"}}
			comment := Declaration{EntityType: "Comment", Texts: []string{"body"}}
			return []Declaration{d, comment}
		},
		expectErr: true,
	},
	{
		name: "EagerLoadUnknownType",
		declarations: func() []Declaration {
			d := articleDeclaration()
			d.EagerLoad = []EagerLoad{{Field: "author_id", EntityType: "User", As: "author"}}
			return []Declaration{d}
		},
		expectErr: true,
	},
}

func TestNew(t *testing.T) {
	for _, testCase := range newRegistryTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			registry, err := New(testCase.declarations()...)
			if testCase.expectErr {
				assert.Error(err)
				assert.True(errors.Is(err, ErrConfiguration), "error should be a configuration error")
				assert.Nil(registry)
				return
			}
			assert.NoError(err)
			assert.NotNil(registry)
		})
	}
}

func TestLookups(t *testing.T) {
	assert := require.New(t)

	registry, err := New(articleDeclaration())
	assert.NoError(err)

	value, err := registry.Slot("published")
	assert.NoError(err)
	assert.Equal(0, value.Slot)
	assert.Equal(ValueTypeDate, value.Type)

	_, err = registry.Slot("nonexistent")
	assert.ErrorIs(err, ErrConfiguration)

	code, ok := registry.TermCode("author")
	assert.True(ok)
	assert.Equal("A", code)

	_, err = registry.Entity("Comment")
	assert.ErrorIs(err, ErrConfiguration)

	assert.Equal([]string{"Article"}, registry.EntityTypes())
	assert.Equal([]string{"A"}, registry.TermCodes())
	assert.Len(registry.Values(), 2)
}

func TestLoadDeclarations(t *testing.T) {
	assert := require.New(t)

	path := filepath.Join(t.TempDir(), "entities.yaml")
	err := os.WriteFile(path, []byte(`
entities:
  - entity_type: Article
    terms:
      - {field: article_id, code: R, name: article}
    texts: [body]
  - entity_type: Post
    texts: [body]
    relations:
      - {name: replies, entity_type: Article, term: article}
`), 0644)
	assert.NoError(err)

	registry, err := LoadDeclarations(path)
	assert.NoError(err)

	relation, err := registry.Relation("Post", "replies")
	assert.NoError(err)
	assert.Equal("Article", relation.EntityType)
	assert.Equal("article", relation.Term)

	_, err = registry.Relation("Post", "unknown")
	assert.ErrorIs(err, ErrConfiguration)

	_, err = ParseDeclarations([]byte("entities:\n  - entity_type: Article\n    colour: red\n"))
	assert.ErrorIs(err, ErrConfiguration, "unknown keys should be rejected")
}
