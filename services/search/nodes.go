package search

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/meghashyamc/searchsync/db/searchdb"
	"github.com/meghashyamc/searchsync/registry"
)

const (
	fieldText = searchdb.FieldText

	opAnd = "AND"
	opOr  = "OR"
	opXor = "XOR"

	plainTextBoost = 2.0
)

// node is a parsed query. String renders it for Query.Description.
type node interface {
	String() string
	toQuery() query.Query
}

// textNode searches words or a phrase in free text or in the field of a term prefix.
type textNode struct {
	field    string
	name     string
	text     string
	phrase   bool
	wildcard bool
}

func newTextNode(field string, name string, text string, phrase bool) *textNode {
	n := &textNode{field: field, name: name, text: text, phrase: phrase}
	if !phrase && len(text) > 1 && strings.HasSuffix(text, "*") {
		n.wildcard = true
		n.text = strings.ToLower(strings.TrimSuffix(text, "*"))
	}

	return n
}

func (n *textNode) String() string {
	switch {
	case n.phrase:
		return fmt.Sprintf("%s:%q", n.name, n.text)
	case n.wildcard:
		return fmt.Sprintf("%s:%s*", n.name, n.text)
	}

	return fmt.Sprintf("%s:%s", n.name, n.text)
}

func (n *textNode) toQuery() query.Query {
	if n.wildcard {
		prefixQuery := bleve.NewPrefixQuery(n.text)
		prefixQuery.SetField(n.field)
		return prefixQuery
	}

	if n.phrase {
		phraseQuery := bleve.NewMatchPhraseQuery(n.text)
		phraseQuery.SetField(n.field)
		return phraseQuery
	}

	matchQuery := bleve.NewMatchQuery(n.text)
	matchQuery.SetField(n.field)
	matchQuery.SetOperator(query.MatchQueryOperatorAnd)
	if n.field != fieldText {
		return matchQuery
	}

	// exact words rank above words that only match once stemmed
	matchQuery.SetBoost(plainTextBoost)
	stemmedQuery := bleve.NewMatchQuery(n.text)
	stemmedQuery.SetField(searchdb.FieldStemmed)
	stemmedQuery.SetOperator(query.MatchQueryOperatorAnd)

	return bleve.NewDisjunctionQuery(matchQuery, stemmedQuery)
}

// exactNode matches an unanalyzed marker field: the entity type or the document key.
type exactNode struct {
	field string
	name  string
	value string
}

func (n *exactNode) String() string {
	return fmt.Sprintf("%s:%s", n.name, n.value)
}

func (n *exactNode) toQuery() query.Query {
	termQuery := bleve.NewTermQuery(n.value)
	termQuery.SetField(n.field)
	return termQuery
}

// rangeNode restricts a value slot to an inclusive range. Either bound may be empty.
type rangeNode struct {
	value registry.ValueMapping
	lo    string
	hi    string

	loTime, hiTime     time.Time
	hiTimeInclusive    bool
	loNumber, hiNumber *float64
}

func newRangeNode(value registry.ValueMapping, lo string, hi string) (*rangeNode, error) {
	n := &rangeNode{value: value, lo: strings.TrimSpace(lo), hi: strings.TrimSpace(hi)}

	var err error
	switch value.Type {
	case registry.ValueTypeDate:
		if n.lo != "" {
			if n.loTime, err = registry.ParseDate(n.lo); err != nil {
				return nil, &registry.ConfigurationError{Reason: fmt.Sprintf("invalid range for %s: %s", value.Name, err)}
			}
		}
		if n.hi != "" {
			if n.hiTime, err = registry.ParseDate(n.hi); err != nil {
				return nil, &registry.ConfigurationError{Reason: fmt.Sprintf("invalid range for %s: %s", value.Name, err)}
			}
			n.hiTimeInclusive = true
			// a bare day includes all of that day
			if !strings.Contains(n.hi, "T") {
				n.hiTime = n.hiTime.AddDate(0, 0, 1)
				n.hiTimeInclusive = false
			}
		}
	case registry.ValueTypeNumber:
		if n.loNumber, err = parseBound(n.lo); err != nil {
			return nil, &registry.ConfigurationError{Reason: fmt.Sprintf("invalid range for %s: %s", value.Name, err)}
		}
		if n.hiNumber, err = parseBound(n.hi); err != nil {
			return nil, &registry.ConfigurationError{Reason: fmt.Sprintf("invalid range for %s: %s", value.Name, err)}
		}
	}

	return n, nil
}

func parseBound(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}

	return &f, nil
}

func (n *rangeNode) String() string {
	return fmt.Sprintf("%s:%s..%s", n.value.Name, n.lo, n.hi)
}

func (n *rangeNode) toQuery() query.Query {
	inclusive := true
	field := searchdb.ValueField(n.value.Slot)

	switch n.value.Type {
	case registry.ValueTypeDate:
		hiInclusive := n.hiTimeInclusive
		dateQuery := bleve.NewDateRangeInclusiveQuery(n.loTime, n.hiTime, &inclusive, &hiInclusive)
		dateQuery.SetField(field)
		return dateQuery
	case registry.ValueTypeNumber:
		numericQuery := bleve.NewNumericRangeInclusiveQuery(n.loNumber, n.hiNumber, &inclusive, &inclusive)
		numericQuery.SetField(field)
		return numericQuery
	}

	termQuery := bleve.NewTermRangeInclusiveQuery(n.lo, n.hi, &inclusive, &inclusive)
	termQuery.SetField(field)
	return termQuery
}

// boolNode combines its children with OR, XOR or AND.
type boolNode struct {
	op       string
	children []node
}

func (n *boolNode) String() string {
	parts := make([]string, len(n.children))
	for i, child := range n.children {
		parts[i] = child.String()
	}

	return "(" + strings.Join(parts, " "+n.op+" ") + ")"
}

func (n *boolNode) toQuery() query.Query {
	queries := make([]query.Query, len(n.children))
	for i, child := range n.children {
		queries[i] = child.toQuery()
	}

	switch n.op {
	case opOr:
		return bleve.NewDisjunctionQuery(queries...)
	case opXor:
		result := queries[0]
		for _, q := range queries[1:] {
			result = xorQuery(result, q)
		}
		return result
	}

	return bleve.NewConjunctionQuery(queries...)
}

// xorQuery matches documents matching exactly one of a and b.
func xorQuery(a query.Query, b query.Query) query.Query {
	booleanQuery := bleve.NewBooleanQuery()
	booleanQuery.AddMust(bleve.NewDisjunctionQuery(a, b))
	booleanQuery.AddMustNot(bleve.NewConjunctionQuery(a, b))
	return booleanQuery
}

// andNode requires every must node and excludes every mustNot node.
type andNode struct {
	must    []node
	mustNot []node
}

func (n *andNode) simplify() node {
	switch {
	case len(n.must) == 0 && len(n.mustNot) == 0:
		return nil
	case len(n.must) == 1 && len(n.mustNot) == 0:
		return n.must[0]
	}

	return n
}

func (n *andNode) String() string {
	parts := make([]string, 0, len(n.must)+len(n.mustNot))
	for _, child := range n.must {
		parts = append(parts, child.String())
	}
	if len(parts) == 0 {
		parts = append(parts, "<alldocuments>")
	}
	s := strings.Join(parts, " AND ")
	for _, child := range n.mustNot {
		s += " AND_NOT " + child.String()
	}

	return "(" + s + ")"
}

func (n *andNode) toQuery() query.Query {
	booleanQuery := bleve.NewBooleanQuery()
	if len(n.must) == 0 {
		booleanQuery.AddMust(bleve.NewMatchAllQuery())
	}
	for _, child := range n.must {
		booleanQuery.AddMust(child.toQuery())
	}
	for _, child := range n.mustNot {
		booleanQuery.AddMustNot(child.toQuery())
	}

	return booleanQuery
}

// nothingNode is a query whose required words were all stop words.
type nothingNode struct{}

func (nothingNode) String() string {
	return "<nothing>"
}

func (nothingNode) toQuery() query.Query {
	return bleve.NewMatchNoneQuery()
}

// typeFilter restricts a query to the given entity types.
func typeFilter(entityTypes []string) node {
	if len(entityTypes) == 1 {
		return &exactNode{field: searchdb.FieldModel, name: registry.NameModel, value: entityTypes[0]}
	}

	children := make([]node, len(entityTypes))
	for i, entityType := range entityTypes {
		children[i] = &exactNode{field: searchdb.FieldModel, name: registry.NameModel, value: entityType}
	}

	return &boolNode{op: opOr, children: children}
}
