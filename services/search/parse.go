package search

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/meghashyamc/searchsync/registry"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenWord
	tokenPhrase
	tokenLParen
	tokenRParen
	tokenAnd
	tokenOr
	tokenNot
	tokenXor
)

var (
	operators = map[string]tokenKind{"AND": tokenAnd, "OR": tokenOr, "NOT": tokenNot, "XOR": tokenXor}

	prefixPattern = regexp.MustCompile(`^\w+$`)
)

type token struct {
	kind   tokenKind
	text   string
	prefix string
	love   bool
	hate   bool
	// byte offsets of text within the query string
	start int
	end   int
}

// plainWord is an unprefixed word of the query string, as a candidate for spelling correction.
type plainWord struct {
	text  string
	start int
	end   int
}

func tokenize(input string) []token {
	var tokens []token
	i := 0
	for i < len(input) {
		r, size := utf8.DecodeRuneInString(input[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
			continue
		case r == '(':
			tokens = append(tokens, token{kind: tokenLParen, start: i, end: i + 1})
			i++
			continue
		case r == ')':
			tokens = append(tokens, token{kind: tokenRParen, start: i, end: i + 1})
			i++
			continue
		}

		tok := token{kind: tokenWord}
		if (r == '+' || r == '-') && i+1 < len(input) && !isBoundary(input[i+1:]) {
			tok.love, tok.hate = r == '+', r == '-'
			i++
		}

		if input[i] == '"' {
			tok.kind = tokenPhrase
			tok.text, tok.start, tok.end, i = readPhrase(input, i)
			tokens = append(tokens, tok)
			continue
		}

		start := i
		for i < len(input) {
			r, size := utf8.DecodeRuneInString(input[i:])
			if unicode.IsSpace(r) || r == '(' || r == ')' || r == '"' {
				break
			}
			i += size
		}
		word := input[start:i]

		// name:"a phrase"
		if i < len(input) && input[i] == '"' && strings.HasSuffix(word, ":") && prefixPattern.MatchString(word[:len(word)-1]) {
			tok.kind = tokenPhrase
			tok.prefix = word[:len(word)-1]
			tok.text, tok.start, tok.end, i = readPhrase(input, i)
			tokens = append(tokens, tok)
			continue
		}

		if kind, ok := operators[word]; ok && !tok.love && !tok.hate {
			tokens = append(tokens, token{kind: kind, start: start, end: i})
			continue
		}

		tok.text, tok.start, tok.end = word, start, i
		if prefix, rest, found := strings.Cut(word, ":"); found && rest != "" && prefixPattern.MatchString(prefix) {
			tok.prefix, tok.text, tok.start = prefix, rest, start+len(prefix)+1
		}
		if tok.text == "" {
			continue
		}
		tokens = append(tokens, tok)
	}

	return append(tokens, token{kind: tokenEOF, start: len(input), end: len(input)})
}

func isBoundary(rest string) bool {
	r, _ := utf8.DecodeRuneInString(rest)
	return unicode.IsSpace(r) || r == '(' || r == ')'
}

// readPhrase reads a quoted phrase starting at the opening quote at i. A missing closing quote ends the
// phrase at the end of input.
func readPhrase(input string, i int) (string, int, int, int) {
	start := i + 1
	end := strings.IndexByte(input[start:], '"')
	if end < 0 {
		return input[start:], start, len(input), len(input)
	}

	return input[start : start+end], start, start + end, start + end + 1
}

// parser turns a query string into a node tree. The syntax is lenient: a dangling operator or an unbalanced
// parenthesis is ignored rather than rejected.
//
//	or   := xor ("OR" xor)*
//	xor  := and ("XOR" and)*
//	and  := unary (["AND"] unary | "NOT" unary)*
//	unary := "(" or ")" | ["+"|"-"] word | ["+"|"-"] phrase
type parser struct {
	registry *registry.Registry
	analyzer termAnalyzer
	tokens   []token
	pos      int
	words    []plainWord
	// required words that analyzed to no terms
	dropped int
}

// termAnalyzer runs text through the analyzer the index uses for field.
type termAnalyzer interface {
	Analyze(field string, text string) ([]string, error)
}

// parseQuery returns the parsed query, nil for a query without any terms, and the plain words it contains.
// Words that analyze to no terms, such as stop words, are left out. A query whose only required words were
// left out matches nothing.
func parseQuery(reg *registry.Registry, analyzer termAnalyzer, input string) (node, []plainWord, error) {
	p := &parser{registry: reg, analyzer: analyzer, tokens: tokenize(input)}

	var root node
	for {
		n, err := p.parseOr()
		if err != nil {
			return nil, nil, err
		}
		root = joinAnd(root, n)

		// stray closing parenthesis
		if p.peek().kind == tokenRParen {
			p.pos++
			continue
		}
		if p.peek().kind == tokenEOF {
			break
		}
	}

	if root == nil && p.dropped > 0 {
		return nothingNode{}, p.words, nil
	}

	return root, p.words, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) parseOr() (node, error) {
	return p.parseBinary(tokenOr, opOr, p.parseXor)
}

func (p *parser) parseXor() (node, error) {
	return p.parseBinary(tokenXor, opXor, p.parseAnd)
}

func (p *parser) parseBinary(kind tokenKind, op string, operand func() (node, error)) (node, error) {
	var children []node
	for {
		n, err := operand()
		if err != nil {
			return nil, err
		}
		if n != nil {
			children = append(children, n)
		}
		if p.peek().kind != kind {
			break
		}
		p.next()
	}

	switch len(children) {
	case 0:
		return nil, nil
	case 1:
		return children[0], nil
	}

	return &boolNode{op: op, children: children}, nil
}

func (p *parser) parseAnd() (node, error) {
	group := &andNode{}
	for {
		switch p.peek().kind {
		case tokenEOF, tokenRParen, tokenOr, tokenXor:
			return group.simplify(), nil
		case tokenAnd:
			p.next()
		case tokenNot:
			p.next()
			dropped := p.dropped
			n, _, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			if n != nil {
				group.mustNot = append(group.mustNot, n)
			}
			p.dropped = dropped
		default:
			dropped := p.dropped
			n, hate, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			if hate {
				p.dropped = dropped
			}
			if n == nil {
				continue
			}
			if hate {
				group.mustNot = append(group.mustNot, n)
			} else {
				group.must = append(group.must, n)
			}
		}
	}
}

// parseUnary returns the next operand, and whether it was marked with "-".
func (p *parser) parseUnary() (node, bool, error) {
	t := p.peek()
	switch t.kind {
	case tokenLParen:
		p.next()
		n, err := p.parseOr()
		if err != nil {
			return nil, false, err
		}
		if p.peek().kind == tokenRParen {
			p.next()
		}
		return n, false, nil
	case tokenWord, tokenPhrase:
		p.next()
		n, err := p.resolve(t)
		return n, t.hate, err
	}

	return nil, false, nil
}

// resolve maps a word or phrase onto index fields using its prefix. An unknown prefix is searched as
// plain text, prefix included.
func (p *parser) resolve(t token) (node, error) {
	phrase := t.kind == tokenPhrase

	switch t.prefix {
	case "":
		return p.plainText(t.text, t.start, t.end, phrase)
	case registry.NameModel:
		return &exactNode{field: registry.CodeModel, name: registry.NameModel, value: t.text}, nil
	case registry.NameModelID:
		return &exactNode{field: registry.CodeModelID, name: registry.NameModelID, value: t.text}, nil
	}

	if code, ok := p.registry.TermCode(t.prefix); ok {
		return p.analyzed(newTextNode(code, t.prefix, t.text, phrase))
	}

	if value, err := p.registry.Slot(t.prefix); err == nil && !phrase {
		if lo, hi, ok := strings.Cut(t.text, ".."); ok {
			return newRangeNode(value, lo, hi)
		}
	}

	if phrase {
		return p.plainText(t.prefix+":"+t.text, t.start, t.end, true)
	}
	return p.plainText(t.prefix+":"+t.text, t.start-len(t.prefix)-1, t.end, false)
}

func (p *parser) plainText(text string, start int, end int, phrase bool) (node, error) {
	n, err := p.analyzed(newTextNode(fieldText, fieldText, text, phrase))
	if err != nil || n == nil {
		return nil, err
	}
	if !phrase && !n.(*textNode).wildcard {
		p.words = append(p.words, plainWord{text: text, start: start, end: end})
	}

	return n, nil
}

// analyzed returns n, or nil when its text analyzes to no terms in its field. Wildcards are matched against
// the dictionary as typed and are kept.
func (p *parser) analyzed(n *textNode) (node, error) {
	if n.wildcard {
		return n, nil
	}

	terms, err := p.analyzer.Analyze(n.field, n.text)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		p.dropped++
		return nil, nil
	}

	return n, nil
}

func joinAnd(left node, right node) node {
	switch {
	case left == nil:
		return right
	case right == nil:
		return left
	}

	return &andNode{must: []node{left, right}}
}
