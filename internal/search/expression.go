package search

import (
	"strings"
	"unicode"
)

// TextSearchConfig is the Postgres text search configuration used for every
// entity type, on both the write path (generated tsvector columns) and the
// query path.
// The 'simple' configuration does no stemming or stop-wording: stored content
// mixes natural language, code identifiers, and non-Latin scripts, where
// language-specific stemming reduces recall.
const TextSearchConfig = "simple"

// Tokenize lower-cases text and splits it into letter/digit runs. This is the
// single shared tokenization for search queries and must match how the
// indexed tsvector columns were produced; a divergence here silently degrades
// recall without any error surfacing.
func Tokenize(text string) []string {
	lowered := strings.ToLower(text)
	return strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// MatchExpression is the compiled tsquery form of a caller's free text,
// scoped to TextSearchConfig. Built once per entity search call; query text
// varies per request so there is nothing to cache.
type MatchExpression struct {
	config string
	query  string
}

// BuildMatchExpression tokenizes text and joins the tokens into an AND
// tsquery. Tokens contain only letters and digits, so the resulting string
// is free of tsquery operators regardless of what the caller typed.
func BuildMatchExpression(text string) MatchExpression {
	return MatchExpression{
		config: TextSearchConfig,
		query:  strings.Join(Tokenize(text), " & "),
	}
}

// Config returns the text search configuration name.
func (m MatchExpression) Config() string { return m.config }

// Query returns the tsquery string, suitable as the argument to
// to_tsquery(TextSearchConfig, $1).
func (m MatchExpression) Query() string { return m.query }

// Empty reports whether tokenization produced no tokens (for example, text
// consisting only of punctuation). An empty expression matches nothing and
// must not be passed to to_tsquery, which rejects empty input.
func (m MatchExpression) Empty() bool { return m.query == "" }
