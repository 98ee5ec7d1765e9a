package search

import (
	"context"
	"strings"
)

// Searcher is the per-entity search strategy. Each entity type provides the
// count/fetch pair in two mutually exclusive modes: the indexed mode probes
// the full-text index and scores rows, the fallback mode matches raw text
// columns with case-insensitive substrings and reports zero relevance. The
// engine composes the two through withFallback so callers cannot tell which
// mode produced a bucket.
type Searcher[T any] interface {
	// CountIndexed counts rows matching the full-text index.
	CountIndexed(ctx context.Context, q Query) (int, error)

	// CountFallback counts rows matching by substring.
	CountFallback(ctx context.Context, q Query) (int, error)

	// FetchIndexed returns one ranked page of indexed matches.
	FetchIndexed(ctx context.Context, q Query, offset, limit int) ([]T, error)

	// FetchFallback returns one page of substring matches, newest first,
	// with Relevance zero on every row.
	FetchFallback(ctx context.Context, q Query, offset, limit int) ([]T, error)
}

// likeEscaper escapes the LIKE metacharacters so caller text matches
// literally under ILIKE. Backslash is Postgres' default escape character.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps text into a contains-anywhere ILIKE pattern.
func likePattern(text string) string {
	return "%" + likeEscaper.Replace(text) + "%"
}
