// Package search implements the unified ranked search engine over the four
// content types of the platform: articles, activities, users, and tags.
//
// Each entity type is probed through Postgres full-text search and falls back
// transparently to case-insensitive substring matching when the indexed path
// fails. Results are scored with a composite of text rank and recency decay
// and paginated independently per entity type.
package search

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/anzaso/inkwell/internal/validate"
)

// Scope selects which entity types a search populates with items.
// Counts are always computed for all four types regardless of scope.
type Scope string

// Recognized scopes. Anything else silently falls back to ScopeAll.
const (
	ScopeAll        Scope = "all"
	ScopeArticles   Scope = "articles"
	ScopeActivities Scope = "activities"
	ScopeUsers      Scope = "users"
	ScopeTags       Scope = "tags"
)

// SortMode selects the ordering of items within a bucket.
// Anything else silently falls back to SortRelevance.
type SortMode string

const (
	SortRelevance SortMode = "relevance"
	SortLatest    SortMode = "latest"
)

// Query text and pagination bounds.
const (
	MinTextLength = 1
	MaxTextLength = 100

	DefaultPage     = 1
	DefaultPageSize = 10
	MinPageSize     = 1
	MaxPageSize     = 10
)

// forbiddenSequences are rejected outright rather than stripped, so a query
// is never silently rewritten into something the caller did not type.
// Parameterized queries are the real injection defense; this keeps structural
// SQL fragments out of logs and cache keys as well.
var forbiddenSequences = []string{"--", "/*", "*/", ";"}

// ValidationError reports why a raw query was rejected before any data-store
// call was made. It maps to a 400-level response at the API boundary.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// RawQuery carries unvalidated caller input, typically straight from URL
// query parameters. Normalize is the only way to turn it into a Query.
type RawQuery struct {
	Text     string
	Scope    string
	Sort     string
	Page     string
	PageSize string
}

// Query is a normalized, bounded search request. All fields are within range;
// downstream components never re-validate.
type Query struct {
	Text     string
	Scope    Scope
	Sort     SortMode
	Page     int
	PageSize int
}

// Offset returns the row offset for the requested page.
func (q Query) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// Includes reports whether the given entity scope is populated with items
// under this query's scope.
func (q Query) Includes(s Scope) bool {
	return q.Scope == ScopeAll || q.Scope == s
}

// Normalize validates and clamps raw caller input into a Query.
//
// Text is strict: it must trim to 1-100 runes and contain none of the
// forbidden sequences, otherwise a ValidationError is returned. Scope and
// sort are lenient: unrecognized values fall back to defaults. Page and page
// size are clamped, never rejected; non-numeric input falls back to defaults.
// The strict/lenient asymmetry is deliberate: bad text means the caller's
// intent is ambiguous, a bad enum just means an older or sloppier client.
func Normalize(raw RawQuery) (Query, error) {
	text, err := validate.String(raw.Text, validate.StringConstraints{
		MinLength:           MinTextLength,
		MaxLength:           MaxTextLength,
		ForbiddenSubstrings: forbiddenSequences,
		TrimSpace:           true,
	})
	if err != nil {
		return Query{}, &ValidationError{
			Field:  "q",
			Reason: reasonForTextError(err),
			Err:    err,
		}
	}

	scope := Scope(raw.Scope)
	switch scope {
	case ScopeAll, ScopeArticles, ScopeActivities, ScopeUsers, ScopeTags:
	default:
		scope = ScopeAll
	}

	sort := SortMode(raw.Sort)
	switch sort {
	case SortRelevance, SortLatest:
	default:
		sort = SortRelevance
	}

	return Query{
		Text:     text,
		Scope:    scope,
		Sort:     sort,
		Page:     clampInt(raw.Page, DefaultPage, DefaultPage, maxPageUpperBound),
		PageSize: clampInt(raw.PageSize, DefaultPageSize, MinPageSize, MaxPageSize),
	}, nil
}

// maxPageUpperBound keeps offsets within sane bounds; page numbers this deep
// return empty pages anyway.
const maxPageUpperBound = 1 << 30

// clampInt parses s and clamps it to [min, max]. Missing or non-numeric
// input yields def.
func clampInt(s string, def, min, max int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// reasonForTextError maps validation sentinels to caller-facing reasons.
func reasonForTextError(err error) string {
	switch {
	case errors.Is(err, validate.ErrEmpty), errors.Is(err, validate.ErrStringTooShort):
		return fmt.Sprintf("query text must be at least %d character", MinTextLength)
	case errors.Is(err, validate.ErrStringTooLong):
		return fmt.Sprintf("query text must be at most %d characters", MaxTextLength)
	case errors.Is(err, validate.ErrForbiddenSubstring):
		return "query text contains a forbidden character sequence"
	default:
		return "query text is invalid"
	}
}
