package search

import (
	"fmt"
	"math"
	"time"
)

// Relevance blends the engine's text rank with recency decay.
//
// Formula: rank * 0.7 + exp(-ageSeconds / 2592000) * 0.3
//
// 2,592,000 seconds is 30 days: the decay scale, not a half-life. A row
// published right now gets the full 0.3 recency share; one 30 days old gets
// 0.3/e; the text rank share is unaffected by age.
const (
	RankWeight    = 0.7
	RecencyWeight = 0.3

	// RecencyDecaySeconds is the e-folding scale of the recency term.
	RecencyDecaySeconds = 2_592_000
)

// Relevance computes the composite score for a row. It is a pure function of
// its inputs: identical (rank, ts, now) always yield the identical score,
// which the tests pin with snapshots at a fixed now. It mirrors exactly the
// SQL expression produced by relevanceExpr, so scores computed in Go for
// tests agree with scores computed inside Postgres.
func Relevance(rank float64, ts, now time.Time) float64 {
	age := now.Sub(ts).Seconds()
	return rank*RankWeight + math.Exp(-age/RecencyDecaySeconds)*RecencyWeight
}

// relevanceExpr renders the composite score as a SQL expression over a
// tsvector column and a timestamp expression, against a tsquery row named
// "query". Weights and decay scale are inlined so the expression stays
// index-friendly and readable in slow-query logs.
func relevanceExpr(vectorCol, tsExpr string) string {
	return fmt.Sprintf(
		"ts_rank(%s, query) * %g + exp(-extract(epoch from (now() - %s)) / %d.0) * %g",
		vectorCol, RankWeight, tsExpr, RecencyDecaySeconds, RecencyWeight,
	)
}

// orderClause renders the ORDER BY body for indexed-mode fetches. The
// non-primary criterion is the tie-break; timestamps sort nulls last so rows
// with no usable timestamp never float to the top.
func orderClause(sort SortMode, tsExpr string) string {
	if sort == SortLatest {
		return fmt.Sprintf("%s DESC NULLS LAST, relevance DESC", tsExpr)
	}
	return fmt.Sprintf("relevance DESC, %s DESC NULLS LAST", tsExpr)
}

// fallbackOrderClause renders the ORDER BY body for substring-mode fetches.
// With no textual rank available both sort modes collapse to recency.
func fallbackOrderClause(tsExpr string) string {
	return fmt.Sprintf("%s DESC NULLS LAST", tsExpr)
}
