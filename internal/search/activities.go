package search

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

const activityTS = "a.created_at"

// ActivityStrategy searches short-form activity posts. Soft-deleted
// activities are invisible in both modes.
type ActivityStrategy struct {
	db *sql.DB
}

// NewActivityStrategy creates an activity search strategy over db.
func NewActivityStrategy(db *sql.DB) *ActivityStrategy {
	return &ActivityStrategy{db: db}
}

func (s *ActivityStrategy) CountIndexed(ctx context.Context, q Query) (int, error) {
	expr := BuildMatchExpression(q.Text)
	if expr.Empty() {
		return 0, nil
	}
	query := fmt.Sprintf(`
SELECT count(*)
FROM activities a,
     to_tsquery('%s', $1) query
WHERE a.deleted_at IS NULL
  AND a.search_vector @@ query`, TextSearchConfig)

	var n int
	if err := s.db.QueryRowContext(ctx, query, expr.Query()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count activities (indexed): %w", err)
	}
	return n, nil
}

func (s *ActivityStrategy) CountFallback(ctx context.Context, q Query) (int, error) {
	const query = `
SELECT count(*)
FROM activities a
WHERE a.deleted_at IS NULL
  AND a.content ILIKE $1`

	var n int
	if err := s.db.QueryRowContext(ctx, query, likePattern(q.Text)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count activities (substring): %w", err)
	}
	return n, nil
}

func (s *ActivityStrategy) FetchIndexed(ctx context.Context, q Query, offset, limit int) ([]ActivityRow, error) {
	expr := BuildMatchExpression(q.Text)
	if expr.Empty() {
		return []ActivityRow{}, nil
	}
	query := fmt.Sprintf(`
SELECT a.id, a.content, a.images, a.created_at,
       u.id, u.name,
       %s AS relevance
FROM activities a
JOIN users u ON u.id = a.author_id,
     to_tsquery('%s', $1) query
WHERE a.deleted_at IS NULL
  AND a.search_vector @@ query
ORDER BY %s
LIMIT $2 OFFSET $3`,
		relevanceExpr("a.search_vector", activityTS), TextSearchConfig, orderClause(q.Sort, activityTS))

	rows, err := s.db.QueryContext(ctx, query, expr.Query(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("fetch activities (indexed): %w", err)
	}
	return scanActivities(rows)
}

func (s *ActivityStrategy) FetchFallback(ctx context.Context, q Query, offset, limit int) ([]ActivityRow, error) {
	query := fmt.Sprintf(`
SELECT a.id, a.content, a.images, a.created_at,
       u.id, u.name,
       0::float8 AS relevance
FROM activities a
JOIN users u ON u.id = a.author_id
WHERE a.deleted_at IS NULL
  AND a.content ILIKE $1
ORDER BY %s
LIMIT $2 OFFSET $3`, fallbackOrderClause(activityTS))

	rows, err := s.db.QueryContext(ctx, query, likePattern(q.Text), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("fetch activities (substring): %w", err)
	}
	return scanActivities(rows)
}

func scanActivities(rows *sql.Rows) ([]ActivityRow, error) {
	defer rows.Close()

	out := []ActivityRow{}
	for rows.Next() {
		var r ActivityRow
		if err := rows.Scan(
			&r.ID, &r.Content, pq.Array(&r.Images), &r.CreatedAt,
			&r.AuthorID, &r.AuthorName, &r.Relevance,
		); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity rows: %w", err)
	}
	return out, nil
}
