package search

import (
	"context"
	"database/sql"
	"fmt"
)

const tagTS = "t.created_at"

// TagStrategy searches tags. Tags have no visibility predicate; every tag
// is searchable.
type TagStrategy struct {
	db *sql.DB
}

// NewTagStrategy creates a tag search strategy over db.
func NewTagStrategy(db *sql.DB) *TagStrategy {
	return &TagStrategy{db: db}
}

func (s *TagStrategy) CountIndexed(ctx context.Context, q Query) (int, error) {
	expr := BuildMatchExpression(q.Text)
	if expr.Empty() {
		return 0, nil
	}
	query := fmt.Sprintf(`
SELECT count(*)
FROM tags t,
     to_tsquery('%s', $1) query
WHERE t.search_vector @@ query`, TextSearchConfig)

	var n int
	if err := s.db.QueryRowContext(ctx, query, expr.Query()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tags (indexed): %w", err)
	}
	return n, nil
}

func (s *TagStrategy) CountFallback(ctx context.Context, q Query) (int, error) {
	const query = `
SELECT count(*)
FROM tags t
WHERE t.name ILIKE $1 OR t.description ILIKE $1`

	var n int
	if err := s.db.QueryRowContext(ctx, query, likePattern(q.Text)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tags (substring): %w", err)
	}
	return n, nil
}

func (s *TagStrategy) FetchIndexed(ctx context.Context, q Query, offset, limit int) ([]TagRow, error) {
	expr := BuildMatchExpression(q.Text)
	if expr.Empty() {
		return []TagRow{}, nil
	}
	query := fmt.Sprintf(`
SELECT t.id, t.name, t.slug, t.description, t.color, t.post_count,
       %s AS relevance
FROM tags t,
     to_tsquery('%s', $1) query
WHERE t.search_vector @@ query
ORDER BY %s
LIMIT $2 OFFSET $3`,
		relevanceExpr("t.search_vector", tagTS), TextSearchConfig, orderClause(q.Sort, tagTS))

	rows, err := s.db.QueryContext(ctx, query, expr.Query(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("fetch tags (indexed): %w", err)
	}
	return scanTags(rows)
}

func (s *TagStrategy) FetchFallback(ctx context.Context, q Query, offset, limit int) ([]TagRow, error) {
	query := fmt.Sprintf(`
SELECT t.id, t.name, t.slug, t.description, t.color, t.post_count,
       0::float8 AS relevance
FROM tags t
WHERE t.name ILIKE $1 OR t.description ILIKE $1
ORDER BY %s
LIMIT $2 OFFSET $3`, fallbackOrderClause(tagTS))

	rows, err := s.db.QueryContext(ctx, query, likePattern(q.Text), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("fetch tags (substring): %w", err)
	}
	return scanTags(rows)
}

func scanTags(rows *sql.Rows) ([]TagRow, error) {
	defer rows.Close()

	out := []TagRow{}
	for rows.Next() {
		var r TagRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Slug, &r.Description, &r.Color, &r.PostCount, &r.Relevance); err != nil {
			return nil, fmt.Errorf("scan tag row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag rows: %w", err)
	}
	return out, nil
}
