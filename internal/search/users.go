package search

import (
	"context"
	"database/sql"
	"fmt"
)

// User decay tracks engagement, not signup time.
const userTS = "coalesce(u.last_active_at, u.created_at)"

// UserStrategy searches active user profiles.
type UserStrategy struct {
	db *sql.DB
}

// NewUserStrategy creates a user search strategy over db.
func NewUserStrategy(db *sql.DB) *UserStrategy {
	return &UserStrategy{db: db}
}

func (s *UserStrategy) CountIndexed(ctx context.Context, q Query) (int, error) {
	expr := BuildMatchExpression(q.Text)
	if expr.Empty() {
		return 0, nil
	}
	query := fmt.Sprintf(`
SELECT count(*)
FROM users u,
     to_tsquery('%s', $1) query
WHERE u.active
  AND u.search_vector @@ query`, TextSearchConfig)

	var n int
	if err := s.db.QueryRowContext(ctx, query, expr.Query()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users (indexed): %w", err)
	}
	return n, nil
}

func (s *UserStrategy) CountFallback(ctx context.Context, q Query) (int, error) {
	const query = `
SELECT count(*)
FROM users u
WHERE u.active
  AND (u.name ILIKE $1 OR u.bio ILIKE $1)`

	var n int
	if err := s.db.QueryRowContext(ctx, query, likePattern(q.Text)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users (substring): %w", err)
	}
	return n, nil
}

func (s *UserStrategy) FetchIndexed(ctx context.Context, q Query, offset, limit int) ([]UserRow, error) {
	expr := BuildMatchExpression(q.Text)
	if expr.Empty() {
		return []UserRow{}, nil
	}
	query := fmt.Sprintf(`
SELECT u.id, u.name, u.avatar, u.bio,
       %s AS relevance
FROM users u,
     to_tsquery('%s', $1) query
WHERE u.active
  AND u.search_vector @@ query
ORDER BY %s
LIMIT $2 OFFSET $3`,
		relevanceExpr("u.search_vector", userTS), TextSearchConfig, orderClause(q.Sort, userTS))

	rows, err := s.db.QueryContext(ctx, query, expr.Query(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("fetch users (indexed): %w", err)
	}
	return scanUsers(rows)
}

func (s *UserStrategy) FetchFallback(ctx context.Context, q Query, offset, limit int) ([]UserRow, error) {
	query := fmt.Sprintf(`
SELECT u.id, u.name, u.avatar, u.bio,
       0::float8 AS relevance
FROM users u
WHERE u.active
  AND (u.name ILIKE $1 OR u.bio ILIKE $1)
ORDER BY %s
LIMIT $2 OFFSET $3`, fallbackOrderClause(userTS))

	rows, err := s.db.QueryContext(ctx, query, likePattern(q.Text), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("fetch users (substring): %w", err)
	}
	return scanUsers(rows)
}

func scanUsers(rows *sql.Rows) ([]UserRow, error) {
	defer rows.Close()

	out := []UserRow{}
	for rows.Next() {
		var r UserRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Avatar, &r.Bio, &r.Relevance); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return out, nil
}
