package search

import (
	"context"
	"database/sql"
	"fmt"
)

// articleTS is the timestamp used for article decay and ordering. Published
// articles always carry published_at; the coalesce guards legacy rows.
const articleTS = "coalesce(a.published_at, a.created_at)"

// ArticleStrategy searches published long-form articles.
type ArticleStrategy struct {
	db *sql.DB
}

// NewArticleStrategy creates an article search strategy over db.
func NewArticleStrategy(db *sql.DB) *ArticleStrategy {
	return &ArticleStrategy{db: db}
}

func (s *ArticleStrategy) CountIndexed(ctx context.Context, q Query) (int, error) {
	expr := BuildMatchExpression(q.Text)
	if expr.Empty() {
		return 0, nil
	}
	query := fmt.Sprintf(`
SELECT count(*)
FROM articles a,
     to_tsquery('%s', $1) query
WHERE a.published
  AND a.search_vector @@ query`, TextSearchConfig)

	var n int
	if err := s.db.QueryRowContext(ctx, query, expr.Query()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count articles (indexed): %w", err)
	}
	return n, nil
}

func (s *ArticleStrategy) CountFallback(ctx context.Context, q Query) (int, error) {
	const query = `
SELECT count(*)
FROM articles a
WHERE a.published
  AND (a.title ILIKE $1 OR a.excerpt ILIKE $1 OR a.body ILIKE $1)`

	var n int
	if err := s.db.QueryRowContext(ctx, query, likePattern(q.Text)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count articles (substring): %w", err)
	}
	return n, nil
}

func (s *ArticleStrategy) FetchIndexed(ctx context.Context, q Query, offset, limit int) ([]ArticleRow, error) {
	expr := BuildMatchExpression(q.Text)
	if expr.Empty() {
		return []ArticleRow{}, nil
	}
	query := fmt.Sprintf(`
SELECT a.id, a.slug, a.title, a.excerpt, a.cover_image, a.published_at, a.created_at,
       u.id, u.name,
       %s AS relevance
FROM articles a
JOIN users u ON u.id = a.author_id,
     to_tsquery('%s', $1) query
WHERE a.published
  AND a.search_vector @@ query
ORDER BY %s
LIMIT $2 OFFSET $3`,
		relevanceExpr("a.search_vector", articleTS), TextSearchConfig, orderClause(q.Sort, articleTS))

	rows, err := s.db.QueryContext(ctx, query, expr.Query(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("fetch articles (indexed): %w", err)
	}
	return scanArticles(rows)
}

func (s *ArticleStrategy) FetchFallback(ctx context.Context, q Query, offset, limit int) ([]ArticleRow, error) {
	query := fmt.Sprintf(`
SELECT a.id, a.slug, a.title, a.excerpt, a.cover_image, a.published_at, a.created_at,
       u.id, u.name,
       0::float8 AS relevance
FROM articles a
JOIN users u ON u.id = a.author_id
WHERE a.published
  AND (a.title ILIKE $1 OR a.excerpt ILIKE $1 OR a.body ILIKE $1)
ORDER BY %s
LIMIT $2 OFFSET $3`, fallbackOrderClause(articleTS))

	rows, err := s.db.QueryContext(ctx, query, likePattern(q.Text), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("fetch articles (substring): %w", err)
	}
	return scanArticles(rows)
}

func scanArticles(rows *sql.Rows) ([]ArticleRow, error) {
	defer rows.Close()

	out := []ArticleRow{}
	for rows.Next() {
		var r ArticleRow
		if err := rows.Scan(
			&r.ID, &r.Slug, &r.Title, &r.Excerpt, &r.CoverImage, &r.PublishedAt, &r.CreatedAt,
			&r.AuthorID, &r.AuthorName, &r.Relevance,
		); err != nil {
			return nil, fmt.Errorf("scan article row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate article rows: %w", err)
	}
	return out, nil
}
