//go:build integration

package search

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testSchema = `
CREATE TABLE users (
    id uuid PRIMARY KEY,
    name text NOT NULL,
    bio text NOT NULL DEFAULT '',
    avatar text,
    active boolean NOT NULL DEFAULT true,
    last_active_at timestamptz,
    created_at timestamptz NOT NULL DEFAULT now(),
    search_vector tsvector GENERATED ALWAYS AS (
        to_tsvector('simple', name || ' ' || bio)
    ) STORED
);

CREATE TABLE articles (
    id uuid PRIMARY KEY,
    slug text NOT NULL UNIQUE,
    title text NOT NULL,
    excerpt text NOT NULL DEFAULT '',
    body text NOT NULL,
    cover_image text,
    author_id uuid NOT NULL REFERENCES users(id),
    published boolean NOT NULL DEFAULT false,
    published_at timestamptz,
    created_at timestamptz NOT NULL DEFAULT now(),
    search_vector tsvector GENERATED ALWAYS AS (
        to_tsvector('simple', title || ' ' || excerpt || ' ' || body)
    ) STORED
);

CREATE TABLE activities (
    id uuid PRIMARY KEY,
    author_id uuid NOT NULL REFERENCES users(id),
    content text NOT NULL,
    images text[] NOT NULL DEFAULT '{}',
    created_at timestamptz NOT NULL DEFAULT now(),
    deleted_at timestamptz,
    search_vector tsvector GENERATED ALWAYS AS (
        to_tsvector('simple', content)
    ) STORED
);

CREATE TABLE tags (
    id uuid PRIMARY KEY,
    name text NOT NULL UNIQUE,
    slug text NOT NULL UNIQUE,
    description text NOT NULL DEFAULT '',
    color text NOT NULL DEFAULT '',
    post_count int NOT NULL DEFAULT 0,
    created_at timestamptz NOT NULL DEFAULT now(),
    search_vector tsvector GENERATED ALWAYS AS (
        to_tsvector('simple', name || ' ' || description)
    ) STORED
);
`

const testFixtures = `
INSERT INTO users (id, name, bio, avatar, active, last_active_at) VALUES
    ('00000000-0000-0000-0000-000000000001', 'gopher', 'writes about golang concurrency', 'avatars/gopher.png', true, now()),
    ('00000000-0000-0000-0000-000000000002', 'ferret', 'golang skeptic', NULL, false, now()),
    ('00000000-0000-0000-0000-000000000003', 'otter', 'photography and travel', NULL, true, now() - interval '90 days');

INSERT INTO articles (id, slug, title, excerpt, body, author_id, published, published_at) VALUES
    ('10000000-0000-0000-0000-000000000001', 'golang-generics', 'Golang generics in practice', 'A tour', 'Type parameters arrived and changed how we write containers.', '00000000-0000-0000-0000-000000000001', true, now()),
    ('10000000-0000-0000-0000-000000000002', 'golang-draft', 'Golang draft post', '', 'Unfinished notes on golang.', '00000000-0000-0000-0000-000000000001', false, NULL),
    ('10000000-0000-0000-0000-000000000003', 'old-golang-intro', 'An old golang introduction', 'From the archives', 'Written long ago about golang.', '00000000-0000-0000-0000-000000000001', true, now() - interval '365 days');

INSERT INTO activities (id, author_id, content, created_at, deleted_at) VALUES
    ('20000000-0000-0000-0000-000000000001', '00000000-0000-0000-0000-000000000001', 'just shipped a golang service', now(), NULL),
    ('20000000-0000-0000-0000-000000000002', '00000000-0000-0000-0000-000000000001', 'deleted golang hot take', now(), now());

INSERT INTO tags (id, name, slug, description, post_count) VALUES
    ('30000000-0000-0000-0000-000000000001', 'golang', 'golang', 'The Go programming language', 42),
    ('30000000-0000-0000-0000-000000000002', 'rust', 'rust', 'Systems programming', 7);
`

func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("inkwell_test"),
		postgres.WithUsername("inkwell"),
		postgres.WithPassword("inkwell"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.ExecContext(ctx, testSchema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	if _, err := db.ExecContext(ctx, testFixtures); err != nil {
		t.Fatalf("apply fixtures: %v", err)
	}
	return db
}

func TestPostgresEngineEndToEnd(t *testing.T) {
	db := startPostgres(t)
	e := NewPostgresEngine(db, Deps{Logger: slog.New(slog.DiscardHandler)})
	ctx := context.Background()

	res, err := e.Search(ctx, RawQuery{Text: "golang"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	// Draft article, deleted activity, and inactive user are invisible.
	if res.Articles.Total != 2 {
		t.Errorf("expected 2 published golang articles, got %d", res.Articles.Total)
	}
	if res.Activities.Total != 1 {
		t.Errorf("expected 1 live golang activity, got %d", res.Activities.Total)
	}
	if res.Users.Total != 1 {
		t.Errorf("expected 1 active golang user, got %d", res.Users.Total)
	}
	if res.Tags.Total != 1 {
		t.Errorf("expected 1 golang tag, got %d", res.Tags.Total)
	}
	if res.OverallTotal != 5 {
		t.Errorf("expected overall total 5, got %d", res.OverallTotal)
	}

	if len(res.Articles.Items) != 2 {
		t.Fatalf("expected 2 article items, got %d", len(res.Articles.Items))
	}
	// Equal text rank, so recency decides: the fresh article outranks the
	// year-old one.
	if res.Articles.Items[0].Slug != "golang-generics" {
		t.Errorf("expected fresh article first, got %q", res.Articles.Items[0].Slug)
	}
	if res.Articles.Items[0].Relevance <= res.Articles.Items[1].Relevance {
		t.Errorf("relevance not descending: %v then %v",
			res.Articles.Items[0].Relevance, res.Articles.Items[1].Relevance)
	}
	if res.Articles.Items[0].AuthorName != "gopher" {
		t.Errorf("expected joined author name, got %q", res.Articles.Items[0].AuthorName)
	}

	if res.Tags.Items[0].PostCount != 42 {
		t.Errorf("expected tag post count 42, got %d", res.Tags.Items[0].PostCount)
	}
}

func TestPostgresEngineMultiTokenAnd(t *testing.T) {
	db := startPostgres(t)
	e := NewPostgresEngine(db, Deps{Logger: slog.New(slog.DiscardHandler)})

	// Both tokens must match, so only the article mentioning generics hits.
	res, err := e.Search(context.Background(), RawQuery{Text: "golang generics", Scope: "articles"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Articles.Total != 1 {
		t.Errorf("expected 1 article matching both tokens, got %d", res.Articles.Total)
	}
}

func TestPostgresEngineSubstringSemantics(t *testing.T) {
	db := startPostgres(t)
	s := NewUserStrategy(db)
	ctx := context.Background()
	q := Query{Text: "photo", Sort: SortRelevance, Page: 1, PageSize: 10}

	// "photo" is a prefix, not a lexeme: the index misses, the substring
	// fallback hits.
	n, err := s.CountIndexed(ctx, q)
	if err != nil {
		t.Fatalf("count indexed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no indexed prefix match, got %d", n)
	}

	n, err = s.CountFallback(ctx, q)
	if err != nil {
		t.Fatalf("count fallback: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 substring match, got %d", n)
	}

	rows, err := s.FetchFallback(ctx, q, 0, 10)
	if err != nil {
		t.Fatalf("fetch fallback: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "otter" {
		t.Fatalf("expected otter, got %+v", rows)
	}
	if rows[0].Relevance != 0 {
		t.Errorf("substring matches must carry zero relevance, got %v", rows[0].Relevance)
	}
}

func TestPostgresEngineLikeEscaping(t *testing.T) {
	db := startPostgres(t)
	s := NewTagStrategy(db)
	ctx := context.Background()

	// A literal percent sign must not act as a wildcard.
	n, err := s.CountFallback(ctx, Query{Text: "100%", Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("count fallback: %v", err)
	}
	if n != 0 {
		t.Errorf("expected escaped percent to match nothing, got %d", n)
	}
}

func TestPostgresEngineSortLatest(t *testing.T) {
	db := startPostgres(t)
	e := NewPostgresEngine(db, Deps{Logger: slog.New(slog.DiscardHandler)})

	res, err := e.Search(context.Background(), RawQuery{Text: "golang", Scope: "articles", Sort: "latest"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	items := res.Articles.Items
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	first := items[0].PublishedAt
	second := items[1].PublishedAt
	if first == nil || second == nil || first.Before(*second) {
		t.Errorf("expected newest first under latest sort: %v then %v", first, second)
	}
}

func TestPostgresEnginePagination(t *testing.T) {
	db := startPostgres(t)
	e := NewPostgresEngine(db, Deps{Logger: slog.New(slog.DiscardHandler)})

	page1, err := e.Search(context.Background(), RawQuery{Text: "golang", Scope: "articles", PageSize: "1"})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page1.Articles.Items) != 1 || !page1.Articles.HasMore {
		t.Fatalf("expected full first page with more, got %+v", page1.Articles)
	}

	page2, err := e.Search(context.Background(), RawQuery{Text: "golang", Scope: "articles", Page: "2", PageSize: "1"})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2.Articles.Items) != 1 || page2.Articles.HasMore {
		t.Fatalf("expected last page without more, got %+v", page2.Articles)
	}
	if page1.Articles.Items[0].ID == page2.Articles.Items[0].ID {
		t.Error("pages must not overlap")
	}

	past, err := e.Search(context.Background(), RawQuery{Text: "golang", Scope: "articles", Page: "99"})
	if err != nil {
		t.Fatalf("page past end: %v", err)
	}
	if len(past.Articles.Items) != 0 || past.Articles.Total != 2 {
		t.Errorf("expected empty page with real total, got %+v", past.Articles)
	}
}
