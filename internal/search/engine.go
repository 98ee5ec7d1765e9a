package search

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/anzaso/inkwell/internal/avatar"
	"github.com/anzaso/inkwell/internal/tracing"
)

// DefaultSubSearchTimeout bounds each entity sub-search so one slow entity
// type cannot stall the whole response.
const DefaultSubSearchTimeout = 5 * time.Second

// Deps holds the engine's collaborators. Articles through Tags are required;
// the rest are optional and default to no-ops (Signer, Counts, Metrics) or
// the process default (Logger).
type Deps struct {
	Articles   Searcher[ArticleRow]
	Activities Searcher[ActivityRow]
	Users      Searcher[UserRow]
	Tags       Searcher[TagRow]

	Signer  avatar.Signer
	Counts  *CountCache
	Metrics *Metrics
	Logger  *slog.Logger

	// SubSearchTimeout bounds each concurrent count/fetch branch.
	// Zero means DefaultSubSearchTimeout.
	SubSearchTimeout time.Duration
}

// Engine is the unified search orchestrator. It is stateless and safely
// reentrant: every Search call is a pure transformation of request
// parameters into a response against a read-only store.
type Engine struct {
	articles   Searcher[ArticleRow]
	activities Searcher[ActivityRow]
	users      Searcher[UserRow]
	tags       Searcher[TagRow]

	signer     avatar.Signer
	counts     *CountCache
	metrics    *Metrics
	logger     *slog.Logger
	subTimeout time.Duration
}

// NewEngine creates an engine from explicit dependencies.
func NewEngine(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := deps.SubSearchTimeout
	if timeout <= 0 {
		timeout = DefaultSubSearchTimeout
	}
	return &Engine{
		articles:   deps.Articles,
		activities: deps.Activities,
		users:      deps.Users,
		tags:       deps.Tags,
		signer:     deps.Signer,
		counts:     deps.Counts,
		metrics:    deps.Metrics,
		logger:     logger,
		subTimeout: timeout,
	}
}

// NewPostgresEngine creates an engine whose four strategies run against db.
// Strategies already set in deps are kept, which lets tests substitute fakes
// for a subset of entity types.
func NewPostgresEngine(db *sql.DB, deps Deps) *Engine {
	if deps.Articles == nil {
		deps.Articles = NewArticleStrategy(db)
	}
	if deps.Activities == nil {
		deps.Activities = NewActivityStrategy(db)
	}
	if deps.Users == nil {
		deps.Users = NewUserStrategy(db)
	}
	if deps.Tags == nil {
		deps.Tags = NewTagStrategy(db)
	}
	return NewEngine(deps)
}

// Search normalizes the raw query and executes it. A validation failure
// short-circuits before any store call. A fatal failure in any entity
// branch (both modes failed) fails the whole call with no partial result.
func (e *Engine) Search(ctx context.Context, raw RawQuery) (*Result, error) {
	start := time.Now()

	q, err := Normalize(raw)
	if err != nil {
		e.metrics.ObserveSearch(ScopeAll, StatusValidation, time.Since(start))
		return nil, err
	}

	res, err := e.run(ctx, q)
	if err != nil {
		e.metrics.ObserveSearch(q.Scope, StatusError, time.Since(start))
		return nil, err
	}
	e.metrics.ObserveSearch(q.Scope, StatusOK, time.Since(start))
	return res, nil
}

func (e *Engine) run(ctx context.Context, q Query) (res *Result, err error) {
	ctx, end := tracing.StartSpan(ctx, "run_search")
	defer func() { end(err) }()
	tracing.SetAttributes(ctx,
		attribute.String("search.scope", string(q.Scope)),
		attribute.Int("search.page", q.Page),
	)

	degrade := e.degradeFunc(ctx)
	offset := q.Offset()

	// Counts are always computed for all four entity types, regardless of
	// scope, so OverallTotal stays meaningful when the caller is looking at
	// a single tab. The cache short-circuits all four at once or none.
	totals, cached := e.counts.Get(ctx, q.Text)
	if e.counts != nil {
		if cached {
			e.metrics.ObserveCountCache(CacheHit)
			tracing.AddEvent(ctx, "count_cache_hit")
		} else {
			e.metrics.ObserveCountCache(CacheMiss)
			tracing.AddEvent(ctx, "count_cache_miss")
		}
	}

	var (
		articles   []ArticleRow
		activities []ActivityRow
		users      []UserRow
		tags       []TagRow
	)

	// All count and fetch branches run concurrently with respect to each
	// other; no branch blocks on another entity type's result.
	g, gctx := errgroup.WithContext(ctx)

	if !cached {
		g.Go(e.branch(gctx, func(ctx context.Context) error {
			n, err := guardedCount(ctx, e.articles, q, "articles", degrade)
			totals.Articles = n
			return err
		}))
		g.Go(e.branch(gctx, func(ctx context.Context) error {
			n, err := guardedCount(ctx, e.activities, q, "activities", degrade)
			totals.Activities = n
			return err
		}))
		g.Go(e.branch(gctx, func(ctx context.Context) error {
			n, err := guardedCount(ctx, e.users, q, "users", degrade)
			totals.Users = n
			return err
		}))
		g.Go(e.branch(gctx, func(ctx context.Context) error {
			n, err := guardedCount(ctx, e.tags, q, "tags", degrade)
			totals.Tags = n
			return err
		}))
	}

	if q.Includes(ScopeArticles) {
		g.Go(e.branch(gctx, func(ctx context.Context) error {
			rows, err := guardedFetch(ctx, e.articles, q, offset, q.PageSize, "articles", degrade)
			articles = rows
			return err
		}))
	}
	if q.Includes(ScopeActivities) {
		g.Go(e.branch(gctx, func(ctx context.Context) error {
			rows, err := guardedFetch(ctx, e.activities, q, offset, q.PageSize, "activities", degrade)
			activities = rows
			return err
		}))
	}
	if q.Includes(ScopeUsers) {
		g.Go(e.branch(gctx, func(ctx context.Context) error {
			rows, err := guardedFetch(ctx, e.users, q, offset, q.PageSize, "users", degrade)
			users = rows
			return err
		}))
	}
	if q.Includes(ScopeTags) {
		g.Go(e.branch(gctx, func(ctx context.Context) error {
			rows, err := guardedFetch(ctx, e.tags, q, offset, q.PageSize, "tags", degrade)
			tags = rows
			return err
		}))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !cached {
		e.counts.Set(ctx, q.Text, totals)
	}

	enrichUsers(ctx, users, e.signer, e.logger)

	return &Result{
		Query:        q.Text,
		Scope:        q.Scope,
		Page:         q.Page,
		PageSize:     q.PageSize,
		Sort:         q.Sort,
		OverallTotal: totals.Sum(),
		Articles:     bucketFor(q, ScopeArticles, articles, totals.Articles),
		Activities:   bucketFor(q, ScopeActivities, activities, totals.Activities),
		Users:        bucketFor(q, ScopeUsers, users, totals.Users),
		Tags:         bucketFor(q, ScopeTags, tags, totals.Tags),
	}, nil
}

// branch wraps a sub-search so it runs under its own timeout.
func (e *Engine) branch(parent context.Context, f func(context.Context) error) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(parent, e.subTimeout)
		defer cancel()
		return f(ctx)
	}
}

// degradeFunc builds the side channel observing indexed-mode failures.
func (e *Engine) degradeFunc(ctx context.Context) DegradeFunc {
	return func(label string, err error) {
		e.logger.WarnContext(ctx, "indexed search failed, falling back to substring matching",
			"operation", label, "error", err)
		e.metrics.ObserveDegradation(label)
	}
}

// bucketFor assembles the bucket for one entity type. Out-of-scope buckets
// still carry the always-computed total but no items.
func bucketFor[T any](q Query, scope Scope, items []T, total int) Bucket[T] {
	if !q.Includes(scope) {
		return emptyBucket[T](total, q.Page, q.PageSize)
	}
	return NewBucket(items, total, q.Page, q.PageSize)
}

// guardedCount composes a strategy's two count modes through the
// degradation supervisor.
func guardedCount[T any](ctx context.Context, s Searcher[T], q Query, label string, onDegrade DegradeFunc) (n int, err error) {
	ctx, end := tracing.StartDBSpan(ctx, label, tracing.DBOperationQuery)
	defer func() { end(err) }()

	return withFallback(label+".count", onDegrade,
		func() (int, error) { return s.CountIndexed(ctx, q) },
		func() (int, error) { return s.CountFallback(ctx, q) },
	)
}

// guardedFetch composes a strategy's two fetch modes through the
// degradation supervisor.
func guardedFetch[T any](ctx context.Context, s Searcher[T], q Query, offset, limit int, label string, onDegrade DegradeFunc) (rows []T, err error) {
	ctx, end := tracing.StartDBSpan(ctx, label, tracing.DBOperationQuery)
	defer func() { end(err) }()

	return withFallback(label+".fetch", onDegrade,
		func() ([]T, error) { return s.FetchIndexed(ctx, q, offset, limit) },
		func() ([]T, error) { return s.FetchFallback(ctx, q, offset, limit) },
	)
}
