package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anzaso/inkwell/internal/search"
)

// stubSearcher serves fixed results for one entity type.
type stubSearcher[T any] struct {
	total int
	rows  []T
	err   error
}

func (s *stubSearcher[T]) CountIndexed(ctx context.Context, q search.Query) (int, error) {
	return s.total, s.err
}

func (s *stubSearcher[T]) CountFallback(ctx context.Context, q search.Query) (int, error) {
	return s.total, s.err
}

func (s *stubSearcher[T]) FetchIndexed(ctx context.Context, q search.Query, offset, limit int) ([]T, error) {
	return s.rows, s.err
}

func (s *stubSearcher[T]) FetchFallback(ctx context.Context, q search.Query, offset, limit int) ([]T, error) {
	return s.rows, s.err
}

func newStubEngine(t *testing.T, fail error) *search.Engine {
	t.Helper()
	return search.NewEngine(search.Deps{
		Articles:   &stubSearcher[search.ArticleRow]{total: 1, rows: []search.ArticleRow{{ID: "a1", Title: "Go concurrency"}}, err: fail},
		Activities: &stubSearcher[search.ActivityRow]{err: fail},
		Users:      &stubSearcher[search.UserRow]{err: fail},
		Tags:       &stubSearcher[search.TagRow]{total: 2, rows: []search.TagRow{{ID: "t1", Name: "golang"}}, err: fail},
		Logger:     slog.New(slog.DiscardHandler),
	})
}

func doSearch(t *testing.T, engine *search.Engine, target string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewSearchHandlers(engine, slog.New(slog.DiscardHandler))
	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestSearchHandlerOK(t *testing.T) {
	rec := doSearch(t, newStubEngine(t, nil), "/search?q=go")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("expected JSON content type, got %q", ct)
	}

	var result search.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Query != "go" {
		t.Errorf("expected echoed query, got %q", result.Query)
	}
	if result.OverallTotal != 3 {
		t.Errorf("expected overall total 3, got %d", result.OverallTotal)
	}
	if len(result.Articles.Items) != 1 || result.Articles.Items[0].Title != "Go concurrency" {
		t.Errorf("unexpected articles bucket: %+v", result.Articles)
	}
}

func TestSearchHandlerParameterPassing(t *testing.T) {
	rec := doSearch(t, newStubEngine(t, nil), "/search?q=go&scope=tags&sort=latest&page=2&page_size=5")

	var result search.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Scope != search.ScopeTags || result.Sort != search.SortLatest {
		t.Errorf("expected scope/sort passed through, got %q/%q", result.Scope, result.Sort)
	}
	if result.Page != 2 || result.PageSize != 5 {
		t.Errorf("expected page 2 size 5, got %d/%d", result.Page, result.PageSize)
	}
	if len(result.Articles.Items) != 0 {
		t.Errorf("expected no article items under tags scope, got %+v", result.Articles.Items)
	}
}

func TestSearchHandlerValidationError(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{name: "missing q", target: "/search"},
		{name: "empty q", target: "/search?q=%20%20"},
		{name: "forbidden sequence", target: "/search?q=react%3B+drop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doSearch(t, newStubEngine(t, nil), tt.target)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if resp.Error.Code != ErrCodeValidation {
				t.Errorf("expected code %q, got %q", ErrCodeValidation, resp.Error.Code)
			}
			if resp.Error.Message == "" {
				t.Error("expected an actionable message")
			}
		})
	}
}

func TestSearchHandlerStoreFailure(t *testing.T) {
	rec := doSearch(t, newStubEngine(t, errors.New("pq: connection refused")), "/search?q=go")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Error.Code != ErrCodeInternal {
		t.Errorf("expected code %q, got %q", ErrCodeInternal, resp.Error.Code)
	}
	if strings.Contains(resp.Error.Message, "pq:") {
		t.Errorf("store detail leaked to client: %q", resp.Error.Message)
	}
}

func TestSearchHandlerMethodNotAllowed(t *testing.T) {
	h := NewSearchHandlers(newStubEngine(t, nil), slog.New(slog.DiscardHandler))
	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodPost, "/search?q=go", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
