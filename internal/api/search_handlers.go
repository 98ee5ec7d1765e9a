// Package api provides HTTP handlers for the Inkwell API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/anzaso/inkwell/internal/search"
)

// SearchHandlers holds dependencies for search HTTP handlers.
type SearchHandlers struct {
	engine *search.Engine
	logger *slog.Logger
}

// NewSearchHandlers creates a new SearchHandlers instance.
func NewSearchHandlers(engine *search.Engine, logger *slog.Logger) *SearchHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchHandlers{engine: engine, logger: logger}
}

// Search handles GET /search - unified ranked search across articles,
// activities, users, and tags.
//
// Query parameters:
//   - q: search text (required, 1-100 characters)
//   - scope: all | articles | activities | users | tags (default all)
//   - sort: relevance | latest (default relevance)
//   - page: page number, clamped to >= 1 (default 1)
//   - page_size: items per bucket, clamped to 1-10 (default 10)
func (h *SearchHandlers) Search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	params := r.URL.Query()
	raw := search.RawQuery{
		Text:     params.Get("q"),
		Scope:    params.Get("scope"),
		Sort:     params.Get("sort"),
		Page:     params.Get("page"),
		PageSize: params.Get("page_size"),
	}

	result, err := h.engine.Search(r.Context(), raw)
	if err != nil {
		if search.IsValidationError(err) {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		// Store errors carry table and operator detail that does not
		// belong in a client response.
		h.logger.ErrorContext(r.Context(), "search failed", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Search is temporarily unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to encode search response", "error", err)
	}
}
