package search

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantText string
		wantErr  bool
	}{
		{
			name:     "plain query preserved",
			text:     "react",
			wantText: "react",
		},
		{
			name:     "surrounding whitespace trimmed",
			text:     "  react hooks  ",
			wantText: "react hooks",
		},
		{
			name:     "exactly max length accepted",
			text:     strings.Repeat("a", 100),
			wantText: strings.Repeat("a", 100),
		},
		{
			name:    "empty rejected",
			text:    "",
			wantErr: true,
		},
		{
			name:    "whitespace only rejected",
			text:    "   ",
			wantErr: true,
		},
		{
			name:    "over max length rejected",
			text:    strings.Repeat("a", 101),
			wantErr: true,
		},
		{
			name:    "sql comment rejected",
			text:    "react--drop table",
			wantErr: true,
		},
		{
			name:    "semicolon rejected",
			text:    "react; select",
			wantErr: true,
		},
		{
			name:    "block comment open rejected",
			text:    "react /* hmm",
			wantErr: true,
		},
		{
			name:    "block comment close rejected",
			text:    "react */",
			wantErr: true,
		},
		{
			name:     "single dash allowed",
			text:     "type-safe react",
			wantText: "type-safe react",
		},
		{
			name:     "non-latin preserved",
			text:     "日本語のブログ",
			wantText: "日本語のブログ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Normalize(RawQuery{Text: tt.text})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got query %+v", q)
				}
				if !IsValidationError(err) {
					t.Errorf("expected ValidationError, got %T: %v", err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if q.Text != tt.wantText {
				t.Errorf("expected text %q, got %q", tt.wantText, q.Text)
			}
		})
	}
}

func TestNormalizeEnumFallbacks(t *testing.T) {
	tests := []struct {
		name      string
		scope     string
		sort      string
		wantScope Scope
		wantSort  SortMode
	}{
		{name: "empty enums use defaults", wantScope: ScopeAll, wantSort: SortRelevance},
		{name: "valid scope kept", scope: "users", wantScope: ScopeUsers, wantSort: SortRelevance},
		{name: "valid sort kept", sort: "latest", wantScope: ScopeAll, wantSort: SortLatest},
		{name: "unknown scope falls back", scope: "podcasts", wantScope: ScopeAll, wantSort: SortRelevance},
		{name: "unknown sort falls back", sort: "magic", wantScope: ScopeAll, wantSort: SortRelevance},
		{name: "case sensitive enums", scope: "Users", sort: "Latest", wantScope: ScopeAll, wantSort: SortRelevance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Normalize(RawQuery{Text: "react", Scope: tt.scope, Sort: tt.sort})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if q.Scope != tt.wantScope {
				t.Errorf("expected scope %q, got %q", tt.wantScope, q.Scope)
			}
			if q.Sort != tt.wantSort {
				t.Errorf("expected sort %q, got %q", tt.wantSort, q.Sort)
			}
		})
	}
}

func TestNormalizeClamping(t *testing.T) {
	tests := []struct {
		name         string
		page         string
		pageSize     string
		wantPage     int
		wantPageSize int
	}{
		{name: "missing both", wantPage: 1, wantPageSize: 10},
		{name: "zero page size clamps up", pageSize: "0", wantPage: 1, wantPageSize: 1},
		{name: "negative page size clamps up", pageSize: "-5", wantPage: 1, wantPageSize: 1},
		{name: "huge page size clamps down", pageSize: "1000", wantPage: 1, wantPageSize: 10},
		{name: "non-numeric page size defaults", pageSize: "abc", wantPage: 1, wantPageSize: 10},
		{name: "NaN-ish page size defaults", pageSize: "NaN", wantPage: 1, wantPageSize: 10},
		{name: "zero page clamps up", page: "0", wantPage: 1, wantPageSize: 10},
		{name: "negative page clamps up", page: "-3", wantPage: 1, wantPageSize: 10},
		{name: "valid values kept", page: "4", pageSize: "5", wantPage: 4, wantPageSize: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Normalize(RawQuery{Text: "react", Page: tt.page, PageSize: tt.pageSize})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if q.Page != tt.wantPage {
				t.Errorf("expected page %d, got %d", tt.wantPage, q.Page)
			}
			if q.PageSize != tt.wantPageSize {
				t.Errorf("expected page size %d, got %d", tt.wantPageSize, q.PageSize)
			}
			if q.PageSize < MinPageSize || q.PageSize > MaxPageSize {
				t.Errorf("page size %d outside [%d, %d]", q.PageSize, MinPageSize, MaxPageSize)
			}
		})
	}
}

func TestQueryOffset(t *testing.T) {
	q := Query{Page: 3, PageSize: 10}
	if got := q.Offset(); got != 20 {
		t.Errorf("expected offset 20, got %d", got)
	}
}

func TestQueryIncludes(t *testing.T) {
	all := Query{Scope: ScopeAll}
	for _, s := range []Scope{ScopeArticles, ScopeActivities, ScopeUsers, ScopeTags} {
		if !all.Includes(s) {
			t.Errorf("scope all should include %q", s)
		}
	}

	narrowed := Query{Scope: ScopeTags}
	if !narrowed.Includes(ScopeTags) {
		t.Error("scope tags should include tags")
	}
	if narrowed.Includes(ScopeUsers) {
		t.Error("scope tags should not include users")
	}
}

func TestValidationErrorReason(t *testing.T) {
	_, err := Normalize(RawQuery{Text: "react--drop table"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if ve.Field != "q" {
		t.Errorf("expected field %q, got %q", "q", ve.Field)
	}
	if !strings.Contains(ve.Reason, "forbidden") {
		t.Errorf("expected actionable reason, got %q", ve.Reason)
	}
	if !strings.Contains(ve.Error(), "invalid q") {
		t.Errorf("unexpected error string %q", ve.Error())
	}
}
