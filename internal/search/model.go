package search

import "time"

// ArticleRow is one ranked article hit.
type ArticleRow struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Excerpt     string     `json:"excerpt"`
	CoverImage  *string    `json:"cover_image,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	AuthorID    string     `json:"author_id"`
	AuthorName  string     `json:"author_name"`
	Relevance   float64    `json:"relevance"`
}

// ActivityRow is one ranked short-form activity hit.
type ActivityRow struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Images     []string  `json:"images,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Relevance  float64   `json:"relevance"`
}

// UserRow is one ranked user profile hit. Avatar holds the stored reference
// until enrichment replaces it with a signed URL.
type UserRow struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Avatar    *string `json:"avatar,omitempty"`
	Bio       string  `json:"bio"`
	Relevance float64 `json:"relevance"`
}

// TagRow is one ranked tag hit.
type TagRow struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description string  `json:"description"`
	Color       string  `json:"color"`
	PostCount   int     `json:"post_count"`
	Relevance   float64 `json:"relevance"`
}

// Bucket is one entity type's independently paginated slice of the unified
// result. Invariants: HasMore == (Total > Page*PageSize); len(Items) <= PageSize.
type Bucket[T any] struct {
	Items    []T  `json:"items"`
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasMore  bool `json:"has_more"`
}

// NewBucket assembles a bucket, deriving HasMore from the count rather than
// from the fetched page so a short page past the end stays consistent.
// A nil items slice becomes an empty one so the bucket serializes as [].
func NewBucket[T any](items []T, total, page, pageSize int) Bucket[T] {
	if items == nil {
		items = []T{}
	}
	return Bucket[T]{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		HasMore:  total > page*pageSize,
	}
}

// emptyBucket is a scope-narrowed bucket: counted but never fetched.
func emptyBucket[T any](total, page, pageSize int) Bucket[T] {
	return NewBucket([]T{}, total, page, pageSize)
}

// Result is the aggregate response for one search request. OverallTotal is
// the sum of the four bucket totals, which are always counted even when
// Scope narrows which buckets carry items.
type Result struct {
	Query        string              `json:"query"`
	Scope        Scope               `json:"scope"`
	Page         int                 `json:"page"`
	PageSize     int                 `json:"page_size"`
	Sort         SortMode            `json:"sort"`
	OverallTotal int                 `json:"overall_total"`
	Articles     Bucket[ArticleRow]  `json:"articles"`
	Activities   Bucket[ActivityRow] `json:"activities"`
	Users        Bucket[UserRow]     `json:"users"`
	Tags         Bucket[TagRow]      `json:"tags"`
}

// Totals carries the four always-computed counts; also the unit cached by
// the optional Redis count cache.
type Totals struct {
	Articles   int `cbor:"1,keyasint" json:"articles"`
	Activities int `cbor:"2,keyasint" json:"activities"`
	Users      int `cbor:"3,keyasint" json:"users"`
	Tags       int `cbor:"4,keyasint" json:"tags"`
}

// Sum returns the overall total across entity types.
func (t Totals) Sum() int {
	return t.Articles + t.Activities + t.Users + t.Tags
}
