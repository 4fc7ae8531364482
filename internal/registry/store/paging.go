package store

import (
	"math"
	"strings"
)

const (
	DefaultLimit = 10
	DefaultPage  = 1
	MaxLimit     = 100
)

// PageOptions are the caller supplied paging and ordering options.
// Limit and Page values below 1 fall back to DefaultLimit and DefaultPage.
// Limit is capped at MaxLimit.
type PageOptions struct {
	SortBy string
	Limit  int
	Page   int
}

// Normalized returns a copy of o with defaults applied.
func (o PageOptions) Normalized() PageOptions {
	if o.Limit < 1 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	if o.Page < 1 {
		o.Page = DefaultPage
	}
	return o
}

// Skip returns the number of records preceding the requested page. It
// saturates at math.MaxInt64, which selects an empty page.
func (o PageOptions) Skip() int64 {
	n := o.Normalized()
	pages, limit := int64(n.Page-1), int64(n.Limit)
	if pages > math.MaxInt64/limit {
		return math.MaxInt64
	}
	return pages * limit
}

// Page is one page of results plus the totals for the whole query.
type Page[T any] struct {
	Results      []T   `json:"results"`
	Page         int   `json:"page"`
	Limit        int   `json:"limit"`
	TotalPages   int   `json:"totalPages"`
	TotalResults int64 `json:"totalResults"`
}

// NewPage builds a Page. totalPages is ceil(total / limit).
func NewPage[T any](results []T, total int64, opts PageOptions) *Page[T] {
	n := opts.Normalized()
	if results == nil {
		results = []T{}
	}
	limit := int64(n.Limit)
	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}
	return &Page[T]{
		Results:      results,
		Page:         n.Page,
		Limit:        n.Limit,
		TotalPages:   int(totalPages),
		TotalResults: total,
	}
}

// SortField is a single resolved ordering key.
type SortField struct {
	Column string
	Desc   bool
}

// TweetSortFields maps the sortable tweet fields to their stored names.
var TweetSortFields = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"type":      "type",
	"tweetText": "tweet_text",
	"user":      "user_id",
}

// ChatSortFields maps the sortable chat fields to their stored names.
var ChatSortFields = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"from":      "from_user_id",
	"to":        "to_user_id",
	"message":   "message",
}

// ParseSortBy parses "field:dir[,field:dir...]" against an allow-list of fields.
// An empty value sorts by creation time ascending. The result always ends with
// the id column so that pages are stable across equal keys.
func ParseSortBy(raw string, allowed map[string]string, idColumn string) ([]SortField, error) {
	var fields []SortField
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, dir, _ := strings.Cut(part, ":")
		column, ok := allowed[strings.TrimSpace(name)]
		if !ok {
			return nil, &ValidationError{Field: "sortBy", Message: "unknown sort field " + name}
		}
		var desc bool
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
		case "desc":
			desc = true
		default:
			return nil, &ValidationError{Field: "sortBy", Message: "sort direction must be asc or desc"}
		}
		if seen[column] {
			continue
		}
		seen[column] = true
		fields = append(fields, SortField{Column: column, Desc: desc})
	}
	if len(fields) == 0 {
		fields = append(fields, SortField{Column: "created_at"})
	}
	if !seen[idColumn] {
		fields = append(fields, SortField{Column: idColumn})
	}
	return fields, nil
}
