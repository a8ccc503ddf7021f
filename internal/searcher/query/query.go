// Package query models a search request: the raw term, the filter selecting
// which entity adapters run, and the result limit. It also owns the cache key
// format and the sub-limit arithmetic the router uses to split a limit
// between adapters.
package query

import (
	"strconv"
	"strings"
)

// Filter selects which adapters a search dispatches to.
type Filter string

const (
	FilterAll     Filter = "all"
	FilterPosts   Filter = "posts"
	FilterTitle   Filter = "title"
	FilterContent Filter = "content"
	FilterTags    Filter = "tags"
	FilterAuthors Filter = "authors"
	FilterNone    Filter = "none"
)

// TagPrefix marks a tag-search term.
const TagPrefix = "#"

// ParseFilter maps a user-supplied filter name to a Filter. An empty string
// selects FilterAll; any unrecognised name resolves to FilterNone.
func ParseFilter(s string) Filter {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll
	case FilterAll, FilterPosts, FilterTitle, FilterContent, FilterTags, FilterAuthors, FilterNone:
		return f
	default:
		return FilterNone
	}
}

// Query is a single search request.
type Query struct {
	Term   string `json:"term"`
	Filter Filter `json:"filter"`
	Limit  int    `json:"limit"`
}

// New builds a Query with the term trimmed.
func New(term string, filter Filter, limit int) Query {
	return Query{
		Term:   strings.TrimSpace(term),
		Filter: filter,
		Limit:  limit,
	}
}

// Valid reports whether the query can produce results. Invalid queries
// resolve to an empty list without touching any adapter.
func (q Query) Valid() bool {
	if q.Term == "" || q.Limit <= 0 || q.Filter == FilterNone {
		return false
	}
	if q.IsTagSearch() && q.TagTerm() == "" {
		return false
	}
	return ParseFilter(string(q.Filter)) == q.Filter
}

// Normalized returns the lowercase term used for matching and scoring.
func (q Query) Normalized() string {
	return strings.ToLower(q.Term)
}

// IsTagSearch reports whether the term is a #tag query.
func (q Query) IsTagSearch() bool {
	return strings.HasPrefix(q.Term, TagPrefix)
}

// TagTerm returns the normalized term with a leading '#' stripped.
func (q Query) TagTerm() string {
	return strings.TrimSpace(strings.TrimPrefix(q.Normalized(), TagPrefix))
}

// CacheKey returns "lowercase(term)|filter|limit".
func (q Query) CacheKey() string {
	var b strings.Builder
	b.WriteString(q.Normalized())
	b.WriteByte('|')
	b.WriteString(string(q.Filter))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(q.Limit))
	return b.String()
}

// WithLimit returns a copy of q with a different limit.
func (q Query) WithLimit(limit int) Query {
	q.Limit = limit
	return q
}

// SubLimit returns percent% of limit rounded up. Buckets are rounded
// independently, so their sum may exceed limit; callers truncate the merged
// list to enforce the real bound.
func SubLimit(limit, percent int) int {
	if limit <= 0 || percent <= 0 {
		return 0
	}
	return (limit*percent + 99) / 100
}
