// Package result defines the scored search hit returned by the router: a
// tagged union over post, author and tag records carrying an integer
// relevance.
package result

import (
	"slices"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/content"
)

// Kind identifies which record a Result carries.
type Kind string

const (
	KindPost   Kind = "post"
	KindAuthor Kind = "author"
	KindTag    Kind = "tag"
)

// Result is one search hit. Exactly one of Post, Author or Tag is set,
// matching Kind.
type Result struct {
	Kind      Kind              `json:"kind"`
	Relevance int               `json:"relevance"`
	Post      *content.Post     `json:"post,omitempty"`
	Author    *content.Author   `json:"author,omitempty"`
	Tag       *content.TagUsage `json:"tag,omitempty"`

	// Scored is set once Relevance is final, either assigned by an adapter
	// route or computed by the scorer.
	Scored bool `json:"-"`
}

func FromPost(p content.Post) Result {
	return Result{Kind: KindPost, Post: &p}
}

func FromAuthor(a content.Author) Result {
	return Result{Kind: KindAuthor, Author: &a}
}

func FromTag(t content.TagUsage) Result {
	return Result{Kind: KindTag, Tag: &t}
}

// WithRelevance returns a copy of r with a final relevance.
func (r Result) WithRelevance(relevance int) Result {
	if relevance < 0 {
		relevance = 0
	}
	r.Relevance = relevance
	r.Scored = true
	return r
}

// Clone returns a copy of r that shares no memory with it.
func (r Result) Clone() Result {
	if r.Post != nil {
		p := *r.Post
		p.Tags = slices.Clone(p.Tags)
		r.Post = &p
	}
	if r.Author != nil {
		a := *r.Author
		r.Author = &a
	}
	if r.Tag != nil {
		t := *r.Tag
		r.Tag = &t
	}
	return r
}

// CloneAll deep-copies rs. A nil list stays nil.
func CloneAll(rs []Result) []Result {
	if rs == nil {
		return nil
	}
	out := make([]Result, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}

// Valid reports whether r is a well-formed union value.
func (r Result) Valid() bool {
	if r.Relevance < 0 {
		return false
	}
	set := 0
	for _, ok := range []bool{r.Post != nil, r.Author != nil, r.Tag != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return false
	}
	switch r.Kind {
	case KindPost:
		return r.Post != nil
	case KindAuthor:
		return r.Author != nil
	case KindTag:
		return r.Tag != nil
	}
	return false
}

// ID returns a kind-qualified identifier, e.g. "post:42" or "tag:golang".
func (r Result) ID() string {
	switch {
	case r.Post != nil:
		return "post:" + r.Post.ID
	case r.Author != nil:
		return "author:" + r.Author.ID
	case r.Tag != nil:
		return "tag:" + r.Tag.Name
	}
	return ""
}

// Sort orders rs by relevance descending. Equal relevances keep their
// original order.
func Sort(rs []Result) {
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].Relevance > rs[j].Relevance
	})
}

// Truncate caps rs at limit.
func Truncate(rs []Result, limit int) []Result {
	if limit >= 0 && len(rs) > limit {
		return rs[:limit]
	}
	return rs
}

// IsSorted reports whether rs is ordered by relevance descending.
func IsSorted(rs []Result) bool {
	for i := 1; i < len(rs); i++ {
		if rs[i-1].Relevance < rs[i].Relevance {
			return false
		}
	}
	return true
}
