package adapter

import (
	"context"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/content"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/result"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/scorer"
)

// PostMode selects the strategy chain a Posts adapter runs.
type PostMode int

const (
	// ModePosts tries the exact title, then content, then a scored bulk scan.
	ModePosts PostMode = iota
	// ModeTitle tries the exact title, then a bulk title-substring scan.
	ModeTitle
	// ModeContent tries the content lookup, then a scored bulk content scan.
	ModeContent
	// ModeTitleExact only runs the direct title lookup.
	ModeTitleExact
	// ModeBlended tries content, then a scored bulk scan. Used by the
	// blended phase of an all-filter search after the title lookup missed.
	ModeBlended
)

var postModeNames = map[PostMode]string{
	ModePosts:      "posts",
	ModeTitle:      "title",
	ModeContent:    "content",
	ModeTitleExact: "title-exact",
	ModeBlended:    "posts-blended",
}

// Posts searches posts. A #tag term always takes the tag route whatever the
// mode, so the literal '#' string is never matched against titles or bodies.
type Posts struct {
	base
	src  content.Source
	mode PostMode
}

// NewPosts creates a post adapter running the given mode.
func NewPosts(src content.Source, mode PostMode, opts Options) *Posts {
	return &Posts{
		base: newBase(postModeNames[mode], opts),
		src:  src,
		mode: mode,
	}
}

func (a *Posts) Search(ctx context.Context, q query.Query) ([]result.Result, error) {
	if q.IsTagSearch() {
		return a.run(ctx, q, a.tagDirect(q), a.tagFallback(q))
	}
	switch a.mode {
	case ModeTitle:
		return a.run(ctx, q, a.titleDirect(q), a.titleFallback(q))
	case ModeContent:
		return a.run(ctx, q, a.contentDirect(q), a.bulk(q, "content-fallback", contentMatches))
	case ModeTitleExact:
		return a.run(ctx, q, a.titleDirect(q))
	case ModeBlended:
		return a.run(ctx, q, a.contentDirect(q), a.bulk(q, "bulk-filter", anyFieldMatches))
	default:
		return a.run(ctx, q, a.titleDirect(q), a.contentDirect(q), a.bulk(q, "bulk-filter", anyFieldMatches))
	}
}

func (a *Posts) titleDirect(q query.Query) Strategy {
	return Strategy{Name: "title-lookup", Run: func(ctx context.Context) ([]result.Result, error) {
		posts, err := a.src.PostsByTitle(ctx, q.Term, q.Limit)
		if err != nil {
			return nil, err
		}
		return fixed(fromPosts(posts), RelevanceTitleDirect), nil
	}}
}

func (a *Posts) titleFallback(q query.Query) Strategy {
	return Strategy{Name: "title-fallback", Run: func(ctx context.Context) ([]result.Result, error) {
		posts, err := a.scan(ctx, q, func(p content.Post, term string) bool {
			return strings.Contains(strings.ToLower(p.Title), term)
		})
		if err != nil {
			return nil, err
		}
		return fixed(fromPosts(posts), RelevanceTitleFallback), nil
	}}
}

func (a *Posts) contentDirect(q query.Query) Strategy {
	return Strategy{Name: "content-lookup", Run: func(ctx context.Context) ([]result.Result, error) {
		posts, err := a.src.PostsByContent(ctx, q.Term, q.Limit)
		if err != nil {
			return nil, err
		}
		return fixed(fromPosts(posts), RelevanceContentDirect), nil
	}}
}

func (a *Posts) tagDirect(q query.Query) Strategy {
	return Strategy{Name: "tag-lookup", Run: func(ctx context.Context) ([]result.Result, error) {
		posts, err := a.src.PostsByTag(ctx, q.TagTerm(), q.Limit)
		if err != nil {
			return nil, err
		}
		return fixed(fromPosts(posts), RelevanceTagDirect), nil
	}}
}

func (a *Posts) tagFallback(q query.Query) Strategy {
	return Strategy{Name: "tag-fallback", Run: func(ctx context.Context) ([]result.Result, error) {
		tag := q.TagTerm()
		posts, err := a.scan(ctx, q, func(p content.Post, _ string) bool {
			for _, t := range p.Tags {
				if strings.Contains(strings.ToLower(t), tag) {
					return true
				}
			}
			return false
		})
		if err != nil {
			return nil, err
		}
		return fixed(fromPosts(posts), RelevanceTagFallback), nil
	}}
}

// bulk scans a listing page with match and ranks the hits by the scorer.
func (a *Posts) bulk(q query.Query, name string, match func(content.Post, string) bool) Strategy {
	return Strategy{Name: name, Run: func(ctx context.Context) ([]result.Result, error) {
		posts, err := a.scan(ctx, q, match)
		if err != nil {
			return nil, err
		}
		rs := fromPosts(posts)
		scorer.ScoreAll(rs, q.Normalized(), a.opts.Now())
		result.Sort(rs)
		return rs, nil
	}}
}

// scan lists one fallback page and keeps the posts match accepts. The caller
// truncates to the limit after ranking.
func (a *Posts) scan(ctx context.Context, q query.Query, match func(content.Post, string) bool) ([]content.Post, error) {
	page, err := a.src.ListPosts(ctx, a.opts.FallbackPageSize)
	if err != nil {
		return nil, err
	}
	term := q.Normalized()
	var out []content.Post
	for _, p := range page {
		if !p.Deleted && match(p, term) {
			out = append(out, p)
		}
	}
	return out, nil
}

func contentMatches(p content.Post, term string) bool {
	return strings.Contains(strings.ToLower(p.Content), term)
}

func anyFieldMatches(p content.Post, term string) bool {
	for _, field := range []string{p.Title, p.Content, p.AuthorName, p.Genre} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t), term) {
			return true
		}
	}
	return false
}

func fromPosts(posts []content.Post) []result.Result {
	rs := make([]result.Result, len(posts))
	for i, p := range posts {
		rs[i] = result.FromPost(p)
	}
	return rs
}
