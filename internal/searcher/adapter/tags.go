package adapter

import (
	"context"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/content"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/result"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/scorer"
)

// Tags aggregates tag usage across posts and returns the tags matching the
// term, ranked by the tag scorer. A leading '#' on the term is ignored.
type Tags struct {
	base
	src content.Source
}

func NewTags(src content.Source, opts Options) *Tags {
	return &Tags{base: newBase("tags", opts), src: src}
}

func (a *Tags) Search(ctx context.Context, q query.Query) ([]result.Result, error) {
	tag := q.TagTerm()
	if tag == "" {
		return nil, nil
	}
	return a.run(ctx, q,
		Strategy{Name: "listing-aggregate", Run: func(ctx context.Context) ([]result.Result, error) {
			posts, err := a.src.ListPosts(ctx, a.opts.FallbackPageSize)
			if err != nil {
				return nil, err
			}
			return rankTags(Aggregate(posts, tag), tag), nil
		}},
		Strategy{Name: "tag-lookup", Run: func(ctx context.Context) ([]result.Result, error) {
			posts, err := a.src.PostsByTag(ctx, tag, a.opts.FallbackPageSize)
			if err != nil {
				return nil, err
			}
			return rankTags(Aggregate(posts, tag), tag), nil
		}},
	)
}

// Aggregate counts, for each tag containing term, how many of posts carry it.
// Deleted posts are ignored. The result is ordered by count, then name.
func Aggregate(posts []content.Post, term string) []content.TagUsage {
	counts := make(map[string]int)
	for _, p := range posts {
		if p.Deleted {
			continue
		}
		seen := make(map[string]bool, len(p.Tags))
		for _, t := range p.Tags {
			t = strings.ToLower(strings.TrimSpace(t))
			if t == "" || seen[t] || !strings.Contains(t, term) {
				continue
			}
			seen[t] = true
			counts[t]++
		}
	}
	usage := make([]content.TagUsage, 0, len(counts))
	for name, n := range counts {
		usage = append(usage, content.TagUsage{Name: name, Count: n})
	}
	sort.Slice(usage, func(i, j int) bool {
		if usage[i].Count != usage[j].Count {
			return usage[i].Count > usage[j].Count
		}
		return usage[i].Name < usage[j].Name
	})
	return usage
}

func rankTags(usage []content.TagUsage, term string) []result.Result {
	rs := make([]result.Result, len(usage))
	for i, u := range usage {
		rs[i] = result.FromTag(u).WithRelevance(scorer.Tag(u, term))
	}
	result.Sort(rs)
	return rs
}
