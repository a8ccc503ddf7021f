package adapter

import (
	"context"
	"regexp"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/content"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/result"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/scorer"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Authors searches author profiles. Email-shaped terms try the exact email
// lookup first. Tag searches never reach the data source.
type Authors struct {
	base
	src content.Source
}

func NewAuthors(src content.Source, opts Options) *Authors {
	return &Authors{base: newBase("authors", opts), src: src}
}

func (a *Authors) Search(ctx context.Context, q query.Query) ([]result.Result, error) {
	if q.IsTagSearch() {
		return nil, nil
	}
	strategies := []Strategy{a.usernameLookup(q), a.substringFallback(q)}
	if emailPattern.MatchString(q.Term) {
		strategies = append([]Strategy{a.emailLookup(q)}, strategies...)
	}
	return a.run(ctx, q, strategies...)
}

func (a *Authors) emailLookup(q query.Query) Strategy {
	return Strategy{Name: "email-lookup", Run: func(ctx context.Context) ([]result.Result, error) {
		author, err := a.src.AuthorByEmail(ctx, q.Term)
		if err != nil || author == nil {
			return nil, err
		}
		return []result.Result{result.FromAuthor(*author).WithRelevance(RelevanceEmailExact)}, nil
	}}
}

func (a *Authors) usernameLookup(q query.Query) Strategy {
	return Strategy{Name: "username-lookup", Run: func(ctx context.Context) ([]result.Result, error) {
		author, err := a.src.AuthorByUsername(ctx, q.Term)
		if err != nil || author == nil {
			return nil, err
		}
		return []result.Result{result.FromAuthor(*author)}, nil
	}}
}

func (a *Authors) substringFallback(q query.Query) Strategy {
	return Strategy{Name: "substring-fallback", Run: func(ctx context.Context) ([]result.Result, error) {
		authors, err := a.src.ListAuthors(ctx, a.opts.FallbackPageSize)
		if err != nil {
			return nil, err
		}
		term := q.Normalized()
		var rs []result.Result
		for _, au := range authors {
			if strings.Contains(strings.ToLower(au.Name), term) ||
				strings.Contains(strings.ToLower(au.Email), term) ||
				strings.Contains(strings.ToLower(au.About), term) {
				rs = append(rs, result.FromAuthor(au).WithRelevance(scorer.Author(au, term)))
			}
		}
		result.Sort(rs)
		return rs, nil
	}}
}
