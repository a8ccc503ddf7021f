// Package scorer computes integer relevance for search hits. Scoring is pure
// and deterministic: additive rules over lowercase substring, prefix and
// equality matches, with large fixed bonuses so exact matches dominate.
package scorer

import (
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/content"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/result"
)

// Post rule weights.
const (
	postTitleContains  = 10
	postTitlePrefix    = 5
	postTitleExact     = 20
	postContentMatch   = 3
	postAuthorMatch    = 5
	postTagContains    = 8
	postTagExact       = 15
	postGenreMatch     = 4
	postHashtagMatch   = 20
	postFreshBoost     = 2
	postPopularBoost   = 1
	freshWindow        = 7 * 24 * time.Hour
	popularViewsCutoff = 100
)

// Author rule weights.
const (
	authorNameContains  = 10
	authorNamePrefix    = 5
	authorNameExact     = 20
	authorEmailContains = 7
	authorEmailExact    = 25
	authorAboutMatch    = 3
)

// Tag boosts. Only the strongest applicable boost is added to the usage count.
const (
	tagExact    = 100
	tagPrefix   = 50
	tagContains = 10
)

// Post scores p against a normalized term. A #term only scores tag
// membership, never the literal '#' string against title or body.
func Post(p content.Post, term string, now time.Time) int {
	if term == "" {
		return 0
	}
	score := 0
	if tag, ok := strings.CutPrefix(term, query.TagPrefix); ok {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return 0
		}
		contains, exact := matchTags(p.Tags, tag)
		if contains {
			score += postTagContains + postHashtagMatch
		}
		if exact {
			score += postTagExact
		}
		return score + postBoosts(p, now)
	}

	title := strings.ToLower(p.Title)
	if strings.Contains(title, term) {
		score += postTitleContains
	}
	if strings.HasPrefix(title, term) {
		score += postTitlePrefix
	}
	if title == term {
		score += postTitleExact
	}
	if strings.Contains(strings.ToLower(p.Content), term) {
		score += postContentMatch
	}
	if strings.Contains(strings.ToLower(p.AuthorName), term) {
		score += postAuthorMatch
	}
	contains, exact := matchTags(p.Tags, term)
	if contains {
		score += postTagContains
	}
	if exact {
		score += postTagExact
	}
	if strings.Contains(strings.ToLower(p.Genre), term) {
		score += postGenreMatch
	}
	return score + postBoosts(p, now)
}

func postBoosts(p content.Post, now time.Time) int {
	score := 0
	if !p.CreatedAt.IsZero() && now.Sub(p.CreatedAt) < freshWindow {
		score += postFreshBoost
	}
	if p.Views > popularViewsCutoff {
		score += postPopularBoost
	}
	return score
}

func matchTags(tags []string, term string) (contains, exact bool) {
	for _, t := range tags {
		t = strings.ToLower(t)
		if t == term {
			exact = true
		}
		if strings.Contains(t, term) {
			contains = true
		}
	}
	return contains, exact
}

// Author scores a against a normalized term. Tag searches never match
// authors.
func Author(a content.Author, term string) int {
	if term == "" || strings.HasPrefix(term, query.TagPrefix) {
		return 0
	}
	score := 0
	name := strings.ToLower(a.Name)
	if strings.Contains(name, term) {
		score += authorNameContains
	}
	if strings.HasPrefix(name, term) {
		score += authorNamePrefix
	}
	if name == term {
		score += authorNameExact
	}
	email := strings.ToLower(a.Email)
	if strings.Contains(email, term) {
		score += authorEmailContains
	}
	if email == term {
		score += authorEmailExact
	}
	if strings.Contains(strings.ToLower(a.About), term) {
		score += authorAboutMatch
	}
	return score
}

// Tag scores an aggregated tag: its usage count plus the strongest of the
// exact, prefix or contains boosts. A leading '#' on term is ignored.
func Tag(t content.TagUsage, term string) int {
	term = strings.TrimSpace(strings.TrimPrefix(term, query.TagPrefix))
	score := t.Count
	if term == "" {
		return score
	}
	name := strings.ToLower(t.Name)
	switch {
	case name == term:
		score += tagExact
	case strings.HasPrefix(name, term):
		score += tagPrefix
	case strings.Contains(name, term):
		score += tagContains
	}
	return score
}

// Score returns r with its relevance computed against term. Results already
// carrying a final relevance are returned unchanged.
func Score(r result.Result, term string, now time.Time) result.Result {
	if r.Scored {
		return r
	}
	switch {
	case r.Post != nil:
		return r.WithRelevance(Post(*r.Post, term, now))
	case r.Author != nil:
		return r.WithRelevance(Author(*r.Author, term))
	case r.Tag != nil:
		return r.WithRelevance(Tag(*r.Tag, term))
	}
	return r.WithRelevance(0)
}

// ScoreAll scores every unscored result in rs in place.
func ScoreAll(rs []result.Result, term string, now time.Time) {
	for i := range rs {
		rs[i] = Score(rs[i], term, now)
	}
}
