// Package feed ranks posts for a personalized recommendation feed. Scoring is
// a fixed weighted sum of recency, views, read time, genre affinity and
// engagement; it does no text matching and shares no state with search.
package feed

import (
	"math"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/content"
)

// DefaultTopN is the feed size when the caller does not choose one.
const DefaultTopN = 6

// Signal weights.
const (
	WeightRecency    = 0.30
	WeightViews      = 0.20
	WeightReadTime   = 0.20
	WeightGenreMatch = 0.15
	WeightEngagement = 0.15
)

// Saturation points for the normalized signals.
const (
	recencyDecayDays   = 30.0
	viewsSaturation    = 100.0
	readTimeSaturation = 300.0
	hoursPerDay        = 24.0
)

// ViewerProfile is the caller's view of a reader's interests. It is read-only
// to the scorer.
type ViewerProfile struct {
	// GenreAffinity maps a lowercased genre to an affinity in [0,1].
	GenreAffinity map[string]float64 `json:"genre_affinity"`
}

// ProfileFromHistory derives affinities from how often the reader opened
// each genre: a genre's affinity is its share of the history.
func ProfileFromHistory(history map[string]int) ViewerProfile {
	var total int
	for _, n := range history {
		if n > 0 {
			total += n
		}
	}
	p := ViewerProfile{GenreAffinity: make(map[string]float64, len(history))}
	if total == 0 {
		return p
	}
	for genre, n := range history {
		if n <= 0 {
			continue
		}
		p.GenreAffinity[strings.ToLower(genre)] += float64(n) / float64(total)
	}
	return p
}

// Affinity returns the profile's affinity for genre clamped to [0,1].
func (p ViewerProfile) Affinity(genre string) float64 {
	if genre == "" || p.GenreAffinity == nil {
		return 0
	}
	a, ok := p.GenreAffinity[strings.ToLower(genre)]
	if !ok {
		return 0
	}
	return math.Max(0, math.Min(a, 1))
}

// Breakdown is a scored post's per-signal contribution before weighting.
// Engagement is the raw candidate value: unlike the other signals it is not
// normalized, so its effect depends on the scale the data store produces.
type Breakdown struct {
	Recency    float64 `json:"recency"`
	Views      float64 `json:"views"`
	ReadTime   float64 `json:"read_time"`
	GenreMatch float64 `json:"genre_match"`
	Engagement float64 `json:"engagement"`
	Total      float64 `json:"total"`
}

// Explain computes every signal for p and their weighted total.
func Explain(p content.Post, profile ViewerProfile, now time.Time) Breakdown {
	ageDays := now.Sub(p.CreatedAt).Hours() / hoursPerDay
	if ageDays < 0 {
		ageDays = 0
	}
	b := Breakdown{
		Recency:    math.Exp(-ageDays / recencyDecayDays),
		Views:      math.Min(float64(p.Views)/viewsSaturation, 1),
		ReadTime:   math.Min(p.AverageReadTimeSeconds/readTimeSaturation, 1),
		GenreMatch: profile.Affinity(p.Genre),
		Engagement: p.EngagementScore,
	}
	b.Total = b.Recency*WeightRecency +
		b.Views*WeightViews +
		b.ReadTime*WeightReadTime +
		b.GenreMatch*WeightGenreMatch +
		b.Engagement*WeightEngagement
	return b
}

// Score is the weighted feed score of p for profile at now.
func Score(p content.Post, profile ViewerProfile, now time.Time) float64 {
	return Explain(p, profile, now).Total
}
