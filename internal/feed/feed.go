package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/content"
	apperrors "github.com/Adithya-Monish-Kumar-K/content-search/pkg/errors"
)

// Config tunes a Service.
type Config struct {
	TopN          int
	CandidatePage int
	Now           func() time.Time
}

// Service builds feeds, loading candidates from the data store when the
// caller supplies none.
type Service struct {
	src           content.Source
	topN          int
	candidatePage int
	now           func() time.Time
	logger        *slog.Logger
}

func NewService(src content.Source, cfg Config) *Service {
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	if cfg.CandidatePage <= 0 {
		cfg.CandidatePage = 100
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		src:           src,
		topN:          cfg.TopN,
		candidatePage: cfg.CandidatePage,
		now:           cfg.Now,
		logger:        slog.Default().With("component", "feed"),
	}
}

// Build ranks candidates for profile. A nil candidates slice loads the newest
// posts from the store; topN <= 0 uses the configured size.
func (s *Service) Build(ctx context.Context, profile ViewerProfile, candidates []content.Post, topN int) ([]Scored, error) {
	if topN <= 0 {
		topN = s.topN
	}
	if candidates == nil {
		posts, err := s.src.ListPosts(ctx, s.candidatePage)
		if err != nil {
			return nil, fmt.Errorf("loading feed candidates: %w", err)
		}
		candidates = posts
	}
	if err := Validate(candidates); err != nil {
		return nil, err
	}
	ranked := Rank(candidates, profile, topN, s.now())
	s.logger.Debug("feed built", "candidates", len(candidates), "returned", len(ranked))
	return ranked, nil
}

// Validate rejects candidates carrying negative signals.
func Validate(candidates []content.Post) error {
	for _, p := range candidates {
		switch {
		case p.Views < 0:
			return apperrors.Invalid("candidate %q has negative views", p.ID)
		case p.AverageReadTimeSeconds < 0:
			return apperrors.Invalid("candidate %q has negative read time", p.ID)
		case p.EngagementScore < 0:
			return apperrors.Invalid("candidate %q has negative engagement score", p.ID)
		}
	}
	return nil
}
