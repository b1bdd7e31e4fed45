package parser

import (
	"context"
	"fmt"
	"log/slog"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
	"PaperScanner/internal/scanner"
)

// StrategySource implements FeedFetcher by dispatching each feed to the
// scanner registered for its kind.
type StrategySource struct {
	registry *scanner.Registry
	logger   *slog.Logger
}

var _ ports.FeedFetcher = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry.
func NewStrategySource(reg *scanner.Registry, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		logger:   log,
	}
}

// Fetch resolves the scanner for feed.Kind and runs it. Candidates without a
// feed mapping are attributed to feed.
func (s *StrategySource) Fetch(ctx context.Context, feed domain.FeedSource) (domain.FetchOutcome, error) {
	if s.registry == nil {
		return domain.FetchOutcome{}, fmt.Errorf("scanner registry is not configured")
	}

	kind := feed.Kind
	if kind == "" {
		kind = domain.FeedKindRSS
	}
	strategy, err := s.registry.Resolve(kind)
	if err != nil {
		return domain.FetchOutcome{}, fmt.Errorf("feed %s: %w", feed.Name, err)
	}

	s.debug("fetch feed", "feed", feed.Name, "kind", kind, "url", feed.ID)
	outcome, err := strategy.Fetch(ctx, feed)
	if err != nil {
		return domain.FetchOutcome{}, fmt.Errorf("fetch feed %s: %w", feed.Name, err)
	}

	for i := range outcome.Candidates {
		if outcome.Candidates[i].FeedID == "" {
			outcome.Candidates[i].FeedID = feed.ID
		}
	}
	s.debug("feed produced candidates", "feed", feed.Name, "count", len(outcome.Candidates))
	return outcome, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
