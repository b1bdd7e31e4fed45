package parser

import (
	"context"
	"errors"
	"testing"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/scanner"
)

type staticScanner struct {
	kind    domain.FeedKind
	outcome domain.FetchOutcome
	err     error
}

func (s staticScanner) Kind() domain.FeedKind { return s.kind }

func (s staticScanner) Fetch(context.Context, domain.FeedSource) (domain.FetchOutcome, error) {
	return s.outcome, s.err
}

func TestStrategySourceDispatchesByKind(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry(
		staticScanner{kind: domain.FeedKindRSS, outcome: domain.Entries([]domain.Candidate{{ID: "rss-1"}})},
		staticScanner{kind: domain.FeedKindArxivListing, outcome: domain.EmptySuccess()},
	)
	src := NewStrategySource(reg, nil)

	outcome, err := src.Fetch(context.Background(), domain.FeedSource{ID: "https://feed", Name: "f"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(outcome.Candidates) != 1 || outcome.Candidates[0].FeedID != "https://feed" {
		t.Fatalf("expected rss candidate mapped to feed, got %+v", outcome)
	}

	outcome, err = src.Fetch(context.Background(), domain.FeedSource{ID: "https://list", Kind: domain.FeedKindArxivListing})
	if err != nil || outcome.Kind != domain.OutcomeEmpty {
		t.Fatalf("expected empty listing outcome, got %+v %v", outcome, err)
	}
}

func TestStrategySourceErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	src := NewStrategySource(scanner.NewRegistry(staticScanner{kind: domain.FeedKindRSS, err: boom}), nil)

	if _, err := src.Fetch(context.Background(), domain.FeedSource{Name: "f"}); !errors.Is(err, boom) {
		t.Fatalf("expected scanner error, got %v", err)
	}
	if _, err := src.Fetch(context.Background(), domain.FeedSource{Name: "f", Kind: domain.FeedKindArxivListing}); err == nil {
		t.Fatal("expected error for unregistered kind")
	}
}
