package scanner

import (
	"context"
	"testing"

	"PaperScanner/internal/domain"
)

type fakeScanner struct{ kind domain.FeedKind }

func (f fakeScanner) Kind() domain.FeedKind { return f.kind }

func (f fakeScanner) Fetch(context.Context, domain.FeedSource) (domain.FetchOutcome, error) {
	return domain.EmptySuccess(), nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(fakeScanner{kind: domain.FeedKindRSS})
	if _, err := reg.Resolve(domain.FeedKindRSS); err != nil {
		t.Fatalf("resolve rss: %v", err)
	}
	if _, err := reg.Resolve(domain.FeedKindArxivListing); err == nil {
		t.Fatal("expected error for unregistered kind")
	}

	reg.Register(fakeScanner{kind: domain.FeedKindArxivListing})
	if len(reg.Kinds()) != 2 {
		t.Fatalf("expected 2 kinds, got %v", reg.Kinds())
	}
}
