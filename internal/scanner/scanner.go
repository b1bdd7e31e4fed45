package scanner

import (
	"context"
	"fmt"

	"PaperScanner/internal/domain"
)

// Scanner captures a single feed strategy implementation (RSS, arXiv listing, etc.).
type Scanner interface {
	Kind() domain.FeedKind
	Fetch(ctx context.Context, feed domain.FeedSource) (domain.FetchOutcome, error)
}

// Registry keeps a mapping from feed kinds to their implementations.
type Registry struct {
	scanners map[domain.FeedKind]Scanner
}

// NewRegistry builds a registry holding the given scanners.
func NewRegistry(scanners ...Scanner) *Registry {
	r := &Registry{scanners: map[domain.FeedKind]Scanner{}}
	for _, s := range scanners {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[domain.FeedKind]Scanner{}
	}
	r.scanners[scanner.Kind()] = scanner
}

// Resolve returns a scanner by kind or an error if it is absent.
func (r *Registry) Resolve(kind domain.FeedKind) (Scanner, error) {
	if scanner, ok := r.scanners[kind]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", kind)
}

// Kinds lists the registered feed kinds.
func (r *Registry) Kinds() []domain.FeedKind {
	kinds := make([]domain.FeedKind, 0, len(r.scanners))
	for k := range r.scanners {
		kinds = append(kinds, k)
	}
	return kinds
}
