package usecase

import (
	"context"
	"errors"
	"fmt"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
)

// DedupStore answers "has this paper been processed" and records processed papers.
type DedupStore struct {
	repo ports.PaperRepository
}

// NewDedupStore wraps the paper repository.
func NewDedupStore(repo ports.PaperRepository) *DedupStore {
	return &DedupStore{repo: repo}
}

// IsNew reports whether no processed record exists for paperID.
func (d *DedupStore) IsNew(ctx context.Context, paperID string) (bool, error) {
	known, err := d.repo.ProcessedIDs(ctx, []string{paperID})
	if err != nil {
		return false, fmt.Errorf("check paper %s: %w", paperID, err)
	}
	return !known[paperID], nil
}

// FilterNew drops candidates that were already processed, keeping order.
func (d *DedupStore) FilterNew(ctx context.Context, candidates []domain.Candidate) ([]domain.Candidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	known, err := d.repo.ProcessedIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load processed ids: %w", err)
	}

	fresh := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !known[c.ID] {
			fresh = append(fresh, c)
		}
	}
	return fresh, nil
}

// MarkProcessed stores paper unless a record already exists, in which case
// domain.ErrAlreadyProcessed is returned and the first record is kept.
func (d *DedupStore) MarkProcessed(ctx context.Context, paper domain.Paper) error {
	if err := validatePaper(paper); err != nil {
		return err
	}
	if err := d.repo.InsertPaper(ctx, paper); err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			return err
		}
		return fmt.Errorf("insert paper %s: %w", paper.ID, err)
	}
	return nil
}

// ForceReprocess overwrites any existing record for paper.
func (d *DedupStore) ForceReprocess(ctx context.Context, paper domain.Paper) error {
	if err := validatePaper(paper); err != nil {
		return err
	}
	if err := d.repo.UpsertPaper(ctx, paper); err != nil {
		return fmt.Errorf("upsert paper %s: %w", paper.ID, err)
	}
	return nil
}

func validatePaper(p domain.Paper) error {
	switch {
	case p.ID == "":
		return errors.New("paper id is empty")
	case p.ProcessedAt.IsZero():
		return fmt.Errorf("paper %s has no processed time", p.ID)
	case p.RelevanceScore < domain.MinRelevance || p.RelevanceScore > domain.MaxRelevance:
		return fmt.Errorf("paper %s relevance %d out of range", p.ID, p.RelevanceScore)
	}
	return nil
}
