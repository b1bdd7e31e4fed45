package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"PaperScanner/internal/domain"
)

func TestMarkProcessedKeepsFirstRecord(t *testing.T) {
	t.Parallel()

	repo := newMemoryPapers()
	store := NewDedupStore(repo)
	ctx := context.Background()

	first := storedPaper("2401.00001", 8)
	if err := store.MarkProcessed(ctx, first); err != nil {
		t.Fatalf("first mark: %v", err)
	}

	second := storedPaper("2401.00001", 2)
	second.Summary = "different"
	err := store.MarkProcessed(ctx, second)
	if !errors.Is(err, domain.ErrAlreadyProcessed) {
		t.Fatalf("expected already processed, got %v", err)
	}

	got, _ := repo.GetPaper(ctx, first.ID)
	if got.RelevanceScore != 8 || got.Summary != first.Summary {
		t.Fatalf("first record was overwritten: %+v", got)
	}

	if err := store.ForceReprocess(ctx, second); err != nil {
		t.Fatalf("force: %v", err)
	}
	got, _ = repo.GetPaper(ctx, first.ID)
	if got.RelevanceScore != 2 {
		t.Fatalf("forced write not applied: %+v", got)
	}
}

func TestMarkProcessedConcurrentSingleWinner(t *testing.T) {
	t.Parallel()

	repo := newMemoryPapers()
	store := NewDedupStore(repo)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.MarkProcessed(context.Background(), storedPaper("race", 5)); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one successful write, got %d", wins)
	}
}

func TestFilterNew(t *testing.T) {
	t.Parallel()

	store := NewDedupStore(newMemoryPapers(storedPaper("b", 5)))
	fresh, err := store.FilterNew(context.Background(), []domain.Candidate{candidate("a"), candidate("b"), candidate("c")})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(fresh) != 2 || fresh[0].ID != "a" || fresh[1].ID != "c" {
		t.Fatalf("unexpected fresh candidates %+v", fresh)
	}

	isNew, err := store.IsNew(context.Background(), "b")
	if err != nil || isNew {
		t.Fatalf("expected b to be known, got new=%v err=%v", isNew, err)
	}
}

func TestMarkProcessedRejectsInvalidScore(t *testing.T) {
	t.Parallel()

	store := NewDedupStore(newMemoryPapers())
	if err := store.MarkProcessed(context.Background(), storedPaper("x", 11)); err == nil {
		t.Fatal("expected out-of-range score to be rejected")
	}
}
