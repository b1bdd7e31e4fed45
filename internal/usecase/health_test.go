package usecase

import (
	"context"
	"testing"
	"time"

	"PaperScanner/internal/domain"
)

func TestHealthTrackerPersistsCounters(t *testing.T) {
	t.Parallel()

	states := newMemoryFeedStates()
	tracker := NewHealthTracker(states, 3, nil)
	tracker.now = func() time.Time { return time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC) } // Monday

	feed := domain.FeedSource{ID: "https://example.org/rss", Name: "example"}
	want := []domain.HealthStatus{domain.HealthSuspect, domain.HealthSuspect, domain.HealthSuspect, domain.HealthBroken}
	for i, status := range want {
		record, err := tracker.Record(context.Background(), feed, domain.EmptySuccess())
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if record.Status != status {
			t.Fatalf("fetch %d: expected %s, got %s", i+1, status, record.Status)
		}
		if record.ConsecutiveEmptyFetches != i+1 {
			t.Fatalf("fetch %d: expected counter %d, got %d", i+1, i+1, record.ConsecutiveEmptyFetches)
		}
	}

	if _, err := tracker.Record(context.Background(), feed, domain.FetchFailure("timeout")); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if got := states.states[feed.ID].ConsecutiveEmptyFetches; got != 4 {
		t.Fatalf("failure must not touch the counter, got %d", got)
	}

	record, err := tracker.Record(context.Background(), feed, domain.Entries([]domain.Candidate{candidate("1")}))
	if err != nil {
		t.Fatalf("record entries: %v", err)
	}
	if record.Status != domain.HealthHealthy || states.states[feed.ID].ConsecutiveEmptyFetches != 0 {
		t.Fatalf("entries must reset the counter, got %+v", states.states[feed.ID])
	}
}

func TestHealthTrackerInspect(t *testing.T) {
	t.Parallel()

	states := newMemoryFeedStates()
	tracker := NewHealthTracker(states, 3, nil)
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return now }

	feed := domain.FeedSource{ID: "https://example.org/rss"}
	record, err := tracker.Inspect(context.Background(), feed)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if record.Status != domain.HealthUnknown {
		t.Fatalf("expected UNKNOWN before any fetch, got %s", record.Status)
	}

	if _, err := tracker.Record(context.Background(), feed, domain.FetchFailure("dns")); err != nil {
		t.Fatalf("record: %v", err)
	}
	record, err = tracker.Inspect(context.Background(), feed)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if record.Status != domain.HealthBroken {
		t.Fatalf("expected BROKEN after failed fetch, got %s", record.Status)
	}
}
