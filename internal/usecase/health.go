package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
)

// HealthTracker classifies fetch outcomes and keeps the per-feed counters.
type HealthTracker struct {
	states    ports.FeedStateRepository
	threshold int
	logger    *slog.Logger
	now       func() time.Time
}

// NewHealthTracker wires the feed state store; threshold <= 0 uses the default.
func NewHealthTracker(states ports.FeedStateRepository, threshold int, logger *slog.Logger) *HealthTracker {
	if threshold <= 0 {
		threshold = domain.DefaultEmptyThreshold
	}
	return &HealthTracker{states: states, threshold: threshold, logger: logger, now: time.Now}
}

// Record applies outcome to the stored counters of feed and persists them.
// The returned record is valid even when persisting fails.
func (h *HealthTracker) Record(ctx context.Context, feed domain.FeedSource, outcome domain.FetchOutcome) (domain.FeedHealthRecord, error) {
	current, err := h.load(ctx, feed)
	if err != nil {
		return domain.FeedHealthRecord{}, err
	}

	record, updated := domain.Classify(current, outcome, h.now().UTC(), h.threshold)
	h.log(feed, record)

	if h.states == nil {
		return record, nil
	}
	if err := h.states.SaveFeedState(ctx, updated); err != nil {
		return record, fmt.Errorf("save feed state %s: %w", feed.ID, err)
	}
	return record, nil
}

// Inspect reports the health of feed from its stored counters without fetching.
func (h *HealthTracker) Inspect(ctx context.Context, feed domain.FeedSource) (domain.FeedHealthRecord, error) {
	current, err := h.load(ctx, feed)
	if err != nil {
		return domain.FeedHealthRecord{}, err
	}
	return domain.Inspect(current, h.now().UTC(), h.threshold), nil
}

func (h *HealthTracker) load(ctx context.Context, feed domain.FeedSource) (domain.FeedSource, error) {
	if h.states == nil {
		return feed, nil
	}
	current, err := h.states.LoadFeedState(ctx, feed)
	if err != nil {
		return domain.FeedSource{}, fmt.Errorf("load feed state %s: %w", feed.ID, err)
	}
	return current, nil
}

func (h *HealthTracker) log(feed domain.FeedSource, record domain.FeedHealthRecord) {
	if h.logger == nil {
		return
	}
	args := []any{
		"feed", feed.Name,
		"url", feed.ID,
		"status", record.Status,
		"entries", record.EntryCount,
		"consecutive_empty", record.ConsecutiveEmptyFetches,
	}
	if record.Reason != "" {
		args = append(args, "reason", record.Reason)
	}
	switch record.Status {
	case domain.HealthEmptyExpected:
		h.logger.Info("feed empty as expected", args...)
	case domain.HealthSuspect, domain.HealthBroken:
		h.logger.Warn("feed unhealthy", args...)
	default:
		h.logger.Debug("feed healthy", args...)
	}
}
