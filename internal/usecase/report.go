package usecase

import (
	"fmt"
	"time"

	"PaperScanner/internal/domain"
)

// Processing stages reported for per-paper failures.
const (
	StageProcess    = "process"
	StageDistribute = "distribute"
)

// FeedReport summarizes one feed inside a cycle.
type FeedReport struct {
	Health     domain.FeedHealthRecord
	Candidates int
	New        int
	Deferred   int
}

// PaperFailure records a paper that failed during a cycle.
type PaperFailure struct {
	PaperID string
	FeedID  string
	Stage   string
	Err     error
}

// CycleReport is the aggregated result of one cycle. It is always returned,
// even when every feed or paper failed.
type CycleReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Feeds      []FeedReport
	Processed  []domain.Paper
	Failures   []PaperFailure
	// Skipped holds papers left for a later cycle: not started before
	// cancellation, or processed concurrently by someone else.
	Skipped  []string
	Attempts []domain.DistributionAttempt
}

// BrokenFeeds returns the feeds classified BROKEN in this cycle.
func (r CycleReport) BrokenFeeds() []domain.FeedHealthRecord {
	var out []domain.FeedHealthRecord
	for _, f := range r.Feeds {
		if f.Health.Status == domain.HealthBroken {
			out = append(out, f.Health)
		}
	}
	return out
}

// FailedAttempts returns the distribution attempts that did not succeed.
func (r CycleReport) FailedAttempts() []domain.DistributionAttempt {
	var out []domain.DistributionAttempt
	for _, a := range r.Attempts {
		if !a.Success {
			out = append(out, a)
		}
	}
	return out
}

// Sent counts successful distribution attempts.
func (r CycleReport) Sent() int {
	return len(r.Attempts) - len(r.FailedAttempts())
}

// String renders a one-line summary for logs and the CLI.
func (r CycleReport) String() string {
	return fmt.Sprintf("feeds=%d broken=%d processed=%d failed=%d skipped=%d sent=%d send_failures=%d duration=%s",
		len(r.Feeds), len(r.BrokenFeeds()), len(r.Processed), len(r.Failures), len(r.Skipped),
		r.Sent(), len(r.FailedAttempts()), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
}
