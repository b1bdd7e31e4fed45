package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
	"PaperScanner/internal/retry"
)

// DefaultMaxPapersPerFeed caps the new papers taken from one feed per cycle.
const DefaultMaxPapersPerFeed = 10

// CycleDeps wires the components a cycle drives.
type CycleDeps struct {
	Fetcher     ports.FeedFetcher
	Health      *HealthTracker
	Dedup       *DedupStore
	Processor   *Processor
	Distributor *Distributor
	Retry       retry.Policy
	Workers     int
	MaxPerFeed  int
	FeedDelay   time.Duration
	Logger      *slog.Logger
}

// CycleRunner executes discover, process and distribute over configured feeds.
type CycleRunner struct {
	fetcher     ports.FeedFetcher
	health      *HealthTracker
	dedup       *DedupStore
	processor   *Processor
	distributor *Distributor
	policy      retry.Policy
	workers     int
	maxPerFeed  int
	feedDelay   time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewCycleRunner constructs the cycle runner.
func NewCycleRunner(deps CycleDeps) *CycleRunner {
	workers := deps.Workers
	if workers < 1 {
		workers = 1
	}
	maxPerFeed := deps.MaxPerFeed
	if maxPerFeed < 1 {
		maxPerFeed = DefaultMaxPapersPerFeed
	}
	return &CycleRunner{
		fetcher:     deps.Fetcher,
		health:      deps.Health,
		dedup:       deps.Dedup,
		processor:   deps.Processor,
		distributor: deps.Distributor,
		policy:      deps.Retry,
		workers:     workers,
		maxPerFeed:  maxPerFeed,
		feedDelay:   deps.FeedDelay,
		logger:      deps.Logger,
		now:         time.Now,
	}
}

// RunFeed runs a cycle restricted to the feed whose ID or name is feedID.
func (r *CycleRunner) RunFeed(ctx context.Context, feedID string, feeds []domain.FeedSource, channels []domain.ChannelConfig) (CycleReport, error) {
	for _, feed := range feeds {
		if feed.ID == feedID || feed.Name == feedID {
			return r.RunCycle(ctx, []domain.FeedSource{feed}, channels), nil
		}
	}
	return CycleReport{}, fmt.Errorf("feed %s: %w", feedID, domain.ErrNotFound)
}

// RunCycle fetches every feed, processes new candidates on a bounded pool and
// distributes each processed paper. Per-paper failures land in the report.
func (r *CycleRunner) RunCycle(ctx context.Context, feeds []domain.FeedSource, channels []domain.ChannelConfig) CycleReport {
	report := &CycleReport{StartedAt: r.now().UTC()}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(r.workers)

	seen := map[string]bool{}
	for i, feed := range feeds {
		if ctx.Err() != nil {
			r.info("cycle cancelled before fetching feed", "feed", feed.Name)
			break
		}
		if i > 0 && r.feedDelay > 0 {
			if !sleepCtx(ctx, r.feedDelay) {
				break
			}
		}

		feedReport, work := r.discover(ctx, feed, seen)
		mu.Lock()
		report.Feeds = append(report.Feeds, feedReport)
		mu.Unlock()

		for _, candidate := range work {
			if ctx.Err() != nil {
				mu.Lock()
				report.Skipped = append(report.Skipped, candidate.ID)
				mu.Unlock()
				continue
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					mu.Lock()
					report.Skipped = append(report.Skipped, candidate.ID)
					mu.Unlock()
					return nil
				}
				r.handle(context.WithoutCancel(ctx), candidate, channels, report, &mu)
				return nil
			})
		}
	}

	_ = g.Wait()
	report.FinishedAt = r.now().UTC()
	r.info("cycle finished", "summary", report.String())
	for _, broken := range report.BrokenFeeds() {
		r.warn("feed broken", "feed", broken.FeedID, "reason", broken.Reason)
	}
	return *report
}

// discover fetches feed, classifies the outcome and selects the candidates
// this cycle will work on.
func (r *CycleRunner) discover(ctx context.Context, feed domain.FeedSource, seen map[string]bool) (FeedReport, []domain.Candidate) {
	outcome := r.fetch(ctx, feed)

	record, err := r.health.Record(ctx, feed, outcome)
	if err != nil {
		r.warn("feed health not persisted", "feed", feed.Name, "error", err)
		if record.Status == "" {
			record, _ = domain.Classify(feed, outcome, r.now().UTC(), 0)
		}
	}
	feedReport := FeedReport{Health: record, Candidates: len(outcome.Candidates)}
	if record.Status == domain.HealthBroken || outcome.Kind != domain.OutcomeEntries {
		return feedReport, nil
	}

	var unique []domain.Candidate
	for _, c := range outcome.Candidates {
		if c.ID == "" || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		if c.FeedID == "" {
			c.FeedID = feed.ID
		}
		unique = append(unique, c)
	}

	fresh, err := r.dedup.FilterNew(ctx, unique)
	if err != nil {
		r.warn("dedup lookup failed, skipping feed", "feed", feed.Name, "error", err)
		return feedReport, nil
	}

	limit := r.maxPerFeed
	if feed.MaxPapers > 0 {
		limit = feed.MaxPapers
	}
	if len(fresh) > limit {
		feedReport.Deferred = len(fresh) - limit
		fresh = fresh[:limit]
	}
	feedReport.New = len(fresh)
	r.debug("feed discovered", "feed", feed.Name, "candidates", feedReport.Candidates, "new", feedReport.New, "deferred", feedReport.Deferred)
	return feedReport, fresh
}

func (r *CycleRunner) fetch(ctx context.Context, feed domain.FeedSource) domain.FetchOutcome {
	if r.fetcher == nil {
		return domain.FetchFailure("no fetcher configured")
	}
	outcome, err := retry.Do(ctx, r.policy, func(int) (domain.FetchOutcome, error) {
		return r.fetcher.Fetch(ctx, feed)
	}, func(attempt int, err error, wait time.Duration) {
		r.debug("feed fetch failed, retrying", "feed", feed.Name, "attempt", attempt, "wait", wait, "error", err)
	})
	if err != nil {
		return domain.FetchFailure(err.Error())
	}
	return outcome
}

func (r *CycleRunner) handle(ctx context.Context, candidate domain.Candidate, channels []domain.ChannelConfig, report *CycleReport, mu *sync.Mutex) {
	paper, err := r.processor.Process(ctx, candidate, ProcessOptions{})
	if err != nil {
		mu.Lock()
		defer mu.Unlock()
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			report.Skipped = append(report.Skipped, candidate.ID)
			return
		}
		r.warn("paper failed", "paper", candidate.ID, "feed", candidate.FeedID, "error", err)
		report.Failures = append(report.Failures, PaperFailure{PaperID: candidate.ID, FeedID: candidate.FeedID, Stage: StageProcess, Err: err})
		return
	}

	var attempts []domain.DistributionAttempt
	if r.distributor != nil {
		attempts, err = r.distributor.Distribute(ctx, paper, channels, DistributeOptions{})
	}

	mu.Lock()
	defer mu.Unlock()
	report.Processed = append(report.Processed, paper)
	report.Attempts = append(report.Attempts, attempts...)
	if err != nil {
		r.warn("distribution incomplete", "paper", paper.ID, "error", err)
		report.Failures = append(report.Failures, PaperFailure{PaperID: paper.ID, FeedID: paper.FeedID, Stage: StageDistribute, Err: err})
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *CycleRunner) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *CycleRunner) info(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}

func (r *CycleRunner) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
