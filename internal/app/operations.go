package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"PaperScanner/internal/config"
	"PaperScanner/internal/domain"
	"PaperScanner/internal/infrastructure/storage"
	"PaperScanner/internal/ports"
	"PaperScanner/internal/usecase"
)

// RunCycle runs one cycle now, over every feed or only feedID when set.
func (a *Application) RunCycle(ctx context.Context, feedID string) (usecase.CycleReport, error) {
	if err := a.cfg.RequireFeeds(); err != nil {
		return usecase.CycleReport{}, err
	}

	var report usecase.CycleReport
	if feedID != "" {
		var err error
		if report, err = a.cycle.RunFeed(ctx, feedID, a.feeds, a.channels); err != nil {
			return usecase.CycleReport{}, err
		}
	} else {
		report = a.cycle.RunCycle(ctx, a.feeds, a.channels)
	}
	a.logReport(report)
	return report, nil
}

// Health re-derives the status of every configured feed from stored counters.
func (a *Application) Health(ctx context.Context) ([]domain.FeedHealthRecord, error) {
	records := make([]domain.FeedHealthRecord, 0, len(a.feeds))
	for _, feed := range a.feeds {
		record, err := a.health.Inspect(ctx, feed)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// ProcessRequest selects one paper by URL or arXiv ID.
type ProcessRequest struct {
	URL      string
	ID       string
	Force    bool
	SaveOnly bool
}

// ProcessResult is the outcome of ProcessPaper.
type ProcessResult struct {
	Paper    domain.Paper
	Attempts []domain.DistributionAttempt
}

// ProcessPaper processes one paper outside a cycle. Unless Force is set an
// already processed paper is returned as is with domain.ErrAlreadyProcessed.
func (a *Application) ProcessPaper(ctx context.Context, req ProcessRequest) (ProcessResult, error) {
	sourceURL := strings.TrimSpace(req.URL)
	switch {
	case sourceURL == "" && req.ID == "":
		return ProcessResult{}, errors.New("process: url or id is required")
	case sourceURL == "":
		sourceURL = domain.ArxivAbsURL(req.ID)
	}

	id := domain.ArxivID(sourceURL)
	if id == "" {
		id = domain.NormalizeArxivID(req.ID)
	}

	if id != "" && !req.Force {
		fresh, err := a.dedup.IsNew(ctx, id)
		if err != nil {
			return ProcessResult{}, err
		}
		if !fresh {
			existing, err := a.repo.GetPaper(ctx, id)
			if err != nil {
				return ProcessResult{}, err
			}
			return ProcessResult{Paper: existing}, fmt.Errorf("paper %s: %w", id, domain.ErrAlreadyProcessed)
		}
	}

	candidate := domain.Candidate{ID: id, SourceURL: sourceURL}
	if a.resolver != nil {
		resolved, err := a.resolver.Resolve(ctx, sourceURL)
		if err != nil {
			a.logger.Warn("metadata unavailable", "url", sourceURL, "error", err)
		} else {
			candidate = resolved
			if candidate.ID == "" {
				candidate.ID = id
			}
			if candidate.SourceURL == "" {
				candidate.SourceURL = sourceURL
			}
		}
	}
	if candidate.ID == "" {
		return ProcessResult{}, fmt.Errorf("process: cannot derive a paper id from %s", sourceURL)
	}

	paper, err := a.processor.Process(ctx, candidate, usecase.ProcessOptions{Force: req.Force})
	if err != nil {
		return ProcessResult{}, err
	}
	result := ProcessResult{Paper: paper}
	if req.SaveOnly {
		return result, nil
	}

	result.Attempts, err = a.distributor.Distribute(ctx, paper, a.channels, usecase.DistributeOptions{})
	return result, err
}

// DistributeRequest selects papers and channels for manual distribution.
type DistributeRequest struct {
	PaperID      string
	Days         int
	MinRelevance int
	Channel      domain.ChannelType
	Target       string
	DryRun       bool
}

// Distribute sends one paper, or every paper processed in the last Days,
// through the configured channels.
func (a *Application) Distribute(ctx context.Context, req DistributeRequest) ([]domain.DistributionAttempt, error) {
	channels, err := a.selectChannels(req.Channel, req.Target)
	if err != nil {
		return nil, err
	}

	var papers []domain.Paper
	if req.PaperID != "" {
		paper, err := a.repo.GetPaper(ctx, domain.NormalizeArxivID(req.PaperID))
		if err != nil {
			return nil, err
		}
		papers = append(papers, paper)
	} else {
		days := req.Days
		if days <= 0 {
			days = 1
		}
		papers, err = a.repo.ListPapers(ctx, ports.PaperFilter{
			From:     a.now().UTC().AddDate(0, 0, -days),
			MinScore: req.MinRelevance,
		})
		if err != nil {
			return nil, err
		}
	}

	var (
		attempts []domain.DistributionAttempt
		errs     []error
	)
	for _, paper := range papers {
		made, err := a.distributor.Distribute(ctx, paper, channels, usecase.DistributeOptions{DryRun: req.DryRun})
		attempts = append(attempts, made...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return attempts, errors.Join(errs...)
}

// selectChannels narrows configured channels to one type and, when target
// is set, replaces its targets.
func (a *Application) selectChannels(channelType domain.ChannelType, target string) ([]domain.ChannelConfig, error) {
	if channelType == "" {
		if target != "" {
			return nil, errors.New("distribute: a target override needs a channel type")
		}
		return a.channels, nil
	}
	if !domain.KnownChannel(channelType) {
		return nil, fmt.Errorf("distribute: unknown channel type %q", channelType)
	}

	for _, ch := range a.channels {
		if ch.Type != channelType {
			continue
		}
		if target != "" {
			ch.Targets = []string{target}
			ch.Enabled = true
		}
		return []domain.ChannelConfig{ch}, nil
	}

	if target == "" {
		return nil, fmt.Errorf("distribute: channel %s: %w", channelType, domain.ErrNotFound)
	}
	return []domain.ChannelConfig{{
		Type:         channelType,
		Enabled:      true,
		MinRelevance: domain.MinRelevance,
		Targets:      []string{target},
	}}, nil
}

// Papers lists processed papers matching filter, newest first.
func (a *Application) Papers(ctx context.Context, filter ports.PaperFilter) ([]domain.Paper, error) {
	return a.repo.ListPapers(ctx, filter)
}

// Paper returns one processed paper.
func (a *Application) Paper(ctx context.Context, id string) (domain.Paper, error) {
	return a.repo.GetPaper(ctx, domain.NormalizeArxivID(id))
}

// Attempts lists ledger rows matching filter.
func (a *Application) Attempts(ctx context.Context, filter ports.AttemptFilter) ([]domain.DistributionAttempt, error) {
	return a.repo.ListAttempts(ctx, filter)
}

// Stats aggregates processed papers matching filter.
func (a *Application) Stats(ctx context.Context, filter ports.PaperFilter, monthly bool) (storage.Stats, error) {
	return a.repo.Stats(ctx, filter, monthly)
}

// Export formats.
const (
	ExportCSV  = "csv"
	ExportJSON = "json"
)

// Export writes papers matching filter as CSV or JSON and returns how many were written.
func (a *Application) Export(ctx context.Context, w io.Writer, format string, filter ports.PaperFilter) (int, error) {
	papers, err := a.repo.ListPapers(ctx, filter)
	if err != nil {
		return 0, err
	}
	switch strings.ToLower(format) {
	case "", ExportCSV:
		err = storage.WriteCSV(w, papers)
	case ExportJSON:
		err = storage.WriteJSON(w, papers)
	default:
		return 0, fmt.Errorf("export: unknown format %q", format)
	}
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	return len(papers), nil
}

// ImportResult counts rows handled by Import.
type ImportResult struct {
	Imported int
	Skipped  int
	Invalid  int
}

// Import reads CSV rows and stores them through the deduplication store;
// papers already present are skipped.
func (a *Application) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	papers, err := storage.ReadCSV(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import: %w", err)
	}

	var result ImportResult
	for _, paper := range papers {
		err := a.dedup.MarkProcessed(ctx, paper)
		switch {
		case err == nil:
			result.Imported++
		case errors.Is(err, domain.ErrAlreadyProcessed):
			result.Skipped++
		case ctx.Err() != nil:
			return result, ctx.Err()
		default:
			result.Invalid++
			a.logger.Warn("import row rejected", "paper", paper.ID, "error", err)
		}
	}
	return result, nil
}

// ResetDatabase moves the SQLite database into a timestamped backup. The
// application must not hold the database open.
func ResetDatabase(cfg config.Config, now time.Time) (string, error) {
	if cfg.Database.Driver != storage.DriverSQLite {
		return "", fmt.Errorf("db reset: only supported for %s, not %s", storage.DriverSQLite, cfg.Database.Driver)
	}
	return storage.BackupSQLite(cfg.Database.DSN, now)
}
