package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
	"PaperScanner/internal/retry"
)

// ProcessorDeps wires the driven adapters used to process one paper.
type ProcessorDeps struct {
	Content  ports.ContentFetcher
	Assessor ports.Assessor
	Store    *DedupStore
	Retry    retry.Policy
	Logger   *slog.Logger
}

// ProcessOptions tunes a single Process call.
type ProcessOptions struct {
	// Force overwrites an existing processed record.
	Force bool
}

// Processor turns a candidate into a stored, assessed paper.
type Processor struct {
	content  ports.ContentFetcher
	assessor ports.Assessor
	store    *DedupStore
	policy   retry.Policy
	logger   *slog.Logger
	now      func() time.Time
}

// NewProcessor constructs the processing orchestrator.
func NewProcessor(deps ProcessorDeps) *Processor {
	return &Processor{
		content:  deps.Content,
		assessor: deps.Assessor,
		store:    deps.Store,
		policy:   deps.Retry,
		logger:   deps.Logger,
		now:      time.Now,
	}
}

// Process fetches, assesses and stores candidate. Failures are returned as
// *domain.ProcessingError and leave the store untouched.
func (p *Processor) Process(ctx context.Context, candidate domain.Candidate, opts ProcessOptions) (domain.Paper, error) {
	if p.assessor == nil {
		return domain.Paper{}, p.fail(candidate, errors.New("no assessor configured"))
	}

	req := ports.AssessmentRequest{
		PaperID:  candidate.ID,
		Title:    candidate.Title,
		Authors:  candidate.Authors,
		Abstract: candidate.Abstract,
	}

	content, err := p.fetchContent(ctx, candidate)
	abstractOnly := false
	assess := p.assessor.Assess
	if err != nil {
		fallback, ok := p.assessor.(ports.AbstractAssessor)
		if !ok || strings.TrimSpace(candidate.Abstract) == "" {
			return domain.Paper{}, p.fail(candidate, fmt.Errorf("%w: %w", domain.ErrContentUnavailable, err))
		}
		p.warn("content unavailable, assessing abstract only", "paper", candidate.ID, "error", err)
		abstractOnly = true
		assess = fallback.AssessAbstract
	} else {
		req.Content = content
	}

	assessment, err := p.assess(ctx, candidate.ID, req, assess)
	if err != nil {
		return domain.Paper{}, p.fail(candidate, fmt.Errorf("%w: %w", domain.ErrAssessmentFailed, err))
	}

	paper := domain.NewPaper(candidate, assessment, abstractOnly, p.now())
	write := p.store.MarkProcessed
	if opts.Force {
		write = p.store.ForceReprocess
	}
	if err := write(ctx, paper); err != nil {
		return domain.Paper{}, p.fail(candidate, err)
	}

	p.debug("paper processed", "paper", paper.ID, "score", paper.RelevanceScore, "abstract_only", abstractOnly)
	return paper, nil
}

func (p *Processor) fetchContent(ctx context.Context, candidate domain.Candidate) ([]byte, error) {
	if p.content == nil {
		return nil, errors.New("no content fetcher configured")
	}
	if candidate.SourceURL == "" {
		return nil, errors.New("paper has no source url")
	}
	return retry.Do(ctx, p.policy, func(int) ([]byte, error) {
		return p.content.Fetch(ctx, candidate.SourceURL)
	}, func(attempt int, err error, wait time.Duration) {
		p.debug("content fetch failed, retrying", "paper", candidate.ID, "attempt", attempt, "wait", wait, "error", err)
	})
}

type assessFunc func(ctx context.Context, req ports.AssessmentRequest) (domain.Assessment, error)

func (p *Processor) assess(ctx context.Context, paperID string, req ports.AssessmentRequest, call assessFunc) (domain.Assessment, error) {
	return retry.Do(ctx, p.policy, func(int) (domain.Assessment, error) {
		assessment, err := call(ctx, req)
		if err != nil {
			if errors.Is(err, domain.ErrAssessmentTransient) {
				return domain.Assessment{}, err
			}
			return domain.Assessment{}, retry.Permanent(err)
		}
		if !assessment.ValidScore() {
			return domain.Assessment{}, retry.Permanent(domain.Permanent(
				fmt.Errorf("relevance score %d outside %d-%d", assessment.RelevanceScore, domain.MinRelevance, domain.MaxRelevance)))
		}
		return assessment, nil
	}, func(attempt int, err error, wait time.Duration) {
		p.warn("assessment failed, retrying", "paper", paperID, "attempt", attempt, "wait", wait, "error", err)
	})
}

func (p *Processor) fail(candidate domain.Candidate, err error) error {
	return &domain.ProcessingError{PaperID: candidate.ID, Err: err}
}

func (p *Processor) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Processor) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
