package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
	"PaperScanner/internal/retry"
)

// DistributorDeps wires the ledger, formatter and channel senders.
type DistributorDeps struct {
	Ledger    ports.LedgerRepository
	Formatter ports.MessageFormatter
	Senders   map[domain.ChannelType]ports.ChannelSender
	Retry     retry.Policy
	Logger    *slog.Logger
}

// DistributeOptions tunes a single Distribute call.
type DistributeOptions struct {
	// DryRun formats messages and reports the sends that would happen
	// without sending or recording anything.
	DryRun bool
}

// Distributor sends processed papers to channels and records every attempt.
type Distributor struct {
	ledger    ports.LedgerRepository
	formatter ports.MessageFormatter
	senders   map[domain.ChannelType]ports.ChannelSender
	policy    retry.Policy
	locks     *keyLock[domain.AttemptKey]
	logger    *slog.Logger
	now       func() time.Time
}

// NewDistributor constructs the distribution ledger use case.
func NewDistributor(deps DistributorDeps) *Distributor {
	senders := deps.Senders
	if senders == nil {
		senders = map[domain.ChannelType]ports.ChannelSender{}
	}
	return &Distributor{
		ledger:    deps.Ledger,
		formatter: deps.Formatter,
		senders:   senders,
		policy:    deps.Retry,
		locks:     newKeyLock[domain.AttemptKey](),
		logger:    deps.Logger,
		now:       time.Now,
	}
}

// Distribute sends paper to every qualifying channel target that has no
// successful attempt yet. It returns the attempts recorded by this call; the
// error reports ledger or formatting problems, never send failures.
func (d *Distributor) Distribute(ctx context.Context, paper domain.Paper, channels []domain.ChannelConfig, opts DistributeOptions) ([]domain.DistributionAttempt, error) {
	var (
		attempts []domain.DistributionAttempt
		errs     []error
	)

	for _, channel := range channels {
		if !channel.Qualifies(paper) {
			d.debug("channel skipped", "paper", paper.ID, "channel", channel.Type,
				"enabled", channel.Enabled, "min_relevance", channel.MinRelevance, "score", paper.RelevanceScore)
			continue
		}

		msg, err := d.format(paper, channel.Type)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		for _, target := range channel.Targets {
			key := domain.AttemptKey{PaperID: paper.ID, ChannelType: channel.Type, ChannelTarget: target}
			made, err := d.deliver(ctx, key, msg, opts)
			attempts = append(attempts, made...)
			if err != nil {
				errs = append(errs, err)
			}
		}
	}

	return attempts, errors.Join(errs...)
}

func (d *Distributor) format(paper domain.Paper, channel domain.ChannelType) (domain.Message, error) {
	if d.formatter == nil {
		return domain.Message{Text: paper.Title + "\n" + paper.SourceURL}, nil
	}
	msg, err := d.formatter.Format(paper, channel)
	if err != nil {
		return domain.Message{}, fmt.Errorf("format paper %s for %s: %w", paper.ID, channel, err)
	}
	return msg, nil
}

func (d *Distributor) deliver(ctx context.Context, key domain.AttemptKey, msg domain.Message, opts DistributeOptions) ([]domain.DistributionAttempt, error) {
	unlock := d.locks.Lock(key)
	defer unlock()

	delivered, err := d.ledger.HasSuccess(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check ledger %s/%s/%s: %w", key.PaperID, key.ChannelType, key.ChannelTarget, err)
	}
	if delivered {
		d.debug("already delivered", "paper", key.PaperID, "channel", key.ChannelType, "target", key.ChannelTarget)
		return nil, nil
	}

	if opts.DryRun {
		d.info("dry run: would send", "paper", key.PaperID, "channel", key.ChannelType, "target", key.ChannelTarget)
		return []domain.DistributionAttempt{d.attempt(key, nil)}, nil
	}

	sender, ok := d.senders[key.ChannelType]
	if !ok {
		row, err := d.ledger.AppendAttempt(ctx, d.attempt(key, fmt.Errorf("no sender configured for channel %s", key.ChannelType)))
		if err != nil {
			return nil, fmt.Errorf("append attempt: %w", err)
		}
		d.warn("no sender configured", "paper", key.PaperID, "channel", key.ChannelType, "target", key.ChannelTarget)
		return []domain.DistributionAttempt{row}, nil
	}

	var rows []domain.DistributionAttempt
	err = retry.Run(ctx, d.policy, func(int) error {
		sendErr := sender.Send(ctx, key.ChannelTarget, msg)
		row, err := d.ledger.AppendAttempt(ctx, d.attempt(key, sendErr))
		if err != nil {
			return retry.Permanent(fmt.Errorf("append attempt: %w", err))
		}
		rows = append(rows, row)
		if sendErr != nil {
			return fmt.Errorf("%w: %w", domain.ErrDistributionSend, sendErr)
		}
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		d.warn("send failed, retrying", "paper", key.PaperID, "channel", key.ChannelType,
			"target", key.ChannelTarget, "attempt", attempt, "wait", wait, "error", err)
	})

	switch {
	case err == nil:
		d.info("paper sent", "paper", key.PaperID, "channel", key.ChannelType, "target", key.ChannelTarget)
		return rows, nil
	case errors.Is(err, domain.ErrDistributionSend):
		d.warn("send failed", "paper", key.PaperID, "channel", key.ChannelType,
			"target", key.ChannelTarget, "attempts", len(rows), "error", err)
		return rows, nil
	default:
		return rows, err
	}
}

func (d *Distributor) attempt(key domain.AttemptKey, sendErr error) domain.DistributionAttempt {
	row := domain.DistributionAttempt{
		PaperID:       key.PaperID,
		ChannelType:   key.ChannelType,
		ChannelTarget: key.ChannelTarget,
		AttemptedAt:   d.now().UTC().Truncate(time.Second),
		Success:       sendErr == nil,
	}
	if sendErr != nil {
		row.ErrorDetail = sendErr.Error()
	}
	return row
}

func (d *Distributor) debug(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}

func (d *Distributor) info(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Info(msg, args...)
	}
}

func (d *Distributor) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
