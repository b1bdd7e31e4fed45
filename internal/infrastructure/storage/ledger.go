package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
)

var attemptColumns = []string{"paper_id", "channel_type", "channel_target", "attempted_at", "success", "error_detail"}

// HasSuccess reports whether a successful attempt exists for key.
func (r *Repository) HasSuccess(ctx context.Context, key domain.AttemptKey) (bool, error) {
	row, err := r.queryRow(ctx, r.sb.Select("COUNT(*)").From("distribution_attempts").Where(sq.Eq{
		"paper_id":       key.PaperID,
		"channel_type":   string(key.ChannelType),
		"channel_target": key.ChannelTarget,
		"success":        1,
	}))
	if err != nil {
		return false, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("check success: %w", err)
	}
	return n > 0, nil
}

// AppendAttempt records one attempt. A second success for the same tuple is
// absorbed by the unique index and returned without an ID.
func (r *Repository) AppendAttempt(ctx context.Context, a domain.DistributionAttempt) (domain.DistributionAttempt, error) {
	stmt := r.sb.Insert("distribution_attempts").Columns(attemptColumns...).
		Values(a.PaperID, string(a.ChannelType), a.ChannelTarget, formatTime(a.AttemptedAt), boolToInt(a.Success), a.ErrorDetail)
	if a.Success {
		stmt = stmt.Suffix("ON CONFLICT DO NOTHING RETURNING id")
	} else {
		stmt = stmt.Suffix("RETURNING id")
	}

	row, err := r.queryRow(ctx, stmt)
	if err != nil {
		return domain.DistributionAttempt{}, err
	}
	err = row.Scan(&a.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return a, nil
	}
	if err != nil {
		return domain.DistributionAttempt{}, fmt.Errorf("append attempt: %w", err)
	}
	return a, nil
}

// ListAttempts returns ledger rows matching filter in append order.
func (r *Repository) ListAttempts(ctx context.Context, f ports.AttemptFilter) ([]domain.DistributionAttempt, error) {
	cond := sq.And{}
	if f.PaperID != "" {
		cond = append(cond, sq.Eq{"paper_id": f.PaperID})
	}
	if f.ChannelType != "" {
		cond = append(cond, sq.Eq{"channel_type": string(f.ChannelType)})
	}
	if f.Success != nil {
		cond = append(cond, sq.Eq{"success": boolToInt(*f.Success)})
	}
	if !f.From.IsZero() {
		cond = append(cond, sq.GtOrEq{"attempted_at": formatTime(f.From)})
	}
	if !f.To.IsZero() {
		cond = append(cond, sq.Lt{"attempted_at": formatTime(f.To)})
	}

	stmt := r.sb.Select(append([]string{"id"}, attemptColumns...)...).
		From("distribution_attempts").Where(cond).OrderBy("id")
	if f.Limit > 0 {
		stmt = stmt.Limit(uint64(f.Limit))
	}

	var out []domain.DistributionAttempt
	err := r.eachRow(ctx, stmt, func(rows *sql.Rows) error {
		var (
			a           domain.DistributionAttempt
			channel     string
			attemptedAt string
			success     int
		)
		if err := rows.Scan(&a.ID, &a.PaperID, &channel, &a.ChannelTarget, &attemptedAt, &success, &a.ErrorDetail); err != nil {
			return err
		}
		a.ChannelType = domain.ChannelType(channel)
		a.Success = success != 0
		var err error
		if a.AttemptedAt, err = parseTime(attemptedAt); err != nil {
			return err
		}
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return out, nil
}
