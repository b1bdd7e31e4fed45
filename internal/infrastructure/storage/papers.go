package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
)

var paperColumns = []string{
	"paper_id", "source_url", "title", "authors", "abstract", "feed_url",
	"relevance_score", "summary", "key_findings", "applications",
	"abstract_only", "processed_at",
}

// ProcessedIDs returns the subset of ids that already have a processed record.
func (r *Repository) ProcessedIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(ids) == 0 {
		return result, nil
	}

	var where sq.Sqlizer = sq.Eq{"paper_id": ids}
	if r.driver == DriverPostgres {
		where = sq.Expr("paper_id = ANY(?)", pq.StringArray(ids))
	}
	rows, err := r.query(ctx, r.sb.Select("paper_id").From("processed_papers").Where(where))
	if err != nil {
		return nil, fmt.Errorf("query processed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		result[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

// InsertPaper stores paper only if no record exists for its ID. A conflict
// yields domain.ErrAlreadyProcessed and leaves the stored record untouched.
func (r *Repository) InsertPaper(ctx context.Context, paper domain.Paper) error {
	res, err := r.exec(ctx, r.insertPaper(paper).Suffix("ON CONFLICT (paper_id) DO NOTHING"))
	if err != nil {
		return fmt.Errorf("insert paper: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert paper rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrAlreadyProcessed
	}
	return nil
}

// UpsertPaper stores paper, replacing any existing record.
func (r *Repository) UpsertPaper(ctx context.Context, paper domain.Paper) error {
	updates := make([]string, 0, len(paperColumns)-1)
	for _, col := range paperColumns[1:] {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	stmt := r.insertPaper(paper).Suffix("ON CONFLICT (paper_id) DO UPDATE SET " + strings.Join(updates, ", "))
	if _, err := r.exec(ctx, stmt); err != nil {
		return fmt.Errorf("upsert paper: %w", err)
	}
	return nil
}

func (r *Repository) insertPaper(p domain.Paper) sq.InsertBuilder {
	return r.sb.Insert("processed_papers").Columns(paperColumns...).Values(
		p.ID, p.SourceURL, p.Title, p.Authors, p.Abstract, p.FeedID,
		p.RelevanceScore, p.Summary, p.KeyFindings, p.Applications,
		boolToInt(p.AbstractOnly), formatTime(p.ProcessedAt),
	)
}

// GetPaper loads one processed paper.
func (r *Repository) GetPaper(ctx context.Context, id string) (domain.Paper, error) {
	row, err := r.queryRow(ctx, r.sb.Select(paperColumns...).From("processed_papers").Where(sq.Eq{"paper_id": id}))
	if err != nil {
		return domain.Paper{}, err
	}
	paper, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Paper{}, fmt.Errorf("paper %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Paper{}, fmt.Errorf("get paper %s: %w", id, err)
	}
	return paper, nil
}

// ListPapers returns processed papers matching filter, newest first.
func (r *Repository) ListPapers(ctx context.Context, filter ports.PaperFilter) ([]domain.Paper, error) {
	stmt := r.sb.Select(paperColumns...).From("processed_papers").
		Where(paperConditions(filter)).
		OrderBy("processed_at DESC", "paper_id")
	if filter.Limit > 0 {
		stmt = stmt.Limit(uint64(filter.Limit))
	}

	rows, err := r.query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	defer rows.Close()

	var papers []domain.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		papers = append(papers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return papers, nil
}

func paperConditions(f ports.PaperFilter) sq.And {
	cond := sq.And{}
	if !f.From.IsZero() {
		cond = append(cond, sq.GtOrEq{"processed_at": formatTime(f.From)})
	}
	if !f.To.IsZero() {
		cond = append(cond, sq.Lt{"processed_at": formatTime(f.To)})
	}
	if f.MinScore > 0 {
		cond = append(cond, sq.GtOrEq{"relevance_score": f.MinScore})
	}
	if f.MaxScore > 0 {
		cond = append(cond, sq.LtOrEq{"relevance_score": f.MaxScore})
	}
	if kw := strings.ToLower(strings.TrimSpace(f.Keyword)); kw != "" {
		pattern := "%" + kw + "%"
		or := sq.Or{}
		for _, col := range []string{"title", "abstract", "summary", "key_findings", "applications"} {
			or = append(or, sq.Expr("LOWER("+col+") LIKE ?", pattern))
		}
		cond = append(cond, or)
	}
	return cond
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaper(s rowScanner) (domain.Paper, error) {
	var (
		p            domain.Paper
		abstractOnly int
		processedAt  string
	)
	err := s.Scan(&p.ID, &p.SourceURL, &p.Title, &p.Authors, &p.Abstract, &p.FeedID,
		&p.RelevanceScore, &p.Summary, &p.KeyFindings, &p.Applications,
		&abstractOnly, &processedAt)
	if err != nil {
		return domain.Paper{}, err
	}
	p.AbstractOnly = abstractOnly != 0
	if p.ProcessedAt, err = parseTime(processedAt); err != nil {
		return domain.Paper{}, err
	}
	return p, nil
}
