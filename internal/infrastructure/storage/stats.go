package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
)

// Stats aggregates processed papers.
type Stats struct {
	Total        int
	AverageScore float64
	// ByScore counts papers per relevance score 1..10.
	ByScore map[int]int
	Monthly []MonthStats
}

// MonthStats aggregates papers processed in one calendar month (UTC).
type MonthStats struct {
	Month        string // YYYY-MM
	Total        int
	AverageScore float64
}

// Stats computes totals, the score distribution and, when monthly is set,
// a per-month breakdown over papers matching filter.
func (r *Repository) Stats(ctx context.Context, filter ports.PaperFilter, monthly bool) (Stats, error) {
	where := paperConditions(filter)
	out := Stats{ByScore: make(map[int]int, domain.MaxRelevance)}

	row, err := r.queryRow(ctx, r.sb.Select("COUNT(*)", "COALESCE(AVG(relevance_score), 0)").
		From("processed_papers").Where(where))
	if err != nil {
		return Stats{}, err
	}
	if err := row.Scan(&out.Total, &out.AverageScore); err != nil {
		return Stats{}, fmt.Errorf("scan totals: %w", err)
	}

	err = r.eachRow(ctx, r.sb.Select("relevance_score", "COUNT(*)").From("processed_papers").
		Where(where).GroupBy("relevance_score"), func(rows *sql.Rows) error {
		var score, n int
		if err := rows.Scan(&score, &n); err != nil {
			return err
		}
		out.ByScore[score] = n
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("score distribution: %w", err)
	}

	if !monthly {
		return out, nil
	}
	month := "SUBSTR(processed_at, 1, 7)"
	err = r.eachRow(ctx, r.sb.Select(month, "COUNT(*)", "AVG(relevance_score)").From("processed_papers").
		Where(where).GroupBy(month).OrderBy(month), func(rows *sql.Rows) error {
		var m MonthStats
		if err := rows.Scan(&m.Month, &m.Total, &m.AverageScore); err != nil {
			return err
		}
		out.Monthly = append(out.Monthly, m)
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("monthly stats: %w", err)
	}
	return out, nil
}

func (r *Repository) eachRow(ctx context.Context, b sq.Sqlizer, fn func(*sql.Rows) error) error {
	rows, err := r.query(ctx, b)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
