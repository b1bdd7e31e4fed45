package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"PaperScanner/internal/domain"
)

// LoadFeedState returns feed with its stored counters. Unknown feeds come
// back unchanged.
func (r *Repository) LoadFeedState(ctx context.Context, feed domain.FeedSource) (domain.FeedSource, error) {
	row, err := r.queryRow(ctx, r.sb.
		Select("consecutive_empty_fetches", "last_successful_fetch", "last_entry_count", "last_fetch_at",
			"last_fetch_failed", "declared_quiet_days", "declared_quiet_dates").
		From("feed_health").
		Where(sq.Eq{"feed_url": feed.ID}))
	if err != nil {
		return domain.FeedSource{}, err
	}

	var (
		lastSuccess, lastFetch string
		failed                 int
		quietDays, quietDates  string
	)
	err = row.Scan(&feed.ConsecutiveEmptyFetches, &lastSuccess, &feed.LastEntryCount, &lastFetch,
		&failed, &quietDays, &quietDates)
	if errors.Is(err, sql.ErrNoRows) {
		return feed, nil
	}
	if err != nil {
		return domain.FeedSource{}, fmt.Errorf("load feed %s: %w", feed.ID, err)
	}
	if feed.LastSuccessfulFetch, err = parseTime(lastSuccess); err != nil {
		return domain.FeedSource{}, err
	}
	if feed.LastFetchAt, err = parseTime(lastFetch); err != nil {
		return domain.FeedSource{}, err
	}
	feed.LastFetchFailed = failed != 0
	feed.Declared = decodeQuiet(quietDays, quietDates)
	return feed, nil
}

// SaveFeedState stores the counters of feed.
func (r *Repository) SaveFeedState(ctx context.Context, feed domain.FeedSource) error {
	quietDays, quietDates := encodeQuiet(feed.Declared)
	stmt := r.sb.Insert("feed_health").
		Columns("feed_url", "name", "consecutive_empty_fetches", "last_successful_fetch", "last_entry_count", "last_fetch_at",
			"last_fetch_failed", "declared_quiet_days", "declared_quiet_dates").
		Values(feed.ID, feed.Name, feed.ConsecutiveEmptyFetches, formatTime(feed.LastSuccessfulFetch), feed.LastEntryCount, formatTime(feed.LastFetchAt),
			boolToInt(feed.LastFetchFailed), quietDays, quietDates).
		Suffix(`ON CONFLICT (feed_url) DO UPDATE SET
			name = excluded.name,
			consecutive_empty_fetches = excluded.consecutive_empty_fetches,
			last_successful_fetch = excluded.last_successful_fetch,
			last_entry_count = excluded.last_entry_count,
			last_fetch_at = excluded.last_fetch_at,
			last_fetch_failed = excluded.last_fetch_failed,
			declared_quiet_days = excluded.declared_quiet_days,
			declared_quiet_dates = excluded.declared_quiet_dates`)
	if _, err := r.exec(ctx, stmt); err != nil {
		return fmt.Errorf("save feed %s: %w", feed.ID, err)
	}
	return nil
}

func encodeQuiet(q domain.QuietSchedule) (days, dates string) {
	names := make([]string, 0, len(q.Weekdays))
	for _, wd := range q.Weekdays {
		names = append(names, strings.ToLower(wd.String()))
	}
	return strings.Join(names, ","), strings.Join(q.Dates, ",")
}

// decodeQuiet rebuilds a declared schedule. Feeds declare skip days in UTC.
func decodeQuiet(days, dates string) domain.QuietSchedule {
	q := domain.QuietSchedule{Location: time.UTC}
	for _, name := range strings.Split(days, ",") {
		if wd, ok := domain.ParseWeekday(name); ok {
			q.Weekdays = append(q.Weekdays, wd)
		}
	}
	for _, d := range strings.Split(dates, ",") {
		if d = strings.TrimSpace(d); d != "" {
			q.Dates = append(q.Dates, d)
		}
	}
	return q
}
