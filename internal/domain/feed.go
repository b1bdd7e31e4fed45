package domain

import (
	"fmt"
	"strings"
	"time"
)

// FeedKind selects the scanner strategy that reads a feed.
type FeedKind string

const (
	FeedKindRSS          FeedKind = "rss"
	FeedKindArxivListing FeedKind = "arxiv-listing"
)

// QuietSchedule lists the days on which an empty feed is expected.
type QuietSchedule struct {
	Weekdays []time.Weekday
	Dates    []string // YYYY-MM-DD
	Location *time.Location
}

// Contains reports whether t falls on a quiet day in the schedule's zone.
func (q QuietSchedule) Contains(t time.Time) bool {
	loc := q.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	for _, wd := range q.Weekdays {
		if local.Weekday() == wd {
			return true
		}
	}
	day := local.Format(time.DateOnly)
	for _, d := range q.Dates {
		if d == day {
			return true
		}
	}
	return false
}

// Empty reports whether no quiet day is declared.
func (q QuietSchedule) Empty() bool {
	return len(q.Weekdays) == 0 && len(q.Dates) == 0
}

// Merge returns the union of both schedules, keeping q's location when set.
func (q QuietSchedule) Merge(other QuietSchedule) QuietSchedule {
	out := QuietSchedule{Location: q.Location}
	if out.Location == nil {
		out.Location = other.Location
	}
	seenDay := map[time.Weekday]bool{}
	for _, wd := range append(append([]time.Weekday{}, q.Weekdays...), other.Weekdays...) {
		if !seenDay[wd] {
			seenDay[wd] = true
			out.Weekdays = append(out.Weekdays, wd)
		}
	}
	seenDate := map[string]bool{}
	for _, d := range append(append([]string{}, q.Dates...), other.Dates...) {
		if !seenDate[d] {
			seenDate[d] = true
			out.Dates = append(out.Dates, d)
		}
	}
	return out
}

// ParseWeekday accepts full or three-letter English day names in any case.
func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return d, true
		}
	}
	return 0, false
}

// FeedSource is a configured origin of candidates plus the counters the
// health tracker keeps for it.
type FeedSource struct {
	ID        string // feed address
	Name      string
	Kind      FeedKind
	Quiet     QuietSchedule
	MaxPapers int

	ConsecutiveEmptyFetches int
	LastSuccessfulFetch     time.Time
	LastEntryCount          int
	LastFetchAt             time.Time
	LastFetchFailed         bool
	// Declared is the quiet schedule the feed document announced on its last
	// successful fetch.
	Declared QuietSchedule
}

// OutcomeKind enumerates fetch results.
type OutcomeKind int

const (
	OutcomeEntries OutcomeKind = iota
	OutcomeEmpty
	OutcomeFailure
)

// FetchOutcome is the result of one feed fetch, independent of transport.
type FetchOutcome struct {
	Kind       OutcomeKind
	Candidates []Candidate
	Reason     string
	// Declared is the quiet schedule the feed document itself announces, if any.
	Declared QuietSchedule
}

// Entries builds a successful outcome; an empty list becomes EmptySuccess.
func Entries(candidates []Candidate) FetchOutcome {
	if len(candidates) == 0 {
		return EmptySuccess()
	}
	return FetchOutcome{Kind: OutcomeEntries, Candidates: candidates}
}

// EmptySuccess builds an outcome for a fetch that worked but had no entries.
func EmptySuccess() FetchOutcome {
	return FetchOutcome{Kind: OutcomeEmpty}
}

// FetchFailure builds an outcome for a transport or parse failure.
func FetchFailure(reason string) FetchOutcome {
	return FetchOutcome{Kind: OutcomeFailure, Reason: reason}
}

// HealthStatus is the derived condition of a feed.
type HealthStatus string

const (
	HealthHealthy       HealthStatus = "HEALTHY"
	HealthEmptyExpected HealthStatus = "EMPTY_EXPECTED"
	HealthSuspect       HealthStatus = "SUSPECT"
	HealthBroken        HealthStatus = "BROKEN"
	HealthUnknown       HealthStatus = "UNKNOWN"
)

// FeedHealthRecord is recomputed each cycle and never stored.
type FeedHealthRecord struct {
	FeedID                  string
	Status                  HealthStatus
	ConsecutiveEmptyFetches int
	EntryCount              int
	Reason                  string
	CheckedAt               time.Time
}

// DefaultEmptyThreshold is the number of unexplained empty fetches tolerated
// before a feed is considered broken.
const DefaultEmptyThreshold = 3

// Classify derives the health of a feed from its counters and the latest
// outcome, returning the updated counters. It performs no I/O.
func Classify(feed FeedSource, outcome FetchOutcome, now time.Time, threshold int) (FeedHealthRecord, FeedSource) {
	if threshold <= 0 {
		threshold = DefaultEmptyThreshold
	}

	updated := feed
	updated.LastFetchAt = now
	record := FeedHealthRecord{FeedID: feed.ID, CheckedAt: now}

	switch outcome.Kind {
	case OutcomeFailure:
		updated.LastFetchFailed = true
		record.Status = HealthBroken
		record.Reason = "fetch failed: " + outcome.Reason
	case OutcomeEntries:
		updated.LastFetchFailed = false
		updated.Declared = outcome.Declared
		updated.ConsecutiveEmptyFetches = 0
		updated.LastSuccessfulFetch = now
		updated.LastEntryCount = len(outcome.Candidates)
		record.Status = HealthHealthy
		record.EntryCount = len(outcome.Candidates)
	default:
		updated.LastFetchFailed = false
		updated.Declared = outcome.Declared
		updated.ConsecutiveEmptyFetches = feed.ConsecutiveEmptyFetches + 1
		updated.LastSuccessfulFetch = now
		updated.LastEntryCount = 0
		record.Status, record.Reason = classifyEmpty(updated, feed.Quiet.Merge(outcome.Declared), now, threshold)
	}

	record.ConsecutiveEmptyFetches = updated.ConsecutiveEmptyFetches
	return record, updated
}

// Inspect re-derives health from stored counters alone.
func Inspect(feed FeedSource, now time.Time, threshold int) FeedHealthRecord {
	if threshold <= 0 {
		threshold = DefaultEmptyThreshold
	}
	record := FeedHealthRecord{
		FeedID:                  feed.ID,
		ConsecutiveEmptyFetches: feed.ConsecutiveEmptyFetches,
		EntryCount:              feed.LastEntryCount,
		CheckedAt:               now,
	}
	switch {
	case feed.LastFetchAt.IsZero() && feed.LastSuccessfulFetch.IsZero():
		record.Status = HealthUnknown
		record.Reason = "no fetch recorded"
	case feed.LastFetchFailed:
		record.Status = HealthBroken
		record.Reason = "last fetch failed"
	case feed.LastEntryCount > 0:
		record.Status = HealthHealthy
	default:
		record.Status, record.Reason = classifyEmpty(feed, feed.Quiet.Merge(feed.Declared), feed.LastSuccessfulFetch, threshold)
	}
	return record
}

func classifyEmpty(feed FeedSource, quiet QuietSchedule, at time.Time, threshold int) (HealthStatus, string) {
	if quiet.Contains(at) {
		return HealthEmptyExpected, "empty during quiet period"
	}
	if feed.ConsecutiveEmptyFetches > threshold {
		return HealthBroken, fmt.Sprintf("empty for %d consecutive fetches", feed.ConsecutiveEmptyFetches)
	}
	return HealthSuspect, fmt.Sprintf("empty outside quiet period (%d/%d)", feed.ConsecutiveEmptyFetches, threshold)
}
