package domain

import (
	"testing"
	"time"
)

var (
	saturday = time.Date(2025, time.November, 8, 12, 0, 0, 0, time.UTC)
	monday   = time.Date(2025, time.November, 10, 12, 0, 0, 0, time.UTC)
)

func weekendFeed(empty int) FeedSource {
	return FeedSource{
		ID:                      "https://export.arxiv.org/rss/cs.IR",
		Quiet:                   QuietSchedule{Weekdays: []time.Weekday{time.Saturday, time.Sunday}},
		ConsecutiveEmptyFetches: empty,
		LastEntryCount:          5,
	}
}

func TestClassifyFailureAlwaysBroken(t *testing.T) {
	t.Parallel()

	for _, empty := range []int{0, 1, 3, 10} {
		for _, now := range []time.Time{saturday, monday} {
			feed := weekendFeed(empty)
			record, updated := Classify(feed, FetchFailure("connection refused"), now, 3)
			if record.Status != HealthBroken {
				t.Fatalf("empty=%d now=%s: expected BROKEN, got %s", empty, now.Weekday(), record.Status)
			}
			if updated.ConsecutiveEmptyFetches != empty {
				t.Fatalf("failure changed counter: %d -> %d", empty, updated.ConsecutiveEmptyFetches)
			}
			if updated.LastSuccessfulFetch != feed.LastSuccessfulFetch {
				t.Fatalf("failure must not move last successful fetch")
			}
			if !updated.LastFetchAt.Equal(now) {
				t.Fatalf("expected last fetch at %v, got %v", now, updated.LastFetchAt)
			}
		}
	}
}

func TestClassifyEmptyInsideQuietPeriod(t *testing.T) {
	t.Parallel()

	for _, empty := range []int{0, 2, 3, 50} {
		record, updated := Classify(weekendFeed(empty), EmptySuccess(), saturday, 3)
		if record.Status != HealthEmptyExpected {
			t.Fatalf("empty=%d: expected EMPTY_EXPECTED, got %s", empty, record.Status)
		}
		if updated.ConsecutiveEmptyFetches != empty+1 {
			t.Fatalf("expected counter %d, got %d", empty+1, updated.ConsecutiveEmptyFetches)
		}
	}
}

func TestClassifyEmptyOutsideQuietPeriod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prior int
		want  HealthStatus
	}{
		{0, HealthSuspect},
		{2, HealthSuspect},
		{3, HealthBroken},
		{7, HealthBroken},
	}
	for _, tt := range tests {
		record, updated := Classify(weekendFeed(tt.prior), EmptySuccess(), monday, 3)
		if record.Status != tt.want {
			t.Errorf("prior=%d: got %s, want %s", tt.prior, record.Status, tt.want)
		}
		if record.ConsecutiveEmptyFetches != updated.ConsecutiveEmptyFetches {
			t.Errorf("record counter %d does not match feed counter %d", record.ConsecutiveEmptyFetches, updated.ConsecutiveEmptyFetches)
		}
		if updated.LastEntryCount != 0 {
			t.Errorf("expected last entry count 0, got %d", updated.LastEntryCount)
		}
	}
}

func TestClassifyEntriesResetCounter(t *testing.T) {
	t.Parallel()

	candidates := []Candidate{{ID: "2501.00001"}, {ID: "2501.00002"}}
	record, updated := Classify(weekendFeed(9), Entries(candidates), saturday, 3)
	if record.Status != HealthHealthy {
		t.Fatalf("expected HEALTHY, got %s", record.Status)
	}
	if updated.ConsecutiveEmptyFetches != 0 {
		t.Fatalf("expected counter reset, got %d", updated.ConsecutiveEmptyFetches)
	}
	if updated.LastEntryCount != 2 || record.EntryCount != 2 {
		t.Fatalf("expected entry count 2, got feed=%d record=%d", updated.LastEntryCount, record.EntryCount)
	}
	if !updated.LastSuccessfulFetch.Equal(saturday) {
		t.Fatalf("unexpected last successful fetch %v", updated.LastSuccessfulFetch)
	}
}

func TestEntriesWithoutCandidatesIsEmptySuccess(t *testing.T) {
	t.Parallel()

	if got := Entries(nil).Kind; got != OutcomeEmpty {
		t.Fatalf("expected OutcomeEmpty, got %v", got)
	}
}

func TestClassifyUsesDeclaredSchedule(t *testing.T) {
	t.Parallel()

	feed := FeedSource{ID: "feed", ConsecutiveEmptyFetches: 10}
	outcome := EmptySuccess()
	outcome.Declared = QuietSchedule{Weekdays: []time.Weekday{time.Monday}}

	record, _ := Classify(feed, outcome, monday, 3)
	if record.Status != HealthEmptyExpected {
		t.Fatalf("expected feed-declared quiet day to apply, got %s", record.Status)
	}
}

func TestInspectAgreesWithClassifyOnDeclaredSchedule(t *testing.T) {
	t.Parallel()

	feed := FeedSource{ID: "feed", ConsecutiveEmptyFetches: 3}
	outcome := EmptySuccess()
	outcome.Declared = QuietSchedule{Weekdays: []time.Weekday{time.Saturday}}

	record, updated := Classify(feed, outcome, saturday, 3)
	if record.Status != HealthEmptyExpected {
		t.Fatalf("classify: expected %s, got %s", HealthEmptyExpected, record.Status)
	}
	if got := Inspect(updated, saturday.Add(time.Hour), 3); got.Status != record.Status {
		t.Fatalf("inspect: expected %s, got %s (%s)", record.Status, got.Status, got.Reason)
	}
}

func TestClassifyTracksFailureFlag(t *testing.T) {
	t.Parallel()

	_, failed := Classify(weekendFeed(0), FetchFailure("timeout"), monday, 3)
	if !failed.LastFetchFailed {
		t.Fatal("expected failure flag after a failed fetch")
	}
	if got := Inspect(failed, monday, 3).Status; got != HealthBroken {
		t.Fatalf("expected %s after failure, got %s", HealthBroken, got)
	}

	_, recovered := Classify(failed, Entries([]Candidate{{ID: "2511.00001"}}), monday, 3)
	if recovered.LastFetchFailed {
		t.Fatal("expected failure flag cleared after a successful fetch")
	}
	if got := Inspect(recovered, monday, 3).Status; got != HealthHealthy {
		t.Fatalf("expected %s after recovery, got %s", HealthHealthy, got)
	}
}

func TestQuietScheduleDatesAndLocation(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	q := QuietSchedule{Dates: []string{"2025-12-25"}, Location: ny}

	// 03:00 UTC on the 26th is still the 25th in New York.
	if !q.Contains(time.Date(2025, time.December, 26, 3, 0, 0, 0, time.UTC)) {
		t.Fatal("expected holiday to be quiet in local time")
	}
	if q.Contains(time.Date(2025, time.December, 26, 12, 0, 0, 0, time.UTC)) {
		t.Fatal("did not expect the following day to be quiet")
	}
}

func TestInspect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		feed FeedSource
		want HealthStatus
	}{
		{"never fetched", FeedSource{ID: "a"}, HealthUnknown},
		{"last fetch failed", FeedSource{ID: "a", LastSuccessfulFetch: saturday, LastFetchAt: monday, LastFetchFailed: true}, HealthBroken},
		{"failed in same second as success", FeedSource{ID: "a", LastSuccessfulFetch: monday, LastFetchAt: monday, LastEntryCount: 4, LastFetchFailed: true}, HealthBroken},
		{"entries", FeedSource{ID: "a", LastSuccessfulFetch: monday, LastFetchAt: monday, LastEntryCount: 4}, HealthHealthy},
		{"empty weekend", FeedSource{ID: "a", Quiet: QuietSchedule{Weekdays: []time.Weekday{time.Saturday}}, LastSuccessfulFetch: saturday, LastFetchAt: saturday, ConsecutiveEmptyFetches: 8}, HealthEmptyExpected},
		{"empty weekday", FeedSource{ID: "a", LastSuccessfulFetch: monday, LastFetchAt: monday, ConsecutiveEmptyFetches: 1}, HealthSuspect},
		{"long empty", FeedSource{ID: "a", LastSuccessfulFetch: monday, LastFetchAt: monday, ConsecutiveEmptyFetches: 4}, HealthBroken},
	}
	for _, tt := range tests {
		if got := Inspect(tt.feed, monday, 3).Status; got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestParseWeekday(t *testing.T) {
	t.Parallel()

	cases := map[string]time.Weekday{"Saturday": time.Saturday, "sun": time.Sunday, " MONDAY ": time.Monday}
	for in, want := range cases {
		got, ok := ParseWeekday(in)
		if !ok || got != want {
			t.Fatalf("ParseWeekday(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := ParseWeekday("someday"); ok {
		t.Fatal("expected unknown day to be rejected")
	}
}
