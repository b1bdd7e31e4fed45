package domain

import (
	"testing"
	"time"
)

func TestNewPaperTruncatesTimestamp(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.November, 8, 10, 30, 15, 999, time.FixedZone("X", 3600))
	p := NewPaper(Candidate{ID: "1", Title: "  T  "}, Assessment{RelevanceScore: 7, Summary: " s "}, false, at)

	if p.Title != "T" || p.Summary != "s" {
		t.Fatalf("expected trimmed fields, got %q %q", p.Title, p.Summary)
	}
	if p.ProcessedAt.Location() != time.UTC || p.ProcessedAt.Nanosecond() != 0 {
		t.Fatalf("expected UTC second precision, got %v", p.ProcessedAt)
	}
}

func TestPaperMatches(t *testing.T) {
	t.Parallel()

	p := Paper{Title: "Ranking for Marketplaces", KeyFindings: "Better CTR"}
	if !p.Matches("marketplace") || !p.Matches("ctr") || !p.Matches("") {
		t.Fatal("expected keyword match")
	}
	if p.Matches("protein") {
		t.Fatal("unexpected match")
	}
}

func TestChannelQualifies(t *testing.T) {
	t.Parallel()

	p := Paper{RelevanceScore: 6}
	if !(ChannelConfig{Enabled: true, MinRelevance: 6}).Qualifies(p) {
		t.Fatal("threshold equal to score should qualify")
	}
	if (ChannelConfig{Enabled: true, MinRelevance: 7}).Qualifies(p) {
		t.Fatal("score below threshold should not qualify")
	}
	if (ChannelConfig{Enabled: false, MinRelevance: 1}).Qualifies(p) {
		t.Fatal("disabled channel should not qualify")
	}
}
