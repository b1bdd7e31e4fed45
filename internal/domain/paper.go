package domain

import (
	"strings"
	"time"
)

// Relevance bounds returned by the assessment step.
const (
	MinRelevance = 1
	MaxRelevance = 10
)

// Candidate is a paper announcement yielded by a feed before processing.
type Candidate struct {
	ID          string
	SourceURL   string
	Title       string
	Authors     string
	Abstract    string
	FeedID      string
	PublishedAt time.Time
}

// Paper is the processed research item owned by the deduplication store.
type Paper struct {
	ID             string
	SourceURL      string
	Title          string
	Authors        string
	Abstract       string
	FeedID         string
	RelevanceScore int
	Summary        string
	KeyFindings    string
	Applications   string
	AbstractOnly   bool
	ProcessedAt    time.Time
}

// Assessment is what the external assessment service returns for one paper.
type Assessment struct {
	RelevanceScore int
	Summary        string
	KeyFindings    string
	Applications   string
}

// ValidScore reports whether the score sits in the ordinal range.
func (a Assessment) ValidScore() bool {
	return a.RelevanceScore >= MinRelevance && a.RelevanceScore <= MaxRelevance
}

// NewPaper merges discovery metadata with an assessment.
func NewPaper(c Candidate, a Assessment, abstractOnly bool, processedAt time.Time) Paper {
	return Paper{
		ID:             c.ID,
		SourceURL:      c.SourceURL,
		Title:          strings.TrimSpace(c.Title),
		Authors:        strings.TrimSpace(c.Authors),
		Abstract:       strings.TrimSpace(c.Abstract),
		FeedID:         c.FeedID,
		RelevanceScore: a.RelevanceScore,
		Summary:        strings.TrimSpace(a.Summary),
		KeyFindings:    strings.TrimSpace(a.KeyFindings),
		Applications:   strings.TrimSpace(a.Applications),
		AbstractOnly:   abstractOnly,
		ProcessedAt:    processedAt.UTC().Truncate(time.Second),
	}
}

// Matches reports whether keyword occurs in any free-text field, case-insensitively.
func (p Paper) Matches(keyword string) bool {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return true
	}
	for _, field := range []string{p.Title, p.Abstract, p.Summary, p.KeyFindings, p.Applications} {
		if strings.Contains(strings.ToLower(field), keyword) {
			return true
		}
	}
	return false
}
