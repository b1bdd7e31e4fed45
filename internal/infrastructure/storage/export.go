package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"PaperScanner/internal/domain"
)

// csvHeader is the column set written by WriteCSV and expected by ReadCSV.
var csvHeader = []string{
	"paper_id", "title", "authors", "relevance_score", "source_url",
	"processed_at", "summary", "key_findings", "applications",
	"abstract", "feed_url", "abstract_only",
}

// WriteCSV writes papers with a header row.
func WriteCSV(w io.Writer, papers []domain.Paper) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, p := range papers {
		record := []string{
			p.ID, p.Title, p.Authors, strconv.Itoa(p.RelevanceScore), p.SourceURL,
			formatTime(p.ProcessedAt), p.Summary, p.KeyFindings, p.Applications,
			p.Abstract, p.FeedID, strconv.FormatBool(p.AbstractOnly),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write paper %s: %w", p.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses papers written by WriteCSV. Columns are matched by header
// name; paper_id, relevance_score and processed_at are required.
func ReadCSV(r io.Reader) ([]domain.Paper, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"paper_id", "relevance_score", "processed_at"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("missing column %s", required)
		}
	}

	field := func(record []string, name string) string {
		if i, ok := index[name]; ok && i < len(record) {
			return record[i]
		}
		return ""
	}

	var papers []domain.Paper
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		score, err := strconv.Atoi(field(record, "relevance_score"))
		if err != nil {
			return nil, fmt.Errorf("line %d: relevance_score: %w", line, err)
		}
		processedAt, err := parseTime(field(record, "processed_at"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		abstractOnly, _ := strconv.ParseBool(field(record, "abstract_only"))

		papers = append(papers, domain.Paper{
			ID:             field(record, "paper_id"),
			SourceURL:      field(record, "source_url"),
			Title:          field(record, "title"),
			Authors:        field(record, "authors"),
			Abstract:       field(record, "abstract"),
			FeedID:         field(record, "feed_url"),
			RelevanceScore: score,
			Summary:        field(record, "summary"),
			KeyFindings:    field(record, "key_findings"),
			Applications:   field(record, "applications"),
			AbstractOnly:   abstractOnly,
			ProcessedAt:    processedAt,
		})
	}
	return papers, nil
}

type paperJSON struct {
	ID             string `json:"paper_id"`
	Title          string `json:"title"`
	Authors        string `json:"authors"`
	RelevanceScore int    `json:"relevance_score"`
	SourceURL      string `json:"source_url"`
	ProcessedAt    string `json:"processed_at"`
	Summary        string `json:"summary"`
	KeyFindings    string `json:"key_findings"`
	Applications   string `json:"applications"`
	Abstract       string `json:"abstract,omitempty"`
	FeedID         string `json:"feed_url,omitempty"`
	AbstractOnly   bool   `json:"abstract_only,omitempty"`
}

// WriteJSON writes papers as an indented JSON array.
func WriteJSON(w io.Writer, papers []domain.Paper) error {
	out := make([]paperJSON, 0, len(papers))
	for _, p := range papers {
		out = append(out, paperJSON{
			ID: p.ID, Title: p.Title, Authors: p.Authors, RelevanceScore: p.RelevanceScore,
			SourceURL: p.SourceURL, ProcessedAt: formatTime(p.ProcessedAt), Summary: p.Summary,
			KeyFindings: p.KeyFindings, Applications: p.Applications, Abstract: p.Abstract,
			FeedID: p.FeedID, AbstractOnly: p.AbstractOnly,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
