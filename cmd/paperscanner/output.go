package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/infrastructure/storage"
	"PaperScanner/internal/ports"
	"PaperScanner/internal/usecase"
)

// paperFlags are the filter flags shared by query, stats and export.
type paperFlags struct {
	from     string
	to       string
	days     int
	minScore int
	maxScore int
	keyword  string
	limit    int
}

func (f *paperFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "processed on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "processed on or before this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&f.days, "days", 0, "processed in the last N days")
	cmd.Flags().IntVar(&f.minScore, "min-score", 0, "minimum relevance score")
	cmd.Flags().IntVar(&f.maxScore, "max-score", 0, "maximum relevance score")
	cmd.Flags().StringVar(&f.keyword, "keyword", "", "search title, abstract, summary, findings and applications")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum rows")
}

// filter converts the flags; --to is inclusive of the whole day.
func (f paperFlags) filter(now time.Time) (ports.PaperFilter, error) {
	out := ports.PaperFilter{
		MinScore: f.minScore,
		MaxScore: f.maxScore,
		Keyword:  f.keyword,
		Limit:    f.limit,
	}
	if f.days > 0 && f.from != "" {
		return out, fmt.Errorf("--days and --from are mutually exclusive")
	}
	if f.days > 0 {
		out.From = now.UTC().AddDate(0, 0, -f.days)
	}
	if f.from != "" {
		from, err := time.Parse(time.DateOnly, f.from)
		if err != nil {
			return out, fmt.Errorf("--from: %w", err)
		}
		out.From = from
	}
	if f.to != "" {
		to, err := time.Parse(time.DateOnly, f.to)
		if err != nil {
			return out, fmt.Errorf("--to: %w", err)
		}
		out.To = to.AddDate(0, 0, 1)
	}
	if f.minScore != 0 && f.maxScore != 0 && f.minScore > f.maxScore {
		return out, fmt.Errorf("--min-score %d exceeds --max-score %d", f.minScore, f.maxScore)
	}
	return out, nil
}

func printReport(w io.Writer, report usecase.CycleReport) {
	fmt.Fprintln(w, report.String())

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FEED\tSTATUS\tENTRIES\tNEW\tDEFERRED\tREASON")
	for _, f := range report.Feeds {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n", f.Health.FeedID, f.Health.Status, f.Candidates, f.New, f.Deferred, f.Health.Reason)
	}
	tw.Flush()

	for _, p := range report.Processed {
		fmt.Fprintf(w, "processed %s (%d/10) %s\n", p.ID, p.RelevanceScore, p.Title)
	}
	for _, f := range report.Failures {
		fmt.Fprintf(w, "failed %s [%s]: %v\n", f.PaperID, f.Stage, f.Err)
	}
	for _, a := range report.FailedAttempts() {
		fmt.Fprintf(w, "send failed %s -> %s:%s: %s\n", a.PaperID, a.ChannelType, a.ChannelTarget, a.ErrorDetail)
	}
}

func printHealth(w io.Writer, records []domain.FeedHealthRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FEED\tSTATUS\tEMPTY\tLAST COUNT\tREASON")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.FeedID, r.Status, r.ConsecutiveEmptyFetches, r.EntryCount, r.Reason)
	}
	tw.Flush()
}

func printPaper(w io.Writer, p domain.Paper) {
	fmt.Fprintf(w, "%s  %s\n", p.ID, p.Title)
	fmt.Fprintf(w, "authors:   %s\n", p.Authors)
	fmt.Fprintf(w, "score:     %d/10", p.RelevanceScore)
	if p.AbstractOnly {
		fmt.Fprint(w, " (abstract only)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "url:       %s\n", p.SourceURL)
	fmt.Fprintf(w, "processed: %s\n", p.ProcessedAt.Format(time.RFC3339))
	if p.Summary != "" {
		fmt.Fprintf(w, "\n%s\n", p.Summary)
	}
}

func printPapers(w io.Writer, papers []domain.Paper) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCORE\tPROCESSED\tTITLE")
	for _, p := range papers {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", p.ID, p.RelevanceScore, p.ProcessedAt.Format(time.DateOnly), truncate(p.Title, 80))
	}
	tw.Flush()
	fmt.Fprintf(w, "%d papers\n", len(papers))
}

func writePapersJSON(w io.Writer, papers []domain.Paper) error {
	return storage.WriteJSON(w, papers)
}

func printAttempts(w io.Writer, attempts []domain.DistributionAttempt) {
	if len(attempts) == 0 {
		fmt.Fprintln(w, "no distribution attempts")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAPER\tCHANNEL\tTARGET\tAT\tRESULT")
	for _, a := range attempts {
		result := "ok"
		if !a.Success {
			result = "failed: " + a.ErrorDetail
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.PaperID, a.ChannelType, a.ChannelTarget, a.AttemptedAt.Format(time.RFC3339), result)
	}
	tw.Flush()
}

func printStats(w io.Writer, s storage.Stats) {
	fmt.Fprintf(w, "papers:        %d\n", s.Total)
	fmt.Fprintf(w, "average score: %.2f\n", s.AverageScore)

	fmt.Fprintln(w, "\nscore distribution:")
	for score := domain.MaxRelevance; score >= domain.MinRelevance; score-- {
		n := s.ByScore[score]
		fmt.Fprintf(w, "  %2d  %4d  %s\n", score, n, strings.Repeat("#", min(n, 50)))
	}

	if len(s.Monthly) == 0 {
		return
	}
	months := append([]storage.MonthStats(nil), s.Monthly...)
	sort.Slice(months, func(i, j int) bool { return months[i].Month > months[j].Month })

	fmt.Fprintln(w, "\nmonthly:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  MONTH\tPAPERS\tAVG")
	for _, m := range months {
		fmt.Fprintf(tw, "  %s\t%d\t%.2f\n", m.Month, m.Total, m.AverageScore)
	}
	tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
