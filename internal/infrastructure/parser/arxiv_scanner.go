package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"PaperScanner/internal/domain"
)

const (
	arxivBaseURL = "https://arxiv.org"
)

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// ArxivScanner reads arXiv listing pages (e.g. /list/cs.IR/pastweek) and
// returns the announcements of the newest listed day.
type ArxivScanner struct {
	client   *http.Client
	pageSize int
	maxPages int
	logger   *slog.Logger
}

// NewArxivScanner wires an HTTP client; pageSize defaults to 200.
func NewArxivScanner(client *http.Client, logger *slog.Logger) *ArxivScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &ArxivScanner{client: client, pageSize: 200, maxPages: 5, logger: logger}
}

// Kind identifies the strategy inside the registry.
func (a *ArxivScanner) Kind() domain.FeedKind {
	return domain.FeedKindArxivListing
}

// Fetch walks the listing pages of feed until entries older than the newest
// day appear. A listing without entries is an EmptySuccess outcome.
func (a *ArxivScanner) Fetch(ctx context.Context, feed domain.FeedSource) (domain.FetchOutcome, error) {
	var (
		results []domain.Candidate
		newest  time.Time
		seen    = map[string]struct{}{}
	)

	for page, skip := 0, 0; page < a.maxPages; page, skip = page+1, skip+a.pageSize {
		pageURL, err := buildPageURL(feed.ID, skip, a.pageSize)
		if err != nil {
			return domain.FetchOutcome{}, err
		}

		doc, err := a.fetchDocument(ctx, pageURL)
		if err != nil {
			return domain.FetchOutcome{}, fmt.Errorf("listing %s: %w", feed.Name, err)
		}

		if newest.IsZero() {
			newest = newestDay(doc)
		}
		pageEntries, shouldContinue := a.extractEntries(doc, newest, feed.ID)
		for _, c := range pageEntries {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			results = append(results, c)
		}

		if !shouldContinue {
			break
		}
	}

	a.debug("listing scanned", "feed", feed.Name, "day", newest.Format(time.DateOnly), "entries", len(results))
	return domain.Entries(results), nil
}

func (a *ArxivScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "PaperScanner/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request document: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: arxiv returned %s", domain.ErrTransport, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse document: %v", domain.ErrTransport, err)
	}

	return doc, nil
}

// extractEntries keeps entries dated on targetDay, or every entry when the
// listing carries no dates. It stops once an older entry appears.
func (a *ArxivScanner) extractEntries(doc *goquery.Document, targetDay time.Time, feedID string) ([]domain.Candidate, bool) {
	var (
		collected    []domain.Candidate
		continueScan = true
		processed    int
	)

	doc.Find("dl > dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
		dd := dt.Next()
		processed++

		candidate, dated := parseEntry(dt, dd, feedID)
		if candidate.ID == "" {
			return true
		}
		if !dated || targetDay.IsZero() {
			collected = append(collected, candidate)
			return true
		}

		day := candidate.PublishedAt.UTC().Truncate(24 * time.Hour)
		if day.Equal(targetDay) {
			collected = append(collected, candidate)
		}
		if day.Before(targetDay) {
			continueScan = false
			return false
		}
		return true
	})

	if processed < a.pageSize {
		continueScan = false
	}

	return collected, continueScan
}

func newestDay(doc *goquery.Document) time.Time {
	var newest time.Time
	doc.Find("dl > dd").Each(func(_ int, dd *goquery.Selection) {
		if t, ok := entryDate(dd); ok {
			day := t.UTC().Truncate(24 * time.Hour)
			if day.After(newest) {
				newest = day
			}
		}
	})
	return newest
}

func parseEntry(dt, dd *goquery.Selection, feedID string) (domain.Candidate, bool) {
	link := dt.Find("a[href*=\"/abs/\"]").First()
	href, _ := link.Attr("href")
	if href == "" {
		return domain.Candidate{}, false
	}
	if !strings.HasPrefix(href, "http") {
		href = strings.TrimSuffix(arxivBaseURL, "/") + href
	}

	id := domain.ArxivID(href)
	if id == "" {
		id = domain.NormalizeArxivID(strings.TrimSpace(link.Text()))
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimPrefix(title, "Title:")
	title = strings.Join(strings.Fields(title), " ")

	var authors []string
	dd.Find(".list-authors a").Each(func(_ int, s *goquery.Selection) {
		if name := strings.TrimSpace(s.Text()); name != "" {
			authors = append(authors, name)
		}
	})

	abstract := dd.Find("p.mathjax").First().Text()
	abstract = strings.TrimPrefix(strings.TrimSpace(abstract), "Abstract:")
	abstract = strings.Join(strings.Fields(abstract), " ")

	publishedAt, dated := entryDate(dd)

	return domain.Candidate{
		ID:          id,
		SourceURL:   domain.ArxivAbsURL(id),
		Title:       title,
		Authors:     strings.Join(authors, ", "),
		Abstract:    abstract,
		FeedID:      feedID,
		PublishedAt: publishedAt,
	}, dated
}

func entryDate(dd *goquery.Selection) (time.Time, bool) {
	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}
	match := dateExpr.FindString(dateText)
	if match == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse("2 Jan 2006", match)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (a *ArxivScanner) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
