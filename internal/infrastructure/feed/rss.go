package feed

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/rss"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
)

// arXiv RSS descriptions start with "arXiv:2401.00001v1 Announce Type: new Abstract: ...".
var announcePrefix = regexp.MustCompile(`(?s)^\s*arXiv:\S+\s+Announce Type:\s*\S+\s+Abstract:\s*`)

// RSSFetcher reads RSS and Atom feeds.
type RSSFetcher struct {
	client *http.Client
	logger *slog.Logger
}

var _ ports.FeedFetcher = (*RSSFetcher)(nil)

// NewRSSFetcher wires an HTTP client; nil uses a 20s timeout client.
func NewRSSFetcher(client *http.Client, logger *slog.Logger) *RSSFetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &RSSFetcher{client: client, logger: logger}
}

// Fetch downloads and parses feed. Transport and parse problems are errors;
// a valid feed without items is an EmptySuccess outcome.
func (f *RSSFetcher) Fetch(ctx context.Context, feed domain.FeedSource) (domain.FetchOutcome, error) {
	body, err := f.download(ctx, feed.ID)
	if err != nil {
		return domain.FetchOutcome{}, err
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return domain.FetchOutcome{}, fmt.Errorf("%w: parse feed %s: %v", domain.ErrTransport, feed.ID, err)
	}

	candidates := make([]domain.Candidate, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		c, ok := toCandidate(item, feed.ID)
		if !ok {
			f.debug("skip item without link", "feed", feed.Name, "title", item.Title)
			continue
		}
		candidates = append(candidates, c)
	}

	outcome := domain.Entries(candidates)
	outcome.Declared = declaredQuiet(body)
	f.debug("feed fetched", "feed", feed.Name, "items", len(parsed.Items), "candidates", len(candidates))
	return outcome, nil
}

func (f *RSSFetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "PaperScanner/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request feed %s: %v", domain.ErrTransport, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: feed %s returned %s", domain.ErrTransport, url, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read feed %s: %v", domain.ErrTransport, url, err)
	}
	return body, nil
}

func toCandidate(item *gofeed.Item, feedID string) (domain.Candidate, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		return domain.Candidate{}, false
	}

	id := domain.ArxivID(link)
	if id == "" {
		id = linkID(link)
	}

	names := make([]string, 0, len(item.Authors))
	for _, a := range item.Authors {
		if a != nil && strings.TrimSpace(a.Name) != "" {
			names = append(names, strings.TrimSpace(a.Name))
		}
	}

	abstract := item.Description
	if abstract == "" {
		abstract = item.Content
	}
	abstract = announcePrefix.ReplaceAllString(stripHTML(abstract), "")

	var published time.Time
	switch {
	case item.PublishedParsed != nil:
		published = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		published = item.UpdatedParsed.UTC()
	}

	return domain.Candidate{
		ID:          id,
		SourceURL:   link,
		Title:       strings.Join(strings.Fields(item.Title), " "),
		Authors:     strings.Join(names, ", "),
		Abstract:    abstract,
		FeedID:      feedID,
		PublishedAt: published,
	}, true
}

// declaredQuiet reads the RSS <skipDays> element. Atom feeds declare nothing.
func declaredQuiet(body []byte) domain.QuietSchedule {
	if gofeed.DetectFeedType(bytes.NewReader(body)) != gofeed.FeedTypeRSS {
		return domain.QuietSchedule{}
	}
	parsed, err := (&rss.Parser{}).Parse(bytes.NewReader(body))
	if err != nil {
		return domain.QuietSchedule{}
	}

	var q domain.QuietSchedule
	for _, day := range parsed.SkipDays {
		if wd, ok := domain.ParseWeekday(day); ok {
			q.Weekdays = append(q.Weekdays, wd)
		}
	}
	// skipDays are expressed in GMT.
	q.Location = time.UTC
	return q
}

func linkID(link string) string {
	h := sha256.Sum256([]byte(link))
	return fmt.Sprintf("%x", h[:16])
}

func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func (f *RSSFetcher) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}

// Kind identifies the strategy inside the scanner registry.
func (f *RSSFetcher) Kind() domain.FeedKind {
	return domain.FeedKindRSS
}
