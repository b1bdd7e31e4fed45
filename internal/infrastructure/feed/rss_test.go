package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"PaperScanner/internal/domain"
)

const arxivRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss xmlns:dc="http://purl.org/dc/elements/1.1/" version="2.0">
  <channel>
    <title>cs.IR updates on arXiv.org</title>
    <link>http://rss.arxiv.org/rss/cs.IR</link>
    <description>cs.IR updates</description>
    <skipDays>
      <day>Saturday</day>
      <day>Sunday</day>
    </skipDays>
    <item>
      <title>Dense Retrieval
        at Scale</title>
      <link>https://arxiv.org/abs/2511.01234</link>
      <description>arXiv:2511.01234v1 Announce Type: new
Abstract: We study &lt;b&gt;retrieval&lt;/b&gt;.</description>
      <dc:creator>Jane Doe, Richard Roe</dc:creator>
      <pubDate>Mon, 10 Nov 2025 00:00:00 -0500</pubDate>
    </item>
    <item>
      <title>No link</title>
    </item>
  </channel>
</rss>`

const emptyAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Empty</title>
  <id>urn:example</id>
  <updated>2025-11-10T00:00:00Z</updated>
</feed>`

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRSSFetcherEntries(t *testing.T) {
	t.Parallel()

	server := serve(t, http.StatusOK, arxivRSS)
	f := NewRSSFetcher(server.Client(), nil)

	outcome, err := f.Fetch(context.Background(), domain.FeedSource{ID: server.URL, Name: "cs.IR"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if outcome.Kind != domain.OutcomeEntries || len(outcome.Candidates) != 1 {
		t.Fatalf("expected one candidate, got %+v", outcome)
	}

	c := outcome.Candidates[0]
	if c.ID != "2511.01234" {
		t.Fatalf("unexpected id %q", c.ID)
	}
	if c.Title != "Dense Retrieval at Scale" {
		t.Fatalf("unexpected title %q", c.Title)
	}
	if c.Abstract != "We study retrieval." {
		t.Fatalf("unexpected abstract %q", c.Abstract)
	}
	if c.Authors != "Jane Doe, Richard Roe" {
		t.Fatalf("unexpected authors %q", c.Authors)
	}
	if c.FeedID != server.URL {
		t.Fatalf("candidate not mapped to feed: %q", c.FeedID)
	}
	if !c.PublishedAt.Equal(time.Date(2025, 11, 10, 5, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published time %v", c.PublishedAt)
	}

	saturday := time.Date(2025, 11, 8, 12, 0, 0, 0, time.UTC)
	if !outcome.Declared.Contains(saturday) || outcome.Declared.Contains(saturday.AddDate(0, 0, 2)) {
		t.Fatalf("unexpected declared quiet schedule %+v", outcome.Declared)
	}
}

func TestRSSFetcherEmptyFeed(t *testing.T) {
	t.Parallel()

	server := serve(t, http.StatusOK, emptyAtom)
	outcome, err := NewRSSFetcher(server.Client(), nil).Fetch(context.Background(), domain.FeedSource{ID: server.URL})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if outcome.Kind != domain.OutcomeEmpty || !outcome.Declared.Empty() {
		t.Fatalf("expected empty success without declared schedule, got %+v", outcome)
	}
}

func TestRSSFetcherTransportErrors(t *testing.T) {
	t.Parallel()

	for name, server := range map[string]*httptest.Server{
		"status": serve(t, http.StatusBadGateway, "bad gateway"),
		"parse":  serve(t, http.StatusOK, "this is not a feed"),
	} {
		_, err := NewRSSFetcher(server.Client(), nil).Fetch(context.Background(), domain.FeedSource{ID: server.URL})
		if !errors.Is(err, domain.ErrTransport) {
			t.Fatalf("%s: expected transport error, got %v", name, err)
		}
	}
}
