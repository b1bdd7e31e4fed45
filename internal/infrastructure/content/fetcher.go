package content

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
)

// maxDocumentBytes bounds how much of a document is read into memory.
const maxDocumentBytes = 10 << 20

// HTTPFetcher downloads paper documents and reads abstract page metadata.
type HTTPFetcher struct {
	client *http.Client
}

var (
	_ ports.ContentFetcher   = (*HTTPFetcher)(nil)
	_ ports.MetadataResolver = (*HTTPFetcher)(nil)
)

// NewHTTPFetcher wires an HTTP client; nil uses a 20s timeout client.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTTPFetcher{client: client}
}

// Fetch returns the raw document at sourceURL.
func (f *HTTPFetcher) Fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "PaperScanner/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request %s: %v", domain.ErrTransport, sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", domain.ErrTransport, sourceURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrTransport, sourceURL, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: %s returned an empty document", domain.ErrTransport, sourceURL)
	}
	return body, nil
}

// Resolve reads the citation_* meta tags of an abstract page.
func (f *HTTPFetcher) Resolve(ctx context.Context, sourceURL string) (domain.Candidate, error) {
	body, err := f.Fetch(ctx, sourceURL)
	if err != nil {
		return domain.Candidate{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("parse %s: %w", sourceURL, err)
	}

	meta := func(name string) []string {
		var values []string
		doc.Find(`meta[name="` + name + `"]`).Each(func(_ int, s *goquery.Selection) {
			if v := strings.TrimSpace(s.AttrOr("content", "")); v != "" {
				values = append(values, v)
			}
		})
		return values
	}
	first := func(name string) string {
		if v := meta(name); len(v) > 0 {
			return v[0]
		}
		return ""
	}

	title := first("citation_title")
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if title == "" {
		return domain.Candidate{}, fmt.Errorf("no title metadata at %s", sourceURL)
	}

	id := domain.ArxivID(sourceURL)
	if id == "" {
		id = domain.NormalizeArxivID(first("citation_arxiv_id"))
	}
	if id == "" {
		id = sourceURL
	}

	c := domain.Candidate{
		ID:        id,
		SourceURL: sourceURL,
		Title:     strings.Join(strings.Fields(title), " "),
		Authors:   strings.Join(meta("citation_author"), ", "),
		Abstract:  strings.Join(strings.Fields(first("citation_abstract")), " "),
	}
	if c.Abstract == "" {
		c.Abstract = strings.Join(strings.Fields(strings.TrimPrefix(strings.TrimSpace(doc.Find("blockquote.abstract").Text()), "Abstract:")), " ")
	}
	if date := first("citation_date"); date != "" {
		if t, err := time.Parse("2006/01/02", date); err == nil {
			c.PublishedAt = t
		}
	}
	return c, nil
}

// ExtractText reduces an HTML document to readable text; other documents are
// returned as-is. The result is cut to limit runes when limit > 0.
func ExtractText(doc []byte, limit int) string {
	text := string(doc)
	if looksLikeHTML(doc) {
		if parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(doc)); err == nil {
			parsed.Find("script, style, nav, header, footer").Remove()
			text = parsed.Find("body").Text()
			if strings.TrimSpace(text) == "" {
				text = parsed.Text()
			}
		}
	}
	text = strings.Join(strings.Fields(text), " ")
	if limit > 0 {
		if runes := []rune(text); len(runes) > limit {
			text = string(runes[:limit])
		}
	}
	return text
}

func looksLikeHTML(doc []byte) bool {
	head := bytes.ToLower(doc[:min(len(doc), 512)])
	return bytes.Contains(head, []byte("<html")) || bytes.Contains(head, []byte("<!doctype html")) || bytes.Contains(head, []byte("<body"))
}
