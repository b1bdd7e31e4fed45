package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/infrastructure/content"
	"PaperScanner/internal/ports"
)

// Client talks to an external assessment service exposing POST /assess.
type Client struct {
	endpoint string
	apiKey   string
	topic    string
	maxChars int
	http     *http.Client
}

var (
	_ ports.Assessor         = (*Client)(nil)
	_ ports.AbstractAssessor = (*Client)(nil)
)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey, topic string, maxChars int, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		apiKey:   apiKey,
		topic:    topic,
		maxChars: maxChars,
		http:     httpClient,
	}
}

type assessRequest struct {
	PaperID      string `json:"paper_id"`
	Title        string `json:"title"`
	Authors      string `json:"authors,omitempty"`
	Abstract     string `json:"abstract"`
	Content      string `json:"content,omitempty"`
	Topic        string `json:"topic,omitempty"`
	AbstractOnly bool   `json:"abstract_only"`
}

type assessResponse struct {
	RelevanceScore int    `json:"relevance_score"`
	Summary        string `json:"summary"`
	KeyFindings    string `json:"key_findings"`
	Applications   string `json:"applications"`
}

// Assess sends the extracted document text for scoring and summarization.
func (c *Client) Assess(ctx context.Context, req ports.AssessmentRequest) (domain.Assessment, error) {
	return c.assess(ctx, req, false)
}

// AssessAbstract sends title and abstract only.
func (c *Client) AssessAbstract(ctx context.Context, req ports.AssessmentRequest) (domain.Assessment, error) {
	return c.assess(ctx, req, true)
}

func (c *Client) assess(ctx context.Context, req ports.AssessmentRequest, abstractOnly bool) (domain.Assessment, error) {
	payload := assessRequest{
		PaperID:      req.PaperID,
		Title:        req.Title,
		Authors:      req.Authors,
		Abstract:     req.Abstract,
		Topic:        c.topic,
		AbstractOnly: abstractOnly,
	}
	if !abstractOnly {
		payload.Content = content.ExtractText(req.Content, c.maxChars)
	}

	var resp assessResponse
	if err := c.post(ctx, "/assess", payload, &resp); err != nil {
		return domain.Assessment{}, err
	}

	return domain.Assessment{
		RelevanceScore: resp.RelevanceScore,
		Summary:        resp.Summary,
		KeyFindings:    resp.KeyFindings,
		Applications:   resp.Applications,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	if c.endpoint == "" {
		return domain.Permanent(errors.New("assessment service endpoint is not configured"))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Permanent(fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return domain.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Transient(fmt.Errorf("do request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(detail)))
		switch {
		case resp.StatusCode == http.StatusRequestTimeout,
			resp.StatusCode == http.StatusTooManyRequests,
			resp.StatusCode >= http.StatusInternalServerError:
			return domain.Transient(err)
		}
		return domain.Permanent(err)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return domain.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
