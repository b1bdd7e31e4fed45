package llm

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

	"PaperScanner/internal/config"
	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
)

const (
	defaultChatGPTEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultChatGPTModel    = "gpt-4o-mini"
)

// ChatGPTClient implements ports.Assessor backed by OpenAI-compatible chat completion APIs.
type ChatGPTClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	topic        string
	maxTokens    int
	maxChars     int
	httpClient   *http.Client
}

var (
	_ ports.Assessor         = (*ChatGPTClient)(nil)
	_ ports.AbstractAssessor = (*ChatGPTClient)(nil)
)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.AssessmentConfig, httpClient *http.Client) *ChatGPTClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultChatGPTEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = defaultChatGPTModel
	}
	return &ChatGPTClient{
		endpoint:     endpoint,
		model:        model,
		apiKey:       cfg.APIKey,
		systemPrompt: systemPrompt(cfg.SystemPrompt),
		topic:        cfg.Topic,
		maxTokens:    cfg.MaxTokens,
		maxChars:     cfg.MaxContentChars,
		httpClient:   httpClient,
	}
}

// Assess evaluates the paper from its full content.
func (c *ChatGPTClient) Assess(ctx context.Context, req ports.AssessmentRequest) (domain.Assessment, error) {
	return c.complete(ctx, buildPrompt(c.topic, req, false, c.maxChars))
}

// AssessAbstract evaluates the paper from title and abstract only.
func (c *ChatGPTClient) AssessAbstract(ctx context.Context, req ports.AssessmentRequest) (domain.Assessment, error) {
	return c.complete(ctx, buildPrompt(c.topic, req, true, c.maxChars))
}

func (c *ChatGPTClient) complete(ctx context.Context, prompt string) (domain.Assessment, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.Assessment{}, domain.Permanent(errors.New("chatgpt client misconfigured"))
	}

	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": c.systemPrompt},
			{"role": "user", "content": prompt},
		},
		"temperature":     0,
		"response_format": map[string]string{"type": "json_object"},
	}
	if c.maxTokens > 0 {
		payload["max_tokens"] = c.maxTokens
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Assessment{}, domain.Permanent(fmt.Errorf("marshal chatgpt payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Assessment{}, domain.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Assessment{}, domain.Transient(fmt.Errorf("send chatgpt request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Assessment{}, classifyStatus(resp.StatusCode,
			fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload))))
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Assessment{}, domain.Transient(fmt.Errorf("decode chatgpt response: %w", err))
	}
	if len(decoded.Choices) == 0 {
		return domain.Assessment{}, domain.Permanent(errors.New("chatgpt returned no choices"))
	}
	return parseAssessment(decoded.Choices[0].Message.Content)
}
