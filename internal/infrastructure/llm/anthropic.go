package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"PaperScanner/internal/config"
	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
)

const (
	defaultAnthropicModel = "claude-3-5-haiku-latest"
	defaultMaxTokens      = 1024
)

// AnthropicAssessor scores papers with Claude through the Messages API.
type AnthropicAssessor struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	system    string
	topic     string
	maxChars  int
}

var (
	_ ports.Assessor         = (*AnthropicAssessor)(nil)
	_ ports.AbstractAssessor = (*AnthropicAssessor)(nil)
)

// NewAnthropicAssessor builds the assessor from configuration.
func NewAnthropicAssessor(cfg config.AssessmentConfig, httpClient *http.Client) *AnthropicAssessor {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries are owned by the processing retry policy.
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	client := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &AnthropicAssessor{
		client:    &client,
		model:     model,
		maxTokens: int64(maxTokens),
		system:    systemPrompt(cfg.SystemPrompt),
		topic:     cfg.Topic,
		maxChars:  cfg.MaxContentChars,
	}
}

// Assess evaluates the paper from its full content.
func (a *AnthropicAssessor) Assess(ctx context.Context, req ports.AssessmentRequest) (domain.Assessment, error) {
	return a.assess(ctx, buildPrompt(a.topic, req, false, a.maxChars))
}

// AssessAbstract evaluates the paper from title and abstract only.
func (a *AnthropicAssessor) AssessAbstract(ctx context.Context, req ports.AssessmentRequest) (domain.Assessment, error) {
	return a.assess(ctx, buildPrompt(a.topic, req, true, a.maxChars))
}

func (a *AnthropicAssessor) assess(ctx context.Context, prompt string) (domain.Assessment, error) {
	// Prefill "{" so Claude continues with the JSON object.
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: a.system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			anthropic.NewAssistantMessage(anthropic.NewTextBlock("{")),
		},
	})
	if err != nil {
		return domain.Assessment{}, classifyAnthropicError(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return domain.Assessment{}, domain.Permanent(errors.New("claude returned empty response"))
	}
	return parseAssessment("{" + text.String())
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode, fmt.Errorf("claude api: %w", err))
	}
	if errors.Is(err, context.Canceled) {
		return domain.Permanent(err)
	}
	// Network failures and deadlines are worth another attempt.
	return domain.Transient(fmt.Errorf("claude request: %w", err))
}
