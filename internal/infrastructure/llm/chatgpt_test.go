package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"PaperScanner/internal/config"
	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
)

func TestChatGPTClientAssess(t *testing.T) {
	t.Parallel()

	var gotAuth, gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel, _ = body["model"].(string)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"relevance_score\": 9, \"summary\": \"Great\", \"key_findings\": \"k\", \"applications\": \"a\"}"}}]}`))
	}))
	defer server.Close()

	client := NewChatGPTClient(config.AssessmentConfig{Endpoint: server.URL, APIKey: "secret", Model: "test-model"}, server.Client())
	got, err := client.Assess(context.Background(), ports.AssessmentRequest{PaperID: "p", Title: "T", Abstract: "A"})
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if got.RelevanceScore != 9 || got.Summary != "Great" {
		t.Fatalf("unexpected assessment %+v", got)
	}
	if gotAuth != "Bearer secret" || gotModel != "test-model" {
		t.Fatalf("unexpected request auth=%q model=%q", gotAuth, gotModel)
	}
}

func TestChatGPTClientErrorClasses(t *testing.T) {
	t.Parallel()

	for status, want := range map[int]error{
		http.StatusTooManyRequests: domain.ErrAssessmentTransient,
		http.StatusBadGateway:      domain.ErrAssessmentTransient,
		http.StatusUnauthorized:    domain.ErrAssessmentPermanent,
	} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", status)
		}))
		client := NewChatGPTClient(config.AssessmentConfig{Endpoint: server.URL, APIKey: "k"}, server.Client())
		_, err := client.AssessAbstract(context.Background(), ports.AssessmentRequest{Title: "T"})
		server.Close()
		if !errors.Is(err, want) {
			t.Fatalf("status %d: expected %v, got %v", status, want, err)
		}
	}
}

func TestChatGPTClientMisconfigured(t *testing.T) {
	t.Parallel()

	_, err := NewChatGPTClient(config.AssessmentConfig{}, nil).Assess(context.Background(), ports.AssessmentRequest{})
	if !errors.Is(err, domain.ErrAssessmentPermanent) {
		t.Fatalf("expected permanent error without api key, got %v", err)
	}
}
