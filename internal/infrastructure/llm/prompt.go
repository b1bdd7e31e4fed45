package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/infrastructure/content"
	"PaperScanner/internal/ports"
)

const (
	defaultTopic           = "e-commerce marketplaces, search and recommendation systems, user behavior and applied machine learning"
	defaultMaxContentChars = 60000
)

// assessmentResult is the JSON object every provider is asked to return.
type assessmentResult struct {
	RelevanceScore json.Number     `json:"relevance_score"`
	Summary        string          `json:"summary"`
	KeyFindings    json.RawMessage `json:"key_findings"`
	Applications   json.RawMessage `json:"applications"`
}

func systemPrompt(custom string) string {
	custom = strings.TrimSpace(custom)
	if custom == "" {
		return "You are an expert in AI and machine learning who evaluates research papers for practical relevance. You answer with JSON only."
	}
	return custom
}

// buildPrompt renders the user message for one paper. With abstractOnly the
// document body is omitted.
func buildPrompt(topic string, req ports.AssessmentRequest, abstractOnly bool, maxChars int) string {
	if strings.TrimSpace(topic) == "" {
		topic = defaultTopic
	}
	if maxChars <= 0 {
		maxChars = defaultMaxContentChars
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", req.Title)
	if req.Authors != "" {
		fmt.Fprintf(&sb, "Authors: %s\n", req.Authors)
	}
	fmt.Fprintf(&sb, "\nAbstract: %s\n", req.Abstract)
	if !abstractOnly && len(req.Content) > 0 {
		if text := content.ExtractText(req.Content, maxChars); text != "" {
			fmt.Fprintf(&sb, "\nFull text:\n%s\n", text)
		}
	}

	fmt.Fprintf(&sb, "\nTask: evaluate how relevant this paper is to %s.\n\n", topic)
	sb.WriteString("Respond with ONLY a JSON object with these fields:\n")
	sb.WriteString("- relevance_score: integer from 1 to 10, where 10 is highly relevant\n")
	sb.WriteString("- summary: executive summary in 2-3 sentences\n")
	sb.WriteString("- key_findings: the key findings as a short bullet list in one string\n")
	sb.WriteString("- applications: potential practical applications as a short bullet list in one string\n")
	return sb.String()
}

// parseAssessment decodes the first JSON object found in text. Malformed
// output is a permanent failure: asking again returns the same shape.
func parseAssessment(text string) (domain.Assessment, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return domain.Assessment{}, domain.Permanent(fmt.Errorf("no JSON object in response: %.200s", text))
	}

	var res assessmentResult
	dec := json.NewDecoder(strings.NewReader(text[start : end+1]))
	dec.UseNumber()
	if err := dec.Decode(&res); err != nil {
		return domain.Assessment{}, domain.Permanent(fmt.Errorf("decode assessment: %w (response was: %.200s)", err, text))
	}

	score, err := parseScore(res.RelevanceScore)
	if err != nil {
		return domain.Assessment{}, domain.Permanent(err)
	}

	return domain.Assessment{
		RelevanceScore: score,
		Summary:        strings.TrimSpace(res.Summary),
		KeyFindings:    flatten(res.KeyFindings),
		Applications:   flatten(res.Applications),
	}, nil
}

func parseScore(n json.Number) (int, error) {
	if n == "" {
		return 0, errors.New("missing relevance_score")
	}
	if i, err := strconv.Atoi(n.String()); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("invalid relevance_score %q", n)
	}
	return int(f + 0.5), nil
}

// flatten accepts either a string or a list of strings.
func flatten(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		lines := make([]string, 0, len(list))
		for _, item := range list {
			if item = strings.TrimSpace(item); item != "" {
				lines = append(lines, "- "+item)
			}
		}
		return strings.Join(lines, "\n")
	}
	return strings.TrimSpace(string(raw))
}

// classifyStatus maps an HTTP status from an assessment backend to the
// transient/permanent taxonomy.
func classifyStatus(status int, err error) error {
	if status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= http.StatusInternalServerError {
		return domain.Transient(err)
	}
	return domain.Permanent(err)
}
