// Package summarize turns a crawled page record into a Markdown review of its
// SEO, accessibility and semantic structure using the Anthropic Messages API.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/joho/godotenv"

	"github.com/masahif/sitescope/internal/config"
)

const (
	anthropicVersion = "2023-06-01"
	noContent        = "No content returned from API."
	maxErrorBody     = 512
)

// ErrMissingAPIKey is returned when no API key is configured or exported
var ErrMissingAPIKey = errors.New("anthropic API key not configured")

const systemPrompt = `You are an expert analyst. Your task is to review structured JSON data from a webpage.
Summarize the strengths and weaknesses of this page in terms of SEO, accessibility, and semantic HTML structure.
Provide specific, actionable suggestions for improvements.
Structure your response clearly, using Markdown for headings (e.g., ## Strengths, ## Weaknesses, ## Suggestions).`

// APIError is a non-2xx response from the Messages API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic: unexpected status %d: %s", e.StatusCode, e.Body)
}

// AnthropicSummarizer reviews page records with a Claude model
type AnthropicSummarizer struct {
	client      *http.Client
	apiKey      string
	apiURL      string
	model       string
	maxTokens   int
	temperature float64
	retry       retrypolicy.RetryPolicy[*http.Response]
}

// LoadEnv loads variables from the given .env files (default ".env") without
// overriding the process environment. Missing files are skipped.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			slog.Warn("Failed to load env file", "file", file, "error", err)
			continue
		}
		slog.Debug("Loaded env file", "file", file)
	}
}

// NewAnthropicSummarizer creates a summarizer from cfg
func NewAnthropicSummarizer(cfg config.LLMConfig) (*AnthropicSummarizer, error) {
	apiKey := cfg.ResolveAPIKey()
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.anthropic.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1500
	}

	return &AnthropicSummarizer{
		client:      &http.Client{Timeout: timeout},
		apiKey:      apiKey,
		apiURL:      apiURL,
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		retry:       newRetryPolicy(time.Second, 4*time.Second),
	}, nil
}

// Overloaded and rate-limited responses are worth one more try
func newRetryPolicy(base, limit time.Duration) retrypolicy.RetryPolicy[*http.Response] {
	return retrypolicy.NewBuilder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			}
			switch resp.StatusCode {
			case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, 529:
				return true
			}
			return false
		}).
		WithBackoff(base, limit).
		WithMaxRetries(2).
		Build()
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Summarize asks the model to review one page record and returns its
// Markdown answer.
func (s *AnthropicSummarizer) Summarize(ctx context.Context, record json.RawMessage) (string, error) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, record, "", "  "); err != nil {
		return "", fmt.Errorf("anthropic: invalid record: %w", err)
	}

	payload, err := json.Marshal(messagesRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		System:      systemPrompt,
		Messages: []message{{
			Role:    "user",
			Content: "\nHere is a structured JSON of a webpage:\n\n" + pretty.String() + "\n\nPlease analyze it based on the instructions provided.\n",
		}},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: marshal request: %w", err)
	}

	var (
		resp    *http.Response
		lastErr error
	)
	_, execErr := failsafe.With(s.retry).WithContext(ctx).Get(func() (*http.Response, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/v1/messages", bytes.NewReader(payload))
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", s.apiKey)
		req.Header.Set("Anthropic-Version", anthropicVersion)

		r, doErr := s.client.Do(req)
		// Only the latest response is kept open
		if resp != nil {
			_ = resp.Body.Close()
		}
		resp, lastErr = r, doErr
		return r, doErr
	})
	if resp == nil {
		if lastErr == nil {
			lastErr = execErr
		}
		return "", fmt.Errorf("anthropic: request failed: %w", lastErr)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("anthropic: read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &APIError{StatusCode: resp.StatusCode, Body: excerpt(body)}
	}

	var decoded messagesResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}
	if len(decoded.Content) == 0 {
		return noContent, nil
	}
	return strings.TrimSpace(decoded.Content[0].Text), nil
}

func excerpt(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return text
}
