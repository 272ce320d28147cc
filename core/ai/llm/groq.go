// Package llm provides the language-model capability used for answer
// synthesis. The production provider calls Groq's OpenAI-compatible chat
// completions API with llama-3.1-8b-instant.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mnemonic-kb/mnemonic/core"
)

const (
	defaultEndpoint = "https://api.groq.com/openai/v1"
	defaultModel    = "llama-3.1-8b-instant"
	defaultTimeout  = 60 * time.Second
)

// Config configures the Groq completion provider.
type Config struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// GroqProvider implements core.CompletionProvider over Groq's chat
// completions API. Errors are classified as retryable for timeouts, rate
// limits, and 5xx responses so the synthesis retry policy can absorb
// transient failures.
type GroqProvider struct {
	config     Config
	httpClient *http.Client
}

// NewGroqProvider creates a completion provider. The API key is required.
func NewGroqProvider(config Config) (*GroqProvider, error) {
	if config.APIKey == "" {
		return nil, core.NewQueryError("NewGroqProvider", core.ErrInvalidInput, "Groq API key is required", false)
	}
	if config.Endpoint == "" {
		config.Endpoint = defaultEndpoint
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	return &GroqProvider{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	TopP        float64       `json:"top_p"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat completion and returns the trimmed message text.
func (p *GroqProvider) Complete(ctx context.Context, req core.CompletionRequest) (string, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model: p.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
	})
	if err != nil {
		return "", core.NewQueryError("Complete", err, "failed to marshal request", false)
	}

	url := strings.TrimRight(p.config.Endpoint, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", core.NewQueryError("Complete", err, "failed to create request", false)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		// Network failures and client timeouts are worth another attempt.
		return "", core.NewQueryError("Complete", err, "completion API call failed", true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", core.NewQueryError("Complete",
			fmt.Errorf("completion API returned status %d: %s", resp.StatusCode, string(respBody)),
			"", isTransientStatus(resp.StatusCode))
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", core.NewQueryError("Complete", err, "failed to decode response", false)
	}
	if len(completion.Choices) == 0 {
		return "", core.NewQueryError("Complete", fmt.Errorf("completion response contained no choices"), "", false)
	}

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

func isTransientStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError
}
