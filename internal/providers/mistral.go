package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	MistralName    = "mistral"
	MistralBaseURL = "https://api.mistral.ai/v1"
	MistralModel   = "mistral-large-latest"
)

// MistralConfig holds configuration for the Mistral structuring client.
type MistralConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	RateLimit  int // Requests per minute (default: 60)
	MaxRetries int
	RetryDelay time.Duration
}

// MistralClient implements Structurer using the Mistral chat completions API
// with JSON-object response format.
type MistralClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxRetries int
	retryDelay time.Duration
	limiter    *RateLimiter
	client     *http.Client
}

// NewMistralClient creates a new Mistral structuring client.
func NewMistralClient(cfg MistralConfig) *MistralClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = MistralBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = MistralModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 60
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	return &MistralClient{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		limiter:    NewRateLimiter(cfg.RateLimit),
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider identifier.
func (c *MistralClient) Name() string {
	return MistralName
}

// StructurePage normalizes the raw text of a page.
func (c *MistralClient) StructurePage(ctx context.Context, req PageRequest) (*StructuredRecord, error) {
	return c.structure(ctx, pagePrompt(req.Text), structurePageMaxTokens)
}

// StructureFigure normalizes the captured text of a figure.
func (c *MistralClient) StructureFigure(ctx context.Context, req FigureRequest) (*StructuredRecord, error) {
	return c.structure(ctx, figurePrompt(req.Text), structureFigureMaxTokens)
}

type mistralChatRequest struct {
	Model          string                `json:"model"`
	Messages       []mistralChatMessage  `json:"messages"`
	ResponseFormat mistralResponseFormat `json:"response_format"`
	Temperature    float64               `json:"temperature"`
	MaxTokens      int                   `json:"max_tokens"`
}

type mistralChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type mistralResponseFormat struct {
	Type string `json:"type"`
}

type mistralChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// statusError marks HTTP failures so the retry predicate can distinguish
// transient server-side conditions from permanent request errors.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("mistral API returned status %d: %s", e.code, e.body)
}

func isTransient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	// Network-level failures (connection reset, timeout) are retryable.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *MistralClient) structure(ctx context.Context, prompt string, maxTokens int) (*StructuredRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqBody := mistralChatRequest{
		Model:          c.model,
		Messages:       []mistralChatMessage{{Role: "user", Content: prompt}},
		ResponseFormat: mistralResponseFormat{Type: "json_object"},
		Temperature:    structureTemperature,
		MaxTokens:      maxTokens,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	var content string
	err = retry.Do(
		func() error {
			out, callErr := c.doChat(ctx, payload)
			if callErr != nil {
				return callErr
			}
			content = out
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	var rec StructuredRecord
	if err := json.Unmarshal([]byte(content), &rec); err != nil {
		return nil, fmt.Errorf("mistral response is not valid JSON: %w", err)
	}
	return &rec, nil
}

func (c *MistralClient) doChat(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("mistral request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode, body: string(body)}
	}

	var chatResp mistralChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("mistral response contained no choices")
	}
	return chatResp.Choices[0].Message.Content, nil
}
