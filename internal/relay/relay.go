// Package relay talks to OpenAI-compatible chat-completion endpoints.
package relay

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
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/spigell/apply-copilot/internal/ai"
	"github.com/spigell/apply-copilot/internal/logger"
	"github.com/spigell/apply-copilot/internal/utils"
)

const (
	providerName    = "openai-compatible"
	contentType     = "application/json"
	userAgent       = "spigell/apply-copilot"
	completionsPath = "/v1/chat/completions"

	maxTokens     = 500
	temperature   = 0.7
	pingMaxTokens = 10
	pingPrompt    = `Say "ok"`

	defaultMaxLogLength = 200
)

// ErrInvalidResponse is returned when a successful response has no choices.
var ErrInvalidResponse = errors.New("invalid API response format")

// APIError is a non-success HTTP answer from the endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Config tunes the HTTP client. A zero Timeout keeps the transport default.
type Config struct {
	Timeout      time.Duration
	MaxLogLength int
}

type Client struct {
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	maxLogLen  int
}

type chatRequest struct {
	Model          string       `json:"model"`
	Messages       []ai.Message `json:"messages"`
	MaxTokens      int          `json:"max_tokens"`
	Temperature    *float64     `json:"temperature,omitempty"`
	ReasoningSplit bool         `json:"reasoning_split,omitempty"`
}

func New(log *zap.Logger, cfg Config) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxLogLength <= 0 {
		cfg.MaxLogLength = defaultMaxLogLength
	}

	return &Client{
		logger:     log,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		UserAgent:  userAgent,
		maxLogLen:  cfg.MaxLogLength,
	}
}

func (c *Client) Name() string { return providerName }

// CompletionsURL strips a trailing /v1 from baseURL and appends the chat
// completions path, so both "https://host" and "https://host/v1" work.
func CompletionsURL(baseURL string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return "", errors.New("base URL is required")
	}
	base = strings.TrimSuffix(base, "/v1")
	return base + completionsPath, nil
}

// Complete sends req and returns the answer text. The message content is
// preferred; when it is empty the first reasoning detail is used instead.
func (c *Client) Complete(ctx context.Context, req ai.Request) (string, error) {
	temp := temperature
	body := chatRequest{
		Model:          req.Model,
		Messages:       req.Messages,
		MaxTokens:      maxTokens,
		Temperature:    &temp,
		ReasoningSplit: true,
	}

	log := logger.WithCommonFields(c.logger, providerName, req.Model)
	log.Debug("completion request",
		zap.Int("messages", len(req.Messages)),
		zap.String("prompt_preview", utils.TruncateForLog(lastContent(req.Messages), c.maxLogLen)),
	)

	resp, data, err := c.post(ctx, req, body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
		log.Debug("completion failed", zap.Int("status", resp.StatusCode), zap.String("error", apiErr.Message))
		return "", apiErr
	}

	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("decode response: %w", ErrInvalidResponse)
	}

	choice := gjson.GetBytes(data, "choices.0")
	if !choice.Exists() || choice.Type == gjson.Null {
		return "", ErrInvalidResponse
	}

	answer := choice.Get("message.content").String()
	if answer == "" {
		if detail := choice.Get("message.reasoning_details.0"); detail.Exists() && detail.Type != gjson.Null {
			answer = detail.Get("text").String()
		}
	}

	log.Debug("completion response",
		zap.Int("response_length", utf8.RuneCountInString(answer)),
		zap.String("response_preview", utils.TruncateForLog(answer, c.maxLogLen)),
	)

	return answer, nil
}

// Ping sends a tiny completion to check the endpoint and the key.
func (c *Client) Ping(ctx context.Context, req ai.Request) error {
	body := chatRequest{
		Model:     req.Model,
		Messages:  []ai.Message{{Role: ai.RoleUser, Content: pingPrompt}},
		MaxTokens: pingMaxTokens,
	}

	resp, _, err := c.post(ctx, req, body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	c.logger.Info("connection test passed", logger.CommonFields(providerName, req.Model)...)
	return nil
}

func (c *Client) post(ctx context.Context, req ai.Request, body chatRequest) (*http.Response, []byte, error) {
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		return nil, nil, ai.ErrMissingAPIKey
	}

	url, err := CompletionsURL(req.BaseURL)
	if err != nil {
		return nil, nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", apiKey))
	httpReq.Header.Set("User-Agent", c.UserAgent)

	c.logger.Debug("make request", zap.String("url", url))
	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}

	return resp, data, nil
}

// errorMessage prefers the provider's error.message, then the whole JSON
// body, then the status line.
func errorMessage(status int, data []byte) string {
	if len(bytes.TrimSpace(data)) > 0 && gjson.ValidBytes(data) {
		if msg := gjson.GetBytes(data, "error.message"); msg.Exists() && msg.String() != "" {
			return msg.String()
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, data); err == nil {
			return compact.String()
		}
	}
	return fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
}

func lastContent(messages []ai.Message) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].Content
}
