package openrouter

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

	"github.com/pathwise/pathwise-backend/internal/ai"
	"github.com/pathwise/pathwise-backend/internal/logger"
	"github.com/pathwise/pathwise-backend/internal/utils"
)

// Client is the tier-3 backup provider. OpenRouter speaks the chat
// completions dialect, so the wire shape mirrors the tier-2 client with a
// different base URL and attribution headers.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	referer    string
	appTitle   string
	httpClient *http.Client
	log        *logger.Logger
}

func NewClient(log *logger.Logger) (*Client, error) {
	apiKey := utils.GetEnv("OPENROUTER_API_KEY", "", log)
	if apiKey == "" {
		return nil, errors.New("OPENROUTER_API_KEY is required")
	}
	model := utils.GetEnv("OPENROUTER_MODEL", "meta-llama/llama-3.1-70b-instruct", log)
	baseURL := strings.TrimRight(utils.GetEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1", log), "/")
	referer := utils.GetEnv("OPENROUTER_REFERER", "https://pathwise.dev", log)
	appTitle := utils.GetEnv("OPENROUTER_APP_TITLE", "Pathwise", log)
	timeout := time.Duration(utils.GetEnvAsInt("OPENROUTER_HTTP_TIMEOUT_S", 90, log)) * time.Second
	return &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		referer:    referer,
		appTitle:   appTitle,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With("client", "OpenRouterClient"),
	}, nil
}

func (c *Client) Key() string   { return "openrouter" }
func (c *Client) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("openrouter http %d: %s", e.StatusCode, e.Body)
}

func (e *httpError) HTTPStatusCode() int { return e.StatusCode }

func (c *Client) Generate(ctx context.Context, req ai.GenerateRequest) (ai.GenerateResult, error) {
	msgs := []chatMessage{}
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: req.User})
	body := chatRequest{
		Model:     c.model,
		Messages:  msgs,
		MaxTokens: req.MaxTokens,
	}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return ai.GenerateResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return ai.GenerateResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("HTTP-Referer", c.referer)
	httpReq.Header.Set("X-Title", c.appTitle)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ai.GenerateResult{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return ai.GenerateResult{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		herr := &httpError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
		if resp.StatusCode == 429 {
			return ai.GenerateResult{}, fmt.Errorf("%s: %w: %w", c.Key(), ai.ErrQuotaExceeded, herr)
		}
		return ai.GenerateResult{}, herr
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ai.GenerateResult{}, fmt.Errorf("%s: failed to decode response: %w", c.Key(), err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return ai.GenerateResult{}, fmt.Errorf("%s returned no content", c.Key())
	}
	return ai.GenerateResult{
		Text:         parsed.Choices[0].Message.Content,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
