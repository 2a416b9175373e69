package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/pathwise/pathwise-backend/internal/ai"
	"github.com/pathwise/pathwise-backend/internal/logger"
	"github.com/pathwise/pathwise-backend/internal/utils"
)

// Client is the tier-1 provider, backed by the official genai SDK.
type Client struct {
	client *genai.Client
	model  string
	log    *logger.Logger
}

func NewClient(log *logger.Logger) (*Client, error) {
	apiKey := utils.GetEnv("GEMINI_API_KEY", "", log)
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}
	model := utils.GetEnv("GEMINI_MODEL", "gemini-2.0-flash", log)
	c, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{
		client: c,
		model:  model,
		log:    log.With("client", "GeminiClient"),
	}, nil
}

func (c *Client) Key() string   { return "gemini" }
func (c *Client) Model() string { return c.model }

func (c *Client) Generate(ctx context.Context, req ai.GenerateRequest) (ai.GenerateResult, error) {
	var systemInstruction *genai.Content
	if req.System != "" {
		systemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
			Role:  "user",
		}
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSONMode {
		config.ResponseMIMEType = "application/json"
	}
	contents := []*genai.Content{
		{Parts: []*genai.Part{{Text: req.User}}, Role: "user"},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		if isQuotaErr(err) {
			return ai.GenerateResult{}, fmt.Errorf("gemini: %w: %w", ai.ErrQuotaExceeded, err)
		}
		return ai.GenerateResult{}, fmt.Errorf("gemini generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ai.GenerateResult{}, errors.New("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	out := ai.GenerateResult{Text: sb.String()}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if strings.TrimSpace(out.Text) == "" {
		return ai.GenerateResult{}, errors.New("gemini returned empty text")
	}
	return out, nil
}

func isQuotaErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "quota")
}
