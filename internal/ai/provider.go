package ai

import "context"

// GenerateRequest is the provider-neutral call shape: messages in, text out,
// optionally constrained to JSON output.
type GenerateRequest struct {
	System    string
	User      string
	JSONMode  bool
	MaxTokens int
}

type GenerateResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Provider is one AI completion tier. Implementations make exactly one
// upstream attempt per Generate call; retry policy lives above this
// interface (tier fallback) and below the queue (redelivery), never here.
type Provider interface {
	Key() string
	Model() string
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}
