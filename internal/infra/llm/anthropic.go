package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig configures the Claude-backed Provider.
type AnthropicConfig struct {
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// DefaultAnthropicConfig mirrors the enrichment engine's classification
// workload: short, deterministic JSON replies, so a cheaper model and a
// tight token budget both fit.
func DefaultAnthropicConfig() AnthropicConfig {
	return AnthropicConfig{
		Model:     string(anthropic.ModelClaudeSonnet4_5_20250929),
		MaxTokens: 1024,
		Timeout:   30 * time.Second,
	}
}

// AnthropicProvider classifies job postings via the Claude Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	config AnthropicConfig
}

func NewAnthropicProvider(apiKey string, config AnthropicConfig) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		config: config,
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Classify(ctx context.Context, req ClassifyRequest) (ClassifyResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		MaxTokens: int64(p.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return ClassifyResponse{}, fmt.Errorf("anthropic classify: %w", err)
	}
	if len(message.Content) == 0 {
		return ClassifyResponse{}, fmt.Errorf("anthropic classify: empty response")
	}
	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return ClassifyResponse{}, fmt.Errorf("anthropic classify: unexpected content block type")
	}
	return ClassifyResponse{RawJSON: textBlock.Text}, nil
}
