package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI/OpenRouter-backed Provider. BaseURL, set
// to OpenRouter's endpoint, lets the same client code serve either backend.
type OpenAIConfig struct {
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

func DefaultOpenRouterConfig(model string) OpenAIConfig {
	if model == "" {
		model = "anthropic/claude-3.5-haiku"
	}
	return OpenAIConfig{
		BaseURL:   "https://openrouter.ai/api/v1",
		Model:     model,
		MaxTokens: 1024,
		Timeout:   30 * time.Second,
	}
}

// OpenAIProvider classifies job postings via the chat completions endpoint.
type OpenAIProvider struct {
	client *openai.Client
	config OpenAIConfig
}

func NewOpenAIProvider(apiKey string, config OpenAIConfig) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Classify(ctx context.Context, req ClassifyRequest) (ClassifyResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.config.Model,
		MaxTokens: p.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})
	if err != nil {
		return ClassifyResponse{}, fmt.Errorf("openai classify: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ClassifyResponse{}, fmt.Errorf("openai classify: empty response")
	}
	return ClassifyResponse{RawJSON: resp.Choices[0].Message.Content}, nil
}
