package assistant

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenAIModel = openai.GPT3Dot5Turbo
	defaultMaxTokens   = 150
	defaultTemperature = 0.7
)

// OpenAIProvider calls the chat completions API.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

type OpenAIOption func(*openai.ClientConfig, *OpenAIProvider)

// WithOpenAIBaseURL points the client at a compatible endpoint, e.g. a proxy or a test server.
func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(cfg *openai.ClientConfig, _ *OpenAIProvider) {
		if u := strings.TrimSpace(baseURL); u != "" {
			cfg.BaseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithOpenAIHTTPClient(hc *http.Client) OpenAIOption {
	return func(cfg *openai.ClientConfig, _ *OpenAIProvider) {
		if hc != nil {
			cfg.HTTPClient = hc
		}
	}
}

func WithOpenAIModel(model string) OpenAIOption {
	return func(_ *openai.ClientConfig, p *OpenAIProvider) {
		if m := strings.TrimSpace(model); m != "" {
			p.model = m
		}
	}
}

func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	p := &OpenAIProvider{
		model:       DefaultOpenAIModel,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(&cfg, p)
	}
	p.client = openai.NewClientWithConfig(cfg)
	return p
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Complete(ctx context.Context, system, message string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices: %w", errEmptyCompletion)
	}
	return resp.Choices[0].Message.Content, nil
}
