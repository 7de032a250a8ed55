package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiProvider calls the Gemini generateContent API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultGeminiModel
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (g *GeminiProvider) Name() string { return "gemini" }

func (g *GeminiProvider) Complete(ctx context.Context, system, message string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(defaultTemperature)
	model.SetMaxOutputTokens(defaultMaxTokens)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}

	resp, err := model.GenerateContent(ctx, genai.Text(message))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini: no candidates: %w", errEmptyCompletion)
	}
	return extractText(resp), nil
}

func (g *GeminiProvider) Close() error {
	return g.client.Close()
}

func extractText(resp *genai.GenerateContentResponse) string {
	// only the first candidate is read; an empty one yields "" and counts as an empty completion
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
