package provider

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Google implements Provider for Gemini models.
type Google struct {
	client *genai.Client
}

// NewGoogle creates a Google Gemini provider.
func NewGoogle(apiKey string) (*Google, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	return &Google{client: client}, nil
}

// Name returns the provider identifier.
func (p *Google) Name() string {
	return "google"
}

// Models returns the supported Gemini models.
func (p *Google) Models() []string {
	return []string{
		"gemini-2.0-flash",
	}
}

// Complete sends the prompt to Gemini and returns the normalized completion.
func (p *Google) Complete(ctx context.Context, model string, prompt string) (*Completion, error) {
	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Err: err}
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &Error{Provider: p.Name(), Err: fmt.Errorf("no candidates returned")}
	}

	var content string
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				content += part.Text
			}
		}
	}

	usage := Usage{}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &Completion{
		Text:  content,
		Usage: normalize(usage),
	}, nil
}
