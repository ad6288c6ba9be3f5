// Package provider wraps external completion endpoints behind one interface.
package provider

import "context"

// Usage captures normalized token usage for one completion call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the normalized result of one completion call.
type Completion struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// Provider defines the interface for completion providers.
type Provider interface {
	// Complete sends a prompt to the named model and returns the completion.
	Complete(ctx context.Context, model string, prompt string) (*Completion, error)

	// Name returns the provider's identifier.
	Name() string

	// Models returns the provider-recognized model names.
	Models() []string
}

func normalize(u Usage) Usage {
	if u.TotalTokens == 0 && (u.PromptTokens > 0 || u.CompletionTokens > 0) {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}
