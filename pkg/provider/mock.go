package provider

import (
	"context"
	"fmt"
	"sync"
)

// Mock returns deterministic completions for local runs and tests.
type Mock struct {
	mu              sync.Mutex
	responses       map[string]string
	defaultResponse string
	usage           Usage
	failures        []error
	calls           int
	lastPrompt      string
}

// NewMock creates a mock provider with a default response.
func NewMock() *Mock {
	return &Mock{
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
		usage:           Usage{PromptTokens: 50, CompletionTokens: 20, TotalTokens: 70},
	}
}

// NewMockWithResponses creates a mock provider with predefined responses.
func NewMockWithResponses(responses map[string]string, defaultResponse string) *Mock {
	m := NewMock()
	if responses != nil {
		m.responses = responses
	}
	if defaultResponse != "" {
		m.defaultResponse = defaultResponse
	}
	return m
}

// SetUsage overrides the synthetic token usage reported per call.
func (p *Mock) SetUsage(u Usage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.usage = u
}

// FailNext queues errors to return before any completion succeeds.
// Each queued error is consumed by one call.
func (p *Mock) FailNext(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, errs...)
}

// Calls reports how many times Complete has been invoked.
func (p *Mock) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// LastPrompt returns the prompt from the most recent Complete call.
func (p *Mock) LastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPrompt
}

// Name returns the provider identifier.
func (p *Mock) Name() string {
	return "mock"
}

// Models returns the supported mock models.
func (p *Mock) Models() []string {
	return []string{"mock-1"}
}

// Complete returns a deterministic completion for the prompt.
func (p *Mock) Complete(_ context.Context, model string, prompt string) (*Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastPrompt = prompt

	if len(p.failures) > 0 {
		err := p.failures[0]
		p.failures = p.failures[1:]
		return nil, err
	}

	if model == "" {
		model = "mock-1"
	}
	text, ok := p.responses[prompt]
	if !ok {
		text = fmt.Sprintf("%s\n%s", p.defaultResponse, prompt)
	}
	return &Completion{Text: text, Usage: normalize(p.usage)}, nil
}
