package engine

import (
	"sync"

	"github.com/zen-systems/taskgate/pkg/config"
	"github.com/zen-systems/taskgate/pkg/provider"
)

// CostReport summarizes accumulated spend across completions.
type CostReport struct {
	Currency    string         `json:"currency"`
	TotalAmount float64        `json:"total_amount"`
	TotalUsage  provider.Usage `json:"total_usage"`
	Calls       int            `json:"calls"`
}

// Tracker accumulates token usage and estimated spend per process. All
// amounts are estimates derived from per-1k pricing.
type Tracker struct {
	mu          sync.Mutex
	pricing     config.PricingConfig
	totalUsage  provider.Usage
	totalAmount float64
	calls       int
}

// NewTracker creates a tracker over the given pricing table.
func NewTracker(pricing config.PricingConfig) *Tracker {
	return &Tracker{pricing: pricing}
}

// Record folds one completion's usage into the totals and returns the
// estimated cost of that call. Unknown models cost zero.
func (t *Tracker) Record(modelID string, usage provider.Usage) float64 {
	cost, _ := estimateCost(t.pricing, modelID, usage)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.totalAmount += cost
	t.totalUsage = addUsage(t.totalUsage, usage)
	return cost
}

// Report returns the totals so far.
func (t *Tracker) Report() CostReport {
	t.mu.Lock()
	defer t.mu.Unlock()
	return CostReport{
		Currency:    "USD",
		TotalAmount: t.totalAmount,
		TotalUsage:  t.totalUsage,
		Calls:       t.calls,
	}
}

func estimateCost(pricing config.PricingConfig, modelID string, usage provider.Usage) (float64, bool) {
	if pricing == nil {
		return 0, false
	}
	entry, ok := pricing[modelID]
	if !ok {
		entry, ok = pricing["default"]
		if !ok {
			return 0, false
		}
	}
	promptCost := (float64(usage.PromptTokens) / 1000.0) * entry.PromptPer1K
	completionCost := (float64(usage.CompletionTokens) / 1000.0) * entry.CompletionPer1K
	return promptCost + completionCost, true
}

func addUsage(a, b provider.Usage) provider.Usage {
	return provider.Usage{
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		TotalTokens:      a.TotalTokens + b.TotalTokens,
	}
}
