package router

import "github.com/zen-systems/taskgate/pkg/complexity"

// Decision captures one routing outcome. Produced once per request and not
// mutated afterward.
type Decision struct {
	Model          string           `json:"model"`
	Class          complexity.Class `json:"class"`
	Confidence     float64          `json:"confidence"`
	Reasons        []string         `json:"reasons,omitempty"`
	Alternatives   []string         `json:"alternatives,omitempty"`
	EstimatedUnits int              `json:"estimated_units"`
	EstimatedCost  float64          `json:"estimated_cost"`
}
