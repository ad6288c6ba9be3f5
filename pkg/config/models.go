package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zen-systems/taskgate/pkg/complexity"
	"github.com/zen-systems/taskgate/pkg/model"
)

// ModelsConfig holds the model profiles and their pricing.
type ModelsConfig struct {
	Models  []ModelConfig `yaml:"models"`
	Pricing PricingConfig `yaml:"pricing,omitempty"`
}

// ModelConfig describes one model profile in YAML form.
type ModelConfig struct {
	ID            string           `yaml:"id"`
	Provider      string           `yaml:"provider"`
	ProviderModel string           `yaml:"provider_model"`
	Capability    model.Capability `yaml:"capability"`
	CostPerUnit   float64          `yaml:"cost_per_unit"`
	MaxInput      int              `yaml:"max_input"`
	Suitable      []string         `yaml:"suitable"`
}

// PricingConfig maps model id to per-1k token pricing.
type PricingConfig map[string]ModelPricing

// ModelPricing defines per-1k token pricing.
type ModelPricing struct {
	PromptPer1K     float64 `yaml:"prompt_per_1k,omitempty"`
	CompletionPer1K float64 `yaml:"completion_per_1k,omitempty"`
}

// Profile converts the YAML form to a model.Profile, validating classes.
func (mc ModelConfig) Profile() (model.Profile, error) {
	classes := make([]complexity.Class, 0, len(mc.Suitable))
	for _, raw := range mc.Suitable {
		switch c := complexity.Class(raw); c {
		case complexity.ClassSimple, complexity.ClassStandard, complexity.ClassComplex:
			classes = append(classes, c)
		default:
			return model.Profile{}, fmt.Errorf("model %q: unknown complexity class %q", mc.ID, raw)
		}
	}
	return model.Profile{
		ID:            mc.ID,
		Provider:      mc.Provider,
		ProviderModel: mc.ProviderModel,
		Capability:    mc.Capability,
		CostPerUnit:   mc.CostPerUnit,
		MaxInput:      mc.MaxInput,
		Suitable:      classes,
	}, nil
}

// Profiles converts every configured model.
func (c *ModelsConfig) Profiles() ([]model.Profile, error) {
	profiles := make([]model.Profile, 0, len(c.Models))
	for _, mc := range c.Models {
		p, err := mc.Profile()
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// LoadModelsConfig reads model configuration from a YAML file.
func LoadModelsConfig(path string) (*ModelsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg ModelsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("models config %s defines no models", path)
	}
	return &cfg, nil
}

// DefaultModelsConfig returns the built-in model set: a cheap fast tier, a
// balanced tier, and a frontier tier per provider family.
func DefaultModelsConfig() *ModelsConfig {
	return &ModelsConfig{
		Models: []ModelConfig{
			{
				ID: "gemini-flash", Provider: "google", ProviderModel: "gemini-2.0-flash",
				Capability:  model.Capability{Reasoning: 5, Speed: 9, Creativity: 5, Accuracy: 6},
				CostPerUnit: 0.0004, MaxInput: 100000,
				Suitable: []string{"simple", "standard"},
			},
			{
				ID: "gpt-instant", Provider: "openai", ProviderModel: "gpt-5.2-instant",
				Capability:  model.Capability{Reasoning: 6, Speed: 8, Creativity: 6, Accuracy: 7},
				CostPerUnit: 0.001, MaxInput: 64000,
				Suitable: []string{"simple", "standard"},
			},
			{
				ID: "claude-sonnet", Provider: "anthropic", ProviderModel: "claude-sonnet-4-20250514",
				Capability:  model.Capability{Reasoning: 8, Speed: 6, Creativity: 8, Accuracy: 8},
				CostPerUnit: 0.006, MaxInput: 200000,
				Suitable: []string{"simple", "standard", "complex"},
			},
			{
				ID: "gpt-thinking", Provider: "openai", ProviderModel: "gpt-5.2-thinking",
				Capability:  model.Capability{Reasoning: 9, Speed: 4, Creativity: 7, Accuracy: 9},
				CostPerUnit: 0.012, MaxInput: 128000,
				Suitable: []string{"standard", "complex"},
			},
			{
				ID: "claude-opus", Provider: "anthropic", ProviderModel: "claude-opus-4-20250514",
				Capability:  model.Capability{Reasoning: 10, Speed: 3, Creativity: 9, Accuracy: 10},
				CostPerUnit: 0.03, MaxInput: 200000,
				Suitable: []string{"standard", "complex"},
			},
		},
		Pricing: PricingConfig{
			"gemini-flash":  {PromptPer1K: 0.0001, CompletionPer1K: 0.0004},
			"gpt-instant":   {PromptPer1K: 0.0005, CompletionPer1K: 0.0015},
			"claude-sonnet": {PromptPer1K: 0.003, CompletionPer1K: 0.015},
			"gpt-thinking":  {PromptPer1K: 0.01, CompletionPer1K: 0.03},
			"claude-opus":   {PromptPer1K: 0.015, CompletionPer1K: 0.075},
		},
	}
}
