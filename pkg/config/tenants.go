package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// TenantsConfig holds all per-tenant preference configuration.
type TenantsConfig struct {
	Tenants map[string]TenantConfig `yaml:"tenants"`
}

// TenantConfig is one tenant's AI-processing preferences.
type TenantConfig struct {
	AIEnabled          bool         `yaml:"ai_enabled"`
	GlobalInstructions []string     `yaml:"global_instructions,omitempty"`
	Rules              []RuleConfig `yaml:"rules,omitempty"`
}

// RuleConfig is one preference rule in YAML form. Rules evaluate in
// declaration order within their family.
type RuleConfig struct {
	Name        string          `yaml:"name"`
	Family      string          `yaml:"family"` // exclusion, filter, response
	Active      bool            `yaml:"active"`
	Effect      string          `yaml:"effect"` // suppress, escalate, set_priority, instruct
	Priority    int             `yaml:"priority,omitempty"`
	Instruction string          `yaml:"instruction,omitempty"`
	Condition   ConditionConfig `yaml:"condition"`
}

// ConditionConfig is the raw form of a rule condition, parsed once at rule
// load time into a condition tree.
type ConditionConfig struct {
	Kind  string            `yaml:"kind"` // contains, equals, and, or, not
	Field string            `yaml:"field,omitempty"`
	Value string            `yaml:"value,omitempty"`
	Terms []string          `yaml:"terms,omitempty"`
	All   []ConditionConfig `yaml:"all,omitempty"`
	Any   []ConditionConfig `yaml:"any,omitempty"`
	Inner *ConditionConfig  `yaml:"inner,omitempty"`
	// Raw is the fallback pattern for conditions with no recognized kind.
	Raw string `yaml:"raw,omitempty"`
}

// LoadTenantsConfig reads tenant preference configuration from a YAML file.
func LoadTenantsConfig(path string) (*TenantsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg TenantsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Tenants == nil {
		cfg.Tenants = map[string]TenantConfig{}
	}
	return &cfg, nil
}
