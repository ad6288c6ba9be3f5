// Package config loads application configuration from YAML files and
// environment variables. Environment variables take precedence over file
// values for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string
	Models          *ModelsConfig
	Tenants         *TenantsConfig
	Engine          EngineConfig
	DatabasePath    string
	ConfigDir       string
}

// FileConfig represents the structure of ~/.taskgate/config.yaml.
type FileConfig struct {
	APIKeys  APIKeysConfig `yaml:"api_keys"`
	Database string        `yaml:"database,omitempty"`
	Engine   EngineConfig  `yaml:"engine,omitempty"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Anthropic string `yaml:"anthropic"`
	OpenAI    string `yaml:"openai"`
	Google    string `yaml:"google"`
}

// EngineConfig tunes orchestrator behavior.
type EngineConfig struct {
	SourceTimeoutMs int `yaml:"source_timeout_ms,omitempty"`
	MaxBundleBytes  int `yaml:"max_bundle_bytes,omitempty"`
	CacheCapacity   int `yaml:"cache_capacity,omitempty"`
	CacheTTLMinutes int `yaml:"cache_ttl_minutes,omitempty"`
}

// Load reads configuration from the config directory and environment.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	cfg := &Config{
		AnthropicAPIKey: getEnvOrDefault("ANTHROPIC_API_KEY", fileConfig.APIKeys.Anthropic),
		OpenAIAPIKey:    getEnvOrDefault("OPENAI_API_KEY", fileConfig.APIKeys.OpenAI),
		GoogleAPIKey:    getEnvOrDefault("GOOGLE_API_KEY", fileConfig.APIKeys.Google),
		Engine:          fileConfig.Engine,
		DatabasePath:    fileConfig.Database,
		ConfigDir:       configDir,
	}
	applyEngineDefaults(&cfg.Engine)

	modelsPath := filepath.Join(configDir, "models.yaml")
	if _, err := os.Stat(modelsPath); err == nil {
		models, err := LoadModelsConfig(modelsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load models config: %w", err)
		}
		cfg.Models = models
	} else {
		cfg.Models = DefaultModelsConfig()
	}

	tenantsPath := filepath.Join(configDir, "tenants.yaml")
	if _, err := os.Stat(tenantsPath); err == nil {
		tenants, err := LoadTenantsConfig(tenantsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load tenants config: %w", err)
		}
		cfg.Tenants = tenants
	} else {
		cfg.Tenants = &TenantsConfig{Tenants: map[string]TenantConfig{}}
	}

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(configDir, "taskgate.db")
	}

	return cfg, nil
}

func applyEngineDefaults(e *EngineConfig) {
	if e.SourceTimeoutMs <= 0 {
		e.SourceTimeoutMs = 2000
	}
	if e.MaxBundleBytes <= 0 {
		e.MaxBundleBytes = 32 * 1024
	}
	if e.CacheCapacity <= 0 {
		e.CacheCapacity = 512
	}
	if e.CacheTTLMinutes <= 0 {
		e.CacheTTLMinutes = 60
	}
}

func getConfigDir() (string, error) {
	if dir := os.Getenv("TASKGATE_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".taskgate"), nil
}

func loadFileConfig(path string) FileConfig {
	var fc FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc
	}
	// A malformed config file is treated as absent.
	_ = yaml.Unmarshal(data, &fc)
	return fc
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
