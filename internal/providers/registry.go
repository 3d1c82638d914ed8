package providers

import (
	"fmt"
	"time"
)

// ExtractorConfig selects and configures an extraction provider.
type ExtractorConfig struct {
	Type           string `mapstructure:"type" yaml:"type"`
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL        string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// StructurerConfig selects and configures a structuring provider.
type StructurerConfig struct {
	Type           string `mapstructure:"type" yaml:"type"`
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL        string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Model          string `mapstructure:"model" yaml:"model"`
	RateLimit      int    `mapstructure:"rate_limit" yaml:"rate_limit"`
	MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// NewExtractor builds the configured extraction provider.
func NewExtractor(cfg ExtractorConfig) (Extractor, error) {
	switch cfg.Type {
	case AgenticDocName, "":
		return NewAgenticDocClient(AgenticDocConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown extractor type: %q", cfg.Type)
	}
}

// NewStructurer builds the configured structuring provider.
func NewStructurer(cfg StructurerConfig) (Structurer, error) {
	switch cfg.Type {
	case MistralName, "":
		return NewMistralClient(MistralConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			RateLimit:  cfg.RateLimit,
			MaxRetries: cfg.MaxRetries,
			Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		}), nil
	case OpenAIName:
		return NewOpenAIClient(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			RateLimit:  cfg.RateLimit,
			MaxRetries: cfg.MaxRetries,
			Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown structurer type: %q", cfg.Type)
	}
}
