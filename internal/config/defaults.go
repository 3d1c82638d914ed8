package config

import (
	"github.com/avitools/aipflow/internal/providers"
	"github.com/avitools/aipflow/internal/workspace"
)

// DefaultConfig returns the configuration used when no file or environment
// override is present.
func DefaultConfig() *Config {
	return &Config{
		WorkDir:                workspace.DefaultRoot,
		Insecure:               true,
		ValidatePDFs:           true,
		DownloadTimeoutSeconds: 30,
		Extractor: providers.ExtractorConfig{
			Type:           providers.AgenticDocName,
			APIKey:         "${LANDING_API_KEY}",
			TimeoutSeconds: 600,
		},
		Structurer: providers.StructurerConfig{
			Type:           providers.MistralName,
			APIKey:         "${MISTRAL_API_KEY}",
			Model:          providers.MistralModel,
			RateLimit:      60,
			MaxRetries:     3,
			TimeoutSeconds: 120,
		},
	}
}
