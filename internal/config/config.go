// Package config loads aipflow configuration from file, environment, and
// defaults via viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/avitools/aipflow/internal/providers"
)

// Config is the full aipflow configuration.
type Config struct {
	// WorkDir is the working directory root for state and artifacts.
	WorkDir string `mapstructure:"work_dir" yaml:"work_dir"`

	// Insecure disables TLS verification on source downloads.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// ValidatePDFs runs a pdfcpu check on freshly downloaded files.
	ValidatePDFs bool `mapstructure:"validate_pdfs" yaml:"validate_pdfs"`

	// DownloadTimeoutSeconds bounds each source download.
	DownloadTimeoutSeconds int `mapstructure:"download_timeout_seconds" yaml:"download_timeout_seconds"`

	Extractor  providers.ExtractorConfig  `mapstructure:"extractor" yaml:"extractor"`
	Structurer providers.StructurerConfig `mapstructure:"structurer" yaml:"structurer"`
}

// Manager loads configuration once at startup.
type Manager struct {
	config *Config
}

// NewManager creates a manager and loads the initial config.
func NewManager(cfgFile string) (*Manager, error) {
	if err := initViper(cfgFile); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &Manager{config: &cfg}, nil
}

// initViper sets up viper with defaults, env overrides, and the config file.
func initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("work_dir", defaults.WorkDir)
	viper.SetDefault("insecure", defaults.Insecure)
	viper.SetDefault("validate_pdfs", defaults.ValidatePDFs)
	viper.SetDefault("download_timeout_seconds", defaults.DownloadTimeoutSeconds)
	viper.SetDefault("extractor", defaults.Extractor)
	viper.SetDefault("structurer", defaults.Structurer)

	// Environment variables with AIPFLOW_ prefix
	viper.SetEnvPrefix("AIPFLOW")
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.aipflow")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// Get returns the loaded configuration.
func (m *Manager) Get() *Config {
	return m.config
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ProviderConfigs returns the provider configurations with all ${ENV_VAR}
// API key references resolved.
func (c *Config) ProviderConfigs() (providers.ExtractorConfig, providers.StructurerConfig) {
	ex := c.Extractor
	ex.APIKey = ResolveEnvVars(ex.APIKey)
	st := c.Structurer
	st.APIKey = ResolveEnvVars(st.APIKey)
	return ex, st
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# aipflow configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export MISTRAL_API_KEY=xxx LANDING_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
