// Package config loads binder configuration from YAML files and the
// environment, with hot-reload support for long batch runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	// Defaults are registered per leaf key so environment overrides of
	// nested values survive Unmarshal.
	d := DefaultConfig()
	viper.SetDefault("oracle.kind", d.Oracle.Kind)
	viper.SetDefault("oracle.api_url", d.Oracle.APIURL)
	viper.SetDefault("oracle.api_key", d.Oracle.APIKey)
	viper.SetDefault("oracle.model", d.Oracle.Model)
	viper.SetDefault("oracle.requests_per_minute", d.Oracle.RequestsPerMinute)
	viper.SetDefault("oracle.timeout_seconds", d.Oracle.TimeoutSeconds)
	viper.SetDefault("oracle.max_retries", d.Oracle.MaxRetries)
	viper.SetDefault("oracle.max_parallel", d.Oracle.MaxParallel)
	viper.SetDefault("split.batch_size", d.Split.BatchSize)
	viper.SetDefault("split.overlap", d.Split.Overlap)
	viper.SetDefault("split.first_lines", d.Split.FirstLines)
	viper.SetDefault("split.last_lines", d.Split.LastLines)
	viper.SetDefault("smoothing.window", d.Smoothing.Window)
	viper.SetDefault("smoothing.min_run", d.Smoothing.MinRun)
	viper.SetDefault("smoothing.high_confidence", d.Smoothing.HighConfidence)
	viper.SetDefault("resolver.max_iterations", d.Resolver.MaxIterations)
	viper.SetDefault("resolver.small_section_pages", d.Resolver.SmallSectionPages)
	viper.SetDefault("resolver.low_confidence", d.Resolver.LowConfidence)
	viper.SetDefault("resolver.context_margin", d.Resolver.ContextMargin)
	viper.SetDefault("resolver.final_confidence", d.Resolver.FinalConfidence)
	viper.SetDefault("reconcile.max_pages", d.Reconcile.MaxPages)
	viper.SetDefault("reconcile.min_similarity", d.Reconcile.MinSimilarity)
	viper.SetDefault("vision.enabled", d.Vision.Enabled)
	viper.SetDefault("vision.max_pages", d.Vision.MaxPages)
	viper.SetDefault("vision.low_confidence", d.Vision.LowConfidence)
	viper.SetDefault("vision.quality_threshold", d.Vision.QualityThreshold)

	// Environment variables with BINDER_ prefix; dots in keys map to
	// underscores (oracle.api_key -> BINDER_ORACLE_API_KEY).
	viper.SetEnvPrefix("BINDER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.binder")
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

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
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

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Binder configuration
# The API key uses ${ENV_VAR} syntax to reference an environment variable
# Set it in your shell: export BINDER_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
