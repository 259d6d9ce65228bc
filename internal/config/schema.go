package config

import (
	"time"

	"github.com/jackzampolin/binder/internal/oracle"
	"github.com/jackzampolin/binder/internal/pipeline"
	"github.com/jackzampolin/binder/internal/reconcile"
	"github.com/jackzampolin/binder/internal/resolver"
	"github.com/jackzampolin/binder/internal/sections"
)

// Config is the root configuration structure for binder.
type Config struct {
	Oracle    OracleCfg    `mapstructure:"oracle" yaml:"oracle"`
	Split     SplitCfg     `mapstructure:"split" yaml:"split"`
	Smoothing SmoothingCfg `mapstructure:"smoothing" yaml:"smoothing"`
	Resolver  ResolverCfg  `mapstructure:"resolver" yaml:"resolver"`
	Reconcile ReconcileCfg `mapstructure:"reconcile" yaml:"reconcile"`
	Vision    VisionCfg    `mapstructure:"vision" yaml:"vision"`
}

// OracleCfg configures the classification backend.
type OracleCfg struct {
	// Kind selects the client implementation: "http" for the gateway
	// protocol, "openai" for any chat-completions compatible endpoint.
	Kind string `mapstructure:"kind" yaml:"kind"`

	APIURL string `mapstructure:"api_url" yaml:"api_url"`

	// APIKey may use ${ENV_VAR} syntax to reference an environment variable.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`

	Model string `mapstructure:"model" yaml:"model"`

	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	TimeoutSeconds    int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries        int `mapstructure:"max_retries" yaml:"max_retries"`
	MaxParallel       int `mapstructure:"max_parallel" yaml:"max_parallel"`
}

// SplitCfg configures batching and excerpting for the initial pass.
type SplitCfg struct {
	BatchSize  int `mapstructure:"batch_size" yaml:"batch_size"`
	Overlap    int `mapstructure:"overlap" yaml:"overlap"`
	FirstLines int `mapstructure:"first_lines" yaml:"first_lines"`
	LastLines  int `mapstructure:"last_lines" yaml:"last_lines"`
}

// SmoothingCfg configures the majority-vote label smoother.
type SmoothingCfg struct {
	Window         int     `mapstructure:"window" yaml:"window"`
	MinRun         int     `mapstructure:"min_run" yaml:"min_run"`
	HighConfidence float64 `mapstructure:"high_confidence" yaml:"high_confidence"`
}

// ResolverCfg configures the discontinuity resolver.
type ResolverCfg struct {
	MaxIterations     int     `mapstructure:"max_iterations" yaml:"max_iterations"`
	SmallSectionPages int     `mapstructure:"small_section_pages" yaml:"small_section_pages"`
	LowConfidence     float64 `mapstructure:"low_confidence" yaml:"low_confidence"`
	ContextMargin     int     `mapstructure:"context_margin" yaml:"context_margin"`
	FinalConfidence   float64 `mapstructure:"final_confidence" yaml:"final_confidence"`
}

// ReconcileCfg configures the isolated-section reconciler.
type ReconcileCfg struct {
	MaxPages      int     `mapstructure:"max_pages" yaml:"max_pages"`
	MinSimilarity float64 `mapstructure:"min_similarity" yaml:"min_similarity"`
}

// VisionCfg configures the page-image fallback pass.
type VisionCfg struct {
	Enabled          bool    `mapstructure:"enabled" yaml:"enabled"`
	MaxPages         int     `mapstructure:"max_pages" yaml:"max_pages"`
	LowConfidence    float64 `mapstructure:"low_confidence" yaml:"low_confidence"`
	QualityThreshold float64 `mapstructure:"quality_threshold" yaml:"quality_threshold"`
}

// DefaultConfig returns configuration with sensible defaults. The tuning
// values match pipeline.DefaultConfig so a config file only needs to name
// what it changes.
func DefaultConfig() *Config {
	p := pipeline.DefaultConfig()
	return &Config{
		Oracle: OracleCfg{
			Kind:              "http",
			APIURL:            "http://localhost:8080",
			APIKey:            "${BINDER_API_KEY}",
			RequestsPerMinute: 120,
			TimeoutSeconds:    120,
			MaxRetries:        4,
			MaxParallel:       p.MaxParallel,
		},
		Split: SplitCfg{
			BatchSize:  p.BatchSize,
			Overlap:    p.Overlap,
			FirstLines: p.FirstLines,
			LastLines:  p.LastLines,
		},
		Smoothing: SmoothingCfg{
			Window:         p.Smooth.Window,
			MinRun:         p.Smooth.MinRun,
			HighConfidence: p.Smooth.HighConfidence,
		},
		Resolver: ResolverCfg{
			MaxIterations:     p.Resolver.MaxIterations,
			SmallSectionPages: p.Resolver.SmallSectionPages,
			LowConfidence:     p.Resolver.LowConfidence,
			ContextMargin:     p.Resolver.ContextMargin,
			FinalConfidence:   p.Resolver.FinalConfidence,
		},
		Reconcile: ReconcileCfg{
			MaxPages:      p.Reconcile.MaxPages,
			MinSimilarity: p.Reconcile.MinSimilarity,
		},
		Vision: VisionCfg{
			Enabled:          p.Vision.Enabled,
			MaxPages:         p.Vision.MaxPages,
			LowConfidence:    p.Vision.LowConfidence,
			QualityThreshold: p.Vision.QualityThreshold,
		},
	}
}

// ResolveAPIKey returns the oracle API key with ${ENV_VAR} references
// expanded.
func (c *Config) ResolveAPIKey() string {
	return ResolveEnvVars(c.Oracle.APIKey)
}

// ToHTTPConfig converts the oracle section for the gateway client.
func (c *Config) ToHTTPConfig() oracle.HTTPConfig {
	return oracle.HTTPConfig{
		BaseURL:           c.Oracle.APIURL,
		APIKey:            c.ResolveAPIKey(),
		Model:             c.Oracle.Model,
		Timeout:           time.Duration(c.Oracle.TimeoutSeconds) * time.Second,
		MaxRetries:        c.Oracle.MaxRetries,
		RequestsPerMinute: c.Oracle.RequestsPerMinute,
	}
}

// ToOpenAIConfig converts the oracle section for the chat-completions client.
func (c *Config) ToOpenAIConfig() oracle.OpenAIConfig {
	return oracle.OpenAIConfig{
		APIKey:            c.ResolveAPIKey(),
		BaseURL:           c.Oracle.APIURL,
		Model:             c.Oracle.Model,
		Timeout:           time.Duration(c.Oracle.TimeoutSeconds) * time.Second,
		MaxRetries:        c.Oracle.MaxRetries,
		RequestsPerMinute: c.Oracle.RequestsPerMinute,
	}
}

// ToPipelineConfig converts the tuning sections into the runtime config
// consumed by pipeline.New.
func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		BatchSize:   c.Split.BatchSize,
		Overlap:     c.Split.Overlap,
		MaxParallel: c.Oracle.MaxParallel,
		Model:       c.Oracle.Model,
		FirstLines:  c.Split.FirstLines,
		LastLines:   c.Split.LastLines,
		Smooth: sections.SmoothConfig{
			Window:         c.Smoothing.Window,
			MinRun:         c.Smoothing.MinRun,
			HighConfidence: c.Smoothing.HighConfidence,
		},
		Resolver: resolver.Config{
			MaxIterations:     c.Resolver.MaxIterations,
			SmallSectionPages: c.Resolver.SmallSectionPages,
			LowConfidence:     c.Resolver.LowConfidence,
			ContextMargin:     c.Resolver.ContextMargin,
			FinalConfidence:   c.Resolver.FinalConfidence,
		},
		Reconcile: reconcile.Config{
			MaxPages:      c.Reconcile.MaxPages,
			MinSimilarity: c.Reconcile.MinSimilarity,
			FirstLines:    c.Split.FirstLines,
			LastLines:     c.Split.LastLines,
		},
		Vision: pipeline.VisionConfig{
			Enabled:          c.Vision.Enabled,
			MaxPages:         c.Vision.MaxPages,
			LowConfidence:    c.Vision.LowConfidence,
			QualityThreshold: c.Vision.QualityThreshold,
		},
	}
}
