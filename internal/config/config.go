// Package config loads stratagen settings from an optional stratagen.yml and
// STRATAGEN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"golang.org/x/time/rate"

	"github.com/dusk-indust/stratagen/internal/breaker"
	"github.com/dusk-indust/stratagen/internal/hooks"
	"github.com/dusk-indust/stratagen/internal/logging"
)

// EnvPrefix marks environment variables that override file settings.
const EnvPrefix = "STRATAGEN_"

// Defaults.
const (
	DefaultGrace = 5 * time.Second
	DefaultBurst = 1
)

// Config holds project-level settings loaded from stratagen.yml.
type Config struct {
	Pipeline PipelineConfig `koanf:"pipeline"`
	Breaker  BreakerConfig  `koanf:"breaker"`
	Hooks    HooksConfig    `koanf:"hooks"`
	Log      logging.Config `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`

	// Path is the file the settings were read from, empty if none.
	Path string `koanf:"-"`
}

// PipelineConfig tunes pipeline runs.
type PipelineConfig struct {
	Grace         time.Duration `koanf:"grace"`          // optional enrichment grace after analysis
	ProviderRPS   float64       `koanf:"provider_rps"`   // 0 disables rate limiting
	ProviderBurst int           `koanf:"provider_burst"`
}

// BreakerConfig tunes the breakers guarding optional providers.
type BreakerConfig struct {
	FailureThreshold int           `koanf:"failure_threshold"`
	ResetTimeout     time.Duration `koanf:"reset_timeout"`
}

// HooksConfig points at an optional hook policy file. A relative path is
// resolved against the config directory.
type HooksConfig struct {
	PolicyFile string `koanf:"policy_file"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Pipeline: PipelineConfig{Grace: DefaultGrace, ProviderBurst: DefaultBurst},
		Breaker: BreakerConfig{
			FailureThreshold: breaker.DefaultFailureThreshold,
			ResetTimeout:     breaker.DefaultResetTimeout,
		},
		Log: logging.Config{Level: "info", Format: "console"},
	}
}

// Load attempts to read stratagen.yml or stratagen.yaml from the given
// directory, then applies STRATAGEN_* environment overrides. A missing file
// is not an error; the defaults apply.
//
// Environment variables map to keys by splitting on the first underscore
// after the prefix:
//
//	STRATAGEN_PIPELINE_GRACE        -> pipeline.grace
//	STRATAGEN_BREAKER_RESET_TIMEOUT -> breaker.reset_timeout
func Load(dir string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	for _, name := range []string{"stratagen.yml", "stratagen.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.Path = path
		break
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

// Validate checks ranges.
func (c Config) Validate() error {
	if c.Pipeline.Grace < 0 {
		return fmt.Errorf("config: pipeline.grace must not be negative, got %s", c.Pipeline.Grace)
	}
	if c.Pipeline.ProviderRPS < 0 {
		return fmt.Errorf("config: pipeline.provider_rps must not be negative, got %g", c.Pipeline.ProviderRPS)
	}
	if c.Pipeline.ProviderRPS > 0 && c.Pipeline.ProviderBurst < 1 {
		return fmt.Errorf("config: pipeline.provider_burst must be at least 1, got %d", c.Pipeline.ProviderBurst)
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("config: breaker.failure_threshold must be at least 1, got %d", c.Breaker.FailureThreshold)
	}
	if c.Breaker.ResetTimeout <= 0 {
		return fmt.Errorf("config: breaker.reset_timeout must be positive, got %s", c.Breaker.ResetTimeout)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Limiter returns the provider rate limiter, or nil when limiting is off.
func (c Config) Limiter() *rate.Limiter {
	if c.Pipeline.ProviderRPS <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(c.Pipeline.ProviderRPS), c.Pipeline.ProviderBurst)
}

// BreakerSettings returns the breaker configuration for optional providers.
func (c Config) BreakerSettings() breaker.Config {
	return breaker.Config{
		FailureThreshold: c.Breaker.FailureThreshold,
		ResetTimeout:     c.Breaker.ResetTimeout,
	}
}

// Policy loads the hook policy file, or returns the default policy when none
// is configured.
func (c Config) Policy() (hooks.Policy, error) {
	if c.Hooks.PolicyFile == "" {
		return hooks.DefaultPolicy(), nil
	}
	path := c.Hooks.PolicyFile
	if !filepath.IsAbs(path) && c.Path != "" {
		path = filepath.Join(filepath.Dir(c.Path), path)
	}
	return hooks.LoadPolicy(path)
}
