// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers a YAML file and LOOPWISE_* environment variables on top.
// - Validate reports out-of-range values wrapped in ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/okian/loopwise/internal/domain/dynamics"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory analysis job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of analysis workers.
	WorkerCount int `koanf:"worker_count"`

	// ResultCacheSize bounds the number of jobs kept for GET /analyses/{id}.
	ResultCacheSize int `koanf:"result_cache_size"`

	// DedupeSize and DedupeTTLSeconds bound the idempotency cache.
	DedupeSize       int `koanf:"dedupe_size"`
	DedupeTTLSeconds int `koanf:"dedupe_ttl_seconds"`

	// MaxMetrics caps the number of series accepted in one request.
	MaxMetrics int `koanf:"max_metrics"`

	// MetricsEnabled switches Prometheus recording; MetricsRefreshSeconds
	// sets how often runtime gauges are sampled.
	MetricsEnabled        bool `koanf:"metrics_enabled"`
	MetricsRefreshSeconds int  `koanf:"metrics_refresh_seconds"`

	// Engine tuning.
	MinCorrelation           float64 `koanf:"min_correlation"`
	MinConfidence            float64 `koanf:"min_confidence"`
	SignificanceLevel        float64 `koanf:"significance_level"`
	MaxLag                   int     `koanf:"max_lag"`
	MaxCycles                int     `koanf:"max_cycles"`
	MaxInformationFlowPoints int     `koanf:"max_information_flow_points"`
	StrongLoopThreshold      float64 `koanf:"strong_loop_threshold"`
	CanonicalCycles          bool    `koanf:"canonical_cycles"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                 "info",
		LogFormat:                "text",
		Addr:                     ":9080",
		QueueSize:                1_024,
		WorkerCount:              runtime.NumCPU(),
		ResultCacheSize:          10_000,
		DedupeSize:               10_000,
		DedupeTTLSeconds:         600,
		MaxMetrics:               64,
		MetricsEnabled:           true,
		MetricsRefreshSeconds:    10,
		MinCorrelation:           dynamics.DefaultMinCorrelation,
		MinConfidence:            dynamics.DefaultMinConfidence,
		SignificanceLevel:        dynamics.DefaultSignificanceLevel,
		MaxLag:                   dynamics.DefaultMaxLag,
		MaxCycles:                dynamics.DefaultMaxCycles,
		MaxInformationFlowPoints: dynamics.DefaultMaxInformationFlowPoints,
		StrongLoopThreshold:      dynamics.DefaultStrongLoopThreshold,
		CanonicalCycles:          true,
	}
}

// Validate checks every field against its allowed range.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(c.Addr != "", "addr must not be empty")
	check(oneOf(c.LogLevel, "debug", "info", "warn", "warning", "error"), "log_level %q is not supported", c.LogLevel)
	check(oneOf(c.LogFormat, "text", "json"), "log_format %q is not supported", c.LogFormat)
	check(c.QueueSize > 0, "queue_size must be positive, got %d", c.QueueSize)
	check(c.WorkerCount > 0, "worker_count must be positive, got %d", c.WorkerCount)
	check(c.ResultCacheSize > 0, "result_cache_size must be positive, got %d", c.ResultCacheSize)
	check(c.DedupeSize > 0, "dedupe_size must be positive, got %d", c.DedupeSize)
	check(c.DedupeTTLSeconds >= 0, "dedupe_ttl_seconds must not be negative, got %d", c.DedupeTTLSeconds)
	check(c.MaxMetrics >= 2, "max_metrics must be at least 2, got %d", c.MaxMetrics)
	check(c.MetricsRefreshSeconds > 0, "metrics_refresh_seconds must be positive, got %d", c.MetricsRefreshSeconds)
	check(c.MinCorrelation > 0 && c.MinCorrelation <= 1, "min_correlation must be in (0,1], got %v", c.MinCorrelation)
	check(c.MinConfidence > 0 && c.MinConfidence <= 1, "min_confidence must be in (0,1], got %v", c.MinConfidence)
	check(c.SignificanceLevel > 0 && c.SignificanceLevel <= 1, "significance_level must be in (0,1], got %v", c.SignificanceLevel)
	check(c.MaxLag >= 0, "max_lag must not be negative, got %d", c.MaxLag)
	check(c.MaxCycles > 0, "max_cycles must be positive, got %d", c.MaxCycles)
	check(c.MaxInformationFlowPoints >= 0, "max_information_flow_points must not be negative, got %d", c.MaxInformationFlowPoints)
	check(c.StrongLoopThreshold >= 0 && c.StrongLoopThreshold <= 100, "strong_loop_threshold must be in [0,100], got %v", c.StrongLoopThreshold)

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// EngineOptions translates the engine tuning fields into dynamics options.
func (c *Config) EngineOptions() []dynamics.Option {
	return []dynamics.Option{
		dynamics.WithMinCorrelation(c.MinCorrelation),
		dynamics.WithMinConfidence(c.MinConfidence),
		dynamics.WithSignificanceLevel(c.SignificanceLevel),
		dynamics.WithMaxLag(c.MaxLag),
		dynamics.WithMaxCycles(c.MaxCycles),
		dynamics.WithMaxInformationFlowPoints(c.MaxInformationFlowPoints),
		dynamics.WithStrongLoopThreshold(c.StrongLoopThreshold),
		dynamics.WithCanonicalCycles(c.CanonicalCycles),
	}
}

func oneOf(v string, allowed ...string) bool {
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
