// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/beacon/lib/compress"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Exporter kinds.
const (
	ExporterHTTP    = "http"
	ExporterConsole = "console"
)

// Config is the complete Beacon configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	// Service names the instrumented program on every batch.
	Service string `yaml:"service"`

	Logs   PipelineConfig `yaml:"logs"`
	Spans  PipelineConfig `yaml:"spans"`
	Replay PipelineConfig `yaml:"replay"`

	Throttle        ThrottleConfig        `yaml:"throttle"`
	TraceAttributes TraceAttributesConfig `yaml:"trace_attributes"`
	Exporter        ExporterConfig        `yaml:"exporter"`
	Collector       CollectorConfig       `yaml:"collector"`

	// Per-environment exporter overrides, applied after loading.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the fields an environment section may replace.
type Overrides struct {
	Exporter *ExporterConfig `yaml:"exporter,omitempty"`
}

// PipelineConfig sizes one batch export pipeline.
type PipelineConfig struct {
	MaxExportBatchSize int `yaml:"max_export_batch_size"`
	MaxQueueSize       int `yaml:"max_queue_size"`

	// MaxQueueBytes bounds the encoded size of queued records. Zero is
	// unbounded.
	MaxQueueBytes int `yaml:"max_queue_bytes"`

	ScheduledDelay time.Duration `yaml:"scheduled_delay"`
	ExportTimeout  time.Duration `yaml:"export_timeout"`
}

// ThrottleConfig configures replay mutation throttling.
type ThrottleConfig struct {
	BucketCapacity int           `yaml:"bucket_capacity"`
	RefillRate     int           `yaml:"refill_rate"`
	RefillInterval time.Duration `yaml:"refill_interval"`

	// ResyncDelay is how long after a node is throttled the recorder
	// takes a full snapshot.
	ResyncDelay time.Duration `yaml:"resync_delay"`
}

// TraceAttributesConfig bounds the trace attribute store.
type TraceAttributesConfig struct {
	MaxTraces     int           `yaml:"max_traces"`
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// ExporterConfig selects and configures the exporter.
type ExporterConfig struct {
	// Kind is "http" or "console".
	Kind string `yaml:"kind"`

	Endpoint     string `yaml:"endpoint"`
	MaxChunkSize int    `yaml:"max_chunk_size"`

	// Compression is "none", "lz4", or "zstd".
	Compression string `yaml:"compression"`

	// RetryMax is retries after the first attempt. Negative disables
	// retries.
	RetryMax     int           `yaml:"retry_max"`
	RetryWaitMin time.Duration `yaml:"retry_wait_min"`
	RetryWaitMax time.Duration `yaml:"retry_wait_max"`

	Headers map[string]string `yaml:"headers"`
}

// Algorithm returns the parsed compression setting.
func (e ExporterConfig) Algorithm() (compress.Algorithm, error) {
	return compress.Parse(e.Compression)
}

// CollectorConfig configures beacon-collector.
type CollectorConfig struct {
	// Listen is the TCP address to serve on.
	Listen string `yaml:"listen"`

	MaxChunkBytes int64         `yaml:"max_chunk_bytes"`
	MaxPending    int           `yaml:"max_pending"`
	MaxAge        time.Duration `yaml:"max_age"`
}

// Default returns the configuration with every field at its default.
func Default() *Config {
	pipeline := PipelineConfig{
		MaxExportBatchSize: 512,
		MaxQueueSize:       2048,
		ScheduledDelay:     5 * time.Second,
		ExportTimeout:      30 * time.Second,
	}
	replay := pipeline
	replay.ScheduledDelay = 2 * time.Second

	return &Config{
		Environment: Development,
		Service:     "unknown_service",
		Logs:        pipeline,
		Spans:       pipeline,
		Replay:      replay,
		Throttle: ThrottleConfig{
			BucketCapacity: 100,
			RefillRate:     10,
			RefillInterval: time.Second,
			ResyncDelay:    time.Second,
		},
		TraceAttributes: TraceAttributesConfig{
			MaxTraces:     1024,
			TTL:           10 * time.Minute,
			SweepInterval: time.Minute,
		},
		Exporter: ExporterConfig{
			Kind:         ExporterHTTP,
			Endpoint:     "http://localhost:4480/v1/chunks",
			MaxChunkSize: 1 << 20,
			Compression:  "zstd",
			RetryMax:     3,
			RetryWaitMin: 500 * time.Millisecond,
			RetryWaitMax: 5 * time.Second,
		},
		Collector: CollectorConfig{
			Listen:        "localhost:4480",
			MaxChunkBytes: 4 << 20,
			MaxPending:    64,
			MaxAge:        2 * time.Minute,
		},
	}
}

// Load loads configuration from the file named by BEACON_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv("BEACON_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("BEACON_CONFIG environment variable not set; " +
			"set it to the path of your beacon.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path over the defaults, applies
// the matching environment overrides, and expands variables. It does
// not validate; call Validate.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data, JSONC when extension is ".json" or ".jsonc" and
// YAML otherwise, over the defaults.
func Parse(data []byte, extension string) (*Config, error) {
	switch strings.ToLower(extension) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil || overrides.Exporter == nil {
		return
	}

	override := overrides.Exporter
	if override.Kind != "" {
		c.Exporter.Kind = override.Kind
	}
	if override.Endpoint != "" {
		c.Exporter.Endpoint = override.Endpoint
	}
	if override.Compression != "" {
		c.Exporter.Compression = override.Compression
	}
	if override.MaxChunkSize != 0 {
		c.Exporter.MaxChunkSize = override.MaxChunkSize
	}
	for name, value := range override.Headers {
		if c.Exporter.Headers == nil {
			c.Exporter.Headers = make(map[string]string)
		}
		c.Exporter.Headers[name] = value
	}
}

func (c *Config) expandVariables() {
	c.Service = expandVars(c.Service)
	c.Exporter.Endpoint = expandVars(c.Exporter.Endpoint)
	for name, value := range c.Exporter.Headers {
		c.Exporter.Headers[name] = expandVars(value)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the environment.
// An unset or empty variable takes the default, or the empty string.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration and returns every problem found.
// A batch size larger than its queue is not an error here; the
// pipeline raises the queue to fit and logs a warning.
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case Development, Staging, Production:
	default:
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Service == "" {
		errs = append(errs, fmt.Errorf("service is required"))
	}

	errs = append(errs, c.Logs.validate("logs")...)
	errs = append(errs, c.Spans.validate("spans")...)
	errs = append(errs, c.Replay.validate("replay")...)

	if c.Throttle.BucketCapacity < 0 || c.Throttle.RefillRate < 0 ||
		c.Throttle.RefillInterval < 0 || c.Throttle.ResyncDelay < 0 {
		errs = append(errs, fmt.Errorf("throttle values must not be negative"))
	}
	if c.TraceAttributes.MaxTraces < 0 || c.TraceAttributes.TTL < 0 || c.TraceAttributes.SweepInterval < 0 {
		errs = append(errs, fmt.Errorf("trace_attributes values must not be negative"))
	}

	switch c.Exporter.Kind {
	case ExporterHTTP:
		if c.Exporter.Endpoint == "" {
			errs = append(errs, fmt.Errorf("exporter.endpoint is required for the http exporter"))
		}
	case ExporterConsole:
	default:
		errs = append(errs, fmt.Errorf("exporter.kind must be one of: [%s %s], got %q", ExporterHTTP, ExporterConsole, c.Exporter.Kind))
	}
	if _, err := c.Exporter.Algorithm(); err != nil {
		errs = append(errs, fmt.Errorf("exporter.compression: %w", err))
	}
	if c.Exporter.MaxChunkSize < 0 {
		errs = append(errs, fmt.Errorf("exporter.max_chunk_size must not be negative"))
	}
	if c.Exporter.RetryWaitMin < 0 || c.Exporter.RetryWaitMax < 0 {
		errs = append(errs, fmt.Errorf("exporter retry waits must not be negative"))
	} else if c.Exporter.RetryWaitMax != 0 && c.Exporter.RetryWaitMax < c.Exporter.RetryWaitMin {
		errs = append(errs, fmt.Errorf("exporter.retry_wait_max (%v) is below retry_wait_min (%v)",
			c.Exporter.RetryWaitMax, c.Exporter.RetryWaitMin))
	}

	if c.Collector.MaxChunkBytes < 0 || c.Collector.MaxPending < 0 || c.Collector.MaxAge < 0 {
		errs = append(errs, fmt.Errorf("collector values must not be negative"))
	}

	return errors.Join(errs...)
}

func (p PipelineConfig) validate(section string) []error {
	var errs []error
	if p.MaxExportBatchSize < 0 || p.MaxQueueSize < 0 || p.MaxQueueBytes < 0 {
		errs = append(errs, fmt.Errorf("%s: queue sizes must not be negative", section))
	}
	if p.ScheduledDelay < 0 || p.ExportTimeout < 0 {
		errs = append(errs, fmt.Errorf("%s: durations must not be negative", section))
	}
	return errs
}
