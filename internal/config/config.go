package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sravanigadey/s3audit/internal/output"
	"github.com/sravanigadey/s3audit/internal/source"
)

// Config represents the main configuration
type Config struct {
	Input   InputConfig      `yaml:"input"`
	S3      *source.S3Config `yaml:"s3,omitempty"`
	Outputs []output.Config  `yaml:"outputs,omitempty"`
	Logging LoggingConfig    `yaml:"logging"`
	Metrics *MetricsConfig   `yaml:"metrics,omitempty"`
}

// InputConfig defines where the access log comes from
type InputConfig struct {
	// Path is a local file path or an s3:// URI. An s3:// URI ending in
	// "/" is treated as a prefix of log objects.
	Path string `yaml:"path"`

	// Watch follows the file for appended lines instead of a one-shot
	// batch parse. Only meaningful for local paths.
	Watch bool `yaml:"watch,omitempty"`

	// CheckpointPath persists the watch offset across restarts
	CheckpointPath string `yaml:"checkpoint_path,omitempty"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// MetricsConfig defines the metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path,omitempty"`
}

// Default values
const (
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "json"
	DefaultOutputType = "stdout"
)

// Load loads configuration from a YAML file with environment variable
// expansion applied to the raw content first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for unspecified configuration
func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if len(c.Outputs) == 0 {
		c.Outputs = []output.Config{{Type: DefaultOutputType}}
	}
	if c.Metrics != nil && c.Metrics.Enabled && c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Input.Path == "" {
		return fmt.Errorf("input path is required")
	}

	for i, out := range c.Outputs {
		switch out.Type {
		case "stdout":
		case "ndjson", "json", "csv", "avro":
			if out.Path == "" {
				return fmt.Errorf("output %d (%s) has no path configured", i, out.Type)
			}
		case "kafka":
			if out.Kafka == nil || len(out.Kafka.Brokers) == 0 {
				return fmt.Errorf("output %d (kafka) has no brokers configured", i)
			}
		case "elasticsearch":
			if out.Elasticsearch == nil {
				return fmt.Errorf("output %d (elasticsearch) has no settings configured", i)
			}
		default:
			return fmt.Errorf("output %d has unknown type: %s", i, out.Type)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true, "console": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Metrics != nil && c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("metrics enabled but no address configured")
	}

	return nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Path: "access.log",
		},
		Outputs: []output.Config{
			{Type: DefaultOutputType},
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
