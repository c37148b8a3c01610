// Package output contains the export sinks merged audit records are
// handed to. The contract they require from the parsing side is an ordered
// sequence of string-to-string mappings, nothing more.
package output

import (
	"context"
	"fmt"
	"os"

	"github.com/sravanigadey/s3audit/internal/logging"
	"github.com/sravanigadey/s3audit/internal/metrics"
	"github.com/sravanigadey/s3audit/pkg/types"
)

// Output defines the interface for all export sinks
type Output interface {
	// Write exports a batch of records, preserving their order
	Write(ctx context.Context, records []types.Record) error

	// Close flushes buffered data and releases resources
	Close() error

	// Name returns the name of the output
	Name() string
}

// Config selects and configures a single output
type Config struct {
	// Type is one of stdout, ndjson, csv, avro, kafka, elasticsearch
	Type string `yaml:"type"`

	// Path is the destination file for file-backed outputs
	Path string `yaml:"path,omitempty"`

	// Compression applies to the ndjson output (none, gzip, snappy)
	Compression CompressionType `yaml:"compression,omitempty"`

	Kafka         *KafkaConfig         `yaml:"kafka,omitempty"`
	Elasticsearch *ElasticsearchConfig `yaml:"elasticsearch,omitempty"`
}

// New creates an output from its configuration. fieldOrder is the parser's
// field order, used by the columnar outputs.
func New(cfg Config, fieldOrder []string, logger *logging.Logger, collector *metrics.Collector) (Output, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	switch cfg.Type {
	case "stdout":
		return NewJSONWriter(os.Stdout, collector), nil
	case "ndjson", "json":
		return NewJSONOutput(cfg.Path, cfg.Compression, collector)
	case "csv":
		return NewCSVOutput(cfg.Path, fieldOrder, collector)
	case "avro":
		return NewAvroOutput(cfg.Path, fieldOrder, collector)
	case "kafka":
		if cfg.Kafka == nil {
			return nil, fmt.Errorf("kafka output requires a kafka section")
		}
		return NewKafkaOutput(*cfg.Kafka, collector)
	case "elasticsearch":
		if cfg.Elasticsearch == nil {
			return nil, fmt.Errorf("elasticsearch output requires an elasticsearch section")
		}
		return NewElasticsearchOutput(*cfg.Elasticsearch, logger, collector)
	default:
		return nil, fmt.Errorf("unknown output type: %s", cfg.Type)
	}
}

func countWritten(collector *metrics.Collector, name string, n int) {
	if collector != nil {
		collector.RecordsWritten.WithLabelValues(name).Add(float64(n))
	}
}

func countFailure(collector *metrics.Collector, name string) {
	if collector != nil {
		collector.WriteFailures.WithLabelValues(name).Inc()
	}
}
