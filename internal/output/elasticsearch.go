package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/sravanigadey/s3audit/internal/logging"
	"github.com/sravanigadey/s3audit/internal/metrics"
	"github.com/sravanigadey/s3audit/pkg/types"
)

// ElasticsearchConfig contains Elasticsearch-specific configuration
type ElasticsearchConfig struct {
	// Addresses is the list of Elasticsearch node URLs
	Addresses []string `yaml:"addresses"`

	// Index is the index records are written to
	Index string `yaml:"index"`

	// Username for authentication
	Username string `yaml:"username,omitempty"`

	// Password for authentication
	Password string `yaml:"password,omitempty"`

	// CloudID for Elastic Cloud
	CloudID string `yaml:"cloud_id,omitempty"`

	// APIKey for authentication
	APIKey string `yaml:"api_key,omitempty"`
}

// DefaultElasticsearchConfig returns default Elasticsearch configuration
func DefaultElasticsearchConfig() ElasticsearchConfig {
	return ElasticsearchConfig{
		Addresses: []string{"http://localhost:9200"},
		Index:     "s3-audit-records",
	}
}

// ElasticsearchOutput bulk-indexes records into Elasticsearch
type ElasticsearchOutput struct {
	config    ElasticsearchConfig
	client    *elasticsearch.Client
	logger    *logging.Logger
	collector *metrics.Collector
}

// NewElasticsearchOutput creates a new Elasticsearch output
func NewElasticsearchOutput(config ElasticsearchConfig, logger *logging.Logger, collector *metrics.Collector) (*ElasticsearchOutput, error) {
	if len(config.Addresses) == 0 && config.CloudID == "" {
		return nil, fmt.Errorf("no addresses or cloud ID specified")
	}

	if config.Index == "" {
		return nil, fmt.Errorf("no index specified")
	}

	if logger == nil {
		logger = logging.Nop()
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: config.Addresses,
		CloudID:   config.CloudID,
		Username:  config.Username,
		Password:  config.Password,
		APIKey:    config.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch returned error: %s", res.Status())
	}

	return &ElasticsearchOutput{
		config:    config,
		client:    client,
		logger:    logger.WithComponent("elasticsearch"),
		collector: collector,
	}, nil
}

// Write bulk-indexes records in order
func (o *ElasticsearchOutput) Write(ctx context.Context, records []types.Record) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for i, record := range records {
		meta := fmt.Sprintf(`{"index":{"_index":%q}}`, o.config.Index)
		buf.WriteString(meta)
		buf.WriteByte('\n')

		data, err := json.Marshal(record)
		if err != nil {
			countFailure(o.collector, o.Name())
			return fmt.Errorf("failed to marshal record %d: %w", i, err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	res, err := o.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		o.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		countFailure(o.collector, o.Name())
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		countFailure(o.collector, o.Name())
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("bulk request returned error: %s: %s", res.Status(), body)
	}

	// The bulk API reports per-item failures inside a 200 response.
	var bulkRes struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkRes); err == nil && bulkRes.Errors {
		countFailure(o.collector, o.Name())
		return fmt.Errorf("bulk request reported item failures")
	}

	countWritten(o.collector, o.Name(), len(records))
	o.logger.Debug().Int("records", len(records)).Msg("Bulk indexed records")
	return nil
}

// Close is a no-op; the client keeps no persistent connections open
func (o *ElasticsearchOutput) Close() error {
	return nil
}

// Name returns the output name
func (o *ElasticsearchOutput) Name() string {
	return "elasticsearch"
}
