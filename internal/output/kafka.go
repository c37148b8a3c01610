package output

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/sravanigadey/s3audit/internal/metrics"
	"github.com/sravanigadey/s3audit/pkg/types"
)

// KafkaConfig contains Kafka-specific configuration
type KafkaConfig struct {
	// Brokers is the list of Kafka broker addresses
	Brokers []string `yaml:"brokers"`

	// Topic is the Kafka topic to send records to
	Topic string `yaml:"topic"`

	// KeyField is the record field used as the message key; defaults to
	// requestid so retries of the same request land on one partition
	KeyField string `yaml:"key_field,omitempty"`

	// RequiredAcks specifies the number of acknowledgments required (0, 1, -1)
	RequiredAcks int16 `yaml:"required_acks,omitempty"`

	// CompressionCodec specifies the compression codec (none, gzip, snappy, lz4, zstd)
	CompressionCodec string `yaml:"compression_codec,omitempty"`

	// ClientID is the client identifier
	ClientID string `yaml:"client_id,omitempty"`

	// Version is the Kafka protocol version
	Version string `yaml:"version,omitempty"`
}

// DefaultKafkaConfig returns default Kafka configuration
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:          []string{"localhost:9092"},
		Topic:            "s3-audit-records",
		KeyField:         "requestid",
		RequiredAcks:     1,
		CompressionCodec: "none",
		ClientID:         "s3audit",
		Version:          "3.0.0",
	}
}

// KafkaOutput publishes records to Kafka as JSON messages
type KafkaOutput struct {
	config    KafkaConfig
	producer  sarama.SyncProducer
	collector *metrics.Collector
}

// NewKafkaOutput creates a new Kafka output
func NewKafkaOutput(config KafkaConfig, collector *metrics.Collector) (*KafkaOutput, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("no brokers specified")
	}

	if config.Topic == "" {
		return nil, fmt.Errorf("no topic specified")
	}

	if config.KeyField == "" {
		config.KeyField = "requestid"
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.RequiredAcks(config.RequiredAcks)
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	if config.ClientID != "" {
		saramaConfig.ClientID = config.ClientID
	}

	switch config.CompressionCodec {
	case "gzip":
		saramaConfig.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		saramaConfig.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		saramaConfig.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		saramaConfig.Producer.Compression = sarama.CompressionZSTD
	default:
		saramaConfig.Producer.Compression = sarama.CompressionNone
	}

	if config.Version != "" {
		version, err := sarama.ParseKafkaVersion(config.Version)
		if err != nil {
			return nil, fmt.Errorf("invalid kafka version: %w", err)
		}
		saramaConfig.Version = version
	}

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaOutput{
		config:    config,
		producer:  producer,
		collector: collector,
	}, nil
}

// Write publishes records in order as a single produce batch
func (o *KafkaOutput) Write(ctx context.Context, records []types.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	messages := make([]*sarama.ProducerMessage, 0, len(records))
	for i, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			countFailure(o.collector, o.Name())
			return fmt.Errorf("failed to marshal record %d: %w", i, err)
		}

		msg := &sarama.ProducerMessage{
			Topic: o.config.Topic,
			Value: sarama.ByteEncoder(data),
		}
		if key, ok := record[o.config.KeyField]; ok && key != types.Placeholder {
			msg.Key = sarama.StringEncoder(key)
		}
		messages = append(messages, msg)
	}

	if err := o.producer.SendMessages(messages); err != nil {
		countFailure(o.collector, o.Name())
		return fmt.Errorf("failed to send records to kafka: %w", err)
	}
	countWritten(o.collector, o.Name(), len(records))
	return nil
}

// Close closes the producer
func (o *KafkaOutput) Close() error {
	return o.producer.Close()
}

// Name returns the output name
func (o *KafkaOutput) Name() string {
	return "kafka"
}
