package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hamba/avro/v2/ocf"

	"github.com/sravanigadey/s3audit/internal/metrics"
	"github.com/sravanigadey/s3audit/pkg/types"
)

// longFields are the numeric log fields serialized as nullable longs. The
// placeholder or an unparseable value becomes null rather than failing the
// run.
var longFields = map[string]bool{
	"bytessent":      true,
	"objectsize":     true,
	"totaltime":      true,
	"turnaroundtime": true,
}

// referrerParamsField holds the decoded referrer parameters in the Avro
// record, keeping them apart from the fixed log columns.
const referrerParamsField = "referrer_params"

// AvroOutput serializes records into an Avro object container file so the
// result can be queried from Hive or Spark directly.
type AvroOutput struct {
	encoder    *ocf.Encoder
	file       *os.File
	fieldOrder []string
	known      map[string]bool
	collector  *metrics.Collector
}

// NewAvroOutput creates an Avro output writing to the file at path.
func NewAvroOutput(path string, fieldOrder []string, collector *metrics.Collector) (*AvroOutput, error) {
	if path == "" {
		return nil, fmt.Errorf("no output path specified")
	}

	schema, err := buildSchema(fieldOrder)
	if err != nil {
		return nil, err
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create avro output: %w", err)
	}

	encoder, err := ocf.NewEncoder(schema, file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create avro encoder: %w", err)
	}

	known := make(map[string]bool, len(fieldOrder))
	for _, name := range fieldOrder {
		known[name] = true
	}

	return &AvroOutput{
		encoder:    encoder,
		file:       file,
		fieldOrder: fieldOrder,
		known:      known,
		collector:  collector,
	}, nil
}

// buildSchema constructs the Avro record schema from the parser field
// order: nullable longs for the numeric columns, strings for the rest, and
// a string map for the referrer parameters.
func buildSchema(fieldOrder []string) (string, error) {
	type schemaField struct {
		Name string `json:"name"`
		Type any    `json:"type"`
	}

	fields := make([]schemaField, 0, len(fieldOrder)+1)
	for _, name := range fieldOrder {
		if longFields[name] {
			fields = append(fields, schemaField{Name: name, Type: []string{"null", "long"}})
		} else {
			fields = append(fields, schemaField{Name: name, Type: "string"})
		}
	}
	fields = append(fields, schemaField{
		Name: referrerParamsField,
		Type: map[string]string{"type": "map", "values": "string"},
	})

	schema := map[string]any{
		"type":      "record",
		"name":      "AccessLogEntry",
		"namespace": "s3audit",
		"fields":    fields,
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("failed to build avro schema: %w", err)
	}
	return string(data), nil
}

// Write exports records in order.
func (o *AvroOutput) Write(ctx context.Context, records []types.Record) error {
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.encoder.Encode(o.toAvro(record)); err != nil {
			countFailure(o.collector, o.Name())
			return fmt.Errorf("failed to encode record %d: %w", i, err)
		}
	}
	countWritten(o.collector, o.Name(), len(records))
	return nil
}

func (o *AvroOutput) toAvro(record types.Record) map[string]any {
	out := make(map[string]any, len(o.fieldOrder)+1)
	for _, name := range o.fieldOrder {
		value, ok := record[name]
		if !ok {
			value = types.Placeholder
		}
		if longFields[name] {
			out[name] = toNullableLong(value)
		} else {
			out[name] = value
		}
	}

	params := make(map[string]string)
	for key, value := range record {
		if !o.known[key] {
			params[key] = value
		}
	}
	out[referrerParamsField] = params
	return out
}

// toNullableLong coerces a numeric field value. The placeholder and
// anything unparseable map to null; the coercion never aborts the run.
func toNullableLong(value string) any {
	value = strings.TrimSpace(value)
	if value == types.Placeholder || value == "" {
		return nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil
	}
	return n
}

// Close flushes the container file and closes it.
func (o *AvroOutput) Close() error {
	if err := o.encoder.Close(); err != nil {
		o.file.Close()
		return fmt.Errorf("failed to flush avro output: %w", err)
	}
	return o.file.Close()
}

// Name returns the output name
func (o *AvroOutput) Name() string {
	return "avro"
}
