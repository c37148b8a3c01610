package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sravanigadey/s3audit/internal/metrics"
	"github.com/sravanigadey/s3audit/pkg/types"
)

// JSONOutput writes records as newline-delimited JSON, one object per
// record, optionally compressed.
type JSONOutput struct {
	encoder    *json.Encoder
	compressor io.WriteCloser
	file       *os.File
	collector  *metrics.Collector
}

// NewJSONOutput creates an NDJSON output writing to the file at path.
func NewJSONOutput(path string, compression CompressionType, collector *metrics.Collector) (*JSONOutput, error) {
	if path == "" {
		return nil, fmt.Errorf("no output path specified")
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create json output: %w", err)
	}

	compressor, err := NewCompressedWriter(file, compression)
	if err != nil {
		file.Close()
		return nil, err
	}

	o := &JSONOutput{
		compressor: compressor,
		file:       file,
		collector:  collector,
	}
	o.encoder = json.NewEncoder(compressor)
	o.encoder.SetEscapeHTML(false)
	return o, nil
}

// NewJSONWriter creates an NDJSON output over an arbitrary writer, used for
// the stdout sink and by tests.
func NewJSONWriter(w io.Writer, collector *metrics.Collector) *JSONOutput {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	return &JSONOutput{encoder: encoder, collector: collector}
}

// Write exports records in order, one JSON object per line.
func (o *JSONOutput) Write(ctx context.Context, records []types.Record) error {
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.encoder.Encode(record); err != nil {
			countFailure(o.collector, o.Name())
			return fmt.Errorf("failed to encode record %d: %w", i, err)
		}
	}
	countWritten(o.collector, o.Name(), len(records))
	return nil
}

// Close flushes the compressor and closes the underlying file, if any.
func (o *JSONOutput) Close() error {
	if o.compressor != nil {
		if err := o.compressor.Close(); err != nil {
			return fmt.Errorf("failed to flush json output: %w", err)
		}
	}
	if o.file != nil {
		return o.file.Close()
	}
	return nil
}

// Name returns the output name
func (o *JSONOutput) Name() string {
	return "ndjson"
}
