package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"

	"github.com/sravanigadey/s3audit/internal/metrics"
	"github.com/sravanigadey/s3audit/pkg/types"
)

// CSVOutput writes records as a table: one column per log field in parser
// order, followed by one column per referrer parameter name seen in the
// first batch (sorted). Cells with no value get the "-" placeholder.
type CSVOutput struct {
	writer     *csv.Writer
	file       *os.File
	fieldOrder []string
	known      map[string]bool
	columns    []string
	collector  *metrics.Collector
}

// NewCSVOutput creates a CSV output writing to the file at path.
func NewCSVOutput(path string, fieldOrder []string, collector *metrics.Collector) (*CSVOutput, error) {
	if path == "" {
		return nil, fmt.Errorf("no output path specified")
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create csv output: %w", err)
	}

	known := make(map[string]bool, len(fieldOrder))
	for _, name := range fieldOrder {
		known[name] = true
	}

	return &CSVOutput{
		writer:     csv.NewWriter(file),
		file:       file,
		fieldOrder: fieldOrder,
		known:      known,
		collector:  collector,
	}, nil
}

// Write exports records in order. The header row is emitted on the first
// call; referrer parameters that first appear in a later batch have no
// column and are dropped from the table.
func (o *CSVOutput) Write(ctx context.Context, records []types.Record) error {
	if o.columns == nil {
		o.columns = o.buildColumns(records)
		if err := o.writer.Write(o.columns); err != nil {
			countFailure(o.collector, o.Name())
			return fmt.Errorf("failed to write csv header: %w", err)
		}
	}

	row := make([]string, len(o.columns))
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i, col := range o.columns {
			value, ok := record[col]
			if !ok {
				value = types.Placeholder
			}
			row[i] = value
		}
		if err := o.writer.Write(row); err != nil {
			countFailure(o.collector, o.Name())
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	o.writer.Flush()
	if err := o.writer.Error(); err != nil {
		countFailure(o.collector, o.Name())
		return fmt.Errorf("failed to flush csv output: %w", err)
	}
	countWritten(o.collector, o.Name(), len(records))
	return nil
}

// buildColumns fixes the table layout: log fields in parser order, then
// every referrer parameter name present in the batch, sorted.
func (o *CSVOutput) buildColumns(records []types.Record) []string {
	extras := make(map[string]bool)
	for _, record := range records {
		for key := range record {
			if !o.known[key] {
				extras[key] = true
			}
		}
	}

	names := make([]string, 0, len(extras))
	for name := range extras {
		names = append(names, name)
	}
	sort.Strings(names)

	return append(append([]string{}, o.fieldOrder...), names...)
}

// Close flushes and closes the file.
func (o *CSVOutput) Close() error {
	o.writer.Flush()
	if err := o.writer.Error(); err != nil {
		o.file.Close()
		return err
	}
	return o.file.Close()
}

// Name returns the output name
func (o *CSVOutput) Name() string {
	return "csv"
}
