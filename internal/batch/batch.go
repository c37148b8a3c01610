// Package batch runs the whole-file parse: read lines, extract fields,
// decode referrer parameters and merge them into one record per line.
package batch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/sravanigadey/s3audit/internal/logging"
	"github.com/sravanigadey/s3audit/internal/metrics"
	"github.com/sravanigadey/s3audit/internal/parser"
	"github.com/sravanigadey/s3audit/pkg/types"
)

const (
	// maxLineSize bounds a single log line. Real access log lines are a
	// few KB; request URIs and user agents can inflate them.
	maxLineSize = 1024 * 1024
	initialBuf  = 64 * 1024
)

// Stats summarises one run.
type Stats struct {
	Lines   int64 `json:"lines"`
	Parsed  int64 `json:"parsed"`
	Failed  int64 `json:"failed"`
	Skipped int64 `json:"skipped"`
}

type lineOutcome int

const (
	lineParsed lineOutcome = iota
	lineNoMatch
	lineNoReferrer
)

// Runner reads an access log file line by line and produces merged records.
type Runner struct {
	parser    *parser.LineParser
	logger    *logging.Logger
	collector *metrics.Collector
}

// New creates a runner. The collector may be nil.
func New(p *parser.LineParser, logger *logging.Logger, collector *metrics.Collector) *Runner {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Runner{
		parser:    p,
		logger:    logger.WithComponent("batch"),
		collector: collector,
	}
}

// ParseLine parses a single line into a merged record. The bool result is
// false when the line produced no record: either it did not match the log
// format, or its referrer field is absent or the "-" placeholder. Lines
// without a referrer carry no audit parameters and are dropped whole, the
// policy the exporters downstream rely on.
func (r *Runner) ParseLine(line string) (types.Record, bool) {
	record, outcome := r.parseLine(line)
	return record, outcome == lineParsed
}

func (r *Runner) parseLine(line string) (types.Record, lineOutcome) {
	start := time.Now()
	record := r.parser.Parse(line)
	if r.collector != nil {
		r.collector.ParseDuration.Observe(time.Since(start).Seconds())
	}

	if len(record) == 0 {
		if r.collector != nil {
			r.collector.LinesFailed.Inc()
		}
		return nil, lineNoMatch
	}
	if r.collector != nil {
		r.collector.LinesParsed.Inc()
	}

	referrer, ok := record[parser.FieldReferrer]
	if !ok || referrer == types.Placeholder {
		if r.collector != nil {
			r.collector.LinesSkipped.Inc()
		}
		r.logger.Debug().Str("requestid", record[parser.FieldRequestID]).
			Msg("Skipping line without referrer header")
		return nil, lineNoReferrer
	}

	record.Merge(parser.DecodeReferrer(referrer))
	return record, lineParsed
}

// Run parses the file at path and returns the merged records in file order.
//
// A missing path, a directory or a zero-length file is a normal outcome and
// yields an empty slice. Filesystem faults while reading are hard errors.
func (r *Runner) Run(ctx context.Context, path string) ([]types.Record, Stats, error) {
	var stats Stats

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.logger.Info().Str("path", path).Msg("Input does not exist, nothing to parse")
			return []types.Record{}, stats, nil
		}
		return nil, stats, fmt.Errorf("failed to stat input: %w", err)
	}
	if info.IsDir() {
		r.logger.Info().Str("path", path).Msg("Input is a directory, expected a file")
		return []types.Record{}, stats, nil
	}
	if info.Size() == 0 {
		r.logger.Info().Str("path", path).Msg("Input is empty, nothing to parse")
		return []types.Record{}, stats, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to open input: %w", err)
	}
	defer file.Close()

	records := make([]types.Record, 0)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, initialBuf), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		stats.Lines++
		if r.collector != nil {
			r.collector.LinesRead.Inc()
		}

		record, outcome := r.parseLine(scanner.Text())
		switch outcome {
		case lineParsed:
			stats.Parsed++
			records = append(records, record)
		case lineNoMatch:
			stats.Failed++
		case lineNoReferrer:
			stats.Skipped++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("failed to read input: %w", err)
	}

	r.logger.Info().
		Str("path", path).
		Int64("lines", stats.Lines).
		Int64("records", stats.Parsed).
		Int64("skipped", stats.Skipped).
		Msg("Parsed access log file")
	return records, stats, nil
}
