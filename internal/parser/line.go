package parser

import (
	"fmt"
	"regexp"

	"github.com/sravanigadey/s3audit/internal/logging"
	"github.com/sravanigadey/s3audit/pkg/types"
)

// LineParser extracts the named fields of one S3 server access log line.
// It is safe for concurrent use: the compiled expression is the only shared
// state and it is immutable after construction.
type LineParser struct {
	expr   *regexp.Regexp
	fields []FieldSpec
	logger *logging.Logger
}

// New creates a parser for the standard S3 access log field order. The
// logger is advisory only; pass nil to discard diagnostics.
func New(logger *logging.Logger) *LineParser {
	p, err := NewWithFields(DefaultFields(), logger)
	if err != nil {
		// The built-in table always compiles.
		panic(err)
	}
	return p
}

// NewWithFields creates a parser for a custom ordered field table.
func NewWithFields(fields []FieldSpec, logger *logging.Logger) (*LineParser, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	exprStr, err := buildExpr(fields)
	if err != nil {
		return nil, err
	}

	expr, err := regexp.Compile(exprStr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile log entry pattern: %w", err)
	}

	specs := make([]FieldSpec, len(fields))
	copy(specs, fields)

	return &LineParser{
		expr:   expr,
		fields: specs,
		logger: logger.WithComponent("parser"),
	}, nil
}

// FieldNames returns the field names in log order. Exporters that need
// columnar output use this, since Record is an unordered map.
func (p *LineParser) FieldNames() []string {
	names := make([]string, len(p.fields))
	for i, f := range p.fields {
		names[i] = f.Name
	}
	return names
}

// Expr returns the composite expression source, for diagnostics.
func (p *LineParser) Expr() string {
	return p.expr.String()
}

// Parse extracts every named field of a single log line into a record.
//
// An empty line yields an empty record, and so does a line that does not
// conform to the expected structure; neither is an error. Callers detect
// failure by the absence of expected keys, not by an error value.
func (p *LineParser) Parse(line string) types.Record {
	record := make(types.Record)
	if line == "" {
		p.logger.Debug().Msg("Empty log line, nothing to parse")
		return record
	}

	match := p.expr.FindStringSubmatch(line)
	if match == nil {
		p.logger.Debug().Str("line", line).Msg("Log line did not match the expected format")
		return record
	}

	// Only named groups are kept; the inner unnamed groups of the quoted,
	// number and datetime sub-patterns report empty names and are skipped.
	for i, name := range p.expr.SubexpNames() {
		if i == 0 || name == "" || i >= len(match) {
			continue
		}
		record[name] = match[i]
	}

	p.logger.Debug().Int("fields", len(record)).Msg("Parsed log line")
	return record
}
