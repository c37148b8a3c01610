// Package parser extracts structured records from AWS S3 server access logs.
//
// The log format is fixed, space delimited and partially quoted; see
// https://docs.aws.amazon.com/AmazonS3/latest/userguide/LogFormat.html.
// Getting the field boundaries right is the hard part, so the composite
// expression is built explicitly from an ordered table of named field specs
// rather than written out by hand.
package parser

import (
	"fmt"
	"strings"
)

// Kind selects the sub-pattern used to capture one log field.
type Kind int

const (
	// Simple is a maximal run of non-space characters.
	Simple Kind = iota
	// Quoted is the placeholder "-" or a double-quote delimited run that
	// may itself contain spaces. Quotes are captured verbatim.
	Quoted
	// Number is the placeholder "-" or a run of decimal digits.
	Number
	// DateTime is text enclosed in square brackets, captured verbatim
	// with the brackets. No date parsing happens here.
	DateTime
	// RawTrailing absorbs everything remaining to end of line. It exists
	// so that fields added by future log format revisions do not break
	// the match; until AWS adds them it captures the empty string.
	RawTrailing
)

// FieldSpec names one fixed-position token of a log line and describes how
// its boundaries are detected.
type FieldSpec struct {
	Name string
	Kind Kind
}

const (
	simplePattern   = `[^ ]*`
	datetimePattern = `\[(.*?)\]`
	numberPattern   = `(-|[0-9]*)`
	quotedPattern   = `(-|"[^"]*")`
)

// Field names of the S3 server access log format, in log order.
const (
	FieldOwner          = "owner"
	FieldBucket         = "bucket"
	FieldTimestamp      = "timestamp"
	FieldRemoteIP       = "remoteip"
	FieldRequester      = "requester"
	FieldRequestID      = "requestid"
	FieldVerb           = "verb"
	FieldKey            = "key"
	FieldRequestURI     = "requesturi"
	FieldHTTP           = "http"
	FieldAWSErrorCode   = "awserrorcode"
	FieldBytesSent      = "bytessent"
	FieldObjectSize     = "objectsize"
	FieldTotalTime      = "totaltime"
	FieldTurnaroundTime = "turnaroundtime"
	FieldReferrer       = "referrer"
	FieldUserAgent      = "useragent"
	FieldVersion        = "version"
	FieldHostID         = "hostid"
	FieldSigV           = "sigv"
	FieldCypher         = "cypher"
	FieldAuth           = "auth"
	FieldEndpoint       = "endpoint"
	FieldTLS            = "tls"
	FieldTail           = "tail"
)

// defaultFields is the field order of the S3 server access log format. The
// order is significant: it drives construction of the composite expression,
// and one capture group exists per entry. The final two entries carry no
// separating space between them, which is how the open-ended tail works.
var defaultFields = []FieldSpec{
	{FieldOwner, Simple},
	{FieldBucket, Simple},
	{FieldTimestamp, DateTime},
	{FieldRemoteIP, Simple},
	{FieldRequester, Simple},
	{FieldRequestID, Simple},
	{FieldVerb, Simple},
	{FieldKey, Simple},
	{FieldRequestURI, Quoted},
	{FieldHTTP, Number},
	{FieldAWSErrorCode, Simple},
	{FieldBytesSent, Simple},
	{FieldObjectSize, Simple},
	{FieldTotalTime, Simple},
	{FieldTurnaroundTime, Simple},
	{FieldReferrer, Quoted},
	{FieldUserAgent, Quoted},
	{FieldVersion, Simple},
	{FieldHostID, Simple},
	{FieldSigV, Simple},
	{FieldCypher, Simple},
	{FieldAuth, Simple},
	{FieldEndpoint, Simple},
	{FieldTLS, Simple},
	{FieldTail, RawTrailing},
}

// DefaultFields returns the field specs of the S3 access log format.
func DefaultFields() []FieldSpec {
	out := make([]FieldSpec, len(defaultFields))
	copy(out, defaultFields)
	return out
}

func subPattern(k Kind) (string, error) {
	switch k {
	case Simple:
		return simplePattern, nil
	case Quoted:
		return quotedPattern, nil
	case Number:
		return numberPattern, nil
	case DateTime:
		return datetimePattern, nil
	case RawTrailing:
		return `.*`, nil
	default:
		return "", fmt.Errorf("unknown field kind %d", k)
	}
}

// buildExpr assembles the composite expression from the ordered specs.
// Fields are separated by exactly one space, except that a RawTrailing
// field follows its predecessor with no separator and the whole expression
// is anchored to both ends of the line.
func buildExpr(fields []FieldSpec) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("no fields specified")
	}

	var b strings.Builder
	b.WriteString("^")
	for i, f := range fields {
		if f.Name == "" {
			return "", fmt.Errorf("field %d has no name", i)
		}

		pat, err := subPattern(f.Kind)
		if err != nil {
			return "", fmt.Errorf("field %q: %w", f.Name, err)
		}

		fmt.Fprintf(&b, "(?P<%s>%s)", f.Name, pat)

		last := i == len(fields)-1
		nextRaw := !last && fields[i+1].Kind == RawTrailing
		if !last && !nextRaw {
			b.WriteString(" ")
		}
	}
	b.WriteString("$")
	return b.String(), nil
}
