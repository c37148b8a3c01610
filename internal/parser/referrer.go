package parser

import (
	"strings"

	"github.com/sravanigadey/s3audit/pkg/types"
)

// DecodeReferrer extracts the audit query parameters embedded in the quoted
// referrer header of a log record.
//
// The decodable region is everything after the first '?' with the final
// character (the closing quote) dropped. It is scanned by hand rather than
// with net/url: the values in this format are plain tokens that were never
// percent-encoded, and a generic query decoder would silently rewrite any
// value containing characters it considers reserved.
//
// Empty input yields an empty record. Trailing text after the last '='-less
// segment is discarded, not an error.
func DecodeReferrer(referrer string) types.Record {
	params := make(types.Record)
	if referrer == "" {
		return params
	}

	qm := strings.Index(referrer, "?")
	region := referrer[qm+1 : len(referrer)-1]

	start := 0
	for start < len(region) {
		equals := strings.Index(region[start:], "=")
		if equals == -1 {
			break
		}
		equals += start
		key := region[start:equals]

		end := strings.Index(region[equals:], "&")
		if end == -1 {
			end = len(region)
		} else {
			end += equals
		}
		params[key] = region[equals+1 : end]

		start = end + 1
	}
	return params
}
