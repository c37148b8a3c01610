package types

// Placeholder is the literal used by the S3 server access log format to mean
// "value intentionally absent".
const Placeholder = "-"

// Record is one parsed audit log entry: a mapping from field name to the
// extracted value. After merging it also carries the decoded referrer
// parameters.
type Record map[string]string

// Clone returns a copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge copies all entries of other into r. Colliding keys take the value
// from other; in well-formed logs referrer parameter names never collide
// with log field names, but when one does the referrer value wins.
func (r Record) Merge(other Record) {
	for k, v := range other {
		r[k] = v
	}
}
