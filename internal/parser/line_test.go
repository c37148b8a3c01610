package parser

import (
	"reflect"
	"strings"
	"testing"
)

// sampleLogEntry is derived from a real log entry on a test run. If this
// needs to be updated, please do it from a real log: hand-built entries
// have a tendency to get the field boundaries wrong.
const sampleLogEntry = "183c9826b45486e485693808f38e2c4071004bf5dfd4c3ab210f0a21a4000000" +
	" bucket-london" +
	" [13/May/2021:11:26:06 +0000]" +
	" 109.157.171.174" +
	" arn:aws:iam::152813717700:user/dev" +
	" M7ZB7C4RTKXJKTM9" +
	" REST.PUT.OBJECT" +
	" fork-0001/test/testParseBrokenCSVFile" +
	" \"PUT /fork-0001/test/testParseBrokenCSVFile HTTP/1.1\"" +
	" 200" +
	" -" +
	" -" +
	" 794" +
	" 55" +
	" 17" +
	" \"https://audit.example.org/hadoop/1/op_create/" +
	"e8ede3c7-8506-4a43-8268-fe8fcbb510a4-00000278/" +
	"?op=op_create" +
	"&p1=fork-0001/test/testParseBrokenCSVFile" +
	"&pr=alice" +
	"&ps=2eac5a04-2153-48db-896a-09bc9a2fd132" +
	"&id=e8ede3c7-8506-4a43-8268-fe8fcbb510a4-00000278&t0=154" +
	"&fs=e8ede3c7-8506-4a43-8268-fe8fcbb510a4&t1=156&" +
	"ts=1620905165700\"" +
	" \"Hadoop 3.4.0-SNAPSHOT, java/1.8.0_282 vendor/AdoptOpenJDK\"" +
	" -" +
	" TrIqtEYGWAwvu0h1N9WJKyoqM0TyHUaY+ZZBwP2yNf2qQp1Z/0=" +
	" SigV4" +
	" ECDHE-RSA-AES128-GCM-SHA256" +
	" AuthHeader" +
	" bucket-london.s3.eu-west-2.amazonaws.com" +
	" TLSv1.2"

func TestLineParser_Parse(t *testing.T) {
	p := New(nil)

	record := p.Parse(sampleLogEntry)
	if len(record) == 0 {
		t.Fatal("expected the sample entry to match the log format")
	}

	wantFields := map[string]string{
		FieldOwner:     "183c9826b45486e485693808f38e2c4071004bf5dfd4c3ab210f0a21a4000000",
		FieldBucket:    "bucket-london",
		FieldTimestamp: "[13/May/2021:11:26:06 +0000]",
		FieldRemoteIP:  "109.157.171.174",
		FieldRequester: "arn:aws:iam::152813717700:user/dev",
		FieldRequestID: "M7ZB7C4RTKXJKTM9",
		FieldVerb:      "REST.PUT.OBJECT",
		FieldKey:       "fork-0001/test/testParseBrokenCSVFile",
		FieldHTTP:      "200",
		FieldBytesSent: "794",
		FieldTLS:       "TLSv1.2",
		FieldTail:      "",
	}
	for name, want := range wantFields {
		if got := record[name]; got != want {
			t.Errorf("field %s = %q, want %q", name, got, want)
		}
	}

	// Quoted fields keep their quotes; the referrer decoder depends on
	// the trailing one.
	if got := record[FieldRequestURI]; got != `"PUT /fork-0001/test/testParseBrokenCSVFile HTTP/1.1"` {
		t.Errorf("requesturi = %q", got)
	}
	if got := record[FieldUserAgent]; got != `"Hadoop 3.4.0-SNAPSHOT, java/1.8.0_282 vendor/AdoptOpenJDK"` {
		t.Errorf("useragent = %q", got)
	}
	if !strings.HasPrefix(record[FieldReferrer], `"https://audit.example.org/`) ||
		!strings.HasSuffix(record[FieldReferrer], `ts=1620905165700"`) {
		t.Errorf("referrer = %q", record[FieldReferrer])
	}
}

func TestLineParser_ParseFieldCount(t *testing.T) {
	p := New(nil)

	record := p.Parse(sampleLogEntry)
	if len(record) != len(DefaultFields()) {
		t.Errorf("record has %d fields, want %d", len(record), len(DefaultFields()))
	}
}

func TestLineParser_ParseEmpty(t *testing.T) {
	p := New(nil)

	record := p.Parse("")
	if len(record) != 0 {
		t.Errorf("expected empty record for empty line, got %d fields", len(record))
	}
}

func TestLineParser_ParseNoMatch(t *testing.T) {
	p := New(nil)

	tests := []struct {
		name string
		line string
	}{
		{"too few fields", "owner bucket [13/May/2021:11:26:06 +0000]"},
		{"unterminated quote", strings.Replace(sampleLogEntry, `HTTP/1.1"`, "HTTP/1.1", 1)},
		{"letters in status field", strings.Replace(sampleLogEntry, " 200 ", " 2OO ", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if record := p.Parse(tt.line); len(record) != 0 {
				t.Errorf("expected no match, got %d fields", len(record))
			}
		})
	}
}

func TestLineParser_ParseIdempotent(t *testing.T) {
	p := New(nil)

	first := p.Parse(sampleLogEntry)
	second := p.Parse(sampleLogEntry)
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated parses of the same line differ")
	}
}

func TestLineParser_PlaceholderFields(t *testing.T) {
	p := New(nil)

	record := p.Parse(sampleLogEntry)
	for _, name := range []string{FieldAWSErrorCode, FieldObjectSize, FieldVersion} {
		if got := record[name]; got != "-" {
			t.Errorf("field %s = %q, want placeholder", name, got)
		}
	}
}

func TestLineParser_FieldNames(t *testing.T) {
	p := New(nil)

	names := p.FieldNames()
	if len(names) != 25 {
		t.Fatalf("expected 25 field names, got %d", len(names))
	}
	if names[0] != FieldOwner {
		t.Errorf("first field = %s, want %s", names[0], FieldOwner)
	}
	if names[len(names)-1] != FieldTail {
		t.Errorf("last field = %s, want %s", names[len(names)-1], FieldTail)
	}
	if names[len(names)-2] != FieldTLS {
		t.Errorf("second to last field = %s, want %s", names[len(names)-2], FieldTLS)
	}
}

func TestNewWithFields(t *testing.T) {
	tests := []struct {
		name    string
		fields  []FieldSpec
		wantErr bool
	}{
		{
			name:   "custom table",
			fields: []FieldSpec{{"first", Simple}, {"second", Quoted}, {"third", Simple}, {"rest", RawTrailing}},
		},
		{
			name:    "empty table",
			fields:  nil,
			wantErr: true,
		},
		{
			name:    "unnamed field",
			fields:  []FieldSpec{{"", Simple}},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			fields:  []FieldSpec{{"broken", Kind(99)}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewWithFields(tt.fields, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewWithFields() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			record := p.Parse(`one "two words" three`)
			want := map[string]string{"first": "one", "second": `"two words"`, "third": "three", "rest": ""}
			for name, value := range want {
				if record[name] != value {
					t.Errorf("field %s = %q, want %q", name, record[name], value)
				}
			}
		})
	}
}
