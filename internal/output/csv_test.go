package output

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/sravanigadey/s3audit/pkg/types"
)

var testFieldOrder = []string{"owner", "bucket", "verb", "http"}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rows
}

func TestCSVOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	o, err := NewCSVOutput(path, testFieldOrder, nil)
	if err != nil {
		t.Fatalf("NewCSVOutput: %v", err)
	}

	if err := o.Write(context.Background(), testRecords()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := o.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}

	// Log fields in parser order, then referrer parameters sorted by name.
	wantHeader := []string{"owner", "bucket", "verb", "http", "op", "pr"}
	header := rows[0]
	if len(header) != len(wantHeader) {
		t.Fatalf("header = %v, want %v", header, wantHeader)
	}
	for i, col := range wantHeader {
		if header[i] != col {
			t.Errorf("column %d = %q, want %q", i, header[i], col)
		}
	}

	if rows[1][1] != "bucket-london" || rows[2][1] != "bucket-paris" {
		t.Error("rows written out of order")
	}
	if rows[1][5] != "alice" || rows[2][5] != "bob" {
		t.Errorf("referrer param column wrong: %v", rows[1:])
	}
}

func TestCSVOutput_MissingCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	o, err := NewCSVOutput(path, testFieldOrder, nil)
	if err != nil {
		t.Fatalf("NewCSVOutput: %v", err)
	}

	records := []types.Record{
		{"owner": "a", "bucket": "b", "op": "op_create"},
		{"owner": "c", "bucket": "d", "verb": "REST.GET.OBJECT"},
	}
	if err := o.Write(context.Background(), records); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := o.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rows := readCSV(t, path)
	// Header: owner bucket verb http op. First row has no verb, http; both
	// get the placeholder. Second row has no op, same story.
	if rows[1][2] != types.Placeholder || rows[1][3] != types.Placeholder {
		t.Errorf("missing cells not filled with placeholder: %v", rows[1])
	}
	if rows[2][4] != types.Placeholder {
		t.Errorf("missing param cell not filled with placeholder: %v", rows[2])
	}
}

func TestCSVOutput_LateParamsDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	o, err := NewCSVOutput(path, testFieldOrder, nil)
	if err != nil {
		t.Fatalf("NewCSVOutput: %v", err)
	}
	ctx := context.Background()

	if err := o.Write(ctx, []types.Record{{"owner": "a", "op": "op_create"}}); err != nil {
		t.Fatal(err)
	}
	// "pr" was not in the first batch so it has no column.
	if err := o.Write(ctx, []types.Record{{"owner": "b", "pr": "alice"}}); err != nil {
		t.Fatal(err)
	}
	if err := o.Close(); err != nil {
		t.Fatal(err)
	}

	rows := readCSV(t, path)
	for _, col := range rows[0] {
		if col == "pr" {
			t.Error("column added after the header was written")
		}
	}
}

func TestCSVOutput_EmptyPath(t *testing.T) {
	if _, err := NewCSVOutput("", testFieldOrder, nil); err == nil {
		t.Error("expected error for empty path")
	}
}
