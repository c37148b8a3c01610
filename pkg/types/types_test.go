package types

import "testing"

func TestRecord_Merge(t *testing.T) {
	record := Record{"verb": "REST.PUT.OBJECT", "referrer": `"https://example.org/?op=op_create"`}
	record.Merge(Record{"op": "op_create", "verb": "overridden"})

	if record["op"] != "op_create" {
		t.Errorf("merged key missing: %v", record)
	}
	// The merged record wins on collision.
	if record["verb"] != "overridden" {
		t.Errorf("verb = %q, want %q", record["verb"], "overridden")
	}
}

func TestRecord_Clone(t *testing.T) {
	record := Record{"bucket": "bucket-london"}
	clone := record.Clone()

	clone["bucket"] = "bucket-paris"
	if record["bucket"] != "bucket-london" {
		t.Error("mutating the clone changed the original")
	}
}
