package parser

import (
	"regexp"
	"strings"
	"testing"
)

func TestBuildExpr(t *testing.T) {
	expr, err := buildExpr([]FieldSpec{
		{"a", Simple},
		{"b", Quoted},
		{"c", Number},
		{"d", DateTime},
	})
	if err != nil {
		t.Fatalf("buildExpr: %v", err)
	}

	want := `^(?P<a>[^ ]*) (?P<b>(-|"[^"]*")) (?P<c>(-|[0-9]*)) (?P<d>\[(.*?)\])$`
	if expr != want {
		t.Errorf("expr = %q, want %q", expr, want)
	}
	if _, err := regexp.Compile(expr); err != nil {
		t.Errorf("built expression does not compile: %v", err)
	}
}

func TestBuildExpr_NoSpaceBeforeTrailing(t *testing.T) {
	expr, err := buildExpr([]FieldSpec{
		{"a", Simple},
		{"rest", RawTrailing},
	})
	if err != nil {
		t.Fatalf("buildExpr: %v", err)
	}
	if strings.Contains(expr, ") (?P<rest>") {
		t.Errorf("trailing field must not be preceded by a space separator: %q", expr)
	}
	if !strings.HasPrefix(expr, "^") || !strings.HasSuffix(expr, "$") {
		t.Errorf("expression must be anchored at both ends: %q", expr)
	}
}

func TestBuildExpr_Errors(t *testing.T) {
	tests := []struct {
		name   string
		fields []FieldSpec
	}{
		{name: "empty table", fields: nil},
		{name: "unnamed field", fields: []FieldSpec{{"", Simple}}},
		{name: "unknown kind", fields: []FieldSpec{{"a", Kind(99)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := buildExpr(tt.fields); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestDefaultFields(t *testing.T) {
	fields := DefaultFields()
	if len(fields) != 25 {
		t.Fatalf("expected 25 field specs, got %d", len(fields))
	}
	if fields[0].Name != FieldOwner {
		t.Errorf("first field = %q, want %q", fields[0].Name, FieldOwner)
	}
	if last := fields[len(fields)-1]; last.Name != FieldTail || last.Kind != RawTrailing {
		t.Errorf("last field = %+v, want open-ended %q", last, FieldTail)
	}

	// Callers may reorder their copy without disturbing the shared table.
	fields[0].Name = "mutated"
	if DefaultFields()[0].Name != FieldOwner {
		t.Error("DefaultFields returned a view of the internal table")
	}
}

func TestDefaultExprCompiles(t *testing.T) {
	expr, err := buildExpr(DefaultFields())
	if err != nil {
		t.Fatalf("buildExpr: %v", err)
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	names := 0
	for _, name := range re.SubexpNames() {
		if name != "" {
			names++
		}
	}
	if names != 25 {
		t.Errorf("expected 25 named groups, got %d", names)
	}
}
