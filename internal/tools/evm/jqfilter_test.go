package evm

import "testing"

func TestExtractFieldIdentity(t *testing.T) {
	value := map[string]any{"a": 1.0}
	got, err := extractField(value, ".")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok || m["a"] != 1.0 {
		t.Fatalf("expected identity passthrough, got %v", got)
	}
}

func TestExtractFieldNestedPath(t *testing.T) {
	value := map[string]any{
		"transaction": map[string]any{"to": "0xabc", "data": "0xdead"},
	}
	got, err := extractField(value, ".transaction.to")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got != "0xabc" {
		t.Fatalf("expected 0xabc, got %v", got)
	}
}

func TestExtractFieldArrayIndex(t *testing.T) {
	value := map[string]any{"items": []any{"a", "b", "c"}}
	got, err := extractField(value, ".items.1")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got != "b" {
		t.Fatalf("expected b, got %v", got)
	}
}

func TestExtractFieldMissing(t *testing.T) {
	value := map[string]any{"a": 1.0}
	if _, err := extractField(value, ".missing"); err == nil {
		t.Fatalf("expected error for missing field")
	}
}

func TestApplyJQFilterObjectConstruction(t *testing.T) {
	value := map[string]any{
		"transaction": map[string]any{"to": "0xabc", "data": "0xdead"},
	}
	got, err := applyJQFilter(value, "{to: .transaction.to, data: .transaction.data}")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("expected object result, got %v", got)
	}
	if m["to"] != "0xabc" || m["data"] != "0xdead" {
		t.Fatalf("unexpected result: %v", m)
	}
}

func TestSplitObjectFieldsRespectsNesting(t *testing.T) {
	fields := splitObjectFields("a: .x, b: [.y, .z], c: .w")
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d: %v", len(fields), fields)
	}
	if fields[1] != "b: [.y, .z]" {
		t.Fatalf("expected nested field untouched, got %q", fields[1])
	}
}
