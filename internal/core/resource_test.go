package core

import "testing"

func TestResourceType_Builtins(t *testing.T) {
	for _, rt := range BuiltinResourceTypes() {
		if !rt.Valid() {
			t.Fatalf("expected builtin %s to be valid", rt)
		}
		if rt.IsCustom() {
			t.Fatalf("expected builtin %s not to be custom", rt)
		}
	}
}

func TestResourceType_Custom(t *testing.T) {
	rt := Custom("grpc_stream")
	if !rt.Valid() {
		t.Fatalf("expected custom type to be valid")
	}
	if !rt.IsCustom() {
		t.Fatalf("expected custom type to report custom")
	}
	if rt.CustomName() != "grpc_stream" {
		t.Fatalf("expected custom name grpc_stream, got %q", rt.CustomName())
	}

	if Custom("").Valid() {
		t.Fatalf("expected empty custom name to be invalid")
	}
}

func TestParseResourceType(t *testing.T) {
	rt, err := ParseResourceType("THREAD")
	if err != nil {
		t.Fatalf("unexpected error parsing thread: %v", err)
	}
	if rt != ResourceThread {
		t.Fatalf("expected thread, got %s", rt)
	}

	rt, err = ParseResourceType("custom:pipe")
	if err != nil {
		t.Fatalf("unexpected error parsing custom type: %v", err)
	}
	if rt.CustomName() != "pipe" {
		t.Fatalf("expected custom name pipe, got %q", rt.CustomName())
	}

	_, err = ParseResourceType("floppy")
	if err == nil {
		t.Fatalf("expected error parsing unknown type")
	}
	if !IsCode(err, CodeInvalidResourceType) {
		t.Fatalf("expected INVALID_RESOURCE_TYPE code, got %v", err)
	}
}
