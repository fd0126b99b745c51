package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseDataInline(t *testing.T) {
	data, err := parseData(`{"x": 2}`)
	if err != nil {
		t.Fatal(err)
	}
	obj, ok := data.(map[string]any)
	if !ok {
		t.Fatalf("expected object, got %T", data)
	}
	if obj["x"] != json.Number("2") {
		t.Fatalf("expected integer to stay a json.Number, got %#v", obj["x"])
	}
}

func TestParseDataRejectsGarbage(t *testing.T) {
	if _, err := parseData("{not json"); err == nil {
		t.Fatal("expected an error for invalid JSON")
	}
}

func TestSetReplValue(t *testing.T) {
	var errOut bytes.Buffer
	data := map[string]any{}

	setReplValue(&errOut, data, "x 42")
	if errOut.Len() != 0 {
		t.Fatalf("unexpected error output: %s", errOut.String())
	}
	if data["x"] != json.Number("42") {
		t.Fatalf("expected x=42, got %#v", data["x"])
	}

	setReplValue(&errOut, data, "y {bad")
	if !strings.Contains(errOut.String(), "error") {
		t.Fatal("expected an error for invalid JSON value")
	}
	if _, ok := data["y"]; ok {
		t.Fatal("invalid value must not be stored")
	}

	errOut.Reset()
	setReplValue(&errOut, data, "loner")
	if !strings.Contains(errOut.String(), "usage") {
		t.Fatal("expected usage message for a missing value")
	}
}

func TestPrintReplData(t *testing.T) {
	var out bytes.Buffer
	printReplData(&out, map[string]any{})
	if !strings.Contains(out.String(), "(empty)") {
		t.Fatalf("expected empty marker, got %q", out.String())
	}

	out.Reset()
	printReplData(&out, map[string]any{"b": json.Number("2"), "a": json.Number("1")})
	text := out.String()
	if !strings.Contains(text, "a: 1") || !strings.Contains(text, "b: 2") {
		t.Fatalf("missing entries in %q", text)
	}
	if strings.Index(text, "a: 1") > strings.Index(text, "b: 2") {
		t.Fatalf("entries must be sorted by key, got %q", text)
	}
}
