package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("90s")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if d.Duration() != 90*time.Second {
		t.Errorf("Duration() = %s, want 90s", d.Duration())
	}

	if err := d.UnmarshalText([]byte("-5s")); err == nil {
		t.Error("UnmarshalText() accepted negative duration")
	}

	if err := d.UnmarshalText([]byte("not-a-duration")); err == nil {
		t.Error("UnmarshalText() accepted garbage")
	}
}

func TestDuration_Marshal(t *testing.T) {
	d := Duration(90 * time.Second)

	text, err := d.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error = %v", err)
	}
	if string(text) != "1m30s" {
		t.Errorf("MarshalText() = %q, want 1m30s", text)
	}

	jsonBytes, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if string(jsonBytes) != `"1m30s"` {
		t.Errorf("json.Marshal() = %s, want \"1m30s\"", jsonBytes)
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("sk-verysecret")

	if s.String() != "[REDACTED]" {
		t.Errorf("String() = %q, want [REDACTED]", s.String())
	}
	if got := fmt.Sprintf("%v", s); got != "[REDACTED]" {
		t.Errorf("%%v = %q, want [REDACTED]", got)
	}
	if got := fmt.Sprintf("%#v", s); got != "Secret([REDACTED])" {
		t.Errorf("%%#v = %q, want Secret([REDACTED])", got)
	}
	if s.Value() != "sk-verysecret" {
		t.Errorf("Value() = %q, want raw secret", s.Value())
	}

	jsonBytes, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if string(jsonBytes) != `"[REDACTED]"` {
		t.Errorf("json.Marshal() = %s, want redacted", jsonBytes)
	}
}

func TestSecret_Empty(t *testing.T) {
	var s Secret

	if s.IsSet() {
		t.Error("IsSet() = true for empty secret")
	}
	if s.String() != "" {
		t.Errorf("String() = %q, want empty", s.String())
	}

	jsonBytes, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if string(jsonBytes) != `""` {
		t.Errorf("json.Marshal() = %s, want empty string", jsonBytes)
	}
}

func TestSecret_Unmarshal(t *testing.T) {
	var s Secret
	if err := json.Unmarshal([]byte(`"sk-raw"`), &s); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if s.Value() != "sk-raw" {
		t.Errorf("Value() = %q, want sk-raw", s.Value())
	}
}
