package redaction

import (
	"strings"
	"testing"
)

func TestRedact_JIDs(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"message from 31612345678@s.whatsapp.net", "message from [REDACTED]"},
		{"group 123456789-987654@g.us created", "group [REDACTED] created"},
		{"status@broadcast stays", "status@broadcast stays"},
		{"no identifiers here", "no identifiers here"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Redact(tt.in); got != tt.want {
			t.Errorf("Redact(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedact_PhoneNumbers(t *testing.T) {
	got := Redact("call me at +31 6 1234 5678 please")
	if strings.Contains(got, "1234") {
		t.Errorf("phone number survived redaction: %q", got)
	}
	if !strings.Contains(got, "[REDACTED]") {
		t.Errorf("expected a redaction marker, got %q", got)
	}
}

func TestAddPattern(t *testing.T) {
	AddPattern(`secret-\w+`)
	if got := Redact("token secret-abc123 leaked"); got != "token [REDACTED] leaked" {
		t.Errorf("custom pattern not applied: %q", got)
	}

	// Invalid patterns are ignored, not fatal.
	AddPattern(`([`)
	if got := Redact("still works"); got != "still works" {
		t.Errorf("Redact after invalid pattern: %q", got)
	}
}

func TestRedactFields(t *testing.T) {
	fields := map[string]any{
		"jid":   "31612345678@s.whatsapp.net",
		"count": 3,
		"text":  "plain",
	}
	out := RedactFields(fields)
	if out["jid"] != "[REDACTED]" {
		t.Errorf("jid = %v", out["jid"])
	}
	if out["count"] != 3 {
		t.Errorf("non-string value changed: %v", out["count"])
	}
	if out["text"] != "plain" {
		t.Errorf("text = %v", out["text"])
	}
	if fields["jid"] != "31612345678@s.whatsapp.net" {
		t.Error("input map mutated")
	}
}

func TestRedactFields_EmptyPassthrough(t *testing.T) {
	if out := RedactFields(nil); out != nil {
		t.Errorf("nil map changed: %v", out)
	}
}
