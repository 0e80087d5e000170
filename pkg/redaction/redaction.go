// Package redaction masks chat identifiers before they reach the logs.
// A WhatsApp bot inevitably handles phone numbers and device JIDs; those
// never belong in log output.
package redaction

import (
	"regexp"
	"sync"
)

const replacement = "[REDACTED]"

var (
	// JIDs like 31612345678@s.whatsapp.net or 1234-5678@g.us.
	jidPattern = regexp.MustCompile(`\b[\d-]{5,20}@(?:s\.whatsapp\.net|g\.us|broadcast|lid)\b`)

	// International phone numbers with at least 7 digits.
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().-]{6,18}\d`)

	mu             sync.RWMutex
	customPatterns []*regexp.Regexp
)

// AddPattern registers an extra regex to redact. Invalid patterns are
// ignored.
func AddPattern(pattern string) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return
	}
	mu.Lock()
	customPatterns = append(customPatterns, re)
	mu.Unlock()
}

// Redact masks every known identifier pattern in s.
func Redact(s string) string {
	if s == "" {
		return s
	}
	s = jidPattern.ReplaceAllString(s, replacement)
	s = phonePattern.ReplaceAllString(s, replacement)

	mu.RLock()
	defer mu.RUnlock()
	for _, re := range customPatterns {
		s = re.ReplaceAllString(s, replacement)
	}
	return s
}

// RedactFields redacts string values of a log field map. Non-string
// values pass through untouched.
func RedactFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return fields
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if s, ok := v.(string); ok {
			out[k] = Redact(s)
		} else {
			out[k] = v
		}
	}
	return out
}
