package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// marshalWarnings converts validator warnings to JSON TEXT for storage.
// A nil slice is stored as "[]".
func marshalWarnings(warnings []string) (string, error) {
	if warnings == nil {
		warnings = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// SQL fragments contain < and >, keep them readable
	enc.SetEscapeHTML(false)
	if err := enc.Encode(warnings); err != nil {
		return "", fmt.Errorf("marshal warnings: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalWarnings parses JSON TEXT produced by marshalWarnings.
func unmarshalWarnings(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var warnings []string
	if err := json.Unmarshal([]byte(data), &warnings); err != nil {
		return nil, fmt.Errorf("unmarshal warnings: %w", err)
	}
	return warnings, nil
}

// formatTime stores times as UTC RFC 3339 text.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
