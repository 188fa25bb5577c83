package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ValidateTable accepts plain or schema-qualified SQL identifiers made of
// letters, digits and underscores. Table names are interpolated into SQL, so
// anything else is rejected.
func ValidateTable(name string) error {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return fmt.Errorf("storage: invalid table name %q", name)
	}
	for _, p := range parts {
		if !validIdent(p) {
			return fmt.Errorf("storage: invalid table name %q", name)
		}
	}
	return nil
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// QuoteTable quotes each part of a (possibly schema-qualified) table name
// with the given delimiters, e.g. QuoteTable("dbo.companies", "[", "]").
func QuoteTable(name, left, right string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = left + p + right
	}
	return strings.Join(parts, ".")
}

// SICJSON encodes SIC codes as a JSON array for backends without array
// columns. No codes encode as SQL NULL.
func SICJSON(codes []string) (any, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(codes)
	if err != nil {
		return nil, fmt.Errorf("encode sic_codes: %w", err)
	}
	return string(b), nil
}

// DatesAsText rewrites *time.Time arguments in place as YYYY-MM-DD strings
// (nil stays NULL), for drivers that would otherwise store a full timestamp.
func DatesAsText(args []any) []any {
	for i, a := range args {
		t, ok := a.(*time.Time)
		if !ok {
			continue
		}
		if t == nil {
			args[i] = nil
			continue
		}
		args[i] = t.Format(time.DateOnly)
	}
	return args
}

// Placeholders returns n copies of p joined by ", ".
func Placeholders(p string, n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(p+", ", n-1) + p
}
