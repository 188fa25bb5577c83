package transformer

import (
	"strings"

	"companyload/internal/domain"
)

// Require rejects any record missing a value for one of Fields.
type Require struct {
	Fields []string
}

// NaturalKey is the admission rule for the companies table.
var NaturalKey = Require{Fields: []string{domain.FieldCompanyNumber}}

// Admissible reports whether every required field is present and non-blank.
func (r Require) Admissible(rec domain.RawRecord) bool {
	for _, f := range r.Fields {
		v, ok := rec[f]
		if !ok || strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// Missing returns the required fields that are absent or blank in rec.
func (r Require) Missing(rec domain.RawRecord) []string {
	var out []string
	for _, f := range r.Fields {
		if strings.TrimSpace(rec[f]) == "" {
			out = append(out, f)
		}
	}
	return out
}

// IsAdmissible applies the natural-key rule: a record is admissible iff its
// CompanyNumber is present and non-empty.
func IsAdmissible(rec domain.RawRecord) bool { return NaturalKey.Admissible(rec) }
