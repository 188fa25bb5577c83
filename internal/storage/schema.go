package storage

import (
	"strings"

	"companyload/internal/domain"
)

// ColumnKind is the logical type of a companies column; each backend maps
// it to its own SQL type.
type ColumnKind int

const (
	KindKey ColumnKind = iota
	KindText
	KindDate
	KindInt
	KindSIC
)

var columnKinds = map[string]ColumnKind{
	"company_number":             KindKey,
	"incorporation_date":         KindDate,
	"dissolution_date":           KindDate,
	"sic_codes":                  KindSIC,
	"accounts_ref_day":           KindInt,
	"accounts_ref_month":         KindInt,
	"accounts_next_due_date":     KindDate,
	"accounts_last_made_up_date": KindDate,
}

// KindOf returns the logical type of col; unknown columns are text.
func KindOf(col string) ColumnKind {
	if k, ok := columnKinds[col]; ok {
		return k
	}
	return KindText
}

// ColumnDefs renders the column list of the companies table, one definition
// per line, using typeOf for SQL types and quote for identifiers. The key
// column is declared NOT NULL PRIMARY KEY.
func ColumnDefs(typeOf func(ColumnKind) string, quote func(string) string) string {
	lines := make([]string, 0, len(domain.Columns))
	for _, col := range domain.Columns {
		k := KindOf(col)
		def := "  " + quote(col) + " " + typeOf(k)
		if k == KindKey {
			def += " NOT NULL PRIMARY KEY"
		}
		lines = append(lines, def)
	}
	return strings.Join(lines, ",\n")
}

// ColumnList returns the quoted insert column list.
func ColumnList(quote func(string) string) string {
	cols := make([]string, len(domain.Columns))
	for i, c := range domain.Columns {
		cols[i] = quote(c)
	}
	return strings.Join(cols, ", ")
}
