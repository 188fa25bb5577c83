// Package sqlite implements storage.Store on an embedded SQLite database
// (modernc.org/sqlite, no cgo). Dates are stored as YYYY-MM-DD text and SIC
// codes as a JSON array.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"companyload/internal/domain"
	"companyload/internal/storage"
	"companyload/internal/storage/sqlstore"
)

// New opens the database at cfg.DSN (a file path or file: URI).
func New(ctx context.Context, cfg storage.Config) (*sqlstore.Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("sqlite: DSN must not be empty")
	}
	db, err := sqlstore.Open(ctx, "sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// Ignore failures; older builds may not know the pragma.
	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout = 5000")
	return sqlstore.New(db, Dialect(cfg.Table)), nil
}

// Dialect returns the SQLite statements for table.
func Dialect(table string) sqlstore.Dialect {
	qt := storage.QuoteTable(table, `"`, `"`)
	return sqlstore.Dialect{
		Name: "sqlite",
		InsertSQL: fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO NOTHING",
			qt, storage.ColumnList(quoteIdent), storage.Placeholders("?", len(domain.Columns)), quoteIdent(domain.KeyColumn),
		),
		CreateSQL: fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (\n%s\n)",
			qt, storage.ColumnDefs(columnType, quoteIdent),
		),
		Args: args,
	}
}

func args(c domain.Company) ([]any, error) {
	sic, err := storage.SICJSON(c.SICCodes)
	if err != nil {
		return nil, err
	}
	return storage.DatesAsText(c.Values(sic)), nil
}

func columnType(k storage.ColumnKind) string {
	if k == storage.KindInt {
		return "INTEGER"
	}
	return "TEXT"
}

func quoteIdent(s string) string { return `"` + s + `"` }
