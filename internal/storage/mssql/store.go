// Package mssql implements storage.Store for Microsoft SQL Server.
//
// SQL Server has no ON CONFLICT clause; the insert is guarded by a NOT EXISTS
// probe under UPDLOCK, HOLDLOCK so the check and the write are atomic.
package mssql

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" driver
	"github.com/microsoft/go-mssqldb/msdsn"

	"companyload/internal/domain"
	"companyload/internal/storage"
	"companyload/internal/storage/sqlstore"
)

// New validates the DSN, connects and returns a single-connection store.
func New(ctx context.Context, cfg storage.Config) (*sqlstore.Store, error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sqlstore.Open(ctx, "sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	return sqlstore.New(db, Dialect(cfg.Table)), nil
}

// Dialect returns the SQL Server statements for table.
func Dialect(table string) sqlstore.Dialect {
	qt := storage.QuoteTable(table, "[", "]")
	key := quoteIdent(domain.KeyColumn)

	params := make([]string, len(domain.Columns))
	for i := range params {
		params[i] = fmt.Sprintf("@p%d", i+1)
	}

	insert := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s WHERE NOT EXISTS (SELECT 1 FROM %s WITH (UPDLOCK, HOLDLOCK) WHERE %s = @p1)",
		qt, storage.ColumnList(quoteIdent), strings.Join(params, ", "), qt, key,
	)
	create := fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL\nCREATE TABLE %s (\n%s\n)",
		table, qt, storage.ColumnDefs(columnType, quoteIdent),
	)

	return sqlstore.Dialect{
		Name:      "mssql",
		InsertSQL: insert,
		CreateSQL: create,
		Args:      args,
	}
}

func args(c domain.Company) ([]any, error) {
	sic, err := storage.SICJSON(c.SICCodes)
	if err != nil {
		return nil, err
	}
	return c.Values(sic), nil
}

func columnType(k storage.ColumnKind) string {
	switch k {
	case storage.KindKey:
		return "NVARCHAR(32)"
	case storage.KindDate:
		return "DATE"
	case storage.KindInt:
		return "INT"
	case storage.KindSIC:
		return "NVARCHAR(MAX)"
	default:
		return "NVARCHAR(400)"
	}
}

func quoteIdent(s string) string { return "[" + s + "]" }
