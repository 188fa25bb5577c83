// Package mysql implements storage.Store for MySQL and MariaDB.
package mysql

import (
	"context"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"companyload/internal/domain"
	"companyload/internal/storage"
	"companyload/internal/storage/sqlstore"
)

// New validates the DSN, connects and returns a single-connection store.
func New(ctx context.Context, cfg storage.Config) (*sqlstore.Store, error) {
	if _, err := mysql.ParseDSN(cfg.DSN); err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	db, err := sqlstore.Open(ctx, "mysql", cfg.DSN)
	if err != nil {
		return nil, err
	}
	return sqlstore.New(db, Dialect(cfg.Table)), nil
}

// Dialect returns the MySQL statements for table. The self-assignment in
// ON DUPLICATE KEY UPDATE leaves an existing row untouched and reports zero
// affected rows.
func Dialect(table string) sqlstore.Dialect {
	qt := storage.QuoteTable(table, "`", "`")
	key := quoteIdent(domain.KeyColumn)

	return sqlstore.Dialect{
		Name: "mysql",
		InsertSQL: fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s = %s",
			qt, storage.ColumnList(quoteIdent), storage.Placeholders("?", len(domain.Columns)), key, key,
		),
		CreateSQL: fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (\n%s\n) DEFAULT CHARSET=utf8mb4",
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
	switch k {
	case storage.KindKey:
		return "VARCHAR(32)"
	case storage.KindDate:
		return "DATE"
	case storage.KindInt:
		return "INT"
	case storage.KindSIC:
		return "JSON"
	default:
		return "VARCHAR(400)"
	}
}

func quoteIdent(s string) string { return "`" + s + "`" }
