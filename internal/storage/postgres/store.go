// Package postgres implements storage.Store on a single pgx connection.
//
// Inserts use ON CONFLICT (company_number) DO NOTHING, so replays never
// overwrite or duplicate rows. SIC codes are stored as TEXT[].
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"companyload/internal/domain"
	"companyload/internal/storage"
)

// pgConnLike is the subset of *pgx.Conn the store uses. Tests substitute a
// fake to stay off the network.
type pgConnLike interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	IsClosed() bool
	Close(ctx context.Context) error
}

// connect is a test hook; it dials a real connection by default.
var connect = func(ctx context.Context, dsn string) (pgConnLike, error) {
	c, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Store is a Postgres-backed storage.Store. It is not safe for concurrent use.
type Store struct {
	dsn       string
	table     string
	conn      pgConnLike
	insertSQL string
	closed    bool
}

var _ storage.Store = (*Store)(nil)

// New connects to cfg.DSN and prepares the insert statement text.
func New(ctx context.Context, cfg storage.Config) (*Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("postgres: DSN must not be empty")
	}
	conn, err := connect(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return newStoreFromConn(conn, cfg), nil
}

func newStoreFromConn(conn pgConnLike, cfg storage.Config) *Store {
	table := quoteTable(cfg.Table)
	return &Store{
		dsn:   cfg.DSN,
		table: table,
		conn:  conn,
		insertSQL: fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
			table,
			storage.ColumnList(quoteIdent),
			placeholders(len(domain.Columns)),
			quoteIdent(domain.KeyColumn),
		),
	}
}

// InsertIfAbsent inserts c and reports whether a row was written. Zero rows
// affected means the company number already existed.
func (s *Store) InsertIfAbsent(ctx context.Context, c domain.Company) (bool, error) {
	if err := s.session(ctx); err != nil {
		return false, err
	}
	tag, err := s.conn.Exec(ctx, s.insertSQL, args(c)...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return false, fmt.Errorf("postgres: insert %s: %s (SQLSTATE %s): %w", c.CompanyNumber, pgErr.Message, pgErr.Code, err)
		}
		return false, fmt.Errorf("postgres: insert %s: %w", c.CompanyNumber, err)
	}
	return tag.RowsAffected() == 1, nil
}

// EnsureTable creates the destination table if it is missing. Existing
// tables are left untouched.
func (s *Store) EnsureTable(ctx context.Context) error {
	if err := s.session(ctx); err != nil {
		return err
	}
	if _, err := s.conn.Exec(ctx, createTableSQL(s.table)); err != nil {
		return fmt.Errorf("postgres: create table %s: %w", s.table, err)
	}
	return nil
}

// Close closes the connection. Subsequent calls are no-ops.
func (s *Store) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn == nil {
		return nil
	}
	return s.conn.Close(ctx)
}

// session makes sure a live connection exists, reconnecting once from the
// same DSN when the server dropped it.
func (s *Store) session(ctx context.Context) error {
	if s.closed {
		return storage.ErrClosed
	}
	if s.conn != nil && !s.conn.IsClosed() {
		return nil
	}
	conn, err := connect(ctx, s.dsn)
	if err != nil {
		return fmt.Errorf("postgres: reconnect: %w", err)
	}
	s.conn = conn
	return nil
}

func createTableSQL(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", table, storage.ColumnDefs(columnType, quoteIdent))
}

func columnType(k storage.ColumnKind) string {
	switch k {
	case storage.KindDate:
		return "DATE"
	case storage.KindInt:
		return "INTEGER"
	case storage.KindSIC:
		return "TEXT[]"
	default:
		return "TEXT"
	}
}

func args(c domain.Company) []any {
	var sic any
	if len(c.SICCodes) > 0 {
		sic = c.SICCodes
	}
	vals := c.Values(sic)
	for i, v := range vals {
		if t, ok := v.(*time.Time); ok {
			vals[i] = date(t)
		}
	}
	return vals
}

// date converts an optional calendar date to a pgtype.Date (NULL when nil).
func date(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), Valid: true}
}

func quoteIdent(s string) string { return pgx.Identifier{s}.Sanitize() }

func quoteTable(name string) string { return pgx.Identifier(strings.Split(name, ".")).Sanitize() }

func placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(ph, ", ")
}
