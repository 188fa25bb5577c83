// Package sqlstore implements storage.Store over database/sql for backends
// that only differ in SQL dialect (mssql, mysql, sqlite).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"companyload/internal/domain"
	"companyload/internal/storage"
)

// sqlDBCore is the subset of *sql.DB the store uses.
type sqlDBCore interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Close() error
}

// Dialect carries the backend-specific SQL and argument encoding.
type Dialect struct {
	// Name prefixes error messages, e.g. "mssql".
	Name string
	// InsertSQL must insert one company and affect zero rows when the
	// company number already exists.
	InsertSQL string
	// CreateSQL creates the table when absent.
	CreateSQL string
	// Args encodes a company into InsertSQL arguments.
	Args func(domain.Company) ([]any, error)
}

// Store is a storage.Store over a single database/sql connection.
type Store struct {
	db     sqlDBCore
	d      Dialect
	closed bool
}

var _ storage.Store = (*Store)(nil)

// New wraps db. db is usually the *sql.DB returned by Open.
func New(db sqlDBCore, d Dialect) *Store {
	return &Store{db: db, d: d}
}

// Open opens driver/dsn, pins the pool to a single connection and pings it.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driver, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", driver, err)
	}
	return db, nil
}

// InsertIfAbsent inserts c; one affected row means inserted, zero means the
// key already existed.
func (s *Store) InsertIfAbsent(ctx context.Context, c domain.Company) (bool, error) {
	if s.closed {
		return false, storage.ErrClosed
	}
	args, err := s.d.Args(c)
	if err != nil {
		return false, fmt.Errorf("%s: encode %s: %w", s.d.Name, c.CompanyNumber, err)
	}
	res, err := s.db.ExecContext(ctx, s.d.InsertSQL, args...)
	if err != nil {
		return false, fmt.Errorf("%s: insert %s: %w", s.d.Name, c.CompanyNumber, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: rows affected %s: %w", s.d.Name, c.CompanyNumber, err)
	}
	return n == 1, nil
}

// EnsureTable runs the dialect's create statement.
func (s *Store) EnsureTable(ctx context.Context) error {
	if s.closed {
		return storage.ErrClosed
	}
	if s.d.CreateSQL == "" {
		return errors.New(s.d.Name + ": no create statement")
	}
	if _, err := s.db.ExecContext(ctx, s.d.CreateSQL); err != nil {
		return fmt.Errorf("%s: create table: %w", s.d.Name, err)
	}
	return nil
}

// Close closes the pool. Subsequent calls are no-ops.
func (s *Store) Close(context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
