// Package storage defines the persistence contract of the loader and a small
// factory through which concrete backends register themselves.
//
// Backends live in subpackages (postgres, mssql, mysql, sqlite) and call
// Register from init. Import storage/all to enable every built-in backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"companyload/internal/domain"
)

// Store persists companies one at a time over a single exclusive session.
type Store interface {
	// InsertIfAbsent writes c unless a row with the same company number
	// already exists. inserted is false (with a nil error) for duplicates.
	InsertIfAbsent(ctx context.Context, c domain.Company) (inserted bool, err error)
	// EnsureTable creates the destination table when it does not exist.
	EnsureTable(ctx context.Context) error
	// Close releases the session.
	Close(ctx context.Context) error
}

// Config selects and configures a backend.
type Config struct {
	Kind  string
	DSN   string
	Table string
}

// Factory opens a Store for a validated Config.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	// ErrUnknownKind is returned by Open for unregistered backends.
	ErrUnknownKind = errors.New("storage: unknown kind")
	// ErrClosed is returned by stores used after Close.
	ErrClosed = errors.New("storage: store closed")
)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. It panics when kind is
// empty, f is nil or kind is registered twice.
func Register(kind string, f Factory) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" || f == nil {
		panic("storage: Register with empty kind or nil factory")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[kind]; dup {
		panic("storage: Register called twice for " + kind)
	}
	factories[kind] = f
}

// Kinds lists the registered backend names in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open validates cfg and opens the backend registered for cfg.Kind.
func Open(ctx context.Context, cfg Config) (Store, error) {
	cfg.Kind = strings.ToLower(strings.TrimSpace(cfg.Kind))
	if cfg.Table == "" {
		cfg.Table = "companies"
	}
	if err := ValidateTable(cfg.Table); err != nil {
		return nil, err
	}

	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %s)", ErrUnknownKind, cfg.Kind, strings.Join(Kinds(), ", "))
	}
	return f(ctx, cfg)
}
