package mssql

import (
	"context"

	"companyload/internal/storage"
	"companyload/internal/storage/sqlstore"
)

// newStore is a test hook that points to New by default.
var newStore = New

var _ storage.Store = (*sqlstore.Store)(nil)

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		s, err := newStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}
