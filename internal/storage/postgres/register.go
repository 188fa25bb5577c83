package postgres

import (
	"context"

	"companyload/internal/storage"
)

// newStore is a test hook that points to New by default.
var newStore = New

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		s, err := newStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}
