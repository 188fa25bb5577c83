package mysql

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companyload/internal/domain"
	"companyload/internal/storage"
	"companyload/internal/storage/sqlstore"
)

func TestDialect(t *testing.T) {
	d := Dialect("companies")

	assert.True(t, strings.HasPrefix(d.InsertSQL, "INSERT INTO `companies` (`company_number`, `name`,"), d.InsertSQL)
	assert.Equal(t, 18, strings.Count(d.InsertSQL, "?"))
	assert.True(t, strings.HasSuffix(d.InsertSQL, "ON DUPLICATE KEY UPDATE `company_number` = `company_number`"))

	assert.Contains(t, d.CreateSQL, "CREATE TABLE IF NOT EXISTS `companies`")
	assert.Contains(t, d.CreateSQL, "`company_number` VARCHAR(32) NOT NULL PRIMARY KEY")
	assert.Contains(t, d.CreateSQL, "`sic_codes` JSON")
}

func TestArgs(t *testing.T) {
	due := time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC)
	a, err := args(domain.Company{CompanyNumber: "1", AccountsNextDueDate: &due, SICCodes: []string{"99999"}})
	require.NoError(t, err)

	assert.Equal(t, "2024-09-30", a[15])
	assert.Nil(t, a[10])
	assert.Equal(t, `["99999"]`, a[12])
}

func TestNew_RejectsBadDSN(t *testing.T) {
	_, err := New(context.Background(), storage.Config{DSN: "no-slash-here", Table: "companies"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql dsn")
}

func TestRegistration_PropagatesError(t *testing.T) {
	orig := newStore
	t.Cleanup(func() { newStore = orig })

	boom := errors.New("unreachable")
	newStore = func(context.Context, storage.Config) (*sqlstore.Store, error) { return nil, boom }

	st, err := storage.Open(context.Background(), storage.Config{Kind: "mysql", DSN: "u@/db"})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, st)
}
