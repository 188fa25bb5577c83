package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companyload/internal/domain"
	"companyload/internal/storage"
)

func openTemp(t *testing.T) (storage.Store, string) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "companies.db")
	st, err := storage.Open(context.Background(), storage.Config{Kind: "sqlite", DSN: dsn, Table: "companies"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	require.NoError(t, st.EnsureTable(context.Background()))
	return st, dsn
}

func strp(s string) *string { return &s }

func TestStore_InsertIfAbsentRoundTrip(t *testing.T) {
	st, dsn := openTemp(t)
	ctx := context.Background()

	inc := time.Date(2010, 6, 1, 0, 0, 0, 0, time.UTC)
	day, month := 31, 12
	c := domain.Company{
		CompanyNumber:     "SC123456",
		Name:              strp("ACME LTD"),
		PostTown:          strp("EDINBURGH"),
		IncorporationDate: &inc,
		SICCodes:          []string{"62012", "70100"},
		AccountsRefDay:    &day,
		AccountsRefMonth:  &month,
	}

	ok, err := st.InsertIfAbsent(ctx, c)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second write with different content must neither overwrite nor duplicate.
	c2 := c
	c2.Name = strp("OTHER NAME")
	ok, err = st.InsertIfAbsent(ctx, c2)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.Close(ctx))

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	var (
		count            int
		name, inc2, sic  string
		dissolution      sql.NullString
		refDay, refMonth int
	)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM companies`).Scan(&count))
	assert.Equal(t, 1, count)

	require.NoError(t, db.QueryRow(
		`SELECT name, incorporation_date, dissolution_date, sic_codes, accounts_ref_day, accounts_ref_month FROM companies WHERE company_number = ?`,
		"SC123456",
	).Scan(&name, &inc2, &dissolution, &sic, &refDay, &refMonth))
	assert.Equal(t, "ACME LTD", name)
	assert.Equal(t, "2010-06-01", inc2)
	assert.False(t, dissolution.Valid)
	assert.Equal(t, `["62012","70100"]`, sic)
	assert.Equal(t, 31, refDay)
	assert.Equal(t, 12, refMonth)
}

func TestStore_NullSICCodes(t *testing.T) {
	st, dsn := openTemp(t)
	ctx := context.Background()

	ok, err := st.InsertIfAbsent(ctx, domain.Company{CompanyNumber: "1"})
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, st.Close(ctx))

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	var sic sql.NullString
	require.NoError(t, db.QueryRow(`SELECT sic_codes FROM companies`).Scan(&sic))
	assert.False(t, sic.Valid)
}

func TestStore_EnsureTableIsIdempotent(t *testing.T) {
	st, _ := openTemp(t)
	require.NoError(t, st.EnsureTable(context.Background()))
}

func TestStore_InsertWithoutTableFails(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "empty.db")
	st, err := New(context.Background(), storage.Config{DSN: dsn, Table: "companies"})
	require.NoError(t, err)
	defer st.Close(context.Background())

	_, err = st.InsertIfAbsent(context.Background(), domain.Company{CompanyNumber: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite: insert 1")
}

func TestNew_EmptyDSN(t *testing.T) {
	_, err := New(context.Background(), storage.Config{Table: "companies"})
	assert.Error(t, err)
}
