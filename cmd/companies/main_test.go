package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"companyload/internal/config"
	"companyload/internal/metrics"
	"companyload/internal/pipeline"
	"companyload/internal/storage"
)

const sample = "CompanyNumber,CompanyName,IncorporationDate,SICCode.SicText_1\n" +
	"00000001,ACME LTD,01/02/2003,62012 - Business software\n" +
	",NO NUMBER LTD,,\n" +
	"00000002,BETA LTD,,\n"

// fakeBackend records counter totals per kind label.
type fakeBackend struct {
	mu      sync.Mutex
	records map[string]float64
	flushes int
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels metrics.Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == metrics.RecordsTotal {
		f.records[labels["kind"]] += delta
	}
}

func (f *fakeBackend) ObserveHistogram(string, float64, metrics.Labels) {}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

type harness struct {
	deps   Deps
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	d := defaultDeps()
	d.Getenv = func(string) string { return "" }
	d.NewLogger = func(string, string) (*zap.Logger, error) { return zap.NewNop(), nil }
	d.NewMetrics = func(*config.Config, string) (metrics.Backend, error) { return nil, nil }
	d.NewRunID = func() string { return "run-1" }
	d.Stdout = h.stdout
	d.Stderr = h.stderr
	h.deps = d
	return h
}

func (h *harness) execute(args ...string) error {
	root := newRootCommand(context.Background(), h.deps)
	root.SetArgs(args)
	return root.Execute()
}

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "companies.csv")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func countRows(t *testing.T, dsn string) int {
	t.Helper()
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM companies`).Scan(&n))
	return n
}

func TestLoad_SQLiteEndToEnd(t *testing.T) {
	h := newHarness(t)
	csvPath := writeCSV(t, sample)
	dsn := filepath.Join(t.TempDir(), "companies.db")
	skipDir := filepath.Join(t.TempDir(), "skipped")

	args := []string{"load", "-csv", csvPath, "-db_driver=sqlite", "-dsn", dsn, "-create_table", "-skipped_dir", skipDir}
	require.NoError(t, h.execute(args...))

	assert.Contains(t, h.stdout.String(), "read=3 dropped=1 admitted=2 inserted=2 duplicates=0 failed=0")
	assert.Equal(t, 2, countRows(t, dsn))

	skipPath := filepath.Join(skipDir, "skipped_companies_run-1.csv")
	assert.Contains(t, h.stdout.String(), skipPath)
	b, err := os.ReadFile(skipPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), "missing_company_number,3,")

	// A second pass over the same file inserts nothing new.
	h.stdout.Reset()
	require.NoError(t, h.execute(args...))
	assert.Contains(t, h.stdout.String(), "inserted=0 duplicates=2")
	assert.Equal(t, 2, countRows(t, dsn))
}

func TestLoad_RecordsMetrics(t *testing.T) {
	h := newHarness(t)
	fb := &fakeBackend{records: map[string]float64{}}
	var gotRunID string
	h.deps.NewMetrics = func(_ *config.Config, runID string) (metrics.Backend, error) {
		gotRunID = runID
		return fb, nil
	}
	dsn := filepath.Join(t.TempDir(), "companies.db")

	require.NoError(t, h.execute("load", "-csv", writeCSV(t, sample), "-db_driver=sqlite", "-dsn", dsn, "-create_table", "-skipped_dir="))

	assert.Equal(t, "run-1", gotRunID)
	assert.Equal(t, float64(3), fb.records[metrics.KindRead])
	assert.Equal(t, float64(1), fb.records[metrics.KindDropped])
	assert.Equal(t, float64(2), fb.records[metrics.KindInserted])
	assert.GreaterOrEqual(t, fb.flushes, 1, "shutdown flushes")
}

func TestCheck_NeverOpensStore(t *testing.T) {
	h := newHarness(t)
	h.deps.OpenStore = func(context.Context, storage.Config) (storage.Store, error) {
		t.Fatal("check must not open a store")
		return nil, nil
	}
	skipDir := filepath.Join(t.TempDir(), "skipped")

	require.NoError(t, h.execute("check", "-csv", writeCSV(t, sample), "-skipped_dir", skipDir))

	assert.Contains(t, h.stdout.String(), "read=3 dropped=1 admitted=2 inserted=0")
	_, err := os.Stat(skipDir)
	assert.True(t, errors.Is(err, os.ErrNotExist), "check writes nothing")
}

func TestLoad_InvalidConfig(t *testing.T) {
	h := newHarness(t)
	err := h.execute("load", "-db_driver=oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration is invalid")
	assert.Contains(t, h.stderr.String(), "error: db_driver:")
}

func TestLoad_SetupFailure(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("connection refused")
	h.deps.OpenStore = func(context.Context, storage.Config) (storage.Store, error) { return nil, boom }

	err := h.execute("load", "-csv", writeCSV(t, sample), "-db_driver=sqlite", "-dsn=unused.db", "-skipped_dir=")

	var se *pipeline.SetupError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "open store", se.Stage)
	assert.ErrorIs(t, err, boom)
}

func TestLoad_PassesStoreConfig(t *testing.T) {
	h := newHarness(t)
	var got storage.Config
	h.deps.OpenStore = func(_ context.Context, cfg storage.Config) (storage.Store, error) {
		got = cfg
		return nil, errors.New("stop here")
	}

	_ = h.execute("load", "-csv", writeCSV(t, sample), "-db_user=u", "-db_password=p", "-db_host=db", "-db_port=5433", "-db_name=reg", "-table=public.companies", "-skipped_dir=")

	assert.Equal(t, "postgres", got.Kind)
	assert.Equal(t, "postgres://u:p@db:5433/reg", got.DSN)
	assert.Equal(t, "public.companies", got.Table)
}

func TestLoad_MissingInputIsSetupError(t *testing.T) {
	h := newHarness(t)
	err := h.execute("check", "-csv", filepath.Join(t.TempDir(), "nope.csv"))
	var se *pipeline.SetupError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "open input", se.Stage)
}

func TestLoad_Help(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.execute("load", "-h"))
	assert.Contains(t, h.stderr.String(), "-db_driver")
}

func TestLoad_RejectsPositionalArgs(t *testing.T) {
	h := newHarness(t)
	err := h.execute("load", "extra.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected arguments")
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.execute("version"))
	assert.Equal(t, version+"\n", h.stdout.String())
}

func TestNewMetricsBackend(t *testing.T) {
	cfg := config.Defaults()

	b, err := newMetricsBackend(&cfg, "r1")
	require.NoError(t, err)
	assert.Nil(t, b)

	cfg.MetricsBackend = "pushgateway"
	b, err = newMetricsBackend(&cfg, "r1")
	require.NoError(t, err)
	assert.NotNil(t, b)

	cfg.MetricsBackend = "datadog"
	b, err = newMetricsBackend(&cfg, "r1")
	require.NoError(t, err)
	require.NotNil(t, b)
	if c, ok := b.(io.Closer); ok {
		_ = c.Close()
	}

	cfg.MetricsBackend = "graphite"
	_, err = newMetricsBackend(&cfg, "r1")
	assert.Error(t, err)
}
