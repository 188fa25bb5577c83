// Command companies loads a company register CSV export into a relational
// store. It is a thin composition layer: configuration, logging, metrics,
// the skip log, the input file and the store are all built here and handed
// to the pipeline. Every side effect is reachable through Deps so run() can
// be tested hermetically.
//
// Design goals:
//   - Keep main() tiny and delegate to run() for testability.
//   - Avoid hidden globals and make behavior obvious from Deps.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"companyload/internal/config"
	"companyload/internal/datasource/file"
	"companyload/internal/logging"
	"companyload/internal/metrics"
	"companyload/internal/metrics/datadog"
	"companyload/internal/metrics/prompush"
	"companyload/internal/pipeline"
	pcsv "companyload/internal/parser/csv"
	"companyload/internal/skiplog"
	"companyload/internal/storage"

	// register every store backend; -db_driver picks one at runtime.
	_ "companyload/internal/storage/all"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const jobName = "companies"

// Deps holds injectable dependencies so run() is fully testable. In tests we
// pass fakes; in production defaultDeps() provides the real constructors.
type Deps struct {
	Getenv     func(string) string
	NewLogger  func(level, format string) (*zap.Logger, error)
	OpenInput  func(ctx context.Context, path string) (io.ReadCloser, error)
	OpenStore  func(ctx context.Context, cfg storage.Config) (storage.Store, error)
	NewSkipLog func(path string) (*skiplog.Log, error)
	// NewMetrics returns nil when metrics are disabled.
	NewMetrics func(cfg *config.Config, runID string) (metrics.Backend, error)
	NewRunID   func() string

	Stdout io.Writer
	Stderr io.Writer
}

// defaultDeps wires production implementations.
func defaultDeps() Deps {
	return Deps{
		Getenv:    os.Getenv,
		NewLogger: logging.New,
		OpenInput: func(ctx context.Context, path string) (io.ReadCloser, error) {
			return file.NewLocal(path).Open(ctx)
		},
		OpenStore: func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
			return storage.Open(ctx, cfg)
		},
		NewSkipLog: skiplog.New,
		NewMetrics: newMetricsBackend,
		NewRunID:   func() string { return uuid.NewString() },
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
}

// newMetricsBackend builds the backend named by cfg.MetricsBackend. Every
// series is grouped (pushgateway) or tagged (datadog) with the run id.
func newMetricsBackend(cfg *config.Config, runID string) (metrics.Backend, error) {
	switch strings.ToLower(cfg.MetricsBackend) {
	case "", "none":
		return nil, nil
	case "pushgateway":
		b, err := prompush.NewBackend(jobName, cfg.PushgatewayURL, prompush.WithGrouping("run_id", runID))
		if err != nil {
			return nil, err
		}
		return b, nil
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       cfg.DatadogAddr,
			Namespace:  jobName + ".",
			GlobalTags: []string{"run_id:" + runID},
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown metrics backend %q", cfg.MetricsBackend)
	}
}

// run loads cfg.CSVPath into the configured store.
func run(ctx context.Context, cfg *config.Config, deps Deps) error {
	_, err := execute(ctx, cfg, deps, false)
	return err
}

// check validates and maps every row without opening a store.
func check(ctx context.Context, cfg *config.Config, deps Deps) error {
	_, err := execute(ctx, cfg, deps, true)
	return err
}

// execute is the shared body of load and check. It:
//
//  1. Validates the configuration and stops on any error-severity issue.
//  2. Builds the run logger, the skip log and the metrics backend.
//  3. Runs the pipeline, pushing metrics periodically when asked to.
//  4. Prints the summary and propagates setup or cancellation errors.
func execute(ctx context.Context, cfg *config.Config, deps Deps, dryRun bool) (pipeline.Summary, error) {
	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(deps.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return pipeline.Summary{}, errors.New("configuration is invalid")
	}

	base, err := deps.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return pipeline.Summary{}, fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = base.Sync() }()

	runID := deps.NewRunID()
	log := logging.ForRun(base, runID, cfg.Table)

	var skips *skiplog.Log
	if cfg.SkippedDir != "" && !dryRun {
		path := filepath.Join(cfg.SkippedDir, skiplog.FileName(cfg.Table, runID))
		skips, err = deps.NewSkipLog(path)
		if err != nil {
			return pipeline.Summary{}, fmt.Errorf("skip log: %w", err)
		}
		defer func() {
			if err := skips.Close(); err != nil {
				log.Warn("close skip log", zap.Error(err))
			}
		}()
	}

	backend, err := deps.NewMetrics(cfg, runID)
	if err != nil {
		log.Warn("metrics disabled", zap.String("backend", cfg.MetricsBackend), zap.Error(err))
	} else if backend != nil {
		metrics.SetBackend(backend)
		log.Info("metrics enabled", zap.String("backend", cfg.MetricsBackend))
		defer func() {
			if err := metrics.Shutdown(); err != nil {
				log.Warn("metrics shutdown", zap.Error(err))
			}
			metrics.Reset()
		}()
	}

	pcfg := pipeline.DefaultConfig()
	pcfg.Job = jobName
	pcfg.CSV = pcsv.Options{
		Comma:      cfg.CommaRune(),
		TrimSpace:  true,
		LazyQuotes: cfg.LazyQuotes,
		MaxRecords: cfg.MaxRecords,
	}
	pcfg.CreateTable = cfg.CreateTable
	pcfg.DryRun = dryRun

	pdeps := pipeline.Deps{
		OpenInput: func(ctx context.Context) (io.ReadCloser, error) { return deps.OpenInput(ctx, cfg.CSVPath) },
		Log:       log,
		SkipLog:   skips,
	}
	if !dryRun {
		dsn, err := cfg.StoreDSN()
		if err != nil {
			return pipeline.Summary{}, err
		}
		scfg := storage.Config{Kind: cfg.DBDriver, DSN: dsn, Table: cfg.Table}
		pdeps.OpenStore = func(ctx context.Context) (storage.Store, error) { return deps.OpenStore(ctx, scfg) }
	}

	log.Info("starting",
		zap.String("csv", cfg.CSVPath),
		zap.String("driver", cfg.DBDriver),
		zap.Bool("dry_run", dryRun),
	)

	pushCtx, stopPush := context.WithCancel(ctx)
	var g errgroup.Group
	if backend != nil && cfg.MetricsInterval > 0 {
		g.Go(func() error {
			pushPeriodically(pushCtx, cfg.MetricsInterval, log)
			return nil
		})
	}

	sum, runErr := pipeline.New(pcfg, pdeps).Run(ctx)
	stopPush()
	_ = g.Wait()

	printSummary(deps.Stdout, sum, skips.Path())
	return sum, runErr
}

// pushPeriodically flushes the metrics backend every interval until ctx ends.
func pushPeriodically(ctx context.Context, interval time.Duration, log *zap.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := metrics.Flush(); err != nil {
				log.Warn("metrics push", zap.Error(err))
			}
		}
	}
}

func printSummary(w io.Writer, sum pipeline.Summary, skipPath string) {
	fmt.Fprintf(w, "read=%d dropped=%d admitted=%d inserted=%d duplicates=%d failed=%d structural_errors=%d elapsed=%s\n",
		sum.Read, sum.Dropped, sum.Admitted, sum.Inserted, sum.Duplicates, sum.Failed, sum.StructuralErrors,
		sum.Elapsed.Truncate(time.Millisecond))
	if len(sum.FailedKeys) > 0 {
		more := ""
		if sum.FailedKeysTruncated {
			more = " (truncated)"
		}
		fmt.Fprintf(w, "failed company numbers%s: %s\n", more, strings.Join(sum.FailedKeys, ", "))
	}
	if skipPath != "" {
		fmt.Fprintf(w, "skipped rows: %s\n", skipPath)
	}
}

// newRootCommand assembles the CLI. Subcommands keep their flags on the
// config package's flag set, so cobra hands the raw arguments through.
func newRootCommand(ctx context.Context, deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "companies",
		Short:         "Load a company register CSV export into a relational store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(deps.Stdout)
	root.SetErr(deps.Stderr)

	root.AddCommand(newPipelineCommand(ctx, deps, "load",
		"Load the CSV into the configured store",
		"Streams every row of the input, drops rows without a company number\nand inserts the rest unless the company number is already present.\nRun \"companies load -h\" for the full flag list.",
		run))
	root.AddCommand(newPipelineCommand(ctx, deps, "check",
		"Validate configuration and dry-run the input without a store",
		"Reads, validates and maps every row, then reports the counts.\nNothing is written.",
		check))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			fmt.Fprintln(c.OutOrStdout(), version)
			return nil
		},
	})
	return root
}

type runFunc func(ctx context.Context, cfg *config.Config, deps Deps) error

func newPipelineCommand(ctx context.Context, deps Deps, use, short, long string, fn runFunc) *cobra.Command {
	return &cobra.Command{
		Use:                use + " [flags]",
		Short:              short,
		Long:               long,
		DisableFlagParsing: true,
		RunE: func(c *cobra.Command, args []string) error {
			fs := flag.NewFlagSet(use, flag.ContinueOnError)
			fs.SetOutput(c.ErrOrStderr())
			cfg, err := config.LoadFromArgs(fs, deps.Getenv, args)
			if errors.Is(err, flag.ErrHelp) {
				return nil
			}
			if err != nil {
				return err
			}
			if fs.NArg() > 0 {
				return fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
			}
			return fn(ctx, cfg, deps)
		},
	}
}

// main is intentionally tiny. Any error is reported once and exits non-zero.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	deps := defaultDeps()
	err := newRootCommand(ctx, deps).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(deps.Stderr, "companies:", err)
		os.Exit(1)
	}
}
