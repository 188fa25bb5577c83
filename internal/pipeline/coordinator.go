package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"companyload/internal/metrics"
	pcsv "companyload/internal/parser/csv"
	"companyload/internal/sink"
	"companyload/internal/skiplog"
	"companyload/internal/storage"
	"companyload/internal/transformer"
)

// releaseTimeout bounds Store.Close, which runs even after ctx is canceled.
const releaseTimeout = 10 * time.Second

// Coordinator runs a single load. Create one per run with New.
type Coordinator struct {
	cfg  Config
	deps Deps
	log  *zap.Logger

	state atomic.Int32
	ran   atomic.Bool

	input       io.ReadCloser
	store       storage.Store
	releaseOnce sync.Once
}

// New returns an Idle coordinator.
func New(cfg Config, deps Deps) *Coordinator {
	if cfg.Job == "" {
		cfg.Job = "companies"
	}
	if cfg.MaxFailedKeys == 0 {
		cfg.MaxFailedKeys = DefaultMaxFailedKeys
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{cfg: cfg, deps: deps, log: log}
}

// State reports the current lifecycle stage.
func (c *Coordinator) State() State { return State(c.state.Load()) }

func (c *Coordinator) setState(s State) {
	c.state.Store(int32(s))
	c.log.Debug("pipeline state", zap.Stringer("state", s))
}

// Run performs the load. Setup failures return a *SetupError before any row
// is read. Row-level problems (drops, failed persists, structural errors)
// are counted in the Summary and never abort the run. A canceled ctx stops
// the loop before the next row; Run then returns ctx.Err() with the partial
// Summary. The input and the store are released exactly once on every path.
func (c *Coordinator) Run(ctx context.Context) (Summary, error) {
	if !c.ran.CompareAndSwap(false, true) {
		return Summary{}, ErrAlreadyRun
	}
	start := c.deps.Now()
	defer c.release(ctx)

	src, err := c.setup(ctx)
	if err != nil {
		c.release(ctx)
		c.setState(Closed)
		c.log.Error("setup failed", zap.Error(err))
		return Summary{Elapsed: c.deps.Now().Sub(start)}, err
	}
	c.setState(Running)

	var snk *sink.Sink
	if c.store != nil {
		snk = sink.New(c.store, c.log, c.cfg.Job)
	}

	var sum Summary
	runErr := c.loop(ctx, src, snk, &sum)

	c.setState(Draining)
	if err := c.deps.SkipLog.Flush(); err != nil {
		c.log.Warn("flush skip log", zap.Error(err))
	}
	c.release(ctx)
	c.setState(Closed)

	sum.Elapsed = c.deps.Now().Sub(start)
	c.logSummary(sum, runErr)
	return sum, runErr
}

func (c *Coordinator) setup(ctx context.Context) (*pcsv.Source, error) {
	if c.deps.OpenInput == nil {
		return nil, &SetupError{Stage: "open input", Err: errors.New("no input configured")}
	}
	if !c.cfg.DryRun && c.deps.OpenStore == nil {
		return nil, &SetupError{Stage: "open store", Err: errors.New("no store configured")}
	}

	in, err := c.deps.OpenInput(ctx)
	if err != nil {
		return nil, &SetupError{Stage: "open input", Err: err}
	}
	c.input = in

	src, err := pcsv.NewSource(in, c.cfg.CSV)
	if err != nil {
		return nil, &SetupError{Stage: "read header", Err: err}
	}

	if c.cfg.DryRun {
		return src, nil
	}

	st, err := c.deps.OpenStore(ctx)
	if err != nil {
		return nil, &SetupError{Stage: "open store", Err: err}
	}
	c.store = st

	if c.cfg.CreateTable {
		if err := st.EnsureTable(ctx); err != nil {
			return nil, &SetupError{Stage: "ensure table", Err: err}
		}
	}
	return src, nil
}

// loop pulls rows until EOF, a fatal read error or cancellation. Exactly one
// row is in flight: the source is paused while the row is handled.
func (c *Coordinator) loop(ctx context.Context, src *pcsv.Source, snk *sink.Sink, sum *Summary) error {
	header := src.Header()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		row, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		var se *pcsv.StructuralError
		if errors.As(err, &se) {
			c.structural(se, sum)
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("read input: %w", err)
		}

		src.Pause()
		c.handle(ctx, header, row, snk, sum)
		src.Resume()
	}
}

func (c *Coordinator) handle(ctx context.Context, header []string, row pcsv.Row, snk *sink.Sink, sum *Summary) {
	sum.Read++
	metrics.RecordRow(c.cfg.Job, metrics.KindRead, 1)

	if !transformer.IsAdmissible(row.Fields) {
		sum.Dropped++
		metrics.RecordRow(c.cfg.Job, metrics.KindDropped, 1)
		raw := skiplog.Line(header, row.Fields)
		c.log.Warn("dropping row without company number",
			zap.Int("line", row.Line),
			zap.String("raw", raw),
		)
		c.deps.SkipLog.Add(skiplog.ReasonMissingKey, row.Line, "", raw)
		c.emit(Event{Kind: EventDropped, Line: row.Line, Raw: row.Fields})
		return
	}
	sum.Admitted++

	company := transformer.MapCompany(row.Fields)
	if snk == nil {
		return
	}

	out := snk.Persist(ctx, company)
	switch out.Kind {
	case sink.Inserted:
		sum.Inserted++
	case sink.SkippedDuplicate:
		sum.Duplicates++
	case sink.Failed:
		sum.Failed++
		c.recordFailedKey(sum, company.CompanyNumber)
		c.deps.SkipLog.Add(skiplog.ReasonPersistFailed, row.Line, company.CompanyNumber, skiplog.Line(header, row.Fields))
	}
	c.emit(Event{Kind: EventOutcome, Line: row.Line, CompanyNumber: company.CompanyNumber, Outcome: out})
}

func (c *Coordinator) structural(se *pcsv.StructuralError, sum *Summary) {
	sum.StructuralErrors++
	metrics.RecordRow(c.cfg.Job, metrics.KindStructuralErrors, 1)
	c.log.Warn("malformed input skipped", zap.Int("line", se.Line), zap.Error(se.Err))
	c.deps.SkipLog.Add(skiplog.ReasonStructural, se.Line, "", se.Err.Error())
	c.emit(Event{Kind: EventStructural, Line: se.Line, Err: se})
}

func (c *Coordinator) recordFailedKey(sum *Summary, key string) {
	if c.cfg.MaxFailedKeys >= 0 && len(sum.FailedKeys) >= c.cfg.MaxFailedKeys {
		sum.FailedKeysTruncated = true
		return
	}
	sum.FailedKeys = append(sum.FailedKeys, key)
}

func (c *Coordinator) emit(e Event) {
	if c.deps.Events != nil {
		c.deps.Events(e)
	}
}

// release closes the store and the input once, whatever the exit path.
func (c *Coordinator) release(ctx context.Context) {
	c.releaseOnce.Do(func() {
		if c.store != nil {
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			if err := c.store.Close(closeCtx); err != nil {
				c.log.Warn("close store", zap.Error(err))
			}
			cancel()
		}
		if c.input != nil {
			if err := c.input.Close(); err != nil {
				c.log.Warn("close input", zap.Error(err))
			}
		}
	})
}

func (c *Coordinator) logSummary(sum Summary, runErr error) {
	fields := []zap.Field{
		zap.Int("read", sum.Read),
		zap.Int("dropped", sum.Dropped),
		zap.Int("admitted", sum.Admitted),
		zap.Int("inserted", sum.Inserted),
		zap.Int("duplicates", sum.Duplicates),
		zap.Int("failed", sum.Failed),
		zap.Int("structural_errors", sum.StructuralErrors),
		zap.Duration("elapsed", sum.Elapsed),
	}
	if len(sum.FailedKeys) > 0 {
		fields = append(fields, zap.Strings("failed_keys", sum.FailedKeys), zap.Bool("failed_keys_truncated", sum.FailedKeysTruncated))
	}
	if p := c.deps.SkipLog.Path(); p != "" && c.deps.SkipLog.Total() > 0 {
		fields = append(fields, zap.String("skip_log", p))
	}
	if runErr != nil {
		c.log.Warn("load stopped", append(fields, zap.Error(runErr))...)
		return
	}
	c.log.Info("load complete", fields...)
}
