// Package sink persists mapped companies through a storage.Store and turns
// every attempt into an Outcome. Persistence errors never escape as errors:
// a failed row is an outcome like any other and the run continues.
package sink

import (
	"context"
	"time"

	"go.uber.org/zap"

	"companyload/internal/domain"
	"companyload/internal/metrics"
	"companyload/internal/storage"
)

// Kind classifies a persistence attempt.
type Kind int

const (
	Inserted Kind = iota + 1
	SkippedDuplicate
	Failed
)

func (k Kind) String() string {
	switch k {
	case Inserted:
		return "inserted"
	case SkippedDuplicate:
		return "duplicate"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one Persist call. Reason is set for Failed only.
type Outcome struct {
	Kind   Kind
	Reason error
}

// Sink writes one company at a time. It is not safe for concurrent use; the
// pipeline awaits each Persist before reading the next row.
type Sink struct {
	store storage.Store
	log   *zap.Logger
	job   string
}

// New returns a Sink over store. job labels metrics.
func New(store storage.Store, log *zap.Logger, job string) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sink{store: store, log: log, job: job}
}

// Persist writes c unless its company number already exists.
func (s *Sink) Persist(ctx context.Context, c domain.Company) Outcome {
	start := time.Now()
	inserted, err := s.store.InsertIfAbsent(ctx, c)
	metrics.RecordStep(s.job, "persist", err, time.Since(start))

	switch {
	case err != nil:
		s.log.Error("persist failed",
			zap.String("company_number", c.CompanyNumber),
			zap.Error(err),
		)
		metrics.RecordRow(s.job, metrics.KindFailed, 1)
		return Outcome{Kind: Failed, Reason: err}
	case !inserted:
		s.log.Debug("company already present", zap.String("company_number", c.CompanyNumber))
		metrics.RecordRow(s.job, metrics.KindDuplicate, 1)
		return Outcome{Kind: SkippedDuplicate}
	default:
		metrics.RecordRow(s.job, metrics.KindInserted, 1)
		return Outcome{Kind: Inserted}
	}
}
