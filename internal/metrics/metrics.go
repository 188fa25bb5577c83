// Package metrics is a small, backend-agnostic abstraction for recording
// operational metrics from the loader.
//
// A global backend defaults to a no-op implementation, so the recording
// helpers are always safe to call. Concrete systems (Prometheus Pushgateway,
// Datadog) live in subpackages and are installed with SetBackend.
package metrics

import (
	"io"
	"time"
)

// Metric names emitted by the helpers.
const (
	StepTotal           = "companies_step_total"
	StepDurationSeconds = "companies_step_duration_seconds"
	RecordsTotal        = "companies_records_total"
)

// Record kinds passed to RecordRow.
const (
	KindRead             = "read"
	KindDropped          = "dropped"
	KindInserted         = "inserted"
	KindDuplicate        = "duplicate"
	KindFailed           = "failed"
	KindStructuralErrors = "structural_errors"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs b. Passing nil keeps the current backend. Call it
// before the pipeline starts; it is not synchronized with recording.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Reset restores the no-op backend.
func Reset() { backend = nopBackend{} }

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// Shutdown flushes the backend and closes it when it holds resources.
func Shutdown() error {
	if err := backend.Flush(); err != nil {
		return err
	}
	if c, ok := backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// RecordStep counts one execution of step and observes its latency, labelled
// success or failure by err.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRow increments the record counter for kind. Non-positive deltas are
// ignored.
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{"job": job, "kind": kind})
}
