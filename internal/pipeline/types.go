// Package pipeline drives a load run: it pulls rows from the CSV source one
// at a time, validates and maps them, and hands each admissible company to
// the sink, awaiting the outcome before asking for the next row.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"companyload/internal/domain"
	pcsv "companyload/internal/parser/csv"
	"companyload/internal/sink"
	"companyload/internal/skiplog"
	"companyload/internal/storage"
)

// State is the lifecycle stage of a Coordinator.
type State int32

const (
	Idle State = iota
	Running
	Draining
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// DefaultMaxFailedKeys bounds Summary.FailedKeys when Config leaves it zero.
const DefaultMaxFailedKeys = 1000

// Config tunes a run.
type Config struct {
	// Job labels metrics; defaults to "companies".
	Job string
	// CSV configures the source.
	CSV pcsv.Options
	// CreateTable runs Store.EnsureTable before the first row.
	CreateTable bool
	// DryRun validates and maps every row without opening a store.
	DryRun bool
	// MaxFailedKeys caps Summary.FailedKeys; negative means unlimited.
	MaxFailedKeys int
}

// DefaultConfig returns the settings used for the register export.
func DefaultConfig() Config {
	return Config{Job: "companies", CSV: pcsv.DefaultOptions()}
}

// Deps are the collaborators of a run. OpenInput is required; OpenStore is
// required unless Config.DryRun is set.
type Deps struct {
	OpenInput func(ctx context.Context) (io.ReadCloser, error)
	OpenStore func(ctx context.Context) (storage.Store, error)
	Log       *zap.Logger
	SkipLog   *skiplog.Log
	// Events, when set, observes every drop, outcome and structural error
	// in input order.
	Events func(Event)
	// Now defaults to time.Now.
	Now func() time.Time
}

// EventKind classifies an Event.
type EventKind int

const (
	EventDropped EventKind = iota + 1
	EventOutcome
	EventStructural
)

func (k EventKind) String() string {
	switch k {
	case EventDropped:
		return "dropped"
	case EventOutcome:
		return "outcome"
	case EventStructural:
		return "structural"
	default:
		return "unknown"
	}
}

// Event is one per-row result.
type Event struct {
	Kind          EventKind
	Line          int
	CompanyNumber string
	// Raw is set for drops.
	Raw domain.RawRecord
	// Outcome is set for EventOutcome.
	Outcome sink.Outcome
	// Err is set for EventStructural.
	Err error
}

// Summary reports what a run did.
type Summary struct {
	Read             int
	Dropped          int
	Admitted         int
	Inserted         int
	Duplicates       int
	Failed           int
	StructuralErrors int
	// FailedKeys lists company numbers whose persist failed, in input
	// order, capped at Config.MaxFailedKeys.
	FailedKeys          []string
	FailedKeysTruncated bool
	Elapsed             time.Duration
}

// SetupError reports a failure before the first row was processed.
type SetupError struct {
	Stage string
	Err   error
}

func (e *SetupError) Error() string { return "setup: " + e.Stage + ": " + e.Err.Error() }

func (e *SetupError) Unwrap() error { return e.Err }

// ErrAlreadyRun is returned when Run is called more than once.
var ErrAlreadyRun = errors.New("pipeline: coordinator already ran")
