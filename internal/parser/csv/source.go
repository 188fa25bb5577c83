// Package csv provides the header-driven, pull-based CSV source that feeds
// the ingestion pipeline.
//
// A Source reads one record per Next call and never buffers more than the
// current record, so memory stays bounded regardless of input size. The
// caller decides when the next record is produced; Pause and Resume gate
// Next explicitly for callers that hand records to slower consumers.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"companyload/internal/domain"
)

// Options tunes CSV parsing.
type Options struct {
	// Comma is the field delimiter (default ',').
	Comma rune
	// TrimSpace trims surrounding whitespace from header names and values.
	TrimSpace bool
	// LazyQuotes relaxes quote handling (encoding/csv LazyQuotes).
	LazyQuotes bool
	// MaxRecords stops the source after this many emitted rows; 0 = no limit.
	MaxRecords int
}

// DefaultOptions mirrors the register export: comma separated, values trimmed.
func DefaultOptions() Options {
	return Options{Comma: ',', TrimSpace: true}
}

// Row is one parsed data record and the input line it started on.
type Row struct {
	Line   int
	Fields domain.RawRecord
}

// StructuralError reports a chunk of input that could not be parsed into a
// record (broken quoting, wrong field count). The source stays usable; the
// caller may keep calling Next.
type StructuralError struct {
	Line int
	Err  error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("csv line %d: %v", e.Line, e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// Source is a forward-only record stream over a header-driven CSV input.
// Next must be called from a single goroutine; Pause and Resume may be called
// from any goroutine.
type Source struct {
	cr      *csv.Reader
	header  []string
	opt     Options
	emitted int
	done    error

	mu      sync.Mutex
	paused  bool
	resumed chan struct{}
}

// NewSource wraps r and consumes the header row. A leading byte-order mark
// is honoured (UTF-8 is stripped, UTF-16 is decoded). Failing to read the
// header is returned as an error; no Source is created.
func NewSource(r io.Reader, opt Options) (*Source, error) {
	if opt.Comma == 0 {
		opt.Comma = ','
	}

	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(transform.Nop)))
	cr.Comma = opt.Comma
	cr.LazyQuotes = opt.LazyQuotes
	cr.ReuseRecord = true
	// 0: the header row fixes the expected width for every data row.
	cr.FieldsPerRecord = 0

	hdr, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	header := make([]string, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if opt.TrimSpace {
			h = strings.TrimSpace(h)
		}
		header[i] = h
	}

	return &Source{cr: cr, header: header, opt: opt}, nil
}

// Header returns the field names read from the first input record.
func (s *Source) Header() []string {
	out := make([]string, len(s.header))
	copy(out, s.header)
	return out
}

// Emitted returns the number of rows handed out so far.
func (s *Source) Emitted() int { return s.emitted }

// Pause stops Next from producing records until Resume is called.
func (s *Source) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return
	}
	s.paused = true
	s.resumed = make(chan struct{})
}

// Resume lets a paused Next continue from where the stream stopped.
func (s *Source) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return
	}
	s.paused = false
	close(s.resumed)
}

// Paused reports whether the source is currently suspended.
func (s *Source) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Source) waitResumed(ctx context.Context) error {
	s.mu.Lock()
	if !s.paused {
		s.mu.Unlock()
		return nil
	}
	ch := s.resumed
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next data row.
//
// It returns io.EOF at end of input or once MaxRecords rows were emitted,
// and keeps returning io.EOF afterwards. A malformed chunk yields a
// *StructuralError and the following call continues after it. Any other
// read error ends the stream and is returned wrapped.
func (s *Source) Next(ctx context.Context) (Row, error) {
	if err := s.waitResumed(ctx); err != nil {
		return Row{}, err
	}
	if s.done != nil {
		return Row{}, s.done
	}
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}
	if s.opt.MaxRecords > 0 && s.emitted >= s.opt.MaxRecords {
		s.done = io.EOF
		return Row{}, io.EOF
	}

	rec, err := s.cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.done = io.EOF
			return Row{}, io.EOF
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return Row{}, &StructuralError{Line: pe.StartLine, Err: pe.Err}
		}
		s.done = fmt.Errorf("csv read: %w", err)
		return Row{}, s.done
	}

	line, _ := s.cr.FieldPos(0)
	fields := make(domain.RawRecord, len(s.header))
	for i, h := range s.header {
		if i >= len(rec) {
			break
		}
		v := rec[i]
		if s.opt.TrimSpace {
			v = strings.TrimSpace(v)
		}
		if _, dup := fields[h]; dup {
			continue
		}
		fields[h] = v
	}

	s.emitted++
	return Row{Line: line, Fields: fields}, nil
}
