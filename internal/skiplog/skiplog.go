// Package skiplog records rows the loader did not persist in a CSV file next
// to the run, so they can be inspected or replayed by hand.
package skiplog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"

	"companyload/internal/domain"
)

// Reasons written to the reason column.
const (
	ReasonMissingKey    = "missing_company_number"
	ReasonPersistFailed = "persist_failed"
	ReasonStructural    = "structural_error"
)

// Header is the first row of every skip log.
var Header = []string{"reason", "line_number", "company_number", "row_hash", "raw_line"}

// Log appends skipped rows to a CSV file and counts them per reason. A nil
// *Log discards everything.
type Log struct {
	mu      sync.Mutex
	path    string
	f       *os.File
	w       *csv.Writer
	reasons map[string]int
	closed  bool
}

// FileName returns the conventional skip-log name for a run.
func FileName(table, runID string) string {
	return fmt.Sprintf("skipped_%s_%s.csv", strings.ReplaceAll(table, ".", "_"), runID)
}

// New creates path (and its parent directories) and writes the header.
func New(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header %s: %w", path, err)
	}
	return &Log{path: path, f: f, w: w, reasons: make(map[string]int)}, nil
}

// Path returns the file the log writes to; empty for a nil Log.
func (l *Log) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Add records one skipped row. raw is the row as it appeared in the input
// (see Line); its xxh3 hash lets reruns be matched without diffing text.
func (l *Log) Add(reason string, line int, key, raw string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reasons[reason]++
	if l.closed {
		return
	}
	_ = l.w.Write([]string{reason, strconv.Itoa(line), key, RowHash(raw), raw})
}

// Counts returns a copy of the per-reason counters.
func (l *Log) Counts() map[string]int {
	out := map[string]int{}
	if l == nil {
		return out
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range l.reasons {
		out[k] = v
	}
	return out
}

// Total returns the number of rows recorded.
func (l *Log) Total() int {
	n := 0
	for _, v := range l.Counts() {
		n += v
	}
	return n
}

// Flush writes buffered rows to the file.
func (l *Log) Flush() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.w.Flush()
	return l.w.Error()
}

// Close flushes and closes the file. Later calls are no-ops.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.w.Flush()
	werr := l.w.Error()
	cerr := l.f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

// RowHash is the hex xxh3 fingerprint of raw.
func RowHash(raw string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(raw))
}

// Line re-encodes a parsed record as a single CSV line in header order.
func Line(header []string, rec domain.RawRecord) string {
	vals := make([]string, len(header))
	for i, h := range header {
		vals[i] = rec[h]
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(vals)
	w.Flush()
	return strings.TrimRight(buf.String(), "\r\n")
}
