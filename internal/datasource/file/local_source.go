// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// ErrNoCSVMember is returned when a zip archive holds no .csv file.
var ErrNoCSVMember = errors.New("zip archive has no .csv member")

// Local opens a file from the local disk, transparently decompressing it
// based on its extension (.gz, .zst, .zip).
type Local struct{ path string }

// NewLocal returns a Local data source bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the configured path.
func (l *Local) Path() string { return l.path }

// Open opens the configured path for reading.
//
// If ctx is already done, Open returns its error without touching the
// filesystem. Filesystem errors are wrapped with the path and still match
// errors.Is(err, os.ErrNotExist) and friends.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	switch strings.ToLower(filepath.Ext(l.path)) {
	case ".zip":
		return l.openZip()
	case ".gz":
		return l.openStream(func(r io.Reader) (io.Reader, io.Closer, error) {
			zr, err := gzip.NewReader(r)
			if err != nil {
				return nil, nil, err
			}
			return zr, zr, nil
		})
	case ".zst", ".zstd":
		return l.openStream(func(r io.Reader) (io.Reader, io.Closer, error) {
			zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
			if err != nil {
				return nil, nil, err
			}
			return zr, closerFunc(func() error { zr.Close(); return nil }), nil
		})
	default:
		f, err := l.openFile()
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}

func (l *Local) openFile() (*os.File, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	adviseSequential(f)
	return f, nil
}

type decoderFunc func(io.Reader) (io.Reader, io.Closer, error)

func (l *Local) openStream(dec decoderFunc) (io.ReadCloser, error) {
	f, err := l.openFile()
	if err != nil {
		return nil, err
	}
	r, c, err := dec(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("decompress %s: %w", l.path, err)
	}
	return &stackedReadCloser{Reader: r, closers: []io.Closer{f, c}}, nil
}

func (l *Local) openZip() (io.ReadCloser, error) {
	zr, err := zip.OpenReader(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() || !strings.EqualFold(filepath.Ext(zf.Name), ".csv") {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			_ = zr.Close()
			return nil, fmt.Errorf("open %s!%s: %w", l.path, zf.Name, err)
		}
		return &stackedReadCloser{Reader: rc, closers: []io.Closer{zr, rc}}, nil
	}
	_ = zr.Close()
	return nil, fmt.Errorf("%s: %w", l.path, ErrNoCSVMember)
}

// stackedReadCloser reads from the outermost decoder and closes every layer,
// innermost last.
type stackedReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedReadCloser) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
