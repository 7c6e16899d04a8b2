package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/crimson-sun/politeguard/internal/model"
	"github.com/crimson-sun/politeguard/internal/output"
)

const (
	defaultBufSize = 64 * 1024 // 64KB
	maxRotated     = 10
)

// Format selects how records are encoded on disk.
type Format string

const (
	// NDJSON writes one JSON object per line.
	NDJSON Format = "ndjson"
	// CBOR writes a CBOR sequence: one self-delimiting item per record.
	CBOR Format = "cbor"
)

// ParseFormat accepts "ndjson" (or "") and "cbor".
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", NDJSON:
		return NDJSON, nil
	case CBOR:
		return CBOR, nil
	}
	return "", fmt.Errorf("file output: unknown format %q", s)
}

// Option configures a file Output.
type Option func(*Output)

// WithMaxSize sets the file size (bytes) at which rotation triggers.
// 0 (default) disables rotation.
func WithMaxSize(bytes int64) Option {
	return func(o *Output) { o.maxSize = bytes }
}

// WithBufSize sets the bufio.Writer buffer size. Default: 64KB.
func WithBufSize(bytes int) Option {
	return func(o *Output) { o.bufSize = bytes }
}

// WithFormat sets the encoding. Default: NDJSON.
func WithFormat(f Format) Option {
	return func(o *Output) { o.format = f }
}

// WithRedact drops the analyzed text from every record.
func WithRedact() Option {
	return func(o *Output) { o.redact = true }
}

// Output appends records to a file with buffered I/O and optional
// size-based rotation.
type Output struct {
	w       *bufio.Writer
	f       *os.File
	mu      sync.Mutex
	path    string
	format  Format
	redact  bool
	maxSize int64 // 0 = no rotation
	written int64
	bufSize int
}

// New creates a file output that appends to the given path.
func New(path string, opts ...Option) (*Output, error) {
	o := &Output{
		path:    path,
		format:  NDJSON,
		bufSize: defaultBufSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.openFile(); err != nil {
		return nil, err
	}
	return o, nil
}

// Write encodes the record and appends it to the file.
func (o *Output) Write(_ context.Context, rec model.Record) error {
	data, err := o.encode(output.FormatRecord(rec, o.redact))
	if err != nil {
		return fmt.Errorf("file output: marshal: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.maxSize > 0 && o.written > 0 && o.written+int64(len(data)) > o.maxSize {
		if err := o.rotate(); err != nil {
			return fmt.Errorf("file output: rotate: %w", err)
		}
	}

	n, err := o.w.Write(data)
	o.written += int64(n)
	if err != nil {
		return fmt.Errorf("file output: write: %w", err)
	}
	return nil
}

func (o *Output) encode(rec model.Record) ([]byte, error) {
	if o.format == CBOR {
		return cbor.Marshal(rec)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Close flushes the buffer and closes the file.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.w.Flush(); err != nil {
		o.f.Close()
		return fmt.Errorf("file output: flush: %w", err)
	}
	return o.f.Close()
}

// openFile opens (or creates) the output file and wraps it in a bufio.Writer.
func (o *Output) openFile() error {
	f, err := os.OpenFile(o.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("file output: open %s: %w", o.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("file output: stat %s: %w", o.path, err)
	}
	o.f = f
	o.w = bufio.NewWriterSize(f, o.bufSize)
	o.written = info.Size()
	return nil
}

// rotate flushes and closes the current file, shifts {path}.N to {path}.N+1,
// renames the current file to {path}.1, and opens a fresh one.
func (o *Output) rotate() error {
	if err := o.w.Flush(); err != nil {
		return err
	}
	if err := o.f.Close(); err != nil {
		return err
	}

	for i := maxRotated - 1; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", o.path, i)
		to := fmt.Sprintf("%s.%d", o.path, i+1)
		os.Rename(from, to) // ignore errors: file may not exist
	}
	if err := os.Rename(o.path, o.path+".1"); err != nil {
		return err
	}

	o.written = 0
	return o.openFile()
}
