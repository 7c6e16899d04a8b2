package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/crimson-sun/politeguard/internal/model"
	"github.com/crimson-sun/politeguard/internal/output"
)

const (
	defaultBufferSize   = 256
	defaultDrainTimeout = 5 * time.Second
)

// Option configures an Async output.
type Option func(*Async)

// WithBufferSize sets how many records may queue before Write blocks.
func WithBufferSize(n int) Option {
	return func(a *Async) { a.bufSize = n }
}

// WithOnError replaces the default warning log for inner write failures.
func WithOnError(f func(error)) Option {
	return func(a *Async) { a.onError = f }
}

// WithDropOnFull discards records instead of blocking when the queue is full.
func WithDropOnFull() Option {
	return func(a *Async) { a.dropOnFull = true }
}

// Async queues records and writes them to the inner output from a single
// background goroutine, so slow sinks do not hold up analysis.
type Async struct {
	inner      output.Output
	ch         chan model.Record
	done       chan struct{}
	onError    func(error)
	bufSize    int
	dropOnFull bool
	closeOnce  sync.Once
}

// New starts the drain goroutine and returns the wrapper.
func New(inner output.Output, opts ...Option) *Async {
	a := &Async{
		inner:   inner,
		bufSize: defaultBufferSize,
		onError: func(err error) { slog.Warn("async output write failed", "error", err) },
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.bufSize < 1 {
		a.bufSize = 1
	}
	a.ch = make(chan model.Record, a.bufSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Write enqueues rec. It blocks while the queue is full unless the output
// was built WithDropOnFull, or until ctx ends.
func (a *Async) Write(ctx context.Context, rec model.Record) error {
	if a.dropOnFull {
		select {
		case a.ch <- rec:
		default:
			slog.Warn("async output queue full, dropping record",
				"index", rec.Index, "level", rec.Level)
		}
		return nil
	}
	select {
	case a.ch <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting records, waits for the queue to drain, then closes
// the inner output. Calling Write after Close panics.
func (a *Async) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.ch)
		select {
		case <-a.done:
		case <-time.After(defaultDrainTimeout):
			slog.Warn("async output drain timed out", "pending", len(a.ch))
		}
		err = a.inner.Close()
	})
	return err
}

func (a *Async) drain() {
	defer close(a.done)
	for rec := range a.ch {
		if err := a.inner.Write(context.Background(), rec); err != nil {
			a.onError(err)
		}
	}
}
