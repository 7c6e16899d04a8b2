// Package readiness guards one-time construction of process-wide resources.
//
// A Coordinator moves NotReady → Initializing → Ready. Concurrent callers
// share a single in-flight attempt. A failed attempt returns the coordinator
// to NotReady so a later call can retry; a successful one is cached forever.
package readiness

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// State is the readiness of a Coordinator.
type State int

const (
	NotReady State = iota
	Initializing
	Ready
)

func (s State) String() string {
	switch s {
	case NotReady:
		return "NotReady"
	case Initializing:
		return "Initializing"
	case Ready:
		return "Ready"
	default:
		return "Unknown"
	}
}

// InitFunc builds the shared resources. It runs at most once at a time and,
// after a success, never again.
type InitFunc[T any] func(ctx context.Context) (T, error)

// Coordinator runs an InitFunc on demand with single-flight semantics.
type Coordinator[T any] struct {
	name string
	init InitFunc[T]

	mu       sync.Mutex
	state    State
	value    T
	attempts int

	sf singleflight.Group
}

// New creates a Coordinator in the NotReady state. name identifies it in logs.
func New[T any](name string, init InitFunc[T]) *Coordinator[T] {
	return &Coordinator[T]{name: name, init: init}
}

// State returns a snapshot of the current state without blocking on
// initialization.
func (c *Coordinator[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns how many times the InitFunc has been started.
func (c *Coordinator[T]) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// EnsureReady returns the shared resources, initializing them if needed.
// Every caller that joins an attempt receives that attempt's value or error.
// If ctx ends first the caller stops waiting, but the attempt continues for
// the remaining waiters.
func (c *Coordinator[T]) EnsureReady(ctx context.Context) (T, error) {
	c.mu.Lock()
	if c.state == Ready {
		v := c.value
		c.mu.Unlock()
		return v, nil
	}
	if c.state == NotReady {
		c.state = Initializing
		c.attempts++
	}
	attempt := c.attempts
	// Keying the flight by attempt keeps a caller from joining an attempt
	// that has already failed.
	ch := c.sf.DoChan(strconv.Itoa(attempt), func() (any, error) {
		// The attempt must outlive any single caller's context.
		return c.run(context.WithoutCancel(ctx), attempt)
	})
	c.mu.Unlock()

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		v, _ := res.Val.(T)
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// run executes one attempt. The caller has already moved the state to
// Initializing.
func (c *Coordinator[T]) run(ctx context.Context, attempt int) (T, error) {
	slog.Debug("initializing shared resources", "component", c.name, "attempt", attempt)
	start := time.Now()

	v, err := c.callInit(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = NotReady
		slog.Warn("initialization failed", "component", c.name, "attempt", attempt, "error", err)
		var zero T
		return zero, err
	}
	c.state = Ready
	c.value = v
	slog.Info("shared resources ready", "component", c.name, "elapsed", time.Since(start))
	return v, nil
}

// callInit converts a panicking InitFunc into an error so the coordinator
// can return to NotReady.
func (c *Coordinator[T]) callInit(ctx context.Context) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("readiness: %s init panicked: %v", c.name, r)
		}
	}()
	return c.init(ctx)
}
