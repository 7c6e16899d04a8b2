package politeguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/crimson-sun/politeguard/internal/engine"
	"github.com/crimson-sun/politeguard/internal/engine/classifier"
	"github.com/crimson-sun/politeguard/internal/engine/inference"
)

var (
	// ErrClosed is returned by Analyze after Close.
	ErrClosed = errors.New("politeguard: analyzer closed")
	// ErrNotInitialized is returned by Analyze on an Analyzer not built by New.
	ErrNotInitialized = errors.New("politeguard: analyzer not initialized")
)

// Analyzer classifies text with its own inference session. Safe for
// concurrent use; independent of other Analyzers.
type Analyzer struct {
	mu      sync.RWMutex
	engine  *engine.Engine
	session engine.Session
	closed  bool
}

// New ensures the shared resources are ready and opens a dedicated inference
// session. The caller must Close the Analyzer.
func New(ctx context.Context, opts ...Option) (*Analyzer, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sh, err := coordinator.EnsureReady(ctx)
	if err != nil {
		return nil, fmt.Errorf("politeguard: %w", err)
	}
	o = o.resolve(sh)

	sess, err := sh.openSession(inference.SessionOptions{
		IntraOpThreads: o.intraOpThreads,
		InterOpThreads: o.interOpThreads,
	})
	if err != nil {
		return nil, fmt.Errorf("politeguard: %w", err)
	}

	return &Analyzer{
		engine:  engine.New(sh.tokenizer, sess, o.maxSequenceLength),
		session: sess,
	}, nil
}

// Analyze classifies text. Blank text returns Neutral with "No text to
// analyze" without running the model.
func (a *Analyzer) Analyze(ctx context.Context, text string) (Response, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return Response{}, ErrClosed
	}
	if a.engine == nil {
		return Response{}, ErrNotInitialized
	}
	if strings.TrimSpace(text) == "" {
		return Response{Level: Neutral, Description: classifier.NoTextDescription}, nil
	}
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	start := time.Now()
	pred, err := a.engine.Process(text)
	if err != nil {
		return Response{}, fmt.Errorf("politeguard: %w", err)
	}
	elapsed := time.Since(start)

	return Response{
		Level:         pred.Level,
		Description:   classifier.Describe(pred.Level),
		InferenceTime: elapsed,
	}, nil
}

// Close releases the inference session after in-flight Analyze calls finish.
// Calls after the first are no-ops.
func (a *Analyzer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	if a.session == nil {
		return nil
	}
	if err := a.session.Close(); err != nil {
		slog.Warn("failed to release inference session", "error", err)
		return fmt.Errorf("politeguard: %w", err)
	}
	return nil
}
