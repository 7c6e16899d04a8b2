package politeguard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/crimson-sun/politeguard/internal/engine"
	"github.com/crimson-sun/politeguard/internal/engine/inference"
	"github.com/crimson-sun/politeguard/internal/engine/tokenizer"
	"github.com/crimson-sun/politeguard/internal/readiness"
)

// fakeSession stands in for an ONNX session.
type fakeSession struct {
	logits []float32
	infers atomic.Int32
	closes atomic.Int32
}

func (f *fakeSession) Infer(ids, mask, types []int64) ([]float32, error) {
	f.infers.Add(1)
	if len(ids) != len(mask) || len(ids) != len(types) {
		return nil, errors.New("mismatched input lengths")
	}
	return f.logits, nil
}

func (f *fakeSession) Close() error {
	f.closes.Add(1)
	return nil
}

// fakeRuntime hands out fake sessions and remembers them.
type fakeRuntime struct {
	mu       sync.Mutex
	logits   []float32
	sessions []*fakeSession
	inits    atomic.Int32
}

func (r *fakeRuntime) open(inference.SessionOptions) (engine.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &fakeSession{logits: r.logits}
	r.sessions = append(r.sessions, s)
	return s, nil
}

// useFakeRuntime swaps the process-wide coordinator for one backed by rt.
func useFakeRuntime(t *testing.T, rt *fakeRuntime) {
	t.Helper()
	useCoordinator(t, readiness.New("test", func(context.Context) (*shared, error) {
		rt.inits.Add(1)
		return &shared{
			tokenizer:         tokenizer.New(nil),
			modelPath:         "fake.onnx",
			maxSequenceLength: 64,
			openSession:       rt.open,
		}, nil
	}))
}

func useCoordinator(t *testing.T, c *readiness.Coordinator[*shared]) {
	t.Helper()
	prev := coordinator
	coordinator = c
	t.Cleanup(func() { coordinator = prev })
}

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := New(context.Background())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAnalyzeBlankInput(t *testing.T) {
	rt := &fakeRuntime{logits: []float32{0, 0, 5, 0}}
	useFakeRuntime(t, rt)
	a := newTestAnalyzer(t)

	for _, text := range []string{"", " ", "   \t\n  ", "  "} {
		resp, err := a.Analyze(context.Background(), text)
		if err != nil {
			t.Fatalf("Analyze(%q) error: %v", text, err)
		}
		if resp.Level != Neutral {
			t.Errorf("Analyze(%q).Level = %v, want Neutral", text, resp.Level)
		}
		if resp.Description != "No text to analyze" {
			t.Errorf("Analyze(%q).Description = %q", text, resp.Description)
		}
		if resp.InferenceTime != 0 || resp.InferenceTimeMs() != 0 {
			t.Errorf("Analyze(%q).InferenceTime = %v, want 0", text, resp.InferenceTime)
		}
	}
	if n := rt.sessions[0].infers.Load(); n != 0 {
		t.Errorf("model invoked %d times for blank input, want 0", n)
	}
}

func TestAnalyzeClassifies(t *testing.T) {
	tests := []struct {
		name   string
		logits []float32
		want   Level
	}{
		{"polite", []float32{0, -3, 4, -2}, Polite},
		{"somewhat polite", []float32{0, 3, 0, 0}, SomewhatPolite},
		{"neutral", []float32{4, 0, 0, 0}, Neutral},
		{"impolite", []float32{0, 0, 0, 4}, Impolite},
		{"unsupported class count", []float32{1, 2, 3}, Neutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &fakeRuntime{logits: tt.logits}
			useFakeRuntime(t, rt)
			a := newTestAnalyzer(t)

			resp, err := a.Analyze(context.Background(), "Thank you so much for your help!")
			if err != nil {
				t.Fatalf("Analyze() error: %v", err)
			}
			if resp.Level != tt.want {
				t.Errorf("Level = %v, want %v", resp.Level, tt.want)
			}
			if resp.Description != Description(tt.want) {
				t.Errorf("Description = %q, want %q", resp.Description, Description(tt.want))
			}
			if resp.InferenceTime < 0 {
				t.Errorf("InferenceTime = %v, want >= 0", resp.InferenceTime)
			}
			if n := rt.sessions[0].infers.Load(); n != 1 {
				t.Errorf("model invoked %d times, want 1", n)
			}
		})
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	rt := &fakeRuntime{logits: []float32{0.1, 0.3, 1.2, 0.2}}
	useFakeRuntime(t, rt)
	a := newTestAnalyzer(t)

	text := "I appreciate your patience on this matter."
	first, err := a.Analyze(context.Background(), text)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	second, err := a.Analyze(context.Background(), text)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if first.Level != second.Level || first.Description != second.Description {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
}

func TestAnalyzeConcurrentSameInstance(t *testing.T) {
	rt := &fakeRuntime{logits: []float32{0, 0, 0, 3}}
	useFakeRuntime(t, rt)
	a := newTestAnalyzer(t)

	const n = 32
	var wg sync.WaitGroup
	levels := make([]Level, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := a.Analyze(context.Background(), "This is useless.")
			levels[i], errs[i] = resp.Level, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if levels[i] != Impolite {
			t.Errorf("call %d: Level = %v, want Impolite", i, levels[i])
		}
	}
}

func TestCloseThenAnalyze(t *testing.T) {
	rt := &fakeRuntime{logits: []float32{0, 0, 5, 0}}
	useFakeRuntime(t, rt)

	a, err := New(context.Background())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
	if n := rt.sessions[0].closes.Load(); n != 1 {
		t.Errorf("session closed %d times, want 1", n)
	}

	for _, text := range []string{"Test text", ""} {
		if _, err := a.Analyze(context.Background(), text); !errors.Is(err, ErrClosed) {
			t.Errorf("Analyze(%q) after Close = %v, want ErrClosed", text, err)
		}
	}
}

func TestInstancesIndependent(t *testing.T) {
	rt := &fakeRuntime{logits: []float32{0, 0, 5, 0}}
	useFakeRuntime(t, rt)

	a1 := newTestAnalyzer(t)
	a2 := newTestAnalyzer(t)
	if len(rt.sessions) != 2 {
		t.Fatalf("sessions opened = %d, want 2", len(rt.sessions))
	}

	a1.Close()

	resp, err := a2.Analyze(context.Background(), "Test text")
	if err != nil {
		t.Fatalf("a2.Analyze() after a1.Close() error: %v", err)
	}
	if resp.Level != Polite {
		t.Errorf("Level = %v, want Polite", resp.Level)
	}
	if rt.sessions[1].closes.Load() != 0 {
		t.Error("closing a1 closed a2's session")
	}
	if rt.inits.Load() != 1 {
		t.Errorf("shared init ran %d times, want 1", rt.inits.Load())
	}
}

func TestZeroValueAnalyzer(t *testing.T) {
	var a Analyzer
	if _, err := a.Analyze(context.Background(), "hello"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Analyze() = %v, want ErrNotInitialized", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() on zero value: %v", err)
	}
}

func TestAnalyzeCancelledContext(t *testing.T) {
	rt := &fakeRuntime{logits: []float32{0, 0, 5, 0}}
	useFakeRuntime(t, rt)
	a := newTestAnalyzer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Analyze(ctx, "hello"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Analyze() = %v, want context.Canceled", err)
	}
}

func TestEnsureReadyAndState(t *testing.T) {
	rt := &fakeRuntime{logits: []float32{0, 0, 5, 0}}
	useFakeRuntime(t, rt)

	if ReadyState() != NotReady {
		t.Fatalf("ReadyState() = %v, want NotReady", ReadyState())
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := EnsureReady(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if ReadyState() != Ready {
		t.Errorf("ReadyState() = %v, want Ready", ReadyState())
	}
	if rt.inits.Load() != 1 {
		t.Errorf("shared init ran %d times, want 1", rt.inits.Load())
	}
}

func TestNewPropagatesInitFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), ModelFileName)
	var calls atomic.Int32
	useCoordinator(t, readiness.New("test", func(context.Context) (*shared, error) {
		calls.Add(1)
		_, err := resolveModelPath(missing)
		return nil, err
	}))

	_, err := New(context.Background())
	if !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("New() = %v, want ErrModelNotFound", err)
	}
	if ReadyState() != NotReady {
		t.Errorf("ReadyState() = %v, want NotReady after failure", ReadyState())
	}

	// Retried from scratch on the next call.
	if err := EnsureReady(context.Background()); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("EnsureReady() = %v, want ErrModelNotFound", err)
	}
	if calls.Load() != 2 {
		t.Errorf("init ran %d times, want 2", calls.Load())
	}
}

func TestOptionsResolve(t *testing.T) {
	sh := &shared{maxSequenceLength: 512, intraOpThreads: 4, interOpThreads: 1}

	var o options
	WithThreads(2, 0)(&o)
	WithMaxSequenceLength(128)(&o)
	o = o.resolve(sh)

	if o.intraOpThreads != 2 || o.interOpThreads != 1 || o.maxSequenceLength != 128 {
		t.Errorf("resolved = %+v", o)
	}
}

func TestResolveModelPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ModelFileName)
	if err := os.WriteFile(path, []byte("onnx"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := resolveModelPath(path)
	if err != nil {
		t.Fatalf("resolveModelPath() error: %v", err)
	}
	if got != path {
		t.Errorf("resolveModelPath() = %q, want %q", got, path)
	}

	// A directory is not a model file.
	if _, err := resolveModelPath(dir); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("resolveModelPath(dir) = %v, want ErrModelNotFound", err)
	}
}

func TestResolveModelPathSearchesWorkingDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "models"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "models", ModelFileName), []byte("onnx"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	got, err := resolveModelPath("")
	if err != nil {
		t.Fatalf("resolveModelPath() error: %v", err)
	}
	if filepath.Base(got) != ModelFileName {
		t.Errorf("resolveModelPath() = %q", got)
	}
}

func TestResponseInferenceTimeMs(t *testing.T) {
	r := Response{InferenceTime: 1500 * 1000 * 1000} // 1.5s
	if r.InferenceTimeMs() != 1500 {
		t.Errorf("InferenceTimeMs() = %d, want 1500", r.InferenceTimeMs())
	}
}
