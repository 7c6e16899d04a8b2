package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/crimson-sun/politeguard/internal/config"
	"github.com/crimson-sun/politeguard/internal/model"
	"github.com/crimson-sun/politeguard/internal/output/file"
	"github.com/crimson-sun/politeguard/internal/output/multi"
	"github.com/crimson-sun/politeguard/internal/output/stdout"
	"github.com/crimson-sun/politeguard/pkg/politeguard"
)

// keywordAnalyzer returns the level mapped to the first matching keyword,
// Neutral otherwise.
type keywordAnalyzer struct {
	levels map[string]politeguard.Level
	err    error
}

func (k keywordAnalyzer) Analyze(_ context.Context, text string) (politeguard.Response, error) {
	if k.err != nil {
		return politeguard.Response{}, k.err
	}
	lvl := politeguard.Neutral
	for kw, l := range k.levels {
		if strings.Contains(text, kw) {
			lvl = l
			break
		}
	}
	return politeguard.Response{Level: lvl, Description: politeguard.Description(lvl)}, nil
}

var referenceAnalyzer = keywordAnalyzer{levels: map[string]politeguard.Level{
	"Thank you":  politeguard.Polite,
	"appreciate": politeguard.SomewhatPolite,
	"no idea":    politeguard.Impolite,
}}

func TestRunSelftestAllPass(t *testing.T) {
	var buf bytes.Buffer
	failed, err := runSelftest(context.Background(), &buf, referenceAnalyzer, selftestCases)
	if err != nil {
		t.Fatalf("runSelftest() error: %v", err)
	}
	if failed != 0 {
		t.Errorf("failed = %d, want 0\n%s", failed, buf.String())
	}
	out := buf.String()
	if strings.Count(out, "PASS") != 4 {
		t.Errorf("expected 4 PASS lines:\n%s", out)
	}
	if !strings.Contains(out, "Total: 4  Passed: 4  Failed: 0") {
		t.Errorf("missing summary:\n%s", out)
	}
}

func TestRunSelftestCountsFailures(t *testing.T) {
	var buf bytes.Buffer
	// Everything Neutral: only the neutral reference sentence passes.
	failed, err := runSelftest(context.Background(), &buf, keywordAnalyzer{}, selftestCases)
	if err != nil {
		t.Fatalf("runSelftest() error: %v", err)
	}
	if failed != 3 {
		t.Errorf("failed = %d, want 3", failed)
	}
	if !strings.Contains(buf.String(), "Failed: 3") {
		t.Errorf("missing summary:\n%s", buf.String())
	}
}

func TestRunSelftestAnalyzerError(t *testing.T) {
	boom := errors.New("session gone")
	_, err := runSelftest(context.Background(), &bytes.Buffer{}, keywordAnalyzer{err: boom}, selftestCases)
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}

func TestSelftestCasesCoverEveryLevel(t *testing.T) {
	seen := map[politeguard.Level]bool{}
	for _, tc := range selftestCases {
		seen[tc.want] = true
	}
	if len(seen) != 4 {
		t.Errorf("cases cover %d levels, want 4", len(seen))
	}
}

func TestRecordFunc(t *testing.T) {
	fn := recordFunc(referenceAnalyzer)
	rec, err := fn(context.Background(), "Thank you!")
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if rec.Level != model.Polite {
		t.Errorf("Level = %v, want Polite", rec.Level)
	}
	if rec.Description != politeguard.Description(politeguard.Polite) {
		t.Errorf("Description = %q", rec.Description)
	}
}

func TestBuildOutputStdout(t *testing.T) {
	out, err := buildOutput(config.OutputConfig{}, "run-1")
	if err != nil {
		t.Fatalf("buildOutput() error: %v", err)
	}
	if _, ok := out.(*stdout.Output); !ok {
		t.Errorf("got %T, want *stdout.Output", out)
	}
}

func TestBuildOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson")
	out, err := buildOutput(config.OutputConfig{File: path, Redact: true}, "run-1")
	if err != nil {
		t.Fatalf("buildOutput() error: %v", err)
	}
	if _, ok := out.(*file.Output); !ok {
		t.Errorf("got %T, want *file.Output", out)
	}

	if err := out.Write(context.Background(), model.Record{Text: "secret", Level: model.Neutral}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret") {
		t.Errorf("redact not applied: %s", data)
	}
}

func TestBuildOutputWithWebhook(t *testing.T) {
	out, err := buildOutput(config.OutputConfig{WebhookURL: "http://127.0.0.1:1/hook"}, "run-1")
	if err != nil {
		t.Fatalf("buildOutput() error: %v", err)
	}
	if _, ok := out.(*multi.Multi); !ok {
		t.Errorf("got %T, want *multi.Multi", out)
	}
	// Nothing queued, so Close does not touch the network.
	if err := out.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestBuildOutputBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.ndjson")
	if _, err := buildOutput(config.OutputConfig{File: path}, "run-1"); err == nil {
		t.Fatal("expected error for unwritable path")
	}
}

func TestBuildOutputBadFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	if _, err := buildOutput(config.OutputConfig{File: path, Format: "xml"}, "run-1"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWebhookCarriesRunID(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get(runIDHeader)
	}))
	defer srv.Close()

	out, err := buildOutput(config.OutputConfig{WebhookURL: srv.URL}, "run-42")
	if err != nil {
		t.Fatalf("buildOutput() error: %v", err)
	}
	if err := out.Write(context.Background(), model.Record{Level: model.Polite}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	select {
	case id := <-got:
		if id != "run-42" {
			t.Errorf("%s = %q, want run-42", runIDHeader, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not called")
	}
}

// closeFailOutput discards records and fails on Close.
type closeFailOutput struct {
	closed bool
	err    error
}

func (c *closeFailOutput) Write(context.Context, model.Record) error { return nil }

func (c *closeFailOutput) Close() error {
	c.closed = true
	return c.err
}

func TestAnalyzeReportsCloseErrorWhenAnalyzerFails(t *testing.T) {
	t.Setenv("POLITEGUARD_CONFIG", "")
	t.Setenv("POLITEGUARD_MODEL_PATH", filepath.Join(t.TempDir(), "absent.onnx"))

	flushErr := errors.New("flush failed")
	out := &closeFailOutput{err: flushErr}
	a := &app{cfg: config.Default()}

	err := a.analyzeTo(context.Background(), slog.Default(), out, []string{"hello"}, false)
	if !errors.Is(err, politeguard.ErrModelNotFound) {
		t.Errorf("error = %v, want ErrModelNotFound", err)
	}
	if !errors.Is(err, flushErr) {
		t.Errorf("error = %v, want it to include the close error", err)
	}
	if !out.closed {
		t.Error("output not closed")
	}
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"analyze", "check", "selftest"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestCheckReportsMissingModel(t *testing.T) {
	t.Setenv("POLITEGUARD_CONFIG", "")
	t.Setenv("POLITEGUARD_MODEL_PATH", filepath.Join(t.TempDir(), "absent.onnx"))

	var buf bytes.Buffer
	root := newRootCmd()
	root.SetOut(&buf)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"check"})

	err := root.ExecuteContext(context.Background())
	if !errors.Is(err, politeguard.ErrModelNotFound) {
		t.Fatalf("error = %v, want ErrModelNotFound", err)
	}
	if got := buf.String(); got != "state: NotReady\n" {
		t.Errorf("output = %q", got)
	}
}

func TestAnalyzeRejectsBadWorkers(t *testing.T) {
	t.Setenv("POLITEGUARD_CONFIG", "")
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"analyze", "--workers", "0", "hello"})

	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatal("expected validation error")
	}
}
