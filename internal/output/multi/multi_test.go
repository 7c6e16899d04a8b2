package multi

import (
	"context"
	"errors"
	"testing"

	"github.com/crimson-sun/politeguard/internal/model"
)

type mockOutput struct {
	records []model.Record
	closed  bool
	err     error
}

func (m *mockOutput) Write(_ context.Context, rec model.Record) error {
	m.records = append(m.records, rec)
	return m.err
}

func (m *mockOutput) Close() error {
	m.closed = true
	return m.err
}

func TestWriteReachesEveryOutput(t *testing.T) {
	a, b := &mockOutput{}, &mockOutput{}
	m := New(a, b)

	rec := model.Record{Index: 3, Text: "Thank you!", Level: model.Polite}
	if err := m.Write(context.Background(), rec); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	for name, out := range map[string]*mockOutput{"a": a, "b": b} {
		if len(out.records) != 1 || out.records[0].Index != 3 {
			t.Errorf("output %s got %+v", name, out.records)
		}
	}
}

func TestWriteContinuesPastFailure(t *testing.T) {
	broken := &mockOutput{err: errors.New("disk full")}
	ok := &mockOutput{}
	m := New(broken, ok)

	if err := m.Write(context.Background(), model.Record{Level: model.Neutral}); err == nil {
		t.Fatal("expected joined error")
	}
	if len(ok.records) != 1 {
		t.Errorf("healthy output got %d records, want 1", len(ok.records))
	}
}

func TestCloseJoinsErrors(t *testing.T) {
	errA, errB := errors.New("a"), errors.New("b")
	a := &mockOutput{err: errA}
	b := &mockOutput{err: errB}

	err := New(a, b).Close()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Close() = %v, want both errors", err)
	}
	if !a.closed || !b.closed {
		t.Error("not every output was closed")
	}
}

func TestEmpty(t *testing.T) {
	m := New()
	if err := m.Write(context.Background(), model.Record{}); err != nil {
		t.Errorf("Write() error: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
