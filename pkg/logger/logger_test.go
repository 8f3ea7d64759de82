package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf).Named("ledger")
	_ = SetLevelString("info")

	l.Info(context.Background(), "event appended", String("player", "P1"), Float64("points", 5), Error(errors.New("boom")))

	out := buf.String()
	for _, want := range []string{"event appended", "player=P1", "points=5", "error=boom", "logger=ledger", "source="} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestLoggerNamedNesting(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Named("app").Named("reload").Warn(context.Background(), "reload failed")
	if !strings.Contains(buf.String(), "logger=app.reload") {
		t.Errorf("expected nested name, got %q", buf.String())
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	if err := SetLevelString("warn"); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = SetLevelString("info") }()

	l.Debug(context.Background(), "hidden")
	l.Info(context.Background(), "hidden too")
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got %q", buf.String())
	}
	l.Error(context.Background(), "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected error record, got %q", buf.String())
	}
}

func TestSetLevelStringRejectsUnknown(t *testing.T) {
	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNopDiscards(t *testing.T) {
	Nop().Info(context.Background(), "nothing")
}
