package jobs

import (
	"errors"
	"testing"

	"ncm-converter/internal/domain"
)

// TestManagerLifecycle verifies normal progression to completed state.
func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	if m.IsRunning() {
		t.Fatal("new manager should be idle")
	}

	run, err := m.Start("run-1", 2, "/out")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if run.Status != domain.RunStatusRunning || run.Total != 2 {
		t.Fatalf("unexpected run: %+v", run)
	}
	if !m.IsRunning() {
		t.Fatal("expected running after start")
	}

	if err := m.Advance(1, 50); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := m.Advance(2, 100); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := m.Complete(); err != nil {
		t.Fatalf("complete: %v", err)
	}

	current := m.Current()
	if current.Status != domain.RunStatusCompleted || current.Progress != 100 {
		t.Fatalf("current = %+v, want completed at 100%%", current)
	}
}

// TestManagerRejectsConcurrentStart checks the single active run guard.
func TestManagerRejectsConcurrentStart(t *testing.T) {
	m := NewManager()
	if _, err := m.Start("run-1", 1, "/out"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.Start("run-2", 1, "/out"); !errors.Is(err, ErrRunAlreadyActive) {
		t.Fatalf("second start error = %v, want %v", err, ErrRunAlreadyActive)
	}

	if err := m.Complete(); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := m.Start("run-2", 1, "/out"); err != nil {
		t.Fatalf("restart after completion: %v", err)
	}
}

// TestManagerRejectsInvalidTransition checks state machine constraints.
func TestManagerRejectsInvalidTransition(t *testing.T) {
	m := NewManager()
	if err := m.Complete(); !errors.Is(err, ErrNoActiveRun) {
		t.Fatalf("complete from idle error = %v, want %v", err, ErrNoActiveRun)
	}
	if err := m.Advance(1, 10); !errors.Is(err, ErrNoActiveRun) {
		t.Fatalf("advance from idle error = %v, want %v", err, ErrNoActiveRun)
	}
	if _, err := m.Start("", 1, "/out"); err == nil {
		t.Fatal("expected error for empty run id")
	}
}

// TestManagerRejectsDecreasingProgress checks monotone progress.
func TestManagerRejectsDecreasingProgress(t *testing.T) {
	m := NewManager()
	if _, err := m.Start("run-1", 4, "/out"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Advance(2, 50); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := m.Advance(1, 25); err == nil {
		t.Fatal("expected error for decreasing progress")
	}
}
