package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"ncm-converter/internal/domain"
)

// ErrRunAlreadyActive is returned when starting a second active run.
var ErrRunAlreadyActive = errors.New("conversion run already active")

// ErrNoActiveRun is returned when a running-only operation is requested for idle state.
var ErrNoActiveRun = errors.New("no active conversion run")

// Manager tracks the single allowed active run and its transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Run
	now     func() time.Time
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Run{Status: domain.RunStatusIdle},
		now:     time.Now,
	}
}

// Start creates a new run and moves it to running state.
func (m *Manager) Start(runID string, total int, outputDir string) (domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Status == domain.RunStatusRunning {
		return domain.Run{}, ErrRunAlreadyActive
	}
	if runID == "" {
		return domain.Run{}, fmt.Errorf("run id is required")
	}
	if !isValidTransition(m.current.Status, domain.RunStatusRunning) {
		return domain.Run{}, fmt.Errorf("invalid transition: %s -> %s", m.current.Status, domain.RunStatusRunning)
	}

	m.current = domain.Run{
		ID:        runID,
		Status:    domain.RunStatusRunning,
		Total:     total,
		OutputDir: outputDir,
		StartedAt: m.now().UTC(),
	}
	return m.current, nil
}

// Advance records how many jobs of the active run have finished.
func (m *Manager) Advance(done, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Status != domain.RunStatusRunning {
		return ErrNoActiveRun
	}
	if done < m.current.Done || progress < m.current.Progress {
		return fmt.Errorf("progress cannot decrease: %d%% -> %d%%", m.current.Progress, progress)
	}
	m.current.Done = done
	m.current.Progress = progress
	return nil
}

// Complete moves the active run to completed state.
func (m *Manager) Complete() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isValidTransition(m.current.Status, domain.RunStatusCompleted) {
		return ErrNoActiveRun
	}
	m.current.Status = domain.RunStatusCompleted
	return nil
}

// Current returns a snapshot of the current run.
func (m *Manager) Current() domain.Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsRunning reports whether a run is active.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Status == domain.RunStatusRunning
}

// isValidTransition enforces the allowed run state machine edges.
func isValidTransition(from, to domain.RunStatus) bool {
	switch from {
	case domain.RunStatusIdle, domain.RunStatusCompleted:
		return to == domain.RunStatusRunning
	case domain.RunStatusRunning:
		return to == domain.RunStatusCompleted
	default:
		return false
	}
}
