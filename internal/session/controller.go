// Package session holds the state of one interactive converter session and
// the trigger surface front ends call: add/clear files, choose the output
// directory, start a run, open the output directory.
//
// Runs execute on their own goroutine and report through the EventBus. At
// most one run is active per Controller; an optional file lock extends that
// across processes.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"ncm-converter/internal/convert"
	"ncm-converter/internal/domain"
	"ncm-converter/internal/jobs"
	"ncm-converter/internal/logging"
	"ncm-converter/internal/runlock"
)

// Options configures optional Controller collaborators.
type Options struct {
	Logger *slog.Logger
	// Lock, when set, is held for the duration of every run.
	Lock *runlock.Lock
	// OnEvent is called after each event is stored on the bus, in sequence
	// order. It must not call back into the Controller.
	OnEvent func(jobs.Event)
	// Open launches a file manager for a directory. Defaults to OpenInFileManager.
	Open func(path string) error
	// MaxEvents bounds the event history.
	MaxEvents int
	NewRunID  func() string
}

// Controller owns the pending files, output directory and run state.
type Controller struct {
	files        *jobs.Collection
	runs         *jobs.Manager
	events       *jobs.EventBus
	orchestrator *convert.Orchestrator

	logger   *slog.Logger
	lock     *runlock.Lock
	onEvent  func(jobs.Event)
	open     func(string) error
	newRunID func() string

	startMu sync.Mutex
	pubMu   sync.Mutex
	wg      sync.WaitGroup

	mu          sync.Mutex
	lastSummary *convert.Summary
}

// New builds a controller around an orchestrator.
func New(orchestrator *convert.Orchestrator, opts Options) *Controller {
	c := &Controller{
		files:        jobs.NewCollection(),
		runs:         jobs.NewManager(),
		events:       jobs.NewEventBus(opts.MaxEvents),
		orchestrator: orchestrator,
		logger:       opts.Logger,
		lock:         opts.Lock,
		onEvent:      opts.OnEvent,
		open:         opts.Open,
		newRunID:     opts.NewRunID,
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	if c.open == nil {
		c.open = OpenInFileManager
	}
	if c.newRunID == nil {
		c.newRunID = uuid.NewString
	}
	return c
}

// AddFiles enqueues input paths, skipping ones already pending, and returns how many were added.
func (c *Controller) AddFiles(paths ...string) int {
	added := c.files.Add(paths...)
	c.logger.Info("files added", "requested", len(paths), "added", added, "pending", c.files.Len())
	c.publish(jobs.Event{
		Type:    jobs.EventTypeLog,
		Message: fmt.Sprintf("added %d file(s)", added),
	})
	return added
}

// ClearFiles empties the pending set.
func (c *Controller) ClearFiles() {
	c.files.Clear()
	c.logger.Info("file list cleared")
	c.publish(jobs.Event{Type: jobs.EventTypeLog, Message: "file list cleared"})
}

// Files returns the pending input paths.
func (c *Controller) Files() []string {
	return c.files.Snapshot()
}

// SetOutputDir chooses the directory decoded files are written to.
func (c *Controller) SetOutputDir(dir string) {
	c.files.SetOutputDir(dir)
	c.logger.Info("output directory set", "output_dir", c.files.OutputDir())
	c.publish(jobs.Event{
		Type:    jobs.EventTypeLog,
		Message: "output directory set to " + c.files.OutputDir(),
	})
}

// OutputDir returns the chosen output directory.
func (c *Controller) OutputDir() string {
	return c.files.OutputDir()
}

// StartRun validates preconditions synchronously and starts a background run
// over a snapshot of the pending files. It fails with an error wrapping
// jobs.ErrPreconditionNotMet, jobs.ErrRunAlreadyActive or runlock.ErrLocked
// without starting any work.
func (c *Controller) StartRun() (domain.Run, error) {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	batch, outputDir, err := c.files.Batch()
	if err != nil {
		c.logger.Warn("conversion not started", "error", err)
		return domain.Run{}, err
	}
	if c.runs.IsRunning() {
		return domain.Run{}, jobs.ErrRunAlreadyActive
	}

	if c.lock != nil {
		if err := c.lock.Acquire(); err != nil {
			c.logger.Warn("conversion not started", "error", err)
			return domain.Run{}, err
		}
	}

	run, err := c.runs.Start(c.newRunID(), len(batch), outputDir)
	if err != nil {
		c.releaseLock()
		return domain.Run{}, err
	}

	c.logger.Info("conversion started", "run_id", run.ID, "jobs", len(batch), "output_dir", outputDir)
	c.publish(jobs.Event{
		RunID:   run.ID,
		Type:    jobs.EventTypeLog,
		Message: fmt.Sprintf("conversion started: %d file(s)", len(batch)),
	})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		sink := &busSink{controller: c, runID: run.ID}
		for ev := range c.orchestrator.Stream(context.Background(), batch, outputDir) {
			sink.dispatch(ev)
		}
	}()

	return run, nil
}

// Wait blocks until the active run, if any, has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// CurrentRun returns the state of the active or most recent run.
func (c *Controller) CurrentRun() domain.Run {
	return c.runs.Current()
}

// LastSummary returns the summary of the most recent finished run.
func (c *Controller) LastSummary() (convert.Summary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastSummary == nil {
		return convert.Summary{}, false
	}
	return *c.lastSummary, true
}

// Events returns stored events with sequence greater than since.
func (c *Controller) Events(since int64) []jobs.Event {
	return c.events.Since(since)
}

// Subscribe registers a push consumer for future events.
func (c *Controller) Subscribe() (<-chan jobs.Event, func()) {
	return c.events.Subscribe()
}

// OpenOutputDir opens the chosen output directory in the platform file manager.
func (c *Controller) OpenOutputDir() error {
	target := c.files.OutputDir()
	if target == "" {
		return fmt.Errorf("output directory is not set")
	}
	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output path is not a directory: %s", target)
	}
	return c.open(target)
}

// publish stores event and forwards it to OnEvent. Both happen under pubMu so
// the hook observes events in Seq order whichever goroutine publishes.
func (c *Controller) publish(event jobs.Event) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	published := c.events.Publish(event)
	if c.onEvent != nil {
		c.onEvent(published)
	}
}

func (c *Controller) releaseLock() {
	if c.lock == nil {
		return
	}
	if err := c.lock.Release(); err != nil {
		c.logger.Warn("failed to release run lock", "path", c.lock.Path(), "error", err)
	}
}

// finish records the summary and frees the run slot before run_finished is published,
// so a consumer reacting to that event can start the next run.
func (c *Controller) finish(summary convert.Summary) {
	c.mu.Lock()
	c.lastSummary = &summary
	c.mu.Unlock()

	if err := c.runs.Complete(); err != nil {
		c.logger.Warn("run state out of sync", "error", err)
	}
	c.releaseLock()
}
