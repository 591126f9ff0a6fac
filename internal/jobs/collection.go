package jobs

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"ncm-converter/internal/domain"
)

// ErrPreconditionNotMet is returned when a run is requested without files or output directory.
var ErrPreconditionNotMet = errors.New("run precondition not met")

// ErrNoFiles is returned when a run is requested with an empty collection.
var ErrNoFiles = fmt.Errorf("%w: no files selected", ErrPreconditionNotMet)

// ErrNoOutputDir is returned when a run is requested before an output directory is chosen.
var ErrNoOutputDir = fmt.Errorf("%w: output directory not set", ErrPreconditionNotMet)

// Collection is the deduplicated set of pending input paths plus the chosen output directory.
// Paths are compared as literal strings; no normalization is applied.
type Collection struct {
	mu        sync.RWMutex
	order     []string
	seen      map[string]struct{}
	outputDir string
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{seen: make(map[string]struct{})}
}

// Add inserts paths not already present and returns how many were added.
func (c *Collection) Add(paths ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if _, ok := c.seen[path]; ok {
			continue
		}
		c.seen[path] = struct{}{}
		c.order = append(c.order, path)
		added++
	}
	return added
}

// Clear removes all pending paths. The output directory is kept.
func (c *Collection) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.seen = make(map[string]struct{})
}

// Len returns the number of pending paths.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Snapshot returns an independent copy of the pending paths.
func (c *Collection) Snapshot() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// SetOutputDir records the directory runs write into.
func (c *Collection) SetOutputDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputDir = strings.TrimSpace(dir)
}

// OutputDir returns the chosen output directory, or "" when unset.
func (c *Collection) OutputDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.outputDir
}

// Batch materializes pending jobs and the output directory for one run.
// It fails with an error wrapping ErrPreconditionNotMet when either is missing.
func (c *Collection) Batch() ([]domain.ConversionJob, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.order) == 0 {
		return nil, "", ErrNoFiles
	}
	if c.outputDir == "" {
		return nil, "", ErrNoOutputDir
	}

	batch := make([]domain.ConversionJob, 0, len(c.order))
	for _, path := range c.order {
		batch = append(batch, domain.ConversionJob{
			InputPath: path,
			Status:    domain.JobStatusPending,
		})
	}
	return batch, c.outputDir, nil
}
