package diagnostics

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"ncm-converter/internal/domain"
)

// Checker validates the decoder tool and the output directory.
type Checker struct {
	lookPath func(string) (string, error)
	dir      dirOps
}

// dirOps are the filesystem calls the output directory check makes.
type dirOps struct {
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// Option replaces a Checker dependency.
type Option func(*Checker)

// WithLookPath replaces the executable lookup used for the decoder check.
func WithLookPath(lookPath func(string) (string, error)) Option {
	return func(c *Checker) {
		c.lookPath = lookPath
	}
}

// WithCreateTemp replaces the call that places the scratch file in the output directory.
func WithCreateTemp(createTemp func(string, string) (*os.File, error)) Option {
	return func(c *Checker) {
		c.dir.createTemp = createTemp
	}
}

// WithMkdirAll replaces the call that creates a missing output directory.
func WithMkdirAll(mkdirAll func(string, os.FileMode) error) Option {
	return func(c *Checker) {
		c.dir.mkdirAll = mkdirAll
	}
}

// NewChecker builds a checker on the real filesystem and PATH.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		lookPath: exec.LookPath,
		dir: dirOps{
			mkdirAll:   os.MkdirAll,
			createTemp: os.CreateTemp,
			remove:     os.Remove,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkDecoder(settings.DecoderPath),
		c.checkOutputDir(settings.OutputDir),
	}

	report := domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		Items:       items,
	}
	report.HasFailures = len(report.Failed()) > 0
	return report
}

// checkDecoder verifies the decoder executable resolves on PATH or as a path.
func (c *Checker) checkDecoder(name string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "decoder",
		Name: "Decoder",
	}

	name = strings.TrimSpace(name)
	if name == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Decoder executable is not configured."
		item.Hint = "Set decoder.binary in the config file or NCMCONV_DECODER."
		return item
	}

	path, err := c.lookPath(name)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Decoder not found: %s", name)
		item.Hint = "Install ncmdump and ensure the binary is available on PATH before starting a conversion."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s", path)
	return item
}

// scratchPattern names the throwaway file used to confirm decoded files can land in the output directory.
const scratchPattern = ".ncmconv-scratch-*"

// checkOutputDir creates the output directory when missing and confirms a
// file can be written there.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "output_dir",
		Name: "Output directory",
	}

	outputDir = strings.TrimSpace(outputDir)
	if outputDir == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "No output directory selected."
		item.Hint = "Pick a folder for converted audio, or set output.dir in the config file."
		return item
	}

	if err := c.dir.writable(outputDir); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Converted files cannot be saved to %s: %v", outputDir, err)
		item.Hint = "Pick another folder for converted audio or fix its permissions."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Converted files will be saved to %s", outputDir)
	return item
}

// writable creates dir if needed and writes, then deletes, a scratch file in it.
func (d dirOps) writable(dir string) error {
	if err := d.mkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	f, err := d.createTemp(dir, scratchPattern)
	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = d.remove(name)
		return fmt.Errorf("write file: %w", err)
	}
	if err := d.remove(name); err != nil {
		return fmt.Errorf("clean up scratch file: %w", err)
	}
	return nil
}
