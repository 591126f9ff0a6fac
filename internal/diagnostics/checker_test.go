package diagnostics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ncm-converter/internal/domain"
)

func foundOnPath(name string) (string, error) {
	return "/usr/local/bin/" + name, nil
}

// TestCheckerRunAllPass validates happy-path diagnostics report.
func TestCheckerRunAllPass(t *testing.T) {
	outputDir := filepath.Join(t.TempDir(), "output")
	checker := NewChecker(WithLookPath(foundOnPath))

	report := checker.Run(domain.Settings{
		DecoderPath: "ncmdump",
		OutputDir:   outputDir,
	})

	if report.HasFailures {
		t.Fatalf("expected no failures, got %+v", report.Items)
	}
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("scratch file left behind: %v", entries)
	}
}

// TestCheckerRunMissingToolAndOutputDir validates failure reporting.
func TestCheckerRunMissingToolAndOutputDir(t *testing.T) {
	checker := NewChecker(WithLookPath(func(string) (string, error) { return "", errors.New("not found") }))

	report := checker.Run(domain.Settings{
		DecoderPath: "ncmdump",
		OutputDir:   "  ",
	})

	if !report.HasFailures {
		t.Fatal("expected failures")
	}

	assertStatusByID(t, report, "decoder", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "output_dir", domain.DiagnosticStatusFail)
	if got := len(report.Failed()); got != 2 {
		t.Fatalf("failed items = %d, want 2", got)
	}
}

// TestCheckerRunEmptyDecoderFails validates decoder configuration check.
func TestCheckerRunEmptyDecoderFails(t *testing.T) {
	checker := NewChecker(WithLookPath(func(name string) (string, error) {
		t.Fatalf("lookPath must not be called for empty decoder")
		return "", nil
	}))

	report := checker.Run(domain.Settings{OutputDir: t.TempDir()})
	assertStatusByID(t, report, "decoder", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "output_dir", domain.DiagnosticStatusPass)
}

// TestCheckerRunUnwritableOutputDirFails validates the scratch write check.
func TestCheckerRunUnwritableOutputDirFails(t *testing.T) {
	checker := NewChecker(
		WithLookPath(foundOnPath),
		WithCreateTemp(func(string, string) (*os.File, error) { return nil, os.ErrPermission }),
	)

	report := checker.Run(domain.Settings{DecoderPath: "ncmdump", OutputDir: t.TempDir()})
	item := assertStatusByID(t, report, "output_dir", domain.DiagnosticStatusFail)
	if !strings.Contains(item.Message, "write file") {
		t.Fatalf("message = %q, want write failure", item.Message)
	}
}

// TestCheckerRunUncreatableOutputDirFails validates the directory creation step.
func TestCheckerRunUncreatableOutputDirFails(t *testing.T) {
	checker := NewChecker(
		WithLookPath(foundOnPath),
		WithMkdirAll(func(string, os.FileMode) error { return os.ErrPermission }),
		WithCreateTemp(func(string, string) (*os.File, error) {
			t.Fatal("createTemp must not run when the directory cannot be created")
			return nil, nil
		}),
	)

	report := checker.Run(domain.Settings{DecoderPath: "ncmdump", OutputDir: filepath.Join(t.TempDir(), "out")})
	item := assertStatusByID(t, report, "output_dir", domain.DiagnosticStatusFail)
	if !strings.Contains(item.Message, "create directory") {
		t.Fatalf("message = %q, want create failure", item.Message)
	}
}

// assertStatusByID checks status for one diagnostic item by ID and returns it.
func assertStatusByID(t *testing.T, report domain.DiagnosticReport, id string, want domain.DiagnosticStatus) domain.DiagnosticItem {
	t.Helper()
	for _, item := range report.Items {
		if item.ID == id {
			if item.Status != want {
				t.Fatalf("item %s: got %s, want %s", id, item.Status, want)
			}
			return item
		}
	}
	t.Fatalf("diagnostic item not found: %s", id)
	return domain.DiagnosticItem{}
}
