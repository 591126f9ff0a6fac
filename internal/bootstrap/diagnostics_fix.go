package bootstrap

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"ncm-converter/internal/domain"
)

// FixDiagnostic applies the local remediation for one failed diagnostic item
// and returns the refreshed report.
func (a *App) FixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	var fixErr error
	switch id {
	case "decoder":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return domain.DiagnosticReport{}, fmt.Errorf("resolve user home: %w", err)
		}
		fixErr = fixDecoder(homeDir, a.decoderBinary())
	case "output_dir":
		fixErr = fixOutputDir(a.Session.OutputDir())
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	report := a.RefreshDiagnostics()
	if fixErr != nil {
		return report, fixErr
	}
	return report, nil
}

func (a *App) decoderBinary() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings.DecoderPath
}

func ensureLocalBinOnPATH(homeDir string) error {
	binDir := localBinDir(homeDir)
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}

	current := os.Getenv("PATH")
	for _, entry := range filepath.SplitList(current) {
		if filepath.Clean(entry) == filepath.Clean(binDir) {
			return nil
		}
	}

	if current == "" {
		return os.Setenv("PATH", binDir)
	}
	return os.Setenv("PATH", binDir+string(os.PathListSeparator)+current)
}

func localBinDir(homeDir string) string {
	return filepath.Join(homeDir, ".ncmconv", "bin")
}

// fixDecoder re-adds the local tool directory to PATH and reports where to
// place the decoder when it still cannot be resolved.
func fixDecoder(homeDir, binary string) error {
	if err := ensureLocalBinOnPATH(homeDir); err != nil {
		return fmt.Errorf("prepare local tool path: %w", err)
	}
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return fmt.Errorf("decoder executable is not configured")
	}
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("decoder %s not found; install it or copy it into %s", binary, localBinDir(homeDir))
	}
	return nil
}

func fixOutputDir(outputDir string) error {
	outputDir = strings.TrimSpace(outputDir)
	if outputDir == "" {
		return fmt.Errorf("output directory is not set")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", outputDir, err)
	}
	return nil
}
