package decoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultBinary is the decoder executable looked up on PATH when none is configured.
const DefaultBinary = "ncmdump"

// audioExtensions lists artifacts accepted from the decoder's work directory.
var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".flac": {},
	".ogg":  {},
	".m4a":  {},
	".wav":  {},
	".aac":  {},
}

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// DecodeError is a stage-aware error with optional command context.
type DecodeError struct {
	Stage      string     `json:"stage"`
	Message    string     `json:"message"`
	CommandLog CommandLog `json:"commandLog"`
	Err        error      `json:"-"`
}

// Error formats decode failures for logs and UI.
func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Stage,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// ExecDecoder runs an external ncmdump-compatible CLI in a private work
// directory and moves the produced audio file to the resolved output path.
type ExecDecoder struct {
	binary    string
	extraArgs []string
	logger    *slog.Logger
	runner    commandRunner
	mkdirTemp func(dir, pattern string) (string, error)
	removeAll func(path string) error
	stat      func(name string) (os.FileInfo, error)
	mkdirAll  func(path string, perm os.FileMode) error
	readDir   func(name string) ([]os.DirEntry, error)
	rename    func(oldpath, newpath string) error
}

// NewExecDecoder constructs the production decoder with OS dependencies.
func NewExecDecoder(binary string, extraArgs []string, logger *slog.Logger) *ExecDecoder {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ExecDecoder{
		binary:    binary,
		extraArgs: append([]string(nil), extraArgs...),
		logger:    logger,
		runner:    &execRunner{},
		mkdirTemp: os.MkdirTemp,
		removeAll: os.RemoveAll,
		stat:      os.Stat,
		mkdirAll:  os.MkdirAll,
		readDir:   os.ReadDir,
		rename:    os.Rename,
	}
}

// Convert decodes inputPath and returns the path of the written audio file.
func (d *ExecDecoder) Convert(ctx context.Context, inputPath string, resolve Resolver) (string, error) {
	if strings.TrimSpace(inputPath) == "" {
		return "", &DecodeError{
			Stage:   "prepare",
			Message: "input path is required",
		}
	}
	if resolve == nil {
		return "", &DecodeError{
			Stage:   "prepare",
			Message: "output path resolver is required",
		}
	}

	if _, err := d.stat(inputPath); err != nil {
		return "", &DecodeError{
			Stage:   "prepare",
			Message: fmt.Sprintf("cannot access input file: %s", inputPath),
			Err:     err,
		}
	}

	workDir, err := d.mkdirTemp("", "ncmconv-*")
	if err != nil {
		return "", &DecodeError{
			Stage:   "prepare",
			Message: "failed to create temporary workspace",
			Err:     err,
		}
	}
	defer func() {
		if err := d.removeAll(workDir); err != nil {
			d.logger.Warn("failed to remove decoder workspace", "path", workDir, "error", err)
		}
	}()

	args := buildDecoderArgs(d.extraArgs, workDir, inputPath)
	cmdResult, runErr := d.runner.Run(ctx, d.binary, args...)
	log := CommandLog{
		Command:  d.binary,
		Args:     args,
		ExitCode: cmdResult.ExitCode,
		Stdout:   cmdResult.Stdout,
		Stderr:   cmdResult.Stderr,
	}
	d.logger.Debug("decoder command completed",
		"command", log.Command,
		"args", log.Args,
		"exit_code", log.ExitCode,
	)
	if runErr != nil {
		return "", &DecodeError{
			Stage:      "decode",
			Message:    "decoder command failed",
			CommandLog: log,
			Err:        runErr,
		}
	}

	artifact, err := d.findArtifact(workDir)
	if err != nil {
		return "", &DecodeError{
			Stage:      "decode",
			Message:    err.Error(),
			CommandLog: log,
			Err:        err,
		}
	}

	meta := Metadata{Format: strings.TrimPrefix(strings.ToLower(filepath.Ext(artifact)), ".")}
	target := resolve(inputPath, meta)
	if strings.TrimSpace(target) == "" {
		return "", &DecodeError{
			Stage:   "export",
			Message: "resolver returned an empty output path",
		}
	}

	if err := d.mkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", &DecodeError{
			Stage:   "export",
			Message: fmt.Sprintf("cannot create output directory: %s", filepath.Dir(target)),
			Err:     err,
		}
	}
	if err := d.moveFile(artifact, target); err != nil {
		return "", &DecodeError{
			Stage:   "export",
			Message: fmt.Sprintf("cannot write output file: %s", target),
			Err:     err,
		}
	}

	return target, nil
}

// findArtifact returns the single audio file the decoder produced in dir.
func (d *ExecDecoder) findArtifact(dir string) (string, error) {
	entries, err := d.readDir(dir)
	if err != nil {
		return "", fmt.Errorf("cannot read decoder workspace: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := audioExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; ok {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", errors.New("decoder produced no audio file")
	}

	sort.Strings(names)
	return filepath.Join(dir, names[0]), nil
}

// moveFile renames src to dst, copying when they sit on different filesystems.
// An existing dst is overwritten.
func (d *ExecDecoder) moveFile(src, dst string) error {
	if err := d.rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// buildDecoderArgs builds decoder CLI args writing into outDir.
func buildDecoderArgs(extraArgs []string, outDir, inputPath string) []string {
	args := make([]string, 0, len(extraArgs)+3)
	args = append(args, extraArgs...)
	args = append(args, "-o", outDir, inputPath)
	return args
}

// NewExecDecoderForTests constructs a decoder with injectable dependencies.
func NewExecDecoderForTests(
	binary string,
	runner commandRunner,
	mkdirTemp func(dir, pattern string) (string, error),
	removeAll func(path string) error,
	rename func(oldpath, newpath string) error,
) *ExecDecoder {
	d := NewExecDecoder(binary, nil, nil)
	d.runner = runner
	d.mkdirTemp = mkdirTemp
	d.removeAll = removeAll
	d.rename = rename
	return d
}
