package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"ncm-converter/internal/config"
	"ncm-converter/internal/convert"
	"ncm-converter/internal/decoder"
	"ncm-converter/internal/diagnostics"
	"ncm-converter/internal/domain"
	"ncm-converter/internal/jobs"
	"ncm-converter/internal/runlock"
	"ncm-converter/internal/session"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// EventName is the runtime event carrying every published jobs.Event.
const EventName = "conversion:event"

const (
	openDirectoryButton = "Open directory"
	okButton            = "OK"

	shutdownRunWait = 5 * time.Second
)

var ncmDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "NCM files",
		Pattern:     "*.ncm",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App wires configuration, the conversion session, and UI runtime callbacks.
type App struct {
	Session     *session.Controller
	Diagnostics domain.DiagnosticReport
	settings    domain.Settings
	assets      fs.FS
	checker     *diagnostics.Checker
	logger      *slog.Logger

	emit   func(ctx context.Context, name string, data ...interface{})
	dialog func(ctx context.Context, opts wailsruntime.MessageDialogOptions) (string, error)

	mu         sync.Mutex
	runtimeCtx context.Context
	failedRun  string
}

// New builds the application from loaded configuration and runs startup diagnostics.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	return NewWithAssets(cfg, logger, nil)
}

// NewWithAssets builds the application and optionally configures frontend assets.
func NewWithAssets(cfg *config.Config, logger *slog.Logger, assets fs.FS) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	if err := ensureLocalBinOnPATH(homeDir); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	app := &App{
		settings: cfg.Settings(),
		assets:   assets,
		checker:  diagnostics.NewChecker(),
		logger:   logger,
		emit:     wailsruntime.EventsEmit,
		dialog:   wailsruntime.MessageDialog,
	}
	app.Diagnostics = app.checker.Run(app.settings)

	dec := decoder.NewExecDecoder(cfg.Decoder.Binary, cfg.Decoder.Args, logger)
	opts := session.Options{
		Logger:  logger,
		OnEvent: app.emitEvent,
	}
	if cfg.Run.LockPath != "" {
		opts.Lock = runlock.New(cfg.Run.LockPath)
	}
	app.Session = session.New(convert.New(dec, logger), opts)
	if app.settings.OutputDir != "" {
		app.Session.SetOutputDir(app.settings.OutputDir)
	}
	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "NCM Converter",
		Width:       960,
		Height:      680,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			if !a.waitForRun(shutdownRunWait) && a.logger != nil {
				a.logger.Warn("closing with a conversion still running", "run_id", a.Session.CurrentRun().ID)
			}
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events and dialogs.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// RefreshDiagnostics reruns dependency checks against the current output directory.
func (a *App) RefreshDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settings.OutputDir = a.Session.OutputDir()
	a.Diagnostics = a.checker.Run(a.settings)
	return a.Diagnostics
}

// PickFiles opens a native multi-select dialog and adds the chosen files.
func (a *App) PickFiles() ([]string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return nil, err
	}

	paths, err := wailsruntime.OpenMultipleFilesDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select NCM files",
		Filters: ncmDialogFilter,
	})
	if err != nil {
		return nil, err
	}

	a.Session.AddFiles(paths...)
	return a.Session.Files(), nil
}

// PickOutputDirectory opens a native directory picker and selects the result.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select output directory",
	})
	if err != nil {
		return "", err
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return a.Session.OutputDir(), nil
	}
	a.Session.SetOutputDir(path)
	return path, nil
}

// AddFiles enqueues paths dropped onto the window.
func (a *App) AddFiles(paths []string) []string {
	a.Session.AddFiles(paths...)
	return a.Session.Files()
}

// ClearFiles empties the pending list.
func (a *App) ClearFiles() {
	a.Session.ClearFiles()
}

// Files returns the pending input paths.
func (a *App) Files() []string {
	return a.Session.Files()
}

// SetOutputDirectory selects a typed output directory.
func (a *App) SetOutputDirectory(path string) string {
	a.Session.SetOutputDir(path)
	return a.Session.OutputDir()
}

// OutputDirectory returns the selected output directory.
func (a *App) OutputDirectory() string {
	return a.Session.OutputDir()
}

// StartConversion starts a run over the pending files.
func (a *App) StartConversion() (domain.Run, error) {
	run, err := a.Session.StartRun()
	if err != nil {
		a.showMessage(wailsruntime.WarningDialog, "Cannot start conversion", err.Error())
		return domain.Run{}, err
	}
	return run, nil
}

// CurrentRun returns the state of the active or most recent run.
func (a *App) CurrentRun() domain.Run {
	return a.Session.CurrentRun()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.Session.Events(sinceSeq)
}

// OpenOutputFolder opens the selected output directory in the file manager.
func (a *App) OpenOutputFolder() error {
	return a.Session.OpenOutputDir()
}

// waitForRun waits up to timeout for the active run to finish and reports
// whether it did. A hung decoder cannot be cancelled, so shutdown gives up
// rather than blocking the window from closing.
func (a *App) waitForRun(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		a.Session.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// emitEvent pushes session events to the frontend and raises the terminal
// dialogs: an error box for run_error, otherwise a completion box on run_finished.
func (a *App) emitEvent(event jobs.Event) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	failed := false
	switch event.Type {
	case jobs.EventTypeRunError:
		a.failedRun = event.RunID
	case jobs.EventTypeRunFinished:
		failed = a.failedRun == event.RunID
	}
	a.mu.Unlock()
	if ctx == nil {
		return
	}

	a.emitRuntimeEvent(ctx, event)
	switch {
	case event.Type == jobs.EventTypeRunError:
		go a.showMessage(wailsruntime.ErrorDialog, "Conversion failed", event.Message)
	case event.Type == jobs.EventTypeRunFinished && !failed:
		go a.notifyFinished(event)
	}
}

// notifyFinished shows the completion box and opens the output directory
// when the user asks for it.
func (a *App) notifyFinished(event jobs.Event) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return
	}
	choice, err := a.messageDialog(ctx, wailsruntime.MessageDialogOptions{
		Type:          wailsruntime.InfoDialog,
		Title:         "Conversion finished",
		Message:       fmt.Sprintf("%s\n\nConverted files are in:\n%s", event.Message, a.Session.OutputDir()),
		Buttons:       []string{openDirectoryButton, okButton},
		DefaultButton: okButton,
	})
	if err != nil {
		if a.logger != nil {
			a.logger.Warn("message dialog failed", "error", err)
		}
		return
	}
	if choice != openDirectoryButton {
		return
	}
	if err := a.Session.OpenOutputDir(); err != nil && a.logger != nil {
		a.logger.Warn("open output directory failed", "error", err)
	}
}

// showMessage displays a native message box when the runtime is available.
func (a *App) showMessage(kind wailsruntime.DialogType, title, message string) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return
	}
	if _, err := a.messageDialog(ctx, wailsruntime.MessageDialogOptions{
		Type:    kind,
		Title:   title,
		Message: message,
	}); err != nil && a.logger != nil {
		a.logger.Warn("message dialog failed", "error", err)
	}
}

func (a *App) emitRuntimeEvent(ctx context.Context, event jobs.Event) {
	if a.emit != nil {
		a.emit(ctx, EventName, event)
		return
	}
	wailsruntime.EventsEmit(ctx, EventName, event)
}

func (a *App) messageDialog(ctx context.Context, opts wailsruntime.MessageDialogOptions) (string, error) {
	if a.dialog != nil {
		return a.dialog(ctx, opts)
	}
	return wailsruntime.MessageDialog(ctx, opts)
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}
