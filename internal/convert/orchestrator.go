// Package convert drives a batch of conversion jobs through a decoder.
//
// A run processes jobs strictly one at a time. A failing job is recorded and
// the run moves on; only failures outside the per-job loop end a run early.
// Every run ends with exactly one RunFinished call on the sink, after all
// other events. There is no cancellation: a hung decode blocks the rest of
// the run.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ncm-converter/internal/decoder"
	"ncm-converter/internal/domain"
	"ncm-converter/internal/naming"
)

// ErrNoResult is recorded when the decoder returns neither a path nor an error.
var ErrNoResult = errors.New("decoder returned no output")

// ErrMissingArtifact is recorded when the decoder claims success but nothing exists at the path.
var ErrMissingArtifact = errors.New("decoder reported success without artifact")

// JobResult is the outcome of one job as reported to the sink.
type JobResult struct {
	Index       int
	Total       int
	DisplayName string
	Description string
	Job         domain.ConversionJob
}

// Summary describes a finished run.
type Summary struct {
	Jobs       []domain.ConversionJob
	Succeeded  int
	Failed     int
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Attempted returns how many jobs reached a terminal state.
func (s Summary) Attempted() int {
	return s.Succeeded + s.Failed
}

// EventSink receives run events in order. Implementations must not block for long;
// the run waits for each call to return.
type EventSink interface {
	Progress(percent int)
	JobResult(result JobResult)
	RunError(err error)
	RunFinished(summary Summary)
}

// Orchestrator runs batches through a decoder.
type Orchestrator struct {
	decoder  decoder.Decoder
	logger   *slog.Logger
	stat     func(name string) (os.FileInfo, error)
	mkdirAll func(path string, perm os.FileMode) error
	now      func() time.Time
}

// New constructs an orchestrator with OS dependencies.
func New(dec decoder.Decoder, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{
		decoder:  dec,
		logger:   logger,
		stat:     os.Stat,
		mkdirAll: os.MkdirAll,
		now:      time.Now,
	}
}

// Run processes batch sequentially, writing into outputDir and reporting to sink.
// Per-job failures never escape; the returned summary carries a non-nil Err only
// for a batch-level failure.
func (o *Orchestrator) Run(ctx context.Context, batch []domain.ConversionJob, outputDir string, sink EventSink) (summary Summary) {
	summary.StartedAt = o.now()
	summary.Jobs = make([]domain.ConversionJob, len(batch))
	copy(summary.Jobs, batch)

	defer func() {
		if r := recover(); r != nil {
			summary.Err = fmt.Errorf("conversion run aborted: %v", r)
			o.logger.Error("conversion run aborted", "error", summary.Err)
			sink.RunError(summary.Err)
		}
		summary.FinishedAt = o.now()
		o.logger.Info("conversion run finished",
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
			"total", len(summary.Jobs),
			"duration", summary.FinishedAt.Sub(summary.StartedAt),
		)
		sink.RunFinished(summary)
	}()

	if err := o.prepare(outputDir); err != nil {
		summary.Err = err
		o.logger.Error("conversion run failed before processing", "output_dir", outputDir, "error", err)
		sink.RunError(err)
		return summary
	}

	total := len(summary.Jobs)
	o.logger.Info("conversion run started", "jobs", total, "output_dir", outputDir)

	for i := range summary.Jobs {
		job := &summary.Jobs[i]
		o.process(ctx, job, outputDir)

		if job.Status == domain.JobStatusSucceeded {
			summary.Succeeded++
		} else {
			summary.Failed++
		}

		sink.JobResult(JobResult{
			Index:       i + 1,
			Total:       total,
			DisplayName: filepath.Base(job.InputPath),
			Description: Describe(*job),
			Job:         *job,
		})
		sink.Progress(Percent(i+1, total))
	}

	return summary
}

// prepare validates the output directory before any job runs.
func (o *Orchestrator) prepare(outputDir string) error {
	if o.decoder == nil {
		return errors.New("no decoder configured")
	}
	if strings.TrimSpace(outputDir) == "" {
		return errors.New("output directory is required")
	}
	if err := o.mkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory %q: %w", outputDir, err)
	}
	return nil
}

// process runs one job to a terminal state.
func (o *Orchestrator) process(ctx context.Context, job *domain.ConversionJob, outputDir string) {
	logger := o.logger.With("input", job.InputPath)
	job.Status = domain.JobStatusProcessing
	logger.Debug("decoding")

	outputPath, err := o.decode(ctx, job.InputPath, outputDir)
	switch {
	case err != nil:
	case strings.TrimSpace(outputPath) == "":
		err = ErrNoResult
	default:
		if _, statErr := o.stat(outputPath); statErr != nil {
			err = fmt.Errorf("%w: %s", ErrMissingArtifact, outputPath)
		}
	}

	if err != nil {
		job.Status = domain.JobStatusFailed
		job.Error = err.Error()
		logger.Warn("conversion failed", "error", err)
		return
	}

	job.Status = domain.JobStatusSucceeded
	job.OutputPath = outputPath
	logger.Info("conversion succeeded", "output", outputPath)
}

// decode calls the decoder with a resolver bound to this job, turning panics into errors.
func (o *Orchestrator) decode(ctx context.Context, inputPath, outputDir string) (outputPath string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decoder panicked: %v", r)
		}
	}()

	jc := naming.NewJobContext(inputPath)
	resolve := func(_ string, meta decoder.Metadata) string {
		return jc.OutputPath(meta.Format, outputDir)
	}
	return o.decoder.Convert(ctx, inputPath, resolve)
}

// Percent returns round(done/total*100) using integer arithmetic.
func Percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	return (done*200 + total) / (2 * total)
}

// Describe renders the human status line for a terminal job.
func Describe(job domain.ConversionJob) string {
	switch job.Status {
	case domain.JobStatusSucceeded:
		return "succeeded -> " + filepath.Base(job.OutputPath)
	case domain.JobStatusFailed:
		return "failed: " + job.Error
	default:
		return string(job.Status)
	}
}
