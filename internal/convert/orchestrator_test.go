package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ncm-converter/internal/decoder"
	"ncm-converter/internal/domain"
)

type recordingSink struct {
	order    []string
	progress []int
	results  []JobResult
	errs     []error
	finished []Summary
}

func (s *recordingSink) Progress(percent int) {
	s.order = append(s.order, "progress")
	s.progress = append(s.progress, percent)
}

func (s *recordingSink) JobResult(result JobResult) {
	s.order = append(s.order, "result")
	s.results = append(s.results, result)
}

func (s *recordingSink) RunError(err error) {
	s.order = append(s.order, "error")
	s.errs = append(s.errs, err)
}

func (s *recordingSink) RunFinished(summary Summary) {
	s.order = append(s.order, "finished")
	s.finished = append(s.finished, summary)
}

// writingDecoder writes a file at the resolved path for the given format.
func writingDecoder(format string) decoder.Func {
	return func(_ context.Context, inputPath string, resolve decoder.Resolver) (string, error) {
		out := resolve(inputPath, decoder.Metadata{Format: format})
		if err := os.WriteFile(out, []byte("audio"), 0o644); err != nil {
			return "", err
		}
		return out, nil
	}
}

func batchOf(paths ...string) []domain.ConversionJob {
	batch := make([]domain.ConversionJob, 0, len(paths))
	for _, p := range paths {
		batch = append(batch, domain.ConversionJob{InputPath: p, Status: domain.JobStatusPending})
	}
	return batch
}

func TestRunExampleBatch(t *testing.T) {
	outputDir := t.TempDir()
	sink := &recordingSink{}

	summary := New(writingDecoder("mp3"), nil).Run(context.Background(), batchOf("/music/a.ncm", "/music/b.ncm"), outputDir, sink)

	assert.Equal(t, []int{50, 100}, sink.progress)
	require.Len(t, sink.results, 2)
	assert.Equal(t, "a.ncm", sink.results[0].DisplayName)
	assert.Equal(t, domain.JobStatusSucceeded, sink.results[0].Job.Status)
	assert.Equal(t, filepath.Join(outputDir, "a.mp3"), sink.results[0].Job.OutputPath)
	assert.Equal(t, "succeeded -> a.mp3", sink.results[0].Description)
	assert.Equal(t, "b.ncm", sink.results[1].DisplayName)
	assert.Equal(t, filepath.Join(outputDir, "b.mp3"), sink.results[1].Job.OutputPath)

	require.Len(t, sink.finished, 1)
	assert.Empty(t, sink.errs)
	assert.Equal(t, []string{"result", "progress", "result", "progress", "finished"}, sink.order)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.NoError(t, summary.Err)
}

func TestRunIsolatesFailures(t *testing.T) {
	outputDir := t.TempDir()
	ok := writingDecoder("flac")
	dec := decoder.Func(func(ctx context.Context, inputPath string, resolve decoder.Resolver) (string, error) {
		if strings.HasSuffix(inputPath, "A.ncm") {
			return "", errors.New("bad container header")
		}
		return ok(ctx, inputPath, resolve)
	})
	sink := &recordingSink{}

	summary := New(dec, nil).Run(context.Background(), batchOf("/m/A.ncm", "/m/B.ncm"), outputDir, sink)

	require.Len(t, sink.results, 2)
	assert.Equal(t, domain.JobStatusFailed, sink.results[0].Job.Status)
	assert.Equal(t, "failed: bad container header", sink.results[0].Description)
	assert.Equal(t, domain.JobStatusSucceeded, sink.results[1].Job.Status)
	assert.Equal(t, filepath.Join(outputDir, "B.flac"), sink.results[1].Job.OutputPath)
	assert.Len(t, sink.finished, 1)
	assert.Empty(t, sink.errs)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Succeeded)
	assert.NoError(t, summary.Err)
	for _, job := range summary.Jobs {
		assert.True(t, job.Status.Terminal(), job.InputPath)
	}
}

func TestRunTreatsMissingArtifactAsFailure(t *testing.T) {
	outputDir := t.TempDir()
	dec := decoder.Func(func(_ context.Context, inputPath string, resolve decoder.Resolver) (string, error) {
		return resolve(inputPath, decoder.Metadata{Format: "mp3"}), nil
	})
	sink := &recordingSink{}

	New(dec, nil).Run(context.Background(), batchOf("/m/ghost.ncm"), outputDir, sink)

	require.Len(t, sink.results, 1)
	job := sink.results[0].Job
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, ErrMissingArtifact.Error())
	assert.Empty(t, job.OutputPath)
}

func TestRunTreatsEmptyResultAsFailure(t *testing.T) {
	dec := decoder.Func(func(context.Context, string, decoder.Resolver) (string, error) {
		return "", nil
	})
	sink := &recordingSink{}

	New(dec, nil).Run(context.Background(), batchOf("/m/a.ncm"), t.TempDir(), sink)

	require.Len(t, sink.results, 1)
	assert.Equal(t, domain.JobStatusFailed, sink.results[0].Job.Status)
	assert.Equal(t, ErrNoResult.Error(), sink.results[0].Job.Error)
}

func TestRunRecoversDecoderPanic(t *testing.T) {
	outputDir := t.TempDir()
	ok := writingDecoder("mp3")
	dec := decoder.Func(func(ctx context.Context, inputPath string, resolve decoder.Resolver) (string, error) {
		if strings.HasSuffix(inputPath, "boom.ncm") {
			panic("index out of range")
		}
		return ok(ctx, inputPath, resolve)
	})
	sink := &recordingSink{}

	summary := New(dec, nil).Run(context.Background(), batchOf("/m/boom.ncm", "/m/fine.ncm"), outputDir, sink)

	require.Len(t, sink.results, 2)
	assert.Equal(t, domain.JobStatusFailed, sink.results[0].Job.Status)
	assert.Contains(t, sink.results[0].Job.Error, "decoder panicked")
	assert.Equal(t, domain.JobStatusSucceeded, sink.results[1].Job.Status)
	assert.NoError(t, summary.Err)
}

func TestRunBatchLevelFailure(t *testing.T) {
	calls := 0
	dec := decoder.Func(func(context.Context, string, decoder.Resolver) (string, error) {
		calls++
		return "", nil
	})
	o := New(dec, nil)
	o.mkdirAll = func(string, os.FileMode) error { return errors.New("read-only file system") }
	sink := &recordingSink{}

	summary := o.Run(context.Background(), batchOf("/m/a.ncm", "/m/b.ncm"), "/out", sink)

	assert.Zero(t, calls)
	assert.Empty(t, sink.results)
	assert.Empty(t, sink.progress)
	require.Len(t, sink.errs, 1)
	assert.Contains(t, sink.errs[0].Error(), "read-only file system")
	assert.Equal(t, []string{"error", "finished"}, sink.order)
	assert.Error(t, summary.Err)
	assert.Zero(t, summary.Attempted())
}

func TestRunSinkPanicStillFinishes(t *testing.T) {
	sink := &panickySink{}

	summary := New(writingDecoder("mp3"), nil).Run(context.Background(), batchOf("/m/a.ncm"), t.TempDir(), sink)

	assert.Error(t, summary.Err)
	assert.Equal(t, 1, sink.errs)
	assert.Equal(t, 1, sink.finished)
}

type panickySink struct {
	errs     int
	finished int
}

func (s *panickySink) Progress(int) { panic("renderer gone") }
func (s *panickySink) JobResult(JobResult) {}
func (s *panickySink) RunError(error) { s.errs++ }
func (s *panickySink) RunFinished(Summary) { s.finished++ }

func TestRunSameBaseNameOverwrites(t *testing.T) {
	outputDir := t.TempDir()
	sink := &recordingSink{}

	New(writingDecoder("mp3"), nil).Run(context.Background(), batchOf("/one/song.ncm", "/two/song.ncm"), outputDir, sink)

	require.Len(t, sink.results, 2)
	assert.Equal(t, sink.results[0].Job.OutputPath, sink.results[1].Job.OutputPath)
	assert.Equal(t, domain.JobStatusSucceeded, sink.results[1].Job.Status)
}

func TestRunDoesNotMutateInputBatch(t *testing.T) {
	batch := batchOf("/m/a.ncm")
	New(writingDecoder("mp3"), nil).Run(context.Background(), batch, t.TempDir(), &recordingSink{})
	assert.Equal(t, domain.JobStatusPending, batch[0].Status)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 33, Percent(1, 3))
	assert.Equal(t, 67, Percent(2, 3))
	assert.Equal(t, 100, Percent(3, 3))
	assert.Equal(t, 13, Percent(1, 8))
	assert.Equal(t, 100, Percent(0, 0))

	for n := 1; n <= 50; n++ {
		prev := 0
		for k := 1; k <= n; k++ {
			p := Percent(k, n)
			require.GreaterOrEqual(t, p, prev, "n=%d k=%d", n, k)
			prev = p
		}
		require.Equal(t, 100, prev)
	}
}

func TestStreamDeliversOrderedEventsAndCloses(t *testing.T) {
	outputDir := t.TempDir()
	ch := New(writingDecoder("mp3"), nil).Stream(context.Background(), batchOf("/m/a.ncm", "/m/b.ncm", "/m/c.ncm"), outputDir)

	var kinds []EventKind
	var last Event
	for ev := range ch {
		kinds = append(kinds, ev.Kind)
		last = ev
	}

	require.Len(t, kinds, 7)
	assert.Equal(t, EventRunFinished, last.Kind)
	assert.Equal(t, 3, last.Summary.Succeeded)
	for i := 0; i < 6; i += 2 {
		assert.Equal(t, EventJobResult, kinds[i])
		assert.Equal(t, EventProgress, kinds[i+1])
	}
}
