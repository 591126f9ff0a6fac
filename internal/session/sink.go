package session

import (
	"fmt"

	"ncm-converter/internal/convert"
	"ncm-converter/internal/jobs"
)

// busSink publishes orchestrator callbacks as bus events tagged with the run ID.
type busSink struct {
	controller *Controller
	runID      string
	done       int
}

// dispatch routes one streamed run event to the matching sink method.
func (s *busSink) dispatch(ev convert.Event) {
	switch ev.Kind {
	case convert.EventProgress:
		s.Progress(ev.Percent)
	case convert.EventJobResult:
		s.JobResult(ev.Result)
	case convert.EventRunError:
		s.RunError(ev.Err)
	case convert.EventRunFinished:
		s.RunFinished(ev.Summary)
	default:
		s.controller.logger.Warn("unknown run event", "run_id", s.runID, "kind", int(ev.Kind))
	}
}

func (s *busSink) Progress(percent int) {
	if err := s.controller.runs.Advance(s.done, percent); err != nil {
		s.controller.logger.Warn("progress not recorded", "run_id", s.runID, "error", err)
	}
	s.controller.publish(jobs.Event{
		RunID:   s.runID,
		Type:    jobs.EventTypeProgress,
		Percent: percent,
	})
}

func (s *busSink) JobResult(result convert.JobResult) {
	s.done = result.Index
	s.controller.publish(jobs.Event{
		RunID:       s.runID,
		Type:        jobs.EventTypeJobResult,
		DisplayName: result.DisplayName,
		Status:      result.Description,
		JobStatus:   result.Job.Status,
		InputPath:   result.Job.InputPath,
		OutputPath:  result.Job.OutputPath,
		Message:     result.Job.Error,
	})
}

func (s *busSink) RunError(err error) {
	s.controller.publish(jobs.Event{
		RunID:   s.runID,
		Type:    jobs.EventTypeRunError,
		Message: err.Error(),
	})
}

func (s *busSink) RunFinished(summary convert.Summary) {
	s.controller.finish(summary)
	s.controller.publish(jobs.Event{
		RunID:   s.runID,
		Type:    jobs.EventTypeRunFinished,
		Message: fmt.Sprintf("%d succeeded, %d failed", summary.Succeeded, summary.Failed),
	})
}
