package convert

import (
	"context"

	"ncm-converter/internal/domain"
)

// Event is one message of a streamed run. Exactly one field group is set,
// selected by Kind.
type Event struct {
	Kind    EventKind
	Percent int
	Result  JobResult
	Err     error
	Summary Summary
}

// EventKind selects the populated fields of an Event.
type EventKind int

const (
	EventProgress EventKind = iota + 1
	EventJobResult
	EventRunError
	EventRunFinished
)

// Stream starts Run in a new goroutine and returns its events in order.
// The channel is closed after the RunFinished event.
func (o *Orchestrator) Stream(ctx context.Context, batch []domain.ConversionJob, outputDir string) <-chan Event {
	ch := make(chan Event, len(batch)*2+2)
	go func() {
		defer close(ch)
		o.Run(ctx, batch, outputDir, chanSink(ch))
	}()
	return ch
}

// chanSink forwards sink calls to a channel.
type chanSink chan<- Event

func (s chanSink) Progress(percent int) {
	s <- Event{Kind: EventProgress, Percent: percent}
}

func (s chanSink) JobResult(result JobResult) {
	s <- Event{Kind: EventJobResult, Result: result}
}

func (s chanSink) RunError(err error) {
	s <- Event{Kind: EventRunError, Err: err}
}

func (s chanSink) RunFinished(summary Summary) {
	s <- Event{Kind: EventRunFinished, Summary: summary}
}
