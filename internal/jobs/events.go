package jobs

import (
	"sync"
	"time"

	"ncm-converter/internal/domain"
)

// EventType classifies messages emitted during a conversion run.
type EventType string

const (
	EventTypeProgress    EventType = "progress"
	EventTypeJobResult   EventType = "job_result"
	EventTypeRunFinished EventType = "run_finished"
	EventTypeRunError    EventType = "run_error"
	EventTypeLog         EventType = "log"
)

// Event is a sequenced payload consumed by UI subscribers.
type Event struct {
	Seq         int64            `json:"seq"`
	Timestamp   time.Time        `json:"timestamp"`
	RunID       string           `json:"runId,omitempty"`
	Type        EventType        `json:"type"`
	Percent     int              `json:"percent,omitempty"`
	DisplayName string           `json:"displayName,omitempty"`
	Status      string           `json:"status,omitempty"`
	JobStatus   domain.JobStatus `json:"jobStatus,omitempty"`
	InputPath   string           `json:"inputPath,omitempty"`
	OutputPath  string           `json:"outputPath,omitempty"`
	Message     string           `json:"message,omitempty"`
}

const subscriberBuffer = 256

// EventBus stores recent events, provides incremental reads and fans out to subscribers.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
	nextSub   int
	subs      map[int]chan Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
		subs:      make(map[int]chan Event),
	}
}

// Publish appends one event and assigns sequence and timestamp.
// Subscribers that fall behind miss the event; history keeps it.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// LastSeq returns the sequence of the most recently published event.
func (b *EventBus) LastSeq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}

// Subscribe registers a push consumer. The returned cancel func closes the channel.
func (b *EventBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSub
	b.nextSub++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}
