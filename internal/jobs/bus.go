package jobs

import (
	"encoding/json"
	"sync"

	"github.com/charmbracelet/log"
)

// SubscriberQueueSize bounds each subscriber's mailbox. Under pressure the
// oldest unread event is evicted to admit the newest.
const SubscriberQueueSize = 100

// EventType tags the serialized payloads the bus broadcasts.
type EventType string

const (
	EventSnapshot EventType = "snapshot"
	EventCreated  EventType = "created"
	EventUpdated  EventType = "updated"
	EventDeleted  EventType = "deleted"
	EventCleared  EventType = "cleared"
)

// Event is a job lifecycle notification. Exactly one of Job, Jobs, JobID, or
// Count is populated depending on Type.
type Event struct {
	Type  EventType `json:"type"`
	Job   *Job      `json:"job,omitempty"`
	Jobs  []*Job    `json:"jobs,omitempty"`
	JobID string    `json:"job_id,omitempty"`
	Count int       `json:"count,omitempty"`
}

// Encode serializes the event for delivery.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Subscriber is one listener's bounded FIFO mailbox of serialized events.
type Subscriber struct {
	ch chan []byte
}

// Events returns the receive side of the mailbox.
func (s *Subscriber) Events() <-chan []byte {
	return s.ch
}

// push delivers without ever blocking: when the mailbox is full the oldest
// entry is dropped to make room. A concurrent drain between the full check
// and the drop just means the drop receives nothing, which is benign.
func (s *Subscriber) push(data []byte) {
	for {
		select {
		case s.ch <- data:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

// Bus broadcasts job lifecycle events to all current subscribers. A slow
// subscriber's drops never affect delivery to others.
type Bus struct {
	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	logger *log.Logger
}

// NewBus creates an empty Bus.
func NewBus(logger *log.Logger) *Bus {
	return &Bus{
		subs:   make(map[*Subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers a new subscriber and returns it with a cancel function
// that must be called on every exit path of the consuming scope.
//
// Register before computing any snapshot of current state: events emitted
// between registration and the snapshot land in the mailbox and are delivered
// after it, so none are lost.
func (b *Bus) Subscribe() (*Subscriber, func()) {
	sub := &Subscriber{ch: make(chan []byte, SubscriberQueueSize)}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
	}
	return sub, cancel
}

// SubscriberCount returns the number of registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// EmitCreated broadcasts a job creation.
func (b *Bus) EmitCreated(job *Job) {
	b.emit(Event{Type: EventCreated, Job: job})
}

// EmitUpdated broadcasts a job update.
func (b *Bus) EmitUpdated(job *Job) {
	b.emit(Event{Type: EventUpdated, Job: job})
}

// EmitDeleted broadcasts a job deletion.
func (b *Bus) EmitDeleted(jobID string) {
	b.emit(Event{Type: EventDeleted, JobID: jobID})
}

// EmitCleared broadcasts a bulk removal of finished jobs.
func (b *Bus) EmitCleared(count int) {
	b.emit(Event{Type: EventCleared, Count: count})
}

// emit serializes once and fans out to every subscriber. Never blocks and
// never fails the caller.
func (b *Bus) emit(event Event) {
	data, err := event.Encode()
	if err != nil {
		b.logger.Error("failed to encode event", "type", event.Type, "error", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		sub.push(data)
	}
}
