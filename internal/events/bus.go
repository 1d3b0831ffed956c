// Package events fans pipeline progress out to in-process observers.
//
// The bus is deliberately lossy: a subscriber whose buffer is full is
// skipped so the pipeline worker never blocks on observer consumption.
// NATS remains the cross-process transport; this bus only serves observers
// attached to the same process (SSE handlers, tests).
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/notelib/score-intake/internal/core/domain"
)

const defaultBuffer = 16

type subscriber struct {
	ch        chan domain.ProgressEvent
	sessionID string
}

// Bus is an N-subscriber fan-out keyed by job and optionally filtered by
// session. completed/failed latch their job: later events for a terminal
// job are dropped for every subscriber.
type Bus struct {
	mu       sync.Mutex
	subs     map[uint64]*subscriber
	terminal map[string]struct{}
	nextID   uint64
	buffer   int
	logger   *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:     make(map[uint64]*subscriber),
		terminal: make(map[string]struct{}),
		buffer:   defaultBuffer,
		logger:   logger,
	}
}

// Subscribe attaches an observer. An empty sessionID receives events for
// every session. The returned cancel func tears down only this
// subscription; it never affects the job or other subscribers. The channel
// is closed on cancel.
func (b *Bus) Subscribe(sessionID string) (<-chan domain.ProgressEvent, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	sub := &subscriber{
		ch:        make(chan domain.ProgressEvent, b.buffer),
		sessionID: sessionID,
	}
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish delivers an event to every matching subscriber, fire-and-forget.
func (b *Bus) Publish(evt domain.ProgressEvent) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, done := b.terminal[evt.JobID]; done {
		return
	}
	if evt.Type.Terminal() {
		b.terminal[evt.JobID] = struct{}{}
	}

	for _, sub := range b.subs {
		if sub.sessionID != "" && sub.sessionID != evt.SessionID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Slow consumer: drop rather than stall the pipeline.
			b.logger.Debug("event_dropped",
				"job_id", evt.JobID,
				"session_id", evt.SessionID,
				"type", string(evt.Type),
			)
		}
	}
}

// Forget releases the terminal latch for a job. Callers use it once every
// observer of a finished job is gone so the latch set does not grow without
// bound in a long-lived process.
func (b *Bus) Forget(jobID string) {
	b.mu.Lock()
	delete(b.terminal, jobID)
	b.mu.Unlock()
}
