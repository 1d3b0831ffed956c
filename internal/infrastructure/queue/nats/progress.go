package nats

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/notelib/score-intake/internal/core/domain"
	"github.com/notelib/score-intake/internal/events"
)

const defaultProgressSubject = "sessions.progress"

// ProgressRelay carries pipeline progress events across processes. The
// worker publishes every event it emits; API replicas bridge the subject
// into their local bus so SSE streams see jobs run by any worker. Delivery
// is fire-and-forget: a lost progress event degrades the stream, never the
// pipeline.
type ProgressRelay struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewProgressRelay shares the queue's connection. An empty subject falls
// back to the default; both processes must load it from the same config key.
func NewProgressRelay(queue *Queue, subject string) *ProgressRelay {
	if subject == "" {
		subject = defaultProgressSubject
	}
	return &ProgressRelay{
		conn:    queue.conn,
		subject: subject,
		logger:  queue.logger,
	}
}

// Publish relays one event. Implements the pipeline's event sink.
func (r *ProgressRelay) Publish(evt domain.ProgressEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		r.logger.Error("progress_event_encode_failed", "job_id", evt.JobID, "error", err)
		return
	}
	if err := r.conn.Publish(r.subject, payload); err != nil {
		r.logger.Warn("progress_event_publish_failed",
			"job_id", evt.JobID,
			"session_id", evt.SessionID,
			"error", err,
		)
	}
}

// Bridge forwards relayed events into bus until the returned stop func is
// called. Every replica subscribes individually; progress is broadcast, not
// queue-grouped, so each API instance can serve its own SSE clients.
func (r *ProgressRelay) Bridge(bus *events.Bus) (func(), error) {
	sub, err := r.conn.Subscribe(r.subject, func(msg *nats.Msg) {
		r.deliver(msg.Data, bus)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe progress: %w", err)
	}
	if err := r.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("nats flush: %w", err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// deliver decodes one relayed event and hands it to the bus. The terminal
// latch is released right after a completed/failed event: the pipeline emits
// nothing for a job past its terminal event, and releasing here keeps the
// latch set bounded in a long-lived API process.
func (r *ProgressRelay) deliver(data []byte, bus *events.Bus) {
	var evt domain.ProgressEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		r.logger.Warn("progress_event_decode_failed", "error", err)
		return
	}
	bus.Publish(evt)
	if evt.Type.Terminal() {
		bus.Forget(evt.JobID)
	}
}
