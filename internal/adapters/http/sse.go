package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const sseHeartbeatInterval = 15 * time.Second

// streamSessionEvents serves a text/event-stream of pipeline progress for
// one session. The stream closes after the terminal completed/failed event
// or when the client disconnects.
func (rt *Router) streamSessionEvents(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.bus == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event streaming is not enabled"})
		return
	}

	// Reject streams for unknown sessions up front; the bus itself cannot
	// tell a quiet session from a nonexistent one.
	if _, err := rt.reader.GetByID(r.Context(), id); err != nil {
		rt.writeError(w, err)
		return
	}

	rt.serveEventStream(w, r, id, true)
}

// streamAllEvents serves the firehose stream across every session. It runs
// until the client disconnects; terminal events end individual jobs, not
// the stream.
func (rt *Router) streamAllEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.bus == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event streaming is not enabled"})
		return
	}

	rt.serveEventStream(w, r, "", false)
}

func (rt *Router) serveEventStream(w http.ResponseWriter, r *http.Request, sessionID string, stopOnTerminal bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming is not supported"})
		return
	}

	eventsCh, cancel := rt.bus.Subscribe(sessionID)
	defer cancel()

	if rt.metrics != nil {
		rt.metrics.StreamSubscriberConnected()
		defer rt.metrics.StreamSubscriberDisconnected()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case evt, open := <-eventsCh:
			if !open {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				rt.logger.Error("marshal_progress_event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload); err != nil {
				return
			}
			flusher.Flush()
			if stopOnTerminal && evt.Type.Terminal() {
				return
			}
		}
	}
}
