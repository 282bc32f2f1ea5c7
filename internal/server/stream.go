package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/calyptra/tunesync/internal/jobs"
)

// StreamHandler serves the job event stream over Server-Sent Events.
//
// Each connection first receives a snapshot event carrying every job in the
// store, then live events as they happen. The subscription is opened before
// the snapshot is computed, so an event racing the snapshot is delivered
// twice rather than lost.
type StreamHandler struct {
	store     *jobs.Store
	bus       *jobs.Bus
	heartbeat time.Duration
	logger    *log.Logger
}

// NewStreamHandler creates a StreamHandler that writes a heartbeat comment
// every heartbeat interval to keep idle connections open.
func NewStreamHandler(store *jobs.Store, bus *jobs.Bus, heartbeat time.Duration, logger *log.Logger) *StreamHandler {
	return &StreamHandler{store: store, bus: bus, heartbeat: heartbeat, logger: logger}
}

// Routes returns the patterns this handler serves.
func (h *StreamHandler) Routes() []string {
	return []string{"GET /api/jobs/stream"}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub, cancel := h.bus.Subscribe()
	defer cancel()

	snapshot := jobs.Event{Type: jobs.EventSnapshot, Jobs: h.store.All()}
	data, err := snapshot.Encode()
	if err != nil {
		h.logger.Error("failed to encode snapshot", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if err := writeEvent(w, data); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-sub.Events():
			if err := writeEvent(w, data); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, data []byte) error {
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
