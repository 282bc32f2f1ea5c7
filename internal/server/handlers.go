package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/calyptra/tunesync/internal/jobs"
	"github.com/calyptra/tunesync/internal/models"
	"github.com/calyptra/tunesync/internal/shared"
)

// writeJSON serializes v and writes it with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes and writes a JSON
// error body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, shared.ErrQueueFull):
		status = http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, shared.ErrJobFinished), errors.Is(err, shared.ErrJobRunning):
		status = http.StatusConflict
	case errors.Is(err, shared.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// JobsHandler serves the job management REST endpoints.
type JobsHandler struct {
	store    *jobs.Store
	executor *jobs.Executor
	bus      *jobs.Bus
	logger   *log.Logger
}

// NewJobsHandler creates a JobsHandler.
func NewJobsHandler(store *jobs.Store, executor *jobs.Executor, bus *jobs.Bus, logger *log.Logger) *JobsHandler {
	return &JobsHandler{store: store, executor: executor, bus: bus, logger: logger}
}

// Routes returns the patterns this handler serves.
func (h *JobsHandler) Routes() []string {
	return []string{
		"POST /api/jobs",
		"GET /api/jobs",
		"GET /api/jobs/{id}",
		"DELETE /api/jobs/{id}",
		"POST /api/jobs/{id}/cancel",
		"POST /api/jobs/clear",
	}
}

// ServeHTTP dispatches to the operation matching the routed pattern.
func (h *JobsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		if id == "" {
			h.list(w)
			return
		}
		h.get(w, id)
	case http.MethodPost:
		switch {
		case strings.HasSuffix(r.URL.Path, "/cancel") && id != "":
			h.cancel(w, id)
		case strings.HasSuffix(r.URL.Path, "/clear"):
			h.clear(w)
		default:
			h.create(w, r)
		}
	case http.MethodDelete:
		h.delete(w, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type createJobRequest struct {
	URL      string `json:"url"`
	Format   string `json:"format"`
	MaxItems int    `json:"max_items"`
}

func (h *JobsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, shared.ErrInvalidInput)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, shared.ErrInvalidInput)
		return
	}

	format, err := models.ParseAudioFormat(req.Format)
	if err != nil {
		writeError(w, shared.ErrInvalidInput)
		return
	}
	if req.MaxItems < 0 {
		writeError(w, shared.ErrInvalidInput)
		return
	}

	job, startNow, err := h.store.Create(req.URL, format, req.MaxItems, "api")
	if err != nil {
		writeError(w, err)
		return
	}

	h.bus.EmitCreated(job)
	if startNow {
		h.executor.StartJob(job)
	}

	h.logger.Info("job created", "id", job.ID, "url", job.URL, "queued", !startNow)
	writeJSON(w, http.StatusAccepted, job)
}

func (h *JobsHandler) list(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": h.store.All()})
}

func (h *JobsHandler) get(w http.ResponseWriter, id string) {
	job, err := h.store.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// cancel requests cancellation of a running job, or cancels a pending one
// directly. The response is the job as of the request; a running job
// transitions once its worker notices the token.
func (h *JobsHandler) cancel(w http.ResponseWriter, id string) {
	if h.executor.CancelJob(id) {
		job, err := h.store.Get(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, job)
		return
	}

	if h.store.Cancel(id) {
		job, err := h.store.Get(id)
		if err != nil {
			writeError(w, err)
			return
		}
		h.bus.EmitUpdated(job)
		writeJSON(w, http.StatusAccepted, job)
		return
	}

	job, err := h.store.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if job.Status.Finished() {
		writeError(w, shared.ErrJobFinished)
		return
	}
	// Exists and unfinished but neither cancel path claimed it: the job is
	// between states, let the client retry.
	writeError(w, shared.ErrJobRunning)
}

func (h *JobsHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	h.bus.EmitDeleted(id)
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (h *JobsHandler) clear(w http.ResponseWriter) {
	count := h.store.ClearFinished()
	h.bus.EmitCleared(count)
	writeJSON(w, http.StatusOK, map[string]int{"cleared": count})
}

// HealthHandler reports service liveness.
type HealthHandler struct{}

// Routes returns the patterns this handler serves.
func (HealthHandler) Routes() []string {
	return []string{"GET /health"}
}

func (HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
