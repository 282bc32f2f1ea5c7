package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/calyptra/tunesync/internal/jobs"
	"github.com/calyptra/tunesync/internal/shared"
)

// blockingRunner holds jobs until release is closed.
type blockingRunner struct {
	release chan struct{}
}

func (r *blockingRunner) Execute(url string, onProgress jobs.ProgressFunc, token *jobs.CancelToken, maxItems int) (*jobs.SyncResult, error) {
	select {
	case <-r.release:
	case <-time.After(5 * time.Second):
	}
	if token.Cancelled() {
		return &jobs.SyncResult{Success: false, Error: "cancelled"}, nil
	}
	return &jobs.SyncResult{Success: true}, nil
}

type serverHarness struct {
	store  *jobs.Store
	bus    *jobs.Bus
	runner *blockingRunner
	srv    *httptest.Server
}

func newServerHarness(t *testing.T, limit int) *serverHarness {
	t.Helper()
	logger := shared.NewLogger(io.Discard)
	store := jobs.NewStore(limit)
	bus := jobs.NewBus(logger)
	runner := &blockingRunner{release: make(chan struct{})}
	executor := jobs.NewExecutor(store, bus, runner, logger, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		executor.Run(ctx)
		close(done)
	}()

	router := NewBasicRouter()
	router.Use(Recover(logger), Logging(logger))
	router.Handler(NewJobsHandler(store, executor, bus, logger))
	router.Handler(NewStreamHandler(store, bus, 50*time.Millisecond, logger))
	router.Handler(HealthHandler{})

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		select {
		case <-runner.release:
		default:
			close(runner.release)
		}
		cancel()
		<-done
	})

	return &serverHarness{store: store, bus: bus, runner: runner, srv: srv}
}

func (h *serverHarness) request(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}

	resp, err := h.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && err != io.EOF {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp, decoded
}

func (h *serverHarness) waitForStatus(t *testing.T, id string, want jobs.Status) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := h.store.Get(id)
		if err == nil && job.Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", id, want)
}

func TestJobsHandlerCreate(t *testing.T) {
	h := newServerHarness(t, 5)

	resp, body := h.request(t, http.MethodPost, "/api/jobs",
		`{"url": "https://catalog.example/playlist/p1", "format": "mp3"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if body["id"] == "" {
		t.Error("expected job id in response")
	}
	if body["url"] != "https://catalog.example/playlist/p1" {
		t.Errorf("unexpected url: %v", body["url"])
	}

	t.Run("rejects missing url", func(t *testing.T) {
		resp, _ := h.request(t, http.MethodPost, "/api/jobs", `{"format": "mp3"}`)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("rejects bad format", func(t *testing.T) {
		resp, _ := h.request(t, http.MethodPost, "/api/jobs", `{"url": "x", "format": "wav"}`)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		resp, _ := h.request(t, http.MethodPost, "/api/jobs", `{`)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})
}

func TestJobsHandlerCreateQueueFull(t *testing.T) {
	h := newServerHarness(t, 2)

	for i := 0; i < 2; i++ {
		resp, _ := h.request(t, http.MethodPost, "/api/jobs", `{"url": "https://catalog.example/playlist/p"}`)
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", resp.StatusCode)
		}
	}

	resp, _ := h.request(t, http.MethodPost, "/api/jobs", `{"url": "https://catalog.example/playlist/p"}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when the queue is full, got %d", resp.StatusCode)
	}
}

func TestJobsHandlerGetAndList(t *testing.T) {
	h := newServerHarness(t, 5)

	_, created := h.request(t, http.MethodPost, "/api/jobs", `{"url": "https://catalog.example/playlist/p1"}`)
	id := created["id"].(string)

	resp, body := h.request(t, http.MethodGet, "/api/jobs/"+id, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["id"] != id {
		t.Errorf("expected %s, got %v", id, body["id"])
	}

	resp, body = h.request(t, http.MethodGet, "/api/jobs", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if list, ok := body["jobs"].([]any); !ok || len(list) != 1 {
		t.Errorf("expected 1 job in list, got %v", body["jobs"])
	}

	t.Run("unknown id", func(t *testing.T) {
		resp, _ := h.request(t, http.MethodGet, "/api/jobs/nonexistent", "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})
}

func TestJobsHandlerCancel(t *testing.T) {
	h := newServerHarness(t, 5)

	_, running := h.request(t, http.MethodPost, "/api/jobs", `{"url": "https://catalog.example/playlist/p1"}`)
	runningID := running["id"].(string)
	h.waitForStatus(t, runningID, jobs.StatusFetchingInfo)

	_, pending := h.request(t, http.MethodPost, "/api/jobs", `{"url": "https://catalog.example/playlist/p2"}`)
	pendingID := pending["id"].(string)

	t.Run("pending job cancels directly", func(t *testing.T) {
		resp, _ := h.request(t, http.MethodPost, "/api/jobs/"+pendingID+"/cancel", "")
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", resp.StatusCode)
		}
		h.waitForStatus(t, pendingID, jobs.StatusCancelled)
	})

	t.Run("running job cancels via its token", func(t *testing.T) {
		resp, _ := h.request(t, http.MethodPost, "/api/jobs/"+runningID+"/cancel", "")
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", resp.StatusCode)
		}
		close(h.runner.release)
		h.waitForStatus(t, runningID, jobs.StatusCancelled)
	})

	t.Run("finished job conflicts", func(t *testing.T) {
		resp, _ := h.request(t, http.MethodPost, "/api/jobs/"+runningID+"/cancel", "")
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("expected 409, got %d", resp.StatusCode)
		}
	})

	t.Run("unknown job", func(t *testing.T) {
		resp, _ := h.request(t, http.MethodPost, "/api/jobs/nonexistent/cancel", "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})
}

func TestJobsHandlerDeleteAndClear(t *testing.T) {
	h := newServerHarness(t, 5)

	_, created := h.request(t, http.MethodPost, "/api/jobs", `{"url": "https://catalog.example/playlist/p1"}`)
	id := created["id"].(string)

	t.Run("running job cannot be deleted", func(t *testing.T) {
		h.waitForStatus(t, id, jobs.StatusFetchingInfo)
		resp, _ := h.request(t, http.MethodDelete, "/api/jobs/"+id, "")
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("expected 409, got %d", resp.StatusCode)
		}
	})

	close(h.runner.release)
	h.waitForStatus(t, id, jobs.StatusCompleted)

	t.Run("finished job deletes", func(t *testing.T) {
		resp, _ := h.request(t, http.MethodDelete, "/api/jobs/"+id, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		resp, _ = h.request(t, http.MethodGet, "/api/jobs/"+id, "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("deleted job should 404, got %d", resp.StatusCode)
		}
	})

	t.Run("clear removes finished jobs", func(t *testing.T) {
		_, created := h.request(t, http.MethodPost, "/api/jobs", `{"url": "https://catalog.example/playlist/p2"}`)
		h.waitForStatus(t, created["id"].(string), jobs.StatusCompleted)

		resp, body := h.request(t, http.MethodPost, "/api/jobs/clear", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if body["cleared"].(float64) != 1 {
			t.Errorf("expected 1 cleared, got %v", body["cleared"])
		}
	})
}

func TestHealthHandler(t *testing.T) {
	h := newServerHarness(t, 5)

	resp, body := h.request(t, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestStreamHandlerSnapshotThenEvents(t *testing.T) {
	h := newServerHarness(t, 5)

	_, created := h.request(t, http.MethodPost, "/api/jobs", `{"url": "https://catalog.example/playlist/p1"}`)
	id := created["id"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.srv.URL+"/api/jobs/stream", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := h.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("stream request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}

	events := make(chan jobs.Event, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev jobs.Event
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				continue
			}
			events <- ev
		}
	}()

	readEvent := func() jobs.Event {
		select {
		case ev := <-events:
			return ev
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for event")
			return jobs.Event{}
		}
	}

	first := readEvent()
	if first.Type != jobs.EventSnapshot {
		t.Fatalf("expected snapshot first, got %s", first.Type)
	}
	if len(first.Jobs) != 1 || first.Jobs[0].ID != id {
		t.Errorf("snapshot should carry the existing job, got %+v", first.Jobs)
	}

	close(h.runner.release)

	// Live updates follow as the job runs to completion.
	for {
		ev := readEvent()
		if ev.Type != jobs.EventUpdated {
			t.Fatalf("expected updated events, got %s", ev.Type)
		}
		if ev.Job.Status == jobs.StatusCompleted {
			break
		}
	}
}
