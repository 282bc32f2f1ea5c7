package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/calyptra/tunesync/internal/models"
)

// mockRunner is a controllable test double for the sync collaborator.
type mockRunner struct {
	mu        sync.Mutex
	result    *SyncResult
	err       error
	release   chan struct{} // when non-nil, Execute blocks until closed
	onExecute func(url string, onProgress ProgressFunc, token *CancelToken)
	executed  []string
}

func (m *mockRunner) Execute(url string, onProgress ProgressFunc, token *CancelToken, maxItems int) (*SyncResult, error) {
	m.mu.Lock()
	m.executed = append(m.executed, url)
	release := m.release
	m.mu.Unlock()

	if m.onExecute != nil {
		m.onExecute(url, onProgress, token)
	}
	if release != nil {
		<-release
	}
	return m.result, m.err
}

func (m *mockRunner) executedURLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.executed...)
}

type executorHarness struct {
	store    *Store
	bus      *Bus
	executor *Executor
	cancel   context.CancelFunc
	done     chan struct{}
}

func newHarness(t *testing.T, runner Runner, timeout time.Duration) *executorHarness {
	t.Helper()

	store := NewStore(10)
	bus := NewBus(testLogger())
	executor := NewExecutor(store, bus, runner, testLogger(), timeout)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		executor.Run(ctx)
		close(done)
	}()

	h := &executorHarness{store: store, bus: bus, executor: executor, cancel: cancel, done: done}
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("executor loop did not shut down")
		}
	})
	return h
}

func (h *executorHarness) createAndStart(t *testing.T, url string) *Job {
	t.Helper()
	job, startNow, err := h.store.Create(url, models.FormatMP3, 0, "test")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if startNow {
		h.executor.StartJob(job)
	}
	return job
}

func (h *executorHarness) waitForStatus(t *testing.T, id string, want Status) *Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := h.store.Get(id)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", id, err)
		}
		if job.Status == want {
			return job
		}
		if job.Status.Finished() {
			t.Fatalf("job %s settled at %s while waiting for %s", id, job.Status, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := h.store.Get(id)
	t.Fatalf("timed out waiting for %s to reach %s (currently %s)", id, want, job.Status)
	return nil
}

func TestExecutorSuccessfulRun(t *testing.T) {
	runner := &mockRunner{
		result: &SyncResult{
			Success:     true,
			ContentInfo: &ContentInfo{Title: "Road Trip", TrackCount: 12},
			Stats:       &DownloadStats{TracksTotal: 12, TracksDownloaded: 12},
		},
	}
	h := newHarness(t, runner, 0)

	job, startNow, err := h.store.Create("https://catalog/playlist/1", models.FormatMP3, 0, "test")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !startNow {
		t.Fatal("empty store should start the job immediately")
	}
	if job.Status != StatusPending {
		t.Fatalf("job should be pending before the executor begins, got %s", job.Status)
	}

	h.executor.StartJob(job)

	final := h.waitForStatus(t, job.ID, StatusCompleted)
	if final.Progress != 100 {
		t.Errorf("completed job should have progress 100, got %f", final.Progress)
	}
	if final.Stats == nil || final.Stats.TracksDownloaded != 12 {
		t.Errorf("completed job should carry final stats, got %+v", final.Stats)
	}
	if final.ContentInfo == nil || final.ContentInfo.Title != "Road Trip" {
		t.Errorf("completed job should carry content info, got %+v", final.ContentInfo)
	}
	if final.StartedAt == nil {
		t.Error("job should have a started timestamp")
	}
}

func TestExecutorFailedRun(t *testing.T) {
	t.Run("collaborator error", func(t *testing.T) {
		runner := &mockRunner{err: errors.New("network down")}
		h := newHarness(t, runner, 0)

		job := h.createAndStart(t, "https://catalog/playlist/1")
		h.waitForStatus(t, job.ID, StatusFailed)
	})

	t.Run("failure result", func(t *testing.T) {
		runner := &mockRunner{result: &SyncResult{Success: false, Error: "quota exceeded"}}
		h := newHarness(t, runner, 0)

		job := h.createAndStart(t, "https://catalog/playlist/1")
		h.waitForStatus(t, job.ID, StatusFailed)
	})

	t.Run("collaborator panic", func(t *testing.T) {
		runner := &mockRunner{onExecute: func(string, ProgressFunc, *CancelToken) {
			panic("corrupt playlist data")
		}}
		h := newHarness(t, runner, 0)

		job := h.createAndStart(t, "https://catalog/playlist/1")
		h.waitForStatus(t, job.ID, StatusFailed)
	})
}

func TestExecutorQueueChaining(t *testing.T) {
	release := make(chan struct{})
	runner := &mockRunner{
		result:  &SyncResult{Success: true},
		release: release,
	}
	h := newHarness(t, runner, 0)

	first := h.createAndStart(t, "https://catalog/playlist/1")
	h.waitForStatus(t, first.ID, StatusFetchingInfo)

	second, startNow, err := h.store.Create("https://catalog/playlist/2", models.FormatMP3, 0, "test")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if startNow {
		t.Fatal("second job must not start while the first is running")
	}

	if got, _ := h.store.Get(second.ID); got.Status != StatusPending {
		t.Fatalf("second job should be pending, got %s", got.Status)
	}

	close(release)

	// Both jobs finish without any external intervention on the second.
	h.waitForStatus(t, first.ID, StatusCompleted)
	h.waitForStatus(t, second.ID, StatusCompleted)

	urls := runner.executedURLs()
	if len(urls) != 2 || urls[0] != "https://catalog/playlist/1" || urls[1] != "https://catalog/playlist/2" {
		t.Errorf("jobs should execute in FIFO order, got %v", urls)
	}
}

func TestExecutorCancelMidExecution(t *testing.T) {
	release := make(chan struct{})
	runner := &mockRunner{
		// The collaborator eventually reports success; cancellation must win.
		result:  &SyncResult{Success: true},
		release: release,
	}
	h := newHarness(t, runner, 0)

	job := h.createAndStart(t, "https://catalog/playlist/1")
	h.waitForStatus(t, job.ID, StatusFetchingInfo)

	if !h.executor.CancelJob(job.ID) {
		t.Fatal("cancelling a running job should find a live token")
	}

	close(release)
	final := h.waitForStatusTerminal(t, job.ID)
	if final.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", final.Status)
	}
}

func TestExecutorCancelledRunKeepsPartialStats(t *testing.T) {
	release := make(chan struct{})
	runner := &mockRunner{
		// A cancelled collaborator reports what it got through before the
		// token tripped.
		result: &SyncResult{
			Success:     false,
			Error:       "cancelled",
			ContentInfo: &ContentInfo{Title: "Mix", TrackCount: 10},
			Stats:       &DownloadStats{TracksTotal: 10, TracksDownloaded: 4},
		},
		release: release,
	}
	h := newHarness(t, runner, 0)

	job := h.createAndStart(t, "https://catalog/playlist/1")
	h.waitForStatus(t, job.ID, StatusFetchingInfo)

	if !h.executor.CancelJob(job.ID) {
		t.Fatal("cancelling a running job should find a live token")
	}

	close(release)
	final := h.waitForStatusTerminal(t, job.ID)
	if final.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", final.Status)
	}
	if final.Stats == nil || final.Stats.TracksDownloaded != 4 {
		t.Errorf("cancelled job should keep partial stats, got %+v", final.Stats)
	}
	if final.ContentInfo == nil || final.ContentInfo.Title != "Mix" {
		t.Errorf("cancelled job should keep content info, got %+v", final.ContentInfo)
	}
}

func TestExecutorCancelUnknownJob(t *testing.T) {
	runner := &mockRunner{result: &SyncResult{Success: true}}
	h := newHarness(t, runner, 0)

	if h.executor.CancelJob("not-running") {
		t.Error("cancelling a job with no live token should report false")
	}
}

func TestExecutorCancelAllJobs(t *testing.T) {
	release := make(chan struct{})
	runner := &mockRunner{result: &SyncResult{Success: true}, release: release}
	h := newHarness(t, runner, 0)

	job := h.createAndStart(t, "https://catalog/playlist/1")
	h.waitForStatus(t, job.ID, StatusFetchingInfo)

	if got := h.executor.CancelAllJobs(); got != 1 {
		t.Errorf("expected 1 cancelled token, got %d", got)
	}

	close(release)
	final := h.waitForStatusTerminal(t, job.ID)
	if final.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", final.Status)
	}
}

func TestExecutorTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	runner := &mockRunner{result: &SyncResult{Success: true}, release: release}
	h := newHarness(t, runner, 30*time.Millisecond)

	job := h.createAndStart(t, "https://catalog/playlist/1")

	final := h.waitForStatusTerminal(t, job.ID)
	if final.Status != StatusFailed {
		t.Errorf("timed-out job should be failed, got %s", final.Status)
	}
}

func TestExecutorProgressMapping(t *testing.T) {
	runner := &mockRunner{result: &SyncResult{Success: true}}
	progressSent := make(chan struct{})
	runner.onExecute = func(url string, onProgress ProgressFunc, token *CancelToken) {
		onProgress(ProgressUpdate{Step: StepDownloading, Progress: 42, Info: &ContentInfo{Title: "Mix", TrackCount: 3}})
		// Terminal steps from the callback must not settle the job.
		onProgress(ProgressUpdate{Step: StepFailed, Progress: 99})
		close(progressSent)
	}
	h := newHarness(t, runner, 0)

	job := h.createAndStart(t, "https://catalog/playlist/1")
	<-progressSent

	final := h.waitForStatusTerminal(t, job.ID)
	if final.Status != StatusCompleted {
		t.Errorf("a failed callback step must not decide the outcome; got %s", final.Status)
	}
	if final.ContentInfo == nil || final.ContentInfo.Title != "Mix" {
		t.Errorf("content info from progress should be recorded, got %+v", final.ContentInfo)
	}
}

func TestExecutorIgnoresProgressAfterCancel(t *testing.T) {
	runner := &mockRunner{result: &SyncResult{Success: true}}
	proceed := make(chan struct{})
	ready := make(chan struct{})
	var gotToken *CancelToken
	var progressFn ProgressFunc
	runner.onExecute = func(url string, onProgress ProgressFunc, token *CancelToken) {
		gotToken = token
		progressFn = onProgress
		close(ready)
		<-proceed
	}
	h := newHarness(t, runner, 0)

	job := h.createAndStart(t, "https://catalog/playlist/1")
	<-ready

	h.executor.CancelJob(job.ID)
	if gotToken == nil || !gotToken.Cancelled() {
		t.Fatal("token should be cancelled")
	}

	// A late tick from the zombie worker must be dropped silently.
	progressFn(ProgressUpdate{Step: StepDownloading, Progress: 90})
	close(proceed)

	final := h.waitForStatusTerminal(t, job.ID)
	if final.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", final.Status)
	}
	if final.Progress >= 90 {
		t.Errorf("post-cancel progress must be ignored, got %f", final.Progress)
	}
}

func (h *executorHarness) waitForStatusTerminal(t *testing.T, id string) *Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := h.store.Get(id)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", id, err)
		}
		if job.Status.Finished() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := h.store.Get(id)
	t.Fatalf("timed out waiting for %s to finish (currently %s)", id, job.Status)
	return nil
}
