package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/calyptra/tunesync/internal/shared"
	"github.com/charmbracelet/log"
)

// Executor drives one job's execution end-to-end and maintains the
// single-active-job invariant over time.
//
// All shared executor state (the token registry and stop flag) is touched
// only from the dispatch loop goroutine started by [Executor.Run]; worker
// goroutines hand closures to the loop instead of mutating directly. The
// blocking sync itself runs on a worker goroutine so it never stalls the
// loop.
type Executor struct {
	store   *Store
	bus     *Bus
	runner  Runner
	logger  *log.Logger
	timeout time.Duration // zero disables the per-job deadline

	dispatch chan func()
	tokens   map[string]*CancelToken
	wg       sync.WaitGroup
	stopping bool
}

// NewExecutor creates an Executor. timeout bounds a single run; pass zero for
// no deadline.
func NewExecutor(store *Store, bus *Bus, runner Runner, logger *log.Logger, timeout time.Duration) *Executor {
	return &Executor{
		store:    store,
		bus:      bus,
		runner:   runner,
		logger:   logger,
		timeout:  timeout,
		dispatch: make(chan func(), 64),
		tokens:   make(map[string]*CancelToken),
	}
}

// Run serves the dispatch loop until ctx is cancelled, then cancels every
// live token and keeps serving handoffs until in-flight workers have
// finished. Blocks; start it on its own goroutine.
func (e *Executor) Run(ctx context.Context) {
	for {
		select {
		case fn := <-e.dispatch:
			fn()
		case <-ctx.Done():
			e.stopping = true
			for _, token := range e.tokens {
				token.Cancel()
			}

			drained := make(chan struct{})
			go func() {
				e.wg.Wait()
				close(drained)
			}()
			for {
				select {
				case fn := <-e.dispatch:
					fn()
				case <-drained:
					return
				}
			}
		}
	}
}

// post hands a closure to the dispatch loop without waiting for it.
func (e *Executor) post(fn func()) {
	e.dispatch <- fn
}

// call hands a closure to the dispatch loop and waits for it to run.
// Must not be called from the loop itself.
func (e *Executor) call(fn func()) {
	done := make(chan struct{})
	e.dispatch <- func() {
		fn()
		close(done)
	}
	<-done
}

// StartJob launches background execution for a job that already holds the
// active slot. Safe to call from any goroutine.
func (e *Executor) StartJob(job *Job) {
	j := *job
	e.post(func() {
		e.launch(j)
	})
}

// launch starts the worker goroutine for a job. Loop context only.
func (e *Executor) launch(job Job) {
	if e.stopping {
		return
	}
	e.wg.Add(1)
	go e.runJob(job)
}

// CancelJob cancels the live token for a running job. Reports whether a token
// existed, i.e. the job was actually running. Job status is not touched here:
// the running task observes the token and transitions itself, keeping the
// token the single source of truth for "should this stop".
func (e *Executor) CancelJob(id string) bool {
	var found bool
	e.call(func() {
		token, ok := e.tokens[id]
		if ok {
			token.Cancel()
		}
		found = ok
	})
	return found
}

// CancelAllJobs cancels every tracked token and returns how many there were.
// Used during shutdown to unblock graceful exit.
func (e *Executor) CancelAllJobs() int {
	var count int
	e.call(func() {
		for _, token := range e.tokens {
			token.Cancel()
		}
		count = len(e.tokens)
	})
	return count
}

// runJob executes one job on a worker goroutine: registers a fresh token,
// walks the job through its states as the run reports progress, and settles
// the terminal status from the run's return value. The deferred block
// deregisters the token and chains the next pending job exactly once per run
// regardless of outcome.
func (e *Executor) runJob(job Job) {
	defer e.wg.Done()

	token := NewCancelToken()
	e.call(func() {
		e.tokens[job.ID] = token
	})
	defer e.call(func() {
		delete(e.tokens, job.ID)
		e.startNextPending()
	})

	logger := shared.WithLogger(e.logger, "job", job.ID, "url", job.URL)

	if token.Cancelled() {
		e.settle(job.ID, StatusCancelled, nil)
		return
	}

	started := time.Now()
	var startErr error
	e.call(func() {
		startErr = e.apply(job.ID, StatusFetchingInfo, TransitionOpts{StartedAt: &started})
	})
	if startErr != nil {
		logger.Error("failed to mark job started", "error", startErr)
		return
	}

	onProgress := func(u ProgressUpdate) {
		if token.Cancelled() {
			return
		}
		status, ok := statusForStep(u.Step)
		if !ok {
			// Terminal steps from the callback are ignored; the return
			// value decides the real disposition.
			return
		}
		opts := TransitionOpts{ContentInfo: u.Info}
		if u.Progress > 0 {
			p := u.Progress
			opts.Progress = &p
		}
		e.post(func() {
			if err := e.apply(job.ID, status, opts); err != nil {
				logger.Debug("dropped progress update", "step", u.Step, "error", err)
			}
		})
	}

	result, err := e.execute(job, onProgress, token)

	switch {
	case errors.Is(err, shared.ErrTimeout):
		logger.Error("job timed out", "timeout", e.timeout)
		e.settle(job.ID, StatusFailed, nil)
	case token.Cancelled():
		logger.Info("job cancelled")
		// A cancelled run may still return partial stats; keep them.
		e.settle(job.ID, StatusCancelled, result)
	case err != nil:
		logger.Error("job failed", "error", err)
		e.settle(job.ID, StatusFailed, nil)
	case result == nil || !result.Success:
		cause := "sync reported failure"
		if result != nil && result.Error != "" {
			cause = result.Error
		}
		logger.Error("job failed", "cause", cause)
		e.settle(job.ID, StatusFailed, result)
	default:
		logger.Info("job completed", "elapsed", time.Since(started))
		e.settle(job.ID, StatusCompleted, result)
	}
}

// execute invokes the blocking runner on this worker goroutine, racing it
// against the configured deadline. On timeout the token is cancelled and
// [shared.ErrTimeout] returned; the runner may keep executing in the
// background, and its late progress and result are ignored.
func (e *Executor) execute(job Job, onProgress ProgressFunc, token *CancelToken) (*SyncResult, error) {
	type outcome struct {
		result *SyncResult
		err    error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("sync panicked: %v", r)}
			}
		}()
		result, err := e.runner.Execute(job.URL, onProgress, token, job.MaxItems)
		ch <- outcome{result: result, err: err}
	}()

	if e.timeout <= 0 {
		o := <-ch
		return o.result, o.err
	}

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case o := <-ch:
		return o.result, o.err
	case <-timer.C:
		token.Cancel()
		return nil, fmt.Errorf("%w: sync exceeded %s", shared.ErrTimeout, e.timeout)
	}
}

// settle applies a terminal transition from a worker goroutine, synchronously
// through the loop so it is ordered before the deferred queue progression.
func (e *Executor) settle(id string, status Status, result *SyncResult) {
	opts := TransitionOpts{}
	if result != nil {
		opts.ContentInfo = result.ContentInfo
		opts.Stats = result.Stats
	}
	e.call(func() {
		if err := e.apply(id, status, opts); err != nil {
			e.logger.Warn("failed to settle job", "job", id, "status", status, "error", err)
		}
	})
}

// apply transitions a job in the store and broadcasts the update.
// Loop context only.
func (e *Executor) apply(id string, status Status, opts TransitionOpts) error {
	job, err := e.store.Transition(id, status, opts)
	if err != nil {
		return err
	}
	e.bus.EmitUpdated(job)
	return nil
}

// startNextPending pulls the oldest pending job and launches it. This is how
// FIFO queueing is realized without a separate scheduling loop. Loop context
// only.
func (e *Executor) startNextPending() {
	if e.stopping {
		return
	}
	if job := e.store.PopNextPending(); job != nil {
		e.launch(*job)
	}
}
