package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/calyptra/tunesync/internal/models"
	"github.com/calyptra/tunesync/internal/shared"
)

// Store is the authoritative in-memory registry of job records. It owns all
// status transitions, the FIFO pending queue, and the single active slot.
//
// All methods are safe for concurrent use; a single mutex serializes mutation,
// which is sufficient at the job volumes a personal library sees.
type Store struct {
	mu       sync.Mutex
	limit    int
	jobs     map[string]*Job
	order    []string // creation order, oldest first
	activeID string   // job currently holding the active slot, "" when free
}

// NewStore creates a Store admitting at most limit outstanding
// (pending + active) jobs.
func NewStore(limit int) *Store {
	return &Store{
		limit: limit,
		jobs:  make(map[string]*Job),
	}
}

// TransitionOpts carries the optional fields a transition may update.
type TransitionOpts struct {
	Progress    *float64
	ContentInfo *ContentInfo
	Stats       *DownloadStats
	StartedAt   *time.Time
}

// Create registers a new PENDING job for the given URL. The second return
// value tells the caller to start the job immediately: it is true only when
// no other job holds the active slot and no older job is still pending. The
// slot is claimed atomically with creation so two concurrent callers can
// never both see a free slot.
//
// Returns [shared.ErrQueueFull] when outstanding jobs have reached the limit.
func (s *Store) Create(url string, format models.AudioFormat, maxItems int, source string) (*Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outstanding := 0
	for _, id := range s.order {
		if !s.jobs[id].Status.Finished() {
			outstanding++
		}
	}
	if outstanding >= s.limit {
		return nil, false, fmt.Errorf("%w: %d jobs outstanding (limit %d)", shared.ErrQueueFull, outstanding, s.limit)
	}

	job := &Job{
		ID:        shared.GenerateID(),
		URL:       url,
		Format:    format,
		MaxItems:  maxItems,
		Source:    source,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)

	// The slot being free is not enough: older pending jobs keep their place
	// in line. A free slot with jobs still pending means a finished run has
	// not chained the next job yet, and that chain will pop the oldest.
	startNow := s.activeID == "" && !s.hasPendingBefore(job.ID)
	if startNow {
		s.activeID = job.ID
	}

	return job.clone(), startNow, nil
}

// hasPendingBefore reports whether any job older than id is still PENDING.
// Callers must hold s.mu.
func (s *Store) hasPendingBefore(id string) bool {
	for _, oid := range s.order {
		if oid == id {
			return false
		}
		if s.jobs[oid].Status == StatusPending {
			return true
		}
	}
	return false
}

// Transition validates and applies a status change, returning the updated
// job. Progress never decreases within a run; the COMPLETED transition always
// lands at 100. Terminal transitions release the active slot.
func (s *Store) Transition(id string, status Status, opts TransitionOpts) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	if job.Status.Finished() {
		return nil, fmt.Errorf("%w: %s is %s", shared.ErrJobFinished, id, job.Status)
	}
	if !validTransition(job.Status, status) {
		return nil, fmt.Errorf("%w: %s → %s", shared.ErrInvalidTransition, job.Status, status)
	}

	job.Status = status
	if opts.Progress != nil && *opts.Progress > job.Progress {
		job.Progress = *opts.Progress
	}
	if opts.ContentInfo != nil {
		job.ContentInfo = opts.ContentInfo
	}
	if opts.Stats != nil {
		job.Stats = opts.Stats
	}
	if opts.StartedAt != nil {
		job.StartedAt = opts.StartedAt
	}

	if status.Finished() {
		now := time.Now()
		job.CompletedAt = &now
		if status == StatusCompleted {
			job.Progress = 100
		}
		if s.activeID == id {
			s.activeID = ""
		}
	}

	return job.clone(), nil
}

// PopNextPending atomically takes the oldest pending job, claims the active
// slot for it, and returns it. Returns nil while another job holds the slot
// or when nothing is pending.
func (s *Store) PopNextPending() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID != "" {
		return nil
	}
	for _, id := range s.order {
		job := s.jobs[id]
		if job.Status == StatusPending {
			s.activeID = id
			return job.clone()
		}
	}
	return nil
}

// Get returns the job with the given id.
func (s *Store) Get(id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	return job.clone(), nil
}

// All returns every job, oldest first.
func (s *Store) All() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*Job, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, s.jobs[id].clone())
	}
	return all
}

// Cancel marks the job CANCELLED unless it already finished. Reports whether
// the mark was applied. For a running job prefer [Executor.CancelJob], which
// lets the run observe its token and transition itself.
func (s *Store) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status.Finished() {
		return false
	}

	job.Status = StatusCancelled
	now := time.Now()
	job.CompletedAt = &now
	if s.activeID == id {
		s.activeID = ""
	}
	return true
}

// ClearFinished removes all terminal jobs and returns how many were removed.
// Pending and active jobs are untouched.
func (s *Store) ClearFinished() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	removed := 0
	for _, id := range s.order {
		if s.jobs[id].Status.Finished() {
			delete(s.jobs, id)
			removed++
		} else {
			kept = append(kept, id)
		}
	}
	s.order = kept
	return removed
}

// Delete removes a single finished job. Running or pending jobs cannot be
// deleted.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	if !job.Status.Finished() {
		return fmt.Errorf("%w: %s is %s", shared.ErrJobRunning, id, job.Status)
	}

	delete(s.jobs, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
