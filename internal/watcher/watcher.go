// Package watcher periodically enqueues sync jobs for stored subscriptions
// whose playlists have not been synced within the configured interval.
package watcher

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/calyptra/tunesync/internal/jobs"
	"github.com/calyptra/tunesync/internal/models"
	"github.com/calyptra/tunesync/internal/repositories"
	"github.com/calyptra/tunesync/internal/shared"
)

// Subscriptions is the repository surface the watcher needs.
type Subscriptions interface {
	ListDue(cutoff time.Time) ([]*models.Subscription, error)
	MarkSynced(id string, syncedAt time.Time) error
}

// Watcher scans subscriptions on a fixed interval and feeds due ones into
// the job queue. Enqueues are paced so a large subscription list does not
// flood the queue in one burst.
type Watcher struct {
	subs     Subscriptions
	store    *jobs.Store
	executor *jobs.Executor
	bus      *jobs.Bus
	interval time.Duration
	limiter  *rate.Limiter
	logger   *log.Logger
}

var _ Subscriptions = (*repositories.SubscriptionRepository)(nil)

// New creates a Watcher that scans every interval.
func New(subs Subscriptions, store *jobs.Store, executor *jobs.Executor, bus *jobs.Bus, interval time.Duration, logger *log.Logger) *Watcher {
	return &Watcher{
		subs:     subs,
		store:    store,
		executor: executor,
		bus:      bus,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		logger:   logger,
	}
}

// Run scans immediately, then on every tick until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	w.logger.Info("watcher started", "interval", w.interval)

	w.Scan(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return
		case <-ticker.C:
			w.Scan(ctx)
		}
	}
}

// Scan enqueues a sync job for every subscription due as of now. It stops
// early when the queue fills; the remaining subscriptions stay due and are
// picked up by a later scan.
func (w *Watcher) Scan(ctx context.Context) {
	cutoff := time.Now().Add(-w.interval)

	due, err := w.subs.ListDue(cutoff)
	if err != nil {
		w.logger.Error("failed to list due subscriptions", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	w.logger.Info("found due subscriptions", "count", len(due))

	for _, sub := range due {
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}

		job, startNow, err := w.store.Create(sub.PlaylistURL(), sub.AudioFormat(), sub.MaxItems(), "watcher")
		if err != nil {
			if errors.Is(err, shared.ErrQueueFull) {
				w.logger.Warn("job queue full, deferring remaining subscriptions")
				return
			}
			w.logger.Error("failed to enqueue subscription", "url", sub.PlaylistURL(), "error", err)
			continue
		}

		w.bus.EmitCreated(job)
		if startNow {
			w.executor.StartJob(job)
		}

		if err := w.subs.MarkSynced(sub.ID(), time.Now()); err != nil {
			w.logger.Error("failed to record sync time", "id", sub.ID(), "error", err)
		}

		w.logger.Info("enqueued subscription sync", "url", sub.PlaylistURL(), "job", job.ID)
	}
}
