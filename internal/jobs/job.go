package jobs

import (
	"time"

	"github.com/calyptra/tunesync/internal/models"
)

// Status represents a job's position in its lifecycle.
type Status string

const (
	StatusPending      Status = "pending"
	StatusFetchingInfo Status = "fetching_info"
	StatusDownloading  Status = "downloading"
	StatusImporting    Status = "importing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

// statusRank orders the forward path of the state machine.
// Terminal failure states are handled separately.
var statusRank = map[Status]int{
	StatusPending:      0,
	StatusFetchingInfo: 1,
	StatusDownloading:  2,
	StatusImporting:    3,
	StatusCompleted:    4,
}

// Finished reports whether the status is terminal.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Active reports whether the status occupies the running slot
// (non-pending, non-terminal).
func (s Status) Active() bool {
	return s == StatusFetchingInfo || s == StatusDownloading || s == StatusImporting
}

// validTransition reports whether from → to is allowed by the state machine:
// forward movement along pending → fetching_info → downloading → importing →
// completed, failure/cancellation from any non-terminal state, and repeated
// same-status updates while running (progress ticks).
func validTransition(from, to Status) bool {
	if from.Finished() {
		return false
	}
	if to == StatusFailed || to == StatusCancelled {
		return true
	}
	if to == StatusPending {
		return false
	}
	return statusRank[to] >= statusRank[from]
}

// ContentInfo describes the playlist or album a job is syncing.
type ContentInfo struct {
	Title      string `json:"title"`
	Owner      string `json:"owner,omitempty"`
	TrackCount int    `json:"track_count"`
}

// DownloadStats summarizes a completed run's download phase.
type DownloadStats struct {
	TracksTotal      int     `json:"tracks_total"`
	TracksDownloaded int     `json:"tracks_downloaded"`
	TracksFailed     int     `json:"tracks_failed"`
	TracksSkipped    int     `json:"tracks_skipped"`
	BytesWritten     int64   `json:"bytes_written"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
}

// Job represents one sync request and its tracked lifecycle state.
//
// Jobs are owned by the [Store]; callers receive copies and mutate only
// through [Store.Transition].
type Job struct {
	ID          string             `json:"id"`
	URL         string             `json:"url"`
	Format      models.AudioFormat `json:"format"`
	MaxItems    int                `json:"max_items,omitempty"`
	Source      string             `json:"source"`
	Status      Status             `json:"status"`
	Progress    float64            `json:"progress"`
	ContentInfo *ContentInfo       `json:"content_info,omitempty"`
	Stats       *DownloadStats     `json:"stats,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// clone returns a copy safe to hand to callers. ContentInfo and Stats are
// value-copied so a caller cannot reach back into store-owned state.
func (j *Job) clone() *Job {
	c := *j
	if j.ContentInfo != nil {
		info := *j.ContentInfo
		c.ContentInfo = &info
	}
	if j.Stats != nil {
		stats := *j.Stats
		c.Stats = &stats
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
