package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/calyptra/tunesync/internal/catalog"
	"github.com/calyptra/tunesync/internal/jobs"
	"github.com/calyptra/tunesync/internal/library"
	"github.com/calyptra/tunesync/internal/models"
	"github.com/calyptra/tunesync/internal/shared"
)

// Progress is split across three phases by weight: fetching the listing
// covers the first tenth, downloading the bulk, and importing the tail.
const (
	fetchPhaseEnd    = 10.0
	downloadPhaseEnd = 90.0
	importPhaseEnd   = 100.0
)

// Syncer runs playlist syncs against a catalog and a library writer.
type Syncer struct {
	catalog catalog.Client
	library *library.Writer
	logger  *log.Logger
}

// New creates a Syncer.
func New(client catalog.Client, writer *library.Writer, logger *log.Logger) *Syncer {
	return &Syncer{
		catalog: client,
		library: writer,
		logger:  logger,
	}
}

// Execute syncs one playlist URL. It blocks until done, checking token
// between tracks so a cancelled run stops at the next track boundary. A
// returned error means the run never produced a usable result; per-track
// download failures are recorded in the result's stats instead.
func (s *Syncer) Execute(url string, onProgress jobs.ProgressFunc, token *jobs.CancelToken, maxItems int) (*jobs.SyncResult, error) {
	started := time.Now()
	ctx := context.Background()

	playlistID, err := catalog.PlaylistIDFromURL(url)
	if err != nil {
		return nil, err
	}

	onProgress(jobs.ProgressUpdate{
		Step:    jobs.StepFetchingInfo,
		Message: "fetching playlist info",
	})

	export, err := s.catalog.ExportPlaylist(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to export playlist %s: %w", playlistID, err)
	}

	tracks := export.Tracks
	if maxItems > 0 && len(tracks) > maxItems {
		tracks = tracks[:maxItems]
	}

	info := &jobs.ContentInfo{
		Title:      export.Playlist.Name,
		Owner:      export.Playlist.Owner,
		TrackCount: len(tracks),
	}

	onProgress(jobs.ProgressUpdate{
		Step:     jobs.StepFetchingInfo,
		Message:  fmt.Sprintf("found %d tracks", len(tracks)),
		Progress: fetchPhaseEnd,
		Info:     info,
	})

	dir, err := s.library.PlaylistDir(export.Playlist.Name)
	if err != nil {
		return nil, err
	}

	stats := &jobs.DownloadStats{TracksTotal: len(tracks)}
	downloaded := make([]models.Track, 0, len(tracks))

	for i, track := range tracks {
		if token.Cancelled() {
			stats.ElapsedSeconds = time.Since(started).Seconds()
			return &jobs.SyncResult{
				Success:     false,
				Error:       "cancelled",
				ContentInfo: info,
				Stats:       stats,
			}, nil
		}

		if s.library.Exists(dir, track) {
			stats.TracksSkipped++
			downloaded = append(downloaded, track)
			s.reportTrack(onProgress, i, len(tracks), track, "skipped")
			continue
		}

		written, err := s.library.DownloadTrack(ctx, dir, track)
		if err != nil {
			stats.TracksFailed++
			s.logger.Warn("track download failed", "track", track.Title, "error", err)
			if errors.Is(err, shared.ErrServiceUnavailable) {
				stats.ElapsedSeconds = time.Since(started).Seconds()
				return nil, err
			}
			s.reportTrack(onProgress, i, len(tracks), track, "failed")
			continue
		}

		if err := s.library.TagTrack(dir, track, export.Playlist.Name); err != nil {
			s.logger.Warn("failed to tag track", "track", track.Title, "error", err)
		}

		stats.TracksDownloaded++
		stats.BytesWritten += written
		downloaded = append(downloaded, track)
		s.reportTrack(onProgress, i, len(tracks), track, "downloaded")
	}

	onProgress(jobs.ProgressUpdate{
		Step:     jobs.StepImporting,
		Message:  "writing playlist file",
		Progress: downloadPhaseEnd,
	})

	if err := s.library.WritePlaylistFile(dir, export.Playlist.Name, downloaded); err != nil {
		return nil, err
	}

	onProgress(jobs.ProgressUpdate{
		Step:     jobs.StepImporting,
		Message:  "import complete",
		Progress: importPhaseEnd,
	})

	stats.ElapsedSeconds = time.Since(started).Seconds()

	result := &jobs.SyncResult{
		Success:     true,
		ContentInfo: info,
		Stats:       stats,
	}
	// A run where every track failed has nothing to show for itself.
	if len(tracks) > 0 && stats.TracksDownloaded == 0 && stats.TracksSkipped == 0 {
		result.Success = false
		result.Error = fmt.Sprintf("all %d tracks failed to download", stats.TracksFailed)
	} else if stats.TracksFailed > 0 {
		result.Error = fmt.Sprintf("%d of %d tracks failed to download", stats.TracksFailed, stats.TracksTotal)
	}

	return result, nil
}

// reportTrack emits a downloading-phase tick after the i-th of total tracks
// settled, scaling progress across the download phase's share.
func (s *Syncer) reportTrack(onProgress jobs.ProgressFunc, i, total int, track models.Track, outcome string) {
	span := downloadPhaseEnd - fetchPhaseEnd
	progress := fetchPhaseEnd + span*float64(i+1)/float64(total)
	onProgress(jobs.ProgressUpdate{
		Step:     jobs.StepDownloading,
		Message:  fmt.Sprintf("%s %s - %s", outcome, track.Artist, track.Title),
		Progress: progress,
		Details:  map[string]any{"track": track.Title, "outcome": outcome},
	})
}
