package library

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/calyptra/tunesync/internal/models"
	"github.com/calyptra/tunesync/internal/shared"
)

// Writer downloads tracks into a directory tree rooted at a playlist
// folder and produces an m3u index for the tracks it wrote.
type Writer struct {
	root       string
	format     models.AudioFormat
	httpClient *http.Client
}

// NewWriter creates a Writer rooted at dir. Tracks are written under
// dir/<playlist name>/ in the given format.
func NewWriter(dir string, format models.AudioFormat, client *http.Client) *Writer {
	if client == nil {
		client = http.DefaultClient
	}

	return &Writer{
		root:       dir,
		format:     format,
		httpClient: client,
	}
}

// PlaylistDir returns the directory tracks for the named playlist are
// written to, creating it if necessary.
func (w *Writer) PlaylistDir(playlistName string) (string, error) {
	dir := filepath.Join(w.root, SanitizeFilename(playlistName))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create playlist directory: %w", err)
	}
	return dir, nil
}

// TrackPath returns the destination path for a track within dir.
func (w *Writer) TrackPath(dir string, track models.Track) string {
	name := fmt.Sprintf("%02d - %s - %s.%s",
		track.TrackNo, SanitizeFilename(track.Artist), SanitizeFilename(track.Title), w.format)
	return filepath.Join(dir, name)
}

// Exists reports whether the track has already been downloaded to dir.
func (w *Writer) Exists(dir string, track models.Track) bool {
	info, err := os.Stat(w.TrackPath(dir, track))
	return err == nil && info.Size() > 0
}

// DownloadTrack streams the track's audio to its destination path and
// returns the number of bytes written. The file is written to a temporary
// name and renamed on success so partial downloads never leave a track
// that [Writer.Exists] would accept.
func (w *Writer) DownloadTrack(ctx context.Context, dir string, track models.Track) (int64, error) {
	if track.StreamURL == "" {
		return 0, fmt.Errorf("%w: track %q has no stream URL", shared.ErrTrackNotFound, track.Title)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, track.StreamURL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, track.Title)
	case resp.StatusCode >= 500:
		return 0, fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return 0, fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	dest := w.TrackPath(dir, track)
	tmp := dest + ".part"

	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	written, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to write %s: %w", dest, err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to finalize %s: %w", dest, err)
	}

	return written, nil
}

// WritePlaylistFile generates an extended m3u file in dir listing the
// given tracks in order. Entries use paths relative to dir so the
// playlist survives moving the folder.
func (w *Writer) WritePlaylistFile(dir, playlistName string, tracks []models.Track) error {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, tr := range tracks {
		fmt.Fprintf(&b, "#EXTINF:%d,%s - %s\n", tr.Duration, tr.Artist, tr.Title)
		b.WriteString(filepath.Base(w.TrackPath(dir, tr)))
		b.WriteByte('\n')
	}

	path := filepath.Join(dir, SanitizeFilename(playlistName)+".m3u")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write playlist file: %w", err)
	}
	return nil
}

// SanitizeFilename strips characters that are unsafe in file names on
// common filesystems and collapses surrounding whitespace.
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "'",
		"<", "(",
		">", ")",
		"|", "-",
		"\x00", "",
	)
	cleaned := strings.TrimSpace(replacer.Replace(name))
	if cleaned == "" {
		return "untitled"
	}
	return cleaned
}
