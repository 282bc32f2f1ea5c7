package library

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calyptra/tunesync/internal/models"
	"github.com/calyptra/tunesync/internal/shared"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Morning Mix", "Morning Mix"},
		{"path separators", "AC/DC: Live", "AC-DC- Live"},
		{"windows reserved", `What? <Now> | "Here"`, "What (Now) - 'Here'"},
		{"whitespace", "  padded  ", "padded"},
		{"empty result", "???", "untitled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestWriterTrackPath(t *testing.T) {
	w := NewWriter(t.TempDir(), models.FormatMP3, nil)
	track := models.Track{Title: "One/Two", Artist: "A:B", TrackNo: 3}

	got := filepath.Base(w.TrackPath("/music/Mix", track))
	want := "03 - A-B - One-Two.mp3"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestWriterDownloadTrack(t *testing.T) {
	audio := strings.Repeat("x", 2048)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte(audio))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	w := NewWriter(t.TempDir(), models.FormatMP3, srv.Client())
	dir, err := w.PlaylistDir("Mix")
	if err != nil {
		t.Fatalf("PlaylistDir failed: %v", err)
	}

	t.Run("successful download", func(t *testing.T) {
		track := models.Track{Title: "One", Artist: "A", TrackNo: 1, StreamURL: srv.URL + "/ok"}
		written, err := w.DownloadTrack(context.Background(), dir, track)
		if err != nil {
			t.Fatalf("DownloadTrack failed: %v", err)
		}
		if written != int64(len(audio)) {
			t.Errorf("expected %d bytes, got %d", len(audio), written)
		}
		if !w.Exists(dir, track) {
			t.Error("expected Exists to report the downloaded track")
		}
		if _, err := os.Stat(w.TrackPath(dir, track) + ".part"); !os.IsNotExist(err) {
			t.Error("expected temporary file to be renamed away")
		}
	})

	t.Run("missing stream URL", func(t *testing.T) {
		track := models.Track{Title: "Two", Artist: "A", TrackNo: 2}
		if _, err := w.DownloadTrack(context.Background(), dir, track); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("track gone upstream", func(t *testing.T) {
		track := models.Track{Title: "Three", Artist: "A", TrackNo: 3, StreamURL: srv.URL + "/missing"}
		if _, err := w.DownloadTrack(context.Background(), dir, track); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
		if w.Exists(dir, track) {
			t.Error("failed download should not leave a track behind")
		}
	})

	t.Run("server error", func(t *testing.T) {
		track := models.Track{Title: "Four", Artist: "A", TrackNo: 4, StreamURL: srv.URL + "/boom"}
		if _, err := w.DownloadTrack(context.Background(), dir, track); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestWriterWritePlaylistFile(t *testing.T) {
	w := NewWriter(t.TempDir(), models.FormatMP3, nil)
	dir, err := w.PlaylistDir("Evening Mix")
	if err != nil {
		t.Fatalf("PlaylistDir failed: %v", err)
	}

	tracks := []models.Track{
		{Title: "One", Artist: "A", TrackNo: 1, Duration: 180},
		{Title: "Two", Artist: "B", TrackNo: 2, Duration: 200},
	}
	if err := w.WritePlaylistFile(dir, "Evening Mix", tracks); err != nil {
		t.Fatalf("WritePlaylistFile failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "Evening Mix.m3u"))
	if err != nil {
		t.Fatalf("failed to read playlist file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "#EXTM3U" {
		t.Errorf("expected #EXTM3U header, got %q", lines[0])
	}
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d: %q", len(lines), lines)
	}
	if lines[1] != "#EXTINF:180,A - One" {
		t.Errorf("unexpected EXTINF line: %q", lines[1])
	}
	if lines[2] != "01 - A - One.mp3" {
		t.Errorf("unexpected entry line: %q", lines[2])
	}
}
