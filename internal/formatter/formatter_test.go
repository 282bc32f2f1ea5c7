package formatter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calyptra/tunesync/internal/models"
)

func testExport() *models.PlaylistExport {
	return &models.PlaylistExport{
		Playlist: models.Playlist{
			ID:          "p1",
			Name:        "Morning Mix",
			Description: "wake up songs",
			Owner:       "dana",
			TrackCount:  2,
		},
		Tracks: []models.Track{
			{ID: "t1", Title: "Sunrise", Artist: "Alpha", Album: "Dawn", TrackNo: 1, Duration: 185},
			{ID: "t2", Title: "Coffee", Artist: "Beta", TrackNo: 2, Duration: 240},
		},
	}
}

func TestExportToCSV(t *testing.T) {
	data, err := ExportToCSV(testExport())
	if err != nil {
		t.Fatalf("ExportToCSV failed: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse generated CSV: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(records))
	}
	if records[0][1] != "Title" {
		t.Errorf("unexpected header: %v", records[0])
	}
	if records[1][1] != "Sunrise" || records[1][5] != "185" {
		t.Errorf("unexpected first row: %v", records[1])
	}
}

func TestExportToMarkdown(t *testing.T) {
	data, err := ExportToMarkdown(testExport())
	if err != nil {
		t.Fatalf("ExportToMarkdown failed: %v", err)
	}
	md := string(data)

	if !strings.HasPrefix(md, "# Morning Mix\n") {
		t.Errorf("expected title heading, got %q", md[:30])
	}
	if !strings.Contains(md, "**Owner**: dana") {
		t.Error("expected owner line")
	}
	if !strings.Contains(md, "1. Alpha - Sunrise (Dawn) [3:05]") {
		t.Errorf("unexpected track line in:\n%s", md)
	}
	if !strings.Contains(md, "2. Beta - Coffee [4:00]") {
		t.Error("album-less track should omit the album part")
	}
}

func TestExportToText(t *testing.T) {
	data, err := ExportToText(testExport())
	if err != nil {
		t.Fatalf("ExportToText failed: %v", err)
	}
	text := string(data)

	if !strings.HasPrefix(text, "Playlist: Morning Mix\n") {
		t.Errorf("unexpected header: %q", text)
	}
	if !strings.Contains(text, "2. Beta - Coffee\n") {
		t.Errorf("expected numbered track lines in:\n%s", text)
	}
}

func TestWriteCSVExport(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "morning")

	result, err := WriteCSVExport(testExport(), base)
	if err != nil {
		t.Fatalf("WriteCSVExport failed: %v", err)
	}

	if result.TracksFile != base+"_tracks.csv" {
		t.Errorf("unexpected tracks file: %s", result.TracksFile)
	}
	for _, path := range []string{result.TracksFile, result.MetadataFile} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to exist: %v", path, err)
		}
	}

	meta, err := os.ReadFile(result.MetadataFile)
	if err != nil {
		t.Fatalf("failed to read metadata: %v", err)
	}
	if !strings.Contains(string(meta), `"name": "Morning Mix"`) {
		t.Errorf("unexpected metadata: %s", meta)
	}
}
