package models

import "fmt"

// Playlist represents a music playlist from the streaming catalog
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
	TrackCount  int    `json:"track_count"`
}

// PlaylistExport represents a playlist with all its tracks for downloading
type PlaylistExport struct {
	Playlist Playlist `json:"playlist"`
	Tracks   []Track  `json:"tracks"`
}

// Track represents a music track from the streaming catalog
type Track struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Album     string `json:"album"`
	TrackNo   int    `json:"track_no"`
	Duration  int    `json:"duration"` // Duration in seconds
	StreamURL string `json:"stream_url"`
}

// AudioFormat enumerates the audio formats tracks can be requested in.
type AudioFormat string

const (
	FormatMP3  AudioFormat = "mp3"
	FormatFLAC AudioFormat = "flac"
	FormatOGG  AudioFormat = "ogg"
	FormatOpus AudioFormat = "opus"
)

// ParseAudioFormat validates a format string and returns the matching [AudioFormat].
func ParseAudioFormat(s string) (AudioFormat, error) {
	switch AudioFormat(s) {
	case FormatMP3, FormatFLAC, FormatOGG, FormatOpus:
		return AudioFormat(s), nil
	case "":
		return FormatMP3, nil
	default:
		return "", fmt.Errorf("unsupported audio format: %q", s)
	}
}

func (f AudioFormat) String() string {
	return string(f)
}
