package library

import (
	"fmt"
	"strconv"

	id3v2 "github.com/bogem/id3v2/v2"

	"github.com/calyptra/tunesync/internal/models"
)

// TagTrack embeds ID3v2 metadata into an mp3 file. Non-mp3 formats are
// left untouched since their containers carry metadata differently.
func (w *Writer) TagTrack(dir string, track models.Track, playlistName string) error {
	if w.format != models.FormatMP3 {
		return nil
	}

	path := w.TrackPath(dir, track)
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open %s for tagging: %w", path, err)
	}
	defer tag.Close()

	tag.SetTitle(track.Title)
	tag.SetArtist(track.Artist)
	tag.SetAlbum(track.Album)
	if track.TrackNo > 0 {
		tag.AddTextFrame(tag.CommonID("Track number/Position in set"),
			tag.DefaultEncoding(), strconv.Itoa(track.TrackNo))
	}
	if playlistName != "" {
		tag.AddTextFrame(tag.CommonID("Content group description"),
			tag.DefaultEncoding(), playlistName)
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save tags for %s: %w", path, err)
	}
	return nil
}
