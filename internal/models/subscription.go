package models

import (
	"fmt"
	"net/url"
	"time"
)

// Subscription represents a playlist the watcher keeps in sync with the local library.
type Subscription struct {
	id           string
	sequence     int
	playlistURL  string
	playlistName string
	audioFormat  AudioFormat
	maxItems     int
	lastSyncedAt *time.Time
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

// NewSubscription creates a Subscription for the given playlist URL.
// The ID is assigned by the repository on insert.
func NewSubscription(sequence int, playlistURL, playlistName string, format AudioFormat, maxItems int) *Subscription {
	now := time.Now()
	return &Subscription{
		sequence:     sequence,
		playlistURL:  playlistURL,
		playlistName: playlistName,
		audioFormat:  format,
		maxItems:     maxItems,
		createdAt:    now,
		updatedAt:    now,
	}
}

func (s *Subscription) ID() string             { return s.id }
func (s *Subscription) Sequence() int          { return s.sequence }
func (s *Subscription) PlaylistURL() string    { return s.playlistURL }
func (s *Subscription) PlaylistName() string   { return s.playlistName }
func (s *Subscription) AudioFormat() AudioFormat { return s.audioFormat }
func (s *Subscription) MaxItems() int          { return s.maxItems }
func (s *Subscription) LastSyncedAt() *time.Time { return s.lastSyncedAt }
func (s *Subscription) CreatedAt() time.Time   { return s.createdAt }
func (s *Subscription) UpdatedAt() time.Time   { return s.updatedAt }
func (s *Subscription) DeletedAt() *time.Time  { return s.deletedAt }

func (s *Subscription) SetID(id string)                { s.id = id }
func (s *Subscription) SetSequence(n int)              { s.sequence = n }
func (s *Subscription) SetPlaylistName(name string)    { s.playlistName = name }
func (s *Subscription) SetAudioFormat(f AudioFormat)   { s.audioFormat = f }
func (s *Subscription) SetMaxItems(n int)              { s.maxItems = n }
func (s *Subscription) SetLastSyncedAt(t *time.Time)   { s.lastSyncedAt = t }
func (s *Subscription) SetCreatedAt(t time.Time)       { s.createdAt = t }
func (s *Subscription) SetUpdatedAt(t time.Time)       { s.updatedAt = t }
func (s *Subscription) SetDeletedAt(t *time.Time)      { s.deletedAt = t }

// Validate checks if the subscription's data is valid.
func (s *Subscription) Validate() error {
	if s.playlistURL == "" {
		return fmt.Errorf("playlist URL is required")
	}
	if _, err := url.ParseRequestURI(s.playlistURL); err != nil {
		return fmt.Errorf("invalid playlist URL: %w", err)
	}
	if _, err := ParseAudioFormat(string(s.audioFormat)); err != nil {
		return err
	}
	if s.maxItems < 0 {
		return fmt.Errorf("max items must not be negative")
	}
	return nil
}
