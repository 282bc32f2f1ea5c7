package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/calyptra/tunesync/internal/models"
	"github.com/calyptra/tunesync/internal/shared"
)

// SubscriptionRepository implements models.Repository[*models.Subscription].
//
// Handles subscription CRUD operations with soft delete support and
// sync-scheduling lookups for the watcher.
type SubscriptionRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.Subscription] = (*SubscriptionRepository)(nil)

// NewSubscriptionRepository creates a new SubscriptionRepository with the given database connection
func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Create inserts a new subscription into the database with generated ID and sequence
func (r *SubscriptionRepository) Create(sub *models.Subscription) error {
	sequence, err := NextSequence(r.db, "subscriptions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	sub.SetID(id)
	sub.SetSequence(sequence)

	if err := sub.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO subscriptions (id, sequence, playlist_url, playlist_name, audio_format, max_items, last_synced_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		sub.PlaylistURL(),
		sub.PlaylistName(),
		string(sub.AudioFormat()),
		sub.MaxItems(),
		sub.LastSyncedAt(),
		sub.CreatedAt(),
		sub.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert subscription: %w", err)
	}

	return nil
}

// Get retrieves a subscription by ID, excluding soft-deleted subscriptions
func (r *SubscriptionRepository) Get(id string) (*models.Subscription, error) {
	query := `
		SELECT id, sequence, playlist_url, playlist_name, audio_format, max_items, last_synced_at, created_at, updated_at, deleted_at
		FROM subscriptions
		WHERE id = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByURL retrieves a subscription by its playlist URL
func (r *SubscriptionRepository) GetByURL(playlistURL string) (*models.Subscription, error) {
	query := `
		SELECT id, sequence, playlist_url, playlist_name, audio_format, max_items, last_synced_at, created_at, updated_at, deleted_at
		FROM subscriptions
		WHERE playlist_url = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, playlistURL))
}

// Update modifies an existing subscription in the database
func (r *SubscriptionRepository) Update(sub *models.Subscription) error {
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	sub.SetUpdatedAt(now)

	query := `
		UPDATE subscriptions
		SET playlist_name = ?, audio_format = ?, max_items = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		sub.PlaylistName(),
		string(sub.AudioFormat()),
		sub.MaxItems(),
		now,
		sub.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("subscription not found or already deleted: %s", sub.ID())
	}

	return nil
}

// MarkSynced records the time a subscription's playlist last finished syncing
func (r *SubscriptionRepository) MarkSynced(id string, syncedAt time.Time) error {
	query := `
		UPDATE subscriptions
		SET last_synced_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, syncedAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark subscription synced: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("subscription not found or already deleted: %s", id)
	}

	return nil
}

// Delete soft-deletes a subscription by ID
func (r *SubscriptionRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE subscriptions
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("subscription not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves all subscriptions ordered by sequence, excluding soft-deleted subscriptions
func (r *SubscriptionRepository) List() ([]*models.Subscription, error) {
	query := `
		SELECT id, sequence, playlist_url, playlist_name, audio_format, max_items, last_synced_at, created_at, updated_at, deleted_at
		FROM subscriptions
		WHERE deleted_at IS NULL
		ORDER BY sequence ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// ListDue retrieves subscriptions whose last sync is older than the cutoff,
// or which have never synced, ordered by sequence
func (r *SubscriptionRepository) ListDue(cutoff time.Time) ([]*models.Subscription, error) {
	query := `
		SELECT id, sequence, playlist_url, playlist_name, audio_format, max_items, last_synced_at, created_at, updated_at, deleted_at
		FROM subscriptions
		WHERE deleted_at IS NULL AND (last_synced_at IS NULL OR last_synced_at < ?)
		ORDER BY sequence ASC
	`

	rows, err := r.db.Query(query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list due subscriptions: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

func (r *SubscriptionRepository) scanAll(rows *sql.Rows) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	for rows.Next() {
		sub, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}
	return subs, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func (r *SubscriptionRepository) scanOne(row *sql.Row) (*models.Subscription, error) {
	sub, err := r.scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("subscription not found")
	}
	return sub, err
}

func (r *SubscriptionRepository) scanRow(row scannable) (*models.Subscription, error) {
	var (
		id, playlistURL, playlistName, format string
		sequence, maxItems                    int
		lastSyncedAt, deletedAt               sql.NullTime
		createdAt, updatedAt                  time.Time
	)

	err := row.Scan(&id, &sequence, &playlistURL, &playlistName, &format,
		&maxItems, &lastSyncedAt, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}

	audioFormat, err := models.ParseAudioFormat(format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored audio format: %w", err)
	}

	sub := models.NewSubscription(sequence, playlistURL, playlistName, audioFormat, maxItems)
	sub.SetID(id)
	sub.SetCreatedAt(createdAt)
	sub.SetUpdatedAt(updatedAt)
	if lastSyncedAt.Valid {
		t := lastSyncedAt.Time
		sub.SetLastSyncedAt(&t)
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		sub.SetDeletedAt(&t)
	}

	return sub, nil
}
