// package repositories provides the persistence layer for subscriptions.
//
// Repositories implement models.Repository[T], handling CRUD operations,
// soft deletes, and sequence generation over the embedded SQLite schema.
package repositories

import (
	"database/sql"
	"fmt"
)

// NextSequence atomically increments and returns the next sequence number for
// the given table. Sequence numbers give entities a stable human-readable
// ordering (subscription #15); they are used for sorting, never shown in
// CLI output.
func NextSequence(db *sql.DB, table string) (int, error) {
	var sequence int
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)
	if err := db.QueryRow(query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", table, err)
	}
	return sequence, nil
}
