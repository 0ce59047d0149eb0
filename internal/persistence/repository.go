package persistence

import "chart-trigger-bot-go/internal/models"

// SnapshotRepository defines the interface for session snapshot
// persistence. It abstracts the underlying storage mechanism
// (e.g., BadgerDB, in-memory) from the rest of the application; the
// engine itself never touches it.
type SnapshotRepository interface {
	// SaveSnapshot atomically saves the entire session snapshot.
	SaveSnapshot(snap *models.SessionSnapshot) error

	// LoadSnapshot loads the session snapshot from storage.
	// If no snapshot is found, it returns (nil, nil).
	LoadSnapshot() (*models.SessionSnapshot, error)

	// Close gracefully closes the connection to the database.
	Close() error
}
