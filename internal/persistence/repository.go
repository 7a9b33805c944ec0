package persistence

import (
	"bot-console-go/internal/models"
	"encoding/json"
	"time"
)

// StoredResource is a cached payload carried across restarts so the console
// can show last-known data before the first fetch completes.
type StoredResource struct {
	Payload   json.RawMessage `json:"payload"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// SnapshotRepository defines the interface for local snapshot persistence.
// It abstracts the underlying storage mechanism (e.g., BadgerDB, in-memory)
// from the rest of the application.
type SnapshotRepository interface {
	// SaveSession atomically saves the session snapshot.
	SaveSession(snapshot *models.SessionSnapshot) error

	// LoadSession loads the persisted session snapshot.
	// If no snapshot is found, it returns (nil, nil).
	LoadSession() (*models.SessionSnapshot, error)

	// ClearSession removes the persisted session snapshot, if any.
	ClearSession() error

	// SaveResource stores the last successful payload for a resource key id.
	SaveResource(id string, res StoredResource) error

	// LoadResources returns all persisted resource payloads keyed by id.
	LoadResources() (map[string]StoredResource, error)

	// Close gracefully closes the connection to the database.
	Close() error
}
