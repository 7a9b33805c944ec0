package persistence

import (
	"bot-console-go/internal/models"
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v3"
)

var (
	sessionKey     = []byte("session")
	resourcePrefix = []byte("resource/")
)

// badgerRepository is the BadgerDB implementation of the SnapshotRepository.
type badgerRepository struct {
	db *badger.DB
}

// NewBadgerRepository creates and returns a new repository instance connected
// to a BadgerDB database at dbPath.
func NewBadgerRepository(dbPath string) (SnapshotRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	// Badger's own logging is noisy; errors still surface from DB operations.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &badgerRepository{db: db}, nil
}

// SaveSession atomically saves the session snapshot under a fixed key.
func (r *badgerRepository) SaveSession(snapshot *models.SessionSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey, data)
	})
}

// LoadSession loads the persisted session snapshot.
// If the key is not found, it returns (nil, nil) to indicate no snapshot.
func (r *badgerRepository) LoadSession() (*models.SessionSnapshot, error) {
	var snapshot models.SessionSnapshot

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return errors.New("session value is empty in database")
			}
			return json.Unmarshal(val, &snapshot)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil // expected "no snapshot" case
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ClearSession removes the persisted session snapshot.
func (r *badgerRepository) ClearSession() error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

// SaveResource stores the last successful payload for a resource key id.
func (r *badgerRepository) SaveResource(id string, res StoredResource) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(append(resourcePrefix, id...), data)
	})
}

// LoadResources returns all persisted resource payloads keyed by id.
func (r *badgerRepository) LoadResources() (map[string]StoredResource, error) {
	out := make(map[string]StoredResource)

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(resourcePrefix); it.ValidForPrefix(resourcePrefix); it.Next() {
			item := it.Item()
			id := string(item.Key()[len(resourcePrefix):])
			err := item.Value(func(val []byte) error {
				var res StoredResource
				if err := json.Unmarshal(val, &res); err != nil {
					return err
				}
				out[id] = res
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close gracefully closes the connection to the database.
func (r *badgerRepository) Close() error {
	return r.db.Close()
}
