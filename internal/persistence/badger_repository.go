package persistence

import (
	"encoding/json"
	"errors"

	"chart-trigger-bot-go/internal/models"

	"github.com/dgraph-io/badger/v3"
)

// badgerRepository is the BadgerDB implementation of SnapshotRepository.
// Snapshots are keyed per symbol so multiple sessions share one database.
type badgerRepository struct {
	db      *badger.DB
	snapKey []byte
}

// NewBadgerRepository opens (or creates) a BadgerDB database and returns a
// repository storing the snapshot for one symbol.
func NewBadgerRepository(dbPath, symbol string) (SnapshotRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	// Badger's own logging would drown ours; errors still surface from
	// the DB operations themselves.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &badgerRepository{
		db:      db,
		snapKey: []byte("session_snapshot/" + symbol),
	}, nil
}

// SaveSnapshot marshals the snapshot to JSON and writes it under the
// session key in one transaction.
func (r *badgerRepository) SaveSnapshot(snap *models.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(r.snapKey, data)
	})
}

// LoadSnapshot loads the session snapshot. A missing key is the expected
// fresh-session case and returns (nil, nil).
func (r *badgerRepository) LoadSnapshot() (*models.SessionSnapshot, error) {
	var snap models.SessionSnapshot

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(r.snapKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return errors.New("snapshot value is empty in database")
			}
			return json.Unmarshal(val, &snap)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Close gracefully closes the connection to the database.
func (r *badgerRepository) Close() error {
	return r.db.Close()
}
