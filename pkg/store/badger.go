package store

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// envelope is the persisted form of every record: payload plus version.
type envelope struct {
	Version uint64          `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// BadgerStore implements Store on BadgerDB. Badger transactions make the
// version check and the write atomic.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// OpenBadger opens (or creates) a BadgerDB-backed store at dir.
func OpenBadger(dir string, logger *slog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithCompactL0OnClose(true)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening state store at %s: %w", dir, err)
	}
	return &BadgerStore{db: db, logger: logger}, nil
}

// Get unmarshals the record at key and returns its version.
func (s *BadgerStore) Get(key string, into any) (uint64, error) {
	var env envelope
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		})
	})
	if errors.Is(err, ErrNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, &PersistenceError{Op: "get", Key: key, Err: err}
	}
	if err := json.Unmarshal(env.Data, into); err != nil {
		return 0, &PersistenceError{Op: "decode", Key: key, Err: err}
	}
	return env.Version, nil
}

// Put writes value at key if the persisted version still matches.
func (s *BadgerStore) Put(key string, value any, version uint64) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &PersistenceError{Op: "encode", Key: key, Err: err}
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		var current uint64
		item, err := txn.Get([]byte(key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			current = 0
		case err != nil:
			return err
		default:
			var env envelope
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &env)
			}); err != nil {
				return err
			}
			current = env.Version
		}

		if current != version {
			return ErrVersionConflict
		}

		next, err := json.Marshal(envelope{Version: version + 1, Data: data})
		if err != nil {
			return err
		}
		return txn.Set([]byte(key), next)
	})

	if errors.Is(err, ErrVersionConflict) {
		s.logger.Debug("concurrent write detected", "key", key, "version", version)
		return ErrVersionConflict
	}
	if err != nil {
		return &PersistenceError{Op: "put", Key: key, Err: err}
	}
	return nil
}

// Close flushes and closes the underlying database.
func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		return &PersistenceError{Op: "close", Err: err}
	}
	return nil
}
