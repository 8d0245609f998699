// Package store provides versioned persistence for the learning state
// shared between forecasting processes. Every record carries a version;
// writes are compare-and-swap so a concurrent writer loses cleanly with
// ErrVersionConflict instead of silently racing.
package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no record exists for the key.
var ErrNotFound = errors.New("store: record not found")

// ErrVersionConflict is returned by Put when the persisted version no
// longer matches the version the caller read. The caller should reload,
// re-apply its change and retry.
var ErrVersionConflict = errors.New("store: version conflict")

// Store persists keyed JSON records with optimistic concurrency control.
//
// Get unmarshals the record at key into `into` and returns its version.
// Put writes `value` if and only if the persisted version still equals
// `version`; pass version 0 to create a record that must not yet exist.
type Store interface {
	Get(key string, into any) (version uint64, err error)
	Put(key string, value any, version uint64) error
	Close() error
}

// PersistenceError wraps a storage failure so callers can distinguish it
// from domain errors and decide retry or abort policy.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Update reads the record at key, applies fn and writes it back, retrying
// once on version conflict. fn receives whether the record existed.
func Update[T any](s Store, key string, fn func(rec *T, found bool) error) error {
	for attempt := 0; ; attempt++ {
		var rec T
		version, err := s.Get(key, &rec)
		found := true
		switch {
		case errors.Is(err, ErrNotFound):
			found = false
			version = 0
		case err != nil:
			return err
		}

		if err := fn(&rec, found); err != nil {
			return err
		}

		err = s.Put(key, &rec, version)
		if errors.Is(err, ErrVersionConflict) && attempt == 0 {
			continue // reload and retry once
		}
		return err
	}
}
