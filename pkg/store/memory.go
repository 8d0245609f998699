package store

import (
	"sync"

	"github.com/goccy/go-json"
)

// MemoryStore implements Store in process memory. Used in tests and when
// no persistence directory is configured.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]envelope
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[string]envelope)}
}

func (s *MemoryStore) Get(key string, into any) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	env, ok := s.records[key]
	if !ok {
		return 0, ErrNotFound
	}
	if err := json.Unmarshal(env.Data, into); err != nil {
		return 0, &PersistenceError{Op: "decode", Key: key, Err: err}
	}
	return env.Version, nil
}

func (s *MemoryStore) Put(key string, value any, version uint64) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &PersistenceError{Op: "encode", Key: key, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var current uint64
	if env, ok := s.records[key]; ok {
		current = env.Version
	}
	if current != version {
		return ErrVersionConflict
	}
	s.records[key] = envelope{Version: version + 1, Data: data}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
