// Package store is the local store: entity collections and the pending
// change queue persisted as JSON under stable keys of a flat key/value
// storage. All writes go through Apply so that an entity mutation and its
// queue entry land together or not at all.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gzn7264/ai-travel-planner/internal/kv"
	"github.com/gzn7264/ai-travel-planner/internal/models"
	"github.com/gzn7264/ai-travel-planner/internal/queue"
)

// ErrNotFound is returned for an unknown local id.
var ErrNotFound = errors.New("not found")

// Storage keys outside the entity collections.
const (
	KeyQueue     = "queue"
	KeySyncState = "sync_state"
	KeyConflicts = "sync_conflicts"
	KeyHistory   = "sync_history"
)

// Store is the local store. Every method is safe for concurrent use; writes
// are serialized by the store mutex and, across processes, by the storage.
type Store struct {
	mu sync.Mutex
	kv kv.Storage
}

// New returns a store persisting to storage.
func New(storage kv.Storage) *Store {
	return &Store{kv: storage}
}

// Close closes the underlying storage.
func (s *Store) Close() error {
	return s.kv.Close()
}

// Get returns the entity with localID from the collection ref.
func (s *Store) Get(ref models.Ref, localID string) (models.Record, error) {
	recs, err := s.List(ref)
	if err != nil {
		return models.Record{}, err
	}
	if i := indexOf(recs, localID); i >= 0 {
		return recs[i], nil
	}
	return models.Record{}, fmt.Errorf("%s %s: %w", ref.Collection.Singular(), localID, ErrNotFound)
}

// List returns the collection in creation order.
func (s *Store) List(ref models.Ref) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readCollection(s.kv, ref)
}

// Queue returns a copy of the pending change log.
func (s *Store) Queue() (*queue.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readQueue(s.kv)
}

// Load decodes the JSON value stored under key into v. It reports whether
// the key existed.
func (s *Store) Load(key string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readJSON(s.kv, key, v)
}

// Apply runs fn against a transaction and commits everything it staged in
// a single storage write. If fn or the write fails nothing is persisted.
func (s *Store) Apply(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Update(func(r kv.Reader) (map[string][]byte, error) {
		tx := newTx(r)
		if err := fn(tx); err != nil {
			return nil, err
		}
		return tx.entries()
	})
}

func readCollection(r kv.Reader, ref models.Ref) ([]models.Record, error) {
	var recs []models.Record
	if _, err := readJSON(r, ref.Key(), &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func readQueue(r kv.Reader) (*queue.Log, error) {
	log := queue.New()
	if _, err := readJSON(r, KeyQueue, log); err != nil {
		return nil, err
	}
	return log, nil
}

func readJSON(r kv.Reader, key string, v any) (bool, error) {
	data, ok, err := r.Get(key)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func indexOf(recs []models.Record, localID string) int {
	for i, r := range recs {
		if r.LocalID == localID {
			return i
		}
	}
	return -1
}
