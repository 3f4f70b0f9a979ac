// Package kv provides the flat key/value persistence the local store is
// built on: a durable SQLite backend and an in-memory one for tests and
// ephemeral sessions.
package kv

import (
	"errors"
	"sync"
)

// ErrClosed is returned by operations on a closed storage.
var ErrClosed = errors.New("kv: storage closed")

// Reader reads single keys. Get reports whether the key exists.
type Reader interface {
	Get(key string) ([]byte, bool, error)
}

// UpdateFunc reads current values through r and returns the entries to
// write. A nil value deletes the key.
type UpdateFunc func(r Reader) (map[string][]byte, error)

// Storage is a flat key/value store. SetMany applies all entries
// atomically. Update runs a read-modify-write cycle under the storage's
// write lock so no other writer interleaves between its reads and writes.
type Storage interface {
	Reader
	Set(key string, value []byte) error
	SetMany(entries map[string][]byte) error
	Update(fn UpdateFunc) error
	Close() error
}

type readerFunc func(key string) ([]byte, bool, error)

func (f readerFunc) Get(key string) ([]byte, bool, error) { return f(key) }

// Memory is a goroutine-safe in-memory Storage.
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool

	// FailWrites, when set, is returned by every write. Tests use it to
	// simulate quota or disk faults.
	FailWrites error
}

// NewMemory returns an empty in-memory storage.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key.
func (m *Memory) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	return m.get(key)
}

func (m *Memory) get(key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set stores value under key.
func (m *Memory) Set(key string, value []byte) error {
	return m.SetMany(map[string][]byte{key: value})
}

// SetMany stores all entries at once.
func (m *Memory) SetMany(entries map[string][]byte) error {
	return m.Update(func(Reader) (map[string][]byte, error) { return entries, nil })
}

// Update runs fn and applies its entries while holding the write mutex.
func (m *Memory) Update(fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	entries, err := fn(readerFunc(m.get))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	if m.FailWrites != nil {
		return m.FailWrites
	}
	for k, v := range entries {
		if v == nil {
			delete(m.data, k)
			continue
		}
		m.data[k] = append([]byte(nil), v...)
	}
	return nil
}

// Keys returns the number of stored keys.
func (m *Memory) Keys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Close marks the storage closed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
