// Package sync is the sync coordinator: the single path that drains the
// pending change queue against the remote store, tracks sync state, and
// reconciles local collections with their remote versions.
package sync

import (
	"errors"
	"time"
)

// Status is the coordinator's sync status.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSynced  Status = "synced"
	StatusPartial Status = "partial"
	StatusError   Status = "error"
)

// ErrNoPrincipal is returned by operations that need an authenticated
// principal when none is active.
var ErrNoPrincipal = errors.New("sync: no active principal")

// State is the observable sync state. It is persisted after every pass so
// that other processes sharing the local store can report it.
type State struct {
	Status       Status    `json:"status"`
	LastSyncedAt time.Time `json:"last_synced_at,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	Pending      int       `json:"pending"`
	Online       bool      `json:"online"`
}

// HasSynced reports whether a pass ever completed.
func (s State) HasSynced() bool { return !s.LastSyncedAt.IsZero() }

// passResult summarizes one drain pass.
type passResult struct {
	Sent    int
	Failed  int
	Dropped int
	Aborted error
}
