package sync

import (
	"encoding/json"
	"time"

	"github.com/gzn7264/ai-travel-planner/internal/models"
	"github.com/gzn7264/ai-travel-planner/internal/queue"
	"github.com/gzn7264/ai-travel-planner/internal/store"
)

const (
	maxHistory   = 500
	maxConflicts = 200
)

// HistoryEntry is one remote operation attempted by the coordinator.
type HistoryEntry struct {
	Direction  string            `json:"direction"` // push or pull
	Action     string            `json:"action"`    // create, update, delete, list
	Collection models.Collection `json:"collection"`
	LocalID    string            `json:"local_id,omitempty"`
	ServerID   string            `json:"server_id,omitempty"`
	Outcome    string            `json:"outcome"` // ok, failed, dropped
	Error      string            `json:"error,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Outcomes recorded in history.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

// Conflict records a local version overwritten by a newer remote one.
type Conflict struct {
	Collection    models.Collection `json:"collection"`
	LocalID       string            `json:"local_id"`
	ServerID      string            `json:"server_id"`
	LocalData     json.RawMessage   `json:"local_data"`
	RemoteData    json.RawMessage   `json:"remote_data"`
	LocalUpdated  time.Time         `json:"local_updated_at"`
	RemoteUpdated time.Time         `json:"remote_updated_at"`
	OverwrittenAt time.Time         `json:"overwritten_at"`
}

func pushEntry(c queue.Change, outcome string, err error, at time.Time) HistoryEntry {
	e := HistoryEntry{
		Direction:  "push",
		Action:     string(c.Kind),
		Collection: c.Collection,
		LocalID:    c.LocalID,
		ServerID:   c.ServerID,
		Outcome:    outcome,
		Timestamp:  at,
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// appendHistory adds entries to the bounded history in tx.
func appendHistory(tx *store.Tx, entries ...HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	var all []HistoryEntry
	if _, err := tx.Load(store.KeyHistory, &all); err != nil {
		return err
	}
	all = append(all, entries...)
	if len(all) > maxHistory {
		all = all[len(all)-maxHistory:]
	}
	return tx.Save(store.KeyHistory, all)
}

func appendConflicts(tx *store.Tx, conflicts ...Conflict) error {
	if len(conflicts) == 0 {
		return nil
	}
	var all []Conflict
	if _, err := tx.Load(store.KeyConflicts, &all); err != nil {
		return err
	}
	all = append(all, conflicts...)
	if len(all) > maxConflicts {
		all = all[len(all)-maxConflicts:]
	}
	return tx.Save(store.KeyConflicts, all)
}

// HistoryTail returns the last limit entries, oldest first.
func HistoryTail(s *store.Store, limit int) ([]HistoryEntry, error) {
	var all []HistoryEntry
	if _, err := s.Load(store.KeyHistory, &all); err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

// RecentConflicts returns up to limit conflicts, most recent first. A
// non-zero since filters out older ones.
func RecentConflicts(s *store.Store, limit int, since time.Time) ([]Conflict, error) {
	var all []Conflict
	if _, err := s.Load(store.KeyConflicts, &all); err != nil {
		return nil, err
	}
	var out []Conflict
	for i := len(all) - 1; i >= 0; i-- {
		if !since.IsZero() && all[i].OverwrittenAt.Before(since) {
			continue
		}
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// LoadState returns the last persisted sync state.
func LoadState(s *store.Store) (State, error) {
	st := State{Status: StatusIdle}
	if _, err := s.Load(store.KeySyncState, &st); err != nil {
		return State{}, err
	}
	return st, nil
}
