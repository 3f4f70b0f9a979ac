package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gzn7264/ai-travel-planner/internal/models"
)

// Log is the ordered, append-only log of pending changes. Sequence numbers
// are assigned on enqueue and never reused, so seq order is enqueue order.
// A Log is not safe for concurrent use; the local store serializes access.
type Log struct {
	nextSeq uint64
	changes []Change
}

// New returns an empty log.
func New() *Log {
	return &Log{nextSeq: 1}
}

// Enqueue appends c, assigning its sequence number and enqueue time.
func (l *Log) Enqueue(c Change) Change {
	c.Seq = l.nextSeq
	l.nextSeq++
	if c.EnqueuedAt.IsZero() {
		c.EnqueuedAt = time.Now().UTC()
	}
	l.changes = append(l.changes, c.clone())
	return c
}

// Len returns the number of pending changes.
func (l *Log) Len() int {
	return len(l.changes)
}

// Drainable returns a snapshot of all pending changes in enqueue order.
func (l *Log) Drainable() []Change {
	out := make([]Change, len(l.changes))
	for i, c := range l.changes {
		out[i] = c.clone()
	}
	return out
}

// Get returns the change with the given sequence number.
func (l *Log) Get(seq uint64) (Change, bool) {
	if i := l.index(seq); i >= 0 {
		return l.changes[i].clone(), true
	}
	return Change{}, false
}

// Remove deletes the change with the given sequence number.
func (l *Log) Remove(seq uint64) bool {
	i := l.index(seq)
	if i < 0 {
		return false
	}
	l.changes = append(l.changes[:i], l.changes[i+1:]...)
	return true
}

// For returns the pending changes of one entity in enqueue order.
func (l *Log) For(localID string) []Change {
	var out []Change
	for _, c := range l.changes {
		if c.LocalID == localID {
			out = append(out, c.clone())
		}
	}
	return out
}

// HasPending reports whether any change references localID.
func (l *Log) HasPending(localID string) bool {
	for _, c := range l.changes {
		if c.LocalID == localID {
			return true
		}
	}
	return false
}

// RecordFailure bumps the attempt counter of a change and stores the error.
func (l *Log) RecordFailure(seq uint64, reason string) {
	if i := l.index(seq); i >= 0 {
		l.changes[i].Attempts++
		l.changes[i].LastError = reason
	}
}

// MarkSent flags a change as handed to the remote store.
func (l *Log) MarkSent(seq uint64) {
	if i := l.index(seq); i >= 0 {
		l.changes[i].Sent = true
	}
}

// ResolveServerID records a newly confirmed server id on every pending
// change of the entity and as the parent server id on every change nested
// under it. It returns the number of changes touched.
func (l *Log) ResolveServerID(localID, serverID string) int {
	n := 0
	for i := range l.changes {
		c := &l.changes[i]
		if c.LocalID == localID && c.ServerID == "" {
			c.ServerID = serverID
			n++
		}
		if c.Parent == localID && c.ParentServerID == "" {
			c.ParentServerID = serverID
			n++
		}
	}
	return n
}

// DropEntity removes every pending change of localID and returns them.
func (l *Log) DropEntity(localID string) []Change {
	return l.drop(func(c Change) bool { return c.LocalID == localID })
}

// DropChildren removes every pending change nested under the plan with the
// given local id and returns them.
func (l *Log) DropChildren(parent string) []Change {
	return l.drop(func(c Change) bool { return c.Parent == parent })
}

// PendingDeletes returns the local and server ids of entities in
// collection c that have a queued delete. Reconciliation must not
// resurrect them.
func (l *Log) PendingDeletes(c models.Collection) map[string]bool {
	out := make(map[string]bool)
	for _, ch := range l.changes {
		if ch.Collection != c || ch.Kind != KindDelete {
			continue
		}
		out[ch.LocalID] = true
		if ch.ServerID != "" {
			out[ch.ServerID] = true
		}
	}
	return out
}

// Clone returns an independent copy of the log.
func (l *Log) Clone() *Log {
	return &Log{nextSeq: l.nextSeq, changes: l.Drainable()}
}

func (l *Log) drop(match func(Change) bool) []Change {
	var dropped []Change
	kept := l.changes[:0]
	for _, c := range l.changes {
		if match(c) {
			dropped = append(dropped, c)
			continue
		}
		kept = append(kept, c)
	}
	l.changes = kept
	return dropped
}

func (l *Log) index(seq uint64) int {
	for i, c := range l.changes {
		if c.Seq == seq {
			return i
		}
	}
	return -1
}

type logJSON struct {
	NextSeq uint64   `json:"next_seq"`
	Changes []Change `json:"changes"`
}

// MarshalJSON encodes the log with its sequence counter.
func (l *Log) MarshalJSON() ([]byte, error) {
	changes := l.changes
	if changes == nil {
		changes = []Change{}
	}
	return json.Marshal(logJSON{NextSeq: l.nextSeq, Changes: changes})
}

// UnmarshalJSON decodes a log written by MarshalJSON.
func (l *Log) UnmarshalJSON(data []byte) error {
	var v logJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode queue: %w", err)
	}
	l.nextSeq = max(v.NextSeq, 1)
	l.changes = v.Changes
	for _, c := range l.changes {
		if c.Seq >= l.nextSeq {
			l.nextSeq = c.Seq + 1
		}
	}
	return nil
}
