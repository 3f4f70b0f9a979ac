// Package queue implements the pending change log: an append-only record of
// local mutations not yet confirmed by the remote store, and the cursor a
// drain pass walks it with.
package queue

import (
	"encoding/json"
	"time"

	"github.com/gzn7264/ai-travel-planner/internal/models"
)

// Kind is the mutation a pending change replays remotely.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Change is one queued mutation. Changes are keyed by the entity's local id;
// ServerID and ParentServerID are filled in once known, either at enqueue
// time or by backfill when an earlier create is confirmed.
type Change struct {
	Seq            uint64            `json:"seq"`
	Kind           Kind              `json:"kind"`
	Collection     models.Collection `json:"collection"`
	Parent         string            `json:"parent,omitempty"`
	LocalID        string            `json:"local_id"`
	ServerID       string            `json:"server_id,omitempty"`
	ParentServerID string            `json:"parent_server_id,omitempty"`
	Payload        json.RawMessage   `json:"payload,omitempty"`

	// EntityUpdatedAt is the entity's updated_at when the change was
	// enqueued. A confirmation only marks the entity synced if it still
	// carries this timestamp.
	EntityUpdatedAt time.Time `json:"entity_updated_at"`
	EnqueuedAt      time.Time `json:"enqueued_at"`

	Attempts  int    `json:"attempts,omitempty"`
	LastError string `json:"last_error,omitempty"`

	// Sent is persisted before a create first goes out. The remote store may
	// hold the entity from then on even if no reply was recorded.
	Sent bool `json:"sent,omitempty"`
}

// Ref returns the local collection the change belongs to.
func (c Change) Ref() models.Ref {
	return models.Ref{Collection: c.Collection, Parent: c.Parent}
}

// IsMarker reports whether the change is a delete of an entity that never
// reached the remote store. Markers are dropped without a remote call.
func (c Change) IsMarker() bool {
	return c.Kind == KindDelete && c.ServerID == ""
}

// Ready reports whether every remote identity the change needs is known:
// its own server id for updates and deletes, and the parent's server id for
// nested collections.
func (c Change) Ready() bool {
	if c.Collection.Nested() && c.ParentServerID == "" {
		return false
	}
	switch c.Kind {
	case KindUpdate, KindDelete:
		return c.ServerID != ""
	}
	return true
}

func (c Change) clone() Change {
	if c.Payload != nil {
		c.Payload = append(json.RawMessage(nil), c.Payload...)
	}
	return c
}
