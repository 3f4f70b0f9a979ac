// Package remote defines the contract of the authoritative remote store and
// its error taxonomy, with an HTTP client and an in-memory implementation.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gzn7264/ai-travel-planner/internal/models"
)

// Ref names a remote collection. Nested collections are addressed through
// the server id of their plan.
type Ref struct {
	Collection models.Collection
	ParentID   string
}

func (r Ref) String() string {
	if r.ParentID == "" {
		return string(r.Collection)
	}
	return "plans/" + r.ParentID + "/" + string(r.Collection)
}

// Entity is one record as the remote store returns it. LocalID echoes the
// client local id the record was created with, when known.
type Entity struct {
	ID        string          `json:"id"`
	LocalID   string          `json:"local_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Record converts the entity to a local record shape, unsynced.
func (e Entity) Record() models.Record {
	return models.Record{
		SyncMeta: models.SyncMeta{
			LocalID:   e.LocalID,
			ServerID:  e.ID,
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.UpdatedAt,
		},
		Payload: e.Payload,
	}
}

// Remote is the authoritative store. Create is idempotent per localID: a
// retried create returns the entity created by the first attempt.
type Remote interface {
	Create(ctx context.Context, ref Ref, localID string, payload json.RawMessage) (Entity, error)
	Update(ctx context.Context, ref Ref, id string, payload json.RawMessage) (Entity, error)
	Delete(ctx context.Context, ref Ref, id string) error
	List(ctx context.Context, ref Ref) ([]Entity, error)
}

// Kind classifies a remote failure.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindTimeout
	KindServer
	KindAuth
	KindValidation
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindServer:
		return "server"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	}
	return "unknown"
}

// ErrAuth matches every error of KindAuth via errors.Is.
var ErrAuth = errors.New("remote: not authorized")

// Error is a classified remote failure.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d): %s", e.Op, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrAuth) true for auth failures.
func (e *Error) Is(target error) bool {
	return target == ErrAuth && e.Kind == KindAuth
}

// Recoverable reports whether retrying the same request later may succeed.
func (e *Error) Recoverable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout, KindServer:
		return true
	}
	return false
}

// KindOf returns the kind of a remote error. Unclassified errors count as
// network failures so they are retried rather than dropped.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindNetwork
}

// IsRecoverable reports whether err is worth retrying on a later pass.
func IsRecoverable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout, KindServer:
		return true
	}
	return false
}

// IsNotFound reports whether the remote entity does not exist.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
