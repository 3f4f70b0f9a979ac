// Package repo provides the entity repositories: one instance per
// collection, constructed per session, and the only appenders to the
// pending change queue.
package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gzn7264/ai-travel-planner/internal/models"
	"github.com/gzn7264/ai-travel-planner/internal/queue"
	"github.com/gzn7264/ai-travel-planner/internal/store"
)

// Notifier receives the immediate push request fired after every local
// mutation. Implementations must not block.
type Notifier interface {
	TriggerSync()
}

// Repository performs CRUD on one collection. Every mutation persists the
// entity and enqueues its pending change in one store transaction before
// returning, then fires the notifier.
type Repository struct {
	store  *store.Store
	ref    models.Ref
	notify Notifier
	now    func() time.Time
}

// New returns a repository for the collection ref. notify may be nil.
func New(s *store.Store, ref models.Ref, notify Notifier) *Repository {
	return &Repository{store: s, ref: ref, notify: notify, now: time.Now}
}

// Ref returns the collection the repository manages.
func (r *Repository) Ref() models.Ref { return r.ref }

// Get returns one entity by local id.
func (r *Repository) Get(localID string) (models.Record, error) {
	return r.store.Get(r.ref, localID)
}

// List returns the collection in creation order.
func (r *Repository) List() ([]models.Record, error) {
	return r.store.List(r.ref)
}

// Create validates payload, stores a new unsynced entity and enqueues its
// create.
func (r *Repository) Create(ctx context.Context, payload json.RawMessage) (models.Record, error) {
	if err := ctx.Err(); err != nil {
		return models.Record{}, err
	}
	payload, err := models.Normalize(r.ref.Collection, payload)
	if err != nil {
		return models.Record{}, err
	}
	localID, err := models.NewLocalID()
	if err != nil {
		return models.Record{}, err
	}
	now := r.now().UTC()
	rec := models.Record{
		SyncMeta: models.SyncMeta{LocalID: localID, CreatedAt: now, UpdatedAt: now},
		Payload:  payload,
	}

	err = r.store.Apply(func(tx *store.Tx) error {
		parentServerID, err := r.parentServerID(tx)
		if err != nil {
			return err
		}
		if err := tx.Put(r.ref, rec); err != nil {
			return err
		}
		_, err = tx.Enqueue(r.change(queue.KindCreate, rec, parentServerID))
		return err
	})
	if err != nil {
		return models.Record{}, fmt.Errorf("create %s: %w", r.ref.Collection.Singular(), err)
	}
	r.pushNow()
	return rec, nil
}

// Update merges patch over the stored payload. Top-level keys of patch
// replace stored keys; null removes one.
func (r *Repository) Update(ctx context.Context, localID string, patch json.RawMessage) (models.Record, error) {
	return r.mutate(ctx, localID, func(base json.RawMessage) (json.RawMessage, error) {
		return models.MergePatch(base, patch)
	})
}

// Replace overwrites the stored payload.
func (r *Repository) Replace(ctx context.Context, localID string, payload json.RawMessage) (models.Record, error) {
	return r.mutate(ctx, localID, func(json.RawMessage) (json.RawMessage, error) {
		return payload, nil
	})
}

func (r *Repository) mutate(ctx context.Context, localID string, apply func(json.RawMessage) (json.RawMessage, error)) (models.Record, error) {
	if err := ctx.Err(); err != nil {
		return models.Record{}, err
	}
	var rec models.Record
	err := r.store.Apply(func(tx *store.Tx) error {
		cur, err := tx.Get(r.ref, localID)
		if err != nil {
			return err
		}
		merged, err := apply(cur.Payload)
		if err != nil {
			return err
		}
		payload, err := models.Normalize(r.ref.Collection, merged)
		if err != nil {
			return err
		}
		parentServerID, err := r.parentServerID(tx)
		if err != nil {
			return err
		}

		rec = cur
		rec.Payload = payload
		rec.UpdatedAt = r.bump(cur.UpdatedAt)
		rec.Synced = false
		if err := tx.Put(r.ref, rec); err != nil {
			return err
		}
		_, err = tx.Enqueue(r.change(queue.KindUpdate, rec, parentServerID))
		return err
	})
	if err != nil {
		return models.Record{}, fmt.Errorf("update %s: %w", r.ref.Collection.Singular(), err)
	}
	r.pushNow()
	return rec, nil
}

// Delete removes the entity locally and enqueues its remote delete. An
// entity that never reached the remote store leaves a marker the
// coordinator drops without a remote call. Deleting a plan also removes its
// budget and expenses locally; the remote store cascades on its own.
func (r *Repository) Delete(ctx context.Context, localID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := r.store.Apply(func(tx *store.Tx) error {
		cur, err := tx.Get(r.ref, localID)
		if err != nil {
			return err
		}
		parentServerID, err := r.parentServerID(tx)
		if err != nil {
			return err
		}
		if err := tx.Remove(r.ref, localID); err != nil {
			return err
		}
		if r.ref.Collection == models.CollectionPlans {
			tx.Drop(models.BudgetsRef(localID))
			tx.Drop(models.ExpensesRef(localID))
		}
		cur.UpdatedAt = r.bump(cur.UpdatedAt)
		del := r.change(queue.KindDelete, cur, parentServerID)
		del.Payload = nil
		_, err = tx.Enqueue(del)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.ref.Collection.Singular(), err)
	}
	r.pushNow()
	return nil
}

// parentServerID checks that the owning plan of a nested collection exists
// and returns its server id, empty while the plan is unconfirmed.
func (r *Repository) parentServerID(tx *store.Tx) (string, error) {
	if !r.ref.Collection.Nested() {
		return "", nil
	}
	plan, err := tx.Get(models.PlansRef(), r.ref.Parent)
	if err != nil {
		return "", err
	}
	return plan.ServerID, nil
}

func (r *Repository) change(kind queue.Kind, rec models.Record, parentServerID string) queue.Change {
	return queue.Change{
		Kind:            kind,
		Collection:      r.ref.Collection,
		Parent:          r.ref.Parent,
		LocalID:         rec.LocalID,
		ServerID:        rec.ServerID,
		ParentServerID:  parentServerID,
		Payload:         rec.Payload,
		EntityUpdatedAt: rec.UpdatedAt,
	}
}

// bump returns a timestamp strictly after prev so that every mutation is
// distinguishable from the version a queued change captured.
func (r *Repository) bump(prev time.Time) time.Time {
	now := r.now().UTC()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

func (r *Repository) pushNow() {
	if r.notify == nil {
		return
	}
	r.notify.TriggerSync()
	slog.Debug("immediate push requested", "collection", r.ref.Key())
}
