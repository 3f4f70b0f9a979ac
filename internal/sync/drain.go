package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gzn7264/ai-travel-planner/internal/models"
	"github.com/gzn7264/ai-travel-planner/internal/queue"
	"github.com/gzn7264/ai-travel-planner/internal/remote"
	"github.com/gzn7264/ai-travel-planner/internal/store"
)

// drain runs one pass over a snapshot of the queue and returns the pass
// summary and the number of changes still queued.
func (c *Coordinator) drain(ctx context.Context) (passResult, int) {
	var res passResult
	log, err := c.store.Queue()
	if err != nil {
		res.Aborted = fmt.Errorf("read queue: %w", err)
		return res, 0
	}
	cur := log.Cursor()

	for {
		snap, ok := cur.Next()
		if !ok {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if err := c.process(ctx, cur, snap.Seq, &res); err != nil {
			res.Aborted = err
			break
		}
	}

	pending := 0
	if log, err := c.store.Queue(); err == nil {
		pending = log.Len()
	}
	return res, pending
}

// process handles one change. It returns an error only when the whole pass
// must stop: an auth failure or a local store fault.
func (c *Coordinator) process(ctx context.Context, cur *queue.Cursor, seq uint64, res *passResult) error {
	log, err := c.store.Queue()
	if err != nil {
		return fmt.Errorf("read queue: %w", err)
	}
	// The snapshot may be stale: server ids get backfilled and changes get
	// dropped as the pass proceeds.
	ch, ok := log.Get(seq)
	if !ok {
		return nil
	}

	switch {
	case ch.IsMarker():
		return c.dropUnsent(ch, res, "delete of an entity never sent")
	case ch.Kind == queue.KindCreate && ch.ServerID == "" && !ch.Sent && ch.Attempts == 0 && deletedLater(log, ch):
		return c.dropUnsent(ch, res, "created and deleted before sync")
	case !ch.Ready():
		cur.Hold(ch.LocalID)
		return nil
	}

	if ch.Kind == queue.KindCreate && ch.ServerID == "" && !ch.Sent {
		if err := c.markSent(ch); err != nil {
			return err
		}
	}
	entity, err := c.send(ctx, ch)
	if err != nil {
		if ch.Kind == queue.KindDelete && remote.IsNotFound(err) {
			err = nil
		}
	}
	if err != nil {
		res.Failed++
		cur.Hold(ch.LocalID)
		if ferr := c.recordFailure(ch, err); ferr != nil {
			return ferr
		}
		if errors.Is(err, remote.ErrAuth) {
			return err
		}
		slog.Debug("sync: change kept", "kind", ch.Kind, "collection", ch.Collection,
			"local_id", ch.LocalID, "attempts", ch.Attempts+1, "err", err)
		return nil
	}

	res.Sent++
	if err := c.confirm(ch, entity); err != nil {
		return fmt.Errorf("confirm %s %s: %w", ch.Kind, ch.LocalID, err)
	}
	if ch.Kind == queue.KindCreate && ch.Collection == models.CollectionPlans {
		cur.Resolve(ch.LocalID)
	}
	return nil
}

// send performs the remote operation of ch. A create whose server id was
// already linked by reconciliation is replayed as an update.
func (c *Coordinator) send(ctx context.Context, ch queue.Change) (remote.Entity, error) {
	ref := remote.Ref{Collection: ch.Collection, ParentID: ch.ParentServerID}
	var e remote.Entity
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		switch {
		case ch.Kind == queue.KindCreate && ch.ServerID == "":
			e, err = c.remote.Create(ctx, ref, ch.LocalID, ch.Payload)
		case ch.Kind == queue.KindCreate, ch.Kind == queue.KindUpdate:
			e, err = c.remote.Update(ctx, ref, ch.ServerID, ch.Payload)
		case ch.Kind == queue.KindDelete:
			err = c.remote.Delete(ctx, ref, ch.ServerID)
		default:
			err = fmt.Errorf("unknown change kind %q", ch.Kind)
		}
		return err
	})
	return e, err
}

// confirm removes a confirmed change and updates the entity. The entity is
// marked synced only if it was not mutated after the change was enqueued
// and nothing else is queued for it.
func (c *Coordinator) confirm(ch queue.Change, e remote.Entity) error {
	now := c.opts.Now().UTC()
	return c.store.Apply(func(tx *store.Tx) error {
		log, err := tx.Queue()
		if err != nil {
			return err
		}
		log.Remove(ch.Seq)

		if ch.Kind == queue.KindDelete {
			if ch.Collection == models.CollectionPlans {
				// The remote store cascaded; nothing nested can land anymore
				log.DropChildren(ch.LocalID)
			}
			return appendHistory(tx, pushEntry(ch, OutcomeOK, nil, now))
		}

		serverID := ch.ServerID
		if ch.Kind == queue.KindCreate && e.ID != "" {
			serverID = e.ID
			log.ResolveServerID(ch.LocalID, serverID)
		}

		rec, err := tx.Get(ch.Ref(), ch.LocalID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// Deleted locally meanwhile; the queued delete follows
		case err != nil:
			return err
		default:
			if rec.ServerID == "" {
				rec.ServerID = serverID
			}
			if rec.UpdatedAt.Equal(ch.EntityUpdatedAt) && !log.HasPending(ch.LocalID) {
				rec.Synced = true
				if !e.UpdatedAt.IsZero() {
					rec.UpdatedAt = e.UpdatedAt.UTC()
				}
			}
			if err := tx.Put(ch.Ref(), rec); err != nil {
				return err
			}
		}

		ch.ServerID = serverID
		return appendHistory(tx, pushEntry(ch, OutcomeOK, nil, now))
	})
}

// dropUnsent removes changes that never need to reach the remote store:
// every change of the entity, plus changes nested under it when it is a
// plan, since those can never obtain a parent server id.
func (c *Coordinator) dropUnsent(ch queue.Change, res *passResult, reason string) error {
	now := c.opts.Now().UTC()
	return c.store.Apply(func(tx *store.Tx) error {
		log, err := tx.Queue()
		if err != nil {
			return err
		}
		dropped := log.DropEntity(ch.LocalID)
		if ch.Collection == models.CollectionPlans {
			dropped = append(dropped, log.DropChildren(ch.LocalID)...)
		}
		res.Dropped += len(dropped)
		slog.Debug("sync: dropped unsent changes", "local_id", ch.LocalID, "count", len(dropped), "reason", reason)

		entries := make([]HistoryEntry, 0, len(dropped))
		for _, d := range dropped {
			entries = append(entries, pushEntry(d, OutcomeDropped, nil, now))
		}
		return appendHistory(tx, entries...)
	})
}

// markSent persists that ch is about to reach the remote store, so a crash
// before the reply cannot turn it into a create that is safe to skip.
func (c *Coordinator) markSent(ch queue.Change) error {
	err := c.store.Apply(func(tx *store.Tx) error {
		log, err := tx.Queue()
		if err != nil {
			return err
		}
		log.MarkSent(ch.Seq)
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

func (c *Coordinator) recordFailure(ch queue.Change, cause error) error {
	now := c.opts.Now().UTC()
	err := c.store.Apply(func(tx *store.Tx) error {
		log, err := tx.Queue()
		if err != nil {
			return err
		}
		log.RecordFailure(ch.Seq, cause.Error())
		return appendHistory(tx, pushEntry(ch, OutcomeFailed, cause, now))
	})
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// deletedLater reports whether a delete of ch's entity is queued after it.
func deletedLater(log *queue.Log, ch queue.Change) bool {
	for _, other := range log.For(ch.LocalID) {
		if other.Seq > ch.Seq && other.Kind == queue.KindDelete {
			return true
		}
	}
	return false
}
