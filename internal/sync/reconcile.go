package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gzn7264/ai-travel-planner/internal/merge"
	"github.com/gzn7264/ai-travel-planner/internal/models"
	"github.com/gzn7264/ai-travel-planner/internal/remote"
	"github.com/gzn7264/ai-travel-planner/internal/store"
)

// ReconcileResult summarizes a collection merge.
type ReconcileResult struct {
	Adopted  int
	Replaced int
	Linked   int
	Dropped  int
	Kept     int
}

// Reconcile merges the local collection ref with its remote listing. Nested
// collections of a plan the remote store has not confirmed yet have nothing
// to merge with and are left untouched.
func (c *Coordinator) Reconcile(ctx context.Context, ref models.Ref) (ReconcileResult, error) {
	if _, ok := c.principal.CurrentPrincipal(); !ok {
		return ReconcileResult{}, ErrNoPrincipal
	}
	rref, ok, err := c.remoteRef(ref)
	if err != nil || !ok {
		return ReconcileResult{}, err
	}

	// A drain pass may confirm creates while the listing is in flight; those
	// are absent from it without having been deleted remotely.
	confirmed, err := c.confirmedIDs(ref)
	if err != nil {
		return ReconcileResult{}, err
	}
	var entities []remote.Entity
	err = c.call(ctx, func(ctx context.Context) error {
		var err error
		entities, err = c.remote.List(ctx, rref)
		return err
	})
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("list %s: %w", rref, err)
	}
	remoteRecs := make([]models.Record, len(entities))
	for i, e := range entities {
		remoteRecs[i] = e.Record()
	}

	var out ReconcileResult
	now := c.opts.Now().UTC()
	err = c.store.Apply(func(tx *store.Tx) error {
		out = ReconcileResult{}
		local, err := tx.List(ref)
		if err != nil {
			return err
		}
		log, err := tx.Queue()
		if err != nil {
			return err
		}
		res := merge.CollectionAsOf(local, remoteRecs, log.PendingDeletes(ref.Collection), confirmed)

		recs := res.Records
		for i := range recs {
			if recs[i].LocalID != "" {
				continue
			}
			id, err := models.NewLocalID()
			if err != nil {
				return err
			}
			recs[i].LocalID = id
		}
		tx.Replace(ref, recs)

		for _, l := range res.Linked {
			log.ResolveServerID(l.LocalID, l.ServerID)
		}
		if ref.Collection == models.CollectionPlans {
			for _, d := range res.Dropped {
				tx.Drop(models.BudgetsRef(d.LocalID))
				tx.Drop(models.ExpensesRef(d.LocalID))
				log.DropChildren(d.LocalID)
			}
		}

		var conflicts []Conflict
		for _, r := range res.Replaced {
			if r.Local.SamePayload(r.Remote) {
				continue
			}
			conflicts = append(conflicts, conflictOf(ref.Collection, r.Local, r.Remote, now))
		}
		if err := appendConflicts(tx, conflicts...); err != nil {
			return err
		}

		out = ReconcileResult{
			Adopted:  len(res.Adopted),
			Replaced: len(res.Replaced),
			Linked:   len(res.Linked),
			Dropped:  len(res.Dropped),
			Kept:     res.Kept,
		}
		return appendHistory(tx, HistoryEntry{
			Direction:  "pull",
			Action:     "list",
			Collection: ref.Collection,
			Outcome:    OutcomeOK,
			Timestamp:  now,
		})
	})
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("merge %s: %w", ref, err)
	}
	slog.Debug("sync: reconciled", "ref", ref.Key(), "adopted", out.Adopted,
		"replaced", out.Replaced, "linked", out.Linked, "dropped", out.Dropped)
	return out, nil
}

// ReconcilePlans merges the plan collection.
func (c *Coordinator) ReconcilePlans(ctx context.Context) (ReconcileResult, error) {
	return c.Reconcile(ctx, models.PlansRef())
}

// ReconcileChildren merges the budgets and expenses of one plan.
func (c *Coordinator) ReconcileChildren(ctx context.Context, planID string) (ReconcileResult, error) {
	var total ReconcileResult
	for _, ref := range []models.Ref{models.BudgetsRef(planID), models.ExpensesRef(planID)} {
		res, err := c.Reconcile(ctx, ref)
		if err != nil {
			return total, err
		}
		total.Adopted += res.Adopted
		total.Replaced += res.Replaced
		total.Linked += res.Linked
		total.Dropped += res.Dropped
		total.Kept += res.Kept
	}
	return total, nil
}

// LoadAndMerge returns the surviving version of one entity after comparing
// the local version with the remote one. The local version is returned
// unchanged when it was never confirmed remotely or the remote store cannot
// be reached. An entity deleted remotely is removed locally and reported as
// store.ErrNotFound, unless it has unsynced local changes.
func (c *Coordinator) LoadAndMerge(ctx context.Context, ref models.Ref, localID string) (models.Record, merge.Decision, error) {
	local, err := c.store.Get(ref, localID)
	if err != nil {
		return models.Record{}, merge.Decision{}, err
	}
	keep := merge.Decision{Outcome: merge.KeepLocal, Reason: merge.ReasonUnsynced}
	if local.ServerID == "" {
		return local, keep, nil
	}
	if _, ok := c.principal.CurrentPrincipal(); !ok {
		return local, merge.Decision{Outcome: merge.KeepLocal, Reason: ReasonOffline}, nil
	}
	rref, ok, err := c.remoteRef(ref)
	if err != nil {
		return models.Record{}, merge.Decision{}, err
	}
	if !ok {
		return local, keep, nil
	}

	var entities []remote.Entity
	err = c.call(ctx, func(ctx context.Context) error {
		var err error
		entities, err = c.remote.List(ctx, rref)
		return err
	})
	if err != nil {
		if remote.IsRecoverable(err) {
			slog.Debug("sync: load and merge offline", "local_id", localID, "err", err)
			return local, merge.Decision{Outcome: merge.KeepLocal, Reason: ReasonOffline}, nil
		}
		return models.Record{}, merge.Decision{}, fmt.Errorf("list %s: %w", rref, err)
	}

	var (
		rec   models.Record
		found bool
	)
	for _, e := range entities {
		if e.ID == local.ServerID {
			rec, found = e.Record(), true
			break
		}
	}

	var (
		out  models.Record
		d    merge.Decision
		gone bool
	)
	now := c.opts.Now().UTC()
	err = c.store.Apply(func(tx *store.Tx) error {
		// Re-read: a local mutation may have landed during the remote call
		cur, err := tx.Get(ref, localID)
		if err != nil {
			return err
		}
		if !found {
			if !cur.Synced {
				out, d = cur, keep
				return nil
			}
			if err := tx.Remove(ref, localID); err != nil {
				return err
			}
			if ref.Collection == models.CollectionPlans {
				tx.Drop(models.BudgetsRef(localID))
				tx.Drop(models.ExpensesRef(localID))
				log, err := tx.Queue()
				if err != nil {
					return err
				}
				log.DropChildren(localID)
			}
			gone = true
			return nil
		}

		d = merge.Resolve(cur, rec)
		out = merge.Apply(cur, rec, d)
		if d.Outcome == merge.KeepLocal {
			return nil
		}
		if err := tx.Put(ref, out); err != nil {
			return err
		}
		if cur.SamePayload(out) {
			return nil
		}
		return appendConflicts(tx, conflictOf(ref.Collection, cur, out, now))
	})
	if err != nil {
		return models.Record{}, merge.Decision{}, err
	}
	if gone {
		return models.Record{}, merge.Decision{}, fmt.Errorf("%s %s deleted remotely: %w", ref.Collection.Singular(), localID, store.ErrNotFound)
	}
	return out, d, nil
}

// ReasonOffline is reported by LoadAndMerge when the remote store could not
// be consulted.
const ReasonOffline = "offline"

// confirmedIDs returns the server id of every synced entity of ref, keyed
// by local id.
func (c *Coordinator) confirmedIDs(ref models.Ref) (map[string]string, error) {
	recs, err := c.store.List(ref)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(recs))
	for _, r := range recs {
		if r.Synced && r.ServerID != "" {
			out[r.LocalID] = r.ServerID
		}
	}
	return out, nil
}

// remoteRef maps a local collection ref to its remote address. The second
// result is false when the owning plan has no server id yet.
func (c *Coordinator) remoteRef(ref models.Ref) (remote.Ref, bool, error) {
	if !ref.Collection.Nested() {
		return remote.Ref{Collection: ref.Collection}, true, nil
	}
	plan, err := c.store.Get(models.PlansRef(), ref.Parent)
	if err != nil {
		return remote.Ref{}, false, fmt.Errorf("parent of %s: %w", ref, err)
	}
	if plan.ServerID == "" {
		return remote.Ref{}, false, nil
	}
	return remote.Ref{Collection: ref.Collection, ParentID: plan.ServerID}, true, nil
}

func conflictOf(c models.Collection, local, theirs models.Record, at time.Time) Conflict {
	return Conflict{
		Collection:    c,
		LocalID:       local.LocalID,
		ServerID:      theirs.ServerID,
		LocalData:     local.Payload,
		RemoteData:    theirs.Payload,
		LocalUpdated:  local.UpdatedAt,
		RemoteUpdated: theirs.UpdatedAt,
		OverwrittenAt: at,
	}
}
