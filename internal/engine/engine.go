// Package engine wires the local store, the typed repositories and the sync
// coordinator of one client session, and is the surface the CLI talks to.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/gzn7264/ai-travel-planner/internal/kv"
	"github.com/gzn7264/ai-travel-planner/internal/merge"
	"github.com/gzn7264/ai-travel-planner/internal/models"
	"github.com/gzn7264/ai-travel-planner/internal/queue"
	"github.com/gzn7264/ai-travel-planner/internal/remote"
	"github.com/gzn7264/ai-travel-planner/internal/repo"
	"github.com/gzn7264/ai-travel-planner/internal/session"
	"github.com/gzn7264/ai-travel-planner/internal/store"
	tpsync "github.com/gzn7264/ai-travel-planner/internal/sync"
)

// Options configures an Engine.
type Options struct {
	// Dir is the base directory holding .tp/local.db. Ignored when Storage
	// is set.
	Dir     string
	Storage kv.Storage

	// Remote defaults to the HTTP API of the current principal's server.
	Remote  remote.Remote
	Session *session.Session

	// AutoSync arms the periodic trigger whenever a principal is active.
	AutoSync bool
	Sync     tpsync.Options
}

// Engine is one client session.
type Engine struct {
	store       *store.Store
	session     *session.Session
	sync        *tpsync.Coordinator
	autoSync    bool
	unsubscribe func()
	closeOnce   gosync.Once
	closeErr    error
}

// Open builds an engine. A principal already present in the session arms
// the periodic trigger right away.
func Open(opts Options) (*Engine, error) {
	storage := opts.Storage
	if storage == nil {
		if opts.Dir == "" {
			return nil, errors.New("engine: no storage and no base directory")
		}
		s, err := kv.Open(opts.Dir)
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}
		storage = s
	}

	sess := opts.Session
	if sess == nil {
		sess = session.New()
	}
	rem := opts.Remote
	if rem == nil {
		timeout := opts.Sync.CallTimeout
		rem = &principalRemote{session: sess, timeout: timeout}
		if opts.Sync.Probe == nil {
			opts.Sync.Probe = healthProbe(sess, timeout)
		}
	}

	st := store.New(storage)
	e := &Engine{
		store:    st,
		session:  sess,
		sync:     tpsync.New(st, rem, sess, opts.Sync),
		autoSync: opts.AutoSync,
	}
	e.unsubscribe = sess.Subscribe(e.onPrincipal)
	if _, ok := sess.CurrentPrincipal(); ok && e.autoSync {
		e.sync.Arm()
	}
	return e, nil
}

func (e *Engine) onPrincipal(p session.Principal, active bool) {
	switch {
	case !active:
		e.sync.Disarm()
	case e.autoSync:
		e.sync.Arm()
	default:
		e.sync.TriggerSync()
	}
	slog.Debug("engine: principal changed", "user", p.UserID, "active", active)
}

// Plans returns the plan repository.
func (e *Engine) Plans() *repo.Plans {
	return repo.NewTyped[models.Plan](repo.New(e.store, models.PlansRef(), e.sync))
}

// Budgets returns the budget repository of a plan.
func (e *Engine) Budgets(planID string) *repo.Budgets {
	return repo.NewTyped[models.Budget](repo.New(e.store, models.BudgetsRef(planID), e.sync))
}

// Expenses returns the expense repository of a plan.
func (e *Engine) Expenses(planID string) *repo.Expenses {
	return repo.NewTyped[models.Expense](repo.New(e.store, models.ExpensesRef(planID), e.sync))
}

// Spending summarizes a plan's expenses against its budget.
func (e *Engine) Spending(planID string) (repo.Spending, error) {
	p, err := e.Plans().Get(planID)
	if err != nil {
		return repo.Spending{}, err
	}
	return repo.Summarize(p.Data, e.Budgets(planID), e.Expenses(planID))
}

// LoadAndMerge returns the surviving version of one entity.
func (e *Engine) LoadAndMerge(ctx context.Context, ref models.Ref, localID string) (models.Record, merge.Decision, error) {
	return e.sync.LoadAndMerge(ctx, ref, localID)
}

// ReconcilePlans merges the local plans with the remote ones.
func (e *Engine) ReconcilePlans(ctx context.Context) (tpsync.ReconcileResult, error) {
	return e.sync.ReconcilePlans(ctx)
}

// ReconcileChildren merges the budget and expenses of one plan. Extra
// budgets adopted from other devices are deleted, leaving the current one.
func (e *Engine) ReconcileChildren(ctx context.Context, planID string) (tpsync.ReconcileResult, error) {
	res, err := e.sync.ReconcileChildren(ctx, planID)
	if err != nil {
		return res, err
	}
	n, err := repo.CollapseBudgets(ctx, e.Budgets(planID))
	if err != nil {
		return res, err
	}
	res.Dropped += n
	return res, nil
}

// SyncStatus returns the current sync state.
func (e *Engine) SyncStatus() tpsync.State { return e.sync.SyncStatus() }

// HasPendingChanges reports whether local mutations await confirmation.
func (e *Engine) HasPendingChanges() bool { return e.sync.HasPendingChanges() }

// Pending returns the queued changes in the order they will be sent.
func (e *Engine) Pending() ([]queue.Change, error) {
	log, err := e.store.Queue()
	if err != nil {
		return nil, err
	}
	return log.Drainable(), nil
}

// TriggerSync requests a drain pass without waiting for it.
func (e *Engine) TriggerSync() { e.sync.TriggerSync() }

// SyncNow runs a drain pass and waits for it.
func (e *Engine) SyncNow(ctx context.Context) (tpsync.State, error) {
	return e.sync.SyncNow(ctx)
}

// Flush waits up to timeout for a running pass, typically the immediate
// push a mutation requested. A pass still running at the deadline keeps its
// changes queued for the next one.
func (e *Engine) Flush(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := e.sync.Wait(ctx); err != nil {
		slog.Debug("engine: flush", "err", err)
	}
}

// Arm starts periodic syncing regardless of the AutoSync option.
func (e *Engine) Arm() { e.sync.Arm() }

// Session returns the session the engine syncs as.
func (e *Engine) Session() *session.Session { return e.session }

// History returns the last limit push and pull outcomes, oldest first.
func (e *Engine) History(limit int) ([]tpsync.HistoryEntry, error) {
	return tpsync.HistoryTail(e.store, limit)
}

// Conflicts returns recent merge overwrites, most recent first.
func (e *Engine) Conflicts(limit int, since time.Time) ([]tpsync.Conflict, error) {
	return tpsync.RecentConflicts(e.store, limit, since)
}

// Close stops syncing and releases the local store.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.unsubscribe()
		e.sync.Close()
		e.closeErr = e.store.Close()
	})
	return e.closeErr
}
