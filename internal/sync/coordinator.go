package sync

import (
	"context"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/gzn7264/ai-travel-planner/internal/remote"
	"github.com/gzn7264/ai-travel-planner/internal/session"
	"github.com/gzn7264/ai-travel-planner/internal/store"
)

// Prober checks whether the remote store is reachable.
type Prober func(ctx context.Context) error

// Options configures a Coordinator. Zero values select defaults.
type Options struct {
	Interval      time.Duration // periodic trigger, default 5m
	ProbeInterval time.Duration // connectivity probe while offline, default 30s
	CallTimeout   time.Duration // per remote call, default 10s
	Probe         Prober        // nil disables probing
	Now           func() time.Time
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Minute
	}
	if o.ProbeInterval <= 0 {
		o.ProbeInterval = 30 * time.Second
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 10 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Coordinator drains the pending change queue against the remote store.
//
// At most one drain pass runs at a time. A trigger that arrives while a
// pass is running does not start a second one; it asks the running loop
// for one more pass so that a change enqueued mid-pass is not left behind.
type Coordinator struct {
	store     *store.Store
	remote    remote.Remote
	principal session.Provider
	opts      Options

	ctx    context.Context
	cancel context.CancelFunc

	mu      gosync.Mutex
	state   State
	running bool
	rerun   bool
	idle    chan struct{} // closed while no pass is running
	disarm  func()
	wg      gosync.WaitGroup
}

// New returns a coordinator in the idle state. The last persisted state of
// the store seeds LastSyncedAt.
func New(s *store.Store, r remote.Remote, p session.Provider, opts Options) *Coordinator {
	opts.defaults()
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	c := &Coordinator{
		store:     s,
		remote:    r,
		principal: p,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		idle:      idle,
		state:     State{Status: StatusIdle, Online: true},
	}
	if prev, err := LoadState(s); err == nil {
		c.state.LastSyncedAt = prev.LastSyncedAt
	}
	return c
}

// SyncStatus returns the current sync state.
func (c *Coordinator) SyncStatus() State {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if log, err := c.store.Queue(); err == nil {
		st.Pending = log.Len()
	}
	return st
}

// HasPendingChanges reports whether any local mutation awaits remote
// confirmation.
func (c *Coordinator) HasPendingChanges() bool {
	log, err := c.store.Queue()
	if err != nil {
		slog.Debug("sync: read queue", "err", err)
		return true
	}
	return log.Len() > 0
}

// TriggerSync requests a drain pass without blocking. Without an active
// principal it does nothing.
func (c *Coordinator) TriggerSync() {
	if _, ok := c.principal.CurrentPrincipal(); !ok {
		slog.Debug("sync: trigger ignored, no principal")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Err() != nil {
		return
	}
	if c.running {
		c.rerun = true
		return
	}
	c.running = true
	c.idle = make(chan struct{})
	c.state.Status = StatusSyncing
	c.wg.Add(1)
	go c.loop(c.idle)
}

// Wait blocks until no pass is running or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SyncNow triggers a pass and waits for it to finish.
func (c *Coordinator) SyncNow(ctx context.Context) (State, error) {
	if _, ok := c.principal.CurrentPrincipal(); !ok {
		return c.SyncStatus(), ErrNoPrincipal
	}
	c.TriggerSync()
	if err := c.Wait(ctx); err != nil {
		return c.SyncStatus(), err
	}
	return c.SyncStatus(), nil
}

// Close stops the periodic trigger, cancels in-flight remote calls and
// waits for the running pass to wind down.
func (c *Coordinator) Close() {
	c.Disarm()
	c.cancel()
	c.wg.Wait()
}

func (c *Coordinator) loop(idle chan struct{}) {
	defer c.wg.Done()
	for {
		c.runPass()

		c.mu.Lock()
		if c.rerun && c.ctx.Err() == nil {
			c.rerun = false
			c.state.Status = StatusSyncing
			c.mu.Unlock()
			continue
		}
		c.rerun = false
		c.running = false
		close(idle)
		c.mu.Unlock()
		return
	}
}

func (c *Coordinator) runPass() {
	if _, ok := c.principal.CurrentPrincipal(); !ok {
		// Principal lost between trigger and pass
		c.finish(StatusError, ErrNoPrincipal.Error(), c.SyncStatus().Pending, false)
		return
	}

	start := c.opts.Now()
	res, pending := c.drain(c.ctx)

	switch {
	case res.Aborted != nil:
		slog.Warn("sync: pass aborted", "err", res.Aborted, "pending", pending)
		c.finish(StatusError, res.Aborted.Error(), pending, false)
	case pending == 0:
		c.finish(StatusSynced, "", pending, true)
	default:
		c.finish(StatusPartial, "", pending, true)
	}
	slog.Debug("sync: pass done", "sent", res.Sent, "failed", res.Failed,
		"dropped", res.Dropped, "pending", pending, "took", time.Since(start))
}

func (c *Coordinator) finish(status Status, errMsg string, pending int, completed bool) {
	c.mu.Lock()
	c.state.Status = status
	c.state.LastError = errMsg
	c.state.Pending = pending
	if completed {
		c.state.LastSyncedAt = c.opts.Now().UTC()
	}
	st := c.state
	c.mu.Unlock()

	if err := c.store.Apply(func(tx *store.Tx) error { return tx.Save(store.KeySyncState, st) }); err != nil {
		slog.Debug("sync: persist state", "err", err)
	}
}

// setOnline records reachability and reports whether it changed.
func (c *Coordinator) setOnline(online bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := c.state.Online != online
	c.state.Online = online
	return changed
}

func (c *Coordinator) isOnline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Online
}

// call runs fn with the per-call timeout and tracks reachability.
func (c *Coordinator) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()
	err := fn(ctx)
	switch kind := remote.KindOf(err); {
	case err == nil:
		c.setOnline(true)
	case kind == remote.KindNetwork || kind == remote.KindTimeout:
		c.setOnline(false)
	}
	return err
}
