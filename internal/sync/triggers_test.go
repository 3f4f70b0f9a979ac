package sync

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gzn7264/ai-travel-planner/internal/remote"
)

// gatedRemote blocks creates until released and tracks how many run at once.
type gatedRemote struct {
	*remote.Fake
	entered  chan struct{}
	release  chan struct{}
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newGatedRemote() *gatedRemote {
	return &gatedRemote{
		Fake:    remote.NewFake(),
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (g *gatedRemote) Create(ctx context.Context, ref remote.Ref, localID string, payload json.RawMessage) (remote.Entity, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		m := g.maxSeen.Load()
		if n <= m || g.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	g.entered <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return remote.Entity{}, ctx.Err()
	}
	return g.Fake.Create(ctx, ref, localID, payload)
}

func TestTriggerDuringPassRunsOneMorePass(t *testing.T) {
	g := newGatedRemote()
	d := newDevice(t, g, Options{})
	ctx := context.Background()

	_, err := d.plans().Create(ctx, plan("P1"))
	require.NoError(t, err)
	d.sync.TriggerSync()
	<-g.entered
	assert.Equal(t, StatusSyncing, d.sync.SyncStatus().Status)

	// Enqueued mid-pass: not in the running pass's snapshot
	_, err = d.plans().Create(ctx, plan("P2"))
	require.NoError(t, err)
	d.sync.TriggerSync()
	d.sync.TriggerSync()

	close(g.release)
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, d.sync.Wait(waitCtx))

	st := d.sync.SyncStatus()
	assert.Equal(t, StatusSynced, st.Status)
	assert.Zero(t, st.Pending)
	assert.Len(t, g.Snapshot(plansRemote), 2)
	assert.Equal(t, int32(1), g.maxSeen.Load())
}

func TestCallTimeoutIsRecoverable(t *testing.T) {
	g := newGatedRemote()
	d := newDevice(t, g, Options{CallTimeout: 20 * time.Millisecond})
	ctx := context.Background()

	_, err := d.plans().Create(ctx, plan("P1"))
	require.NoError(t, err)

	st := d.syncNow(t)
	assert.Equal(t, StatusPartial, st.Status)
	assert.False(t, st.Online)
	q := d.queue(t)
	require.Len(t, q, 1)
	assert.Equal(t, 1, q[0].Attempts)
}

func TestArmRunsPeriodicPasses(t *testing.T) {
	fake := remote.NewFake()
	d := newDevice(t, fake, Options{Interval: 10 * time.Millisecond})
	ctx := context.Background()

	d.sync.Arm()
	assert.True(t, d.sync.Armed())

	_, err := d.plans().Create(ctx, plan("P1"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return !d.sync.HasPendingChanges()
	}, 2*time.Second, 5*time.Millisecond)

	d.sync.Disarm()
	assert.False(t, d.sync.Armed())
	require.NoError(t, d.sync.Wait(ctx))

	_, err = d.plans().Create(ctx, plan("P2"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.True(t, d.sync.HasPendingChanges(), "disarmed coordinator must not sync on its own")
}

func TestProbeSignalsReconnection(t *testing.T) {
	fake := remote.NewFake()
	var reachable atomic.Bool
	probe := func(ctx context.Context) error {
		if !reachable.Load() {
			return errors.New("connection refused")
		}
		return nil
	}
	d := newDevice(t, fake, Options{
		Interval:      time.Hour,
		ProbeInterval: 5 * time.Millisecond,
		Probe:         probe,
	})
	ctx := context.Background()

	fake.SetOffline(true)
	_, err := d.plans().Create(ctx, plan("P1"))
	require.NoError(t, err)
	d.syncNow(t)
	require.False(t, d.sync.SyncStatus().Online)

	d.sync.Arm()
	require.NoError(t, d.sync.Wait(ctx))
	fake.SetOffline(false)
	reachable.Store(true)

	require.Eventually(t, func() bool {
		st := d.sync.SyncStatus()
		return st.Online && st.Status == StatusSynced
	}, 2*time.Second, 5*time.Millisecond)
}

func TestNotifyReconnectedTriggersPass(t *testing.T) {
	fake := remote.NewFake()
	d := newDevice(t, fake, Options{})
	ctx := context.Background()

	_, err := d.plans().Create(ctx, plan("P1"))
	require.NoError(t, err)
	d.sync.NotifyReconnected()

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, d.sync.Wait(waitCtx))
	assert.False(t, d.sync.HasPendingChanges())
}

func TestCloseStopsEverything(t *testing.T) {
	fake := remote.NewFake()
	d := newDevice(t, fake, Options{Interval: 10 * time.Millisecond})

	d.sync.Arm()
	d.sync.Close()
	assert.False(t, d.sync.Armed())

	// Triggers after close are ignored
	d.sync.TriggerSync()
	d.sync.Arm()
	assert.False(t, d.sync.Armed())
}
