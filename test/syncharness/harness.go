// Package syncharness runs several devices of one account against a shared
// in-memory remote store and checks that their local stores converge.
package syncharness

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gzn7264/ai-travel-planner/internal/engine"
	"github.com/gzn7264/ai-travel-planner/internal/kv"
	"github.com/gzn7264/ai-travel-planner/internal/models"
	"github.com/gzn7264/ai-travel-planner/internal/remote"
	"github.com/gzn7264/ai-travel-planner/internal/session"
	tpsync "github.com/gzn7264/ai-travel-planner/internal/sync"
)

// link connects one device to the shared remote and can be cut.
type link struct {
	remote.Remote
	down atomic.Bool
}

func (l *link) check(op string) error {
	if l.down.Load() {
		return &remote.Error{Kind: remote.KindNetwork, Op: op, Message: "link down"}
	}
	return nil
}

func (l *link) Create(ctx context.Context, ref remote.Ref, localID string, payload json.RawMessage) (remote.Entity, error) {
	if err := l.check("create " + ref.String()); err != nil {
		return remote.Entity{}, err
	}
	return l.Remote.Create(ctx, ref, localID, payload)
}

func (l *link) Update(ctx context.Context, ref remote.Ref, id string, payload json.RawMessage) (remote.Entity, error) {
	if err := l.check("update " + ref.String()); err != nil {
		return remote.Entity{}, err
	}
	return l.Remote.Update(ctx, ref, id, payload)
}

func (l *link) Delete(ctx context.Context, ref remote.Ref, id string) error {
	if err := l.check("delete " + ref.String()); err != nil {
		return err
	}
	return l.Remote.Delete(ctx, ref, id)
}

func (l *link) List(ctx context.Context, ref remote.Ref) ([]remote.Entity, error) {
	if err := l.check("list " + ref.String()); err != nil {
		return nil, err
	}
	return l.Remote.List(ctx, ref)
}

// Device is one client of the account with its own local store.
type Device struct {
	Name    string
	Engine  *engine.Engine
	Session *session.Session
	link    *link
}

// Harness orchestrates multi-device sync testing.
type Harness struct {
	t       *testing.T
	Remote  *remote.Fake
	devices map[string]*Device
	order   []string
}

// New creates a harness with one logged-in device per name.
func New(t *testing.T, names ...string) *Harness {
	t.Helper()
	h := &Harness{
		t:       t,
		Remote:  remote.NewFake(),
		devices: make(map[string]*Device, len(names)),
	}
	for _, name := range names {
		sess := session.New()
		sess.Login(session.Principal{UserID: "traveler", APIKey: "key-" + name})
		l := &link{Remote: h.Remote}
		e, err := engine.Open(engine.Options{
			Storage: kv.NewMemory(),
			Remote:  l,
			Session: sess,
			Sync:    tpsync.Options{Interval: time.Hour},
		})
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		t.Cleanup(func() { e.Close() })
		h.devices[name] = &Device{Name: name, Engine: e, Session: sess, link: l}
		h.order = append(h.order, name)
	}
	return h
}

// Device returns the named device.
func (h *Harness) Device(name string) *Device {
	d, ok := h.devices[name]
	if !ok {
		h.t.Fatalf("unknown device %q", name)
	}
	return d
}

// SetOnline connects or disconnects one device from the remote store.
func (h *Harness) SetOnline(name string, online bool) {
	h.Device(name).link.down.Store(!online)
}

// Settle waits for the push a mutation triggered on the device.
func (h *Harness) Settle(name string) {
	h.Device(name).Engine.Flush(5 * time.Second)
}

// Push drains the device's queue once.
func (h *Harness) Push(name string) tpsync.State {
	h.t.Helper()
	st, err := h.Device(name).Engine.SyncNow(context.Background())
	if err != nil {
		h.t.Fatalf("%s: push: %v", name, err)
	}
	return st
}

// Pull merges the remote plans and the children of every local plan.
func (h *Harness) Pull(name string) error {
	ctx := context.Background()
	e := h.Device(name).Engine
	if _, err := e.ReconcilePlans(ctx); err != nil {
		return fmt.Errorf("%s: reconcile plans: %w", name, err)
	}
	plans, err := e.Plans().List()
	if err != nil {
		return err
	}
	for _, p := range plans {
		if _, err := e.ReconcileChildren(ctx, p.LocalID); err != nil {
			return fmt.Errorf("%s: reconcile plan %s: %w", name, p.LocalID, err)
		}
	}
	return nil
}

// Sync pushes then pulls for a device.
func (h *Harness) Sync(name string) {
	h.t.Helper()
	h.Push(name)
	if err := h.Pull(name); err != nil {
		h.t.Fatal(err)
	}
}

// SyncAll syncs every device in creation order, twice, so each device sees
// what the devices after it pushed.
func (h *Harness) SyncAll() {
	h.t.Helper()
	for range 2 {
		for _, name := range h.order {
			h.Sync(name)
		}
	}
}

// snapshot maps "collection/parent/local_id" to the decoded payload of every
// entity in a device's store.
func (h *Harness) snapshot(name string) map[string]any {
	h.t.Helper()
	e := h.Device(name).Engine
	out := make(map[string]any)
	add := func(prefix string, recs []models.Record) {
		for _, r := range recs {
			var v any
			if err := json.Unmarshal(r.Payload, &v); err != nil {
				h.t.Fatalf("%s: decode %s: %v", name, r.LocalID, err)
			}
			out[prefix+r.LocalID] = v
		}
	}

	plans, err := e.Plans().Repository.List()
	if err != nil {
		h.t.Fatalf("%s: list plans: %v", name, err)
	}
	add("plans/", plans)
	for _, p := range plans {
		budgets, err := e.Budgets(p.LocalID).Repository.List()
		if err != nil {
			h.t.Fatalf("%s: list budgets: %v", name, err)
		}
		add("plans/"+p.LocalID+"/budgets/", budgets)
		expenses, err := e.Expenses(p.LocalID).Repository.List()
		if err != nil {
			h.t.Fatalf("%s: list expenses: %v", name, err)
		}
		add("plans/"+p.LocalID+"/expenses/", expenses)
	}
	return out
}

// remoteSnapshot is snapshot for the remote store, keyed by the local ids
// the remote echoes back.
func (h *Harness) remoteSnapshot() map[string]any {
	h.t.Helper()
	out := make(map[string]any)
	add := func(prefix string, ents []remote.Entity) {
		for _, e := range ents {
			var v any
			if err := json.Unmarshal(e.Payload, &v); err != nil {
				h.t.Fatalf("remote: decode %s: %v", e.ID, err)
			}
			out[prefix+e.LocalID] = v
		}
	}
	plans := h.Remote.Snapshot(remote.Ref{Collection: models.CollectionPlans})
	add("plans/", plans)
	for _, p := range plans {
		prefix := "plans/" + p.LocalID
		add(prefix+"/budgets/", h.Remote.Snapshot(remote.Ref{Collection: models.CollectionBudgets, ParentID: p.ID}))
		add(prefix+"/expenses/", h.Remote.Snapshot(remote.Ref{Collection: models.CollectionExpenses, ParentID: p.ID}))
	}
	return out
}

// AssertConverged verifies every device holds the same entities as the
// remote store and that nothing is left queued.
func (h *Harness) AssertConverged() {
	h.t.Helper()
	want := h.remoteSnapshot()
	for _, name := range h.order {
		if h.Device(name).Engine.HasPendingChanges() {
			h.t.Errorf("%s: changes still queued", name)
		}
		got := h.snapshot(name)
		if !reflect.DeepEqual(got, want) {
			h.t.Errorf("%s diverged from remote:\n%s", name, diff(got, want))
		}
	}
}

func diff(got, want map[string]any) string {
	keys := make(map[string]bool)
	for k := range got {
		keys[k] = true
	}
	for k := range want {
		keys[k] = true
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var sb strings.Builder
	for _, k := range sorted {
		g, gok := got[k]
		w, wok := want[k]
		switch {
		case !gok:
			fmt.Fprintf(&sb, "  missing %s\n", k)
		case !wok:
			fmt.Fprintf(&sb, "  extra   %s\n", k)
		case !reflect.DeepEqual(g, w):
			fmt.Fprintf(&sb, "  differs %s: %v != %v\n", k, g, w)
		}
	}
	return sb.String()
}
