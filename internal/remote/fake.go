package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gzn7264/ai-travel-planner/internal/models"
)

// Call is one request received by a Fake.
type Call struct {
	Op      string // create, update, delete, list
	Ref     Ref
	ID      string // server id, or the local id for creates
	Payload json.RawMessage
}

// Fake is an in-memory Remote shared by any number of clients. It keeps
// nested collections per parent, honors create idempotency by local id and
// cascades plan deletes, like the real server.
type Fake struct {
	mu       sync.Mutex
	nextID   int
	entities map[string]map[string]Entity // ref -> id -> entity
	byLocal  map[string]string            // local id -> server id
	calls    []Call
	offline  bool
	failures []error
	now      func() time.Time
}

// NewFake returns an empty, online fake remote.
func NewFake() *Fake {
	return &Fake{
		entities: make(map[string]map[string]Entity),
		byLocal:  make(map[string]string),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for server timestamps.
func (f *Fake) SetClock(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// SetOffline makes every call fail with a network error while true.
func (f *Fake) SetOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

// FailNext makes the next calls fail with errs, one per call, in order.
func (f *Fake) FailNext(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, errs...)
}

// Calls returns the requests received so far, excluding failed ones.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// ResetCalls clears the call log.
func (f *Fake) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Snapshot returns the entities of a collection ordered by server id.
func (f *Fake) Snapshot(ref Ref) []Entity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list(ref)
}

// Put stores an entity directly, as if another client had written it.
func (f *Fake) Put(ref Ref, e Entity) Entity {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.ID == "" {
		e.ID = f.newID()
	}
	f.collection(ref)[e.ID] = e
	if e.LocalID != "" {
		f.byLocal[e.LocalID] = e.ID
	}
	return e
}

func (f *Fake) Create(ctx context.Context, ref Ref, localID string, payload json.RawMessage) (Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(ctx, "create "+ref.String()); err != nil {
		return Entity{}, err
	}
	if ref.ParentID != "" && !f.exists(Ref{Collection: models.CollectionPlans}, ref.ParentID) {
		return Entity{}, &Error{Kind: KindNotFound, Op: "create " + ref.String(), Status: 404, Message: "plan not found"}
	}
	f.calls = append(f.calls, Call{Op: "create", Ref: ref, ID: localID, Payload: payload})

	if id, ok := f.byLocal[localID]; ok {
		if e, ok := f.collection(ref)[id]; ok {
			return e, nil
		}
	}
	now := f.now().UTC()
	e := Entity{ID: f.newID(), LocalID: localID, CreatedAt: now, UpdatedAt: now, Payload: clonePayload(payload)}
	f.collection(ref)[e.ID] = e
	f.byLocal[localID] = e.ID
	return e, nil
}

func (f *Fake) Update(ctx context.Context, ref Ref, id string, payload json.RawMessage) (Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	op := "update " + ref.String()
	if err := f.fail(ctx, op); err != nil {
		return Entity{}, err
	}
	e, ok := f.collection(ref)[id]
	if !ok {
		return Entity{}, &Error{Kind: KindNotFound, Op: op, Status: 404, Message: id}
	}
	f.calls = append(f.calls, Call{Op: "update", Ref: ref, ID: id, Payload: payload})
	e.Payload = clonePayload(payload)
	e.UpdatedAt = f.now().UTC()
	f.collection(ref)[id] = e
	return e, nil
}

func (f *Fake) Delete(ctx context.Context, ref Ref, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	op := "delete " + ref.String()
	if err := f.fail(ctx, op); err != nil {
		return err
	}
	col := f.collection(ref)
	if _, ok := col[id]; !ok {
		return &Error{Kind: KindNotFound, Op: op, Status: 404, Message: id}
	}
	f.calls = append(f.calls, Call{Op: "delete", Ref: ref, ID: id})
	delete(col, id)
	if ref.ParentID == "" && ref.Collection == models.CollectionPlans {
		delete(f.entities, Ref{Collection: models.CollectionBudgets, ParentID: id}.String())
		delete(f.entities, Ref{Collection: models.CollectionExpenses, ParentID: id}.String())
	}
	return nil
}

func (f *Fake) List(ctx context.Context, ref Ref) ([]Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(ctx, "list "+ref.String()); err != nil {
		return nil, err
	}
	f.calls = append(f.calls, Call{Op: "list", Ref: ref})
	return f.list(ref), nil
}

func (f *Fake) fail(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	if f.offline {
		return &Error{Kind: KindNetwork, Op: op, Message: "connection refused"}
	}
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return err
	}
	return nil
}

func (f *Fake) list(ref Ref) []Entity {
	col := f.entities[ref.String()]
	out := make([]Entity, 0, len(col))
	for _, e := range col {
		e.Payload = clonePayload(e.Payload)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *Fake) exists(ref Ref, id string) bool {
	_, ok := f.entities[ref.String()][id]
	return ok
}

func (f *Fake) collection(ref Ref) map[string]Entity {
	key := ref.String()
	col, ok := f.entities[key]
	if !ok {
		col = make(map[string]Entity)
		f.entities[key] = col
	}
	return col
}

// newID returns ids that sort in creation order.
func (f *Fake) newID() string {
	f.nextID++
	return fmt.Sprintf("srv-%06d", f.nextID)
}

func clonePayload(p json.RawMessage) json.RawMessage {
	if p == nil {
		return nil
	}
	return append(json.RawMessage(nil), p...)
}
