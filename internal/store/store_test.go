package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gzn7264/ai-travel-planner/internal/kv"
	"github.com/gzn7264/ai-travel-planner/internal/models"
	"github.com/gzn7264/ai-travel-planner/internal/queue"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	conn.SetMaxOpenConns(1)
	storage, err := kv.New(conn, t.TempDir())
	if err != nil {
		t.Fatalf("init storage: %v", err)
	}
	s := New(storage)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(id, title string) models.Record {
	now := time.Now().UTC()
	return models.Record{
		SyncMeta: models.SyncMeta{LocalID: id, CreatedAt: now, UpdatedAt: now},
		Payload:  json.RawMessage(`{"title":"` + title + `"}`),
	}
}

func TestApplyPersistsEntityAndQueueTogether(t *testing.T) {
	s := setupStore(t)
	ref := models.PlansRef()

	err := s.Apply(func(tx *Tx) error {
		if err := tx.Put(ref, record("p1", "Lisbon")); err != nil {
			return err
		}
		_, err := tx.Enqueue(queue.Change{Kind: queue.KindCreate, Collection: ref.Collection, LocalID: "p1"})
		return err
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, err := s.Get(ref, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LocalID != "p1" {
		t.Errorf("local id = %q", got.LocalID)
	}
	log, err := s.Queue()
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if log.Len() != 1 {
		t.Fatalf("queue len = %d, want 1", log.Len())
	}
}

func TestApplyRollsBackOnError(t *testing.T) {
	s := setupStore(t)
	ref := models.PlansRef()
	boom := errors.New("boom")

	err := s.Apply(func(tx *Tx) error {
		tx.Put(ref, record("p1", "Lisbon"))
		tx.Enqueue(queue.Change{Kind: queue.KindCreate, Collection: ref.Collection, LocalID: "p1"})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := s.Get(ref, "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("entity should not exist, got %v", err)
	}
	log, _ := s.Queue()
	if log.Len() != 0 {
		t.Fatalf("queue should be empty, has %d", log.Len())
	}
}

func TestApplyStorageFaultPropagates(t *testing.T) {
	mem := kv.NewMemory()
	s := New(mem)
	quota := errors.New("quota exceeded")
	mem.FailWrites = quota

	err := s.Apply(func(tx *Tx) error {
		return tx.Put(models.PlansRef(), record("p1", "Lisbon"))
	})
	if !errors.Is(err, quota) {
		t.Fatalf("expected quota error, got %v", err)
	}
}

func TestListKeepsCreationOrder(t *testing.T) {
	s := setupStore(t)
	ref := models.ExpensesRef("p1")
	for _, id := range []string{"a", "b", "c"} {
		if err := s.Apply(func(tx *Tx) error { return tx.Put(ref, record(id, id)) }); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}
	// Replacing in place must not reorder
	s.Apply(func(tx *Tx) error { return tx.Put(ref, record("a", "renamed")) })

	recs, err := s.List(ref)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, r := range recs {
		ids = append(ids, r.LocalID)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Fatalf("order = %v", ids)
	}
}

func TestTxReadsOwnWrites(t *testing.T) {
	s := setupStore(t)
	ref := models.PlansRef()
	err := s.Apply(func(tx *Tx) error {
		tx.Put(ref, record("p1", "Lisbon"))
		if _, err := tx.Get(ref, "p1"); err != nil {
			t.Errorf("staged entity not visible: %v", err)
		}
		if err := tx.Remove(ref, "p1"); err != nil {
			return err
		}
		if err := tx.Remove(ref, "p1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("second remove: %v", err)
		}
		return tx.Save(KeySyncState, map[string]string{"status": "idle"})
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	var state map[string]string
	ok, err := s.Load(KeySyncState, &state)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if state["status"] != "idle" {
		t.Errorf("state = %v", state)
	}
}

func TestDropRemovesCollection(t *testing.T) {
	s := setupStore(t)
	ref := models.BudgetsRef("p1")
	s.Apply(func(tx *Tx) error { return tx.Put(ref, record("b1", "x")) })
	s.Apply(func(tx *Tx) error { tx.Drop(ref); return nil })

	recs, err := s.List(ref)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected empty collection, got %d", len(recs))
	}
}
