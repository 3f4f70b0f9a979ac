package store

import (
	"encoding/json"
	"fmt"

	"github.com/gzn7264/ai-travel-planner/internal/kv"
	"github.com/gzn7264/ai-travel-planner/internal/models"
	"github.com/gzn7264/ai-travel-planner/internal/queue"
)

// Tx stages changes to collections, the queue and auxiliary keys. Reads
// through a Tx observe its own staged writes.
type Tx struct {
	r     kv.Reader
	cols  map[string][]models.Record
	dirty map[string]bool
	log   *queue.Log
	extra map[string][]byte
}

func newTx(r kv.Reader) *Tx {
	return &Tx{
		r:     r,
		cols:  make(map[string][]models.Record),
		dirty: make(map[string]bool),
		extra: make(map[string][]byte),
	}
}

// List returns the staged view of a collection.
func (tx *Tx) List(ref models.Ref) ([]models.Record, error) {
	recs, err := tx.collection(ref)
	if err != nil {
		return nil, err
	}
	out := make([]models.Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out, nil
}

// Get returns one entity of the staged view.
func (tx *Tx) Get(ref models.Ref, localID string) (models.Record, error) {
	recs, err := tx.collection(ref)
	if err != nil {
		return models.Record{}, err
	}
	if i := indexOf(recs, localID); i >= 0 {
		return recs[i].Clone(), nil
	}
	return models.Record{}, fmt.Errorf("%s %s: %w", ref.Collection.Singular(), localID, ErrNotFound)
}

// Put inserts rec, or replaces the entity with the same local id in place.
// New entities are appended so collections stay in creation order.
func (tx *Tx) Put(ref models.Ref, rec models.Record) error {
	recs, err := tx.collection(ref)
	if err != nil {
		return err
	}
	if i := indexOf(recs, rec.LocalID); i >= 0 {
		recs[i] = rec.Clone()
	} else {
		recs = append(recs, rec.Clone())
	}
	tx.stage(ref, recs)
	return nil
}

// Remove deletes the entity with localID.
func (tx *Tx) Remove(ref models.Ref, localID string) error {
	recs, err := tx.collection(ref)
	if err != nil {
		return err
	}
	i := indexOf(recs, localID)
	if i < 0 {
		return fmt.Errorf("%s %s: %w", ref.Collection.Singular(), localID, ErrNotFound)
	}
	tx.stage(ref, append(recs[:i:i], recs[i+1:]...))
	return nil
}

// Replace overwrites the whole collection.
func (tx *Tx) Replace(ref models.Ref, recs []models.Record) {
	out := make([]models.Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	tx.stage(ref, out)
}

// Drop deletes a collection entirely.
func (tx *Tx) Drop(ref models.Ref) {
	tx.stage(ref, nil)
}

// Queue returns the staged pending change log. Mutations of the returned
// log are committed with the transaction.
func (tx *Tx) Queue() (*queue.Log, error) {
	if tx.log == nil {
		log, err := readQueue(tx.r)
		if err != nil {
			return nil, err
		}
		tx.log = log
	}
	return tx.log, nil
}

// Enqueue appends a change to the staged log.
func (tx *Tx) Enqueue(c queue.Change) (queue.Change, error) {
	log, err := tx.Queue()
	if err != nil {
		return queue.Change{}, err
	}
	return log.Enqueue(c), nil
}

// Load decodes an auxiliary key, preferring a value staged by this tx.
func (tx *Tx) Load(key string, v any) (bool, error) {
	if data, ok := tx.extra[key]; ok {
		if err := json.Unmarshal(data, v); err != nil {
			return false, fmt.Errorf("decode %s: %w", key, err)
		}
		return true, nil
	}
	return readJSON(tx.r, key, v)
}

// Save stages v as JSON under an auxiliary key.
func (tx *Tx) Save(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	tx.extra[key] = data
	return nil
}

func (tx *Tx) collection(ref models.Ref) ([]models.Record, error) {
	key := ref.Key()
	if recs, ok := tx.cols[key]; ok {
		return recs, nil
	}
	recs, err := readCollection(tx.r, ref)
	if err != nil {
		return nil, err
	}
	tx.cols[key] = recs
	return recs, nil
}

func (tx *Tx) stage(ref models.Ref, recs []models.Record) {
	key := ref.Key()
	tx.cols[key] = recs
	tx.dirty[key] = true
}

func (tx *Tx) entries() (map[string][]byte, error) {
	out := make(map[string][]byte, len(tx.dirty)+len(tx.extra)+1)
	for key := range tx.dirty {
		recs := tx.cols[key]
		if recs == nil {
			out[key] = nil
			continue
		}
		data, err := json.Marshal(recs)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		out[key] = data
	}
	if tx.log != nil {
		data, err := json.Marshal(tx.log)
		if err != nil {
			return nil, fmt.Errorf("encode queue: %w", err)
		}
		out[KeyQueue] = data
	}
	for key, data := range tx.extra {
		out[key] = data
	}
	return out, nil
}
