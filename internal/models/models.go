package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Collection names a synchronized entity collection.
type Collection string

const (
	CollectionPlans    Collection = "plans"
	CollectionBudgets  Collection = "budgets"
	CollectionExpenses Collection = "expenses"
)

// IsValidCollection reports whether c is a known collection.
func IsValidCollection(c Collection) bool {
	switch c {
	case CollectionPlans, CollectionBudgets, CollectionExpenses:
		return true
	}
	return false
}

// Nested reports whether entities of this collection live under a plan.
func (c Collection) Nested() bool {
	return c == CollectionBudgets || c == CollectionExpenses
}

// Singular returns the human name of one entity of the collection.
func (c Collection) Singular() string {
	switch c {
	case CollectionPlans:
		return "plan"
	case CollectionBudgets:
		return "budget"
	case CollectionExpenses:
		return "expense"
	}
	return string(c)
}

// Ref identifies one concrete collection. Nested collections carry the
// local id of the owning plan in Parent.
type Ref struct {
	Collection Collection `json:"collection"`
	Parent     string     `json:"parent,omitempty"`
}

// PlansRef returns the ref of the top-level plan collection.
func PlansRef() Ref { return Ref{Collection: CollectionPlans} }

// BudgetsRef returns the ref of the budget collection of a plan.
func BudgetsRef(planID string) Ref { return Ref{Collection: CollectionBudgets, Parent: planID} }

// ExpensesRef returns the ref of the expense collection of a plan.
func ExpensesRef(planID string) Ref { return Ref{Collection: CollectionExpenses, Parent: planID} }

// Key returns the stable storage key of the collection.
func (r Ref) Key() string {
	if r.Parent == "" {
		return string(r.Collection)
	}
	return string(r.Collection) + "/" + r.Parent
}

func (r Ref) String() string { return r.Key() }

// SyncMeta is the synchronization metadata carried by every entity.
type SyncMeta struct {
	LocalID   string    `json:"local_id"`
	ServerID  string    `json:"server_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Synced    bool      `json:"synced"`
}

// Record is one stored entity: metadata plus its JSON domain payload.
type Record struct {
	SyncMeta
	Payload json.RawMessage `json:"payload"`
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := r
	if r.Payload != nil {
		out.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	return out
}

// SamePayload reports whether two records carry byte-identical compacted payloads.
func (r Record) SamePayload(other Record) bool {
	var a, b bytes.Buffer
	if json.Compact(&a, r.Payload) != nil || json.Compact(&b, other.Payload) != nil {
		return bytes.Equal(r.Payload, other.Payload)
	}
	return bytes.Equal(a.Bytes(), b.Bytes())
}
