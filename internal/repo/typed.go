package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gzn7264/ai-travel-planner/internal/models"
)

// Entity is a decoded entity: sync metadata plus its typed payload.
type Entity[T any] struct {
	models.SyncMeta
	Data T
}

// Typed wraps a Repository with encoding to and from the domain type T.
type Typed[T any] struct {
	*Repository
}

// Plans, Budgets and Expenses are the typed repositories of each collection.
type (
	Plans    = Typed[models.Plan]
	Budgets  = Typed[models.Budget]
	Expenses = Typed[models.Expense]
)

// NewTyped wraps r.
func NewTyped[T any](r *Repository) *Typed[T] {
	return &Typed[T]{Repository: r}
}

// Create stores a new entity.
func (t *Typed[T]) Create(ctx context.Context, v T) (Entity[T], error) {
	payload, err := models.Encode(t.ref.Collection, v)
	if err != nil {
		return Entity[T]{}, err
	}
	rec, err := t.Repository.Create(ctx, payload)
	if err != nil {
		return Entity[T]{}, err
	}
	return t.decode(rec)
}

// Edit loads an entity, lets fn modify its payload and stores the result.
func (t *Typed[T]) Edit(ctx context.Context, localID string, fn func(*T)) (Entity[T], error) {
	cur, err := t.Get(localID)
	if err != nil {
		return Entity[T]{}, err
	}
	fn(&cur.Data)
	payload, err := models.Encode(t.ref.Collection, cur.Data)
	if err != nil {
		return Entity[T]{}, err
	}
	rec, err := t.Repository.Replace(ctx, localID, payload)
	if err != nil {
		return Entity[T]{}, err
	}
	return t.decode(rec)
}

// Patch merges a partial JSON payload into an entity.
func (t *Typed[T]) Patch(ctx context.Context, localID string, patch json.RawMessage) (Entity[T], error) {
	rec, err := t.Repository.Update(ctx, localID, patch)
	if err != nil {
		return Entity[T]{}, err
	}
	return t.decode(rec)
}

// Get returns one decoded entity.
func (t *Typed[T]) Get(localID string) (Entity[T], error) {
	rec, err := t.Repository.Get(localID)
	if err != nil {
		return Entity[T]{}, err
	}
	return t.decode(rec)
}

// List returns every decoded entity in creation order.
func (t *Typed[T]) List() ([]Entity[T], error) {
	recs, err := t.Repository.List()
	if err != nil {
		return nil, err
	}
	out := make([]Entity[T], 0, len(recs))
	for _, rec := range recs {
		e, err := t.decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (t *Typed[T]) decode(rec models.Record) (Entity[T], error) {
	var v T
	if err := json.Unmarshal(rec.Payload, &v); err != nil {
		return Entity[T]{}, fmt.Errorf("decode %s %s: %w", t.ref.Collection.Singular(), rec.LocalID, err)
	}
	return Entity[T]{SyncMeta: rec.SyncMeta, Data: v}, nil
}

// Current returns the plan's budget, if one has been set. When budgets set
// on several devices coexist, the most recently updated one is current, with
// ties broken by server id and then local id so every device agrees.
func Current(b *Budgets) (Entity[models.Budget], bool, error) {
	all, err := b.List()
	if err != nil || len(all) == 0 {
		return Entity[models.Budget]{}, false, err
	}
	best := all[0]
	for _, x := range all[1:] {
		if newerBudget(x.SyncMeta, best.SyncMeta) {
			best = x
		}
	}
	return best, true, nil
}

func newerBudget(a, b models.SyncMeta) bool {
	switch {
	case !a.UpdatedAt.Equal(b.UpdatedAt):
		return a.UpdatedAt.After(b.UpdatedAt)
	case a.ServerID != b.ServerID:
		return a.ServerID > b.ServerID
	}
	return a.LocalID > b.LocalID
}

// CollapseBudgets deletes every budget of a plan except the current one and
// returns how many it deleted. It waits until all of them are confirmed, so
// that devices holding the same merged collection pick the same survivor.
func CollapseBudgets(ctx context.Context, b *Budgets) (int, error) {
	all, err := b.List()
	if err != nil || len(all) < 2 {
		return 0, err
	}
	for _, x := range all {
		if !x.Synced {
			return 0, nil
		}
	}
	keep, _, err := Current(b)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, x := range all {
		if x.LocalID == keep.LocalID {
			continue
		}
		if err := b.Delete(ctx, x.LocalID); err != nil {
			return n, fmt.Errorf("collapse budgets: %w", err)
		}
		n++
	}
	return n, nil
}

// SetBudget creates the plan's budget or replaces the existing one.
func SetBudget(ctx context.Context, b *Budgets, v models.Budget) (Entity[models.Budget], error) {
	cur, ok, err := Current(b)
	if err != nil {
		return Entity[models.Budget]{}, err
	}
	if !ok {
		return b.Create(ctx, v)
	}
	return b.Edit(ctx, cur.LocalID, func(dst *models.Budget) { *dst = v })
}

// Spending summarizes a plan's expenses against its budget.
type Spending struct {
	Spent      decimal.Decimal
	Budget     decimal.Decimal
	Remaining  decimal.Decimal
	ByCategory map[string]decimal.Decimal
	HasBudget  bool
}

// Summarize totals the expenses of a plan and compares them to its budget.
// Without a budget entity the plan's own budget field is the limit.
func Summarize(plan models.Plan, b *Budgets, e *Expenses) (Spending, error) {
	expenses, err := e.List()
	if err != nil {
		return Spending{}, err
	}
	s := Spending{ByCategory: make(map[string]decimal.Decimal), Budget: plan.Budget}
	items := make([]models.Expense, 0, len(expenses))
	for _, x := range expenses {
		items = append(items, x.Data)
		s.ByCategory[x.Data.Category] = s.ByCategory[x.Data.Category].Add(x.Data.Amount)
	}
	s.Spent = models.TotalExpenses(items)

	budget, ok, err := Current(b)
	if err != nil {
		return Spending{}, err
	}
	if ok {
		s.Budget = budget.Data.Total
		s.HasBudget = true
		s.Remaining = budget.Data.Remaining(s.Spent)
		return s, nil
	}
	s.Remaining = s.Budget.Sub(s.Spent)
	return s, nil
}
