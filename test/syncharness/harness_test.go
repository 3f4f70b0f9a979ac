package syncharness

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gzn7264/ai-travel-planner/internal/models"
	"github.com/gzn7264/ai-travel-planner/internal/remote"
	"github.com/gzn7264/ai-travel-planner/internal/repo"
)

var ctx = context.Background()

func createPlan(t *testing.T, h *Harness, dev, title string) string {
	t.Helper()
	p, err := h.Device(dev).Engine.Plans().Create(ctx, models.Plan{Title: title, Destination: title})
	if err != nil {
		t.Fatalf("%s: create plan: %v", dev, err)
	}
	h.Settle(dev)
	return p.LocalID
}

func addExpense(t *testing.T, h *Harness, dev, planID, category string, amount int64) string {
	t.Helper()
	x, err := h.Device(dev).Engine.Expenses(planID).Create(ctx, models.Expense{
		Category: category,
		Amount:   decimal.NewFromInt(amount),
		Date:     "2026-04-02",
	})
	if err != nil {
		t.Fatalf("%s: add expense: %v", dev, err)
	}
	h.Settle(dev)
	return x.LocalID
}

func retitle(t *testing.T, h *Harness, dev, planID, title string) {
	t.Helper()
	_, err := h.Device(dev).Engine.Plans().Edit(ctx, planID, func(p *models.Plan) { p.Title = title })
	if err != nil {
		t.Fatalf("%s: edit plan: %v", dev, err)
	}
	h.Settle(dev)
}

func planTitle(t *testing.T, h *Harness, dev, planID string) string {
	t.Helper()
	p, err := h.Device(dev).Engine.Plans().Get(planID)
	if err != nil {
		t.Fatalf("%s: get plan %s: %v", dev, planID, err)
	}
	return p.Data.Title
}

func TestCreateReachesOtherDevice(t *testing.T) {
	h := New(t, "phone", "laptop")

	planID := createPlan(t, h, "phone", "Kyoto")
	addExpense(t, h, "phone", planID, "food", 40)
	h.Sync("phone")
	h.Sync("laptop")

	h.AssertConverged()
	if got := planTitle(t, h, "laptop", planID); got != "Kyoto" {
		t.Errorf("laptop plan title = %q", got)
	}
	xs, err := h.Device("laptop").Engine.Expenses(planID).List()
	if err != nil || len(xs) != 1 || !xs[0].Synced {
		t.Errorf("laptop expenses = %+v, %v", xs, err)
	}
}

func TestOfflineCreateWithChildren(t *testing.T) {
	h := New(t, "phone", "laptop")
	h.SetOnline("phone", false)

	planID := createPlan(t, h, "phone", "Reykjavik")
	addExpense(t, h, "phone", planID, "transportation", 120)
	addExpense(t, h, "phone", planID, "food", 35)
	if len(h.Remote.Snapshot(remote.Ref{Collection: models.CollectionPlans})) != 0 {
		t.Fatal("offline device reached the remote store")
	}
	if !h.Device("phone").Engine.HasPendingChanges() {
		t.Fatal("offline changes not queued")
	}

	h.SetOnline("phone", true)
	st := h.Push("phone")
	if st.Pending != 0 {
		t.Fatalf("pending after reconnect = %d (%s)", st.Pending, st.LastError)
	}
	h.SyncAll()
	h.AssertConverged()

	s, err := h.Device("laptop").Engine.Spending(planID)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Spent.Equal(decimal.NewFromInt(155)) {
		t.Errorf("laptop spent = %s, want 155", s.Spent)
	}
}

func TestConcurrentEditsLastPushWins(t *testing.T) {
	h := New(t, "phone", "laptop")
	planID := createPlan(t, h, "phone", "Lisbon")
	h.SyncAll()

	h.SetOnline("phone", false)
	h.SetOnline("laptop", false)
	retitle(t, h, "phone", planID, "Lisbon with kids")
	time.Sleep(time.Millisecond)
	retitle(t, h, "laptop", planID, "Lisbon and Porto")

	h.SetOnline("phone", true)
	h.SetOnline("laptop", true)
	h.Sync("phone")
	h.Sync("laptop")
	h.SyncAll()

	h.AssertConverged()
	for _, dev := range []string{"phone", "laptop"} {
		if got := planTitle(t, h, dev, planID); got != "Lisbon and Porto" {
			t.Errorf("%s title = %q, want the last pushed version", dev, got)
		}
	}

	conflicts, err := h.Device("phone").Engine.Conflicts(10, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(conflicts) == 0 {
		t.Error("overwritten phone version not recorded as a conflict")
	}
}

func TestDeletePropagatesWithChildren(t *testing.T) {
	h := New(t, "phone", "laptop")
	planID := createPlan(t, h, "phone", "Rome")
	addExpense(t, h, "phone", planID, "food", 25)
	if _, err := repo.SetBudget(ctx, h.Device("phone").Engine.Budgets(planID), models.Budget{Total: decimal.NewFromInt(900)}); err != nil {
		t.Fatal(err)
	}
	h.Settle("phone")
	h.SyncAll()

	if err := h.Device("laptop").Engine.Plans().Delete(ctx, planID); err != nil {
		t.Fatalf("laptop delete: %v", err)
	}
	h.Settle("laptop")
	h.SyncAll()

	h.AssertConverged()
	plans, err := h.Device("phone").Engine.Plans().List()
	if err != nil || len(plans) != 0 {
		t.Errorf("phone still has plans: %+v, %v", plans, err)
	}
	if xs := h.Remote.Snapshot(remote.Ref{Collection: models.CollectionPlans}); len(xs) != 0 {
		t.Errorf("remote still has %d plans", len(xs))
	}
}

func TestCreateAndDeleteOfflineLeavesNoTrace(t *testing.T) {
	h := New(t, "phone", "laptop")
	h.SetOnline("phone", false)

	planID := createPlan(t, h, "phone", "Scratch")
	addExpense(t, h, "phone", planID, "other", 5)
	if err := h.Device("phone").Engine.Plans().Delete(ctx, planID); err != nil {
		t.Fatal(err)
	}
	h.Settle("phone")

	h.SetOnline("phone", true)
	h.SyncAll()
	h.AssertConverged()
	if xs := h.Remote.Snapshot(remote.Ref{Collection: models.CollectionPlans}); len(xs) != 0 {
		t.Errorf("remote has %d plans", len(xs))
	}
}

func TestConcurrentExpensesAreBothKept(t *testing.T) {
	h := New(t, "phone", "laptop")
	planID := createPlan(t, h, "phone", "Oslo")
	h.SyncAll()

	h.SetOnline("phone", false)
	h.SetOnline("laptop", false)
	addExpense(t, h, "phone", planID, "food", 30)
	addExpense(t, h, "laptop", planID, "activities", 80)
	h.SetOnline("phone", true)
	h.SetOnline("laptop", true)
	h.SyncAll()

	h.AssertConverged()
	for _, dev := range []string{"phone", "laptop"} {
		xs, err := h.Device(dev).Engine.Expenses(planID).List()
		if err != nil || len(xs) != 2 {
			t.Errorf("%s expenses = %d, %v", dev, len(xs), err)
		}
	}
}

func TestThreeDevicesConverge(t *testing.T) {
	h := New(t, "phone", "laptop", "tablet")

	var plans []string
	for _, dev := range h.order {
		for _, title := range []string{"Paris", "Berlin"} {
			id := createPlan(t, h, dev, dev+" "+title)
			addExpense(t, h, dev, id, "accommodation", 100)
			plans = append(plans, id)
		}
	}
	h.SyncAll()

	retitle(t, h, "tablet", plans[0], "Paris in spring")
	addExpense(t, h, "phone", plans[5], "food", 12)
	if err := h.Device("laptop").Engine.Plans().Delete(ctx, plans[3]); err != nil {
		t.Fatal(err)
	}
	h.Settle("laptop")
	h.SyncAll()

	h.AssertConverged()
	for _, dev := range h.order {
		ps, err := h.Device(dev).Engine.Plans().List()
		if err != nil || len(ps) != 5 {
			t.Errorf("%s plans = %d, %v", dev, len(ps), err)
		}
		if got := planTitle(t, h, dev, plans[0]); got != "Paris in spring" {
			t.Errorf("%s title = %q", dev, got)
		}
	}
}

func TestBudgetsSetOfflineCollapseToOne(t *testing.T) {
	h := New(t, "phone", "laptop")
	planID := createPlan(t, h, "phone", "Lima")
	h.SyncAll()

	h.SetOnline("phone", false)
	h.SetOnline("laptop", false)
	for dev, total := range map[string]int64{"phone": 500, "laptop": 800} {
		if _, err := repo.SetBudget(ctx, h.Device(dev).Engine.Budgets(planID), models.Budget{Total: decimal.NewFromInt(total)}); err != nil {
			t.Fatalf("%s: set budget: %v", dev, err)
		}
	}
	h.SetOnline("phone", true)
	h.SetOnline("laptop", true)

	// Collapsing enqueues deletes that are pushed in the background
	for range 2 {
		h.SyncAll()
		h.Settle("phone")
		h.Settle("laptop")
	}

	h.AssertConverged()
	var totals []string
	for _, dev := range []string{"phone", "laptop"} {
		budgets := h.Device(dev).Engine.Budgets(planID)
		all, err := budgets.List()
		if err != nil || len(all) != 1 {
			t.Fatalf("%s: budgets = %+v, %v", dev, all, err)
		}
		cur, ok, err := repo.Current(budgets)
		if err != nil || !ok {
			t.Fatalf("%s: current budget: %v", dev, err)
		}
		totals = append(totals, cur.Data.Total.String())
	}
	if totals[0] != totals[1] {
		t.Errorf("devices disagree on the budget: phone=%s laptop=%s", totals[0], totals[1])
	}
}
