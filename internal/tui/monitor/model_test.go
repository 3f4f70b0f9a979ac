package monitor

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gzn7264/ai-travel-planner/internal/models"
	"github.com/gzn7264/ai-travel-planner/internal/queue"
	tpsync "github.com/gzn7264/ai-travel-planner/internal/sync"
)

type fakeSource struct {
	state    tpsync.State
	pending  []queue.Change
	history  []tpsync.HistoryEntry
	err      error
	triggers int
}

func (f *fakeSource) SyncStatus() tpsync.State { return f.state }

func (f *fakeSource) Pending() ([]queue.Change, error) { return f.pending, f.err }

func (f *fakeSource) History(limit int) ([]tpsync.HistoryEntry, error) {
	out := append([]tpsync.HistoryEntry(nil), f.history...)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeSource) TriggerSync() { f.triggers++ }

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func TestFetchDataNewestFirst(t *testing.T) {
	src := &fakeSource{history: []tpsync.HistoryEntry{
		{LocalID: "first", Action: "create"},
		{LocalID: "second", Action: "update"},
		{LocalID: "third", Action: "delete"},
	}}

	msg := FetchData(src, 2)
	if msg.Err != nil {
		t.Fatalf("FetchData: %v", msg.Err)
	}
	if len(msg.History) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(msg.History))
	}
	if msg.History[0].LocalID != "third" || msg.History[1].LocalID != "second" {
		t.Errorf("history order = %s, %s", msg.History[0].LocalID, msg.History[1].LocalID)
	}
}

func TestFetchDataError(t *testing.T) {
	src := &fakeSource{err: errors.New("storage is locked")}
	msg := FetchData(src, 10)
	if msg.Err == nil {
		t.Fatal("expected error")
	}

	m := sized(NewModel(src, time.Second))
	next, _ := m.Update(msg)
	if !strings.Contains(next.View(), "storage is locked") {
		t.Errorf("error not rendered:\n%s", next.View())
	}
}

func TestSyncKeyTriggersPass(t *testing.T) {
	src := &fakeSource{}
	m := NewModel(src, time.Second)

	next, cmd := m.Update(keyPress("s"))
	if src.triggers != 1 {
		t.Errorf("expected 1 trigger, got %d", src.triggers)
	}
	if cmd == nil {
		t.Error("expected a refresh command")
	}
	if got := next.(Model).State.Status; got != tpsync.StatusSyncing {
		t.Errorf("status = %s, want syncing", got)
	}
}

func TestTabSwitchesPanel(t *testing.T) {
	m := NewModel(&fakeSource{}, time.Second)
	next, _ := m.Update(keyPress("tab"))
	if got := next.(Model).ActivePanel; got != PanelHistory {
		t.Errorf("panel = %d, want history", got)
	}
	next, _ = next.Update(keyPress("tab"))
	if got := next.(Model).ActivePanel; got != PanelQueue {
		t.Errorf("panel = %d, want queue", got)
	}
}

func TestScrollStopsAtTop(t *testing.T) {
	m := NewModel(&fakeSource{}, time.Second)
	next, _ := m.Update(keyPress("k"))
	if got := next.(Model).ScrollOffset[PanelQueue]; got != 0 {
		t.Errorf("offset = %d", got)
	}
	next, _ = next.Update(keyPress("j"))
	if got := next.(Model).ScrollOffset[PanelQueue]; got != 1 {
		t.Errorf("offset = %d", got)
	}
}

func TestQuit(t *testing.T) {
	m := NewModel(&fakeSource{}, time.Second)
	_, cmd := m.Update(keyPress("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestViewShowsQueueAndHistory(t *testing.T) {
	now := time.Now()
	src := &fakeSource{
		state: tpsync.State{Status: tpsync.StatusPartial, Pending: 2, LastError: "remote unreachable"},
		pending: []queue.Change{
			{Seq: 1, Kind: queue.KindCreate, Collection: models.CollectionPlans, LocalID: "0192d8a4-0000-7000-8000-00000000aaaa", EnqueuedAt: now, Attempts: 2, LastError: "timeout"},
			{Seq: 2, Kind: queue.KindCreate, Collection: models.CollectionExpenses, Parent: "0192d8a4-0000-7000-8000-00000000aaaa", LocalID: "0192d8a4-0000-7000-8000-00000000bbbb", EnqueuedAt: now},
		},
		history: []tpsync.HistoryEntry{
			{Direction: "pull", Action: "list", Collection: models.CollectionPlans, Outcome: tpsync.OutcomeOK, Timestamp: now},
		},
	}

	m := sized(NewModel(src, time.Second))
	next, _ := m.Update(FetchData(src, historyLimit))
	view := next.View()

	for _, want := range []string{"QUEUE (2)", "[NEW]", "aaaa", "2 failed: timeout", "waiting for plan", "HISTORY", "list", "remote unreachable", "2 pending"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestViewEmptyQueue(t *testing.T) {
	src := &fakeSource{state: tpsync.State{Status: tpsync.StatusSynced, Online: true}}
	m := sized(NewModel(src, time.Second))
	next, _ := m.Update(FetchData(src, historyLimit))
	view := next.View()
	if !strings.Contains(view, "Nothing waiting") || !strings.Contains(view, "No sync activity yet") {
		t.Errorf("unexpected view:\n%s", view)
	}
}

func TestCompactView(t *testing.T) {
	m := NewModel(&fakeSource{}, time.Second)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 30, Height: 8})
	if !strings.Contains(next.View(), "resize for full view") {
		t.Errorf("expected compact view, got:\n%s", next.View())
	}
}
