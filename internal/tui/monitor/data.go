package monitor

import (
	"time"

	"github.com/gzn7264/ai-travel-planner/internal/queue"
	tpsync "github.com/gzn7264/ai-travel-planner/internal/sync"
)

const historyLimit = 200

// Source is what the monitor reads from. *engine.Engine satisfies it.
type Source interface {
	SyncStatus() tpsync.State
	Pending() ([]queue.Change, error)
	History(limit int) ([]tpsync.HistoryEntry, error)
	TriggerSync()
}

// FetchData retrieves everything the monitor displays. History comes back
// most recent first.
func FetchData(src Source, limit int) RefreshDataMsg {
	msg := RefreshDataMsg{
		State:     src.SyncStatus(),
		Timestamp: time.Now(),
	}

	pending, err := src.Pending()
	if err != nil {
		msg.Err = err
		return msg
	}
	msg.Pending = pending

	history, err := src.History(limit)
	if err != nil {
		msg.Err = err
		return msg
	}
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	msg.History = history
	return msg
}
