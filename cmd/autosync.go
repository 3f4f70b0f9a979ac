package cmd

import (
	"log/slog"

	"github.com/gzn7264/ai-travel-planner/internal/engine"
	"github.com/gzn7264/ai-travel-planner/internal/syncconfig"
)

// mutatingCommands lists commands that modify local data and should push
// before the process exits.
var mutatingCommands = map[string]bool{
	"create": true,
	"add":    true,
	"update": true,
	"delete": true,
	"set":    true,
}

// isMutatingCommand checks if the given command name triggers auto-sync.
func isMutatingCommand(name string) bool {
	return mutatingCommands[name]
}

// AutoSyncEnabled reports whether changes are pushed right after a command
// and in the background while watching. Checks TP_SYNC_AUTO, then config.
func AutoSyncEnabled() bool {
	return syncconfig.GetAutoSyncEnabled()
}

// autoSyncAfterMutation waits, bounded by the push timeout, for the push
// the mutation requested. Changes still unsent at the deadline stay queued
// for the next sync.
func autoSyncAfterMutation(e *engine.Engine) {
	if !AutoSyncEnabled() {
		return
	}
	if _, ok := e.Session().CurrentPrincipal(); !ok {
		return
	}
	e.Flush(syncconfig.GetPushTimeout())
	if e.HasPendingChanges() {
		slog.Debug("autosync: changes left queued", "status", e.SyncStatus().Status)
	}
}
