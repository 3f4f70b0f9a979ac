package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gzn7264/ai-travel-planner/internal/engine"
	"github.com/gzn7264/ai-travel-planner/internal/kv"
	"github.com/gzn7264/ai-travel-planner/internal/output"
	"github.com/gzn7264/ai-travel-planner/internal/remote"
	"github.com/gzn7264/ai-travel-planner/internal/session"
	tpsync "github.com/gzn7264/ai-travel-planner/internal/sync"
	"github.com/gzn7264/ai-travel-planner/internal/syncconfig"
)

var errNotInitialized = errors.New("no .tp directory here; run 'tp init' first")

var (
	// activeEngine is opened on first use by a command and closed by
	// finishEngine once the command has run.
	activeEngine *engine.Engine

	// remoteOverride replaces the HTTP remote when set.
	remoteOverride remote.Remote
)

func syncOptions() tpsync.Options {
	return tpsync.Options{
		Interval:      syncconfig.GetAutoSyncInterval(),
		ProbeInterval: syncconfig.GetProbeInterval(),
		CallTimeout:   syncconfig.GetRequestTimeout(),
	}
}

// openEngine opens the local store of the base directory with the stored
// credentials as principal.
func openEngine() (*engine.Engine, error) {
	if activeEngine != nil {
		return activeEngine, nil
	}
	dir := getBaseDir()
	if !kv.Exists(dir) {
		output.Error("%v", errNotInitialized)
		return nil, errNotInitialized
	}
	sess, err := session.Restore()
	if err != nil {
		output.Error("load credentials: %v", err)
		return nil, err
	}
	e, err := engine.Open(engine.Options{
		Dir:     dir,
		Session: sess,
		Remote:  remoteOverride,
		Sync:    syncOptions(),
	})
	if err != nil {
		output.Error("%v", err)
		return nil, fmt.Errorf("open: %w", err)
	}
	activeEngine = e
	return e, nil
}

// finishEngine pushes what a mutating command queued, then closes the
// engine.
func finishEngine(cmd *cobra.Command) {
	if activeEngine == nil {
		return
	}
	if cmd != nil && isMutatingCommand(cmd.Name()) {
		autoSyncAfterMutation(activeEngine)
	}
	activeEngine.Close()
	activeEngine = nil
}
