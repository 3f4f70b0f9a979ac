package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gzn7264/ai-travel-planner/internal/engine"
	"github.com/gzn7264/ai-travel-planner/internal/models"
	"github.com/gzn7264/ai-travel-planner/internal/remote"
	"github.com/gzn7264/ai-travel-planner/internal/repo"
)

// testEnv isolates config, credentials and the local store of one test.
func testEnv(t *testing.T, fake *remote.Fake) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TP_DIR", dir)
	t.Setenv("TP_AUTH_KEY", "")
	t.Setenv("TP_SYNC_URL", "")
	t.Setenv("TP_SYNC_AUTO", "")
	t.Setenv("TP_SYNC_PUSH_TIMEOUT", "5s")

	remoteOverride = fake
	t.Cleanup(func() {
		finishEngine(nil)
		remoteOverride = nil
	})
	return dir
}

// resetFlags returns every flag of fs to its default so commands can run
// more than once in one process.
func resetFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
}

func resetAll(c *cobra.Command) {
	resetFlags(c.Flags())
	resetFlags(c.PersistentFlags())
	for _, sub := range c.Commands() {
		resetAll(sub)
	}
}

// runTP runs one tp invocation the way Execute does.
func runTP(t *testing.T, args ...string) error {
	t.Helper()
	resetAll(rootCmd)
	rootCmd.SetArgs(args)
	c, err := rootCmd.ExecuteC()
	finishEngine(c)
	return err
}

// inspect opens the local store of dir for assertions.
func inspect(t *testing.T, dir string) *engine.Engine {
	t.Helper()
	e, err := engine.Open(engine.Options{Dir: dir, Remote: remote.NewFake()})
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func listPlans(t *testing.T, dir string) []repo.Entity[models.Plan] {
	t.Helper()
	e := inspect(t, dir)
	plans, err := e.Plans().List()
	if err != nil {
		t.Fatalf("list plans: %v", err)
	}
	e.Close()
	return plans
}
