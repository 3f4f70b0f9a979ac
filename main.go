package main

import (
	"runtime/debug"

	"github.com/gzn7264/ai-travel-planner/cmd"
)

// Version is set at build time with -ldflags "-X main.Version=v1.2.3".
var Version = "dev"

// effectiveVersion falls back to the module version recorded by
// `go install module@version`, then to the VCS revision.
func effectiveVersion(v string) string {
	if v != "" && v != "dev" {
		return v
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v
	}
	if mv := info.Main.Version; mv != "" && mv != "(devel)" {
		return mv
	}

	var rev string
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return v
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if dirty {
		return "devel+" + rev + "+dirty"
	}
	return "devel+" + rev
}

func main() {
	cmd.SetVersion(effectiveVersion(Version))
	cmd.Execute()
}
