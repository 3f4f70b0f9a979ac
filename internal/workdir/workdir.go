// Package workdir finds the directory holding a local store, so commands
// run from a subdirectory use the nearest enclosing .tp.
package workdir

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	storeDir = ".tp"
	// rootFile redirects to a store kept elsewhere, e.g. a synced folder.
	rootFile = ".tp-root"
)

// ResolveBaseDir walks from start towards the filesystem root and returns
// the first directory that holds a .tp store or a .tp-root redirect. When
// neither is found, start is returned unchanged.
func ResolveBaseDir(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return start
	}
	for {
		if target, ok := readRedirect(dir); ok {
			return target
		}
		if fi, err := os.Stat(filepath.Join(dir, storeDir)); err == nil && fi.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

func readRedirect(dir string) (string, bool) {
	content, err := os.ReadFile(filepath.Join(dir, rootFile))
	if err != nil {
		return "", false
	}
	target := strings.TrimSpace(string(content))
	if target == "" {
		return "", false
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	return target, true
}
