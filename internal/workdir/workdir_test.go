package workdir

import (
	"os"
	"path/filepath"
	"testing"
)

func mkdir(t *testing.T, parts ...string) string {
	t.Helper()
	p := filepath.Join(parts...)
	if err := os.MkdirAll(p, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", p, err)
	}
	return p
}

func TestResolveBaseDirFindsEnclosingStore(t *testing.T) {
	root := t.TempDir()
	mkdir(t, root, storeDir)
	sub := mkdir(t, root, "photos", "day1")

	if got := ResolveBaseDir(sub); got != root {
		t.Errorf("ResolveBaseDir = %q, want %q", got, root)
	}
	if got := ResolveBaseDir(root); got != root {
		t.Errorf("ResolveBaseDir(root) = %q, want %q", got, root)
	}
}

func TestResolveBaseDirWithoutStore(t *testing.T) {
	sub := mkdir(t, t.TempDir(), "a", "b")
	if got := ResolveBaseDir(sub); got != sub {
		t.Errorf("ResolveBaseDir = %q, want unchanged %q", got, sub)
	}
}

func TestResolveBaseDirFollowsRedirect(t *testing.T) {
	root := t.TempDir()
	shared := mkdir(t, t.TempDir(), "shared")
	if err := os.WriteFile(filepath.Join(root, rootFile), []byte(shared+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	sub := mkdir(t, root, "notes")

	if got := ResolveBaseDir(sub); got != shared {
		t.Errorf("ResolveBaseDir = %q, want %q", got, shared)
	}
}

func TestResolveBaseDirRelativeRedirect(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, rootFile), []byte("../elsewhere"), 0644); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, "../elsewhere")
	if got := ResolveBaseDir(root); got != want {
		t.Errorf("ResolveBaseDir = %q, want %q", got, want)
	}
}

func TestResolveBaseDirIgnoresEmptyRedirect(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, rootFile), []byte("  \n"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := ResolveBaseDir(root); got != root {
		t.Errorf("ResolveBaseDir = %q, want %q", got, root)
	}
}
