package kv

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	lockFileName   = "write.lock"
	defaultTimeout = 500 * time.Millisecond
	initialBackoff = 5 * time.Millisecond
	maxBackoff     = 50 * time.Millisecond
)

// writeLocker guards writes to the local database with an OS file lock so
// that a CLI invocation and a long-running sync watcher never interleave
// transactions. The OS drops the lock if the holder dies.
type writeLocker struct {
	lockPath string
	lockFile *os.File
}

func newWriteLocker(baseDir string) *writeLocker {
	return &writeLocker{lockPath: filepath.Join(baseDir, dataDir, lockFileName)}
}

// acquire polls for the lock with capped exponential backoff until timeout.
func (l *writeLocker) acquire(timeout time.Duration) error {
	f, err := os.OpenFile(l.lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	l.lockFile = f

	deadline := time.Now().Add(timeout)
	for backoff := initialBackoff; ; backoff = min(backoff*2, maxBackoff) {
		if l.tryLock() == nil {
			l.stamp()
			return nil
		}
		if time.Now().After(deadline) {
			holder := l.holder()
			l.lockFile.Close()
			l.lockFile = nil
			return fmt.Errorf("local store busy: write lock timeout after %v (held by %s)", timeout, holder)
		}
		time.Sleep(backoff)
	}
}

func (l *writeLocker) release() error {
	if l.lockFile == nil {
		return nil
	}
	l.lockFile.Truncate(0)
	l.unlock()
	err := l.lockFile.Close()
	l.lockFile = nil
	return err
}

// stamp records the holder pid so a timed-out waiter can report it.
func (l *writeLocker) stamp() {
	l.lockFile.Truncate(0)
	l.lockFile.Seek(0, 0)
	fmt.Fprintf(l.lockFile, "%d %s", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
}

func (l *writeLocker) holder() string {
	data, err := os.ReadFile(l.lockPath)
	if err != nil {
		return "unknown"
	}
	fields := strings.Fields(string(data))
	if len(fields) != 2 {
		return "unknown"
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return "unknown"
	}
	if !isProcessAlive(pid) {
		return fmt.Sprintf("pid %d since %s, process gone", pid, fields[1])
	}
	return fmt.Sprintf("pid %d since %s", pid, fields[1])
}
