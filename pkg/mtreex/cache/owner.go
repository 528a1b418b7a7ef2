package cache

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrBusy is returned when another running process holds the cache.
var ErrBusy = errors.New("cache in use by another process")

// ownerFile records the PID of the process that has the cache open.
const ownerFile = "owner.pid"

func writeOwner(dir string) error {
	return os.WriteFile(filepath.Join(dir, ownerFile), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readOwner(dir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(dir, ownerFile))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removeOwner(dir string) {
	_ = os.Remove(filepath.Join(dir, ownerFile))
}

// processRunning checks whether pid is alive by sending signal 0.
func processRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// recoverStaleLock clears the lock left by a process that exited without
// closing the cache. It returns ErrBusy when the recorded owner is still
// running and nil when there is nothing to recover.
func recoverStaleLock(dir string) error {
	pid, err := readOwner(dir)
	if err != nil {
		return nil //nolint:nilerr // no owner recorded, nothing to recover
	}
	if processRunning(pid) {
		return ErrBusy
	}

	logger.Warn("removing stale cache lock", "dir", dir, "stale_pid", pid)
	removeOwner(dir)
	_ = os.Remove(filepath.Join(dir, "LOCK"))
	return nil
}
