// Package lock serializes auditor runs that share a cache directory.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// FileName is the lock file created inside the cache directory
const FileName = "run.lock"

// ErrLocked is returned when another live process holds the lock
var ErrLocked = errors.New("cache directory is locked by another run")

// Owner describes the process holding the lock
type Owner struct {
	PID       int       `json:"pid"`
	Command   string    `json:"command"`
	StartedAt time.Time `json:"started_at"`
}

// Lock is a held cache-directory lock
type Lock struct {
	path string
}

// Acquire takes the lock in dir, creating dir when needed. A lock left behind by a
// process that no longer exists is reclaimed.
func Acquire(dir, command string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	path := filepath.Join(dir, FileName)
	owner := Owner{PID: os.Getpid(), Command: command, StartedAt: time.Now()}

	err := create(path, &owner)
	if err == nil {
		return &Lock{path: path}, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("failed to create lock %s: %w", path, err)
	}

	existing, readErr := Read(dir)
	if readErr != nil {
		return nil, fmt.Errorf("%w (unreadable lock file: %v)", ErrLocked, readErr)
	}
	if alive(existing.PID) {
		return nil, fmt.Errorf("%w: PID %d running %q since %s", ErrLocked,
			existing.PID, existing.Command, existing.StartedAt.Format(time.RFC3339))
	}

	slog.Warn("Reclaiming stale lock", "path", path, "stale_pid", existing.PID)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale lock: %w", err)
	}
	if err := create(path, &owner); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("failed to acquire lock after stale removal: %w", err)
	}
	return &Lock{path: path}, nil
}

// Release removes the lock file. Safe to call more than once.
func (l *Lock) Release() {
	if l == nil {
		return
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to release lock", "path", l.path, "error", err)
	}
}

// Read returns the current owner of the lock in dir
func Read(dir string) (*Owner, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}

	var owner Owner
	if err := json.Unmarshal(data, &owner); err != nil {
		return nil, fmt.Errorf("failed to parse lock: %w", err)
	}
	return &owner, nil
}

// create writes the lock file with O_EXCL so only one process wins
func create(path string, owner *Owner) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	encErr := json.NewEncoder(f).Encode(owner)
	closeErr := f.Close()
	if encErr != nil {
		return encErr
	}
	return closeErr
}

func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// signal 0 probes for existence
	return proc.Signal(syscall.Signal(0)) == nil
}
