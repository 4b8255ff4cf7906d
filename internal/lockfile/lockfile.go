// Package lockfile provides directory-based locking so that only one ResumePipe
// process works out of a given state directory.
//
// The lock is an flock(2) held on a file inside the state directory; the kernel
// drops it when the process exits, so a crash never leaves the directory wedged.
package lockfile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is the name of the lock file created in the state directory
const LockFileName = "resumepipe.lock"

// Info is the process description written into the lock file.
type Info struct {
	PID       int
	Hostname  string
	StartedAt time.Time
}

func (i Info) encode() string {
	return fmt.Sprintf("pid=%d\nhost=%s\nstarted=%s\n", i.PID, i.Hostname, i.StartedAt.UTC().Format(time.RFC3339))
}

// parseInfo reads the key=value lines written by encode. Unknown keys are ignored.
func parseInfo(content string) Info {
	var info Info
	for _, line := range strings.Split(content, "\n") {
		key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			info.PID, _ = strconv.Atoi(val)
		case "host":
			info.Hostname = val
		case "started":
			info.StartedAt, _ = time.Parse(time.RFC3339, val)
		}
	}
	return info
}

// Lock represents an active directory lock
type Lock struct {
	file     *os.File
	path     string
	acquired bool
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// AcquireLock takes an exclusive, non-blocking lock on stateDir. When another
// process holds it, the returned error is a *LockError describing that process.
func AcquireLock(stateDir string) (*Lock, error) {
	lockPath := filepath.Join(stateDir, LockFileName)
	slog.Debug("lockfile.AcquireLock: attempting", "lock_path", lockPath)

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	// O_TRUNC is deliberately absent: truncating before the flock succeeds would
	// wipe the holder's process info.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		existing := describeExisting(lockPath)
		slog.Error("lockfile.AcquireLock: another ResumePipe instance holds the lock",
			"lock_path", lockPath, "existing", existing, "error", err)
		return nil, &LockError{LockPath: lockPath, ExistingInfo: existing, Cause: err}
	}

	host, _ := os.Hostname()
	info := Info{PID: os.Getpid(), Hostname: host, StartedAt: time.Now()}
	if err := writeInfo(file, info); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write lock information to %s: %w", lockPath, err)
	}

	slog.Info("lockfile.AcquireLock: acquired", "lock_path", lockPath, "pid", info.PID)
	return &Lock{file: file, path: lockPath, acquired: true}, nil
}

func writeInfo(file *os.File, info Info) error {
	if err := file.Truncate(0); err != nil {
		return err
	}
	if _, err := file.WriteAt([]byte(info.encode()), 0); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		slog.Warn("lockfile.writeInfo: sync failed", "error", err)
	}
	return nil
}

// Release unlocks and removes the lock file. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || !l.acquired || l.file == nil {
		return nil
	}

	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Error("lockfile.Release: unlock failed", "error", err, "lock_path", l.path)
	}
	if err := l.file.Close(); err != nil {
		slog.Error("lockfile.Release: close failed", "error", err, "lock_path", l.path)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Error("lockfile.Release: remove failed", "error", err, "lock_path", l.path)
	}

	l.acquired = false
	l.file = nil
	slog.Info("lockfile.Release: released", "lock_path", l.path)
	return nil
}

// LockError is returned when the state directory is locked by another process.
type LockError struct {
	LockPath     string
	ExistingInfo string
	Cause        error
}

func (e *LockError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "another ResumePipe instance is already running with this state directory (lock file %s)", e.LockPath)
	if e.ExistingInfo != "" {
		fmt.Fprintf(&b, "; holder: %s", e.ExistingInfo)
	}
	fmt.Fprintf(&b, "; if no such process exists, remove %s and retry", e.LockPath)
	return b.String()
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

// describeExisting summarises the current holder for error messages.
func describeExisting(lockPath string) string {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return "unable to read lock file information"
	}
	if len(data) == 0 {
		return "lock file exists but contains no process information"
	}

	info := parseInfo(string(data))
	if info.PID <= 0 {
		return fmt.Sprintf("process information: %s", strings.TrimSpace(string(data)))
	}

	state := "not running, stale lock"
	if isProcessRunning(info.PID) {
		state = "running"
	}
	desc := fmt.Sprintf("PID %d (%s)", info.PID, state)
	if info.Hostname != "" {
		desc += " on " + info.Hostname
	}
	if !info.StartedAt.IsZero() {
		desc += " since " + info.StartedAt.Format(time.RFC3339)
	}
	return desc
}

// isProcessRunning probes pid with signal 0.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
