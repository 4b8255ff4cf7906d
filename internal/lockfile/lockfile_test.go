package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLockAcquisition(t *testing.T) {
	tempDir := t.TempDir()

	lock, err := AcquireLock(tempDir)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	defer lock.Release()

	lockPath := filepath.Join(tempDir, LockFileName)
	if lock.Path() != lockPath {
		t.Errorf("Path() = %q, want %q", lock.Path(), lockPath)
	}

	content, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("Failed to read lock file: %v", err)
	}

	info := parseInfo(string(content))
	if info.PID != os.Getpid() {
		t.Errorf("lock file PID = %d, want %d", info.PID, os.Getpid())
	}
	if info.StartedAt.IsZero() {
		t.Error("lock file should record a start time")
	}
}

func TestLockConflict(t *testing.T) {
	tempDir := t.TempDir()

	lock1, err := AcquireLock(tempDir)
	if err != nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	defer lock1.Release()

	lock2, err := AcquireLock(tempDir)
	if err == nil {
		lock2.Release()
		t.Fatalf("Second lock acquisition should have failed")
	}

	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("Expected LockError, got: %T", err)
	}

	msg := err.Error()
	if !strings.Contains(msg, "another ResumePipe instance") {
		t.Errorf("Error message should mention another instance: %s", msg)
	}
	if !strings.Contains(lockErr.ExistingInfo, "running") {
		t.Errorf("ExistingInfo should describe the holder, got %q", lockErr.ExistingInfo)
	}

	// The failed attempt must not have wiped the holder's info.
	content, err := os.ReadFile(filepath.Join(tempDir, LockFileName))
	if err != nil {
		t.Fatalf("Failed to read lock file: %v", err)
	}
	if parseInfo(string(content)).PID != os.Getpid() {
		t.Error("holder info was overwritten by a failed acquisition")
	}
}

func TestLockReleaseAndReacquire(t *testing.T) {
	tempDir := t.TempDir()

	lock, err := AcquireLock(tempDir)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("second Release should be a no-op, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, LockFileName)); !os.IsNotExist(err) {
		t.Error("lock file should be removed after release")
	}

	again, err := AcquireLock(tempDir)
	if err != nil {
		t.Fatalf("Reacquire failed: %v", err)
	}
	again.Release()
}

func TestParseInfo(t *testing.T) {
	started := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	in := Info{PID: 4242, Hostname: "box", StartedAt: started}

	got := parseInfo(in.encode())
	if got.PID != 4242 || got.Hostname != "box" || !got.StartedAt.Equal(started) {
		t.Errorf("parseInfo(encode()) = %+v, want %+v", got, in)
	}

	if parseInfo("garbage").PID != 0 {
		t.Error("garbage should parse to zero PID")
	}
}

func TestIsProcessRunning(t *testing.T) {
	if !isProcessRunning(os.Getpid()) {
		t.Error("current process should be reported as running")
	}
}

func TestNestedStateDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "a", "b", "state")

	lock, err := AcquireLock(nested)
	if err != nil {
		t.Fatalf("Failed to acquire lock in nested dir: %v", err)
	}
	defer lock.Release()

	if _, err := os.Stat(nested); err != nil {
		t.Errorf("state directory should be created: %v", err)
	}
}
