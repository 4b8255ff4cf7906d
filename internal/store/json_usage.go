package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/BTreeMap/ResumePipe/internal/models"
)

// JSONUsageLog keeps the usage log as a flat JSON array of usernames on disk.
// Every successful Append rewrites the file, so the log survives a crash.
type JSONUsageLog struct {
	mu    sync.Mutex
	path  string
	names []string
	index map[string]struct{}
}

var _ UsageLog = (*JSONUsageLog)(nil)

// NewJSONUsageLog creates a usage log backed by path. Call Load before use.
func NewJSONUsageLog(path string) *JSONUsageLog {
	return &JSONUsageLog{path: path, index: make(map[string]struct{})}
}

// Load reads the file. A missing file yields an empty log.
func (l *JSONUsageLog) Load() error {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("JSONUsageLog.Load: no usage file yet", "path", l.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read usage log %s: %w", l.path, err)
	}

	var names []string
	if len(data) > 0 {
		if err := json.Unmarshal(data, &names); err != nil {
			return fmt.Errorf("failed to decode usage log %s: %w", l.path, err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = l.names[:0]
	l.index = make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := l.index[n]; dup {
			continue
		}
		l.index[n] = struct{}{}
		l.names = append(l.names, n)
	}
	slog.Info("JSONUsageLog.Load: loaded", "path", l.path, "entries", len(l.names))
	return nil
}

// Save writes the log atomically.
func (l *JSONUsageLog) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveLocked()
}

func (l *JSONUsageLog) saveLocked() error {
	names := l.names
	if names == nil {
		names = []string{}
	}
	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode usage log: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), DefaultDirPermissions); err != nil {
		return fmt.Errorf("failed to create usage log directory: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write usage log: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("failed to replace usage log: %w", err)
	}
	return nil
}

func (l *JSONUsageLog) Append(ctx context.Context, username string) (bool, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return false, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.index[username]; dup {
		return false, nil
	}
	l.index[username] = struct{}{}
	l.names = append(l.names, username)
	if err := l.saveLocked(); err != nil {
		// Keep memory and disk in step: undo the append.
		delete(l.index, username)
		l.names = l.names[:len(l.names)-1]
		slog.Error("JSONUsageLog.Append: save failed", "error", err, "username", username)
		return false, err
	}
	slog.Debug("JSONUsageLog.Append: recorded", "username", username)
	return true, nil
}

func (l *JSONUsageLog) List(ctx context.Context) ([]models.UsageRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.UsageRecord, 0, len(l.names))
	for _, n := range l.names {
		out = append(out, models.UsageRecord{Username: n})
	}
	return out, nil
}
