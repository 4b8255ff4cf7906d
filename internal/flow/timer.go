package flow

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/ResumePipe/internal/models"
)

// Timer schedules and cancels one-shot callbacks.
type Timer interface {
	ScheduleAfter(delay time.Duration, description string, fn func()) (string, error)
	Cancel(id string) error
	ListActive() []models.TimerInfo
	Stop()
}

// timerEntry tracks information about a scheduled timer
type timerEntry struct {
	timer       *time.Timer
	scheduledAt time.Time
	expiresAt   time.Time
	description string
}

// SimpleTimer implements Timer using Go's standard time package.
type SimpleTimer struct {
	timers  map[string]*timerEntry
	mu      sync.RWMutex
	nextID  int64
	stopped bool
}

var _ Timer = (*SimpleTimer)(nil)

// NewSimpleTimer creates a new SimpleTimer.
func NewSimpleTimer() *SimpleTimer {
	slog.Debug("Creating SimpleTimer")
	return &SimpleTimer{
		timers: make(map[string]*timerEntry),
	}
}

// ScheduleAfter schedules a function to run after a delay.
func (t *SimpleTimer) ScheduleAfter(delay time.Duration, description string, fn func()) (string, error) {
	if delay <= 0 {
		return "", fmt.Errorf("timer delay must be positive, got %v", delay)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return "", fmt.Errorf("timer is stopped")
	}
	t.nextID++
	id := fmt.Sprintf("timer_%d", t.nextID)

	now := time.Now()
	timer := time.AfterFunc(delay, func() {
		t.mu.Lock()
		_, live := t.timers[id]
		delete(t.timers, id)
		t.mu.Unlock()
		if !live {
			return
		}
		slog.Debug("SimpleTimer executing scheduled function", "id", id)
		fn()
	})
	t.timers[id] = &timerEntry{
		timer:       timer,
		scheduledAt: now,
		expiresAt:   now.Add(delay),
		description: description,
	}

	slog.Debug("SimpleTimer ScheduleAfter succeeded", "id", id, "delay", delay, "description", description)
	return id, nil
}

// Cancel cancels a scheduled function by ID. Unknown IDs are ignored.
func (t *SimpleTimer) Cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, exists := t.timers[id]; exists {
		entry.timer.Stop()
		delete(t.timers, id)
		slog.Debug("SimpleTimer Cancel succeeded", "id", id)
		return nil
	}

	slog.Debug("SimpleTimer Cancel: timer not found", "id", id)
	return nil
}

// Stop cancels all scheduled timers and refuses new ones.
func (t *SimpleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, entry := range t.timers {
		entry.timer.Stop()
	}
	slog.Info("SimpleTimer stopped all timers", "count", len(t.timers))
	t.timers = make(map[string]*timerEntry)
	t.stopped = true
}

// ListActive returns information about all active timers.
func (t *SimpleTimer) ListActive() []models.TimerInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]models.TimerInfo, 0, len(t.timers))
	now := time.Now()
	for id, entry := range t.timers {
		result = append(result, entry.info(id, now))
	}
	return result
}

// GetTimer returns information about a specific timer by ID.
func (t *SimpleTimer) GetTimer(id string) (*models.TimerInfo, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, exists := t.timers[id]
	if !exists {
		return nil, fmt.Errorf("timer with ID %s not found", id)
	}
	info := entry.info(id, time.Now())
	return &info, nil
}

func (e *timerEntry) info(id string, now time.Time) models.TimerInfo {
	remaining := e.expiresAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return models.TimerInfo{
		ID:          id,
		ScheduledAt: e.scheduledAt,
		ExpiresAt:   e.expiresAt,
		Remaining:   remaining.Round(time.Second).String(),
		Description: e.description,
	}
}
