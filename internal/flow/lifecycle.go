package flow

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/ResumePipe/internal/metrics"
	"github.com/BTreeMap/ResumePipe/internal/models"
)

// DefaultIdleTimeout clears a session that has been silent this long.
const DefaultIdleTimeout = 6 * time.Hour

// ClearReason records why a session ended.
type ClearReason string

const (
	ReasonCompleted  ClearReason = "completed"
	ReasonCancelled  ClearReason = "cancelled"
	ReasonRestarted  ClearReason = "restarted"
	ReasonTimeout    ClearReason = "timeout"
	ReasonTerminated ClearReason = "terminated"
	ReasonFailed     ClearReason = "failed"
)

// PhotoRemover deletes a stored profile photo.
type PhotoRemover interface {
	Remove(path string) error
}

// Lifecycle owns the live sessions and their idle timers.
type Lifecycle struct {
	mu       sync.Mutex
	sessions map[string]*Session

	timer   Timer
	photos  PhotoRemover
	metrics metrics.Recorder

	idleTimeout      time.Duration
	maxVerifications int
	maxGenerations   int

	// onExpire runs from the timer goroutine when a session times out.
	onExpire func(key, sessionID string)
}

func newLifecycle(timer Timer, photos PhotoRemover, rec metrics.Recorder, idle time.Duration, maxVerifications, maxGenerations int) *Lifecycle {
	return &Lifecycle{
		sessions:         make(map[string]*Session),
		timer:            timer,
		photos:           photos,
		metrics:          rec,
		idleTimeout:      idle,
		maxVerifications: maxVerifications,
		maxGenerations:   maxGenerations,
	}
}

// Start creates a fresh session for the user, clearing any previous one. The
// new session is unverified and can only reach the language and code steps.
func (l *Lifecycle) Start(channel models.Channel, userID, username string) *Session {
	key := SessionKey(channel, userID)
	if old, ok := l.Get(key); ok {
		l.Clear(old, ReasonRestarted)
	}

	s := newSession(key, channel, userID, username, l.maxVerifications, l.maxGenerations)
	l.mu.Lock()
	l.sessions[key] = s
	n := len(l.sessions)
	l.mu.Unlock()

	l.metrics.ObserveSession(metrics.SessionStarted)
	l.metrics.SetActiveSessions(n)
	l.ScheduleTimeout(s, l.idleTimeout)
	slog.Info("Lifecycle.Start: session created", "user_id", userID, "channel", channel, "session_id", s.ID)
	return s
}

// Get returns the live session for key.
func (l *Lifecycle) Get(key string) (*Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sessions[key]
	return s, ok
}

// Touch records activity and re-arms the idle timeout.
func (l *Lifecycle) Touch(s *Session) {
	s.LastActive = time.Now()
	l.ScheduleTimeout(s, l.idleTimeout)
}

// ScheduleTimeout (re)arms the idle timer for s.
func (l *Lifecycle) ScheduleTimeout(s *Session, d time.Duration) {
	l.CancelTimeout(s)
	if d <= 0 || l.timer == nil {
		return
	}
	key, id := s.Key, s.ID
	timerID, err := l.timer.ScheduleAfter(d, "idle timeout for "+key, func() {
		if l.onExpire != nil {
			l.onExpire(key, id)
		}
	})
	if err != nil {
		slog.Warn("Lifecycle.ScheduleTimeout: failed to arm timer", "session_id", id, "error", err)
		return
	}
	s.timerID = timerID
}

// CancelTimeout disarms the idle timer for s, if any.
func (l *Lifecycle) CancelTimeout(s *Session) {
	if s.timerID == "" || l.timer == nil {
		return
	}
	if err := l.timer.Cancel(s.timerID); err != nil {
		slog.Warn("Lifecycle.CancelTimeout: cancel failed", "timer_id", s.timerID, "error", err)
	}
	s.timerID = ""
}

// Clear ends s: it cancels the timer, forgets the session and deletes the
// profile photo. Only the first call for a session has any effect; the
// return value reports whether this call did the work.
func (l *Lifecycle) Clear(s *Session, reason ClearReason) bool {
	if s == nil {
		return false
	}
	l.mu.Lock()
	if s.closed {
		l.mu.Unlock()
		return false
	}
	s.closed = true
	if cur, ok := l.sessions[s.Key]; ok && cur == s {
		delete(l.sessions, s.Key)
	}
	n := len(l.sessions)
	l.mu.Unlock()

	l.CancelTimeout(s)
	if s.Resume.PhotoPath != "" && l.photos != nil {
		if err := l.photos.Remove(s.Resume.PhotoPath); err != nil {
			slog.Error("Lifecycle.Clear: failed to remove photo", "path", s.Resume.PhotoPath, "error", err)
		}
	}

	switch reason {
	case ReasonCompleted:
		l.metrics.ObserveSession(metrics.SessionCompleted)
	case ReasonCancelled, ReasonRestarted:
		l.metrics.ObserveSession(metrics.SessionCancelled)
	case ReasonTimeout:
		l.metrics.ObserveSession(metrics.SessionTimedOut)
	default:
		l.metrics.ObserveSession(metrics.SessionTerminated)
	}
	l.metrics.SetActiveSessions(n)
	slog.Info("Lifecycle.Clear: session cleared", "user_id", s.UserID, "session_id", s.ID, "reason", reason, "state", s.State)
	return true
}

// Active returns the number of live sessions.
func (l *Lifecycle) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

// Timers lists armed idle timers.
func (l *Lifecycle) Timers() []models.TimerInfo {
	if l.timer == nil {
		return nil
	}
	return l.timer.ListActive()
}

// Stop disarms every timer. Sessions are left in memory.
func (l *Lifecycle) Stop() {
	if l.timer != nil {
		l.timer.Stop()
	}
}
