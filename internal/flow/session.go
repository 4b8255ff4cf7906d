package flow

import (
	"time"

	"github.com/BTreeMap/ResumePipe/internal/models"
	"github.com/BTreeMap/ResumePipe/internal/util"
)

// listField names a list the user can re-enter in review mode.
type listField int

const (
	listSkills listField = iota
	listExperience
	listEducation
)

// Session is one user's conversation. It is only touched while the engine
// holds that user's lock.
type Session struct {
	ID       string
	Key      string
	Channel  models.Channel
	UserID   string
	Username string
	Language string

	State    State
	Verified bool

	Resume models.Resume

	// Summary approval in progress.
	OriginalSummary string
	EnhancedSummary string
	// Tailored summary awaiting approval.
	TailoredSummary string

	TemplateID     string
	LastTemplateID string

	Verifications Quota
	Generations   Quota
	LanguageWarns int
	Regenerations int
	// Regenerating skips review and tailoring after the next template pick.
	Regenerating bool

	ReviewMode bool
	cleared    [3]bool
	added      [3]int

	// pendingButtons are the options of the last message with buttons; typed
	// replies are matched against them.
	pendingButtons []pendingButton

	CreatedAt  time.Time
	LastActive time.Time
	timerID    string
	closed     bool
}

type pendingButton struct {
	data   string
	key    string
	labels []string
}

func newSession(key string, channel models.Channel, userID, username string, maxVerifications, maxGenerations int) *Session {
	now := time.Now()
	return &Session{
		ID:            util.GenerateSessionID(),
		Key:           key,
		Channel:       channel,
		UserID:        userID,
		Username:      username,
		Language:      "en",
		State:         StateChoosingLanguage,
		Verifications: NewQuota(maxVerifications),
		Generations:   NewQuota(maxGenerations),
		CreatedAt:     now,
		LastActive:    now,
	}
}

// SessionKey identifies a user across transports.
func SessionKey(channel models.Channel, userID string) string {
	return string(channel) + "/" + userID
}

// beginListReview marks a list step entered from the review menu.
func (s *Session) beginListReview(f listField) {
	s.cleared[f] = false
	s.added[f] = 0
}

// clearOnFirstEntry empties the list the first time a new entry arrives in
// review mode and reports whether it did so.
func (s *Session) clearOnFirstEntry(f listField) bool {
	if !s.ReviewMode || s.cleared[f] {
		return false
	}
	s.cleared[f] = true
	switch f {
	case listSkills:
		s.Resume.Skills = nil
	case listExperience:
		s.Resume.Experience = nil
	case listEducation:
		s.Resume.Education = nil
	}
	return true
}

// finishList resets the review bookkeeping and returns how many entries were
// added during this pass.
func (s *Session) finishList(f listField) int {
	n := s.added[f]
	s.cleared[f] = false
	s.added[f] = 0
	return n
}

// displayName is what the usage log records for this user.
func (s *Session) displayName() string {
	if s.Username != "" {
		return s.Username
	}
	return s.UserID
}
