package flow

// Default limits.
const (
	DefaultMaxGenerations   = 5
	DefaultMaxVerifications = 3
	DefaultMaxLanguageWarns = 3
)

// Quota is a counter that starts at a limit and only counts down.
type Quota struct {
	limit     int
	remaining int
}

// NewQuota returns a full quota. Non-positive limits yield an empty quota.
func NewQuota(limit int) Quota {
	if limit < 0 {
		limit = 0
	}
	return Quota{limit: limit, remaining: limit}
}

// Remaining returns how many uses are left.
func (q Quota) Remaining() int { return q.remaining }

// Used returns how many uses have been consumed.
func (q Quota) Used() int { return q.limit - q.remaining }

// Limit returns the starting value.
func (q Quota) Limit() int { return q.limit }

// Available reports whether at least one use is left.
func (q Quota) Available() bool { return q.remaining > 0 }

// Exhausted reports whether the quota has reached zero.
func (q Quota) Exhausted() bool { return q.remaining <= 0 }

// Use consumes one unit. It returns false, leaving the quota at zero, when
// nothing is left.
func (q *Quota) Use() bool {
	if q.remaining <= 0 {
		return false
	}
	q.remaining--
	return true
}
