package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BTreeMap/ResumePipe/internal/models"
)

// InMemoryStore keeps everything in process memory. Used when no DSN is
// configured and in tests.
type InMemoryStore struct {
	mu    sync.Mutex
	codes map[string]*codeEntry
	usage []models.UsageRecord
	seen  map[string]DedupRecord
}

type codeEntry struct {
	createdAt time.Time
	usedBy    string
	usedAt    *time.Time
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		codes: make(map[string]*codeEntry),
		seen:  make(map[string]DedupRecord),
	}
}

func (s *InMemoryStore) Consume(ctx context.Context, code, userID string) (bool, error) {
	code = NormalizeCode(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.codes[code]
	if !ok || entry.usedAt != nil {
		return false, nil
	}
	now := time.Now()
	entry.usedAt = &now
	entry.usedBy = userID
	return true, nil
}

func (s *InMemoryStore) AddCodes(ctx context.Context, codes ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, c := range codes {
		c = NormalizeCode(c)
		if c == "" {
			return added, ErrEmptyCode
		}
		if _, exists := s.codes[c]; exists {
			continue
		}
		s.codes[c] = &codeEntry{createdAt: time.Now()}
		added++
	}
	return added, nil
}

func (s *InMemoryStore) ListCodes(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for c, e := range s.codes {
		if e.usedAt == nil {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *InMemoryStore) Append(ctx context.Context, username string) (bool, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.usage {
		if r.Username == username {
			return false, nil
		}
	}
	s.usage = append(s.usage, models.UsageRecord{Username: username, CreatedAt: time.Now()})
	return true, nil
}

func (s *InMemoryStore) List(ctx context.Context) ([]models.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.UsageRecord(nil), s.usage...), nil
}

func (s *InMemoryStore) IsDuplicate(messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[messageID]
	return ok, nil
}

func (s *InMemoryStore) RecordInbound(messageID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[messageID]; ok {
		return false, nil
	}
	s.seen[messageID] = DedupRecord{MessageID: messageID, UserID: userID, ReceivedAt: time.Now()}
	return true, nil
}

func (s *InMemoryStore) MarkProcessed(messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.seen[messageID]; ok {
		now := time.Now()
		rec.ProcessedAt = &now
		s.seen[messageID] = rec
	}
	return nil
}

func (s *InMemoryStore) PruneInbound(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.seen {
		if rec.ReceivedAt.Before(cutoff) {
			delete(s.seen, id)
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
