package adminpanel

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is the in-memory Store used in tests and when no database is
// configured.
type MemoryStore struct {
	mu            sync.RWMutex
	keys          []AccessKey
	announcements []Announcement
	feedback      []Feedback
	limits        map[string]AILimit
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{limits: make(map[string]AILimit)}
}

func (s *MemoryStore) ListKeys(_ context.Context) ([]AccessKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AccessKey, len(s.keys))
	copy(out, s.keys)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CreateKey(_ context.Context, k AccessKey) error {
	s.mu.Lock()
	s.keys = append(s.keys, k)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListAnnouncements(_ context.Context) ([]Announcement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Announcement, len(s.announcements))
	copy(out, s.announcements)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CurrentAnnouncement(_ context.Context) (Announcement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var cur *Announcement
	for i := range s.announcements {
		a := &s.announcements[i]
		if !a.Active {
			continue
		}
		if cur == nil || a.CreatedAt.After(cur.CreatedAt) {
			cur = a
		}
	}
	if cur == nil {
		return Announcement{}, ErrNotFound
	}
	return *cur, nil
}

func (s *MemoryStore) CreateAnnouncement(_ context.Context, a Announcement) error {
	s.mu.Lock()
	s.announcements = append(s.announcements, a)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SubmitFeedback(_ context.Context, f Feedback) error {
	s.mu.Lock()
	s.feedback = append(s.feedback, f)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListFeedback(_ context.Context) ([]Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Feedback, len(s.feedback))
	copy(out, s.feedback)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListAILimits(_ context.Context) ([]AILimit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AILimit, 0, len(s.limits))
	for _, l := range s.limits {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *MemoryStore) SetAILimit(_ context.Context, l AILimit) error {
	s.mu.Lock()
	s.limits[l.UserID.String()] = l
	s.mu.Unlock()
	return nil
}
