package profile

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is the in-memory Store used in dev mode (no database configured)
// and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]Profile
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[uuid.UUID]Profile)}
}

// Put inserts or replaces a profile row. Not part of Store; row creation
// happens at key redemption time, outside this service.
func (s *MemoryStore) Put(p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p
}

func (s *MemoryStore) Get(_ context.Context, userID uuid.UUID) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.profiles {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return Profile{}, ErrNotFound
}

func (s *MemoryStore) RecordLogin(_ context.Context, now time.Time, userID uuid.UUID, ref SessionRef) error {
	encoded, err := ref.Encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	t := now
	p.LastLoginAt = &t
	p.LastLoginSessionID = encoded
	p.UpdatedAt = now
	s.profiles[userID] = p
	return nil
}

func (s *MemoryStore) TouchHeartbeat(_ context.Context, now time.Time, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	t := now
	p.LastLoginAt = &t
	p.UpdatedAt = now
	s.profiles[userID] = p
	return nil
}

func (s *MemoryStore) SetAccountExpiry(_ context.Context, now time.Time, userID uuid.UUID, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	u := until
	p.AccountExpiresAt = &u
	p.UpdatedAt = now
	s.profiles[userID] = p
	return nil
}
