package user

import (
	"context"
	"sync"

	"lifecert/pkg/platform/sentinel"
)

// InMemoryStore keeps profiles in a map. Used in development and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[string]*Profile)}
}

func (s *InMemoryStore) GetByID(_ context.Context, id string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return profile.Clone(), nil
}

func (s *InMemoryStore) Create(_ context.Context, profile *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[profile.ID]; exists {
		return sentinel.ErrConflict
	}
	s.profiles[profile.ID] = profile.Clone()
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, profile *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[profile.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.profiles[profile.ID] = profile.Clone()
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[id]; !exists {
		return sentinel.ErrNotFound
	}
	delete(s.profiles, id)
	return nil
}
