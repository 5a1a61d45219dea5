package resource

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/errors"
)

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	resources map[string]Resource
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		resources: make(map[string]Resource),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Put(_ context.Context, r Resource) (Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if existing, ok := s.resources[r.ID]; ok {
		r.CreatedAt = existing.CreatedAt
	} else {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	s.resources[r.ID] = r
	return r, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[id]
	if !ok {
		return Resource{}, apperrors.ErrResourceNotFound
	}
	return r, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[id]; !ok {
		return apperrors.ErrResourceNotFound
	}
	delete(s.resources, id)
	return nil
}

// List returns all resources ordered by ID.
func (s *MemoryStore) List(_ context.Context) ([]Resource, error) {
	s.mu.RLock()
	out := make([]Resource, 0, len(s.resources))
	for _, r := range s.resources {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
