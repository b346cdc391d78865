package media

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps media rows in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Media
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Media)}
}

func (s *MemoryStore) GetAll(_ context.Context) ([]Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Media, 0, len(s.items))
	for _, m := range s.items {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (s *MemoryStore) Create(_ context.Context, m *Media) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.items[m.ID] = *m
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Update(_ context.Context, m *Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[m.ID]; !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	m.UpdatedAt = &now
	s.items[m.ID] = *m
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}
