package post

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps posts in process memory.
type MemoryStore struct {
	mu           sync.RWMutex
	items        map[string]Post
	nextPublicID int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Post)}
}

func (s *MemoryStore) GetAll(_ context.Context) ([]Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(), nil
}

func (s *MemoryStore) GetPage(_ context.Context, offset, limit int) ([]Post, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sorted()
	total := len(all)
	if offset >= total {
		return []Post{}, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePost(p), nil
}

func (s *MemoryStore) GetByPublicID(_ context.Context, publicID int64) (*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.items {
		if p.PublicID == publicID {
			return clonePost(p), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Create(_ context.Context, p *Post) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPublicID++
	p.PublicID = s.nextPublicID
	s.items[p.ID] = *clonePost(*p)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, p *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.items[p.ID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	p.UpdatedAt = &now
	p.PublicID = old.PublicID
	p.CreatedAt = old.CreatedAt
	s.items[p.ID] = *clonePost(*p)
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

// sorted returns copies of all posts, newest first. Callers hold mu.
func (s *MemoryStore) sorted() []Post {
	out := make([]Post, 0, len(s.items))
	for _, p := range s.items {
		out = append(out, *clonePost(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].PublicID > out[j].PublicID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func clonePost(p Post) *Post {
	if p.MediaID != nil {
		id := *p.MediaID
		p.MediaID = &id
	}
	if p.UpdatedAt != nil {
		t := *p.UpdatedAt
		p.UpdatedAt = &t
	}
	return &p
}
