package storage

import (
	"sort"
	"sync"

	"github.com/lehigh-university-libraries/ellie/internal/models"
)

type LookupStore struct {
	lookups map[string]*models.Lookup
	mu      sync.RWMutex
}

func New() *LookupStore {
	return &LookupStore{
		lookups: make(map[string]*models.Lookup),
	}
}

func (s *LookupStore) Get(id string) (*models.Lookup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lookup, exists := s.lookups[id]
	return lookup, exists
}

func (s *LookupStore) Set(id string, lookup *models.Lookup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups[id] = lookup
}

// List returns every lookup, oldest first.
func (s *LookupStore) List() []*models.Lookup {
	s.mu.RLock()
	result := make([]*models.Lookup, 0, len(s.lookups))
	for _, v := range s.lookups {
		result = append(result, v)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (s *LookupStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lookups)
}

func (s *LookupStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lookups, id)
}
