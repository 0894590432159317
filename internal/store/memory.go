package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AngelCh415/campaign-dash/internal/models"
)

var ErrNotFound = errors.New("batch not found")

// MemoryStore holds the batches of the current session. Stored datasets
// are never modified; readers filter copies.
type MemoryStore struct {
	mu      sync.RWMutex
	batches map[string]models.Batch
	seq     map[string]uint64 // insertion order, breaks CreatedAt ties
	next    uint64
	max     int
	now     func() time.Time
}

func NewMemoryStore(max int) *MemoryStore {
	return &MemoryStore{
		batches: make(map[string]models.Batch),
		seq:     make(map[string]uint64),
		max:     max,
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(ds models.Dataset, diags []models.Diagnostic) models.Batch {
	b := models.Batch{
		ID:          uuid.NewString(),
		CreatedAt:   s.now().UTC(),
		Dataset:     ds,
		Diagnostics: diags,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[b.ID] = b
	s.next++
	s.seq[b.ID] = s.next
	if s.max > 0 {
		for len(s.batches) > s.max {
			s.evictOldest(b.ID)
		}
	}
	return b
}

// evictOldest drops the earliest inserted batch other than keep.
func (s *MemoryStore) evictOldest(keep string) {
	var (
		oldest string
		at     uint64
	)
	for id, n := range s.seq {
		if id == keep {
			continue
		}
		if oldest == "" || n < at {
			oldest, at = id, n
		}
	}
	delete(s.batches, oldest)
	delete(s.seq, oldest)
}

func (s *MemoryStore) Get(id string) (models.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[id]
	if !ok {
		return models.Batch{}, ErrNotFound
	}
	return b, nil
}

func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[id]; !ok {
		return ErrNotFound
	}
	delete(s.batches, id)
	delete(s.seq, id)
	return nil
}

// List returns summaries, newest first.
func (s *MemoryStore) List() []models.BatchSummary {
	s.mu.RLock()
	out := make([]models.BatchSummary, 0, len(s.batches))
	for _, b := range s.batches {
		out = append(out, models.BatchSummary{
			ID:          b.ID,
			CreatedAt:   b.CreatedAt,
			Rows:        len(b.Dataset.Rows),
			Diagnostics: b.Diagnostics,
		})
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
