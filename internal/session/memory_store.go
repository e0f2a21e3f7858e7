package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Sessions are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Load(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok || record.Expired(time.Now()) {
		return nil, ErrNotFound
	}
	return &record, nil
}

func (s *MemoryStore) Save(_ context.Context, record *Record) error {
	if record == nil || record.ID == "" {
		return ErrInvalidRecord
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = *record
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) Purge(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, record := range s.records {
		if record.Expired(now) {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored records, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
