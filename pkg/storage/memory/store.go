// Package memory provides an in-process event store for tests and local
// development. Events are held in a slice guarded by a mutex; the dedup
// key and ordering semantics match the database-backed store.
package memory

import (
	"context"
	"sort"
	"sync"

	"gitfeed/pkg/feed"
)

// Store keeps events in memory.
type Store struct {
	mu      sync.Mutex
	records []feed.Record
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{}
}

// FindByKey fetches an event by its (request_id, action) dedup key.
func (s *Store) FindByKey(_ context.Context, requestID string, action feed.Action) (*feed.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.RequestID == requestID && record.Action == action {
			found := record
			return &found, nil
		}
	}
	return nil, nil
}

// Insert appends an event unless its dedup key is already present.
func (s *Store) Insert(_ context.Context, record feed.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if existing.RequestID == record.RequestID && existing.Action == record.Action {
			return false, nil
		}
	}
	s.records = append(s.records, record)
	return true, nil
}

// RecentEvents returns up to limit events ordered by their source timestamp,
// newest first.
func (s *Store) RecentEvents(_ context.Context, limit int) ([]feed.Record, error) {
	if limit <= 0 {
		limit = 10
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]feed.Record, len(s.records))
	copy(records, s.records)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
