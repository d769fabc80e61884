package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pcharron/accountvet/internal/core"
)

// Memory is an in-memory RecordStore with the same atomicity contract as
// Postgres, guarded by a single mutex. It backs tests and local
// development without a database.
type Memory struct {
	mu      sync.RWMutex
	records map[int64]core.PersonRecord
	order   []int64
	audit   []core.AuditEntry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[int64]core.PersonRecord)}
}

// Ping always succeeds.
func (s *Memory) Ping(ctx context.Context) error {
	return nil
}

// List returns deep copies of all records in insertion order.
func (s *Memory) List(ctx context.Context) ([]core.PersonRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.PersonRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneRecord(s.records[id]))
	}
	return out, nil
}

// Get returns a deep copy of one record.
func (s *Memory) Get(ctx context.Context, id int64) (*core.PersonRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, core.NotFoundError{ID: id}
	}
	c := cloneRecord(rec)
	return &c, nil
}

// Update applies a read-modify-write under the store lock.
func (s *Memory) Update(ctx context.Context, id int64, apply func(*core.PersonRecord) error) (*core.PersonRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, core.NotFoundError{ID: id}
	}
	working := cloneRecord(rec)
	if err := apply(&working); err != nil {
		return nil, err
	}
	s.records[id] = working

	result := cloneRecord(working)
	return &result, nil
}

// ReplaceAll swaps the whole record set atomically.
func (s *Memory) ReplaceAll(ctx context.Context, records []core.PersonRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[int64]core.PersonRecord, len(records))
	s.order = s.order[:0]
	for _, rec := range records {
		if _, exists := s.records[rec.ID]; exists {
			return fmt.Errorf("duplicate record id %d", rec.ID)
		}
		s.records[rec.ID] = cloneRecord(rec)
		s.order = append(s.order, rec.ID)
	}
	return nil
}

// Stats aggregates verification counts.
func (s *Memory) Stats(ctx context.Context) (core.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st core.Stats
	for _, rec := range s.records {
		st.Total++
		if rec.VerifiedByHuman {
			st.Verified++
		} else {
			st.Unverified++
		}
		if rec.VerifiedByHuman && rec.HumanVerifiedUsername != nil {
			st.WithAccount++
		}
		if rec.NoAccountConfirmed {
			st.NoAccount++
		}
	}
	return st, nil
}

// AppendAudit records one audit entry.
func (s *Memory) AppendAudit(ctx context.Context, entry core.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

// RecentAudit returns up to limit entries, newest first.
func (s *Memory) RecentAudit(ctx context.Context, limit int) ([]core.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.audit)
	if limit > n {
		limit = n
	}
	out := make([]core.AuditEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.audit[i])
	}
	return out, nil
}

// cloneRecord deep-copies via JSON so callers can never alias stored state.
func cloneRecord(rec core.PersonRecord) core.PersonRecord {
	data, err := json.Marshal(rec)
	if err != nil {
		panic(fmt.Sprintf("clone record %d: %v", rec.ID, err))
	}
	var out core.PersonRecord
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("clone record %d: %v", rec.ID, err))
	}
	return out
}
