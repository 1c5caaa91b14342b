package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"punchd/internal/model"
)

// Store abstracts the attendance record backend.
//
// Insert is the atomic insert-if-absent at the dedup boundary: a caller that
// loses the race on an identical dedup key gets ErrDuplicateKey and must
// treat the event as already processed. Transition applies a mutation only
// if the record is still mutable at commit time, so two concurrent reviewers
// cannot both resolve the same record.
type Store interface {
	Insert(rec model.AttendanceRecord) error
	Get(tenantID, id string) (model.AttendanceRecord, bool, error)
	FindByDedupKey(tenantID, key string) (model.AttendanceRecord, bool, error)
	// LastPunch returns the employee's most recent non-rejected record
	// strictly before the given instant on the same UTC calendar day.
	LastPunch(tenantID, employeeID string, before time.Time) (model.AttendanceRecord, bool, error)
	Transition(tenantID, id string, mutate func(*model.AttendanceRecord) error) (model.AttendanceRecord, error)
	Range(fn func(rec model.AttendanceRecord) error) error
	LoadAll(recs []model.AttendanceRecord) error
}

// MemoryStore is a thread-safe in-memory Store.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]model.AttendanceRecord // tenant/id
	dedup map[string]string                 // tenant/dedupKey -> id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[string]model.AttendanceRecord),
		dedup: make(map[string]string),
	}
}

func recKey(tenantID, id string) string    { return tenantID + "/" + id }
func dedupKey(tenantID, key string) string { return tenantID + "/" + key }

func (s *MemoryStore) Insert(rec model.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dk := dedupKey(rec.TenantID, rec.DedupKey)
	if _, exists := s.dedup[dk]; exists {
		return model.ErrDuplicateKey
	}
	s.dedup[dk] = rec.ID
	s.byID[recKey(rec.TenantID, rec.ID)] = rec
	return nil
}

func (s *MemoryStore) Get(tenantID, id string) (model.AttendanceRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[recKey(tenantID, id)]
	return rec, ok, nil
}

func (s *MemoryStore) FindByDedupKey(tenantID, key string) (model.AttendanceRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.dedup[dedupKey(tenantID, key)]
	if !ok {
		return model.AttendanceRecord{}, false, nil
	}
	rec, ok := s.byID[recKey(tenantID, id)]
	return rec, ok, nil
}

func (s *MemoryStore) LastPunch(tenantID, employeeID string, before time.Time) (model.AttendanceRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dayStart := before.UTC().Truncate(24 * time.Hour)
	var best model.AttendanceRecord
	found := false
	for _, rec := range s.byID {
		if rec.TenantID != tenantID || rec.EmployeeID != employeeID {
			continue
		}
		if rec.Status == model.StatusRejected {
			continue
		}
		if !rec.Timestamp.Before(before) || rec.Timestamp.Before(dayStart) {
			continue
		}
		if !found || rec.Timestamp.After(best.Timestamp) {
			best = rec
			found = true
		}
	}
	return best, found, nil
}

func (s *MemoryStore) Transition(tenantID, id string, mutate func(*model.AttendanceRecord) error) (model.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[recKey(tenantID, id)]
	if !ok {
		return model.AttendanceRecord{}, model.ErrRecordNotFound
	}
	if err := mutate(&rec); err != nil {
		return model.AttendanceRecord{}, err
	}
	s.byID[recKey(tenantID, id)] = rec
	return rec, nil
}

func (s *MemoryStore) Range(fn func(rec model.AttendanceRecord) error) error {
	s.mu.RLock()
	recs := make([]model.AttendanceRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()
	sort.Slice(recs, func(i, j int) bool { return recs[i].Timestamp.Before(recs[j].Timestamp) })
	for _, rec := range recs {
		if err := fn(rec); err != nil {
			return fmt.Errorf("range callback failed: %w", err)
		}
	}
	return nil
}

// LoadAll replaces the store contents with the provided records (used by restore).
func (s *MemoryStore) LoadAll(recs []model.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]model.AttendanceRecord, len(recs))
	s.dedup = make(map[string]string, len(recs))
	for _, rec := range recs {
		s.byID[recKey(rec.TenantID, rec.ID)] = rec
		s.dedup[dedupKey(rec.TenantID, rec.DedupKey)] = rec.ID
	}
	return nil
}
