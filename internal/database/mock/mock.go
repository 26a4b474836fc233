// Package mock provides in-memory implementations of the database interfaces
// for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/codewithmutahir/timeclock/internal/attendance"
	"github.com/codewithmutahir/timeclock/internal/database"
	"github.com/codewithmutahir/timeclock/internal/facematch"
)

// AttendanceStore is an in-memory database.AttendanceWriter.
type AttendanceStore struct {
	mu      sync.RWMutex
	records map[string]*attendance.Record

	// Error injection
	GetError   error
	RangeError error
	PatchError error
}

// NewAttendanceStore creates an empty in-memory attendance store.
func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{records: make(map[string]*attendance.Record)}
}

func recordKey(employeeID, date string) string {
	return employeeID + "/" + date
}

func cloneRecord(rec *attendance.Record) *attendance.Record {
	clone := *rec
	clone.Breaks = append([]attendance.BreakRecord{}, rec.Breaks...)
	return &clone
}

// Seed inserts a record directly, bypassing patch semantics.
func (s *AttendanceStore) Seed(rec attendance.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey(rec.EmployeeID, rec.Date)] = cloneRecord(&rec)
}

// Get retrieves the record for one employee-local day, nil if not found.
func (s *AttendanceStore) Get(_ context.Context, employeeID, date string) (*attendance.Record, error) {
	if s.GetError != nil {
		return nil, s.GetError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordKey(employeeID, date)]
	if !ok {
		return nil, nil
	}
	return cloneRecord(rec), nil
}

// Range retrieves records between two date keys, inclusive, ordered by date.
func (s *AttendanceStore) Range(_ context.Context, employeeID, from, to string) ([]attendance.Record, error) {
	if s.RangeError != nil {
		return nil, s.RangeError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []attendance.Record
	for _, rec := range s.records {
		if rec.EmployeeID == employeeID && rec.Date >= from && rec.Date <= to {
			out = append(out, *cloneRecord(rec))
		}
	}
	// Date keys sort lexicographically in chronological order.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Date < out[j-1].Date; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

// Patch merges fields into the record, creating it on first write.
func (s *AttendanceStore) Patch(_ context.Context, employeeID, date string, patch attendance.Patch) (*attendance.Record, error) {
	if s.PatchError != nil {
		return nil, s.PatchError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey(employeeID, date)
	rec, ok := s.records[key]
	if !ok {
		rec = &attendance.Record{
			EmployeeID: employeeID,
			Date:       date,
			Breaks:     []attendance.BreakRecord{},
			CreatedAt:  time.Now(),
		}
		s.records[key] = rec
	}
	rec.Apply(patch)
	rec.UpdatedAt = time.Now()
	return cloneRecord(rec), nil
}

// FaceStore is an in-memory database.FaceWriter.
type FaceStore struct {
	mu          sync.RWMutex
	descriptors map[string]*database.StoredDescriptor

	// Error injection
	GetError      error
	AllError      error
	CountError    error
	IdentifyError error
	SaveError     error
	DeleteError   error
}

// NewFaceStore creates an empty in-memory face store.
func NewFaceStore() *FaceStore {
	return &FaceStore{descriptors: make(map[string]*database.StoredDescriptor)}
}

// Get retrieves the enrolled descriptor for an employee, nil if none.
func (s *FaceStore) Get(_ context.Context, employeeID string) (*database.StoredDescriptor, error) {
	if s.GetError != nil {
		return nil, s.GetError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.descriptors[employeeID]
	if !ok {
		return nil, nil
	}
	clone := *d
	return &clone, nil
}

// All returns every enrolled descriptor.
func (s *FaceStore) All(_ context.Context) ([]database.StoredDescriptor, error) {
	if s.AllError != nil {
		return nil, s.AllError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]database.StoredDescriptor, 0, len(s.descriptors))
	for _, d := range s.descriptors {
		out = append(out, *d)
	}
	return out, nil
}

// Count returns the number of enrolled employees.
func (s *FaceStore) Count(_ context.Context) (int, error) {
	if s.CountError != nil {
		return 0, s.CountError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.descriptors), nil
}

// Identify returns the nearest enrolled descriptor by linear scan.
func (s *FaceStore) Identify(_ context.Context, descriptor []float32) (*database.StoredDescriptor, float64, error) {
	if s.IdentifyError != nil {
		return nil, 0, s.IdentifyError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *database.StoredDescriptor
	bestDist := 0.0
	for _, d := range s.descriptors {
		dist := facematch.Distance(descriptor, d.Descriptor)
		if best == nil || dist < bestDist {
			clone := *d
			best = &clone
			bestDist = dist
		}
	}
	if best == nil {
		return nil, 0, nil
	}
	return best, bestDist, nil
}

// Save stores an employee's descriptor, overwriting any previous enrollment.
func (s *FaceStore) Save(_ context.Context, d database.StoredDescriptor) error {
	if s.SaveError != nil {
		return s.SaveError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now()
	}
	s.descriptors[d.EmployeeID] = &d
	return nil
}

// Delete removes an employee's enrollment.
func (s *FaceStore) Delete(_ context.Context, employeeID string) error {
	if s.DeleteError != nil {
		return s.DeleteError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.descriptors, employeeID)
	return nil
}
