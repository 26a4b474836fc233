// Package database defines the storage contracts for attendance records and
// enrolled face descriptors, shared by the PostgreSQL and mock backends.
package database

import (
	"context"

	"github.com/codewithmutahir/timeclock/internal/attendance"
)

// AttendanceReader provides read-only access to attendance records.
type AttendanceReader interface {
	// Get retrieves the record for one employee-local day, nil if not found.
	Get(ctx context.Context, employeeID, date string) (*attendance.Record, error)
	// Range retrieves records for an employee between two date keys,
	// inclusive, ordered by date. Feeds history views and export.
	Range(ctx context.Context, employeeID, from, to string) ([]attendance.Record, error)
}

// AttendanceWriter extends AttendanceReader with the read-merge-write patch
// used by the clock engine. It satisfies attendance.Store.
type AttendanceWriter interface {
	AttendanceReader

	// Patch merges the given fields into the record, creating it on first
	// write. Timestamps are store-assigned. Returns the merged record.
	Patch(ctx context.Context, employeeID, date string, patch attendance.Patch) (*attendance.Record, error)
}

// FaceReader provides read-only access to enrolled face descriptors.
type FaceReader interface {
	// Get retrieves the enrolled descriptor for an employee, nil if none.
	Get(ctx context.Context, employeeID string) (*StoredDescriptor, error)
	// All returns every enrolled descriptor. Used to build the identify index.
	All(ctx context.Context) ([]StoredDescriptor, error)
	// Count returns the number of enrolled employees.
	Count(ctx context.Context) (int, error)
	// Identify returns the enrolled descriptor nearest to the query by
	// Euclidean distance, with that distance. Nil when nothing is enrolled.
	Identify(ctx context.Context, descriptor []float32) (*StoredDescriptor, float64, error)
}

// FaceWriter extends FaceReader with enrollment writes.
type FaceWriter interface {
	FaceReader

	// Save stores an employee's descriptor, overwriting any previous
	// enrollment. Descriptors are not versioned.
	Save(ctx context.Context, d StoredDescriptor) error
	// Delete removes an employee's enrollment. Deleting a missing
	// enrollment is not an error.
	Delete(ctx context.Context, employeeID string) error
}
