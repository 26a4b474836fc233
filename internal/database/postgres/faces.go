package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/codewithmutahir/timeclock/internal/database"
	"github.com/pgvector/pgvector-go"
)

// FaceRepository provides PostgreSQL-backed descriptor storage with an
// optional in-memory HNSW index for kiosk identification.
type FaceRepository struct {
	pool        *Pool
	hnswIndex   *database.IdentifyIndex
	hnswEnabled bool
	hnswMu      sync.RWMutex
}

// NewFaceRepository creates a new PostgreSQL face repository.
func NewFaceRepository(pool *Pool) *FaceRepository {
	return &FaceRepository{pool: pool}
}

// Get retrieves the enrolled descriptor for an employee, nil if none.
func (r *FaceRepository) Get(ctx context.Context, employeeID string) (*database.StoredDescriptor, error) {
	query := `
		SELECT employee_id, employee_name, descriptor, updated_at
		FROM face_descriptors
		WHERE employee_id = $1`

	var (
		d   database.StoredDescriptor
		vec pgvector.Vector
	)
	err := r.pool.db.QueryRowContext(ctx, query, employeeID).
		Scan(&d.EmployeeID, &d.Name, &vec, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query face descriptor: %w", err)
	}
	d.Descriptor = vec.Slice()
	return &d, nil
}

// All returns every enrolled descriptor.
func (r *FaceRepository) All(ctx context.Context) ([]database.StoredDescriptor, error) {
	query := `
		SELECT employee_id, employee_name, descriptor, updated_at
		FROM face_descriptors
		ORDER BY employee_id`

	rows, err := r.pool.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query face descriptors: %w", err)
	}
	defer rows.Close()

	var out []database.StoredDescriptor
	for rows.Next() {
		var (
			d   database.StoredDescriptor
			vec pgvector.Vector
		)
		if err := rows.Scan(&d.EmployeeID, &d.Name, &vec, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan face descriptor: %w", err)
		}
		d.Descriptor = vec.Slice()
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face descriptors: %w", err)
	}
	return out, nil
}

// Count returns the number of enrolled employees.
func (r *FaceRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM face_descriptors").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count face descriptors: %w", err)
	}
	return count, nil
}

// Identify returns the enrolled descriptor nearest to the query. Uses the
// HNSW index when enabled, else pgvector's Euclidean operator.
func (r *FaceRepository) Identify(ctx context.Context, descriptor []float32) (*database.StoredDescriptor, float64, error) {
	r.hnswMu.RLock()
	if r.hnswEnabled && r.hnswIndex != nil {
		index := r.hnswIndex
		r.hnswMu.RUnlock()
		d, dist, ok := index.Nearest(descriptor)
		if !ok {
			return nil, 0, nil
		}
		return d, dist, nil
	}
	r.hnswMu.RUnlock()

	query := `
		SELECT employee_id, employee_name, descriptor, updated_at,
		       descriptor <-> $1 AS distance
		FROM face_descriptors
		ORDER BY distance
		LIMIT 1`

	var (
		d    database.StoredDescriptor
		vec  pgvector.Vector
		dist float64
	)
	err := r.pool.db.QueryRowContext(ctx, query, pgvector.NewVector(descriptor)).
		Scan(&d.EmployeeID, &d.Name, &vec, &d.UpdatedAt, &dist)
	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("identify descriptor: %w", err)
	}
	d.Descriptor = vec.Slice()
	return &d, dist, nil
}

// Save stores an employee's descriptor, overwriting any previous enrollment.
func (r *FaceRepository) Save(ctx context.Context, d database.StoredDescriptor) error {
	query := `
		INSERT INTO face_descriptors (employee_id, employee_name, descriptor, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (employee_id) DO UPDATE SET
			employee_name = EXCLUDED.employee_name,
			descriptor = EXCLUDED.descriptor,
			updated_at = NOW()`

	_, err := r.pool.db.ExecContext(ctx, query,
		d.EmployeeID, d.Name, pgvector.NewVector(d.Descriptor))
	if err != nil {
		return fmt.Errorf("save face descriptor: %w", err)
	}

	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswEnabled && r.hnswIndex != nil {
		saved := d
		r.hnswIndex.Add(&saved)
	}
	return nil
}

// Delete removes an employee's enrollment.
func (r *FaceRepository) Delete(ctx context.Context, employeeID string) error {
	_, err := r.pool.db.ExecContext(ctx,
		"DELETE FROM face_descriptors WHERE employee_id = $1", employeeID)
	if err != nil {
		return fmt.Errorf("delete face descriptor: %w", err)
	}

	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswEnabled && r.hnswIndex != nil {
		r.hnswIndex.Delete(employeeID)
	}
	return nil
}

// EnableHNSW builds the in-memory identify index from the stored
// descriptors and switches Identify over to it.
func (r *FaceRepository) EnableHNSW(ctx context.Context) error {
	descriptors, err := r.All(ctx)
	if err != nil {
		return fmt.Errorf("load descriptors for index: %w", err)
	}

	index := database.NewIdentifyIndex()
	index.Build(descriptors)

	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()
	r.hnswIndex = index
	r.hnswEnabled = true
	return nil
}

// HNSWCount returns the number of descriptors in the identify index.
func (r *FaceRepository) HNSWCount() int {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswIndex == nil {
		return 0
	}
	return r.hnswIndex.Count()
}
