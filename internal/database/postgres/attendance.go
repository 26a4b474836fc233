package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/codewithmutahir/timeclock/internal/attendance"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

const attendanceColumns = `
	employee_id, to_char(date, 'YYYY-MM-DD'), clock_in, clock_out, breaks,
	total_hours, edited_by_management, edited_by, edited_at, created_at, updated_at`

// scanRecord reads one attendance row.
func scanRecord(row interface{ Scan(...any) error }) (*attendance.Record, error) {
	var (
		rec        attendance.Record
		clockIn    sql.NullTime
		clockOut   sql.NullTime
		breaksJSON []byte
		total      sql.NullFloat64
		editedAt   sql.NullTime
	)

	err := row.Scan(
		&rec.EmployeeID, &rec.Date, &clockIn, &clockOut, &breaksJSON,
		&total, &rec.IsEditedByManagement, &rec.EditedBy, &editedAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if clockIn.Valid {
		t := clockIn.Time
		rec.ClockIn = &t
	}
	if clockOut.Valid {
		t := clockOut.Time
		rec.ClockOut = &t
	}
	if total.Valid {
		v := total.Float64
		rec.TotalHours = &v
	}
	if editedAt.Valid {
		t := editedAt.Time
		rec.EditedAt = &t
	}
	rec.Breaks = []attendance.BreakRecord{}
	if len(breaksJSON) > 0 {
		if err := json.Unmarshal(breaksJSON, &rec.Breaks); err != nil {
			return nil, fmt.Errorf("unmarshal breaks: %w", err)
		}
	}
	return &rec, nil
}

// Get retrieves the record for one employee-local day, nil if not found.
func (r *AttendanceRepository) Get(ctx context.Context, employeeID, date string) (*attendance.Record, error) {
	query := `SELECT` + attendanceColumns + `
		FROM attendance_records
		WHERE employee_id = $1 AND date = $2`

	rec, err := scanRecord(r.pool.db.QueryRowContext(ctx, query, employeeID, date))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query attendance record: %w", err)
	}
	return rec, nil
}

// Range retrieves records between two date keys, inclusive, ordered by date.
func (r *AttendanceRepository) Range(ctx context.Context, employeeID, from, to string) ([]attendance.Record, error) {
	query := `SELECT` + attendanceColumns + `
		FROM attendance_records
		WHERE employee_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date`

	rows, err := r.pool.db.QueryContext(ctx, query, employeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query attendance range: %w", err)
	}
	defer rows.Close()

	var out []attendance.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return out, nil
}

// Patch merges fields into the record, creating it on first write. The merge
// is read-then-upsert without a row lock, preserving the engine's
// check-then-act contract.
func (r *AttendanceRepository) Patch(ctx context.Context, employeeID, date string, patch attendance.Patch) (*attendance.Record, error) {
	rec, err := r.Get(ctx, employeeID, date)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &attendance.Record{
			EmployeeID: employeeID,
			Date:       date,
			Breaks:     []attendance.BreakRecord{},
		}
	}
	rec.Apply(patch)

	breaksJSON, err := json.Marshal(rec.Breaks)
	if err != nil {
		return nil, fmt.Errorf("marshal breaks: %w", err)
	}

	query := `
		INSERT INTO attendance_records
			(employee_id, date, clock_in, clock_out, breaks, total_hours,
			 edited_by_management, edited_by, edited_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (employee_id, date) DO UPDATE SET
			clock_in = EXCLUDED.clock_in,
			clock_out = EXCLUDED.clock_out,
			breaks = EXCLUDED.breaks,
			total_hours = EXCLUDED.total_hours,
			edited_by_management = EXCLUDED.edited_by_management,
			edited_by = EXCLUDED.edited_by,
			edited_at = EXCLUDED.edited_at,
			updated_at = NOW()
		RETURNING created_at, updated_at`

	var totalParam any
	if rec.TotalHours != nil {
		totalParam = *rec.TotalHours
	}
	var editedAtParam any
	if rec.EditedAt != nil {
		editedAtParam = *rec.EditedAt
	}
	var clockInParam, clockOutParam any
	if rec.ClockIn != nil {
		clockInParam = *rec.ClockIn
	}
	if rec.ClockOut != nil {
		clockOutParam = *rec.ClockOut
	}

	err = r.pool.db.QueryRowContext(ctx, query,
		employeeID, date, clockInParam, clockOutParam, breaksJSON, totalParam,
		rec.IsEditedByManagement, rec.EditedBy, editedAtParam,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert attendance record: %w", err)
	}
	return rec, nil
}
