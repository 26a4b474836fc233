// Package attendance implements the per-employee per-day clock state machine
// and the worked-hours arithmetic behind it.
package attendance

import (
	"fmt"
	"time"
)

// DateKeyLayout is the wire format of an attendance date key (yyyy-MM-dd).
// The key is always the employee's local calendar day, supplied by the
// caller — the server never infers "today" itself, which keeps clock
// actions correct across employee timezones.
const DateKeyLayout = "2006-01-02"

// ValidateDateKey checks that a date key is a well-formed yyyy-MM-dd day.
func ValidateDateKey(key string) error {
	if _, err := time.Parse(DateKeyLayout, key); err != nil {
		return NewValidationError(fmt.Sprintf("invalid date key %q: expected yyyy-MM-dd", key))
	}
	return nil
}

// PreviousDay returns the date key of the day before the given key.
func PreviousDay(key string) (string, error) {
	day, err := time.Parse(DateKeyLayout, key)
	if err != nil {
		return "", NewValidationError(fmt.Sprintf("invalid date key %q: expected yyyy-MM-dd", key))
	}
	return day.AddDate(0, 0, -1).Format(DateKeyLayout), nil
}

// BreakRecord is one break within a shift. A break with no EndTime is open.
type BreakRecord struct {
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Duration  *int       `json:"duration,omitempty"` // minutes, set when the break ends
	Type      string     `json:"type,omitempty"`
	IsPaid    bool       `json:"is_paid,omitempty"`
}

// Open reports whether the break has not been ended yet.
func (b *BreakRecord) Open() bool {
	return b.EndTime == nil
}

// Record is the attendance document for one employee on one local day.
type Record struct {
	EmployeeID string        `json:"employee_id"`
	Date       string        `json:"date"` // yyyy-MM-dd, employee-local
	ClockIn    *time.Time    `json:"clock_in,omitempty"`
	ClockOut   *time.Time    `json:"clock_out,omitempty"`
	Breaks     []BreakRecord `json:"breaks"`
	TotalHours *float64      `json:"total_hours,omitempty"`

	IsEditedByManagement bool       `json:"is_edited_by_management,omitempty"`
	EditedBy             string     `json:"edited_by,omitempty"`
	EditedAt             *time.Time `json:"edited_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OpenShift reports whether the record has been clocked in but not out.
func (r *Record) OpenShift() bool {
	return r != nil && r.ClockIn != nil && r.ClockOut == nil
}

// OpenBreakIndex returns the index of the open break, or -1 when none is open.
// The state machine guarantees at most one open break per record.
func (r *Record) OpenBreakIndex() int {
	for i := range r.Breaks {
		if r.Breaks[i].Open() {
			return i
		}
	}
	return -1
}

// Patch carries the fields of a read-merge-write update. Nil fields are left
// untouched by the store; set fields overwrite. ClearTotalHours distinguishes
// "remove total_hours" from "leave it alone".
type Patch struct {
	ClockIn         *time.Time
	ClockOut        *time.Time
	Breaks          *[]BreakRecord
	TotalHours      *float64
	ClearTotalHours bool

	IsEditedByManagement *bool
	EditedBy             *string
	EditedAt             *time.Time
}

// Apply merges a patch into the record. Stores call this so that the mock
// and PostgreSQL implementations share one merge semantics; UpdatedAt (and
// CreatedAt on first write) are stamped by the store, not here.
func (r *Record) Apply(p Patch) {
	if p.ClockIn != nil {
		r.ClockIn = p.ClockIn
	}
	if p.ClockOut != nil {
		r.ClockOut = p.ClockOut
	}
	if p.Breaks != nil {
		r.Breaks = append([]BreakRecord{}, (*p.Breaks)...)
	}
	if p.TotalHours != nil {
		r.TotalHours = p.TotalHours
	} else if p.ClearTotalHours {
		r.TotalHours = nil
	}
	if p.IsEditedByManagement != nil {
		r.IsEditedByManagement = *p.IsEditedByManagement
	}
	if p.EditedBy != nil {
		r.EditedBy = *p.EditedBy
	}
	if p.EditedAt != nil {
		r.EditedAt = p.EditedAt
	}
}
