package attendance

import (
	"context"
	"time"
)

// Store is the persistence contract the engine runs against. Get returns nil
// (not an error) when no record exists. Patch performs a read-merge-write
// with store-assigned timestamps and returns the merged record.
//
// The engine is check-then-act over this contract: it reads, validates the
// state invariants, and writes. There is no cross-request lock, so two
// near-simultaneous clock actions for the same (employee, date) key have a
// narrow TOCTOU window. Accepted for human-paced input.
type Store interface {
	Get(ctx context.Context, employeeID, date string) (*Record, error)
	Patch(ctx context.Context, employeeID, date string, patch Patch) (*Record, error)
}

// Engine runs the clock state machine:
// NoRecord -> ClockedIn -> (OnBreak <-> ClockedIn) -> ClockedOut.
type Engine struct {
	store Store
	now   func() time.Time
}

// NewEngine creates an engine over the given store.
func NewEngine(store Store) *Engine {
	return &Engine{
		store: store,
		now:   time.Now,
	}
}

// validateKeys checks the employee ID and date key of every clock operation.
func validateKeys(employeeID, dateKey string) error {
	if employeeID == "" {
		return NewValidationError("employee ID is required")
	}
	return ValidateDateKey(dateKey)
}

// ClockIn starts the shift for the given employee-local day.
func (e *Engine) ClockIn(ctx context.Context, employeeID, dateKey string) (*Record, error) {
	if err := validateKeys(employeeID, dateKey); err != nil {
		return nil, err
	}

	rec, err := e.store.Get(ctx, employeeID, dateKey)
	if err != nil {
		return nil, err
	}
	if rec != nil && rec.ClockIn != nil {
		return nil, ErrAlreadyClockedIn
	}

	now := e.now()
	breaks := []BreakRecord{}
	return e.store.Patch(ctx, employeeID, dateKey, Patch{
		ClockIn: &now,
		Breaks:  &breaks,
	})
}

// resolveOpenShift finds the open record for the employee: the given day's
// record if it is an open shift, else the previous day's record when that
// one was left open (an overnight shift). Returns nil when neither is open.
func (e *Engine) resolveOpenShift(ctx context.Context, employeeID, dateKey string) (*Record, error) {
	rec, err := e.store.Get(ctx, employeeID, dateKey)
	if err != nil {
		return nil, err
	}
	if rec.OpenShift() {
		return rec, nil
	}

	yesterday, err := PreviousDay(dateKey)
	if err != nil {
		return nil, err
	}
	prev, err := e.store.Get(ctx, employeeID, yesterday)
	if err != nil {
		return nil, err
	}
	if prev.OpenShift() {
		return prev, nil
	}
	return nil, nil
}

// ClockOut ends the open shift. When dateKey's own record is not open the
// engine falls back to the previous day, so an overnight shift clocks out
// against yesterday's record. A shift cannot end while a break is open.
func (e *Engine) ClockOut(ctx context.Context, employeeID, dateKey string) (*Record, error) {
	if err := validateKeys(employeeID, dateKey); err != nil {
		return nil, err
	}

	rec, err := e.resolveOpenShift(ctx, employeeID, dateKey)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotClockedIn
	}
	if rec.OpenBreakIndex() >= 0 {
		return nil, ErrOnBreak
	}

	now := e.now()
	total := CalculateHours(*rec.ClockIn, now, rec.Breaks)
	return e.store.Patch(ctx, employeeID, rec.Date, Patch{
		ClockOut:   &now,
		TotalHours: &total,
	})
}

// StartBreak opens a break on the employee's open shift.
func (e *Engine) StartBreak(ctx context.Context, employeeID, dateKey, breakType string, isPaid bool) (*Record, error) {
	if err := validateKeys(employeeID, dateKey); err != nil {
		return nil, err
	}

	rec, err := e.resolveOpenShift(ctx, employeeID, dateKey)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotClockedIn
	}
	if rec.OpenBreakIndex() >= 0 {
		return nil, ErrAlreadyOnBreak
	}

	breaks := append(append([]BreakRecord{}, rec.Breaks...), BreakRecord{
		StartTime: e.now(),
		Type:      breakType,
		IsPaid:    isPaid,
	})
	return e.store.Patch(ctx, employeeID, rec.Date, Patch{Breaks: &breaks})
}

// EndBreak closes the open break, stamping its duration in whole minutes.
// If the record was already clocked out (a management edit can produce this
// shape), the stored total is stale: it was computed against the old break
// list, so it is recomputed here against the updated one.
func (e *Engine) EndBreak(ctx context.Context, employeeID, dateKey string) (*Record, error) {
	if err := validateKeys(employeeID, dateKey); err != nil {
		return nil, err
	}

	rec, err := e.resolveOpenBreak(ctx, employeeID, dateKey)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNoActiveBreak
	}

	now := e.now()
	breaks := append([]BreakRecord{}, rec.Breaks...)
	idx := rec.OpenBreakIndex()
	minutes := breakMinutes(breaks[idx].StartTime, now)
	breaks[idx].EndTime = &now
	breaks[idx].Duration = &minutes

	patch := Patch{Breaks: &breaks}
	if rec.ClockIn != nil && rec.ClockOut != nil {
		total := CalculateHours(*rec.ClockIn, *rec.ClockOut, breaks)
		patch.TotalHours = &total
	}
	return e.store.Patch(ctx, employeeID, rec.Date, patch)
}

// resolveOpenBreak finds the record holding the open break: today's, else
// yesterday's for an overnight shift. Unlike resolveOpenShift this accepts a
// clocked-out record, so a break left open past clock-out can still be ended.
func (e *Engine) resolveOpenBreak(ctx context.Context, employeeID, dateKey string) (*Record, error) {
	rec, err := e.store.Get(ctx, employeeID, dateKey)
	if err != nil {
		return nil, err
	}
	if rec != nil && rec.OpenBreakIndex() >= 0 {
		return rec, nil
	}

	yesterday, err := PreviousDay(dateKey)
	if err != nil {
		return nil, err
	}
	prev, err := e.store.Get(ctx, employeeID, yesterday)
	if err != nil {
		return nil, err
	}
	if prev != nil && prev.OpenBreakIndex() >= 0 {
		return prev, nil
	}
	return nil, nil
}

// CurrentRecord returns the record a clock action would apply to: the given
// day's record when one exists, else the previous day's record only if it is
// still an open overnight shift. Returns nil when there is neither.
func (e *Engine) CurrentRecord(ctx context.Context, employeeID, dateKey string) (*Record, error) {
	if err := validateKeys(employeeID, dateKey); err != nil {
		return nil, err
	}

	rec, err := e.store.Get(ctx, employeeID, dateKey)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}

	yesterday, err := PreviousDay(dateKey)
	if err != nil {
		return nil, err
	}
	prev, err := e.store.Get(ctx, employeeID, yesterday)
	if err != nil {
		return nil, err
	}
	if prev.OpenShift() {
		return prev, nil
	}
	return nil, nil
}

// Edit is a management correction to an attendance record. Nil fields are
// left as stored.
type Edit struct {
	ClockIn  *time.Time
	ClockOut *time.Time
	Breaks   *[]BreakRecord
}

// ApplyEdit rewrites a record's clock fields on behalf of management,
// stamping the edit metadata and recomputing the total when both clock times
// are present. Records are rewritten, never deleted.
func (e *Engine) ApplyEdit(ctx context.Context, employeeID, dateKey string, edit Edit, editedBy string) (*Record, error) {
	if err := validateKeys(employeeID, dateKey); err != nil {
		return nil, err
	}
	if editedBy == "" {
		return nil, NewValidationError("editor is required")
	}
	if edit.Breaks != nil {
		open := 0
		for i := range *edit.Breaks {
			if (*edit.Breaks)[i].Open() {
				open++
			}
		}
		if open > 1 {
			return nil, NewValidationError("at most one break may be open")
		}
	}

	rec, err := e.store.Get(ctx, employeeID, dateKey)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &Record{EmployeeID: employeeID, Date: dateKey}
	}

	clockIn, clockOut, breaks := rec.ClockIn, rec.ClockOut, rec.Breaks
	if edit.ClockIn != nil {
		clockIn = edit.ClockIn
	}
	if edit.ClockOut != nil {
		clockOut = edit.ClockOut
	}
	if edit.Breaks != nil {
		breaks = *edit.Breaks
	}

	now := e.now()
	edited := true
	patch := Patch{
		ClockIn:              edit.ClockIn,
		ClockOut:             edit.ClockOut,
		Breaks:               edit.Breaks,
		IsEditedByManagement: &edited,
		EditedBy:             &editedBy,
		EditedAt:             &now,
	}
	if clockIn != nil && clockOut != nil {
		total := CalculateHours(*clockIn, *clockOut, breaks)
		patch.TotalHours = &total
	} else {
		patch.ClearTotalHours = true
	}
	return e.store.Patch(ctx, employeeID, dateKey, patch)
}
