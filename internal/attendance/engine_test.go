package attendance

import (
	"context"
	"errors"
	"testing"
	"time"
)

// memStore is a minimal in-memory Store for engine tests.
type memStore struct {
	records map[string]*Record

	getErr   error
	patchErr error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*Record)}
}

func storeKey(employeeID, date string) string {
	return employeeID + "/" + date
}

func (s *memStore) Get(_ context.Context, employeeID, date string) (*Record, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	rec, ok := s.records[storeKey(employeeID, date)]
	if !ok {
		return nil, nil
	}
	clone := *rec
	clone.Breaks = append([]BreakRecord{}, rec.Breaks...)
	return &clone, nil
}

func (s *memStore) Patch(_ context.Context, employeeID, date string, patch Patch) (*Record, error) {
	if s.patchErr != nil {
		return nil, s.patchErr
	}
	key := storeKey(employeeID, date)
	rec, ok := s.records[key]
	if !ok {
		rec = &Record{EmployeeID: employeeID, Date: date, CreatedAt: time.Now()}
		s.records[key] = rec
	}
	rec.Apply(patch)
	rec.UpdatedAt = time.Now()
	clone := *rec
	clone.Breaks = append([]BreakRecord{}, rec.Breaks...)
	return &clone, nil
}

func testEngine(store Store, now time.Time) *Engine {
	e := NewEngine(store)
	e.now = func() time.Time { return now }
	return e
}

const (
	day       = "2024-03-11"
	nextDay   = "2024-03-12"
	testEmpID = "emp-42"
)

func TestClockIn_CreatesRecord(t *testing.T) {
	store := newMemStore()
	now := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	e := testEngine(store, now)

	rec, err := e.ClockIn(context.Background(), testEmpID, day)
	if err != nil {
		t.Fatalf("ClockIn failed: %v", err)
	}
	if rec.ClockIn == nil || !rec.ClockIn.Equal(now) {
		t.Errorf("expected clock-in at %v, got %v", now, rec.ClockIn)
	}
	if len(rec.Breaks) != 0 {
		t.Errorf("expected empty breaks, got %d", len(rec.Breaks))
	}
	if !rec.OpenShift() {
		t.Error("record should be an open shift")
	}
}

func TestClockIn_TwiceFails(t *testing.T) {
	store := newMemStore()
	e := testEngine(store, time.Now())

	if _, err := e.ClockIn(context.Background(), testEmpID, day); err != nil {
		t.Fatalf("first ClockIn failed: %v", err)
	}

	_, err := e.ClockIn(context.Background(), testEmpID, day)
	if !errors.Is(err, ErrAlreadyClockedIn) {
		t.Errorf("expected ErrAlreadyClockedIn, got %v", err)
	}
}

func TestClockIn_InvalidInput(t *testing.T) {
	e := testEngine(newMemStore(), time.Now())

	if _, err := e.ClockIn(context.Background(), "", day); !IsValidation(err) {
		t.Errorf("expected validation error for empty employee, got %v", err)
	}
	if _, err := e.ClockIn(context.Background(), testEmpID, "11-03-2024"); !IsValidation(err) {
		t.Errorf("expected validation error for bad date key, got %v", err)
	}
}

func TestClockOut_HappyPath(t *testing.T) {
	store := newMemStore()
	clockIn := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	e := testEngine(store, clockIn)

	if _, err := e.ClockIn(context.Background(), testEmpID, day); err != nil {
		t.Fatalf("ClockIn failed: %v", err)
	}

	e.now = func() time.Time { return clockIn.Add(8 * time.Hour) }
	rec, err := e.ClockOut(context.Background(), testEmpID, day)
	if err != nil {
		t.Fatalf("ClockOut failed: %v", err)
	}
	if rec.ClockOut == nil {
		t.Fatal("clock-out not set")
	}
	if rec.TotalHours == nil || *rec.TotalHours != 8.0 {
		t.Errorf("expected total 8.0, got %v", rec.TotalHours)
	}
}

func TestClockOut_WithoutClockInFails(t *testing.T) {
	e := testEngine(newMemStore(), time.Now())

	_, err := e.ClockOut(context.Background(), testEmpID, day)
	if !errors.Is(err, ErrNotClockedIn) {
		t.Errorf("expected ErrNotClockedIn, got %v", err)
	}
}

func TestClockOut_WhileOnBreakFails(t *testing.T) {
	store := newMemStore()
	e := testEngine(store, time.Now())

	if _, err := e.ClockIn(context.Background(), testEmpID, day); err != nil {
		t.Fatalf("ClockIn failed: %v", err)
	}
	if _, err := e.StartBreak(context.Background(), testEmpID, day, "lunch", false); err != nil {
		t.Fatalf("StartBreak failed: %v", err)
	}

	_, err := e.ClockOut(context.Background(), testEmpID, day)
	if !errors.Is(err, ErrOnBreak) {
		t.Errorf("expected ErrOnBreak, got %v", err)
	}
}

func TestClockOut_SubtractsBreak(t *testing.T) {
	store := newMemStore()
	start := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	e := testEngine(store, start)

	ctx := context.Background()
	if _, err := e.ClockIn(ctx, testEmpID, day); err != nil {
		t.Fatalf("ClockIn failed: %v", err)
	}

	e.now = func() time.Time { return start.Add(3 * time.Hour) } // 12:00
	if _, err := e.StartBreak(ctx, testEmpID, day, "lunch", false); err != nil {
		t.Fatalf("StartBreak failed: %v", err)
	}

	e.now = func() time.Time { return start.Add(3*time.Hour + 30*time.Minute) } // 12:30
	rec, err := e.EndBreak(ctx, testEmpID, day)
	if err != nil {
		t.Fatalf("EndBreak failed: %v", err)
	}
	if rec.Breaks[0].Duration == nil || *rec.Breaks[0].Duration != 30 {
		t.Errorf("expected 30 minute break, got %v", rec.Breaks[0].Duration)
	}

	e.now = func() time.Time { return start.Add(8 * time.Hour) } // 17:00
	rec, err = e.ClockOut(ctx, testEmpID, day)
	if err != nil {
		t.Fatalf("ClockOut failed: %v", err)
	}
	if rec.TotalHours == nil || *rec.TotalHours != 7.5 {
		t.Errorf("expected total 7.5, got %v", rec.TotalHours)
	}
}

func TestStartBreak_Conflicts(t *testing.T) {
	store := newMemStore()
	e := testEngine(store, time.Now())
	ctx := context.Background()

	if _, err := e.StartBreak(ctx, testEmpID, day, "", false); !errors.Is(err, ErrNotClockedIn) {
		t.Errorf("expected ErrNotClockedIn before clock-in, got %v", err)
	}

	if _, err := e.ClockIn(ctx, testEmpID, day); err != nil {
		t.Fatalf("ClockIn failed: %v", err)
	}
	if _, err := e.StartBreak(ctx, testEmpID, day, "", false); err != nil {
		t.Fatalf("StartBreak failed: %v", err)
	}
	if _, err := e.StartBreak(ctx, testEmpID, day, "", false); !errors.Is(err, ErrAlreadyOnBreak) {
		t.Errorf("expected ErrAlreadyOnBreak, got %v", err)
	}
}

func TestEndBreak_NoneOpenFails(t *testing.T) {
	store := newMemStore()
	e := testEngine(store, time.Now())
	ctx := context.Background()

	if _, err := e.ClockIn(ctx, testEmpID, day); err != nil {
		t.Fatalf("ClockIn failed: %v", err)
	}
	if _, err := e.EndBreak(ctx, testEmpID, day); !errors.Is(err, ErrNoActiveBreak) {
		t.Errorf("expected ErrNoActiveBreak, got %v", err)
	}
}

func TestEndBreak_AfterClockOutRecomputesTotal(t *testing.T) {
	store := newMemStore()
	start := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)
	breakStart := start.Add(3 * time.Hour)
	breakEnd := breakStart.Add(30 * time.Minute)

	// A management-edited shape: clocked out with a break still open and a
	// stale total computed against no breaks.
	stale := 8.0
	store.records[storeKey(testEmpID, day)] = &Record{
		EmployeeID: testEmpID,
		Date:       day,
		ClockIn:    &start,
		ClockOut:   &end,
		Breaks:     []BreakRecord{{StartTime: breakStart}},
		TotalHours: &stale,
	}

	e := testEngine(store, breakEnd)
	rec, err := e.EndBreak(context.Background(), testEmpID, day)
	if err != nil {
		t.Fatalf("EndBreak failed: %v", err)
	}
	if rec.TotalHours == nil || *rec.TotalHours != 7.5 {
		t.Errorf("expected recomputed total 7.5, got %v", rec.TotalHours)
	}
}

func TestOvernightShift(t *testing.T) {
	store := newMemStore()
	clockIn := time.Date(2024, 3, 11, 22, 0, 0, 0, time.UTC)
	e := testEngine(store, clockIn)
	ctx := context.Background()

	if _, err := e.ClockIn(ctx, testEmpID, day); err != nil {
		t.Fatalf("ClockIn failed: %v", err)
	}

	// Next morning, before any new clock-in, yesterday's open shift is the
	// current record.
	rec, err := e.CurrentRecord(ctx, testEmpID, nextDay)
	if err != nil {
		t.Fatalf("CurrentRecord failed: %v", err)
	}
	if rec == nil || rec.Date != day {
		t.Fatalf("expected yesterday's open record, got %+v", rec)
	}

	// Clock-out on the next day resolves against yesterday's record.
	e.now = func() time.Time { return clockIn.Add(8 * time.Hour) }
	rec, err = e.ClockOut(ctx, testEmpID, nextDay)
	if err != nil {
		t.Fatalf("ClockOut failed: %v", err)
	}
	if rec.Date != day {
		t.Errorf("clock-out should land on %s, got %s", day, rec.Date)
	}
	if rec.TotalHours == nil || *rec.TotalHours != 8.0 {
		t.Errorf("expected total 8.0, got %v", rec.TotalHours)
	}

	// Once closed, yesterday's record no longer surfaces as current.
	rec, err = e.CurrentRecord(ctx, testEmpID, nextDay)
	if err != nil {
		t.Fatalf("CurrentRecord failed: %v", err)
	}
	if rec != nil {
		t.Errorf("expected no current record after overnight clock-out, got %+v", rec)
	}
}

func TestOvernightBreaks(t *testing.T) {
	store := newMemStore()
	clockIn := time.Date(2024, 3, 11, 22, 0, 0, 0, time.UTC)
	e := testEngine(store, clockIn)
	ctx := context.Background()

	if _, err := e.ClockIn(ctx, testEmpID, day); err != nil {
		t.Fatalf("ClockIn failed: %v", err)
	}

	// Start and end a break after midnight against yesterday's record.
	e.now = func() time.Time { return clockIn.Add(4 * time.Hour) }
	rec, err := e.StartBreak(ctx, testEmpID, nextDay, "", false)
	if err != nil {
		t.Fatalf("StartBreak failed: %v", err)
	}
	if rec.Date != day {
		t.Errorf("break should land on %s, got %s", day, rec.Date)
	}

	e.now = func() time.Time { return clockIn.Add(4*time.Hour + 15*time.Minute) }
	rec, err = e.EndBreak(ctx, testEmpID, nextDay)
	if err != nil {
		t.Fatalf("EndBreak failed: %v", err)
	}
	if rec.Breaks[0].Duration == nil || *rec.Breaks[0].Duration != 15 {
		t.Errorf("expected 15 minute break, got %v", rec.Breaks[0].Duration)
	}
}

func TestCurrentRecord_PrefersToday(t *testing.T) {
	store := newMemStore()
	e := testEngine(store, time.Now())
	ctx := context.Background()

	if _, err := e.ClockIn(ctx, testEmpID, day); err != nil {
		t.Fatalf("ClockIn failed: %v", err)
	}
	rec, err := e.CurrentRecord(ctx, testEmpID, day)
	if err != nil {
		t.Fatalf("CurrentRecord failed: %v", err)
	}
	if rec == nil || rec.Date != day {
		t.Errorf("expected today's record, got %+v", rec)
	}
}

func TestCurrentRecord_NoRecords(t *testing.T) {
	e := testEngine(newMemStore(), time.Now())

	rec, err := e.CurrentRecord(context.Background(), testEmpID, day)
	if err != nil {
		t.Fatalf("CurrentRecord failed: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil record, got %+v", rec)
	}
}

func TestEngine_StoreErrorsPropagate(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("store down")
	e := testEngine(store, time.Now())

	if _, err := e.ClockIn(context.Background(), testEmpID, day); err == nil || IsStateConflict(err) {
		t.Errorf("expected store error to propagate, got %v", err)
	}
}

func TestApplyEdit_RecomputesTotal(t *testing.T) {
	store := newMemStore()
	start := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)
	e := testEngine(store, end)
	ctx := context.Background()

	breakEnd := start.Add(3*time.Hour + 45*time.Minute)
	breaks := []BreakRecord{closedBreak(start.Add(3*time.Hour), breakEnd)}
	rec, err := e.ApplyEdit(ctx, testEmpID, day, Edit{
		ClockIn:  &start,
		ClockOut: &end,
		Breaks:   &breaks,
	}, "manager-7")
	if err != nil {
		t.Fatalf("ApplyEdit failed: %v", err)
	}

	if !rec.IsEditedByManagement || rec.EditedBy != "manager-7" || rec.EditedAt == nil {
		t.Errorf("edit metadata not stamped: %+v", rec)
	}
	if rec.TotalHours == nil || *rec.TotalHours != 7.25 {
		t.Errorf("expected total 7.25, got %v", rec.TotalHours)
	}
}

func TestApplyEdit_RejectsTwoOpenBreaks(t *testing.T) {
	e := testEngine(newMemStore(), time.Now())

	breaks := []BreakRecord{
		{StartTime: time.Now()},
		{StartTime: time.Now().Add(time.Hour)},
	}
	_, err := e.ApplyEdit(context.Background(), testEmpID, day, Edit{Breaks: &breaks}, "manager-7")
	if !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestPreviousDay(t *testing.T) {
	tests := []struct {
		key      string
		expected string
	}{
		{"2024-03-11", "2024-03-10"},
		{"2024-03-01", "2024-02-29"}, // leap year
		{"2024-01-01", "2023-12-31"},
	}
	for _, tc := range tests {
		got, err := PreviousDay(tc.key)
		if err != nil {
			t.Fatalf("PreviousDay(%q) failed: %v", tc.key, err)
		}
		if got != tc.expected {
			t.Errorf("PreviousDay(%q) = %q, expected %q", tc.key, got, tc.expected)
		}
	}

	if _, err := PreviousDay("bogus"); !IsValidation(err) {
		t.Errorf("expected validation error for bogus key, got %v", err)
	}
}
