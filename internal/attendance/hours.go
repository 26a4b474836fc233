package attendance

import (
	"math"
	"time"
)

// CalculateHours computes worked hours for a shift: the clock span minus the
// break minutes that actually fall inside it.
//
// Breaks are clamped to [clockIn, clockOut] before subtraction so that a
// break recorded outside the shift (or straddling its edges) never
// over-subtracts. Open breaks contribute zero; the engine never lets one
// reach a clock-out, but a management edit might. The result is rounded to
// two decimal places and floored at zero.
func CalculateHours(clockIn, clockOut time.Time, breaks []BreakRecord) float64 {
	span := clockOut.Sub(clockIn)
	if span < 0 {
		span = 0
	}

	var breakTotal time.Duration
	for i := range breaks {
		b := &breaks[i]
		if b.EndTime == nil {
			continue
		}
		breakTotal += clampedOverlap(b.StartTime, *b.EndTime, clockIn, clockOut)
	}

	hours := (span - breakTotal).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Round(hours*100) / 100
}

// clampedOverlap returns the duration of [start, end] that lies within
// [lo, hi], zero when the intervals do not overlap.
func clampedOverlap(start, end, lo, hi time.Time) time.Duration {
	if start.Before(lo) {
		start = lo
	}
	if end.After(hi) {
		end = hi
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}

// breakMinutes returns a break's length in whole minutes, rounded.
func breakMinutes(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Minutes()))
}
