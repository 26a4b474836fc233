package database

import (
	"time"
)

// StoredDescriptor is one employee's enrolled face descriptor. Exactly one
// row per employee; re-enrollment overwrites in place.
type StoredDescriptor struct {
	EmployeeID string
	Name       string // display name, surfaced by kiosk identification
	Descriptor []float32
	UpdatedAt  time.Time
}
