package attendance

import "errors"

// ConflictCode identifies which clock-state invariant a request violated.
type ConflictCode string

const (
	CodeAlreadyClockedIn ConflictCode = "already_clocked_in"
	CodeNotClockedIn     ConflictCode = "not_clocked_in"
	CodeAlreadyOnBreak   ConflictCode = "already_on_break"
	CodeNoActiveBreak    ConflictCode = "no_active_break"
	CodeOnBreak          ConflictCode = "on_break"
)

// StateConflictError is returned when a clock action is not valid in the
// record's current state. Handlers render it inline rather than as a
// server failure.
type StateConflictError struct {
	Code    ConflictCode
	Message string
}

func (e *StateConflictError) Error() string {
	return e.Message
}

var (
	ErrAlreadyClockedIn = &StateConflictError{CodeAlreadyClockedIn, "already clocked in for this day"}
	ErrNotClockedIn     = &StateConflictError{CodeNotClockedIn, "not clocked in"}
	ErrAlreadyOnBreak   = &StateConflictError{CodeAlreadyOnBreak, "a break is already in progress"}
	ErrNoActiveBreak    = &StateConflictError{CodeNoActiveBreak, "no break in progress"}
	ErrOnBreak          = &StateConflictError{CodeOnBreak, "end the current break before clocking out"}
)

// ValidationError is returned for malformed input (bad date keys, invalid
// descriptors) as opposed to state conflicts.
type ValidationError struct {
	Message string
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsStateConflict reports whether err is a clock-state conflict.
func IsStateConflict(err error) bool {
	var sc *StateConflictError
	return errors.As(err, &sc)
}

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
