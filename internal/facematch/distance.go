// Package facematch provides face descriptor matching utilities shared between
// the verification session, the web handlers, and the CLI.
package facematch

import (
	"fmt"
	"math"
)

// DescriptorLength is the fixed dimensionality of a face descriptor.
const DescriptorLength = 128

// Decision thresholds over Euclidean distance between two descriptors.
const (
	// MatchThreshold is the accept boundary: distances below it are a match.
	MatchThreshold = 0.45
	// MarginalThreshold marks matches that are technically rejected but close
	// enough that re-enrollment usually fixes them.
	MarginalThreshold = 0.55
	// StrongMismatchThreshold marks distances that almost certainly belong to
	// a different person.
	StrongMismatchThreshold = 0.70
)

// Distance computes the Euclidean distance between two descriptors.
// Returns +Inf for mismatched or empty inputs so that invalid comparisons
// can never be mistaken for a match.
func Distance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Matches reports whether the distance between two descriptors is below the
// accept threshold.
func Matches(a, b []float32) bool {
	return Distance(a, b) < MatchThreshold
}

// Grade classifies a distance into a user-facing band.
type Grade int

const (
	GradeMatch Grade = iota
	GradeMarginal
	GradeMismatch
	GradeStrongMismatch
)

// GradeDistance maps a distance to its feedback band.
func GradeDistance(distance float64) Grade {
	switch {
	case distance < MatchThreshold:
		return GradeMatch
	case distance < MarginalThreshold:
		return GradeMarginal
	case distance <= StrongMismatchThreshold:
		return GradeMismatch
	default:
		return GradeStrongMismatch
	}
}

// Message returns the human-readable guidance for the band.
func (g Grade) Message() string {
	switch g {
	case GradeMatch:
		return "face verified"
	case GradeMarginal:
		return "face does not quite match the enrolled photo - try again, or re-enroll your face if this keeps happening"
	case GradeMismatch:
		return "face does not match the enrolled photo"
	case GradeStrongMismatch:
		return "face does not match the enrolled employee"
	default:
		return "face could not be verified"
	}
}

// ValidateDescriptor checks that a descriptor has the expected length and
// contains only finite values. Returns nil when the descriptor is usable.
func ValidateDescriptor(descriptor []float32) error {
	if len(descriptor) != DescriptorLength {
		return fmt.Errorf("invalid descriptor: expected %d values, got %d", DescriptorLength, len(descriptor))
	}
	for i, v := range descriptor {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("invalid descriptor: non-finite value at index %d", i)
		}
	}
	return nil
}
