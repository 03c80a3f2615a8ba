package types

import "fmt"

// OutcomeKind classifies the result of processing an arrival detection.
type OutcomeKind string

const (
	// OutcomeRecorded means a new attendance record was durably written.
	OutcomeRecorded OutcomeKind = "RECORDED"
	// OutcomeDuplicate means the person already has a record for the day.
	OutcomeDuplicate OutcomeKind = "DUPLICATE"
	// OutcomeUnrecognized means no gallery identity matched within the
	// threshold. Unrecognized detections never touch the ledger.
	OutcomeUnrecognized OutcomeKind = "UNRECOGNIZED"
	// OutcomeThrottled means the per-person cooldown suppressed the
	// detection before any ledger interaction.
	OutcomeThrottled OutcomeKind = "THROTTLED"
)

// AllOutcomeKinds returns all valid outcome kinds
func AllOutcomeKinds() []OutcomeKind {
	return []OutcomeKind{
		OutcomeRecorded,
		OutcomeDuplicate,
		OutcomeUnrecognized,
		OutcomeThrottled,
	}
}

// IsValid checks if the outcome kind is valid
func (k OutcomeKind) IsValid() bool {
	switch k {
	case OutcomeRecorded,
		OutcomeDuplicate,
		OutcomeUnrecognized,
		OutcomeThrottled:
		return true
	default:
		return false
	}
}

// String returns the string representation of the outcome kind
func (k OutcomeKind) String() string {
	return string(k)
}

// ParseOutcomeKind parses a string into an OutcomeKind
func ParseOutcomeKind(s string) (OutcomeKind, error) {
	kind := OutcomeKind(s)
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid outcome kind: %s", s)
	}
	return kind, nil
}

// DepartureKind classifies the result of processing a departure detection.
type DepartureKind string

const (
	// DepartureRecorded means a departure event was durably written.
	DepartureRecorded DepartureKind = "DEPARTED"
	// DepartureDuplicate means the person already departed that day.
	DepartureDuplicate DepartureKind = "ALREADY_DEPARTED"
	// DepartureNotPresent means no arrival exists for the day.
	DepartureNotPresent DepartureKind = "NOT_PRESENT"
	// DepartureTooSoon means the minimum presence duration has not elapsed
	// since the arrival.
	DepartureTooSoon DepartureKind = "TOO_SOON"
	// DepartureUnrecognized means no gallery identity matched.
	DepartureUnrecognized DepartureKind = "UNRECOGNIZED"
	// DepartureThrottled means the per-person cooldown suppressed the
	// detection.
	DepartureThrottled DepartureKind = "THROTTLED"
)

// AllDepartureKinds returns all valid departure kinds
func AllDepartureKinds() []DepartureKind {
	return []DepartureKind{
		DepartureRecorded,
		DepartureDuplicate,
		DepartureNotPresent,
		DepartureTooSoon,
		DepartureUnrecognized,
		DepartureThrottled,
	}
}

// IsValid checks if the departure kind is valid
func (k DepartureKind) IsValid() bool {
	switch k {
	case DepartureRecorded,
		DepartureDuplicate,
		DepartureNotPresent,
		DepartureTooSoon,
		DepartureUnrecognized,
		DepartureThrottled:
		return true
	default:
		return false
	}
}

// String returns the string representation of the departure kind
func (k DepartureKind) String() string {
	return string(k)
}
