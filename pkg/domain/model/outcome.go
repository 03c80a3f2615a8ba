package model

import "github.com/seiyo-lab/kaoban/pkg/domain/types"

// Outcome is the pipeline's answer for one arrival detection.
type Outcome struct {
	Kind     types.OutcomeKind
	PersonID PersonID          // empty when unrecognized
	Distance float64           // best match distance, +Inf for an empty gallery
	Record   *AttendanceRecord // set for recorded and duplicate outcomes
}

// RecordedOutcome wraps a freshly written attendance record.
func RecordedOutcome(record *AttendanceRecord, distance float64) Outcome {
	return Outcome{
		Kind:     types.OutcomeRecorded,
		PersonID: record.PersonID,
		Distance: distance,
		Record:   record,
	}
}

// DuplicateOutcome reports a person already recorded for the day; Record is
// the existing entry.
func DuplicateOutcome(record *AttendanceRecord, distance float64) Outcome {
	return Outcome{
		Kind:     types.OutcomeDuplicate,
		PersonID: record.PersonID,
		Distance: distance,
		Record:   record,
	}
}

// UnrecognizedOutcome reports that nobody matched within the threshold. The
// distance is diagnostic only.
func UnrecognizedOutcome(distance float64) Outcome {
	return Outcome{
		Kind:     types.OutcomeUnrecognized,
		Distance: distance,
	}
}

// ThrottledOutcome reports a detection suppressed by the per-person
// cooldown before any ledger interaction.
func ThrottledOutcome(personID PersonID, distance float64) Outcome {
	return Outcome{
		Kind:     types.OutcomeThrottled,
		PersonID: personID,
		Distance: distance,
	}
}

// DepartureOutcome is the pipeline's answer for one departure detection.
type DepartureOutcome struct {
	Kind      types.DepartureKind
	PersonID  PersonID
	Distance  float64
	Departure *Departure // set when Kind is DepartureRecorded or DepartureDuplicate
}
