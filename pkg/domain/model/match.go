package model

import "math"

// MatchResult is the answer of the matcher for one probe encoding. When no
// registered person lies within the threshold, Known is false and Distance
// still carries the best (smallest) distance seen, as a diagnostic for
// threshold tuning. An empty gallery answers with +Inf.
type MatchResult struct {
	PersonID PersonID
	Distance float64
	Known    bool
}

// UnknownMatch returns the result for a probe that matched nobody and was
// compared against nothing: distance +Inf.
func UnknownMatch() MatchResult {
	return MatchResult{Distance: math.Inf(1)}
}

// UnknownMatchAt returns an unknown result that keeps the best distance
// observed during the scan.
func UnknownMatchAt(distance float64) MatchResult {
	return MatchResult{Distance: distance}
}
