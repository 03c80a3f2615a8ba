package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrPolicyNotFound    = goerr.New("policy file not found")
	ErrDuplicateOperator = goerr.New("duplicate operator name")
	ErrInvalidOperator   = goerr.New("invalid operator account")
	ErrInvalidMatcher    = goerr.New("invalid matcher configuration")
	ErrInvalidAttendance = goerr.New("invalid attendance configuration")
)

// Context keys for error values
const (
	PolicyPathKey  = "policy_path"
	OperatorKey    = "operator"
	OperatorIdxKey = "operator_index"
	AlgorithmKey   = "algorithm"
	DurationKey    = "duration"
	TimezoneKey    = "timezone"
	RolloverKey    = "rollover_at"
	RepositoryKey  = "repository"
)
