package config

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"github.com/seiyo-lab/kaoban/pkg/service/facematch"
	"github.com/seiyo-lab/kaoban/pkg/usecase"
)

// DefaultEncodingDim matches the 128-dimensional embedding that dlib-based
// capture devices produce.
const DefaultEncodingDim = 128

// Policy represents the site policy file: matching, attendance bookkeeping,
// notification, and operator accounts. Everything in it is optional; a zero
// Policy runs the engine with built-in defaults and no authentication.
type Policy struct {
	Matcher    MatcherPolicy     `toml:"matcher"`
	Attendance AttendancePolicy  `toml:"attendance"`
	Notify     NotifyPolicy      `toml:"notify"`
	Operators  []OperatorAccount `toml:"operator"`
}

// MatcherPolicy selects the matching algorithm and its acceptance distance
type MatcherPolicy struct {
	Algorithm string  `toml:"algorithm"`
	Threshold float64 `toml:"threshold"`
	Dimension int     `toml:"dimension"`
}

// Validate checks if the MatcherPolicy is valid
func (m *MatcherPolicy) Validate() error {
	switch m.Algorithm {
	case "", "linear", "hnsw":
	default:
		return goerr.Wrap(ErrInvalidMatcher, "unknown algorithm", goerr.V(AlgorithmKey, m.Algorithm))
	}
	if m.Threshold < 0 {
		return goerr.Wrap(ErrInvalidMatcher, "threshold must not be negative", goerr.V("threshold", m.Threshold))
	}
	if m.Dimension < 0 {
		return goerr.Wrap(ErrInvalidMatcher, "dimension must not be negative", goerr.V("dimension", m.Dimension))
	}
	return nil
}

// EncodingDim returns the configured encoding dimension, falling back to
// DefaultEncodingDim.
func (m *MatcherPolicy) EncodingDim() int {
	if m.Dimension > 0 {
		return m.Dimension
	}
	return DefaultEncodingDim
}

// Build constructs the configured matcher over the gallery. An unset
// algorithm means linear scan; an unset threshold falls back to the
// matcher's default.
func (m *MatcherPolicy) Build(gallery *facematch.Gallery) facematch.Matcher {
	switch m.Algorithm {
	case "hnsw":
		return facematch.NewHNSW(gallery, m.Threshold)
	default:
		return facematch.NewLinear(gallery, m.Threshold)
	}
}

// AttendancePolicy tunes the attendance recorder and the daily rollover.
// Durations are TOML strings ("90s", "1h") parsed during Validate.
type AttendancePolicy struct {
	Timezone    string `toml:"timezone"`
	Cooldown    string `toml:"cooldown"`
	MinPresence string `toml:"min_presence"`
	RolloverAt  string `toml:"rollover_at"`

	location       *time.Location
	cooldown       time.Duration
	minPresence    time.Duration
	hasMinPresence bool
}

// Validate checks if the AttendancePolicy is valid and caches the parsed
// values for the accessors.
func (a *AttendancePolicy) Validate() error {
	if a.Timezone != "" {
		loc, err := time.LoadLocation(a.Timezone)
		if err != nil {
			return goerr.Wrap(ErrInvalidAttendance, "unknown timezone", goerr.V(TimezoneKey, a.Timezone))
		}
		a.location = loc
	}

	if a.Cooldown != "" {
		d, err := time.ParseDuration(a.Cooldown)
		if err != nil || d < 0 {
			return goerr.Wrap(ErrInvalidAttendance, "invalid cooldown", goerr.V(DurationKey, a.Cooldown))
		}
		a.cooldown = d
	}

	if a.MinPresence != "" {
		d, err := time.ParseDuration(a.MinPresence)
		if err != nil || d < 0 {
			return goerr.Wrap(ErrInvalidAttendance, "invalid min_presence", goerr.V(DurationKey, a.MinPresence))
		}
		a.minPresence = d
		a.hasMinPresence = true
	}

	if a.RolloverAt != "" {
		if _, err := time.Parse("15:04", a.RolloverAt); err != nil {
			return goerr.Wrap(ErrInvalidAttendance, "rollover_at must be HH:MM", goerr.V(RolloverKey, a.RolloverAt))
		}
	}

	return nil
}

// Location returns the configured timezone, or nil when unset.
func (a *AttendancePolicy) Location() *time.Location {
	return a.location
}

// CooldownDuration returns the configured detection cooldown, or zero when
// unset.
func (a *AttendancePolicy) CooldownDuration() time.Duration {
	return a.cooldown
}

// MinPresenceDuration returns the configured minimum stay before a departure
// counts. The bool reports whether the policy set one at all; an explicit
// "0s" disables the check, which is different from leaving the default.
func (a *AttendancePolicy) MinPresenceDuration() (time.Duration, bool) {
	return a.minPresence, a.hasMinPresence
}

// NotifyPolicy names the channel the day summaries are announced to
type NotifyPolicy struct {
	Channel string `toml:"channel"`
}

// OperatorAccount represents one operator account in the policy file
type OperatorAccount struct {
	Name         string `toml:"name"`
	PasswordHash string `toml:"password_hash"`
	Role         string `toml:"role"`
}

// Validate checks if the OperatorAccount is valid
func (o *OperatorAccount) Validate() error {
	if o.Name == "" {
		return goerr.Wrap(ErrInvalidOperator, "operator name is required")
	}
	if o.PasswordHash == "" {
		return goerr.Wrap(ErrInvalidOperator, "password_hash is required", goerr.V(OperatorKey, o.Name))
	}
	if _, err := types.ParseRole(o.Role); err != nil {
		return goerr.Wrap(err, "invalid operator role", goerr.V(OperatorKey, o.Name))
	}
	return nil
}

// Validate checks if the Policy is valid
func (p *Policy) Validate() error {
	if err := p.Matcher.Validate(); err != nil {
		return goerr.Wrap(err, "invalid matcher policy")
	}
	if err := p.Attendance.Validate(); err != nil {
		return goerr.Wrap(err, "invalid attendance policy")
	}

	// Check operator duplicates
	names := make(map[string]bool)
	for i, op := range p.Operators {
		if err := op.Validate(); err != nil {
			return goerr.Wrap(err, "invalid operator", goerr.V(OperatorIdxKey, i))
		}
		if names[op.Name] {
			return goerr.Wrap(ErrDuplicateOperator, "operator names must be unique", goerr.V(OperatorKey, op.Name))
		}
		names[op.Name] = true
	}

	return nil
}

// ToOperators converts the policy accounts to use case operators. Roles were
// checked by Validate, so the conversion cannot fail.
func (p *Policy) ToOperators() []usecase.Operator {
	if len(p.Operators) == 0 {
		return nil
	}

	operators := make([]usecase.Operator, len(p.Operators))
	for i, op := range p.Operators {
		role, _ := types.ParseRole(op.Role)
		operators[i] = usecase.Operator{
			Name:         op.Name,
			PasswordHash: op.PasswordHash,
			Role:         role,
		}
	}
	return operators
}

// LoadPolicy loads the site policy from a TOML file
func LoadPolicy(path string) (*Policy, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(ErrPolicyNotFound, err.Error(), goerr.V(PolicyPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read policy file", goerr.V(PolicyPathKey, path))
	}

	var policy Policy
	if err := toml.Unmarshal(data, &policy); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML policy", goerr.V(PolicyPathKey, path))
	}

	if err := policy.Validate(); err != nil {
		return nil, goerr.Wrap(err, "policy validation failed", goerr.V(PolicyPathKey, path))
	}

	return &policy, nil
}
