package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/seiyo-lab/kaoban/pkg/cli/config"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"github.com/seiyo-lab/kaoban/pkg/service/facematch"
)

func newTestGallery(t *testing.T) *facematch.Gallery {
	t.Helper()
	gallery := facematch.NewGallery()
	gt.NoError(t, gallery.Register("p1", types.Encoding{0.1, 0.2})).Required()
	return gallery
}

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.toml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0600)).Required()
	return path
}

func TestLoadPolicy(t *testing.T) {
	path := writePolicy(t, `
[matcher]
algorithm = "hnsw"
threshold = 0.55
dimension = 256

[attendance]
timezone = "Asia/Tokyo"
cooldown = "90s"
min_presence = "45m"
rollover_at = "22:30"

[notify]
channel = "#attendance"

[[operator]]
name = "front-desk"
password_hash = "$2a$10$abcdefghijklmnopqrstuv"
role = "viewer"

[[operator]]
name = "site-admin"
password_hash = "$2a$10$vutsrqponmlkjihgfedcba"
role = "admin"
`)

	pol, err := config.LoadPolicy(path)
	gt.NoError(t, err).Required()

	gt.Value(t, pol.Matcher.Algorithm).Equal("hnsw")
	gt.Value(t, pol.Matcher.Threshold).Equal(0.55)
	gt.Value(t, pol.Matcher.EncodingDim()).Equal(256)
	gt.Value(t, pol.Attendance.Location().String()).Equal("Asia/Tokyo")
	gt.Value(t, pol.Attendance.CooldownDuration()).Equal(90 * time.Second)

	minPresence, ok := pol.Attendance.MinPresenceDuration()
	gt.Bool(t, ok).True()
	gt.Value(t, minPresence).Equal(45 * time.Minute)

	gt.Value(t, pol.Notify.Channel).Equal("#attendance")

	operators := pol.ToOperators()
	gt.Array(t, operators).Length(2)
	gt.Value(t, operators[0].Name).Equal("front-desk")
	gt.Value(t, operators[0].Role).Equal(types.RoleViewer)
	gt.Value(t, operators[1].Role).Equal(types.RoleAdmin)
}

func TestLoadPolicy_Defaults(t *testing.T) {
	pol := &config.Policy{}
	gt.NoError(t, pol.Validate())

	gt.Value(t, pol.Matcher.EncodingDim()).Equal(config.DefaultEncodingDim)
	gt.Value(t, pol.Attendance.CooldownDuration()).Equal(time.Duration(0))
	gt.Value(t, pol.Attendance.Location()).Nil()

	_, ok := pol.Attendance.MinPresenceDuration()
	gt.Bool(t, ok).False()
	gt.Value(t, pol.ToOperators()).Nil()
}

func TestLoadPolicy_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name: "unknown algorithm",
			content: `
[matcher]
algorithm = "quantum"
`,
			wantErr: config.ErrInvalidMatcher,
		},
		{
			name: "negative threshold",
			content: `
[matcher]
threshold = -1.0
`,
			wantErr: config.ErrInvalidMatcher,
		},
		{
			name: "unknown timezone",
			content: `
[attendance]
timezone = "Mars/Olympus_Mons"
`,
			wantErr: config.ErrInvalidAttendance,
		},
		{
			name: "bad cooldown",
			content: `
[attendance]
cooldown = "ninety seconds"
`,
			wantErr: config.ErrInvalidAttendance,
		},
		{
			name: "bad rollover time",
			content: `
[attendance]
rollover_at = "25:99"
`,
			wantErr: config.ErrInvalidAttendance,
		},
		{
			name: "operator without password hash",
			content: `
[[operator]]
name = "front-desk"
role = "viewer"
`,
			wantErr: config.ErrInvalidOperator,
		},
		{
			name: "duplicate operator",
			content: `
[[operator]]
name = "front-desk"
password_hash = "$2a$10$abcdefghijklmnopqrstuv"
role = "viewer"

[[operator]]
name = "front-desk"
password_hash = "$2a$10$vutsrqponmlkjihgfedcba"
role = "admin"
`,
			wantErr: config.ErrDuplicateOperator,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writePolicy(t, tt.content)
			_, err := config.LoadPolicy(path)
			gt.Error(t, err)
			gt.Bool(t, errors.Is(err, tt.wantErr)).True()
		})
	}
}

func TestLoadPolicy_MissingFile(t *testing.T) {
	_, err := config.LoadPolicy(filepath.Join(t.TempDir(), "nope.toml"))
	gt.Error(t, err)
}

func TestMatcherPolicy_Build(t *testing.T) {
	// Both algorithm names must produce a working matcher; the zero value
	// falls back to the linear scan.
	for _, algorithm := range []string{"", "linear", "hnsw"} {
		t.Run("algorithm "+algorithm, func(t *testing.T) {
			pol := config.MatcherPolicy{Algorithm: algorithm}
			gt.NoError(t, pol.Validate())
			gt.Value(t, pol.Build(newTestGallery(t))).NotNil()
		})
	}
}
