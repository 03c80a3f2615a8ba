package config

import (
	"log/slog"
	"time"

	"github.com/seiyo-lab/kaoban/pkg/service/notify"
	"github.com/urfave/cli/v3"
)

// Slack holds CLI flags for the Slack notifier. The channel announcements
// go to comes from the policy file, not a flag, so one deployment artifact
// can serve sites announcing to different channels.
type Slack struct {
	oauthToken string
}

// Flags returns CLI flags for Slack configuration
func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-oauth-token",
			Usage:       "Slack Bot User OAuth Token for attendance announcements",
			Category:    "Slack",
			Sources:     cli.EnvVars("KAOBAN_SLACK_OAUTH_TOKEN"),
			Destination: &x.oauthToken,
		},
	}
}

// LogValue returns the Slack configuration for structured logging (secrets hidden)
func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("oauth-token.len", len(x.oauthToken)),
	)
}

// IsConfigured returns true when a token is set
func (x *Slack) IsConfigured() bool {
	return x.oauthToken != ""
}

// Configure builds the notifier posting to the given channel in the given
// timezone. Without a token or a channel it returns the discarding
// notifier, so callers never need a nil check.
func (x *Slack) Configure(channel string, loc *time.Location) (notify.Service, error) {
	if x.oauthToken == "" || channel == "" {
		return notify.Discard{}, nil
	}
	return notify.NewSlack(x.oauthToken, channel, notify.WithTimezone(loc))
}
