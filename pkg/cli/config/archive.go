package config

import (
	"context"
	"log/slog"

	"github.com/seiyo-lab/kaoban/pkg/service/archive"
	"github.com/urfave/cli/v3"
)

// Archive holds CLI flags for the enrollment photo archive
type Archive struct {
	bucket string
}

// Flags returns CLI flags for archive configuration
func (x *Archive) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "archive-bucket",
			Usage:       "Cloud Storage bucket for enrollment photos (empty disables archiving)",
			Category:    "Archive",
			Sources:     cli.EnvVars("KAOBAN_ARCHIVE_BUCKET"),
			Destination: &x.bucket,
		},
	}
}

// LogValue returns the archive configuration for structured logging
func (x Archive) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("bucket", x.bucket),
	)
}

// Configure creates the photo archive. Returns nil when no bucket is
// configured; enrollment then proceeds without archiving.
func (x *Archive) Configure(ctx context.Context) (archive.Service, error) {
	if x.bucket == "" {
		return nil, nil
	}
	return archive.NewGCS(ctx, x.bucket)
}
