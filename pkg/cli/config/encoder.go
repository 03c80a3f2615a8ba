package config

import (
	"log/slog"

	"github.com/seiyo-lab/kaoban/pkg/service/encoder"
	"github.com/urfave/cli/v3"
)

// Encoder holds CLI flags for the external face encoder service
type Encoder struct {
	url      string
	model    string
	detector string
}

// Flags returns CLI flags for encoder configuration
func (x *Encoder) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "encoder-url",
			Usage:       "Face encoder service URL (enables image-accepting routes)",
			Category:    "Encoder",
			Sources:     cli.EnvVars("KAOBAN_ENCODER_URL"),
			Destination: &x.url,
		},
		&cli.StringFlag{
			Name:        "encoder-model",
			Usage:       "Encoding model requested from the encoder service",
			Category:    "Encoder",
			Sources:     cli.EnvVars("KAOBAN_ENCODER_MODEL"),
			Destination: &x.model,
		},
		&cli.StringFlag{
			Name:        "encoder-detector",
			Usage:       "Face detector requested from the encoder service",
			Category:    "Encoder",
			Sources:     cli.EnvVars("KAOBAN_ENCODER_DETECTOR"),
			Destination: &x.detector,
		},
	}
}

// LogValue returns the encoder configuration for structured logging
func (x Encoder) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("url", x.url),
		slog.String("model", x.model),
		slog.String("detector", x.detector),
	)
}

// IsConfigured returns true when an encoder URL is set
func (x *Encoder) IsConfigured() bool {
	return x.url != ""
}

// Configure creates the encoder client. Returns nil when no URL is
// configured; image-accepting features are then disabled.
func (x *Encoder) Configure() (*encoder.Client, error) {
	if x.url == "" {
		return nil, nil
	}
	return encoder.New(x.url,
		encoder.WithModel(x.model),
		encoder.WithDetector(x.detector),
	)
}
