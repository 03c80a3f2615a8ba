package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/seiyo-lab/kaoban/pkg/cli/config"
	httpctrl "github.com/seiyo-lab/kaoban/pkg/controller/http"
	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
	"github.com/seiyo-lab/kaoban/pkg/service/facematch"
	"github.com/seiyo-lab/kaoban/pkg/service/ledger"
	"github.com/seiyo-lab/kaoban/pkg/service/worker"
	"github.com/seiyo-lab/kaoban/pkg/usecase"
	"github.com/seiyo-lab/kaoban/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// loadPolicy reads the site policy, or returns the built-in defaults when
// no path is given.
func loadPolicy(path string) (*config.Policy, error) {
	if path == "" {
		return &config.Policy{}, nil
	}
	return config.LoadPolicy(path)
}

// buildCore assembles the matching and bookkeeping engine shared by the
// serve and replay commands: a gallery hydrated from the repository, the
// policy-selected matcher over it, and the attendance recorder.
func buildCore(ctx context.Context, repo interfaces.Repository, pol *config.Policy) (*facematch.Gallery, facematch.Matcher, *ledger.Recorder, error) {
	gallery := facematch.NewGallery()
	if err := gallery.Hydrate(ctx, repo.Face()); err != nil {
		return nil, nil, nil, goerr.Wrap(err, "failed to hydrate gallery")
	}
	logging.Default().Info("Gallery hydrated",
		"people", gallery.People(),
		"encodings", gallery.Len(),
		"dimension", gallery.Dim(),
	)

	matcher := pol.Matcher.Build(gallery)

	recorderOpts := []ledger.Option{
		ledger.WithTimezone(pol.Attendance.Location()),
	}
	if d, ok := pol.Attendance.MinPresenceDuration(); ok {
		recorderOpts = append(recorderOpts, ledger.WithMinPresence(d))
	}
	recorder := ledger.New(repo.Attendance(), recorderOpts...)

	return gallery, matcher, recorder, nil
}

func cmdServe() *cli.Command {
	var addr string
	var policyPath string
	var noRollover bool
	var repoCfg config.Repository
	var slackCfg config.Slack
	var encoderCfg config.Encoder
	var archiveCfg config.Archive
	var authCfg config.Auth

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("KAOBAN_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "policy",
			Usage:       "Path to the site policy TOML file",
			Sources:     cli.EnvVars("KAOBAN_POLICY"),
			Destination: &policyPath,
		},
		&cli.BoolFlag{
			Name:        "no-rollover",
			Usage:       "Disable the daily rollover worker",
			Sources:     cli.EnvVars("KAOBAN_NO_ROLLOVER"),
			Destination: &noRollover,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, encoderCfg.Flags()...)
	flags = append(flags, archiveCfg.Flags()...)
	flags = append(flags, authCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the attendance HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			pol, err := loadPolicy(policyPath)
			if err != nil {
				return goerr.Wrap(err, "failed to load policy")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			gallery, matcher, recorder, err := buildCore(ctx, repo, pol)
			if err != nil {
				return err
			}

			notifier, err := slackCfg.Configure(pol.Notify.Channel, recorder.Timezone())
			if err != nil {
				return goerr.Wrap(err, "failed to configure notifier")
			}
			if slackCfg.IsConfigured() && pol.Notify.Channel != "" {
				logging.Default().Info("Slack notifications enabled", "channel", pol.Notify.Channel)
			}

			authUC, err := authCfg.Configure(repo, pol.ToOperators())
			if err != nil {
				return goerr.Wrap(err, "failed to configure authentication")
			}
			if authUC != nil {
				logging.Default().Info("Operator authentication enabled", "operators", len(pol.Operators))
			} else {
				logging.Default().Warn("No operators configured, API runs without authentication")
			}

			ucOpts := []usecase.Option{
				usecase.WithNotifier(notifier),
				usecase.WithCooldown(pol.Attendance.CooldownDuration()),
				usecase.WithThreshold(pol.Matcher.Threshold),
			}
			if authUC != nil {
				ucOpts = append(ucOpts, usecase.WithAuth(authUC))
			}

			archiver, err := archiveCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure photo archive")
			}
			if archiver != nil {
				ucOpts = append(ucOpts, usecase.WithArchive(archiver))
				logging.Default().Info("Enrollment photo archive enabled", "archive", archiveCfg)
			}

			uc := usecase.New(repo, gallery, matcher, recorder, ucOpts...)

			httpOpts := []httpctrl.Options{
				httpctrl.WithAddr(addr),
			}
			if authUC != nil {
				httpOpts = append(httpOpts, httpctrl.WithAuth(authUC))
			}

			encoderClient, err := encoderCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure encoder client")
			}
			if encoderClient != nil {
				httpOpts = append(httpOpts, httpctrl.WithEncoder(encoderClient))
				logging.Default().Info("Encoder service enabled", "encoder", encoderCfg)
			} else {
				logging.Default().Info("Encoder URL not configured, image routes are disabled")
			}

			handler, err := httpctrl.New(uc, httpOpts...)
			if err != nil {
				return goerr.Wrap(err, "failed to create http server")
			}

			var rollover *worker.Rollover
			if !noRollover {
				rollover = worker.NewRollover(recorder, repo.Attendance(),
					worker.WithRolloverAt(pol.Attendance.RolloverAt),
					worker.WithNotifier(notifier),
				)
				if err := rollover.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start rollover worker")
				}
			}

			server := &http.Server{
				Addr:              handler.Addr(),
				Handler:           handler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", handler.Addr())
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				if rollover != nil {
					rollover.Stop()
				}
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				if rollover != nil {
					rollover.Stop()
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
