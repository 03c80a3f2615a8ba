package cli

import (
	"context"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var projectID string
	var databaseID string
	var policyPath string
	var dryRun bool

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrate Firestore indexes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "firestore-project-id",
				Usage:       "Firestore Project ID (required)",
				Required:    true,
				Sources:     cli.EnvVars("KAOBAN_FIRESTORE_PROJECT_ID"),
				Destination: &projectID,
			},
			&cli.StringFlag{
				Name:        "firestore-database-id",
				Usage:       "Firestore Database ID",
				Value:       "(default)",
				Sources:     cli.EnvVars("KAOBAN_FIRESTORE_DATABASE_ID"),
				Destination: &databaseID,
			},
			&cli.StringFlag{
				Name:        "policy",
				Usage:       "Site policy TOML file; sets the vector index dimension",
				Sources:     cli.EnvVars("KAOBAN_POLICY"),
				Destination: &policyPath,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "Preview changes without applying",
				Destination: &dryRun,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			pol, err := loadPolicy(policyPath)
			if err != nil {
				return goerr.Wrap(err, "failed to load policy")
			}
			dimension := pol.Matcher.EncodingDim()

			logger.Info("Migrate configuration",
				"projectID", projectID,
				"databaseID", databaseID,
				"dimension", dimension,
				"dryRun", dryRun)

			indexConfig := getIndexConfig(dimension)

			client, err := fireconf.New(ctx, projectID, databaseID, indexConfig,
				fireconf.WithLogger(logger),
				fireconf.WithDryRun(dryRun),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create fireconf client")
			}
			defer func() {
				if err := client.Close(); err != nil {
					logger.Error("failed to close fireconf client", "error", err.Error())
				}
			}()

			if dryRun {
				logger.Info("Dry run mode - previewing changes")

				collections := make([]string, 0, len(indexConfig.Collections))
				for _, col := range indexConfig.Collections {
					collections = append(collections, col.Name)
				}
				current, err := client.Import(ctx, collections...)
				if err != nil {
					return goerr.Wrap(err, "failed to import current indexes")
				}

				diff, err := client.DiffConfigs(current)
				if err != nil {
					return goerr.Wrap(err, "failed to diff index configurations")
				}
				if len(diff.Collections) == 0 {
					logger.Info("No changes required")
					return nil
				}
				for _, col := range diff.Collections {
					logger.Info("Pending index changes",
						"collection", col.Name,
						"action", col.Action,
						"add", len(col.IndexesToAdd),
						"delete", len(col.IndexesToDelete))
				}
				return nil
			}

			logger.Info("Applying migrations")
			if err := client.Migrate(ctx); err != nil {
				return goerr.Wrap(err, "failed to apply migrations")
			}
			logger.Info("Migrations applied successfully")
			return nil
		},
	}
}

// getIndexConfig returns the Firestore index configuration
func getIndexConfig(dimension int) *fireconf.Config {
	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: "faces",
				Indexes: []fireconf.Index{
					// ListByPerson: person_id ASC, created_at ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "person_id", Order: fireconf.OrderAscending},
							{Path: "created_at", Order: fireconf.OrderAscending},
						},
					},
					// FindNearest vector search over reference encodings
					{
						Fields: []fireconf.IndexField{
							{
								Path: "encoding",
								Vector: &fireconf.VectorConfig{
									Dimension: dimension,
								},
							},
						},
					},
				},
			},
			{
				Name: "attendance",
				Indexes: []fireconf.Index{
					// ListRecordsByDate: date ASC, arrived_at ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "date", Order: fireconf.OrderAscending},
							{Path: "arrived_at", Order: fireconf.OrderAscending},
						},
					},
					// ListRecordsByPersonRange: person_id ASC, date ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "person_id", Order: fireconf.OrderAscending},
							{Path: "date", Order: fireconf.OrderAscending},
						},
					},
				},
			},
			{
				Name: "departures",
				Indexes: []fireconf.Index{
					// ListDeparturesByDate: date ASC, left_at ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "date", Order: fireconf.OrderAscending},
							{Path: "left_at", Order: fireconf.OrderAscending},
						},
					},
					// ListDeparturesByPersonRange: person_id ASC, date ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "person_id", Order: fireconf.OrderAscending},
							{Path: "date", Order: fireconf.OrderAscending},
						},
					},
				},
			},
		},
	}
}
