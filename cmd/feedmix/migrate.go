package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/johnrirwin/feedmix/internal/app"
	"github.com/johnrirwin/feedmix/internal/database"
	"github.com/johnrirwin/feedmix/internal/logging"
)

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:        "migrate",
		Usage:       "Run database migrations",
		Description: `Applies every pending migration to the configured database.`,
		Flags:       append(dbFlags(), logFlag()),
		Action: func(c *cli.Context) error {
			db, err := openDB(c)
			if err != nil {
				return err
			}
			defer db.Close()

			version, err := db.Migrate()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Database at version %d\n", version)
			return nil
		},
	}
}

func rollbackCmd() *cli.Command {
	return &cli.Command{
		Name:        "rollback",
		Usage:       "Rollback database migrations",
		Description: `Rolls back the last applied migrations, one step by default.`,
		Flags: append(dbFlags(), logFlag(),
			&cli.IntFlag{
				Name:  "steps",
				Usage: "Number of migrations to roll back",
				Value: 1,
			},
		),
		Action: func(c *cli.Context) error {
			steps := c.Int("steps")
			if steps < 1 {
				return fmt.Errorf("steps must be at least 1, got %d", steps)
			}

			db, err := openDB(c)
			if err != nil {
				return err
			}
			defer db.Close()

			version, err := db.Rollback(steps)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Database at version %d\n", version)
			return nil
		},
	}
}

func openDB(c *cli.Context) (*database.DB, error) {
	cfg := loadConfig(c)
	fmt.Fprintf(c.App.Writer, "Database configured: %s:%d/%s\n",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
	)
	logger := logging.New(logging.ParseLevel(cfg.Logging.Level))
	return database.New(c.Context, app.DatabaseConfig(cfg.Database), logger)
}
