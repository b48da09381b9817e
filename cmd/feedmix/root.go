package main

import (
	"encoding/json"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/johnrirwin/feedmix/internal/config"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "feedmix",
		Usage: "Personal feed aggregator for RSS, Atom and YouTube sources",
		Description: `Administrative commands for the feedmix server.

		Flags can generally be set via environment variables, e.g.:

		--db-host => DB_HOST=localhost
		--log-level => LOG_LEVEL=debug
		`,
		Commands: []*cli.Command{
			migrateCmd(),
			rollbackCmd(),
			importCmd(),
			aggregateCmd(),
			fetchCmd(),
			tokenCmd(),
			resolveChannelCmd(),
			mcpCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func dbFlags() []cli.Flag {
	defaults := config.Default().Database
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db-host",
			Usage:   "PostgreSQL host",
			EnvVars: []string{"DB_HOST"},
			Value:   defaults.Host,
		},
		&cli.IntFlag{
			Name:    "db-port",
			Usage:   "PostgreSQL port",
			EnvVars: []string{"DB_PORT"},
			Value:   defaults.Port,
		},
		&cli.StringFlag{
			Name:    "db-user",
			Usage:   "PostgreSQL user",
			EnvVars: []string{"DB_USER"},
			Value:   defaults.User,
		},
		&cli.StringFlag{
			Name:    "db-password",
			Usage:   "PostgreSQL password",
			EnvVars: []string{"DB_PASSWORD"},
			Value:   defaults.Password,
		},
		&cli.StringFlag{
			Name:    "db-name",
			Usage:   "PostgreSQL database name",
			EnvVars: []string{"DB_NAME"},
			Value:   defaults.Database,
		},
		&cli.StringFlag{
			Name:    "db-sslmode",
			Usage:   "PostgreSQL SSL mode",
			EnvVars: []string{"DB_SSLMODE"},
			Value:   defaults.SSLMode,
		},
	}
}

func logFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level (debug, info, warn, error)",
		EnvVars: []string{"LOG_LEVEL"},
		Value:   "warn",
	}
}

// loadConfig starts from the environment and applies the command's flags.
func loadConfig(c *cli.Context) *config.Config {
	cfg := config.LoadEnv()
	cfg.Logging.Level = c.String("log-level")

	if c.IsSet("db-host") {
		cfg.Database.Host = c.String("db-host")
	}
	if c.IsSet("db-port") {
		cfg.Database.Port = c.Int("db-port")
	}
	if c.IsSet("db-user") {
		cfg.Database.User = c.String("db-user")
	}
	if c.IsSet("db-password") {
		cfg.Database.Password = c.String("db-password")
	}
	if c.IsSet("db-name") {
		cfg.Database.Database = c.String("db-name")
	}
	if c.IsSet("db-sslmode") {
		cfg.Database.SSLMode = c.String("db-sslmode")
	}
	return cfg
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
