package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/johnrirwin/feedmix/internal/app"
	"github.com/johnrirwin/feedmix/internal/mcp"
	"github.com/johnrirwin/feedmix/internal/models"
	"github.com/johnrirwin/feedmix/internal/sources"
)

const shutdownTimeout = 5 * time.Second

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "Account username",
		Required: true,
	}
}

// withApp connects to the database, runs fn and shuts the app down.
func withApp(c *cli.Context, fn func(a *app.App) error) error {
	a, err := app.New(c.Context, loadConfig(c))
	if err != nil {
		return err
	}
	defer shutdown(a)
	return fn(a)
}

func shutdown(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.Shutdown(ctx)
}

func importCmd() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import sources from a YAML file",
		Description: `Registers every source listed in the file and adds it to the account.

		Entries that fail validation are reported and skipped.`,
		Flags: append(dbFlags(), logFlag(), userFlag(),
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the sources YAML file",
				Required: true,
			},
		),
		Action: func(c *cli.Context) error {
			file, err := sources.LoadSourcesFile(c.String("file"))
			if err != nil {
				return err
			}

			return withApp(c, func(a *app.App) error {
				account, err := a.Accounts.GetAccountByUsername(c.Context, c.String("user"))
				if err != nil {
					return err
				}

				imported, failed := 0, 0
				for _, result := range file.BuildAll(c.Context, a.Registry) {
					err := result.Err
					if err == nil {
						err = a.Sources.AddSource(c.Context, account.ID, result.Source)
					}
					if err != nil {
						failed++
						fmt.Fprintf(c.App.ErrWriter, "skip %q (%s): %v\n", result.Spec.Title, result.Spec.URL, err)
						continue
					}
					imported++
					fmt.Fprintf(c.App.Writer, "added %q [%d]\n", result.Source.Title, result.Source.ID)
				}

				fmt.Fprintf(c.App.Writer, "Imported %d sources, %d failed\n", imported, failed)
				return nil
			})
		},
	}
}

func aggregateCmd() *cli.Command {
	return &cli.Command{
		Name:  "aggregate",
		Usage: "Print an account's aggregated feed",
		Flags: append(dbFlags(), logFlag(), userFlag(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of posts to print, 0 for all",
				Value: 50,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of posts to skip",
			},
		),
		Action: func(c *cli.Context) error {
			return withApp(c, func(a *app.App) error {
				feed, err := a.Engine.FeedFor(c.Context, c.String("user"), models.PageParams{
					Limit:  c.Int("limit"),
					Offset: c.Int("offset"),
				})
				if err != nil {
					return err
				}
				return printJSON(c.App.Writer, feed)
			})
		},
	}
}

func fetchCmd() *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch and normalize a single source",
		ArgsUsage: "<url>",
		Description: `Fetches one feed without touching the database and prints the
		normalized posts. Useful for checking a source before adding it.`,
		Flags: []cli.Flag{
			logFlag(),
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Source type (blogger, wordpress, youtube, atom, direct)",
				Value:   string(models.SourceTypeDirect),
			},
			&cli.StringFlag{
				Name:  "title",
				Usage: "Source title attached to the posts",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one url argument")
			}

			a := app.NewPipeline(loadConfig(c))
			defer shutdown(a)

			src, err := a.Registry.Register(c.Context, models.AddSourceParams{
				Title: c.String("title"),
				Type:  models.SourceType(c.String("type")),
				URL:   c.Args().First(),
			})
			if err != nil {
				return err
			}

			posts, err := a.Engine.Preview(c.Context, src)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, posts)
		},
	}
}

func tokenCmd() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue an access token for an account",
		Flags: append(dbFlags(), logFlag(), userFlag()),
		Action: func(c *cli.Context) error {
			return withApp(c, func(a *app.App) error {
				token, err := a.AuthService.IssueToken(c.Context, c.String("user"))
				if err != nil {
					return err
				}
				return printJSON(c.App.Writer, token)
			})
		},
	}
}

func resolveChannelCmd() *cli.Command {
	return &cli.Command{
		Name:      "resolve-channel",
		Usage:     "Resolve a YouTube vanity URL to its channel URL",
		ArgsUsage: "<url>",
		Flags:     []cli.Flag{logFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one url argument")
			}

			a := app.NewPipeline(loadConfig(c))
			defer shutdown(a)

			channelURL, err := a.Channels.Resolve(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, channelURL)
			return nil
		},
	}
}

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve feed tools over MCP on stdin/stdout",
		Description: `Runs a Model Context Protocol server exposing get_feed, list_sources
		and preview_source. Logs go to stderr.`,
		Flags: append(dbFlags(), logFlag()),
		Action: func(c *cli.Context) error {
			return withApp(c, func(a *app.App) error {
				handler := mcp.NewHandler(a.Engine, a.Accounts, a.Registry, a.Logger)
				return mcp.NewServer(handler, a.Logger).Run(c.Context)
			})
		},
	}
}
