package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/theoryandpractice/sitekit/internal"
	"github.com/theoryandpractice/sitekit/internal/dates"
	pkgconfig "github.com/theoryandpractice/sitekit/pkg/config"
)

// loadConfig reads the --config file, falling back to the defaults when it
// does not exist.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOrDefault(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Debug("config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, nil
}

// action wraps a runner that needs the loaded config.
func action(run func(ctx context.Context, cmd *cli.Command, opts ...internal.Option) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return run(ctx, cmd, internal.WithConfig(cfg))
	}
}

var writeFlag = &cli.BoolFlag{
	Name:  "write",
	Usage: "Apply the changes instead of only reporting them",
}

var outputFlag = &cli.StringFlag{
	Name:    "output",
	Aliases: []string{"o"},
	Usage:   "Also write the suggested YAML to this file",
}

func main() {
	cmd := &cli.Command{
		Name:  "sitekit",
		Usage: "Data plugins and enrichment tools for an academic website",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Run every plugin and write the JSON data files",
				Action: action(func(ctx context.Context, _ *cli.Command, opts ...internal.Option) error {
					return internal.Generate(ctx, opts...)
				}),
			},
			{
				Name:  "serve",
				Usage: "Serve the generated data with live regeneration",
				Action: action(func(ctx context.Context, _ *cli.Command, opts ...internal.Option) error {
					return internal.Run(ctx, opts...)
				}),
			},
			{
				Name:  "mcp",
				Usage: "Expose the generated data over MCP stdio",
				Action: action(func(ctx context.Context, _ *cli.Command, opts ...internal.Option) error {
					return internal.ServeMCP(ctx, opts...)
				}),
			},
			{
				Name:  "citations",
				Usage: "Citation cache tools",
				Commands: []*cli.Command{
					{
						Name:  "update",
						Usage: "Fetch citation counts from OpenAlex and Semantic Scholar",
						Flags: []cli.Flag{writeFlag},
						Action: action(func(ctx context.Context, cmd *cli.Command, opts ...internal.Option) error {
							return internal.UpdateCitations(ctx, cmd.Bool("write"), opts...)
						}),
					},
				},
			},
			{
				Name:  "photos",
				Usage: "Collaborator photo tools",
				Commands: []*cli.Command{
					{
						Name:  "fetch",
						Usage: "Download avatars from GitHub or Bluesky",
						Flags: []cli.Flag{
							writeFlag,
							&cli.BoolFlag{Name: "force", Usage: "Re-download photos that already exist"},
						},
						Action: action(func(ctx context.Context, cmd *cli.Command, opts ...internal.Option) error {
							return internal.FetchPhotos(ctx, internal.PhotoOptions{
								Write: cmd.Bool("write"),
								Force: cmd.Bool("force"),
							}, opts...)
						}),
					},
				},
			},
			{
				Name:  "collaborators",
				Usage: "Collaborator data tools",
				Commands: []*cli.Command{
					{
						Name:  "years",
						Usage: "Fill in start and end years from co-authored papers",
						Flags: []cli.Flag{writeFlag},
						Action: action(func(ctx context.Context, cmd *cli.Command, opts ...internal.Option) error {
							return internal.UpdateCollaboratorYears(ctx, cmd.Bool("write"), opts...)
						}),
					},
				},
			},
			{
				Name:  "media",
				Usage: "Media mention tools",
				Commands: []*cli.Command{
					{
						Name:  "search",
						Usage: "Search recent news for new media mentions",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "days", Usage: "Only consider items from the last N days"},
							outputFlag,
						},
						Action: action(func(ctx context.Context, cmd *cli.Command, opts ...internal.Option) error {
							return internal.SearchMedia(ctx, internal.MediaSearchOptions{
								Days:   int(cmd.Int("days")),
								Output: cmd.String("output"),
							}, opts...)
						}),
					},
					{
						Name:      "alerts",
						Usage:     "Extract articles from a Google Alerts mbox export",
						ArgsUsage: "MBOX",
						Flags: []cli.Flag{
							outputFlag,
							&cli.BoolFlag{Name: "fetch-metadata", Usage: "Fetch Open Graph metadata for each article"},
							&cli.IntFlag{Name: "limit", Usage: "Process at most N emails"},
							&cli.StringFlag{Name: "since", Usage: "Skip emails before this date (YYYY-MM-DD)"},
						},
						Action: action(func(ctx context.Context, cmd *cli.Command, opts ...internal.Option) error {
							if cmd.Args().Len() != 1 {
								return fmt.Errorf("expected one MBOX argument")
							}
							ao := internal.AlertOptions{
								Mbox:          cmd.Args().First(),
								Output:        cmd.String("output"),
								FetchMetadata: cmd.Bool("fetch-metadata"),
								Limit:         int(cmd.Int("limit")),
							}
							if s := cmd.String("since"); s != "" {
								since, ok := dates.Parse(s)
								if !ok {
									return fmt.Errorf("invalid --since date %q", s)
								}
								ao.Since = &since
							}
							return internal.ImportAlerts(ctx, ao, opts...)
						}),
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
