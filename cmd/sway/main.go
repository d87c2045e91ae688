package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/sway/internal"
	pkgconfig "github.com/starford/sway/pkg/config"
)

// loadConfig reads the config file named by --config over the defaults. A
// missing file is fine unless the flag was given explicitly.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	load := pkgconfig.LoadOptional[internal.Config]
	if cmd.IsSet("config") {
		load = pkgconfig.Load[internal.Config]
	}
	if err := load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if doc := cmd.String("document"); doc != "" {
		cfg.Document.Path = doc
	}
	if dir := cmd.String("presets"); dir != "" {
		cfg.Presets.Dir = dir
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if scene := cmd.String("scene"); scene != "" {
		cfg.Document.Scene = scene
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "sway",
		Usage:  "Procedural and physics-based secondary motion for puppet pin chains",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("SWAY_CONFIG_FILE", "APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "document",
				Aliases: []string{"d"},
				Usage:   "Path to the document database (overrides the config)",
				Sources: cli.EnvVars("SWAY_DOCUMENT"),
			},
			&cli.StringFlag{
				Name:    "presets",
				Usage:   "Preset directory (overrides the config)",
				Sources: cli.EnvVars("SWAY_PRESETS_DIR"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "scene", Usage: "YAML scene imported at startup"},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the sway tools over MCP stdio",
				Action: serveMCP,
			},
			importCommand(),
			applyCommand(),
			removeCommand(),
			bakeCommand(),
			evalCommand(),
			presetsCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
