package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/starford/sway/internal"
	"github.com/starford/sway/internal/apperr"
	"github.com/starford/sway/internal/rig"
	"github.com/starford/sway/internal/swayservice"
)

func layerFlag() cli.Flag {
	return &cli.StringFlag{Name: "layer", Aliases: []string{"l"}, Usage: "Layer name", Required: true}
}

func pinsFlag() cli.Flag {
	return &cli.StringSliceFlag{Name: "pin", Aliases: []string{"p"}, Usage: "Pin name, repeatable (default: the layer's selection)"}
}

// withComponents opens the document for one command. Logs go to stderr so
// stdout carries only the command output.
func withComponents(ctx context.Context, cmd *cli.Command, fn func(*internal.Components) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	c, err := internal.Open(ctx, []internal.Option{internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr)})
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func selectionOf(cmd *cli.Command) swayservice.Selection {
	return swayservice.Selection{Layer: cmd.String("layer"), Pins: cmd.StringSlice("pin")}
}

// parseParams turns key=value pairs into a parameter map. Values are
// decoded as YAML scalars.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", apperr.ErrInvalidParameters, pair)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", apperr.ErrInvalidParameters, key, err)
		}
		out[key] = v
	}
	return out, nil
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import a YAML scene into the document",
		ArgsUsage: "<scene.yaml>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return errors.New("scene file is required")
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			return withComponents(ctx, cmd, func(c *internal.Components) error {
				s, err := c.Service.ImportScene(ctx, data)
				if err != nil {
					return err
				}
				fmt.Printf("Imported %d layers\n", len(s.Layers))
				return nil
			})
		},
	}
}

func applyCommand() *cli.Command {
	return &cli.Command{
		Name:  "apply",
		Usage: "Bind sway motion to a pin chain",
		Flags: []cli.Flag{
			layerFlag(),
			pinsFlag(),
			&cli.StringFlag{Name: "preset", Usage: "Base preset"},
			&cli.StringSliceFlag{Name: "param", Usage: "Parameter override key=value, repeatable"},
			&cli.StringFlag{Name: "root", Usage: "Root policy: topmost or first-selected", Value: "topmost"},
			&cli.StringSliceFlag{Name: "order", Usage: "Explicit chain order, root first, repeatable"},
			&cli.StringFlag{Name: "control-name", Usage: "Base name of the new control", Value: swayservice.DefaultControlName},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			root, err := rig.ParseRootPolicy(cmd.String("root"))
			if err != nil {
				return err
			}
			overrides, err := parseParams(cmd.StringSlice("param"))
			if err != nil {
				return err
			}
			req := swayservice.ApplyRequest{
				Selection:   selectionOf(cmd),
				Preset:      cmd.String("preset"),
				Params:      overrides,
				Root:        root,
				Order:       cmd.StringSlice("order"),
				ControlName: cmd.String("control-name"),
			}
			return withComponents(ctx, cmd, func(c *internal.Components) error {
				res, err := c.Service.Apply(ctx, req)
				if err != nil {
					if res.LinksApplied > 0 {
						fmt.Println(res.Message())
					}
					return err
				}
				fmt.Printf("%s (control %s)\n", res.Message(), res.Control)
				return nil
			})
		},
	}
}

func removeCommand() *cli.Command {
	return &cli.Command{
		Name:  "remove",
		Usage: "Detach sway motion from pins",
		Flags: []cli.Flag{layerFlag(), pinsFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withComponents(ctx, cmd, func(c *internal.Components) error {
				res, err := c.Service.Remove(ctx, selectionOf(cmd))
				if err != nil {
					return err
				}
				fmt.Println(res.Message())
				return nil
			})
		},
	}
}

func bakeCommand() *cli.Command {
	return &cli.Command{
		Name:  "bake",
		Usage: "Bake sway motion into keyframes",
		Flags: []cli.Flag{layerFlag(), pinsFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withComponents(ctx, cmd, func(c *internal.Components) error {
				res, err := c.Service.Bake(ctx, selectionOf(cmd))
				if err != nil {
					return err
				}
				fmt.Println(res.Message())
				for _, l := range res.Report.Baked {
					fmt.Printf("  %s\t%d samples\t%s\n", l.Pin, l.Samples, l.Digest)
				}
				if len(res.Report.Skipped) > 0 {
					fmt.Printf("Skipped: %s\n", strings.Join(res.Report.Skipped, ", "))
				}
				return nil
			})
		},
	}
}

func evalCommand() *cli.Command {
	return &cli.Command{
		Name:  "eval",
		Usage: "Evaluate a pin at a time in seconds",
		Flags: []cli.Flag{
			layerFlag(),
			&cli.StringFlag{Name: "pin", Aliases: []string{"p"}, Usage: "Pin name", Required: true},
			&cli.FloatFlag{Name: "t", Usage: "Time in seconds"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withComponents(ctx, cmd, func(c *internal.Components) error {
				v, err := c.Service.Evaluate(ctx, cmd.String("layer"), cmd.String("pin"), cmd.Float("t"))
				if err != nil {
					return err
				}
				fmt.Printf("%g,%g\n", v.X, v.Y)
				return nil
			})
		},
	}
}

func presetsCommand() *cli.Command {
	return &cli.Command{
		Name:  "presets",
		Usage: "List presets",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withComponents(ctx, cmd, func(c *internal.Components) error {
				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tSOURCE\tMODE")
				for _, p := range c.Service.Presets() {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.Source, p.Params.Mode)
				}
				return tw.Flush()
			})
		},
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Print one preset as YAML",
				ArgsUsage: "<name>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name := cmd.Args().First()
					return withComponents(ctx, cmd, func(c *internal.Components) error {
						for _, p := range c.Service.Presets() {
							if p.Name == name {
								return yaml.NewEncoder(os.Stdout).Encode(p.Params)
							}
						}
						return fmt.Errorf("preset %q: %w", name, apperr.ErrNotFound)
					})
				},
			},
			{
				Name:      "save",
				Usage:     "Save a preset to the preset directory",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "param", Usage: "Parameter value key=value, repeatable"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					values, err := parseParams(cmd.StringSlice("param"))
					if err != nil {
						return err
					}
					return withComponents(ctx, cmd, func(c *internal.Components) error {
						if _, err := c.Service.SavePreset(cmd.Args().First(), values); err != nil {
							return err
						}
						fmt.Printf("Saved %s\n", cmd.Args().First())
						return nil
					})
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a saved preset",
				ArgsUsage: "<name>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name := cmd.Args().First()
					return withComponents(ctx, cmd, func(c *internal.Components) error {
						if err := c.Service.DeletePreset(name); err != nil {
							return err
						}
						fmt.Printf("Deleted %s\n", name)
						return nil
					})
				},
			},
		},
	}
}
