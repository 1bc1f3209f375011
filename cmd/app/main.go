package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/vizbase/internal"
	"github.com/starford/vizbase/internal/models"
	pkgconfig "github.com/starford/vizbase/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found && cmd.IsSet("config") {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func verifyRequest(cmd *cli.Command) (internal.VerifyRequest, error) {
	key, err := models.NewKey(cmd.String("group"), cmd.String("name"))
	if err != nil {
		return internal.VerifyRequest{}, err
	}
	req := internal.VerifyRequest{
		Key:       key,
		ImagePath: cmd.String("image"),
		PageURL:   cmd.String("url"),
		Selector:  cmd.String("selector"),
	}
	if cmd.IsSet("threshold") {
		th := cmd.Float("threshold")
		req.Threshold = &th
	}
	return req, nil
}

func runVerify(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	req, err := verifyRequest(cmd)
	if err != nil {
		return err
	}
	// Logs go to stderr so stdout carries only the verification record.
	v, err := internal.RunVerify(ctx, req, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if v != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(v)
	}
	if errors.Is(err, internal.ErrMismatch) {
		return cli.Exit(err.Error(), 1)
	}
	return err
}

func keyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "group", Aliases: []string{"g"}, Usage: "Baseline group", Required: true},
		&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Baseline name", Required: true},
		&cli.FloatFlag{Name: "threshold", Aliases: []string{"t"}, Usage: "Largest differing-pixel ratio that still passes (default from config)"},
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "vizbase",
		Usage:  "Visual regression checks against stored PNG baselines",
		Action: serve,
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
				Name:   "serve",
				Usage:  "Run the HTTP API, event stream and baseline watcher",
				Action: serve,
			},
			{
				Name:   "verify",
				Usage:  "Verify a PNG file against its baseline (exit 1 on mismatch)",
				Action: runVerify,
				Flags: append(keyFlags(),
					&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Usage: "PNG file to verify", Required: true},
				),
			},
			{
				Name:   "capture",
				Usage:  "Capture a page region with Chromium and verify it (exit 1 on mismatch)",
				Action: runVerify,
				Flags: append(keyFlags(),
					&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "Page to open", Required: true},
					&cli.StringFlag{Name: "selector", Aliases: []string{"s"}, Usage: "CSS selector of the region", Required: true},
				),
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
