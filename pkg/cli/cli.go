// Package cli provides the command-line interface for maestro-orchestra.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/maestro-orchestra/pkg/config"
	"github.com/devicelab-dev/maestro-orchestra/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to workspace config.yaml (default: ./config.yaml if present)",
		EnvVars: []string{"MAESTRO_ORCHESTRA_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "platform",
		Aliases: []string{"p"},
		Usage:   "Platform reported by the device (android, ios, web)",
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"udid"},
		Usage:   "Device ID reported by the device",
	},
	&cli.StringFlag{
		Name:  "hierarchy",
		Usage: "JSON view tree served by the simulated device",
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable debug logging",
		EnvVars: []string{"MAESTRO_ORCHESTRA_VERBOSE"},
	},
	&cli.StringFlag{
		Name:  "log-format",
		Usage: "Log format (console, json)",
	},
	&cli.StringFlag{
		Name:  "log-file",
		Usage: "Write logs to a file instead of stderr",
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the CLI application. Output goes to w.
func NewApp(w io.Writer) *cli.App {
	return &cli.App{
		Name:    "maestro-orchestra",
		Usage:   "Run Maestro flows through the Orchestra command engine",
		Version: Version,
		Description: `maestro-orchestra compiles Maestro flow files and executes them
command by command, with lifecycle reporting and parallel shards.

Examples:
  maestro-orchestra test flow.yaml
  maestro-orchestra test flows/ -e USER=test --shards 2
  maestro-orchestra evaluate flow.yaml -e USER=test`,
		Writer:    w,
		ErrWriter: w,
		Flags:     GlobalFlags,
		Before:    setup,
		After: func(*cli.Context) error {
			logger.Close()
			return nil
		},
		Commands: []*cli.Command{
			testCommand,
			evaluateCommand,
			hierarchyCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	app := NewApp(os.Stdout)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// metadataConfig is the App.Metadata key holding the loaded *config.Config.
const metadataConfig = "config"

// setup loads the workspace config, applies global flag overrides and
// initializes logging.
func setup(c *cli.Context) error {
	if c.Bool("no-ansi") {
		colorsEnabled = false
	}

	var cfg *config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if c.IsSet("platform") {
		cfg.Platform = c.String("platform")
	}
	if c.IsSet("device") {
		cfg.Device = c.String("device")
	}
	if c.Bool("verbose") {
		cfg.Logging.Debug = true
	}
	if c.IsSet("log-format") {
		cfg.Logging.Format = c.String("log-format")
	}
	if c.IsSet("log-file") {
		cfg.Logging.File = c.String("log-file")
	}

	if err := logger.Init(cfg.Logging.Logger()); err != nil {
		return err
	}
	if cfg.File != "" {
		logger.Debug("loaded config %s", cfg.File)
	}
	c.App.Metadata = map[string]interface{}{metadataConfig: cfg}
	return nil
}

// workspaceConfig returns the config loaded by setup.
func workspaceConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[metadataConfig].(*config.Config); ok {
		return cfg
	}
	cfg, err := config.Default()
	if err != nil {
		return &config.Config{Env: map[string]string{}, Shards: 1}
	}
	return cfg
}
