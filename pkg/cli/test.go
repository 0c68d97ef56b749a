package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/maestro-orchestra/pkg/config"
	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
	"github.com/devicelab-dev/maestro-orchestra/pkg/driver/mock"
	"github.com/devicelab-dev/maestro-orchestra/pkg/executor"
	"github.com/devicelab-dev/maestro-orchestra/pkg/flow"
	"github.com/devicelab-dev/maestro-orchestra/pkg/logger"
	"github.com/devicelab-dev/maestro-orchestra/pkg/report"
	"github.com/devicelab-dev/maestro-orchestra/pkg/validator"
)

var testCommand = &cli.Command{
	Name:      "test",
	Usage:     "Run flows",
	ArgsUsage: "<flow-file-or-folder>...",
	Description: `Run one or more flow files. Without arguments the flows globs of
the workspace config are used.

Reports are generated in the output directory:
  - Default: ./reports/<timestamp>/
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/ (no timestamp subfolder)

Examples:
  maestro-orchestra test flow.yaml
  maestro-orchestra test flows/ -e USER=test -e PASS=secret
  maestro-orchestra test flows/ --include-tags smoke --shards 3
  maestro-orchestra test flows/ --output ./my-reports --flatten`,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Environment variables (KEY=VALUE)",
		},
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include flows with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude flows with these tags",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports (default: ./reports)",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},
		&cli.IntFlag{
			Name:  "shards",
			Usage: "Run flows in parallel on N devices",
		},
		&cli.IntFlag{
			Name:  "lookup-timeout",
			Usage: "Element lookup timeout in ms",
		},
		&cli.IntFlag{
			Name:  "optional-lookup-timeout",
			Usage: "Element lookup timeout for optional selectors in ms",
		},
	},
	Action: runTest,
}

// RunConfig holds the complete test run configuration.
type RunConfig struct {
	FlowPaths []string
	Env       map[string]string

	// Filtering
	IncludeTags []string
	ExcludeTags []string

	// Output
	OutputDir string // Final resolved output directory
	LogFile   string // Empty logs to <OutputDir>/maestro-orchestra.log

	// Devices
	Shards        int
	Platform      string
	Device        string
	HierarchyFile string

	Options executor.Options
}

func runTest(c *cli.Context) error {
	ws := workspaceConfig(c)

	paths := c.Args().Slice()
	if len(paths) == 0 {
		var err error
		if paths, err = configuredFlows(ws); err != nil {
			return err
		}
	}
	if len(paths) == 0 {
		return fmt.Errorf("at least one flow file or folder is required")
	}

	outputDir, err := resolveOutputDir(c.String("output"), c.Bool("flatten"))
	if err != nil {
		return err
	}

	// Merge env variables: workspace config env + CLI env (CLI takes precedence)
	env := make(map[string]string)
	for k, v := range ws.Env {
		env[k] = v
	}
	for k, v := range parseEnvVars(c.StringSlice("env")) {
		env[k] = v
	}

	cfg := &RunConfig{
		FlowPaths:     paths,
		Env:           env,
		IncludeTags:   ws.IncludeTags,
		ExcludeTags:   ws.ExcludeTags,
		OutputDir:     outputDir,
		LogFile:       ws.Logging.File,
		Shards:        ws.Shards,
		Platform:      ws.Platform,
		Device:        ws.Device,
		HierarchyFile: c.String("hierarchy"),
		Options: executor.Options{
			LookupTimeout:         ws.Execution.LookupTimeout(),
			OptionalLookupTimeout: ws.Execution.OptionalLookupTimeout(),
			Env:                   env,
		},
	}
	if c.IsSet("include-tags") {
		cfg.IncludeTags = c.StringSlice("include-tags")
	}
	if c.IsSet("exclude-tags") {
		cfg.ExcludeTags = c.StringSlice("exclude-tags")
	}
	if c.IsSet("shards") {
		cfg.Shards = c.Int("shards")
	}
	if c.IsSet("lookup-timeout") {
		cfg.Options.LookupTimeout = time.Duration(c.Int("lookup-timeout")) * time.Millisecond
	}
	if c.IsSet("optional-lookup-timeout") {
		cfg.Options.OptionalLookupTimeout = time.Duration(c.Int("optional-lookup-timeout")) * time.Millisecond
	}
	cfg.Options.ScreenshotsDir = screenshotsDir(ws, outputDir)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.LogFile == "" {
		logCfg := ws.Logging.Logger()
		logCfg.File = filepath.Join(outputDir, "maestro-orchestra.log")
		if err := logger.Init(logCfg); err != nil {
			fmt.Fprintf(c.App.ErrWriter, "Warning: Failed to initialize logger: %v\n", err)
		}
	}

	return executeTest(ctx, c.App.Writer, cfg)
}

// configuredFlows expands the flows globs of the workspace config,
// relative to the config file.
func configuredFlows(ws *config.Config) ([]string, error) {
	base := "."
	if ws.File != "" {
		base = filepath.Dir(ws.File)
	}
	var paths []string
	for _, pattern := range ws.Flows {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(base, pattern)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid flows pattern %q: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}

// screenshotsDir keeps media next to the report unless the config names a
// directory explicitly.
func screenshotsDir(ws *config.Config, outputDir string) string {
	if ws.Execution.ScreenshotsDir != "" && ws.Execution.ScreenshotsDir != config.GetScreenshotsDir() {
		return ws.Execution.ScreenshotsDir
	}
	return filepath.Join(outputDir, "screenshots")
}

// resolveOutputDir determines the output directory based on flags.
// - No --output: ./reports/<timestamp>/
// - --output given: <output>/<timestamp>/
// - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = "./reports"
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	// Create timestamp-based subfolder
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

func executeTest(ctx context.Context, w io.Writer, cfg *RunConfig) error {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	logger.Info("=== Test execution started ===")
	logger.Info("Output directory: %s", cfg.OutputDir)

	result := validator.New(cfg.IncludeTags, cfg.ExcludeTags).Validate(cfg.FlowPaths...)
	if !result.IsValid() {
		for _, err := range result.Errors {
			fmt.Fprintf(w, "  %s✗%s %v\n", color(colorRed), color(colorReset), err)
		}
		return fmt.Errorf("validation failed with %d error(s)", len(result.Errors))
	}
	flows := result.Flows
	for _, sub := range result.SubFlows {
		logger.Debug("sub-flow %s runs only through runFlow", sub)
	}

	workers, err := createWorkers(cfg, len(flows))
	if err != nil {
		return err
	}

	suite, err := runFlows(ctx, w, cfg, workers, flows)
	if err != nil {
		return err
	}

	printSummary(w, suite)
	fmt.Fprintf(w, "\n  Report: %s\n", cfg.OutputDir)
	logger.Info("=== Test execution finished: %d/%d passed ===", suite.PassedFlows, suite.TotalFlows)

	if !suite.Success() {
		return fmt.Errorf("%d of %d flows failed", suite.TotalFlows-suite.PassedFlows, suite.TotalFlows)
	}
	return nil
}

// createWorkers sets up one simulated device per shard, never more than
// there are flows.
func createWorkers(cfg *RunConfig, flowCount int) ([]executor.DeviceWorker, error) {
	var root *core.TreeNode
	if cfg.HierarchyFile != "" {
		var err error
		if root, err = mock.LoadHierarchy(cfg.HierarchyFile); err != nil {
			return nil, err
		}
	}

	n := cfg.Shards
	if n < 1 {
		n = 1
	}
	if n > flowCount {
		n = flowCount
	}

	workers := make([]executor.DeviceWorker, n)
	for i := range workers {
		id := cfg.Device
		if id == "" {
			id = "mock-device"
		}
		if n > 1 {
			id = fmt.Sprintf("%s-%d", id, i+1)
		}
		d := mock.New(mock.Config{Platform: cfg.Platform, DeviceID: id})
		d.Hierarchy = root
		workers[i] = executor.DeviceWorker{DeviceID: id, Driver: d}
	}
	return workers, nil
}

// runFlows executes flows on the workers and writes the report. Each flow
// is printed when it finishes so shard output never interleaves.
func runFlows(ctx context.Context, w io.Writer, cfg *RunConfig, workers []executor.DeviceWorker, flows []*flow.Flow) (core.SuiteResult, error) {
	index := make(map[*flow.Flow]int, len(flows))
	for i, f := range flows {
		index[f] = i
	}

	var (
		mu        sync.Mutex
		recorders = make(map[*flow.Flow]*report.Recorder)
		writer    *report.Writer
	)

	runner := executor.NewShardRunner(workers, executor.ShardConfig{
		Options: cfg.Options,
		Callbacks: func(shard executor.Shard, f *flow.Flow) executor.Callbacks {
			rec := report.NewRecorder(f, shard.ID)
			if info, err := workers[shard.Index].Driver.DeviceInfo(ctx); err == nil {
				rec.SetPlatformInfo(info)
			}
			mu.Lock()
			recorders[f] = rec
			mu.Unlock()
			writer.Progress(index[f])
			return rec.Callbacks()
		},
		OnFlowEnd: func(out executor.FlowOutcome) {
			mu.Lock()
			defer mu.Unlock()
			rec := recorders[out.Flow]
			if rec == nil {
				return
			}
			res := rec.Finish(out.Success, out.Err)
			if err := writer.FlowDone(out.Index, res); err != nil {
				logger.Error("report: %v", err)
			}
			printFlowResult(w, out.Index, len(flows), res)
		},
	})

	var err error
	if writer, err = report.NewWriter(cfg.OutputDir, runner.RunID(), flows); err != nil {
		return core.SuiteResult{}, err
	}

	_, runErr := runner.Run(ctx, flows)
	suite, err := writer.End()
	if runErr != nil {
		return suite, runErr
	}
	if err != nil {
		return suite, err
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		fmt.Fprintf(w, "\n  %sRun interrupted%s\n", color(colorYellow), color(colorReset))
	}
	return suite, nil
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}
