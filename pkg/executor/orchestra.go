// Package executor runs compiled flows against a device driver.
package executor

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
	"github.com/devicelab-dev/maestro-orchestra/pkg/flow"
	"github.com/devicelab-dev/maestro-orchestra/pkg/jsengine"
	"github.com/devicelab-dev/maestro-orchestra/pkg/logger"
)

// Element lookup defaults.
const (
	DefaultLookupTimeout         = 17 * time.Second
	DefaultOptionalLookupTimeout = 7 * time.Second
)

// ErrorResolution tells the dispatcher what to do after a failed command.
type ErrorResolution int

const (
	// ResolutionFail stops the command list.
	ResolutionFail ErrorResolution = iota
	// ResolutionContinue moves on to the next command.
	ResolutionContinue
)

// Callbacks observe command lifecycle. Every field is optional. For each
// dispatched command exactly one of Complete, Warned, Skipped or Failed
// follows Start; a command skipped by cancellation gets Skipped only.
type Callbacks struct {
	OnFlowStart              func(cmds []flow.Command)
	OnCommandStart           func(index int, cmd flow.Command)
	OnCommandComplete        func(index int, cmd flow.Command)
	OnCommandWarned          func(index int, cmd flow.Command)
	OnCommandSkipped         func(index int, cmd flow.Command)
	OnCommandFailed          func(index int, cmd flow.Command, err error) ErrorResolution
	OnCommandReset           func(cmd flow.Command)
	OnCommandMetadataUpdate  func(cmd flow.Command, md CommandMetadata)
	OnCommandGeneratedOutput func(cmd flow.Command, defects []core.Defect, screenshot []byte)
}

func (c Callbacks) start(i int, cmd flow.Command) {
	if c.OnCommandStart != nil {
		c.OnCommandStart(i, cmd)
	}
}

func (c Callbacks) complete(i int, cmd flow.Command) {
	if c.OnCommandComplete != nil {
		c.OnCommandComplete(i, cmd)
	}
}

func (c Callbacks) warned(i int, cmd flow.Command) {
	if c.OnCommandWarned != nil {
		c.OnCommandWarned(i, cmd)
	}
}

func (c Callbacks) skipped(i int, cmd flow.Command) {
	if c.OnCommandSkipped != nil {
		c.OnCommandSkipped(i, cmd)
	}
}

// failed defaults to ResolutionFail when no callback is set.
func (c Callbacks) failed(i int, cmd flow.Command, err error) ErrorResolution {
	if c.OnCommandFailed != nil {
		return c.OnCommandFailed(i, cmd, err)
	}
	return ResolutionFail
}

func (c Callbacks) reset(cmd flow.Command) {
	if c.OnCommandReset != nil {
		c.OnCommandReset(cmd)
	}
}

// Options configures an Orchestra.
type Options struct {
	LookupTimeout         time.Duration
	OptionalLookupTimeout time.Duration
	// ScreenshotsDir receives takeScreenshot and startRecording output.
	ScreenshotsDir string
	// AI backs the AI assertion commands. Nil makes them fail with ErrAINotConfigured.
	AI core.AIPredictionEngine
	// Insights defaults to a private hub.
	Insights core.Insights
	// Env is put into the JS engine every time it is re-initialized.
	Env map[string]string
	// Controller defaults to a private controller.
	Controller *FlowController
}

// Orchestra dispatches one flow's commands against a driver. It is not
// safe to run two flows on the same Orchestra concurrently.
type Orchestra struct {
	driver     core.Driver
	js         *jsengine.Engine
	cb         Callbacks
	opts       Options
	insights   core.Insights
	controller *FlowController
	metadata   *metadataStore

	mu              sync.Mutex
	lastInteraction time.Time
	deviceInfo      *core.PlatformInfo
	copiedText      string
	recording       io.Closer
	recordingFile   *os.File
}

// New creates an Orchestra with its own JS engine.
func New(driver core.Driver, cb Callbacks, opts Options) *Orchestra {
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = DefaultLookupTimeout
	}
	if opts.OptionalLookupTimeout <= 0 {
		opts.OptionalLookupTimeout = DefaultOptionalLookupTimeout
	}
	insights := opts.Insights
	if insights == nil {
		insights = core.NewInsightsHub()
	}
	controller := opts.Controller
	if controller == nil {
		controller = NewFlowController()
	}
	o := &Orchestra{
		driver:          driver,
		js:              jsengine.New("unknown"),
		cb:              cb,
		opts:            opts,
		insights:        insights,
		controller:      controller,
		lastInteraction: time.Now(),
	}
	o.metadata = newMetadataStore(func(cmd flow.Command, md CommandMetadata) {
		if o.cb.OnCommandMetadataUpdate != nil {
			o.cb.OnCommandMetadataUpdate(cmd, md)
		}
	})
	return o
}

// JS returns the engine used for script evaluation.
func (o *Orchestra) JS() *jsengine.Engine { return o.js }

// Insights returns the insight channel commands report to.
func (o *Orchestra) Insights() core.Insights { return o.insights }

// Metadata returns a snapshot of the metadata recorded for cmd.
func (o *Orchestra) Metadata(cmd flow.Command) CommandMetadata {
	return o.metadata.get(cmd)
}

// Pause stops dispatch before the next command.
func (o *Orchestra) Pause() { o.controller.Pause() }

// Resume releases a paused dispatcher.
func (o *Orchestra) Resume() { o.controller.Resume() }

// IsPaused reports whether dispatch is paused.
func (o *Orchestra) IsPaused() bool { return o.controller.IsPaused() }

// Close stops the JS engine and any open screen recording.
func (o *Orchestra) Close() {
	o.closeRecording()
	o.js.Close()
}

// RunFlow runs a compiled flow: define variables, onFlowStart hooks, the
// body, then onFlowComplete hooks, which run even when earlier steps fail.
// The result is false when any of the three stages failed.
func (o *Orchestra) RunFlow(ctx context.Context, cmds []flow.Command) (bool, error) {
	o.touch()
	cfg := flow.GetConfig(cmds)

	if err := o.initJS(ctx); err != nil {
		return false, err
	}
	if o.cb.OnFlowStart != nil {
		o.cb.OnFlowStart(cmds)
	}

	defines, rest := flow.SplitDefineVariables(cmds)
	if err := o.defineVariables(defines); err != nil {
		return false, err
	}

	var startOK, bodyOK bool
	var err error
	func() {
		if cfg != nil && len(cfg.OnFlowStart) > 0 {
			startOK, err = o.executeCommands(ctx, cfg.OnFlowStart, cfg)
		} else {
			startOK = true
		}
		if err != nil || !startOK {
			return
		}
		bodyOK, err = o.executeCommands(ctx, rest, cfg)
		o.closeRecording()
	}()

	completeOK := true
	var completeErr error
	if cfg != nil && len(cfg.OnFlowComplete) > 0 {
		completeOK, completeErr = o.executeCommands(ctx, cfg.OnFlowComplete, cfg)
	}

	if err != nil {
		return false, err
	}
	if completeErr != nil {
		return false, completeErr
	}
	return startOK && bodyOK && completeOK, nil
}

// ExecuteCommands re-initializes the JS engine and runs cmds. It returns
// false when a failed command resolved to ResolutionFail.
func (o *Orchestra) ExecuteCommands(ctx context.Context, cmds []flow.Command, cfg *flow.Config) (bool, error) {
	if err := o.initJS(ctx); err != nil {
		return false, err
	}
	return o.executeCommands(ctx, cmds, cfg)
}

// EvaluateCommands returns the evaluated form of every visible command
// without executing anything. Console output is recorded in metadata.
func (o *Orchestra) EvaluateCommands(ctx context.Context, cmds []flow.Command) ([]flow.Command, error) {
	if err := o.initJS(ctx); err != nil {
		return nil, err
	}
	defines, rest := flow.SplitDefineVariables(cmds)
	if err := o.defineVariables(defines); err != nil {
		return nil, err
	}
	defer o.js.OnLogMessage(nil)

	out := make([]flow.Command, 0, len(rest))
	for _, cmd := range rest {
		o.subscribeLogs(cmd)
		evaluated, err := flow.EvaluateCommand(cmd, o.js)
		if err != nil {
			return nil, err
		}
		o.metadata.update(cmd, func(md *CommandMetadata) {
			md.EvaluatedCommand = evaluated
			md.LabeledCommand = evaluated.Label()
		})
		out = append(out, evaluated)
	}
	return out, nil
}

func (o *Orchestra) executeCommands(ctx context.Context, cmds []flow.Command, cfg *flow.Config) (bool, error) {
	defer o.js.OnLogMessage(nil)
	_, err := o.dispatch(ctx, cmds, cfg, false)
	if err == errFlowStopped {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// initJS starts a fresh engine for the device platform.
func (o *Orchestra) initJS(ctx context.Context) error {
	info, err := o.platformInfo(ctx)
	if err != nil {
		return err
	}
	o.js.Reset(strings.ToLower(info.Platform))
	for k, v := range o.opts.Env {
		o.js.PutEnv(k, v)
	}
	return nil
}

func (o *Orchestra) defineVariables(cmds []flow.Command) error {
	for _, cmd := range cmds {
		evaluated, err := flow.EvaluateCommand(cmd, o.js)
		if err != nil {
			return err
		}
		for k, v := range evaluated.(*flow.DefineVariablesCommand).Env {
			o.js.PutEnv(k, v)
		}
	}
	return nil
}

// platformInfo caches the driver's device info.
func (o *Orchestra) platformInfo(ctx context.Context) (*core.PlatformInfo, error) {
	o.mu.Lock()
	cached := o.deviceInfo
	o.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	info, err := o.driver.DeviceInfo(ctx)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.deviceInfo = info
	o.mu.Unlock()
	return info, nil
}

// touch records a mutating interaction.
func (o *Orchestra) touch() {
	o.mu.Lock()
	o.lastInteraction = time.Now()
	o.mu.Unlock()
}

// adjusted shortens t by the time elapsed since the last interaction.
func (o *Orchestra) adjusted(t time.Duration) time.Duration {
	o.mu.Lock()
	elapsed := time.Since(o.lastInteraction)
	o.mu.Unlock()
	if t -= elapsed; t < 0 {
		return 0
	}
	return t
}

func (o *Orchestra) setCopiedText(text string) {
	o.mu.Lock()
	o.copiedText = text
	o.mu.Unlock()
	o.js.SetCopiedText(text)
}

func (o *Orchestra) getCopiedText() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.copiedText
}

func (o *Orchestra) closeRecording() {
	o.mu.Lock()
	rec, file := o.recording, o.recordingFile
	o.recording, o.recordingFile = nil, nil
	o.mu.Unlock()

	if rec != nil {
		if err := rec.Close(); err != nil {
			logger.Warn("closing screen recording: %v", err)
		}
	}
	if file != nil {
		file.Close()
	}
}
