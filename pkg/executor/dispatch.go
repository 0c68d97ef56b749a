package executor

import (
	"context"
	"errors"
	"time"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
	"github.com/devicelab-dev/maestro-orchestra/pkg/flow"
	"github.com/devicelab-dev/maestro-orchestra/pkg/logger"
)

var (
	// errCommandSkipped is returned by handlers whose guard was false.
	errCommandSkipped = errors.New("command skipped")
	// errFlowStopped ends a top-level command list after ResolutionFail.
	errFlowStopped = errors.New("flow stopped")
)

// commandWarned is returned by handlers that finished with a non-fatal problem.
type commandWarned struct {
	msg string
}

func (w *commandWarned) Error() string { return w.msg }

// dispatch runs cmds in order. Nested lists run in a JS sub-scope and
// return the failing command's error; top-level lists return errFlowStopped.
// The bool reports whether any command mutated device state.
func (o *Orchestra) dispatch(ctx context.Context, cmds []flow.Command, cfg *flow.Config, nested bool) (bool, error) {
	if nested {
		o.js.EnterScope()
		defer o.js.LeaveScope()
	}

	mutated := false
	for i, cmd := range cmds {
		m, err := o.runCommand(ctx, i, cmd, cfg, nested)
		mutated = mutated || m
		if err != nil {
			return mutated, err
		}
	}
	return mutated, nil
}

func (o *Orchestra) runCommand(ctx context.Context, index int, cmd flow.Command, cfg *flow.Config, nested bool) (bool, error) {
	if ctx.Err() == nil {
		if err := o.controller.WaitIfPaused(ctx); err != nil {
			logger.Debug("[Command execution] wait interrupted: %v", err)
		}
	}
	if ctx.Err() != nil {
		logger.Info("[Command execution] Command skipped due to cancellation: %s", flow.Description(cmd))
		o.cb.skipped(index, cmd)
		return false, nil
	}

	evaluated, evalErr := flow.EvaluateCommand(cmd, o.js)
	err := evalErr
	if err == nil {
		o.metadata.update(cmd, func(md *CommandMetadata) {
			md.EvaluatedCommand = evaluated
			md.LabeledCommand = evaluated.Label()
		})
	}

	o.cb.start(index, cmd)
	if !nested {
		o.subscribeLogs(cmd)
	}
	unregister := o.insights.OnInsightsUpdated(func(in core.Insight) {
		o.metadata.update(cmd, func(md *CommandMetadata) {
			md.Insight = &in
		})
	})
	defer unregister()

	started := time.Now()
	mutated := false
	if err == nil {
		mutated, err = o.executeCommand(ctx, cmd, evaluated, cfg)
	}
	o.metadata.update(cmd, func(md *CommandMetadata) {
		md.Duration = time.Since(started)
	})

	if err == nil {
		if mutated {
			o.touch()
		}
		o.cb.complete(index, cmd)
		return mutated, nil
	}

	// Evaluation errors always fail, even for optional commands.
	var warned *commandWarned
	switch {
	case evalErr != nil:
	case errors.Is(err, errCommandSkipped):
		logger.Info("[Command execution] CommandSkipped: %s", flow.Description(cmd))
		o.cb.skipped(index, cmd)
		return false, nil

	case errors.As(err, &warned) || flow.IsOptional(cmd):
		logger.Info("[Command execution] CommandWarned: %s", err)
		o.insights.Report(core.Insight{Message: err.Error(), Level: core.InsightWarning})
		o.cb.warned(index, cmd)
		return false, nil
	}

	logger.Error("[Command execution] CommandFailed: %s: %v", flow.Description(cmd), err)
	if o.cb.failed(index, cmd, err) == ResolutionContinue {
		return false, nil
	}
	if nested {
		return false, err
	}
	return false, errFlowStopped
}

// subscribeLogs routes JS console output into cmd's metadata.
func (o *Orchestra) subscribeLogs(cmd flow.Command) {
	o.js.OnLogMessage(func(line string) {
		logger.Info("JsConsole: %s", line)
		o.metadata.update(cmd, func(md *CommandMetadata) {
			md.LogMessages = append(md.LogMessages, line)
		})
	})
}

// executeCommand routes an evaluated command to its handler. raw is the
// compiled command, used where the handler must re-evaluate or key metadata.
func (o *Orchestra) executeCommand(ctx context.Context, raw, cmd flow.Command, cfg *flow.Config) (bool, error) {
	if ctx.Err() != nil {
		return false, errCommandSkipped
	}

	switch c := cmd.(type) {
	case *flow.TapOnElementCommand:
		return o.tapOnElement(ctx, c, cfg)
	case *flow.TapOnPointCommand:
		return o.tapOnPoint(ctx, c, cfg)
	case *flow.SwipeCommand:
		return o.swipe(ctx, c)
	case *flow.ScrollCommand:
		return true, o.driver.ScrollVertical(ctx)
	case *flow.ScrollUntilVisibleCommand:
		return o.scrollUntilVisible(ctx, c)
	case *flow.BackPressCommand:
		return true, o.driver.BackPress(ctx)
	case *flow.HideKeyboardCommand:
		return true, o.driver.HideKeyboard(ctx)
	case *flow.PressKeyCommand:
		return true, o.driver.PressKey(ctx, c.Key)

	case *flow.InputTextCommand:
		return o.inputText(ctx, c.Text)
	case *flow.InputRandomCommand:
		return o.inputText(ctx, randomText(c.DataType, c.Length))
	case *flow.EraseTextCommand:
		return o.eraseText(ctx, c, cfg)
	case *flow.CopyTextFromCommand:
		return o.copyTextFrom(ctx, c)
	case *flow.PasteTextCommand:
		return o.pasteText(ctx)
	case *flow.SetClipboardCommand:
		o.setCopiedText(c.Text)
		return false, nil

	case *flow.AssertConditionCommand:
		return o.assertCondition(ctx, c)
	case *flow.AssertNoDefectsWithAICommand:
		return o.assertNoDefectsWithAI(ctx, raw)
	case *flow.AssertWithAICommand:
		return o.assertWithAI(ctx, raw, c)
	case *flow.ExtractTextWithAICommand:
		return o.extractTextWithAI(ctx, raw, c)

	case *flow.LaunchAppCommand:
		return o.launchApp(ctx, c)
	case *flow.StopAppCommand:
		return true, o.driver.StopApp(ctx, c.AppID)
	case *flow.KillAppCommand:
		return true, o.driver.KillApp(ctx, c.AppID)
	case *flow.ClearStateCommand:
		return o.clearState(ctx, c)
	case *flow.ClearKeychainCommand:
		if err := o.driver.ClearKeychain(ctx); err != nil {
			return false, core.ErrUnableToClearState.WithCause(err)
		}
		return true, nil
	case *flow.SetPermissionsCommand:
		if err := o.driver.SetPermissions(ctx, c.AppID, c.Permissions); err != nil {
			return false, core.ErrUnableToSetPermissions.WithCause(err)
		}
		return true, nil

	case *flow.SetLocationCommand:
		return o.setLocation(ctx, c)
	case *flow.SetOrientationCommand:
		return true, o.driver.SetOrientation(ctx, c.Orientation)
	case *flow.SetAirplaneModeCommand:
		return true, o.driver.SetAirplaneMode(ctx, c.Enabled)
	case *flow.ToggleAirplaneModeCommand:
		enabled, err := o.driver.IsAirplaneModeEnabled(ctx)
		if err != nil {
			return false, err
		}
		return true, o.driver.SetAirplaneMode(ctx, !enabled)
	case *flow.TravelCommand:
		return o.travel(ctx, c)
	case *flow.OpenLinkCommand:
		return o.openLink(ctx, c, cfg)

	case *flow.RepeatCommand:
		return o.repeat(ctx, raw.(*flow.RepeatCommand), c, cfg)
	case *flow.RetryCommand:
		return o.retry(ctx, c, cfg)
	case *flow.RunFlowCommand:
		return o.runFlow(ctx, c, cfg)
	case *flow.RunScriptCommand:
		return o.runScript(ctx, c)
	case *flow.EvalScriptCommand:
		_, err := o.js.EvaluateScript(c.Script, nil, "", false)
		return true, err
	case *flow.DefineVariablesCommand:
		for k, v := range c.Env {
			o.js.PutEnv(k, v)
		}
		return false, nil
	case *flow.ApplyConfigurationCommand:
		return false, nil

	case *flow.TakeScreenshotCommand:
		return false, o.takeScreenshot(ctx, raw, c.Path)
	case *flow.StartRecordingCommand:
		return false, o.startRecording(ctx, raw, c.Path)
	case *flow.StopRecordingCommand:
		o.closeRecording()
		return false, nil
	case *flow.AddMediaCommand:
		return true, o.driver.AddMedia(ctx, c.Files)
	case *flow.WaitForAnimationToEndCommand:
		timeout := 15 * time.Second
		if c.Timeout != nil {
			timeout = time.Duration(*c.Timeout) * time.Millisecond
		}
		return true, o.driver.WaitForAnimationToEnd(ctx, timeout)
	}

	return false, core.ErrInvalidCommand.WithMessagef("unsupported command: %s", cmd.Type())
}
