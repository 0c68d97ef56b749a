package executor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
	"github.com/devicelab-dev/maestro-orchestra/pkg/flow"
)

func (o *Orchestra) screenshotBytes(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := o.driver.TakeScreenshot(ctx, &buf, true); err != nil {
		return nil, fmt.Errorf("take screenshot: %w", err)
	}
	return buf.Bytes(), nil
}

func (o *Orchestra) aiScreen(ctx context.Context) ([]byte, error) {
	if o.opts.AI == nil {
		return nil, core.ErrAINotConfigured
	}
	return o.screenshotBytes(ctx)
}

func (o *Orchestra) generatedOutput(cmd flow.Command, defects []core.Defect, screen []byte) {
	if o.cb.OnCommandGeneratedOutput != nil {
		o.cb.OnCommandGeneratedOutput(cmd, defects, screen)
	}
}

func (o *Orchestra) assertNoDefectsWithAI(ctx context.Context, raw flow.Command) (bool, error) {
	screen, err := o.aiScreen(ctx)
	if err != nil {
		return false, err
	}
	defects, err := o.opts.AI.FindDefects(ctx, screen)
	if err != nil {
		return false, err
	}
	if len(defects) == 0 {
		return false, nil
	}

	o.generatedOutput(raw, defects, screen)
	lines := make([]string, len(defects))
	for i, d := range defects {
		lines[i] = "- " + d.Category + ": " + d.Reasoning
	}
	reasoning := strings.Join(lines, "\n")
	o.metadata.update(raw, func(md *CommandMetadata) { md.AIReasoning = reasoning })

	return false, core.AssertionFailure(fmt.Sprintf("Found %d possible defects", len(defects)), nil, reasoning)
}

func (o *Orchestra) assertWithAI(ctx context.Context, raw flow.Command, c *flow.AssertWithAICommand) (bool, error) {
	screen, err := o.aiScreen(ctx)
	if err != nil {
		return false, err
	}
	defect, err := o.opts.AI.PerformAssertion(ctx, screen, c.Assertion)
	if err != nil {
		return false, err
	}
	if defect == nil {
		return false, nil
	}

	o.generatedOutput(raw, []core.Defect{*defect}, screen)
	o.metadata.update(raw, func(md *CommandMetadata) { md.AIReasoning = defect.Reasoning })
	return false, core.AssertionFailure(fmt.Sprintf("Assertion %q failed", c.Assertion), nil, defect.Reasoning)
}

func (o *Orchestra) extractTextWithAI(ctx context.Context, raw flow.Command, c *flow.ExtractTextWithAICommand) (bool, error) {
	screen, err := o.aiScreen(ctx)
	if err != nil {
		return false, err
	}
	text, err := o.opts.AI.ExtractText(ctx, screen, c.Query)
	if err != nil {
		return false, err
	}
	name := c.OutputVariable
	if name == "" {
		name = flow.DefaultAIOutputVariable
	}
	o.js.PutEnv(name, text)
	o.metadata.update(raw, func(md *CommandMetadata) { md.AIReasoning = text })
	return false, nil
}
