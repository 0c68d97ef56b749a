package executor

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
	"github.com/devicelab-dev/maestro-orchestra/pkg/flow"
	"github.com/devicelab-dev/maestro-orchestra/pkg/logger"
)

const maxRetriesAllowed = 3

// runSubFlow runs cmds with an isolated env: define variables first, then
// the onFlowStart hooks, the body if they succeeded, and the onFlowComplete
// hooks regardless. The first error wins.
func (o *Orchestra) runSubFlow(ctx context.Context, cmds []flow.Command, cfg, sub *flow.Config) (bool, error) {
	o.js.EnterEnvScope()
	defer o.js.LeaveEnvScope()

	defines, rest := flow.SplitDefineVariables(cmds)
	if err := o.defineVariables(defines); err != nil {
		return false, err
	}

	var mutated bool
	var err error
	if sub != nil && len(sub.OnFlowStart) > 0 {
		_, err = o.dispatch(ctx, sub.OnFlowStart, cfg, true)
	}
	if err == nil {
		mutated, err = o.dispatch(ctx, rest, cfg, true)
	}
	if sub != nil && len(sub.OnFlowComplete) > 0 {
		if _, completeErr := o.dispatch(ctx, sub.OnFlowComplete, cfg, true); err == nil {
			err = completeErr
		}
	}
	return mutated, err
}

// resetCommand clears cmd's runtime state, recursing into composites.
func (o *Orchestra) resetCommand(cmd flow.Command) {
	o.metadata.clear(cmd)
	o.cb.reset(cmd)
	if c, ok := cmd.(flow.Composite); ok {
		for _, sub := range c.SubCommands() {
			o.resetCommand(sub)
		}
	}
}

func (o *Orchestra) repeat(ctx context.Context, raw, c *flow.RepeatCommand, cfg *flow.Config) (bool, error) {
	maxRuns := math.MaxInt
	if f, err := strconv.ParseFloat(strings.TrimSpace(c.Times), 64); err == nil {
		maxRuns = int(f)
	}

	counter := 0
	mutated := false
	for counter < maxRuns && ctx.Err() == nil {
		cond, err := flow.EvaluateCondition(raw.Condition, o.js)
		if err != nil {
			return mutated, err
		}
		ok, err := o.evaluateCondition(ctx, cond, nil)
		if err != nil {
			return mutated, err
		}
		if !ok {
			break
		}

		if counter > 0 {
			for _, sub := range raw.Commands {
				o.resetCommand(sub)
			}
		}

		m, err := o.runSubFlow(ctx, c.Commands, cfg, nil)
		mutated = mutated || m
		counter++
		runs := counter
		o.metadata.update(raw, func(md *CommandMetadata) { md.NumberOfRuns = &runs })
		if err != nil {
			return mutated, err
		}
	}

	if counter == 0 {
		return false, errCommandSkipped
	}
	return mutated, nil
}

func (o *Orchestra) retry(ctx context.Context, c *flow.RetryCommand, cfg *flow.Config) (bool, error) {
	maxRetries := 1
	if n, err := strconv.Atoi(strings.TrimSpace(c.MaxRetries)); err == nil {
		maxRetries = n
	}
	maxRetries = min(max(maxRetries, 0), maxRetriesAllowed)

	for attempt := 0; ; attempt++ {
		mutated, err := o.runSubFlow(ctx, c.Commands, cfg, c.Config)
		if err == nil {
			return mutated, nil
		}
		if attempt >= maxRetries || ctx.Err() != nil {
			return false, err
		}

		msg := fmt.Sprintf("Retrying the commands due to an error: %s while execution (Attempt %d)", err, attempt+1)
		logger.Info("[Command execution] %s", msg)
		o.insights.Report(core.Insight{Message: msg, Level: core.InsightWarning})
	}
}

func (o *Orchestra) runFlow(ctx context.Context, c *flow.RunFlowCommand, cfg *flow.Config) (bool, error) {
	ok, err := o.evaluateCondition(ctx, c.Condition, nil)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, errCommandSkipped
	}
	return o.runSubFlow(ctx, c.Commands, cfg, c.Config)
}
