package executor

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
	"github.com/devicelab-dev/maestro-orchestra/pkg/flow"
)

// evaluateCondition checks every set sub-condition; all must hold. A nil
// condition is true. timeout bounds the visibility checks and defaults to
// the optional lookup timeout.
func (o *Orchestra) evaluateCondition(ctx context.Context, cond *flow.Condition, timeout *time.Duration) (bool, error) {
	if cond == nil {
		return true, nil
	}

	if cond.Platform != "" {
		info, err := o.platformInfo(ctx)
		if err != nil {
			return false, err
		}
		if !strings.EqualFold(cond.Platform, info.Platform) {
			return false, nil
		}
	}

	lookup := o.opts.OptionalLookupTimeout
	if timeout != nil {
		lookup = *timeout
	}

	if cond.Visible != nil {
		_, err := o.findElement(ctx, cond.Visible, o.adjusted(lookup))
		if errors.Is(err, core.ErrElementNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}

	if cond.NotVisible != nil {
		gone, err := o.waitUntilNotVisible(ctx, cond.NotVisible, o.adjusted(lookup))
		if err != nil || !gone {
			return false, err
		}
	}

	if cond.ScriptCondition != nil && !isTruthy(*cond.ScriptCondition) {
		return false, nil
	}
	if cond.Equal != nil && cond.Equal.Value1 != cond.Equal.Value2 {
		return false, nil
	}
	if cond.NotEqual != nil && cond.NotEqual.Value1 == cond.NotEqual.Value2 {
		return false, nil
	}
	return true, nil
}

// waitUntilNotVisible polls one snapshot per attempt until sel no longer
// matches.
func (o *Orchestra) waitUntilNotVisible(ctx context.Context, sel *flow.Selector, timeout time.Duration) (bool, error) {
	return pollUntil(ctx, timeout, lookupInterval, func() (bool, error) {
		_, err := o.findElement(ctx, sel, 0)
		if errors.Is(err, core.ErrElementNotFound) {
			return true, nil
		}
		return false, err
	})
}

// isTruthy interprets an evaluated script condition.
func isTruthy(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	if strings.EqualFold(v, "false") || v == "undefined" || v == "null" {
		return false
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f == 0 {
		return false
	}
	return true
}

// assertCondition fails with an assertion error when cond does not hold
// within the command's timeout.
func (o *Orchestra) assertCondition(ctx context.Context, c *flow.AssertConditionCommand) (bool, error) {
	var timeout time.Duration
	if ms, ok := c.TimeoutMs(); ok {
		timeout = time.Duration(ms) * time.Millisecond
	} else if flow.IsOptional(c) {
		timeout = o.opts.OptionalLookupTimeout
	} else {
		timeout = o.opts.LookupTimeout
	}

	ok, err := o.evaluateCondition(ctx, &c.Condition, &timeout)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}

	root, _ := o.driver.ViewHierarchy(ctx)
	msg := c.Condition.FailureMessage()
	return false, core.AssertionFailure(msg, root, msg)
}
