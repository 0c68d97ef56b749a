package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
	"github.com/devicelab-dev/maestro-orchestra/pkg/flow"
	"github.com/devicelab-dev/maestro-orchestra/pkg/logger"
)

const (
	scrollLookupTimeout    = 500 * time.Millisecond
	maxCenteringRetries    = 4
	minCenteringVisibility = 0.1
)

// swipeDirectionFor maps a scroll direction to the finger movement.
func swipeDirectionFor(scroll string) string {
	switch strings.ToUpper(scroll) {
	case "UP":
		return "DOWN"
	case "LEFT":
		return "RIGHT"
	case "RIGHT":
		return "LEFT"
	default:
		return "UP"
	}
}

func (o *Orchestra) scrollUntilVisible(ctx context.Context, c *flow.ScrollUntilVisibleCommand) (bool, error) {
	info, err := o.platformInfo(ctx)
	if err != nil {
		return false, err
	}
	direction := c.ScrollDirection()
	swipeDir := swipeDirectionFor(direction)
	var settle time.Duration
	if c.WaitToSettleTimeoutMs != nil {
		settle = millis(*c.WaitToSettleTimeoutMs)
	}
	start, end, _ := swipeFromCenter(swipeDir, screenBox(info))

	deadline := time.Now().Add(time.Duration(c.TimeoutMs()) * time.Millisecond)
	centeringRetries := 0
	var root *core.TreeNode

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return true, err
		}

		found, err := o.findElement(ctx, &c.Selector, scrollLookupTimeout)
		switch {
		case err == nil:
			root = found.root
			visible := found.element.VisiblePercentage(info.ScreenWidth, info.ScreenHeight)
			logger.Debug("scrollUntilVisible: %s visible %.2f", c.Selector.Description(), visible)
			if c.CenterElement && visible > minCenteringVisibility && centeringRetries <= maxCenteringRetries {
				if found.element.IsNearScreenCenter(direction, info.ScreenWidth, info.ScreenHeight) {
					return true, nil
				}
				centeringRetries++
			} else if visible >= c.VisibilityNormalized() {
				return true, nil
			}
		case errors.Is(err, core.ErrElementNotFound):
			var ee *core.ExecutionError
			if errors.As(err, &ee) {
				root = ee.Hierarchy
			}
		default:
			return true, err
		}

		if err := o.driver.Swipe(ctx, core.SwipeRequest{
			Start:        start,
			End:          end,
			Duration:     time.Duration(c.ScrollDurationMs()) * time.Millisecond,
			WaitToSettle: settle,
		}); err != nil {
			return true, err
		}
	}

	desc := c.Selector.Description()
	return true, core.ElementNotFound("No visible element found: "+desc, root, scrollDebugMessage(c, desc))
}

func scrollDebugMessage(c *flow.ScrollUntilVisibleCommand, desc string) string {
	settle := "default"
	if c.WaitToSettleTimeoutMs != nil {
		settle = fmt.Sprintf("%d ms", *c.WaitToSettleTimeoutMs)
	}
	return fmt.Sprintf(`Could not find a visible element with %s after scrolling %s.

Parameters used:
- timeout: %d ms
- speed: %s
- waitToSettleTimeoutMs: %s
- visibilityPercentage: %d%%
- centerElement: %t

Try:
- Increasing the timeout if the list is long.
- Lowering the speed so the hierarchy can settle between swipes.
- Lowering visibilityPercentage if the element is only partially shown.
- Checking the selector against the UI hierarchy in debug artifacts.`,
		desc, strings.ToLower(c.ScrollDirection()), c.TimeoutMs(), c.SpeedValue(), settle, c.Visibility(), c.CenterElement)
}
