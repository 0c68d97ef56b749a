package executor

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
	"github.com/devicelab-dev/maestro-orchestra/pkg/flow"
	"github.com/devicelab-dev/maestro-orchestra/pkg/logger"
)

const eraseSettleTimeout = 3 * time.Second

func appID(cfg *flow.Config) string {
	if cfg == nil {
		return ""
	}
	return cfg.AppID
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// ============================================
// Navigation & Interaction
// ============================================

func (o *Orchestra) tapOnElement(ctx context.Context, c *flow.TapOnElementCommand, cfg *flow.Config) (bool, error) {
	found, err := o.findElement(ctx, &c.Selector, o.lookupTimeout(flow.IsOptional(c)))
	if err != nil {
		return false, err
	}

	box := found.element.Bounds
	x, y := box.Center()
	point := core.Point{X: x, Y: y}
	if c.Point != "" {
		if point, err = parsePoint(c.Point, box); err != nil {
			return false, err
		}
	}

	return true, o.driver.Tap(ctx, core.TapRequest{
		Point:           point,
		AppID:           appID(cfg),
		LongPress:       c.LongPress,
		RepeatCount:     c.Repeat,
		RepeatDelay:     millis(c.DelayMs),
		RetryIfNoChange: boolOr(c.RetryTapIfNoChange, false),
		WaitToSettle:    millis(c.WaitToSettleTimeoutMs),
	})
}

func (o *Orchestra) tapOnPoint(ctx context.Context, c *flow.TapOnPointCommand, cfg *flow.Config) (bool, error) {
	info, err := o.platformInfo(ctx)
	if err != nil {
		return false, err
	}
	point, err := parsePoint(c.Point, screenBox(info))
	if err != nil {
		return false, err
	}
	return true, o.driver.Tap(ctx, core.TapRequest{
		Point:           point,
		AppID:           appID(cfg),
		LongPress:       c.LongPress,
		RepeatCount:     c.Repeat,
		RepeatDelay:     millis(c.DelayMs),
		RetryIfNoChange: boolOr(c.RetryTapIfNoChange, false),
		WaitToSettle:    millis(c.WaitToSettleTimeoutMs),
	})
}

func (o *Orchestra) swipe(ctx context.Context, c *flow.SwipeCommand) (bool, error) {
	info, err := o.platformInfo(ctx)
	if err != nil {
		return false, err
	}
	req := core.SwipeRequest{
		Duration:     millis(c.DurationMs()),
		WaitToSettle: millis(c.WaitToSettleTimeoutMs),
	}

	switch {
	case c.Start != "" && c.End != "":
		if req.Start, err = parsePoint(c.Start, screenBox(info)); err != nil {
			return false, err
		}
		if req.End, err = parsePoint(c.End, screenBox(info)); err != nil {
			return false, err
		}

	case c.From != nil:
		found, err := o.findElement(ctx, c.From, o.lookupTimeout(flow.IsOptional(c)))
		if err != nil {
			return false, err
		}
		start, end, ok := swipeFromCenter(c.Direction, found.element.Bounds)
		if !ok {
			return false, core.ErrInvalidCommand.WithMessagef("invalid swipe direction %q", c.Direction)
		}
		// Extend to the screen edge rather than the element edge.
		_, end, _ = swipeFromCenter(c.Direction, screenBox(info))
		end = alignAxis(c.Direction, start, end)
		req.Start, req.End = start, end

	case c.Direction != "":
		start, end, ok := swipeVector(c.Direction, screenBox(info))
		if !ok {
			return false, core.ErrInvalidCommand.WithMessagef("invalid swipe direction %q", c.Direction)
		}
		req.Start, req.End = start, end

	default:
		return false, core.ErrInvalidCommand.WithMessage("swipe needs a direction or start and end points")
	}

	return true, o.driver.Swipe(ctx, req)
}

// alignAxis keeps end on the swipe line through start.
func alignAxis(direction string, start, end core.Point) core.Point {
	switch strings.ToUpper(direction) {
	case "UP", "DOWN":
		end.X = start.X
	default:
		end.Y = start.Y
	}
	return end
}

// ============================================
// Text
// ============================================

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

func (o *Orchestra) inputText(ctx context.Context, text string) (bool, error) {
	if !o.driver.IsUnicodeInputSupported() && !isASCII(text) {
		return false, core.ErrUnicodeNotSupported.WithMessagef("unicode input is not supported: %q", text)
	}
	return true, o.driver.InputText(ctx, text)
}

func (o *Orchestra) eraseText(ctx context.Context, c *flow.EraseTextCommand, cfg *flow.Config) (bool, error) {
	if err := o.driver.EraseText(ctx, c.Count()); err != nil {
		return false, err
	}
	if err := o.driver.WaitForAppToSettle(ctx, appID(cfg), eraseSettleTimeout); err != nil {
		logger.Debug("wait for app to settle: %v", err)
	}
	return true, nil
}

func (o *Orchestra) copyTextFrom(ctx context.Context, c *flow.CopyTextFromCommand) (bool, error) {
	found, err := o.findElement(ctx, &c.Selector, o.lookupTimeout(flow.IsOptional(c)))
	if err != nil {
		return false, err
	}
	node := found.element.Node
	for _, attr := range []string{core.AttrText, core.AttrHintText, core.AttrAccessibilityText} {
		if v := node.Attr(attr); v != "" {
			o.setCopiedText(v)
			return false, nil
		}
	}
	return false, core.ErrUnableToCopyText.WithMessage("Element does not contain text to copy: " + c.Selector.Description())
}

func (o *Orchestra) pasteText(ctx context.Context) (bool, error) {
	text := o.getCopiedText()
	if text == "" {
		return false, nil
	}
	return o.inputText(ctx, text)
}

// ============================================
// App Management
// ============================================

func (o *Orchestra) launchApp(ctx context.Context, c *flow.LaunchAppCommand) (bool, error) {
	if c.ClearKeychain {
		if err := o.driver.ClearKeychain(ctx); err != nil {
			return false, core.ErrUnableToClearState.WithCause(err)
		}
	}
	if c.ClearState {
		if err := o.driver.ClearAppState(ctx, c.AppID); err != nil {
			return false, core.ErrUnableToClearState.WithCause(err)
		}
	}

	permissions := c.Permissions
	if len(permissions) == 0 {
		permissions = map[string]string{"all": "allow"}
	}
	if err := o.driver.SetPermissions(ctx, c.AppID, permissions); err != nil {
		return false, core.ErrUnableToSetPermissions.WithCause(err)
	}

	if err := o.driver.LaunchApp(ctx, c.AppID, c.Arguments, boolOr(c.StopApp, true)); err != nil {
		return false, core.ErrUnableToLaunchApp.WithMessagef("Unable to launch app %s", c.AppID).WithCause(err)
	}
	return true, nil
}

func (o *Orchestra) clearState(ctx context.Context, c *flow.ClearStateCommand) (bool, error) {
	if err := o.driver.ClearAppState(ctx, c.AppID); err != nil {
		return false, core.ErrUnableToClearState.WithCause(err)
	}
	if err := o.driver.SetPermissions(ctx, c.AppID, map[string]string{"all": "unset"}); err != nil {
		return false, core.ErrUnableToSetPermissions.WithCause(err)
	}
	return true, nil
}

// ============================================
// Device Control
// ============================================

func parseCoordinate(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, core.ErrInvalidCommand.WithMessagef("invalid coordinate %q", s)
	}
	return v, nil
}

func (o *Orchestra) setLocation(ctx context.Context, c *flow.SetLocationCommand) (bool, error) {
	lat, err := parseCoordinate(c.Latitude)
	if err != nil {
		return false, err
	}
	lon, err := parseCoordinate(c.Longitude)
	if err != nil {
		return false, err
	}
	return true, o.driver.SetLocation(ctx, lat, lon)
}

func (o *Orchestra) openLink(ctx context.Context, c *flow.OpenLinkCommand, cfg *flow.Config) (bool, error) {
	return true, o.driver.OpenLink(ctx, c.Link, appID(cfg), boolOr(c.AutoVerify, false), boolOr(c.Browser, false))
}

// ============================================
// Scripts
// ============================================

func (o *Orchestra) runScript(ctx context.Context, c *flow.RunScriptCommand) (bool, error) {
	ok, err := o.evaluateCondition(ctx, c.Condition, nil)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, errCommandSkipped
	}
	if _, err := o.js.EvaluateScript(c.Script, c.Env, c.SourceDescription, true); err != nil {
		return false, err
	}
	return true, nil
}
