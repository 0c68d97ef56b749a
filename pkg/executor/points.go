package executor

import (
	"strconv"
	"strings"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
)

// parsePoint resolves "x, y" or "x%, y%" inside box. Absolute values are
// offsets from the box origin; percentages must lie in 0..100.
func parsePoint(s string, box core.Bounds) (core.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return core.Point{}, core.ErrInvalidCommand.WithMessagef("invalid point %q", s)
	}

	var coords [2]int
	for i, raw := range parts {
		raw = strings.TrimSpace(raw)
		size, origin := box.Width, box.X
		if i == 1 {
			size, origin = box.Height, box.Y
		}

		if strings.HasSuffix(raw, "%") {
			pct, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(raw, "%")))
			if err != nil {
				return core.Point{}, core.ErrInvalidCommand.WithMessagef("invalid point %q", s)
			}
			if pct < 0 || pct > 100 {
				return core.Point{}, core.ErrInvalidCommand.WithMessagef("invalid point %q: percentages must be between 0 and 100", s)
			}
			coords[i] = origin + size*pct/100
			continue
		}

		v, err := strconv.Atoi(raw)
		if err != nil {
			return core.Point{}, core.ErrInvalidCommand.WithMessagef("invalid point %q", s)
		}
		coords[i] = origin + v
	}
	return core.Point{X: coords[0], Y: coords[1]}, nil
}

// screenBox is the full screen as bounds.
func screenBox(info *core.PlatformInfo) core.Bounds {
	return core.Bounds{Width: info.ScreenWidth, Height: info.ScreenHeight}
}

// swipeVector returns the start and end of a directional swipe across box,
// as fractions of its size.
func swipeVector(direction string, box core.Bounds) (core.Point, core.Point, bool) {
	at := func(fx, fy float64) core.Point {
		return core.Point{
			X: box.X + int(float64(box.Width)*fx),
			Y: box.Y + int(float64(box.Height)*fy),
		}
	}
	switch strings.ToUpper(direction) {
	case "UP":
		return at(0.5, 0.5), at(0.5, 0.1), true
	case "DOWN":
		return at(0.5, 0.2), at(0.5, 0.9), true
	case "LEFT":
		return at(0.9, 0.5), at(0.1, 0.5), true
	case "RIGHT":
		return at(0.1, 0.5), at(0.9, 0.5), true
	}
	return core.Point{}, core.Point{}, false
}

// swipeFromCenter returns a swipe from the center of box towards its edge.
func swipeFromCenter(direction string, box core.Bounds) (core.Point, core.Point, bool) {
	cx, cy := box.Center()
	start := core.Point{X: cx, Y: cy}
	switch strings.ToUpper(direction) {
	case "UP":
		return start, core.Point{X: cx, Y: box.Y + box.Height/10}, true
	case "DOWN":
		return start, core.Point{X: cx, Y: box.Y + box.Height*9/10}, true
	case "LEFT":
		return start, core.Point{X: box.X + box.Width/10, Y: cy}, true
	case "RIGHT":
		return start, core.Point{X: box.X + box.Width*9/10, Y: cy}, true
	}
	return core.Point{}, core.Point{}, false
}
