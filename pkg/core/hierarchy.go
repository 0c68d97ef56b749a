package core

import (
	"math"
	"regexp"
	"strconv"
)

// Attribute keys read from view-tree nodes.
const (
	AttrText              = "text"
	AttrHintText          = "hintText"
	AttrAccessibilityText = "accessibilityText"
	AttrResourceID        = "resource-id"
	AttrBounds            = "bounds"
	AttrClass             = "class"
)

// TreeNode is one node of a view-hierarchy snapshot.
type TreeNode struct {
	Attributes map[string]string `json:"attributes,omitempty"`
	Children   []*TreeNode       `json:"children,omitempty"`
	Clickable  *bool             `json:"clickable,omitempty"`
	Enabled    *bool             `json:"enabled,omitempty"`
	Focused    *bool             `json:"focused,omitempty"`
	Checked    *bool             `json:"checked,omitempty"`
	Selected   *bool             `json:"selected,omitempty"`
}

// Attr returns an attribute value, empty if unset.
func (n *TreeNode) Attr(key string) string {
	if n == nil || n.Attributes == nil {
		return ""
	}
	return n.Attributes[key]
}

// Aggregate returns the node and all descendants in document (pre-)order.
func (n *TreeNode) Aggregate() []*TreeNode {
	if n == nil {
		return nil
	}
	var out []*TreeNode
	var walk func(*TreeNode)
	walk = func(node *TreeNode) {
		out = append(out, node)
		for _, c := range node.Children {
			if c != nil {
				walk(c)
			}
		}
	}
	walk(n)
	return out
}

// Descendants returns every strict descendant of the node.
func (n *TreeNode) Descendants() []*TreeNode {
	all := n.Aggregate()
	if len(all) == 0 {
		return nil
	}
	return all[1:]
}

// IsClickable reports whether the clickable flag is set and true.
func (n *TreeNode) IsClickable() bool {
	return n != nil && n.Clickable != nil && *n.Clickable
}

// Bounds parses the node's bounds attribute.
func (n *TreeNode) Bounds() (Bounds, bool) {
	return ParseBounds(n.Attr(AttrBounds))
}

// Bounds represents element position and size
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

var boundsRe = regexp.MustCompile(`^\[(-?\d+),(-?\d+)\]\[(-?\d+),(-?\d+)\]$`)

// ParseBounds parses the "[x1,y1][x2,y2]" form used by view hierarchies.
func ParseBounds(s string) (Bounds, bool) {
	m := boundsRe.FindStringSubmatch(s)
	if m == nil {
		return Bounds{}, false
	}
	var v [4]int
	for i := range v {
		v[i], _ = strconv.Atoi(m[i+1])
	}
	return Bounds{X: v[0], Y: v[1], Width: v[2] - v[0], Height: v[3] - v[1]}, true
}

// UIElement is a resolved node together with its bounds.
type UIElement struct {
	Node   *TreeNode
	Bounds Bounds
}

// ToUIElement resolves a node's bounds. Nodes without bounds get a zero box.
func ToUIElement(n *TreeNode) UIElement {
	b, _ := n.Bounds()
	return UIElement{Node: n, Bounds: b}
}

// VisiblePercentage returns the fraction (0..1) of the element inside the screen.
func (e UIElement) VisiblePercentage(screenWidth, screenHeight int) float64 {
	b := e.Bounds
	if b.Width == 0 || b.Height == 0 {
		return 0
	}
	if b.X <= 0 && b.Y <= 0 && b.X+b.Width >= screenWidth && b.Y+b.Height >= screenHeight {
		return 1
	}
	visibleW := max(0, min(b.X+b.Width, screenWidth)-max(b.X, 0))
	visibleH := max(0, min(b.Y+b.Height, screenHeight)-max(b.Y, 0))
	return float64(visibleW*visibleH) / float64(b.Width*b.Height)
}

// IsNearScreenCenter reports whether the element's center lies within 10% of the
// screen center along the scroll axis of the given direction.
func (e UIElement) IsNearScreenCenter(direction string, screenWidth, screenHeight int) bool {
	cx, cy := e.Bounds.Center()
	const threshold = 0.1
	switch direction {
	case "LEFT", "RIGHT":
		return math.Abs(float64(cx-screenWidth/2)) <= threshold*float64(screenWidth)
	default:
		return math.Abs(float64(cy-screenHeight/2)) <= threshold*float64(screenHeight)
	}
}
