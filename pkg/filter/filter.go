// Package filter compiles element selectors into node-set filters over a
// view-hierarchy snapshot.
package filter

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
	"github.com/devicelab-dev/maestro-orchestra/pkg/flow"
)

// ElementFilter narrows a node list. Filters never mutate their input.
type ElementFilter func(nodes []*core.TreeNode) []*core.TreeNode

// Compiled is a selector's filter together with its human-readable description.
type Compiled struct {
	Description string
	Filter      ElementFilter
}

// Options supplies lookups that need the device.
type Options struct {
	// CSS returns the nodes matching a CSS selector, or nil if unsupported.
	CSS func(css string) []*core.TreeNode
}

// Compile turns a selector into a filter. childOf is not part of the
// compiled filter: the caller resolves the parent first and applies the
// filter to the parent's sub-hierarchy.
func Compile(sel *flow.Selector, opts Options) (Compiled, error) {
	if sel == nil {
		return Compiled{Filter: identity}, nil
	}
	c := &compiler{opts: opts, path: map[*flow.Selector]bool{}}
	return c.compile(sel)
}

// CheckCycles reports ErrSelectorCycle if any selector reachable from sel,
// including through childOf, refers back to one of its ancestors.
func CheckCycles(sel *flow.Selector) error {
	return walk(sel, map[*flow.Selector]bool{})
}

func walk(sel *flow.Selector, path map[*flow.Selector]bool) error {
	if sel == nil {
		return nil
	}
	if path[sel] {
		return core.ErrSelectorCycle.WithMessagef("selector cycle detected at %s", sel.Description())
	}
	path[sel] = true
	defer delete(path, sel)

	for _, child := range relatives(sel) {
		if err := walk(child, path); err != nil {
			return err
		}
	}
	return nil
}

func relatives(sel *flow.Selector) []*flow.Selector {
	out := []*flow.Selector{sel.ChildOf, sel.Below, sel.Above, sel.LeftOf, sel.RightOf, sel.ContainsChild}
	return append(out, sel.ContainsDescendants...)
}

type compiler struct {
	opts Options
	path map[*flow.Selector]bool
}

func (c *compiler) compile(sel *flow.Selector) (Compiled, error) {
	if c.path[sel] {
		return Compiled{}, core.ErrSelectorCycle.WithMessagef("selector cycle detected at %s", sel.Description())
	}
	c.path[sel] = true
	defer delete(c.path, sel)

	if err := walk(sel.ChildOf, c.path); err != nil {
		return Compiled{}, err
	}

	var basic, relative []ElementFilter
	var descriptions []string

	if sel.Text != "" {
		descriptions = append(descriptions, "Text matching regex: "+sel.Text)
		basic = append(basic, TextMatches(sel.Text))
	}

	if sel.ID != "" {
		descriptions = append(descriptions, "Id matching regex: "+sel.ID)
		basic = append(basic, IDMatches(sel.ID))
	}

	if sel.Width != 0 || sel.Height != 0 {
		descriptions = append(descriptions, "Size: "+sizeDescription(sel))
		basic = append(basic, SizeMatches(sel.Width, sel.Height, sel.Tolerance))
	}

	nested := []struct {
		sel    *flow.Selector
		label  string
		filter func(ElementFilter) ElementFilter
	}{
		{sel.Below, "Below", Below},
		{sel.Above, "Above", Above},
		{sel.LeftOf, "Left of", LeftOf},
		{sel.RightOf, "Right of", RightOf},
		{sel.ContainsChild, "Contains child", ContainsChild},
	}
	for _, n := range nested {
		if n.sel == nil {
			continue
		}
		inner, err := c.compile(n.sel)
		if err != nil {
			return Compiled{}, err
		}
		descriptions = append(descriptions, n.label+": "+n.sel.Description())
		relative = append(relative, n.filter(inner.Filter))
	}

	if len(sel.ContainsDescendants) > 0 {
		var filters []ElementFilter
		var descs []string
		for _, d := range sel.ContainsDescendants {
			inner, err := c.compile(d)
			if err != nil {
				return Compiled{}, err
			}
			filters = append(filters, inner.Filter)
			descs = append(descs, d.Description())
		}
		descriptions = append(descriptions, "Contains descendants: "+strings.Join(descs, "; "))
		relative = append(relative, ContainsDescendants(filters))
	}

	for _, name := range sel.TraitList() {
		desc, f, err := traitFilter(name)
		if err != nil {
			return Compiled{}, err
		}
		descriptions = append(descriptions, desc)
		basic = append(basic, f)
	}

	states := []struct {
		want     *bool
		yes, no  string
		property func(*core.TreeNode) *bool
	}{
		{sel.Enabled, "Enabled", "Disabled", func(n *core.TreeNode) *bool { return n.Enabled }},
		{sel.Selected, "Selected", "Not selected", func(n *core.TreeNode) *bool { return n.Selected }},
		{sel.Checked, "Checked", "Not checked", func(n *core.TreeNode) *bool { return n.Checked }},
		{sel.Focused, "Focused", "Not focused", func(n *core.TreeNode) *bool { return n.Focused }},
	}
	for _, s := range states {
		if s.want == nil {
			continue
		}
		if *s.want {
			descriptions = append(descriptions, s.yes)
		} else {
			descriptions = append(descriptions, s.no)
		}
		basic = append(basic, StateMatches(s.property, *s.want))
	}

	if sel.CSS != "" {
		descriptions = append(descriptions, "CSS: "+sel.CSS)
		basic = append(basic, CSSMatches(c.opts.CSS, sel.CSS))
	}

	basicFilter := identity
	if len(basic) > 0 {
		basicFilter = DeepestMatchingElement(Intersect(basic))
	}

	// The basic filter leads, so matches stay in document order.
	result := Intersect(append([]ElementFilter{basicFilter}, relative...))

	if sel.Index != "" {
		idx, err := strconv.ParseFloat(strings.TrimSpace(sel.Index), 64)
		if err != nil {
			return Compiled{}, core.ErrInvalidCommand.WithMessagef("invalid index %q", sel.Index)
		}
		result = Compose(result, Index(int(math.Trunc(idx))))
	} else {
		result = Compose(result, ClickableFirst())
	}

	return Compiled{
		Description: strings.Join(descriptions, ", "),
		Filter:      result,
	}, nil
}

func sizeDescription(sel *flow.Selector) string {
	s := fmt.Sprintf("%dx%d", sel.Width, sel.Height)
	if sel.Tolerance != 0 {
		s += fmt.Sprintf("±%d", sel.Tolerance)
	}
	return s
}

func identity(nodes []*core.TreeNode) []*core.TreeNode { return nodes }

// compileRegex builds a case-insensitive, dot-all, multiline full-match
// pattern. Invalid patterns match literally.
func compileRegex(pattern string) *regexp.Regexp {
	if re, err := regexp.Compile(`(?ism)\A(?:` + pattern + `)\z`); err == nil {
		return re
	}
	return regexp.MustCompile(`(?ism)\A` + regexp.QuoteMeta(pattern) + `\z`)
}

// Intersect keeps the nodes accepted by every filter, in the order of the
// first filter's result.
func Intersect(filters []ElementFilter) ElementFilter {
	return func(nodes []*core.TreeNode) []*core.TreeNode {
		if len(filters) == 0 {
			return nodes
		}
		result := filters[0](nodes)
		for _, f := range filters[1:] {
			keep := toSet(f(nodes))
			var next []*core.TreeNode
			for _, n := range result {
				if keep[n] {
					next = append(next, n)
				}
			}
			result = next
		}
		return result
	}
}

// Compose applies filters in sequence.
func Compose(first, second ElementFilter) ElementFilter {
	return func(nodes []*core.TreeNode) []*core.TreeNode {
		return second(first(nodes))
	}
}

func toSet(nodes []*core.TreeNode) map[*core.TreeNode]bool {
	set := make(map[*core.TreeNode]bool, len(nodes))
	for _, n := range nodes {
		set[n] = true
	}
	return set
}

func filterNodes(nodes []*core.TreeNode, keep func(*core.TreeNode) bool) []*core.TreeNode {
	var out []*core.TreeNode
	for _, n := range nodes {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}

// TextMatches matches text, hintText or accessibilityText, also with
// newlines collapsed to spaces. A value equal to the pattern always matches.
func TextMatches(pattern string) ElementFilter {
	re := compileRegex(pattern)
	return func(nodes []*core.TreeNode) []*core.TreeNode {
		return filterNodes(nodes, func(n *core.TreeNode) bool {
			for _, key := range []string{core.AttrText, core.AttrHintText, core.AttrAccessibilityText} {
				if matchesValue(re, pattern, n.Attr(key)) {
					return true
				}
			}
			return false
		})
	}
}

func matchesValue(re *regexp.Regexp, pattern, value string) bool {
	if value == "" {
		return false
	}
	stripped := strings.ReplaceAll(value, "\n", " ")
	return re.MatchString(value) || pattern == value ||
		re.MatchString(stripped) || pattern == stripped
}

// IDMatches matches resource-id, or its suffix after the last "/".
func IDMatches(pattern string) ElementFilter {
	re := compileRegex(pattern)
	return func(nodes []*core.TreeNode) []*core.TreeNode {
		return filterNodes(nodes, func(n *core.TreeNode) bool {
			id := n.Attr(core.AttrResourceID)
			if id == "" {
				return false
			}
			if re.MatchString(id) {
				return true
			}
			if i := strings.LastIndex(id, "/"); i >= 0 {
				return re.MatchString(id[i+1:])
			}
			return false
		})
	}
}

// SizeMatches matches width and height within tolerance. Zero dimensions are ignored.
func SizeMatches(width, height, tolerance int) ElementFilter {
	within := func(actual, expected int) bool {
		d := actual - expected
		if d < 0 {
			d = -d
		}
		return d <= tolerance
	}
	return func(nodes []*core.TreeNode) []*core.TreeNode {
		return filterNodes(nodes, func(n *core.TreeNode) bool {
			b, ok := n.Bounds()
			if !ok {
				return false
			}
			if width != 0 && !within(b.Width, width) {
				return false
			}
			if height != 0 && !within(b.Height, height) {
				return false
			}
			return true
		})
	}
}

// StateMatches matches nodes whose boolean property equals want. Nodes
// that do not report the property never match.
func StateMatches(property func(*core.TreeNode) *bool, want bool) ElementFilter {
	return func(nodes []*core.TreeNode) []*core.TreeNode {
		return filterNodes(nodes, func(n *core.TreeNode) bool {
			v := property(n)
			return v != nil && *v == want
		})
	}
}

// CSSMatches keeps nodes returned by the CSS lookup.
func CSSMatches(lookup func(string) []*core.TreeNode, css string) ElementFilter {
	return func(nodes []*core.TreeNode) []*core.TreeNode {
		if lookup == nil {
			return nil
		}
		matched := toSet(lookup(css))
		return filterNodes(nodes, func(n *core.TreeNode) bool { return matched[n] })
	}
}

// DeepestMatchingElement drops every match that is an ancestor of another match.
func DeepestMatchingElement(f ElementFilter) ElementFilter {
	return func(nodes []*core.TreeNode) []*core.TreeNode {
		matches := f(nodes)
		set := toSet(matches)
		return filterNodes(matches, func(n *core.TreeNode) bool {
			for _, d := range n.Descendants() {
				if set[d] {
					return false
				}
			}
			return true
		})
	}
}

// ClickableFirst moves clickable nodes to the front, keeping relative order.
func ClickableFirst() ElementFilter {
	return func(nodes []*core.TreeNode) []*core.TreeNode {
		var clickable, other []*core.TreeNode
		for _, n := range nodes {
			if n.IsClickable() {
				clickable = append(clickable, n)
			} else {
				other = append(other, n)
			}
		}
		return append(clickable, other...)
	}
}

// Index selects the node at a 0-based position; out of range selects nothing.
func Index(idx int) ElementFilter {
	return func(nodes []*core.TreeNode) []*core.TreeNode {
		if idx < 0 || idx >= len(nodes) {
			return nil
		}
		return []*core.TreeNode{nodes[idx]}
	}
}

type scored struct {
	node *core.TreeNode
	dist int
}

// relativeTo keeps nodes for which some anchor satisfies accept, ordered by
// the distance to the nearest such anchor.
func relativeTo(anchors ElementFilter, accept func(node, anchor core.Bounds) (int, bool)) ElementFilter {
	return func(nodes []*core.TreeNode) []*core.TreeNode {
		var refs []core.Bounds
		for _, a := range anchors(nodes) {
			if b, ok := a.Bounds(); ok {
				refs = append(refs, b)
			}
		}
		var out []scored
		for _, n := range nodes {
			b, ok := n.Bounds()
			if !ok {
				continue
			}
			best := -1
			for _, r := range refs {
				if d, ok := accept(b, r); ok && (best < 0 || d < best) {
					best = d
				}
			}
			if best >= 0 {
				out = append(out, scored{n, best})
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].dist < out[j].dist })
		result := make([]*core.TreeNode, len(out))
		for i, s := range out {
			result[i] = s.node
		}
		return result
	}
}

// Below keeps nodes whose top edge is at or below an anchor's bottom edge.
func Below(anchors ElementFilter) ElementFilter {
	return relativeTo(anchors, func(n, a core.Bounds) (int, bool) {
		bottom := a.Y + a.Height
		return n.Y - bottom, n.Y >= bottom
	})
}

// Above keeps nodes whose bottom edge is at or above an anchor's top edge.
func Above(anchors ElementFilter) ElementFilter {
	return relativeTo(anchors, func(n, a core.Bounds) (int, bool) {
		bottom := n.Y + n.Height
		return a.Y - bottom, bottom <= a.Y
	})
}

// LeftOf keeps nodes whose right edge is at or left of an anchor's left edge.
func LeftOf(anchors ElementFilter) ElementFilter {
	return relativeTo(anchors, func(n, a core.Bounds) (int, bool) {
		right := n.X + n.Width
		return a.X - right, right <= a.X
	})
}

// RightOf keeps nodes whose left edge is at or right of an anchor's right edge.
func RightOf(anchors ElementFilter) ElementFilter {
	return relativeTo(anchors, func(n, a core.Bounds) (int, bool) {
		right := a.X + a.Width
		return n.X - right, n.X >= right
	})
}

// ContainsChild keeps nodes that have the first match of child as a direct child.
func ContainsChild(child ElementFilter) ElementFilter {
	return func(nodes []*core.TreeNode) []*core.TreeNode {
		matches := child(nodes)
		if len(matches) == 0 {
			return nil
		}
		target := matches[0]
		return filterNodes(nodes, func(n *core.TreeNode) bool {
			for _, c := range n.Children {
				if c == target {
					return true
				}
			}
			return false
		})
	}
}

// ContainsDescendants keeps nodes where every filter matches some strict descendant.
func ContainsDescendants(filters []ElementFilter) ElementFilter {
	return func(nodes []*core.TreeNode) []*core.TreeNode {
		return filterNodes(nodes, func(n *core.TreeNode) bool {
			desc := n.Descendants()
			if len(desc) == 0 {
				return false
			}
			for _, f := range filters {
				if len(f(desc)) == 0 {
					return false
				}
			}
			return true
		})
	}
}

const (
	squareTolerance   = 0.03
	longTextThreshold = 200
)

func traitFilter(name string) (string, ElementFilter, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "-", "_")) {
	case "text":
		return "Has text", hasTrait(func(n *core.TreeNode, _ core.Bounds) bool {
			return strings.TrimSpace(n.Attr(core.AttrText)) != ""
		}), nil
	case "square":
		return "Is square", hasTrait(func(_ *core.TreeNode, b core.Bounds) bool {
			return b.Height > 0 && math.Abs(1-float64(b.Width)/float64(b.Height)) < squareTolerance
		}), nil
	case "long_text":
		return "Has long text", hasTrait(func(n *core.TreeNode, _ core.Bounds) bool {
			return len([]rune(n.Attr(core.AttrText))) >= longTextThreshold
		}), nil
	}
	return "", nil, core.ErrInvalidCommand.WithMessagef("unknown trait %q", name)
}

func hasTrait(pred func(*core.TreeNode, core.Bounds) bool) ElementFilter {
	return func(nodes []*core.TreeNode) []*core.TreeNode {
		return filterNodes(nodes, func(n *core.TreeNode) bool {
			b, _ := n.Bounds()
			return pred(n, b)
		})
	}
}
