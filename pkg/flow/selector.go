package flow

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Selector represents element selection criteria.
// Pure data structure; pkg/filter compiles it into a node filter.
type Selector struct {
	// Primary selectors (regular expressions)
	Text string `yaml:"text"`
	ID   string `yaml:"id"`

	// Size matching (0 means unset)
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	Tolerance int `yaml:"tolerance"`

	// State filters
	Enabled  *bool `yaml:"enabled"`
	Selected *bool `yaml:"selected"`
	Checked  *bool `yaml:"checked"`
	Focused  *bool `yaml:"focused"`

	// Index for multiple matches (string for variable support)
	Index string `yaml:"index"`

	// Traits (comma-separated, e.g. "text,square")
	Traits string `yaml:"traits"`

	// CSS selector for web views
	CSS string `yaml:"css"`

	// Relative selectors
	ChildOf             *Selector   `yaml:"childOf"`
	Below               *Selector   `yaml:"below"`
	Above               *Selector   `yaml:"above"`
	LeftOf              *Selector   `yaml:"leftOf"`
	RightOf             *Selector   `yaml:"rightOf"`
	ContainsChild       *Selector   `yaml:"containsChild"`
	ContainsDescendants []*Selector `yaml:"containsDescendants"`

	Optional bool `yaml:"optional"`
}

type plainSelector Selector

// UnmarshalYAML allows Selector to be unmarshaled from string or struct.
// The "element" key is accepted as a shorthand for "text".
func (s *Selector) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.Text = node.Value
		return nil
	}

	var raw struct {
		plainSelector `yaml:",inline"`
		Element       string `yaml:"element"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*s = Selector(raw.plainSelector)
	if raw.Element != "" && s.Text == "" {
		s.Text = raw.Element
	}
	return nil
}

// TraitList splits Traits into trimmed, non-empty names.
func (s *Selector) TraitList() []string {
	var out []string
	for _, t := range strings.Split(s.Traits, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// IsEmpty returns true if no selector properties are set.
func (s *Selector) IsEmpty() bool {
	return s.Text == "" &&
		s.ID == "" &&
		s.CSS == "" &&
		s.Width == 0 &&
		s.Height == 0 &&
		s.Enabled == nil &&
		s.Selected == nil &&
		s.Checked == nil &&
		s.Focused == nil &&
		s.Traits == "" &&
		s.Index == "" &&
		!s.HasRelativeSelector()
}

// HasRelativeSelector returns true if any relative selector is set.
func (s *Selector) HasRelativeSelector() bool {
	return s.ChildOf != nil ||
		s.Below != nil ||
		s.Above != nil ||
		s.LeftOf != nil ||
		s.RightOf != nil ||
		s.ContainsChild != nil ||
		len(s.ContainsDescendants) > 0
}

// Description returns a short description used in command labels.
func (s *Selector) Description() string {
	if s == nil {
		return ""
	}
	var parts []string
	if s.Text != "" {
		parts = append(parts, `"`+s.Text+`"`)
	}
	if s.ID != "" {
		parts = append(parts, "id: "+s.ID)
	}
	if s.CSS != "" {
		parts = append(parts, "css: "+s.CSS)
	}
	if s.Width != 0 || s.Height != 0 {
		size := fmt.Sprintf("size: %dx%d", s.Width, s.Height)
		if s.Tolerance != 0 {
			size += fmt.Sprintf("±%d", s.Tolerance)
		}
		parts = append(parts, size)
	}
	parts = appendFlag(parts, s.Enabled, "enabled", "disabled")
	parts = appendFlag(parts, s.Selected, "selected", "not selected")
	parts = appendFlag(parts, s.Checked, "checked", "not checked")
	parts = appendFlag(parts, s.Focused, "focused", "not focused")
	if s.Below != nil {
		parts = append(parts, "below "+s.Below.Description())
	}
	if s.Above != nil {
		parts = append(parts, "above "+s.Above.Description())
	}
	if s.LeftOf != nil {
		parts = append(parts, "left of "+s.LeftOf.Description())
	}
	if s.RightOf != nil {
		parts = append(parts, "right of "+s.RightOf.Description())
	}
	if s.ChildOf != nil {
		parts = append(parts, "child of: "+s.ChildOf.Description())
	}
	if s.ContainsChild != nil {
		parts = append(parts, "contains child: "+s.ContainsChild.Description())
	}
	if len(s.ContainsDescendants) > 0 {
		descs := make([]string, len(s.ContainsDescendants))
		for i, d := range s.ContainsDescendants {
			descs[i] = d.Description()
		}
		parts = append(parts, "contains descendants: ["+strings.Join(descs, ", ")+"]")
	}
	if traits := s.TraitList(); len(traits) > 0 {
		parts = append(parts, "has traits: "+strings.Join(traits, ", "))
	}
	if s.Index != "" {
		parts = append(parts, "index: "+s.Index)
	}
	return strings.Join(parts, ", ")
}

func appendFlag(parts []string, v *bool, yes, no string) []string {
	if v == nil {
		return parts
	}
	if *v {
		return append(parts, yes)
	}
	return append(parts, no)
}

// Evaluate returns a deep copy with string criteria evaluated.
func (s *Selector) Evaluate(e *Evaluator) *Selector {
	if s == nil {
		return nil
	}
	c := *s
	c.Text = e.String(s.Text)
	c.ID = e.String(s.ID)
	c.Index = e.String(s.Index)
	c.CSS = e.String(s.CSS)
	c.Traits = e.String(s.Traits)
	c.ChildOf = s.ChildOf.Evaluate(e)
	c.Below = s.Below.Evaluate(e)
	c.Above = s.Above.Evaluate(e)
	c.LeftOf = s.LeftOf.Evaluate(e)
	c.RightOf = s.RightOf.Evaluate(e)
	c.ContainsChild = s.ContainsChild.Evaluate(e)
	if s.ContainsDescendants != nil {
		c.ContainsDescendants = make([]*Selector, len(s.ContainsDescendants))
		for i, d := range s.ContainsDescendants {
			c.ContainsDescendants[i] = d.Evaluate(e)
		}
	}
	return &c
}
