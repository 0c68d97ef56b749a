package flow

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// EqualityCondition compares two evaluated strings.
type EqualityCondition struct {
	Value1 string `yaml:"value1"`
	Value2 string `yaml:"value2"`
}

// Condition is a guard or assertion. An empty condition is vacuously true.
type Condition struct {
	Platform        string             `yaml:"platform"`
	Visible         *Selector          `yaml:"visible"`
	NotVisible      *Selector          `yaml:"notVisible"`
	ScriptCondition *string            `yaml:"scriptCondition"`
	Equal           *EqualityCondition `yaml:"equal"`
	NotEqual        *EqualityCondition `yaml:"notEqual"`
	Label           string             `yaml:"label"`
}

type plainCondition Condition

// UnmarshalYAML accepts "true" as an alias of scriptCondition.
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		plainCondition `yaml:",inline"`
		True           *string `yaml:"true"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*c = Condition(raw.plainCondition)
	if c.ScriptCondition == nil && raw.True != nil {
		c.ScriptCondition = raw.True
	}
	return nil
}

// IsEmpty reports whether no sub-condition is set.
func (c *Condition) IsEmpty() bool {
	return c == nil || (c.Platform == "" && c.Visible == nil && c.NotVisible == nil &&
		c.ScriptCondition == nil && c.Equal == nil && c.NotEqual == nil)
}

// HasOptionalSelector reports whether a visibility selector is optional.
func (c *Condition) HasOptionalSelector() bool {
	return c != nil && ((c.Visible != nil && c.Visible.Optional) || (c.NotVisible != nil && c.NotVisible.Optional))
}

// Description returns the label, or the sub-conditions joined with "and".
func (c *Condition) Description() string {
	if c.Label != "" {
		return c.Label
	}
	var parts []string
	if c.Platform != "" {
		parts = append(parts, "Platform is "+c.Platform)
	}
	if c.Visible != nil {
		parts = append(parts, c.Visible.Description()+" is visible")
	}
	if c.NotVisible != nil {
		parts = append(parts, c.NotVisible.Description()+" is not visible")
	}
	if c.ScriptCondition != nil {
		parts = append(parts, *c.ScriptCondition+" is true")
	}
	if c.Equal != nil {
		parts = append(parts, "'"+c.Equal.Value2+"' equals '"+c.Equal.Value1+"'")
	}
	if c.NotEqual != nil {
		parts = append(parts, "'"+c.NotEqual.Value2+"' does not equal '"+c.NotEqual.Value1+"'")
	}
	if len(parts) == 0 {
		return "true"
	}
	return strings.Join(parts, " and ")
}

// FailureMessage is the message raised when an assertion of c fails.
func (c *Condition) FailureMessage() string {
	if c.Label != "" {
		return c.Label
	}
	if c.Equal != nil {
		return "Assertion failed: expected '" + c.Equal.Value2 + "' to equal '" + c.Equal.Value1 + "'"
	}
	if c.NotEqual != nil {
		return "Assertion failed: expected '" + c.NotEqual.Value2 + "' to not equal '" + c.NotEqual.Value1 + "'"
	}
	return "Assertion is false: " + c.Description()
}

// Evaluate returns a copy with selectors and strings evaluated.
func (c *Condition) Evaluate(e *Evaluator) *Condition {
	if c == nil {
		return nil
	}
	out := *c
	out.Visible = c.Visible.Evaluate(e)
	out.NotVisible = c.NotVisible.Evaluate(e)
	out.ScriptCondition = e.StringPtr(c.ScriptCondition)
	if c.Equal != nil {
		out.Equal = &EqualityCondition{Value1: e.String(c.Equal.Value1), Value2: e.String(c.Equal.Value2)}
	}
	if c.NotEqual != nil {
		out.NotEqual = &EqualityCondition{Value1: e.String(c.NotEqual.Value1), Value2: e.String(c.NotEqual.Value2)}
	}
	return &out
}
