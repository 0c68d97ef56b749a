package flow

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func strPtr(s string) *string { return &s }

func TestCondition_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		validate func(t *testing.T, c *Condition)
	}{
		{
			name: "true alias",
			yaml: `true: ${x > 1}`,
			validate: func(t *testing.T, c *Condition) {
				if c.ScriptCondition == nil || *c.ScriptCondition != "${x > 1}" {
					t.Errorf("ScriptCondition = %v, want ${x > 1}", c.ScriptCondition)
				}
			},
		},
		{
			name: "scriptCondition wins over alias",
			yaml: "scriptCondition: a\ntrue: b",
			validate: func(t *testing.T, c *Condition) {
				if *c.ScriptCondition != "a" {
					t.Errorf("ScriptCondition = %q, want a", *c.ScriptCondition)
				}
			},
		},
		{
			name: "visible selector scalar",
			yaml: "visible: Login\nplatform: Android",
			validate: func(t *testing.T, c *Condition) {
				if c.Visible == nil || c.Visible.Text != "Login" || c.Platform != "Android" {
					t.Errorf("unexpected condition %+v", c)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Condition
			if err := yaml.Unmarshal([]byte(tt.yaml), &c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.validate(t, &c)
		})
	}
}

func TestCondition_IsEmpty(t *testing.T) {
	tests := []struct {
		name string
		cond *Condition
		want bool
	}{
		{"nil", nil, true},
		{"zero", &Condition{}, true},
		{"label only", &Condition{Label: "x"}, true},
		{"platform", &Condition{Platform: "iOS"}, false},
		{"script", &Condition{ScriptCondition: strPtr("true")}, false},
		{"equal", &Condition{Equal: &EqualityCondition{}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCondition_Description(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		want string
	}{
		{"empty", Condition{}, "true"},
		{"label", Condition{Label: "Logged in", Platform: "iOS"}, "Logged in"},
		{"platform", Condition{Platform: "Android"}, "Platform is Android"},
		{"visible", Condition{Visible: &Selector{Text: "OK"}}, `"OK" is visible`},
		{"not visible", Condition{NotVisible: &Selector{ID: "spinner"}}, "id: spinner is not visible"},
		{"script", Condition{ScriptCondition: strPtr("${ready}")}, "${ready} is true"},
		{"equal", Condition{Equal: &EqualityCondition{Value1: "a", Value2: "b"}}, "'b' equals 'a'"},
		{"not equal", Condition{NotEqual: &EqualityCondition{Value1: "a", Value2: "b"}}, "'b' does not equal 'a'"},
		{
			"combined",
			Condition{Platform: "iOS", Visible: &Selector{Text: "OK"}},
			`Platform is iOS and "OK" is visible`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Description(); got != tt.want {
				t.Errorf("Description() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCondition_FailureMessage(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		want string
	}{
		{"label", Condition{Label: "custom"}, "custom"},
		{"equal", Condition{Equal: &EqualityCondition{Value1: "1", Value2: "2"}}, "Assertion failed: expected '2' to equal '1'"},
		{"not equal", Condition{NotEqual: &EqualityCondition{Value1: "1", Value2: "1"}}, "Assertion failed: expected '1' to not equal '1'"},
		{"visible", Condition{Visible: &Selector{Text: "OK"}}, `Assertion is false: "OK" is visible`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.FailureMessage(); got != tt.want {
				t.Errorf("FailureMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCondition_Evaluate(t *testing.T) {
	cond := &Condition{
		Visible:         &Selector{Text: "${NAME}"},
		ScriptCondition: strPtr("${FLAG}"),
		Equal:           &EqualityCondition{Value1: "${NAME}", Value2: "Bob"},
	}
	e := NewEvaluator(replaceEvaluator{"NAME": "Bob", "FLAG": "true"})

	got := cond.Evaluate(e)

	if got.Visible.Text != "Bob" || *got.ScriptCondition != "true" || got.Equal.Value1 != "Bob" {
		t.Errorf("Evaluate() = %+v", got)
	}
	if cond.Visible.Text != "${NAME}" || *cond.ScriptCondition != "${FLAG}" || cond.Equal.Value1 != "${NAME}" {
		t.Error("Evaluate() mutated the original condition")
	}
	if (*Condition)(nil).Evaluate(e) != nil {
		t.Error("Evaluate() on nil should return nil")
	}
}
