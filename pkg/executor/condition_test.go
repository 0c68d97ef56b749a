package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
	"github.com/devicelab-dev/maestro-orchestra/pkg/driver/mock"
	"github.com/devicelab-dev/maestro-orchestra/pkg/flow"
)

func strPtr(s string) *string { return &s }

func durPtr(d time.Duration) *time.Duration { return &d }

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"   ", false},
		{"false", false},
		{"FALSE", false},
		{"undefined", false},
		{"null", false},
		{"Undefined", true},
		{"NULL", true},
		{"0", false},
		{"0.0", false},
		{"-0", false},
		{"true", true},
		{"1", true},
		{"0.5", true},
		{"yes", true},
		{"[object Object]", true},
	}
	for _, tt := range tests {
		if got := isTruthy(tt.in); got != tt.want {
			t.Errorf("isTruthy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTapOn_DeepestMatch(t *testing.T) {
	d := mock.New(mock.Config{})
	d.Hierarchy = node(map[string]string{core.AttrBounds: box(0, 0, 1080, 1920)},
		node(map[string]string{core.AttrAccessibilityText: "OK", core.AttrBounds: box(0, 0, 400, 400)},
			button("OK", 100, 100, 200, 100),
		),
	)

	o := newTestOrchestra(t, d, Callbacks{}, Options{})
	ok, err := o.ExecuteCommands(context.Background(), []flow.Command{tapOn("a", "OK")}, nil)
	if err != nil || !ok {
		t.Fatalf("ExecuteCommands = %v, %v", ok, err)
	}

	var taps []string
	for _, c := range d.Calls() {
		if c.Method == "Tap" {
			taps = append(taps, c.String())
		}
	}
	if len(taps) != 1 || taps[0] != "Tap(200, 150)" {
		t.Errorf("taps = %v, want [Tap(200, 150)]", taps)
	}
}

func TestEvaluateCondition_NotVisibleWaitsForDisappearance(t *testing.T) {
	spinner := node(map[string]string{core.AttrBounds: box(0, 0, 1080, 1920)},
		node(map[string]string{core.AttrResourceID: "spinner", core.AttrBounds: box(500, 900, 80, 80)}),
	)
	empty := node(map[string]string{core.AttrBounds: box(0, 0, 1080, 1920)})

	d := mock.New(mock.Config{})
	o := newTestOrchestra(t, d, Callbacks{}, Options{})

	o.touch()
	start := time.Now()
	d.OnViewHierarchy = func(ctx context.Context) (*core.TreeNode, error) {
		if time.Since(start) < 1500*time.Millisecond {
			return spinner, nil
		}
		return empty, nil
	}

	cond := &flow.Condition{NotVisible: &flow.Selector{ID: "spinner"}}
	ok, err := o.evaluateCondition(context.Background(), cond, durPtr(2000*time.Millisecond))
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("evaluateCondition() error = %v", err)
	}
	if !ok {
		t.Fatal("evaluateCondition() = false, want true")
	}
	if elapsed < 1500*time.Millisecond || elapsed >= 2000*time.Millisecond {
		t.Errorf("elapsed = %v, want within [1.5s, 2s)", elapsed)
	}
}

func TestEvaluateCondition_NotVisibleTimesOut(t *testing.T) {
	d := mock.New(mock.Config{})
	d.Hierarchy = okScreen()
	o := newTestOrchestra(t, d, Callbacks{}, Options{})

	cond := &flow.Condition{NotVisible: &flow.Selector{Text: "OK"}}
	ok, err := o.evaluateCondition(context.Background(), cond, durPtr(150*time.Millisecond))
	if err != nil || ok {
		t.Errorf("evaluateCondition() = %v, %v, want false, nil", ok, err)
	}
}

func TestEvaluateCondition(t *testing.T) {
	d := mock.New(mock.Config{Platform: "android"})
	d.Hierarchy = okScreen()
	o := newTestOrchestra(t, d, Callbacks{}, Options{})

	tests := []struct {
		name string
		cond *flow.Condition
		want bool
	}{
		{"nil", nil, true},
		{"empty", &flow.Condition{}, true},
		{"platform match", &flow.Condition{Platform: "Android"}, true},
		{"platform mismatch", &flow.Condition{Platform: "ios"}, false},
		{"visible", &flow.Condition{Visible: &flow.Selector{Text: "OK"}}, true},
		{"not visible", &flow.Condition{Visible: &flow.Selector{Text: "Cancel"}}, false},
		{"script true", &flow.Condition{ScriptCondition: strPtr("true")}, true},
		{"script zero", &flow.Condition{ScriptCondition: strPtr("0")}, false},
		{"equal", &flow.Condition{Equal: &flow.EqualityCondition{Value1: "a", Value2: "a"}}, true},
		{"equal differs", &flow.Condition{Equal: &flow.EqualityCondition{Value1: "1", Value2: "1.0"}}, false},
		{"not equal", &flow.Condition{NotEqual: &flow.EqualityCondition{Value1: "a", Value2: "b"}}, true},
		{"not equal same", &flow.Condition{NotEqual: &flow.EqualityCondition{Value1: "a", Value2: "a"}}, false},
		{"all must hold", &flow.Condition{Platform: "android", ScriptCondition: strPtr("false")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := o.evaluateCondition(context.Background(), tt.cond, durPtr(100*time.Millisecond))
			if err != nil {
				t.Fatalf("evaluateCondition() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("evaluateCondition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFindElement_IndexOutOfRange(t *testing.T) {
	d := mock.New(mock.Config{})
	d.Hierarchy = node(map[string]string{core.AttrBounds: box(0, 0, 1080, 1920)},
		button("Item", 0, 0, 100, 100),
		button("Item", 0, 200, 100, 100),
	)
	o := newTestOrchestra(t, d, Callbacks{}, Options{})

	found, err := o.findElement(context.Background(), &flow.Selector{Text: "Item", Index: "-1"}, 0)
	if err != nil {
		t.Fatalf("findElement(index -1) error = %v", err)
	}
	if found.element.Bounds.Y != 200 {
		t.Errorf("index -1 picked y=%d, want 200", found.element.Bounds.Y)
	}

	_, err = o.findElement(context.Background(), &flow.Selector{Text: "Item", Index: "2"}, 0)
	if !errors.Is(err, core.ErrElementNotFound) {
		t.Fatalf("findElement(index 2) error = %v, want ErrElementNotFound", err)
	}
	var ee *core.ExecutionError
	if !errors.As(err, &ee) || ee.Hierarchy == nil {
		t.Error("not-found error should carry the hierarchy")
	}
	if !strings.HasPrefix(ee.Message, "Element not found: ") {
		t.Errorf("message = %q", ee.Message)
	}
}

func TestFindElement_ChildOf(t *testing.T) {
	d := mock.New(mock.Config{})
	d.Hierarchy = node(map[string]string{core.AttrBounds: box(0, 0, 1080, 1920)},
		node(map[string]string{core.AttrResourceID: "first", core.AttrBounds: box(0, 0, 1080, 500)},
			button("Buy", 10, 10, 100, 50),
		),
		node(map[string]string{core.AttrResourceID: "second", core.AttrBounds: box(0, 600, 1080, 500)},
			button("Buy", 10, 610, 100, 50),
		),
	)
	o := newTestOrchestra(t, d, Callbacks{}, Options{})

	sel := &flow.Selector{Text: "Buy", ChildOf: &flow.Selector{ID: "second"}}
	found, err := o.findElement(context.Background(), sel, 0)
	if err != nil {
		t.Fatalf("findElement() error = %v", err)
	}
	if found.element.Bounds.Y != 610 {
		t.Errorf("childOf picked y=%d, want 610", found.element.Bounds.Y)
	}

	sel = &flow.Selector{Text: "Buy", ChildOf: &flow.Selector{ID: "third"}}
	_, err = o.findElement(context.Background(), sel, 0)
	var ee *core.ExecutionError
	if !errors.As(err, &ee) || !strings.Contains(ee.Message, "third") {
		t.Errorf("findElement() error = %v, want the missing parent named", err)
	}
}

func TestFindElement_Cycle(t *testing.T) {
	d := mock.New(mock.Config{})
	o := newTestOrchestra(t, d, Callbacks{}, Options{})

	sel := &flow.Selector{Text: "A"}
	sel.Below = sel
	if _, err := o.findElement(context.Background(), sel, time.Second); err == nil {
		t.Error("findElement() with a cyclic selector should fail")
	}
	if n := len(d.Calls()); n != 0 {
		t.Errorf("driver calls = %d, want 0", n)
	}
}

func TestFindElement_AppearsLater(t *testing.T) {
	d := mock.New(mock.Config{})
	var (
		mu    sync.Mutex
		polls int
	)
	d.OnViewHierarchy = func(ctx context.Context) (*core.TreeNode, error) {
		mu.Lock()
		defer mu.Unlock()
		polls++
		if polls < 3 {
			return &core.TreeNode{}, nil
		}
		return okScreen(), nil
	}
	o := newTestOrchestra(t, d, Callbacks{}, Options{})

	if _, err := o.findElement(context.Background(), &flow.Selector{Text: "OK"}, time.Second); err != nil {
		t.Fatalf("findElement() error = %v", err)
	}
	if polls != 3 {
		t.Errorf("polls = %d, want 3", polls)
	}
}

func TestAssertCondition_Failure(t *testing.T) {
	d := mock.New(mock.Config{})
	d.Hierarchy = okScreen()
	o := newTestOrchestra(t, d, Callbacks{}, Options{})

	c := &flow.AssertConditionCommand{
		BaseCommand: base(flow.CmdAssertVisible, ""),
		Condition:   flow.Condition{Visible: &flow.Selector{Text: "Cancel"}},
		Timeout:     "100",
	}
	_, err := o.assertCondition(context.Background(), c)
	if !errors.Is(err, core.ErrAssertionFailure) {
		t.Fatalf("assertCondition() error = %v, want ErrAssertionFailure", err)
	}
	var ee *core.ExecutionError
	if errors.As(err, &ee) && ee.Hierarchy == nil {
		t.Error("assertion failure should carry the hierarchy")
	}
}
