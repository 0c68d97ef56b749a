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

func TestSwipeDirectionFor(t *testing.T) {
	tests := map[string]string{
		"":      "UP",
		"DOWN":  "UP",
		"down":  "UP",
		"UP":    "DOWN",
		"LEFT":  "RIGHT",
		"RIGHT": "LEFT",
	}
	for in, want := range tests {
		if got := swipeDirectionFor(in); got != want {
			t.Errorf("swipeDirectionFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func scrollCmd(text, timeout string) *flow.ScrollUntilVisibleCommand {
	return &flow.ScrollUntilVisibleCommand{
		BaseCommand: base(flow.CmdScrollUntilVisible, ""),
		Selector:    flow.Selector{Text: text},
		Timeout:     timeout,
	}
}

func TestScrollUntilVisible_FoundAfterSwipes(t *testing.T) {
	d := mock.New(mock.Config{})
	var (
		mu     sync.Mutex
		swipes int
		reqs   []core.SwipeRequest
	)
	d.OnSwipe = func(req core.SwipeRequest) error {
		mu.Lock()
		defer mu.Unlock()
		swipes++
		reqs = append(reqs, req)
		return nil
	}
	d.OnViewHierarchy = func(ctx context.Context) (*core.TreeNode, error) {
		mu.Lock()
		defer mu.Unlock()
		if swipes < 2 {
			return node(map[string]string{core.AttrBounds: box(0, 0, 1080, 1920)}), nil
		}
		return node(map[string]string{core.AttrBounds: box(0, 0, 1080, 1920)},
			button("Footer", 100, 1500, 300, 100),
		), nil
	}
	o := newTestOrchestra(t, d, Callbacks{}, Options{})

	if _, err := o.scrollUntilVisible(context.Background(), scrollCmd("Footer", "5000")); err != nil {
		t.Fatalf("scrollUntilVisible() error = %v", err)
	}
	if swipes != 2 {
		t.Errorf("swipes = %d, want 2", swipes)
	}
	// Scrolling down moves the finger up from the screen center.
	want := core.Point{X: 540, Y: 960}
	if reqs[0].Start != want || reqs[0].End.Y >= want.Y {
		t.Errorf("swipe = %v -> %v, want upward from %v", reqs[0].Start, reqs[0].End, want)
	}
}

func TestScrollUntilVisible_PartiallyVisibleKeepsScrolling(t *testing.T) {
	d := mock.New(mock.Config{})
	var (
		mu     sync.Mutex
		swipes int
	)
	d.OnSwipe = func(req core.SwipeRequest) error {
		mu.Lock()
		defer mu.Unlock()
		swipes++
		return nil
	}
	d.OnViewHierarchy = func(ctx context.Context) (*core.TreeNode, error) {
		mu.Lock()
		defer mu.Unlock()
		y := 1870
		if swipes > 0 {
			y = 1000
		}
		return node(map[string]string{core.AttrBounds: box(0, 0, 1080, 1920)},
			button("Footer", 100, y, 300, 100),
		), nil
	}
	o := newTestOrchestra(t, d, Callbacks{}, Options{})

	if _, err := o.scrollUntilVisible(context.Background(), scrollCmd("Footer", "5000")); err != nil {
		t.Fatalf("scrollUntilVisible() error = %v", err)
	}
	if swipes != 1 {
		t.Errorf("swipes = %d, want 1", swipes)
	}
}

func TestScrollUntilVisible_FullLookupBetweenSwipes(t *testing.T) {
	d := mock.New(mock.Config{})
	var (
		mu        sync.Mutex
		swipes    int
		snapshots int
	)
	d.OnSwipe = func(req core.SwipeRequest) error {
		mu.Lock()
		defer mu.Unlock()
		swipes++
		return nil
	}
	d.OnViewHierarchy = func(ctx context.Context) (*core.TreeNode, error) {
		mu.Lock()
		defer mu.Unlock()
		snapshots++
		return okScreen(), nil
	}
	o := newTestOrchestra(t, d, Callbacks{}, Options{})
	// A stale last interaction must not shorten the per-swipe lookup.
	o.lastInteraction = time.Now().Add(-time.Minute)

	_, err := o.scrollUntilVisible(context.Background(), scrollCmd("Footer", "1200"))
	if !errors.Is(err, core.ErrElementNotFound) {
		t.Fatalf("scrollUntilVisible() error = %v, want ErrElementNotFound", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if swipes < 1 || swipes > 4 {
		t.Errorf("swipes = %d, want 1..4", swipes)
	}
	if snapshots < 2*swipes {
		t.Errorf("snapshots = %d for %d swipes, want several per swipe", snapshots, swipes)
	}
}

func TestScrollUntilVisible_Timeout(t *testing.T) {
	d := mock.New(mock.Config{})
	d.Hierarchy = okScreen()
	o := newTestOrchestra(t, d, Callbacks{}, Options{})

	_, err := o.scrollUntilVisible(context.Background(), scrollCmd("Footer", "600"))
	if !errors.Is(err, core.ErrElementNotFound) {
		t.Fatalf("scrollUntilVisible() error = %v, want ErrElementNotFound", err)
	}
	var ee *core.ExecutionError
	if !errors.As(err, &ee) {
		t.Fatalf("error type = %T", err)
	}
	if !strings.HasPrefix(ee.Message, "No visible element found: ") {
		t.Errorf("message = %q", ee.Message)
	}
	if !strings.Contains(ee.DebugMessage, "timeout: 600 ms") {
		t.Errorf("debug message does not list the timeout:\n%s", ee.DebugMessage)
	}
	if ee.Hierarchy == nil {
		t.Error("error should carry the last hierarchy")
	}
	if n := len(d.CallNames()); n == 0 {
		t.Error("expected at least one swipe before giving up")
	}
}
