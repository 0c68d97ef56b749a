// Package mock provides a view-tree driver for testing without a real device.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
)

// Call records one driver invocation.
type Call struct {
	Method string
	Args   []interface{}
}

func (c Call) String() string {
	if len(c.Args) == 0 {
		return c.Method
	}
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = fmt.Sprintf("%v", a)
	}
	return c.Method + "(" + strings.Join(parts, ", ") + ")"
}

// Config configures mock driver behavior.
type Config struct {
	// FailOnStep makes action N fail (1-indexed). 0 = never fail.
	FailOnStep int
	// StepDelay adds artificial delay per action
	StepDelay time.Duration
	// Platform info to report
	Platform     string
	DeviceID     string
	ScreenWidth  int
	ScreenHeight int
	// UnicodeInput reports unicode text entry support.
	UnicodeInput bool
}

// Driver is a core.Driver backed by a static or scripted view tree.
// Function fields override the default behavior of a method.
type Driver struct {
	Config Config

	// Hierarchy is returned by ViewHierarchy unless OnViewHierarchy is set.
	Hierarchy *core.TreeNode

	OnViewHierarchy func(ctx context.Context) (*core.TreeNode, error)
	OnTap           func(req core.TapRequest) error
	OnSwipe         func(req core.SwipeRequest) error
	OnQueryCSS      func(css string) ([]*core.TreeNode, error)
	// OnCall is consulted for every other action; a non-nil error fails it.
	OnCall func(call Call) error

	mu       sync.Mutex
	calls    []Call
	actions  int
	airplane bool
}

// New creates a new mock driver.
func New(cfg Config) *Driver {
	if cfg.Platform == "" {
		cfg.Platform = "android"
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = "mock-device"
	}
	if cfg.ScreenWidth == 0 {
		cfg.ScreenWidth = 1080
	}
	if cfg.ScreenHeight == 0 {
		cfg.ScreenHeight = 1920
	}
	return &Driver{Config: cfg}
}

// LoadHierarchy reads a JSON-encoded view tree.
func LoadHierarchy(path string) (*core.TreeNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hierarchy: %w", err)
	}
	var root core.TreeNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse hierarchy %s: %w", path, err)
	}
	return &root, nil
}

// Calls returns the recorded action log.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// CallNames returns the recorded method names in order.
func (d *Driver) CallNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, len(d.calls))
	for i, c := range d.calls {
		names[i] = c.Method
	}
	return names
}

// Reset clears the action log and step counter.
func (d *Driver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
	d.actions = 0
}

// record logs an action, applies delay and scripted failures.
func (d *Driver) record(ctx context.Context, method string, args ...interface{}) error {
	call := Call{Method: method, Args: args}

	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.actions++
	step := d.actions
	hook := d.OnCall
	d.mu.Unlock()

	if d.Config.StepDelay > 0 {
		select {
		case <-time.After(d.Config.StepDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if d.Config.FailOnStep > 0 && step == d.Config.FailOnStep {
		return fmt.Errorf("mock failure on step %d (%s)", step, method)
	}
	if hook != nil {
		return hook(call)
	}
	return nil
}

func (d *Driver) DeviceInfo(ctx context.Context) (*core.PlatformInfo, error) {
	return &core.PlatformInfo{
		Platform:     d.Config.Platform,
		DeviceName:   "Mock Device",
		DeviceID:     d.Config.DeviceID,
		IsSimulator:  true,
		ScreenWidth:  d.Config.ScreenWidth,
		ScreenHeight: d.Config.ScreenHeight,
	}, nil
}

func (d *Driver) ViewHierarchy(ctx context.Context) (*core.TreeNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.OnViewHierarchy != nil {
		return d.OnViewHierarchy(ctx)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Hierarchy == nil {
		return &core.TreeNode{}, nil
	}
	return d.Hierarchy, nil
}

// QueryCSS implements core.CSSQuerier.
func (d *Driver) QueryCSS(ctx context.Context, css string) ([]*core.TreeNode, error) {
	if d.OnQueryCSS == nil {
		return nil, nil
	}
	return d.OnQueryCSS(css)
}

func (d *Driver) Tap(ctx context.Context, req core.TapRequest) error {
	if err := d.record(ctx, "Tap", req.Point.X, req.Point.Y); err != nil {
		return err
	}
	if d.OnTap != nil {
		return d.OnTap(req)
	}
	return nil
}

func (d *Driver) Swipe(ctx context.Context, req core.SwipeRequest) error {
	if err := d.record(ctx, "Swipe", req.Start, req.End, req.Duration); err != nil {
		return err
	}
	if d.OnSwipe != nil {
		return d.OnSwipe(req)
	}
	return nil
}

func (d *Driver) ScrollVertical(ctx context.Context) error { return d.record(ctx, "ScrollVertical") }
func (d *Driver) BackPress(ctx context.Context) error      { return d.record(ctx, "BackPress") }
func (d *Driver) HideKeyboard(ctx context.Context) error   { return d.record(ctx, "HideKeyboard") }

func (d *Driver) PressKey(ctx context.Context, key string) error {
	return d.record(ctx, "PressKey", key)
}

func (d *Driver) InputText(ctx context.Context, text string) error {
	return d.record(ctx, "InputText", text)
}

func (d *Driver) EraseText(ctx context.Context, characters int) error {
	return d.record(ctx, "EraseText", characters)
}

func (d *Driver) IsUnicodeInputSupported() bool { return d.Config.UnicodeInput }

func (d *Driver) LaunchApp(ctx context.Context, appID string, arguments map[string]interface{}, stopIfRunning bool) error {
	return d.record(ctx, "LaunchApp", appID, stopIfRunning)
}

func (d *Driver) StopApp(ctx context.Context, appID string) error {
	return d.record(ctx, "StopApp", appID)
}

func (d *Driver) KillApp(ctx context.Context, appID string) error {
	return d.record(ctx, "KillApp", appID)
}

func (d *Driver) ClearAppState(ctx context.Context, appID string) error {
	return d.record(ctx, "ClearAppState", appID)
}

func (d *Driver) ClearKeychain(ctx context.Context) error { return d.record(ctx, "ClearKeychain") }

func (d *Driver) SetPermissions(ctx context.Context, appID string, permissions map[string]string) error {
	return d.record(ctx, "SetPermissions", appID, permissions)
}

func (d *Driver) OpenLink(ctx context.Context, link, appID string, autoVerify, browser bool) error {
	return d.record(ctx, "OpenLink", link, appID, autoVerify, browser)
}

func (d *Driver) SetLocation(ctx context.Context, latitude, longitude float64) error {
	return d.record(ctx, "SetLocation", latitude, longitude)
}

func (d *Driver) SetOrientation(ctx context.Context, orientation string) error {
	return d.record(ctx, "SetOrientation", orientation)
}

func (d *Driver) SetAirplaneMode(ctx context.Context, enabled bool) error {
	if err := d.record(ctx, "SetAirplaneMode", enabled); err != nil {
		return err
	}
	d.mu.Lock()
	d.airplane = enabled
	d.mu.Unlock()
	return nil
}

func (d *Driver) IsAirplaneModeEnabled(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.airplane, nil
}

// TakeScreenshot writes a placeholder PNG header.
func (d *Driver) TakeScreenshot(ctx context.Context, w io.Writer, compressed bool) error {
	if err := d.record(ctx, "TakeScreenshot", compressed); err != nil {
		return err
	}
	_, err := w.Write([]byte("\x89PNG\r\n\x1a\n"))
	return err
}

type recording struct {
	d *Driver
	w io.Writer
}

func (r *recording) Close() error {
	r.d.mu.Lock()
	r.d.calls = append(r.d.calls, Call{Method: "StopScreenRecording"})
	r.d.mu.Unlock()
	_, err := r.w.Write([]byte("mock-recording"))
	return err
}

func (d *Driver) StartScreenRecording(ctx context.Context, w io.Writer) (io.Closer, error) {
	if err := d.record(ctx, "StartScreenRecording"); err != nil {
		return nil, err
	}
	return &recording{d: d, w: w}, nil
}

func (d *Driver) AddMedia(ctx context.Context, paths []string) error {
	return d.record(ctx, "AddMedia", strings.Join(paths, ","))
}

func (d *Driver) WaitForAnimationToEnd(ctx context.Context, timeout time.Duration) error {
	return d.record(ctx, "WaitForAnimationToEnd", timeout)
}

func (d *Driver) WaitForAppToSettle(ctx context.Context, appID string, timeout time.Duration) error {
	return nil
}

var (
	_ core.Driver     = (*Driver)(nil)
	_ core.CSSQuerier = (*Driver)(nil)
)
