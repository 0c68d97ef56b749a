package core

import (
	"context"
	"io"
	"time"
)

// Driver defines the device primitives the executor drives.
// Implementations own the wire protocol; the executor owns flow logic.
type Driver interface {
	// DeviceInfo returns platform and screen size.
	DeviceInfo(ctx context.Context) (*PlatformInfo, error)

	// ViewHierarchy captures the current view tree.
	ViewHierarchy(ctx context.Context) (*TreeNode, error)

	Tap(ctx context.Context, req TapRequest) error
	Swipe(ctx context.Context, req SwipeRequest) error
	ScrollVertical(ctx context.Context) error
	BackPress(ctx context.Context) error
	HideKeyboard(ctx context.Context) error
	PressKey(ctx context.Context, key string) error

	InputText(ctx context.Context, text string) error
	EraseText(ctx context.Context, characters int) error
	IsUnicodeInputSupported() bool

	LaunchApp(ctx context.Context, appID string, arguments map[string]interface{}, stopIfRunning bool) error
	StopApp(ctx context.Context, appID string) error
	KillApp(ctx context.Context, appID string) error
	ClearAppState(ctx context.Context, appID string) error
	ClearKeychain(ctx context.Context) error
	SetPermissions(ctx context.Context, appID string, permissions map[string]string) error
	OpenLink(ctx context.Context, link, appID string, autoVerify, browser bool) error

	SetLocation(ctx context.Context, latitude, longitude float64) error
	SetOrientation(ctx context.Context, orientation string) error
	SetAirplaneMode(ctx context.Context, enabled bool) error
	IsAirplaneModeEnabled(ctx context.Context) (bool, error)

	// TakeScreenshot writes a PNG to w.
	TakeScreenshot(ctx context.Context, w io.Writer, compressed bool) error
	// StartScreenRecording streams video to w until the returned closer is closed.
	StartScreenRecording(ctx context.Context, w io.Writer) (io.Closer, error)
	AddMedia(ctx context.Context, paths []string) error

	WaitForAnimationToEnd(ctx context.Context, timeout time.Duration) error
	WaitForAppToSettle(ctx context.Context, appID string, timeout time.Duration) error
}

// CSSQuerier is an optional capability of web drivers: it resolves a CSS
// selector to nodes of the most recent hierarchy.
type CSSQuerier interface {
	QueryCSS(ctx context.Context, css string) ([]*TreeNode, error)
}

// Point is an absolute screen coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// TapRequest describes one tap gesture.
type TapRequest struct {
	Point           Point
	AppID           string
	LongPress       bool
	RepeatCount     int           // 0 or 1 is a single tap
	RepeatDelay     time.Duration // between repeated taps
	RetryIfNoChange bool
	WaitToSettle    time.Duration // 0 means driver default
}

// SwipeRequest describes one swipe gesture between two absolute points.
type SwipeRequest struct {
	Start        Point
	End          Point
	Duration     time.Duration
	WaitToSettle time.Duration
}

// PlatformInfo contains device and platform details
type PlatformInfo struct {
	Platform     string `json:"platform"`               // ios, android, web
	OSVersion    string `json:"osVersion"`              // e.g., "17.0", "14"
	DeviceName   string `json:"deviceName"`             // e.g., "iPhone 15 Pro", "Pixel 8"
	DeviceID     string `json:"deviceId"`               // Unique device identifier
	IsSimulator  bool   `json:"isSimulator"`            // Simulator/emulator vs real device
	ScreenWidth  int    `json:"screenWidth,omitempty"`  // Screen width in points
	ScreenHeight int    `json:"screenHeight,omitempty"` // Screen height in points
}

// Defect is one finding of the AI backend.
type Defect struct {
	Category  string `json:"category"`
	Reasoning string `json:"reasoning"`
}

// AIPredictionEngine is the visual-assertion backend.
type AIPredictionEngine interface {
	FindDefects(ctx context.Context, screen []byte) ([]Defect, error)
	// PerformAssertion returns a non-nil defect when the assertion does not hold.
	PerformAssertion(ctx context.Context, screen []byte, assertion string) (*Defect, error)
	ExtractText(ctx context.Context, screen []byte, query string) (string, error)
}
