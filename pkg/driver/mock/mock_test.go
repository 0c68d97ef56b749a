package mock

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
)

func TestNew_Defaults(t *testing.T) {
	d := New(Config{})
	info, err := d.DeviceInfo(context.Background())
	if err != nil {
		t.Fatalf("DeviceInfo() error = %v", err)
	}
	if info.Platform != "android" || info.ScreenWidth != 1080 || info.ScreenHeight != 1920 {
		t.Errorf("DeviceInfo() = %+v", info)
	}
}

func TestDriver_RecordsCalls(t *testing.T) {
	d := New(Config{})
	ctx := context.Background()

	_ = d.Tap(ctx, core.TapRequest{Point: core.Point{X: 10, Y: 20}})
	_ = d.InputText(ctx, "hello")
	_ = d.BackPress(ctx)

	got := make([]string, 0, 3)
	for _, c := range d.Calls() {
		got = append(got, c.String())
	}
	want := []string{"Tap(10, 20)", "InputText(hello)", "BackPress"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Calls() = %v, want %v", got, want)
	}

	d.Reset()
	if n := len(d.Calls()); n != 0 {
		t.Errorf("Calls() after Reset = %d, want 0", n)
	}
}

func TestDriver_FailOnStep(t *testing.T) {
	d := New(Config{FailOnStep: 2})
	ctx := context.Background()

	if err := d.BackPress(ctx); err != nil {
		t.Errorf("step 1 error = %v", err)
	}
	if err := d.HideKeyboard(ctx); err == nil {
		t.Error("step 2 should fail")
	}
	if err := d.BackPress(ctx); err != nil {
		t.Errorf("step 3 error = %v", err)
	}
}

func TestDriver_StepDelayHonorsContext(t *testing.T) {
	d := New(Config{StepDelay: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := d.BackPress(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("BackPress() error = %v, want DeadlineExceeded", err)
	}
}

func TestDriver_AirplaneMode(t *testing.T) {
	d := New(Config{})
	ctx := context.Background()
	_ = d.SetAirplaneMode(ctx, true)
	if on, _ := d.IsAirplaneModeEnabled(ctx); !on {
		t.Error("airplane mode should be on")
	}
}

func TestDriver_Screenshot(t *testing.T) {
	var buf bytes.Buffer
	if err := New(Config{}).TakeScreenshot(context.Background(), &buf, false); err != nil {
		t.Fatalf("TakeScreenshot() error = %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("screenshot should start with the PNG signature")
	}
}

func TestLoadHierarchy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screen.json")
	data := `{"attributes":{"bounds":"[0,0][100,100]"},"children":[{"attributes":{"text":"OK"}}]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	root, err := LoadHierarchy(path)
	if err != nil {
		t.Fatalf("LoadHierarchy() error = %v", err)
	}
	if len(root.Children) != 1 || root.Children[0].Attr(core.AttrText) != "OK" {
		t.Errorf("LoadHierarchy() = %+v", root)
	}

	if _, err := LoadHierarchy(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadHierarchy(missing) should fail")
	}
}
