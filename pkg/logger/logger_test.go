package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNoopBeforeInit(t *testing.T) {
	// Must not panic without Init.
	Info("hello %s", "world")
	Debug("debug")
	Warn("warn")
	Error("error")
}

func TestInitWritesToFile(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		want   string
		absent string
	}{
		{
			name:   "console info hides debug",
			cfg:    Config{Format: "console"},
			want:   "flow started",
			absent: "hidden detail",
		},
		{
			name: "json debug",
			cfg:  Config{Format: "json", Debug: true},
			want: `"msg":"hidden detail"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "logs", "orchestra.log")
			tt.cfg.File = path
			if err := Init(tt.cfg); err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			Info("flow %s", "started")
			Debug("hidden %s", "detail")
			Close()

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile() error = %v", err)
			}
			if !strings.Contains(string(data), tt.want) {
				t.Errorf("log = %q, want it to contain %q", data, tt.want)
			}
			if tt.absent != "" && strings.Contains(string(data), tt.absent) {
				t.Errorf("log = %q, should not contain %q", data, tt.absent)
			}
		})
	}
}
