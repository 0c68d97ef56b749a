package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "workspace",
			content: `
flows: ["login/*.yaml", "checkout/*.yaml"]
includeTags: [smoke]
excludeTags: [wip]
platform: ios
device: iPhone-15
shards: 3
`,
			check: func(t *testing.T, cfg *Config) {
				if want := []string{"login/*.yaml", "checkout/*.yaml"}; !reflect.DeepEqual(cfg.Flows, want) {
					t.Errorf("Flows = %v, want %v", cfg.Flows, want)
				}
				if !reflect.DeepEqual(cfg.IncludeTags, []string{"smoke"}) || !reflect.DeepEqual(cfg.ExcludeTags, []string{"wip"}) {
					t.Errorf("tags = %v / %v", cfg.IncludeTags, cfg.ExcludeTags)
				}
				if cfg.Platform != "ios" || cfg.Device != "iPhone-15" || cfg.Shards != 3 {
					t.Errorf("device settings = %q %q %d", cfg.Platform, cfg.Device, cfg.Shards)
				}
			},
		},
		{
			name: "execution overrides keep other defaults",
			content: `
execution:
  lookupTimeoutMs: 5000
  screenshotsDir: /tmp/shots
`,
			check: func(t *testing.T, cfg *Config) {
				if got := cfg.Execution.LookupTimeout(); got != 5*time.Second {
					t.Errorf("LookupTimeout() = %v, want 5s", got)
				}
				if got := cfg.Execution.OptionalLookupTimeout(); got != 7*time.Second {
					t.Errorf("OptionalLookupTimeout() = %v, want 7s", got)
				}
				if cfg.Execution.ScreenshotsDir != "/tmp/shots" {
					t.Errorf("ScreenshotsDir = %q", cfg.Execution.ScreenshotsDir)
				}
			},
		},
		{
			name:    "logging",
			content: "logging:\n  debug: true\n  format: json\n  file: run.log\n",
			check: func(t *testing.T, cfg *Config) {
				lc := cfg.Logging.Logger()
				if !lc.Debug || lc.Format != "json" || lc.File != "run.log" {
					t.Errorf("Logger() = %+v", lc)
				}
			},
		},
		{
			name:    "env names keep their case",
			content: "env:\n  API_URL: https://staging\n  userName: qa\n",
			check: func(t *testing.T, cfg *Config) {
				want := map[string]string{"API_URL": "https://staging", "userName": "qa"}
				if !reflect.DeepEqual(cfg.Env, want) {
					t.Errorf("Env = %v, want %v", cfg.Env, want)
				}
			},
		},
		{
			name:    "shards below one",
			content: "shards: 0\n",
			check: func(t *testing.T, cfg *Config) {
				if cfg.Shards != 1 {
					t.Errorf("Shards = %d, want 1", cfg.Shards)
				}
			},
		},
		{
			name:    "empty file",
			content: "",
			check: func(t *testing.T, cfg *Config) {
				if len(cfg.Flows) != 0 || cfg.Env == nil {
					t.Errorf("Flows = %v, Env = %v", cfg.Flows, cfg.Env)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "config.yaml", tt.content)
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.File != path {
				t.Errorf("File = %q, want %q", cfg.File, path)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "absent.yaml")},
		{"invalid yaml", writeConfig(t, dir, "broken.yaml", "flows: [unterminated")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.path); err == nil {
				t.Errorf("Load(%s) error = nil, want error", tt.path)
			}
		})
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "platform: ios\n")
	t.Setenv("MAESTRO_ORCHESTRA_PLATFORM", "android")
	t.Setenv("MAESTRO_ORCHESTRA_EXECUTION_LOOKUPTIMEOUTMS", "1234")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Platform != "android" {
		t.Errorf("Platform = %q, want android", cfg.Platform)
	}
	if cfg.Execution.LookupTimeoutMs != 1234 {
		t.Errorf("LookupTimeoutMs = %d, want 1234", cfg.Execution.LookupTimeoutMs)
	}
}

func TestLoadFromDir(t *testing.T) {
	tests := []struct {
		name         string
		files        map[string]string
		wantPlatform string
		wantFile     string
	}{
		{"config.yaml", map[string]string{"config.yaml": "platform: android"}, "android", "config.yaml"},
		{"config.yml", map[string]string{"config.yml": "platform: ios"}, "ios", "config.yml"},
		{
			"yaml wins over yml",
			map[string]string{"config.yaml": "platform: ios", "config.yml": "platform: android"},
			"ios", "config.yaml",
		},
		{"no config", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				writeConfig(t, dir, name, content)
			}

			cfg, err := LoadFromDir(dir)
			if err != nil {
				t.Fatalf("LoadFromDir() error = %v", err)
			}
			if cfg.Platform != tt.wantPlatform {
				t.Errorf("Platform = %q, want %q", cfg.Platform, tt.wantPlatform)
			}
			wantFile := ""
			if tt.wantFile != "" {
				wantFile = filepath.Join(dir, tt.wantFile)
			}
			if cfg.File != wantFile {
				t.Errorf("File = %q, want %q", cfg.File, wantFile)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if cfg.Shards != 1 {
		t.Errorf("Shards = %d, want 1", cfg.Shards)
	}
	if cfg.Execution.LookupTimeoutMs != 17000 || cfg.Execution.OptionalLookupTimeoutMs != 7000 {
		t.Errorf("Execution = %+v, want 17000/7000", cfg.Execution)
	}
	if cfg.Execution.ScreenshotsDir != GetScreenshotsDir() {
		t.Errorf("ScreenshotsDir = %q, want %q", cfg.Execution.ScreenshotsDir, GetScreenshotsDir())
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Debug {
		t.Errorf("Logging = %+v, want console without debug", cfg.Logging)
	}
}
