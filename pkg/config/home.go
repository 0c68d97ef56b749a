package config

import (
	"os"
	"path/filepath"
	"sync"
)

const envHome = "MAESTRO_ORCHESTRA_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the maestro-orchestra home directory, resolved once:
// $MAESTRO_ORCHESTRA_HOME, then the parent of a bin/ directory holding the
// binary, then ~/.maestro-orchestra, then the working directory.
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = osLocator.home()
	})
	return homeDir
}

// GetScreenshotsDir is the default destination of takeScreenshot and
// startRecording.
func GetScreenshotsDir() string {
	return filepath.Join(GetHome(), "screenshots")
}

// ResetHome drops the cached home directory.
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}

// homeLocator holds the process lookups home resolution depends on.
type homeLocator struct {
	getenv     func(string) string
	executable func() (string, error)
	userHome   func() (string, error)
	workDir    func() (string, error)
}

var osLocator = homeLocator{
	getenv:     os.Getenv,
	executable: os.Executable,
	userHome:   os.UserHomeDir,
	workDir:    os.Getwd,
}

func (l homeLocator) home() string {
	if dir := l.getenv(envHome); dir != "" {
		return dir
	}
	if exe, err := l.executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		if bin := filepath.Dir(exe); filepath.Base(bin) == "bin" {
			return filepath.Dir(bin)
		}
	}
	if home, err := l.userHome(); err == nil {
		return filepath.Join(home, ".maestro-orchestra")
	}
	if wd, err := l.workDir(); err == nil {
		return wd
	}
	return "."
}
