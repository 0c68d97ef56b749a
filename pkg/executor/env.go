package executor

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/devicelab-dev/maestro-orchestra/pkg/flow"
)

// Variables every flow run receives.
const (
	EnvShardID    = "MAESTRO_SHARD_ID"
	EnvShardIndex = "MAESTRO_SHARD_INDEX"
	EnvFilename   = "MAESTRO_FILENAME"
	EnvDeviceUDID = "MAESTRO_DEVICE_UDID"
)

// shellEnvPattern matches process variables forwarded into flows.
var shellEnvPattern = regexp.MustCompile(`^MAESTRO_[A-Z0-9_]+$`)

// ShellEnv returns the non-empty MAESTRO_* variables of the process
// environment. The tool's own MAESTRO_ORCHESTRA_* settings are not forwarded.
func ShellEnv() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" || !shellEnvPattern.MatchString(name) {
			continue
		}
		if strings.HasPrefix(name, "MAESTRO_ORCHESTRA_") {
			continue
		}
		env[name] = value
	}
	return env
}

// FlowEnv builds the env for one flow run. Precedence, lowest first:
// shard defaults, shell variables, explicit values.
func FlowEnv(explicit map[string]string, shard Shard, f *flow.Flow) map[string]string {
	env := map[string]string{
		EnvShardID:    strconv.Itoa(shard.Index + 1),
		EnvShardIndex: strconv.Itoa(shard.Index),
	}
	if shard.DeviceID != "" {
		env[EnvDeviceUDID] = shard.DeviceID
	}
	if f != nil && f.SourcePath != "" {
		base := filepath.Base(f.SourcePath)
		env[EnvFilename] = strings.TrimSuffix(base, filepath.Ext(base))
	}
	for k, v := range ShellEnv() {
		env[k] = v
	}
	for k, v := range explicit {
		env[k] = v
	}
	return env
}
