package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// AppName names the per-user config and data directories.
const AppName = "nexus"

// Paths holds the resolved per-user locations for config, database, logs, and uploads.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	LogDir     string
	UploadDir  string
}

// Options selects the app directory name. DevMode appends "-dev" so development runs keep separate state.
type Options struct {
	AppName string
	DevMode bool
}

// DefaultPaths returns default paths.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{AppName: AppName})
}

// DefaultPathsWithOptions returns default paths with options.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = AppName
	}
	if opts.DevMode {
		appName += "-dev"
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir := configDir
	if runtime.GOOS == "linux" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return Paths{}, fmt.Errorf("user home dir: %w", homeErr)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}

	env := make(map[string]string, 2)
	for _, key := range baseOverrides[runtime.GOOS] {
		env[key] = os.Getenv(key)
	}
	return PathsFor(runtime.GOOS, env, configDir, dataDir, appName)
}

// baseOverrides names the env vars that replace the config and data bases per OS.
// macOS and unknown platforms keep the os.UserConfigDir defaults.
var baseOverrides = map[string][2]string{
	"linux":   {"XDG_CONFIG_HOME", "XDG_DATA_HOME"},
	"windows": {"APPDATA", "LOCALAPPDATA"},
}

// PathsFor resolves paths for goos from explicit base directories and environment values.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, fmt.Errorf("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, fmt.Errorf("empty app name")
	}

	configBase, dataBase := userConfigDir, userDataDir
	if keys, ok := baseOverrides[goos]; ok {
		if v := strings.TrimSpace(env[keys[0]]); v != "" {
			configBase = v
		}
		if v := strings.TrimSpace(env[keys[1]]); v != "" {
			dataBase = v
		}
	}

	dataDir := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(configBase, appName, "config.toml"),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, appName+".db"),
		LogDir:     filepath.Join(dataDir, "logs"),
		UploadDir:  filepath.Join(dataDir, "uploads"),
	}, nil
}
