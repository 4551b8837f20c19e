package platform

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultAppName names the config and data directories.
const DefaultAppName = "groundline"

// Paths locates the files one groundline install reads and writes.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	LogDir     string
}

// Options selects the app directory name. DevMode appends "-dev" so a development build never
// touches the real database.
type Options struct {
	AppName string
	DevMode bool
}

func (o Options) dirName() string {
	name := strings.TrimSpace(o.AppName)
	if name == "" {
		name = DefaultAppName
	}
	if o.DevMode {
		name += "-dev"
	}
	return name
}

// BaseDirs are the per-user roots the app directories hang off.
type BaseDirs struct {
	Config string
	Data   string
}

// baseOverrides names, per GOOS, the variables that replace the config and data roots.
var baseOverrides = map[string]BaseDirs{
	"linux":   {Config: "XDG_CONFIG_HOME", Data: "XDG_DATA_HOME"},
	"windows": {Config: "APPDATA", Data: "LOCALAPPDATA"},
}

// DefaultPathsWithOptions resolves paths for the running OS and environment.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	base, err := userBaseDirs(runtime.GOOS)
	if err != nil {
		return Paths{}, err
	}
	return Resolve(runtime.GOOS, os.Getenv, base, opts.dirName())
}

func userBaseDirs(goos string) (BaseDirs, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return BaseDirs{}, err
	}
	base := BaseDirs{Config: configDir, Data: configDir}
	if goos == "linux" {
		home, err := os.UserHomeDir()
		if err != nil {
			return BaseDirs{}, err
		}
		base.Data = filepath.Join(home, ".local", "share")
	}
	return base, nil
}

// Resolve places appName under base, letting the OS-specific variables read through getenv
// replace either root.
func Resolve(goos string, getenv func(string) string, base BaseDirs, appName string) (Paths, error) {
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, errors.New("app name is required")
	}
	if keys, ok := baseOverrides[goos]; ok && getenv != nil {
		if v := strings.TrimSpace(getenv(keys.Config)); v != "" {
			base.Config = v
		}
		if v := strings.TrimSpace(getenv(keys.Data)); v != "" {
			base.Data = v
		}
	}
	if base.Config == "" || base.Data == "" {
		return Paths{}, errors.New("config and data base directories are required")
	}

	dataDir := filepath.Join(base.Data, appName)
	return Paths{
		ConfigPath: filepath.Join(base.Config, appName, "config.toml"),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, appName+".db"),
		LogDir:     filepath.Join(dataDir, "log"),
	}, nil
}
