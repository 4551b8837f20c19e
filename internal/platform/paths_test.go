package platform

import (
	"path/filepath"
	"testing"
)

func TestResolve(t *testing.T) {
	base := BaseDirs{Config: "/home/ana/.config", Data: "/home/ana/.local/share"}
	cases := []struct {
		name       string
		goos       string
		env        map[string]string
		wantConfig string
		wantData   string
	}{
		{
			name:       "linux xdg",
			goos:       "linux",
			env:        map[string]string{"XDG_CONFIG_HOME": "/xdg/config", "XDG_DATA_HOME": "/xdg/data"},
			wantConfig: "/xdg/config",
			wantData:   "/xdg/data",
		},
		{
			name:       "linux defaults",
			goos:       "linux",
			wantConfig: base.Config,
			wantData:   base.Data,
		},
		{
			name:       "windows appdata",
			goos:       "windows",
			env:        map[string]string{"APPDATA": "/roaming", "LOCALAPPDATA": "/local"},
			wantConfig: "/roaming",
			wantData:   "/local",
		},
		{
			name:       "darwin ignores xdg",
			goos:       "darwin",
			env:        map[string]string{"XDG_CONFIG_HOME": "/ignored"},
			wantConfig: base.Config,
			wantData:   base.Data,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			getenv := func(key string) string { return tc.env[key] }
			p, err := Resolve(tc.goos, getenv, base, "groundline")
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if want := filepath.Join(tc.wantConfig, "groundline", "config.toml"); p.ConfigPath != want {
				t.Fatalf("ConfigPath = %q, want %q", p.ConfigPath, want)
			}
			dataDir := filepath.Join(tc.wantData, "groundline")
			if p.DataDir != dataDir {
				t.Fatalf("DataDir = %q, want %q", p.DataDir, dataDir)
			}
			if want := filepath.Join(dataDir, "groundline.db"); p.DBPath != want {
				t.Fatalf("DBPath = %q, want %q", p.DBPath, want)
			}
			if want := filepath.Join(dataDir, "log"); p.LogDir != want {
				t.Fatalf("LogDir = %q, want %q", p.LogDir, want)
			}
		})
	}
}

func TestResolveRequiresNameAndBases(t *testing.T) {
	if _, err := Resolve("linux", nil, BaseDirs{Config: "/c", Data: "/d"}, " "); err == nil {
		t.Fatal("expected error for blank app name")
	}
	if _, err := Resolve("darwin", nil, BaseDirs{Data: "/d"}, "groundline"); err == nil {
		t.Fatal("expected error for missing config base")
	}
}

func TestDefaultPathsWithOptions(t *testing.T) {
	p, err := DefaultPathsWithOptions(Options{})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	if filepath.Base(p.DBPath) != DefaultAppName+".db" {
		t.Fatalf("DBPath = %q", p.DBPath)
	}

	dev, err := DefaultPathsWithOptions(Options{AppName: "groundline", DevMode: true})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions(dev) error = %v", err)
	}
	if filepath.Base(filepath.Dir(dev.ConfigPath)) != "groundline-dev" || filepath.Base(dev.DBPath) != "groundline-dev.db" {
		t.Fatalf("dev paths not suffixed: %+v", dev)
	}
}
