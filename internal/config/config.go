package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is the TOML-backed runtime configuration.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Server   ServerConfig   `toml:"server"`
	Schedule ScheduleConfig `toml:"schedule"`
	Closure  ClosureConfig  `toml:"closure"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"` // debug | info | warn | error
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

type ScheduleConfig struct {
	CriticalTolerance float64 `toml:"critical_tolerance"`
	WeekStart         string  `toml:"week_start"`
}

type ClosureConfig struct {
	CodePrefix string `toml:"code_prefix"`
}

var validLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

var validWeekdays = map[string]struct{}{
	"monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {}, "friday": {}, "saturday": {}, "sunday": {},
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".groundline/log",
			},
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:5437",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Schedule: ScheduleConfig{
			CriticalTolerance: 0.5,
			WeekStart:         "monday",
		},
		Closure: ClosureConfig{
			CodePrefix: "CLS",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if _, ok := validLevels[level]; !ok {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if c.Logging.DevFile.Enabled && strings.TrimSpace(c.Logging.DevFile.Dir) == "" {
		return errors.New("logging.dev_file.dir is required when the dev file sink is enabled")
	}

	if strings.TrimSpace(c.Server.HTTPBind) == "" {
		return errors.New("server.http_bind is required")
	}
	for name, endpoint := range map[string]string{
		"server.api_endpoint": c.Server.APIEndpoint,
		"server.mcp_endpoint": c.Server.MCPEndpoint,
	} {
		if !strings.HasPrefix(strings.TrimSpace(endpoint), "/") {
			return fmt.Errorf("%s must start with '/': %q", name, endpoint)
		}
	}

	tol := c.Schedule.CriticalTolerance
	if tol <= 0 || math.IsNaN(tol) || math.IsInf(tol, 0) {
		return fmt.Errorf("schedule.critical_tolerance must be > 0, got %v", tol)
	}
	weekStart := strings.ToLower(strings.TrimSpace(c.Schedule.WeekStart))
	if _, ok := validWeekdays[weekStart]; !ok && weekStart != "" {
		return fmt.Errorf("invalid schedule.week_start: %q", c.Schedule.WeekStart)
	}

	prefix := strings.TrimSpace(c.Closure.CodePrefix)
	if prefix == "" {
		return errors.New("closure.code_prefix is required")
	}
	if strings.ContainsAny(prefix, " \t/") {
		return fmt.Errorf("closure.code_prefix must not contain spaces or slashes: %q", prefix)
	}

	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// WriteDefault writes cfg as TOML to path, creating parent directories. An existing file is left
// untouched and reported as os.ErrExist.
func WriteDefault(path string, cfg Config) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	if _, err := f.Write(encoded); err != nil {
		_ = f.Close()
		return fmt.Errorf("write config file: %w", err)
	}
	return f.Close()
}
