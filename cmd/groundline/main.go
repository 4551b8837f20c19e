package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	serveradapter "github.com/hylla/groundline/internal/adapters/server"
	"github.com/hylla/groundline/internal/adapters/storage/sqlite"
	"github.com/hylla/groundline/internal/app"
	"github.com/hylla/groundline/internal/config"
	"github.com/hylla/groundline/internal/platform"
	"github.com/spf13/cobra"
)

// version is stamped at build time.
var version = "dev"

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run builds the command tree and executes args through fang.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// cli holds persistent flag state shared by every command.
type cli struct {
	stdout     io.Writer
	stderr     io.Writer
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

// runtimeEnv is the resolved configuration for one command invocation.
type runtimeEnv struct {
	appName string
	cfg     config.Config
	logger  *runtimeLogger
}

// newRootCommand wires the groundline command tree.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("GROUNDLINE_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	defaultApp := platform.DefaultAppName
	if envApp := strings.TrimSpace(os.Getenv("GROUNDLINE_APP_NAME")); envApp != "" {
		defaultApp = envApp
	}

	root := &cobra.Command{
		Use:   "groundline",
		Short: "Critical-path scheduling for construction projects",
		Long: `groundline keeps a project's activity hierarchy and finish-to-start dependencies in a
local SQLite database, computes early/late dates, float and the critical path, rolls
reported progress up the hierarchy and gates activity closure on three approvers.`,
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to config TOML")
	flags.StringVar(&c.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&c.appName, "app", defaultApp, "application name for config/data path resolution")
	flags.BoolVar(&c.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		c.pathsCommand(),
		c.configCommand(),
		c.serveCommand(),
		c.projectCommand(),
		c.activityCommand(),
		c.dependencyCommand(),
		c.scheduleCommand(),
		c.progressCommand(),
		c.closeCommand(),
		c.snapshotsCommand(),
		c.eventsCommand(),
		c.exportCommand(),
		c.importCommand(),
	)
	return root
}

// resolvedPaths holds the config and database paths picked for one invocation.
type resolvedPaths struct {
	paths        platform.Paths
	configPath   string
	dbPath       string
	dbOverridden bool
}

// locations resolves config and database paths with flag > env > platform precedence.
func (c *cli) locations() (resolvedPaths, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: c.appName,
		DevMode: c.devMode,
	})
	if err != nil {
		return resolvedPaths{}, err
	}
	loc := resolvedPaths{paths: paths}

	loc.configPath = strings.TrimSpace(c.configPath)
	if loc.configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("GROUNDLINE_CONFIG")); envPath != "" {
			loc.configPath = envPath
		} else {
			loc.configPath = paths.ConfigPath
		}
	}
	loc.dbPath = strings.TrimSpace(c.dbPath)
	loc.dbOverridden = loc.dbPath != ""
	if !loc.dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("GROUNDLINE_DB_PATH")); envPath != "" {
			loc.dbPath = envPath
			loc.dbOverridden = true
		} else {
			loc.dbPath = paths.DBPath
		}
	}
	return loc, nil
}

// resolve loads config for the resolved locations and opens the runtime logger.
func (c *cli) resolve(command string) (runtimeEnv, error) {
	loc, err := c.locations()
	if err != nil {
		return runtimeEnv{}, err
	}
	configPath, dbPath, paths := loc.configPath, loc.dbPath, loc.paths

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return runtimeEnv{}, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if loc.dbOverridden {
		cfg.Database.Path = dbPath
	}

	logger, err := newRuntimeLogger(c.stderr, c.appName, c.devMode, cfg.Logging, time.Now)
	if err != nil {
		return runtimeEnv{}, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.Info("startup configuration resolved", "app", c.appName, "dev_mode", c.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Debug("dev file logging enabled", "path", devPath)
	}
	return runtimeEnv{
		appName: c.appName,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// withService runs fn against an application service backed by the configured sqlite database.
func (c *cli) withService(ctx context.Context, command string, fn func(context.Context, runtimeEnv, *app.Service, *sqlite.Repository) error) error {
	env, err := c.resolve(command)
	if err != nil {
		return err
	}
	logger := env.logger
	defer func() {
		if closeErr := logger.Close(); closeErr != nil {
			_, _ = fmt.Fprintf(c.stderr, "warning: close runtime log sink: %v\n", closeErr)
		}
	}()

	logger.Debug("opening sqlite repository", "db_path", env.cfg.Database.Path)
	repo, err := sqlite.Open(env.cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", env.cfg.Database.Path, "err", err)
		return fmt.Errorf("open sqlite repository: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Warn("sqlite close failed", "db_path", env.cfg.Database.Path, "err", closeErr)
		}
	}()

	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		CriticalTolerance: env.cfg.Schedule.CriticalTolerance,
		ClosureCodePrefix: env.cfg.Closure.CodePrefix,
		WeekStart:         env.cfg.Schedule.WeekStart,
	})

	logger.Debug("command flow start", "command", command)
	if err := fn(ctx, env, svc, repo); err != nil {
		logger.Error("command flow failed", "command", command, "err", err)
		return err
	}
	logger.Debug("command flow complete", "command", command)
	return nil
}

// parseBoolEnv parses one boolean environment variable; ok is false when unset or malformed.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
