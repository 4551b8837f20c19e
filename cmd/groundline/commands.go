package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	serveradapter "github.com/hylla/groundline/internal/adapters/server"
	servercommon "github.com/hylla/groundline/internal/adapters/server/common"
	"github.com/hylla/groundline/internal/adapters/storage/sqlite"
	"github.com/hylla/groundline/internal/app"
	"github.com/hylla/groundline/internal/config"
	"github.com/hylla/groundline/internal/domain"
	"github.com/hylla/groundline/internal/report"
	"github.com/hylla/groundline/internal/schedule"
	"github.com/spf13/cobra"
)

// defaultReportWidth is the wrap width for rendered reports.
const defaultReportWidth = 100

// serviceFunc is the body of a command that needs the application service.
type serviceFunc func(ctx context.Context, env runtimeEnv, svc *app.Service, repo *sqlite.Repository) error

// serviceRunE adapts fn into a cobra RunE bound to the configured database.
func (c *cli) serviceRunE(name string, fn func(cmd *cobra.Command, args []string) serviceFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return c.withService(cmd.Context(), name, fn(cmd, args))
	}
}

func (c *cli) pathsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data and database paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := c.locations()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", c.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", c.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", loc.configPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", loc.paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", loc.dbPath)
			return nil
		},
	}
}

func (c *cli) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the TOML config file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a config file holding the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := c.locations()
			if err != nil {
				return err
			}
			if err := config.WriteDefault(loc.configPath, config.Default(loc.dbPath)); err != nil {
				return fmt.Errorf("write config %q: %w", loc.configPath, err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", loc.configPath)
			return nil
		},
	})
	return cmd
}

func (c *cli) serveCommand() *cobra.Command {
	var httpBind, apiEndpoint, mcpEndpoint string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and MCP tools over HTTP",
		Args:  cobra.NoArgs,
		RunE: c.serviceRunE("serve", func(_ *cobra.Command, _ []string) serviceFunc {
			return func(ctx context.Context, env runtimeEnv, svc *app.Service, repo *sqlite.Repository) error {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				return serveCommandRunner(ctx, serveradapter.Config{
					HTTPBind:      firstNonEmpty(httpBind, env.cfg.Server.HTTPBind),
					APIEndpoint:   firstNonEmpty(apiEndpoint, env.cfg.Server.APIEndpoint),
					MCPEndpoint:   firstNonEmpty(mcpEndpoint, env.cfg.Server.MCPEndpoint),
					ServerName:    env.appName,
					ServerVersion: version,
				}, serveradapter.Dependencies{
					Service: servercommon.NewAppServiceAdapter(svc),
					Ready:   repo.Ping,
					Logger:  env.logger,
				})
			}
		}),
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (default from config)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "HTTP API base endpoint (default from config)")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP endpoint (default from config)")
	return cmd
}

func (c *cli) projectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create and list projects",
	}

	var description string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: c.serviceRunE("project create", func(cmd *cobra.Command, args []string) serviceFunc {
			return func(ctx context.Context, _ runtimeEnv, svc *app.Service, _ *sqlite.Repository) error {
				project, err := svc.CreateProject(ctx, args[0], description)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", project.ID, project.Name)
				return nil
			}
		}),
	}
	create.Flags().StringVar(&description, "description", "", "project description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: c.serviceRunE("project list", func(cmd *cobra.Command, _ []string) serviceFunc {
			return func(ctx context.Context, _ runtimeEnv, svc *app.Service, _ *sqlite.Repository) error {
				projects, err := svc.ListProjects(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(projects) == 0 {
					_, _ = fmt.Fprintln(out, "No projects.")
					return nil
				}
				for _, p := range projects {
					_, _ = fmt.Fprintf(out, "%s\t%s\t%s\n", p.ID, p.Slug, p.Name)
				}
				return nil
			}
		}),
	}

	cmd.AddCommand(create, list)
	return cmd
}

func (c *cli) activityCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Manage activities and their hierarchy",
	}

	var (
		name, code, parent string
		start, end         string
		weight             float64
	)
	add := &cobra.Command{
		Use:   "add <project>",
		Short: "Add an activity to a project",
		Args:  cobra.ExactArgs(1),
		RunE: c.serviceRunE("activity add", func(cmd *cobra.Command, args []string) serviceFunc {
			return func(ctx context.Context, _ runtimeEnv, svc *app.Service, _ *sqlite.Repository) error {
				startDate, err := domain.ParseDate(start)
				if err != nil {
					return fmt.Errorf("--start: %w", err)
				}
				endDate, err := domain.ParseDate(end)
				if err != nil {
					return fmt.Errorf("--end: %w", err)
				}
				activity, err := svc.CreateActivity(ctx, app.CreateActivityInput{
					ProjectID:     args[0],
					Code:          code,
					Name:          name,
					ParentID:      parent,
					StartDate:     startDate,
					EndDate:       endDate,
					PlannedWeight: weight,
				})
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", activity.ID, activity.Code, activity.Name)
				return nil
			}
		}),
	}
	add.Flags().StringVar(&name, "name", "", "activity name")
	add.Flags().StringVar(&code, "code", "", "short activity code (defaults to the id)")
	add.Flags().StringVar(&parent, "parent", "", "parent activity id")
	add.Flags().StringVar(&start, "start", "", "planned start day (YYYY-MM-DD)")
	add.Flags().StringVar(&end, "end", "", "planned end day (YYYY-MM-DD)")
	add.Flags().Float64Var(&weight, "weight", 0, "planned weight used by progress rollup (0 means 1)")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("start")
	_ = add.MarkFlagRequired("end")

	list := &cobra.Command{
		Use:   "list <project>",
		Short: "List the activities of a project",
		Args:  cobra.ExactArgs(1),
		RunE: c.serviceRunE("activity list", func(cmd *cobra.Command, args []string) serviceFunc {
			return func(ctx context.Context, _ runtimeEnv, svc *app.Service, _ *sqlite.Repository) error {
				activities, err := svc.ListActivities(ctx, args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), report.ActivityTable(activities))
				return nil
			}
		}),
	}

	parentCmd := &cobra.Command{
		Use:   "parent <activity> [parent]",
		Short: "Move an activity under a parent, or detach it when no parent is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: c.serviceRunE("activity parent", func(cmd *cobra.Command, args []string) serviceFunc {
			return func(ctx context.Context, _ runtimeEnv, svc *app.Service, _ *sqlite.Repository) error {
				parentID := ""
				if len(args) == 2 {
					parentID = args[1]
				}
				activity, err := svc.SetActivityParent(ctx, args[0], parentID)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\tparent=%s\n", activity.ID, activity.ParentID)
				return nil
			}
		}),
	}

	var (
		newStart, newEnd, status string
		newWeight                float64
	)
	update := &cobra.Command{
		Use:   "update <activity>",
		Short: "Change the planned dates, weight or status of an activity",
		Args:  cobra.ExactArgs(1),
		RunE: c.serviceRunE("activity update", func(cmd *cobra.Command, args []string) serviceFunc {
			return func(ctx context.Context, _ runtimeEnv, svc *app.Service, _ *sqlite.Repository) error {
				in := app.UpdateActivityScheduleInput{
					ActivityID: args[0],
					Status:     domain.Status(status),
				}
				var err error
				if strings.TrimSpace(newStart) != "" {
					if in.StartDate, err = domain.ParseDate(newStart); err != nil {
						return fmt.Errorf("--start: %w", err)
					}
				}
				if strings.TrimSpace(newEnd) != "" {
					if in.EndDate, err = domain.ParseDate(newEnd); err != nil {
						return fmt.Errorf("--end: %w", err)
					}
				}
				if cmd.Flags().Changed("weight") {
					in.PlannedWeight = &newWeight
				}
				activity, err := svc.UpdateActivitySchedule(ctx, in)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s..%s\t%s\n",
					activity.ID, domain.FormatDate(activity.StartDate), domain.FormatDate(activity.EndDate), activity.Status)
				return nil
			}
		}),
	}
	update.Flags().StringVar(&newStart, "start", "", "new planned start day (YYYY-MM-DD)")
	update.Flags().StringVar(&newEnd, "end", "", "new planned end day (YYYY-MM-DD)")
	update.Flags().Float64Var(&newWeight, "weight", 0, "new planned weight")
	update.Flags().StringVar(&status, "status", "", "explicit status (not_started, in_progress, blocked, done)")

	cmd.AddCommand(add, list, parentCmd, update)
	return cmd
}

func (c *cli) dependencyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dep",
		Aliases: []string{"dependency"},
		Short:   "Manage finish-to-start dependencies",
	}

	add := &cobra.Command{
		Use:   "add <project> <activity> <depends-on>",
		Short: "Make an activity start after another finishes",
		Args:  cobra.ExactArgs(3),
		RunE: c.serviceRunE("dep add", func(cmd *cobra.Command, args []string) serviceFunc {
			return func(ctx context.Context, _ runtimeEnv, svc *app.Service, _ *sqlite.Repository) error {
				dep, err := svc.AddDependency(ctx, app.AddDependencyInput{
					ProjectID:           args[0],
					ActivityID:          args[1],
					DependsOnActivityID: args[2],
				})
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", dep.DependsOnActivityID, dep.ActivityID)
				return nil
			}
		}),
	}

	rm := &cobra.Command{
		Use:     "rm <project> <activity> <depends-on>",
		Aliases: []string{"remove"},
		Short:   "Remove a dependency",
		Args:    cobra.ExactArgs(3),
		RunE: c.serviceRunE("dep rm", func(_ *cobra.Command, args []string) serviceFunc {
			return func(ctx context.Context, _ runtimeEnv, svc *app.Service, _ *sqlite.Repository) error {
				return svc.RemoveDependency(ctx, args[0], args[1], args[2])
			}
		}),
	}

	list := &cobra.Command{
		Use:   "list <project>",
		Short: "List the dependencies of a project",
		Args:  cobra.ExactArgs(1),
		RunE: c.serviceRunE("dep list", func(cmd *cobra.Command, args []string) serviceFunc {
			return func(ctx context.Context, _ runtimeEnv, svc *app.Service, _ *sqlite.Repository) error {
				deps, err := svc.ListDependencies(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, dep := range deps {
					_, _ = fmt.Fprintf(out, "%s -> %s\n", dep.DependsOnActivityID, dep.ActivityID)
				}
				return nil
			}
		}),
	}

	cmd.AddCommand(add, rm, list)
	return cmd
}

// scheduleOutput selects how a computed schedule is printed.
type scheduleOutput struct {
	plain bool
	gantt bool
	width int
}

func (c *cli) scheduleCommand() *cobra.Command {
	var (
		planFile string
		output   scheduleOutput
	)
	cmd := &cobra.Command{
		Use:   "schedule [project]",
		Short: "Compute dates, float and the critical path",
		Long: `Compute early/late dates, float and the critical path for a stored project, or for a
JSON plan file with --file without touching the database.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(planFile) != "" {
				if len(args) > 0 {
					return errors.New("pass a project id or --file, not both")
				}
				env, err := c.resolve("schedule")
				if err != nil {
					return err
				}
				defer func() { _ = env.logger.Close() }()
				sched, title, err := scheduleFromPlan(planFile, env.cfg.Schedule.CriticalTolerance)
				if err != nil {
					env.logger.Error("plan schedule failed", "file", planFile, "err", err)
					return err
				}
				return writeSchedule(cmd.OutOrStdout(), title, sched, output)
			}
			if len(args) != 1 {
				return errors.New("project id is required (or --file plan.json)")
			}
			return c.withService(cmd.Context(), "schedule", func(ctx context.Context, _ runtimeEnv, svc *app.Service, _ *sqlite.Repository) error {
				project, err := svc.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				sched, err := svc.ComputeSchedule(ctx, project.ID)
				if err != nil {
					return err
				}
				return writeSchedule(cmd.OutOrStdout(), project.Name, sched, output)
			})
		},
	}
	cmd.Flags().StringVar(&planFile, "file", "", "compute from a JSON plan file instead of the database")
	cmd.Flags().BoolVar(&output.plain, "plain", false, "print raw markdown")
	cmd.Flags().BoolVar(&output.gantt, "gantt", false, "append a Gantt chart")
	cmd.Flags().IntVar(&output.width, "width", defaultReportWidth, "render width")
	return cmd
}

// scheduleFromPlan computes a schedule from one plan file.
func scheduleFromPlan(path string, tolerance float64) (schedule.Schedule, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return schedule.Schedule{}, "", fmt.Errorf("open plan file: %w", err)
	}
	defer func() { _ = f.Close() }()

	plan, err := app.DecodePlan(f)
	if err != nil {
		return schedule.Schedule{}, "", err
	}
	activities, edges, err := plan.Domain(time.Now())
	if err != nil {
		return schedule.Schedule{}, "", err
	}
	var opts []schedule.Option
	if tolerance > 0 {
		opts = append(opts, schedule.WithCriticalTolerance(tolerance))
	}
	sched, err := schedule.Compute(activities, edges, opts...)
	if err != nil {
		return schedule.Schedule{}, "", err
	}
	return sched, plan.Project.Name, nil
}

// writeSchedule prints the report, rendered unless plain, plus an optional Gantt chart.
func writeSchedule(out io.Writer, title string, sched schedule.Schedule, opts scheduleOutput) error {
	md := report.Markdown(title, sched)
	body := md
	if !opts.plain {
		body = report.Render(md, opts.width) + "\n"
	}
	if _, err := io.WriteString(out, body); err != nil {
		return err
	}
	if opts.gantt {
		if _, err := fmt.Fprintf(out, "\n%s\n", report.Gantt(sched, opts.width)); err != nil {
			return err
		}
	}
	return nil
}

func (c *cli) progressCommand() *cobra.Command {
	var note, reportedAt string
	cmd := &cobra.Command{
		Use:   "progress <activity> <percent>",
		Short: "Report percent complete for a leaf activity",
		Args:  cobra.ExactArgs(2),
		RunE: c.serviceRunE("progress", func(cmd *cobra.Command, args []string) serviceFunc {
			return func(ctx context.Context, _ runtimeEnv, svc *app.Service, _ *sqlite.Repository) error {
				percent, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(args[1]), "%"))
				if err != nil {
					return fmt.Errorf("percent %q: %w", args[1], domain.ErrInvalidPercent)
				}
				in := app.ProgressUpdateInput{ActivityID: args[0], Percent: percent, Note: note}
				if strings.TrimSpace(reportedAt) != "" {
					if in.ReportedAt, err = domain.ParseDate(reportedAt); err != nil {
						return fmt.Errorf("--date: %w", err)
					}
				}
				rollup, err := svc.ApplyProgressUpdate(ctx, in)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "%s\t%d%%\t%s\n", rollup.Leaf.Code, rollup.Leaf.Percent, rollup.Leaf.Status)
				for _, a := range rollup.Ancestors {
					_, _ = fmt.Fprintf(out, "  %s\t%d%%\t%s\n", a.Code, a.Percent, a.Status)
				}
				return nil
			}
		}),
	}
	cmd.Flags().StringVar(&note, "note", "", "progress note")
	cmd.Flags().StringVar(&reportedAt, "date", "", "report day (YYYY-MM-DD) selecting the snapshot week")
	return cmd
}

func (c *cli) closeCommand() *cobra.Command {
	var approvers domain.Approvers
	cmd := &cobra.Command{
		Use:   "close <activity>",
		Short: "Close a completed activity with its three sign-offs",
		Args:  cobra.ExactArgs(1),
		RunE: c.serviceRunE("close", func(cmd *cobra.Command, args []string) serviceFunc {
			return func(ctx context.Context, _ runtimeEnv, svc *app.Service, _ *sqlite.Repository) error {
				record, err := svc.ValidateAndClose(ctx, app.CloseActivityInput{
					ActivityID: args[0],
					Approvers:  approvers,
				})
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", record.Code, record.ClosedAt.Format(time.RFC3339))
				return nil
			}
		}),
	}
	cmd.Flags().StringVar(&approvers.ProjectManager, "pm", "", "project manager sign-off")
	cmd.Flags().StringVar(&approvers.Director, "director", "", "director sign-off")
	cmd.Flags().StringVar(&approvers.Contractor, "contractor", "", "contractor sign-off")
	return cmd
}

func (c *cli) snapshotsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots <activity>",
		Short: "List weekly progress snapshots of an activity",
		Args:  cobra.ExactArgs(1),
		RunE: c.serviceRunE("snapshots", func(cmd *cobra.Command, args []string) serviceFunc {
			return func(ctx context.Context, _ runtimeEnv, svc *app.Service, _ *sqlite.Repository) error {
				snaps, err := svc.ListProgressSnapshots(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, s := range snaps {
					_, _ = fmt.Fprintf(out, "%s\t%d%%\t%s\n", domain.FormatDate(s.WeekStart), s.Percent, s.Note)
				}
				return nil
			}
		}),
	}
}

func (c *cli) eventsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events <project>",
		Short: "List recent changes to a project, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: c.serviceRunE("events", func(cmd *cobra.Command, args []string) serviceFunc {
			return func(ctx context.Context, _ runtimeEnv, svc *app.Service, _ *sqlite.Repository) error {
				events, err := svc.ListChangeEvents(ctx, args[0], limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, e := range events {
					_, _ = fmt.Fprintf(out, "%s\t%s\t%s\n", e.OccurredAt.Format(time.RFC3339), e.Operation, e.ActivityID)
				}
				return nil
			}
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of events")
	return cmd
}

func (c *cli) exportCommand() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export <project>",
		Short: "Export a project as a JSON plan",
		Args:  cobra.ExactArgs(1),
		RunE: c.serviceRunE("export", func(cmd *cobra.Command, args []string) serviceFunc {
			return func(ctx context.Context, _ runtimeEnv, svc *app.Service, _ *sqlite.Repository) error {
				plan, err := svc.ExportPlan(ctx, args[0])
				if err != nil {
					return fmt.Errorf("export plan: %w", err)
				}
				encoded, err := json.MarshalIndent(plan, "", "  ")
				if err != nil {
					return fmt.Errorf("encode plan json: %w", err)
				}
				encoded = append(encoded, '\n')

				if outPath == "-" {
					if _, err := cmd.OutOrStdout().Write(encoded); err != nil {
						return fmt.Errorf("write plan to stdout: %w", err)
					}
					return nil
				}
				if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
					return fmt.Errorf("create export output dir: %w", err)
				}
				if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
					return fmt.Errorf("write export file: %w", err)
				}
				return nil
			}
		}),
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

func (c *cli) importCommand() *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a JSON plan as a new project",
		Args:  cobra.NoArgs,
		RunE: c.serviceRunE("import", func(cmd *cobra.Command, _ []string) serviceFunc {
			return func(ctx context.Context, _ runtimeEnv, svc *app.Service, _ *sqlite.Repository) error {
				f, err := os.Open(inPath)
				if err != nil {
					return fmt.Errorf("read import file: %w", err)
				}
				defer func() { _ = f.Close() }()
				plan, err := app.DecodePlan(f)
				if err != nil {
					return err
				}
				project, err := svc.ImportPlan(ctx, plan)
				if err != nil {
					return fmt.Errorf("import plan: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", project.ID, project.Name)
				return nil
			}
		}),
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input plan JSON file")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
