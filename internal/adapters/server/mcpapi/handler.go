// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hylla/groundline/internal/adapters/server/common"
	"github.com/hylla/groundline/internal/schedule"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the schedule tools.
func NewHandler(cfg Config, service common.ScheduleService) (*Handler, error) {
	if service == nil {
		return nil, fmt.Errorf("schedule service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerProjectTools(mcpSrv, service)
	registerScheduleTools(mcpSrv, service)
	registerProgressTools(mcpSrv, service)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "groundline"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerProjectTools registers project and activity listing tools.
func registerProjectTools(srv *mcpserver.MCPServer, service common.ScheduleService) {
	srv.AddTool(
		mcp.NewTool(
			"groundline.list_projects",
			mcp.WithDescription("List every project."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			projects, err := service.ListProjects(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"projects": projects})
			if err != nil {
				return nil, fmt.Errorf("encode list_projects result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"groundline.list_activities",
			mcp.WithDescription("List the activities of one project."),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			projectID, err := req.RequireString("project_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			activities, err := service.ListActivities(ctx, projectID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"activities": activities})
			if err != nil {
				return nil, fmt.Errorf("encode list_activities result: %w", err)
			}
			return result, nil
		},
	)
}

// registerScheduleTools registers schedule computation and dependency editing tools.
func registerScheduleTools(srv *mcpserver.MCPServer, service common.ScheduleService) {
	srv.AddTool(
		mcp.NewTool(
			"groundline.compute_schedule",
			mcp.WithDescription("Compute early/late dates, float and the critical path for one project."),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			projectID, err := req.RequireString("project_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			view, err := service.ComputeSchedule(ctx, projectID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(view)
			if err != nil {
				return nil, fmt.Errorf("encode compute_schedule result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"groundline.add_dependency",
			mcp.WithDescription("Make one activity start after another finishes. Cycles are refused."),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
			mcp.WithString("activity_id", mcp.Required(), mcp.Description("Successor activity id")),
			mcp.WithString("depends_on_activity_id", mcp.Required(), mcp.Description("Predecessor activity id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args common.DependencyRequest
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			projectID, err := req.RequireString("project_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			args.ProjectID = projectID
			dep, err := service.AddDependency(ctx, args)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(dep)
			if err != nil {
				return nil, fmt.Errorf("encode add_dependency result: %w", err)
			}
			return result, nil
		},
	)
}

// registerProgressTools registers progress reporting and closure tools.
func registerProgressTools(srv *mcpserver.MCPServer, service common.ScheduleService) {
	srv.AddTool(
		mcp.NewTool(
			"groundline.apply_progress",
			mcp.WithDescription("Report percent complete for a leaf activity and roll it up to its ancestors."),
			mcp.WithString("activity_id", mcp.Required(), mcp.Description("Leaf activity id")),
			mcp.WithNumber("percent", mcp.Required(), mcp.Description("Percent complete, clamped to 0..100")),
			mcp.WithString("note", mcp.Description("Optional progress note")),
			mcp.WithString("reported_at", mcp.Description("Optional YYYY-MM-DD day selecting the snapshot week")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			activityID, err := req.RequireString("activity_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			percent, err := req.RequireInt("percent")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			rollup, err := service.ApplyProgress(ctx, common.ProgressRequest{
				ActivityID: activityID,
				Percent:    &percent,
				Note:       req.GetString("note", ""),
				ReportedAt: req.GetString("reported_at", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(rollup)
			if err != nil {
				return nil, fmt.Errorf("encode apply_progress result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"groundline.close_activity",
			mcp.WithDescription("Close a completed activity once its dependencies and children are settled."),
			mcp.WithString("activity_id", mcp.Required(), mcp.Description("Activity id")),
			mcp.WithString("project_manager", mcp.Description("Project manager sign-off")),
			mcp.WithString("director", mcp.Description("Director sign-off")),
			mcp.WithString("contractor", mcp.Description("Contractor sign-off")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			activityID, err := req.RequireString("activity_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			record, err := service.CloseActivity(ctx, common.CloseActivityRequest{
				ActivityID:     activityID,
				ProjectManager: req.GetString("project_manager", ""),
				Director:       req.GetString("director", ""),
				Contractor:     req.GetString("contractor", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(record)
			if err != nil {
				return nil, fmt.Errorf("encode close_activity result: %w", err)
			}
			return result, nil
		},
	)
}

// invalidRequestToolResult wraps argument binding failures.
func invalidRequestToolResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError("invalid_request: " + err.Error())
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	var closureErr *schedule.ClosureError
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.As(err, &closureErr):
		return mcp.NewToolResultError("closure_rejected: " + err.Error())
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	case errors.Is(err, common.ErrBusinessRule):
		return mcp.NewToolResultError("business_rule: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
