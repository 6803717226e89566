// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/evanschultz/funnel/internal/adapters/server/common"
	"github.com/evanschultz/funnel/internal/domain"
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

// NewHandler builds one stateless MCP adapter exposing the pipeline tools.
func NewHandler(cfg Config, service common.PipelineService) (*Handler, error) {
	if service == nil {
		return nil, fmt.Errorf("pipeline service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerBoardTool(mcpSrv, service)
	registerStagesTool(mcpSrv, service)
	registerMoveItemTool(mcpSrv, service)

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
		cfg.ServerName = "funnel"
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

// pipelineNames lists accepted pipeline argument values.
func pipelineNames() []string {
	pipelines := domain.Pipelines()
	out := make([]string, 0, len(pipelines))
	for _, p := range pipelines {
		out = append(out, string(p))
	}
	return out
}

// registerBoardTool registers the `funnel.board` tool.
func registerBoardTool(srv *mcpserver.MCPServer, service common.PipelineService) {
	srv.AddTool(
		mcp.NewTool(
			"funnel.board",
			mcp.WithDescription("Return every column of one pipeline with item counts and monetary totals."),
			mcp.WithString("pipeline", mcp.Required(), mcp.Description("Pipeline name"), mcp.Enum(pipelineNames()...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			pipeline, err := req.RequireString("pipeline")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			board, err := service.Board(ctx, pipeline)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(board)
			if err != nil {
				return nil, fmt.Errorf("encode board result: %w", err)
			}
			return result, nil
		},
	)
}

// registerStagesTool registers the `funnel.stages` tool.
func registerStagesTool(srv *mcpserver.MCPServer, service common.PipelineService) {
	srv.AddTool(
		mcp.NewTool(
			"funnel.stages",
			mcp.WithDescription("List the stages of one pipeline in display order."),
			mcp.WithString("pipeline", mcp.Required(), mcp.Description("Pipeline name"), mcp.Enum(pipelineNames()...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			pipeline, err := req.RequireString("pipeline")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			stages, err := service.ListStages(ctx, pipeline)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"stages": stages,
			})
			if err != nil {
				return nil, fmt.Errorf("encode stages result: %w", err)
			}
			return result, nil
		},
	)
}

// registerMoveItemTool registers the `funnel.move_item` tool.
func registerMoveItemTool(srv *mcpserver.MCPServer, service common.PipelineService) {
	srv.AddTool(
		mcp.NewTool(
			"funnel.move_item",
			mcp.WithDescription("Move one item into a stage of its pipeline."),
			mcp.WithString("pipeline", mcp.Required(), mcp.Description("Pipeline name"), mcp.Enum(pipelineNames()...)),
			mcp.WithString("item_id", mcp.Required(), mcp.Description("Item identifier")),
			mcp.WithString("status", mcp.Required(), mcp.Description("Target stage id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			pipeline, err := req.RequireString("pipeline")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			itemID, err := req.RequireString("item_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			status, err := req.RequireString("status")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			moved, err := service.MoveItem(ctx, common.MoveItemRequest{
				Pipeline: pipeline,
				ItemID:   itemID,
				Status:   status,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(moved)
			if err != nil {
				return nil, fmt.Errorf("encode move_item result: %w", err)
			}
			return result, nil
		},
	)
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
