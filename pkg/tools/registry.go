package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/osmgrid/pkg/cache"
	"github.com/NERVsystems/osmgrid/pkg/core"
	"github.com/NERVsystems/osmgrid/pkg/monitoring"
	"github.com/NERVsystems/osmgrid/pkg/pipeline"
	"github.com/NERVsystems/osmgrid/pkg/tracing"
)

// Registry contains all tool definitions and handlers
type Registry struct {
	loader  *pipeline.Loader
	cache   *cache.GridCache
	logger  *slog.Logger
	factory *core.ToolFactory
}

// NewRegistry creates a new tool registry serving grids from loader.
// gridCache should be the cache the loader was built with.
func NewRegistry(loader *pipeline.Loader, gridCache *cache.GridCache, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		loader:  loader,
		cache:   gridCache,
		logger:  logger,
		factory: core.NewToolFactory(),
	}
}

// ToolDefinition represents an osmgrid MCP tool definition.
type ToolDefinition struct {
	Name        string
	Description string
	Tool        mcp.Tool
	Handler     func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// GetToolDefinitions returns the list of all available tools.
func (r *Registry) GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "get_version",
			Description: "Get the version information and data provider of this service",
			Tool:        GetVersionTool(),
			Handler:     r.HandleGetVersion,
		},
		{
			Name:        "generate_tile_grid",
			Description: "Generate a classified tile grid. Parameters: one of place (string), bbox (object with south, west, north, east) or center (object with latitude, longitude) plus radius_km; resolution (number), preset (string), features, exclude and custom_queries (string arrays)",
			Tool:        r.GenerateTileGridTool(),
			Handler:     r.HandleGenerateTileGrid,
		},
		{
			Name:        "list_feature_presets",
			Description: "List feature presets, feature categories and tile types",
			Tool:        r.ListFeaturePresetsTool(),
			Handler:     r.HandleListFeaturePresets,
		},
		{
			Name:        "resolve_region",
			Description: "Resolve a region to its bounding box and area. Parameters: one of place, bbox or center plus radius_km",
			Tool:        r.ResolveRegionTool(),
			Handler:     r.HandleResolveRegion,
		},
		{
			Name:        "grid_cache",
			Description: "Manage cached grids. Parameters: action (string: list, stats, clear)",
			Tool:        r.GridCacheTool(),
			Handler:     r.HandleGridCache,
		},
	}
}

// RegisterTools registers all tools with the MCP server.
func (r *Registry) RegisterTools(mcpServer *server.MCPServer) {
	for _, def := range r.GetToolDefinitions() {
		r.logger.Info("registering tool", "name", def.Name)
		mcpServer.AddTool(def.Tool, r.wrapWithTracing(def.Name, def.Handler))
	}
}

// wrapWithTracing wraps a tool handler with OpenTelemetry tracing and
// request metrics
func (r *Registry) wrapWithTracing(toolName string, handler func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)) func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		spanName := fmt.Sprintf("mcp.tool.%s", toolName)
		ctx, span := tracing.StartSpan(ctx, spanName,
			trace.WithAttributes(
				attribute.String(tracing.AttrMCPToolName, toolName),
			),
		)
		defer span.End()

		startTime := time.Now()
		result, err := handler(ctx, req)
		duration := time.Since(startTime)

		status := tracing.StatusSuccess
		switch {
		case err != nil:
			status = tracing.StatusError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case result != nil && result.IsError:
			status = tracing.StatusError
			span.SetStatus(codes.Error, "tool returned an error result")
		default:
			span.SetStatus(codes.Ok, "")
		}

		resultSize := 0
		if result != nil && result.Content != nil {
			if data, marshalErr := json.Marshal(result.Content); marshalErr == nil {
				resultSize = len(data)
			}
		}

		span.SetAttributes(tracing.MCPToolAttributes(toolName, status, duration.Milliseconds(), resultSize)...)
		monitoring.RecordMCPRequest(toolName, duration, status == tracing.StatusSuccess)

		r.logger.Debug("tool execution traced",
			"tool", toolName,
			"duration_ms", duration.Milliseconds(),
			"status", status,
			"result_size", resultSize,
		)

		return result, err
	}
}

// RegisterPrompts registers all prompts with the MCP server.
func (r *Registry) RegisterPrompts(mcpServer *server.MCPServer) {
	r.logger.Info("registering tile grid prompts")
	mcpServer.AddPrompt(GridSystemPrompt(), HandleGridSystemPrompt)
}

// GetToolNames returns a list of all tool names.
func (r *Registry) GetToolNames() []string {
	defs := r.GetToolDefinitions()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}

// RegisterAll registers all tools and prompts with the MCP server.
func (r *Registry) RegisterAll(mcpServer *server.MCPServer) {
	r.RegisterTools(mcpServer)
	r.RegisterPrompts(mcpServer)
}
