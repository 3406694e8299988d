package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmgrid/pkg/cache"
	"github.com/NERVsystems/osmgrid/pkg/core"
)

// GridCacheInput is the argument set of grid_cache.
type GridCacheInput struct {
	Action string `json:"action"`
}

// GridCacheOutput is the result of grid_cache.
type GridCacheOutput struct {
	Action  string      `json:"action"`
	Stats   cache.Stats `json:"stats"`
	Keys    []string    `json:"keys,omitempty"`
	Cleared int         `json:"cleared,omitempty"`
}

// GridCacheTool returns a tool definition for managing cached grids
func (r *Registry) GridCacheTool() mcp.Tool {
	return mcp.NewTool("grid_cache",
		mcp.WithDescription("Inspect or clear the cache of generated grids"),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("Action to perform: 'list', 'stats' or 'clear'"),
		),
	)
}

// HandleGridCache implements grid cache management functionality
func (r *Registry) HandleGridCache(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput(r.logger, "grid_cache",
		func(ctx context.Context, input GridCacheInput, logger *slog.Logger) (any, error) {
			out := GridCacheOutput{Action: input.Action}
			switch input.Action {
			case "list":
				out.Keys = r.cache.Keys()
			case "stats":
			case "clear":
				out.Cleared = r.cache.Len()
				r.cache.Purge()
				logger.Info("grid cache cleared", "entries", out.Cleared)
			case "":
				return nil, core.NewValidationError(core.ErrMissingParameter, "Action parameter is required")
			default:
				e := core.NewValidationError(core.ErrInvalidParameter,
					fmt.Sprintf("Unknown action: %s. Use 'list', 'stats' or 'clear'", input.Action))
				e.Field = "action"
				e.Value = input.Action
				return nil, e
			}
			out.Stats = r.cache.Stats()
			return out, nil
		})(ctx, req)
}
