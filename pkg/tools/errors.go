package tools

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmgrid/pkg/core"
)

// usageError returns an INVALID_INPUT error whose guidance shows a valid
// call of the tool.
func usageError(toolName, message string) *mcp.CallToolResult {
	return core.NewError(core.ErrInvalidInput, message).
		WithGuidance("Example arguments: " + GetToolUsageExample(toolName)).
		ToMCPResult()
}

// GetToolUsageExample returns an example JSON snippet for using a specific tool
// This is helpful for providing guidance when parameter validation fails
func GetToolUsageExample(toolName string) string {
	examples := map[string]string{
		"generate_tile_grid": `{
  "bbox": {"south": 52.50, "west": 13.35, "north": 52.55, "east": 13.45},
  "resolution": 100,
  "preset": "urban",
  "features": ["railways"]
}`,
		"resolve_region": `{
  "place": "Berlin"
}`,
		"grid_cache": `{
  "action": "stats"
}`,
	}

	if example, exists := examples[toolName]; exists {
		return example
	}

	// Generic example if not found
	return `{
  "place": "Berlin"
}`
}
