package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmgrid/pkg/config"
)

// GridSystemPrompt returns the prompt describing how to request grids.
func GridSystemPrompt() mcp.Prompt {
	return mcp.NewPrompt("tile_grid_system",
		mcp.WithPromptDescription("System prompt with instructions for generating tile grids"),
	)
}

// HandleGridSystemPrompt returns the grid instructions.
func HandleGridSystemPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return mcp.NewGetPromptResult(
		"Tile Grid Instructions",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleAssistant, mcp.NewTextContent(gridInstructions())),
		},
	), nil
}

func gridInstructions() string {
	var b strings.Builder
	b.WriteString("You can turn OpenStreetMap data into a grid of classified tiles.\n\n")
	b.WriteString("1. Pick a region: a place name, a bbox {south, west, north, east} or a center {latitude, longitude} with radius_km. ")
	b.WriteString("Use resolve_region first when unsure how large a place is.\n")
	b.WriteString("2. Pick features with a preset (")
	b.WriteString(strings.Join(config.PresetNames(), ", "))
	b.WriteString(") and adjust with features, exclude or custom_queries such as \"shop=bakery\". ")
	b.WriteString("list_feature_presets shows every category.\n")
	b.WriteString("3. Call generate_tile_grid. Row 0 is the northern edge; columns run west to east. ")
	b.WriteString("Ask for include_cells only for small grids.\n")
	b.WriteString("4. Errors marked retryable (rate limits, timeouts, network) can be repeated after a pause; ")
	b.WriteString("configuration errors need corrected arguments.\n")
	return b.String()
}
