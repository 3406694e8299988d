package core

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmgrid/pkg/config"
)

// ToolFactory builds tool definitions that share the region and feature
// parameters.
type ToolFactory struct {
	defaultResolution int
}

// NewToolFactory creates a new tool factory
func NewToolFactory() *ToolFactory {
	return &ToolFactory{defaultResolution: config.DefaultGridResolution}
}

// CreateBasicTool creates a new tool with the specified name and description
func (f *ToolFactory) CreateBasicTool(name, description string) mcp.Tool {
	return mcp.NewTool(name, mcp.WithDescription(description))
}

func regionOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("place",
			mcp.Description("Place name to resolve, e.g. \"Berlin\". Mutually exclusive with bbox and center."),
		),
		mcp.WithObject("bbox",
			mcp.Description("Bounding box in degrees: {\"south\": 52.50, \"west\": 13.35, \"north\": 52.55, \"east\": 13.45}"),
		),
		mcp.WithObject("center",
			mcp.Description("Centre point {\"latitude\": 52.52, \"longitude\": 13.40}; requires radius_km"),
		),
		mcp.WithNumber("radius_km",
			mcp.Description("Radius around center in kilometres"),
		),
	}
}

// CreateRegionTool creates a tool taking a region as place, bbox or
// centre and radius.
func (f *ToolFactory) CreateRegionTool(name, description string, extra ...mcp.ToolOption) mcp.Tool {
	opts := append([]mcp.ToolOption{mcp.WithDescription(description)}, regionOptions()...)
	return mcp.NewTool(name, append(opts, extra...)...)
}

// CreateGridTool creates a region tool with resolution and feature
// selection parameters.
func (f *ToolFactory) CreateGridTool(name, description string, extra ...mcp.ToolOption) mcp.Tool {
	features := make([]string, 0, len(config.AllFeatures()))
	for _, feat := range config.AllFeatures() {
		features = append(features, feat.String())
	}

	opts := []mcp.ToolOption{
		mcp.WithNumber("resolution",
			mcp.Description(fmt.Sprintf("Cells per side (default %d, supported up to %d)", f.defaultResolution, config.PerformanceSensitiveResolution)),
			mcp.DefaultNumber(float64(f.defaultResolution)),
		),
		mcp.WithString("preset",
			mcp.Description("Feature preset: "+strings.Join(config.PresetNames(), ", ")),
		),
		mcp.WithArray("features",
			mcp.Description("Feature categories to add: "+strings.Join(features, ", ")),
		),
		mcp.WithArray("exclude",
			mcp.Description("Feature categories to remove"),
		),
		mcp.WithArray("custom_queries",
			mcp.Description("Extra tag queries as \"key\" or \"key=value\", e.g. [\"shop=bakery\"]"),
		),
	}
	return f.CreateRegionTool(name, description, append(opts, extra...)...)
}
