package tools

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmgrid/pkg/config"
	"github.com/NERVsystems/osmgrid/pkg/tile"
)

// PresetInfo describes a named feature preset.
type PresetInfo struct {
	Name     string   `json:"name"`
	Features []string `json:"features"`
}

// FeatureInfo describes a feature category.
type FeatureInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TileType    tile.Type `json:"tile_type"`
	Priority    int       `json:"priority"`
	Tags        []string  `json:"tags"`
}

// TileTypeInfo describes a tile type and how to draw it.
type TileTypeInfo struct {
	Type     tile.Type `json:"type"`
	Priority int       `json:"priority"`
	RenderHint
}

// CatalogOutput is the result of list_feature_presets.
type CatalogOutput struct {
	Presets           []PresetInfo   `json:"presets"`
	Features          []FeatureInfo  `json:"features"`
	TileTypes         []TileTypeInfo `json:"tile_types"`
	DefaultResolution int            `json:"default_resolution"`
}

// ListFeaturePresetsTool returns a tool definition listing presets and categories
func (r *Registry) ListFeaturePresetsTool() mcp.Tool {
	return r.factory.CreateBasicTool("list_feature_presets",
		"List the feature presets, feature categories with their OSM tags, and tile types with render hints")
}

// HandleListFeaturePresets implements the feature catalogue listing
func (r *Registry) HandleListFeaturePresets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput(r.logger, "list_feature_presets",
		func(ctx context.Context, _ struct{}, logger *slog.Logger) (any, error) {
			return featureCatalog()
		})(ctx, req)
}

func featureCatalog() (CatalogOutput, error) {
	out := CatalogOutput{DefaultResolution: config.DefaultGridResolution}

	for _, name := range config.PresetNames() {
		fs, err := config.Preset(name)
		if err != nil {
			return CatalogOutput{}, err
		}
		out.Presets = append(out.Presets, PresetInfo{Name: name, Features: featureNames(fs)})
	}

	for _, f := range config.AllFeatures() {
		info := FeatureInfo{
			Name:        f.String(),
			Description: f.Description(),
			TileType:    f.TileType(),
			Priority:    f.Priority(),
		}
		for _, q := range f.Rules() {
			info.Tags = append(info.Tags, q.String())
		}
		out.Features = append(out.Features, info)
	}

	for _, t := range tile.All() {
		out.TileTypes = append(out.TileTypes, TileTypeInfo{Type: t, Priority: t.Priority(), RenderHint: HintFor(t)})
	}
	return out, nil
}
