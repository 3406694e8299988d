package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmgrid/pkg/config"
	"github.com/NERVsystems/osmgrid/pkg/core"
	"github.com/NERVsystems/osmgrid/pkg/geo"
)

// ResolveRegionOutput is the result of resolve_region.
type ResolveRegionOutput struct {
	Region   string       `json:"region"`
	Kind     string       `json:"kind"`
	BBox     BBox         `json:"bbox"`
	Center   geo.Location `json:"center"`
	AreaKm2  float64      `json:"area_km2"`
	Provider string       `json:"provider"`
	// CellSizeM is the approximate cell edge in metres at the default
	// resolution.
	CellSizeM float64  `json:"cell_size_m"`
	Warnings  []string `json:"warnings,omitempty"`
}

// ResolveRegionTool returns a tool definition for region resolution
func (r *Registry) ResolveRegionTool() mcp.Tool {
	return r.factory.CreateRegionTool("resolve_region",
		"Resolve a place name, bounding box or centre and radius to the bounding box a grid would cover, with its area")
}

// HandleResolveRegion resolves a region through the active provider
func (r *Registry) HandleResolveRegion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput(r.logger, "resolve_region",
		func(ctx context.Context, input core.RegionInput, logger *slog.Logger) (any, error) {
			region, err := input.Region()
			if err != nil {
				return nil, err
			}
			if err := region.Validate(); err != nil {
				return nil, err
			}

			p := r.loader.Provider()
			bbox, err := p.ResolveRegion(ctx, region)
			if err != nil {
				return nil, err
			}

			out := ResolveRegionOutput{
				Region:    region.String(),
				Kind:      region.Kind.String(),
				BBox:      bboxOf(bbox),
				Center:    bbox.Center(),
				AreaKm2:   bbox.AreaKm2(),
				Provider:  p.Name(),
				CellSizeM: cellEdgeMetres(bbox, config.DefaultGridResolution),
			}
			if limit := p.Capabilities().MaxAreaKm2; limit > 0 && out.AreaKm2 > limit {
				out.Warnings = append(out.Warnings,
					fmt.Sprintf("area %.0f km2 exceeds the %s provider limit of %.0f km2", out.AreaKm2, p.Name(), limit))
			}
			logger.Debug("region resolved", "region", out.Region, "bbox", bbox.String(), "area_km2", out.AreaKm2)
			return out, nil
		})(ctx, req)
}

// cellEdgeMetres is the mean edge length of a cell when b is split into
// resolution cells per side.
func cellEdgeMetres(b geo.BoundingBox, resolution int) float64 {
	c := b.Center()
	width := geo.HaversineDistance(c.Latitude, b.West(), c.Latitude, b.East())
	height := geo.HaversineDistance(b.South(), c.Longitude, b.North(), c.Longitude)
	return (width + height) / 2 / float64(resolution)
}
