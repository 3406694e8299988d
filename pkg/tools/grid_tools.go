package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/osmgrid/pkg/config"
	"github.com/NERVsystems/osmgrid/pkg/core"
	"github.com/NERVsystems/osmgrid/pkg/geo"
	"github.com/NERVsystems/osmgrid/pkg/grid"
	"github.com/NERVsystems/osmgrid/pkg/pipeline"
	"github.com/NERVsystems/osmgrid/pkg/tile"
)

// BBox is a bounding box in tool results.
type BBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

func bboxOf(b geo.BoundingBox) BBox {
	return BBox{South: b.South(), West: b.West(), North: b.North(), East: b.East()}
}

// CellSize is the extent of one cell in degrees.
type CellSize struct {
	Lat float64 `json:"lat_deg"`
	Lon float64 `json:"lon_deg"`
}

// GenerateGridInput is the argument set of generate_tile_grid.
type GenerateGridInput struct {
	core.GridInput
	Preview *bool `json:"preview,omitempty"`
}

// GridOutput is the result of generate_tile_grid.
type GridOutput struct {
	Region        BBox             `json:"region"`
	AreaKm2       float64          `json:"area_km2"`
	Width         int              `json:"width"`
	Height        int              `json:"height"`
	CellSize      CellSize         `json:"cell_size"`
	Features      []string         `json:"features"`
	CustomQueries []string         `json:"custom_queries,omitempty"`
	Statistics    grid.Statistics  `json:"statistics"`
	Metadata      grid.Metadata    `json:"metadata"`
	Diagnostics   grid.Diagnostics `json:"diagnostics"`
	Legend        []LegendEntry    `json:"legend"`
	Preview       []string         `json:"preview,omitempty"`
	Cells         [][]tile.Type    `json:"cells,omitempty"`
	Cached        bool             `json:"cached"`
	Fetched       int              `json:"elements_fetched"`
	Classified    int              `json:"elements_classified"`
	DurationMs    int64            `json:"duration_ms"`
}

// GenerateTileGridTool returns a tool definition for grid generation
func (r *Registry) GenerateTileGridTool() mcp.Tool {
	return r.factory.CreateGridTool("generate_tile_grid",
		"Generate a classified tile grid for a region from OpenStreetMap data. Each cell holds one tile type (road, building, water, green_space, ...). Row 0 is the northern edge.",
		mcp.WithBoolean("include_cells",
			mcp.Description("Return every cell as rows of tile type names (resolution up to 256)"),
			mcp.DefaultBool(false),
		),
		mcp.WithBoolean("preview",
			mcp.Description("Return an ASCII preview of at most 64 columns"),
			mcp.DefaultBool(true),
		),
	)
}

// HandleGenerateTileGrid runs a grid load and reports stage progress to
// the client when the request carries a progress token.
func (r *Registry) HandleGenerateTileGrid(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := r.logger.With("tool", "generate_tile_grid")

	input, errResult, err := InputParser[GenerateGridInput](req)
	if err != nil {
		logger.Error("failed to parse input", "error", err)
		return errResult, nil
	}

	cfg, err := input.Config()
	if err != nil {
		logger.Info("invalid grid request", "error", err)
		return core.ErrorResult(err), nil
	}
	if err := input.CheckInlineCells(cfg.GridResolution); err != nil {
		return core.ErrorResult(err), nil
	}

	job := r.loader.Start(ctx, cfg)
	notify := progressNotifier(ctx, req)
	for p := range job.Updates() {
		notify(p)
	}
	res, err := job.Wait()
	if err != nil {
		logger.Warn("grid generation failed", "config", cfg, "error", err)
		return core.ErrorResult(err), nil
	}

	withPreview := input.Preview == nil || *input.Preview
	return jsonResult(logger, newGridOutput(res, input.IncludeCells, withPreview)), nil
}

func newGridOutput(res *pipeline.Result, includeCells, withPreview bool) GridOutput {
	g := res.Grid
	cellLat, cellLon := g.CellSize()
	out := GridOutput{
		Region:      bboxOf(g.Region()),
		AreaKm2:     g.Region().AreaKm2(),
		Width:       g.Width(),
		Height:      g.Height(),
		CellSize:    CellSize{Lat: cellLat, Lon: cellLon},
		Features:    featureNames(res.Config.Features),
		Statistics:  g.Statistics(),
		Metadata:    g.Metadata(),
		Diagnostics: g.Diagnostics(),
		Legend:      legend(g),
		Cached:      res.Cached,
		Fetched:     res.Fetched,
		Classified:  res.Classified,
		DurationMs:  res.Duration.Milliseconds(),
	}
	for _, q := range res.Config.Features.CustomQueries() {
		out.CustomQueries = append(out.CustomQueries, q.Query.String())
	}
	if withPreview {
		out.Preview = preview(g, PreviewColumns)
	}
	if includeCells {
		out.Cells = make([][]tile.Type, g.Height())
		for row := range out.Cells {
			out.Cells[row] = g.Row(row)
		}
	}
	return out
}

func featureNames(fs config.FeatureSet) []string {
	feats := fs.Features()
	names := make([]string, len(feats))
	for i, f := range feats {
		names[i] = f.String()
	}
	return names
}

// progressStep is the smallest fraction change forwarded to the client
// within a stage.
const progressStep = 0.05

// progressNotifier forwards load progress as MCP progress notifications,
// with the three working stages mapped onto 0..3.
func progressNotifier(ctx context.Context, req mcp.CallToolRequest) func(pipeline.Progress) {
	srv := server.ServerFromContext(ctx)
	if srv == nil || req.Params.Meta == nil || req.Params.Meta.ProgressToken == nil {
		return func(pipeline.Progress) {}
	}
	token := req.Params.Meta.ProgressToken

	last := pipeline.Progress{Stage: pipeline.Idle}
	return func(p pipeline.Progress) {
		if p.Stage == last.Stage && p.Fraction-last.Fraction < progressStep {
			return
		}
		last = p

		params := map[string]any{
			"progressToken": token,
			"progress":      overallProgress(p),
			"total":         3.0,
			"message":       p.Stage.String(),
		}
		_ = srv.SendNotificationToClient(ctx, "notifications/progress", params)
	}
}

func overallProgress(p pipeline.Progress) float64 {
	frac := p.Fraction
	if frac < 0 {
		frac = 0
	}
	switch p.Stage {
	case pipeline.Fetching:
		return frac
	case pipeline.Classifying:
		return 1 + frac
	case pipeline.Rasterizing:
		return 2 + frac
	case pipeline.Ready:
		return 3
	default:
		return 0
	}
}
