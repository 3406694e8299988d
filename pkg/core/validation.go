package core

import (
	"fmt"
	"strings"

	"github.com/NERVsystems/osmgrid/pkg/config"
)

// MaxInlineResolution is the largest grid whose cells are returned inline
// in a tool result.
const MaxInlineResolution = 256

// BBoxInput is a bounding box in tool arguments.
type BBoxInput struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// CenterInput is a centre point in tool arguments.
type CenterInput struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RegionInput selects a region in exactly one way: a place name, a
// bounding box, or a centre with a radius.
type RegionInput struct {
	Place    string       `json:"place,omitempty"`
	BBox     *BBoxInput   `json:"bbox,omitempty"`
	Center   *CenterInput `json:"center,omitempty"`
	RadiusKm float64      `json:"radius_km,omitempty"`
}

// Region converts the input into a config.Region. Range checks are left to
// config validation so errors carry the config error codes.
func (in RegionInput) Region() (config.Region, error) {
	given := 0
	if strings.TrimSpace(in.Place) != "" {
		given++
	}
	if in.BBox != nil {
		given++
	}
	if in.Center != nil {
		given++
	}

	switch {
	case given == 0:
		return config.Region{}, NewValidationError(ErrMissingParameter, "one of place, bbox or center is required")
	case given > 1:
		return config.Region{}, NewValidationError(ErrInvalidInput, "place, bbox and center are mutually exclusive")
	case in.BBox != nil:
		return config.BBoxRegion(in.BBox.South, in.BBox.West, in.BBox.North, in.BBox.East), nil
	case in.Center != nil:
		if in.RadiusKm == 0 {
			return config.Region{}, NewValidationError(ErrMissingParameter, "radius_km is required with center")
		}
		return config.CenterRadiusRegion(in.Center.Latitude, in.Center.Longitude, in.RadiusKm), nil
	default:
		return config.PlaceRegion(strings.TrimSpace(in.Place)), nil
	}
}

// GridInput is the argument set of a grid generation request.
type GridInput struct {
	RegionInput
	Resolution    *int     `json:"resolution,omitempty"`
	Preset        string   `json:"preset,omitempty"`
	Features      []string `json:"features,omitempty"`
	Exclude       []string `json:"exclude,omitempty"`
	CustomQueries []string `json:"custom_queries,omitempty"`
	IncludeCells  bool     `json:"include_cells,omitempty"`
}

// Config builds and validates the grid configuration. Without a preset or
// features the urban preset is used. An absent resolution selects the
// default; any given value, zero included, is validated as is.
func (in GridInput) Config() (config.Config, error) {
	region, err := in.Region()
	if err != nil {
		return config.Config{}, err
	}

	b := config.NewBuilder().Region(region)
	if in.Resolution != nil {
		b.GridResolution(*in.Resolution)
	}
	if in.Preset != "" {
		b.Preset(in.Preset)
	}
	for _, name := range in.Features {
		f, err := config.ParseFeature(name)
		if err != nil {
			return config.Config{}, err
		}
		b.With(f)
	}
	for _, name := range in.Exclude {
		f, err := config.ParseFeature(name)
		if err != nil {
			return config.Config{}, err
		}
		b.Without(f)
	}
	for _, s := range in.CustomQueries {
		q, err := config.ParseTagQuery(s)
		if err != nil {
			return config.Config{}, invalidParameter("custom_queries", s, err)
		}
		b.CustomQuery(q)
	}
	return b.Build()
}

// CheckInlineCells rejects include_cells for grids too large to return.
func (in GridInput) CheckInlineCells(resolution int) error {
	if in.IncludeCells && resolution > MaxInlineResolution {
		e := NewValidationError(ErrInvalidParameter,
			fmt.Sprintf("include_cells is limited to resolution %d, got %d", MaxInlineResolution, resolution))
		e.Field = "include_cells"
		return e
	}
	return nil
}

func invalidParameter(field, value string, err error) *MCPError {
	e := NewValidationError(ErrInvalidParameter, err.Error())
	e.Field = field
	e.Value = value
	return e
}
