package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/NERVsystems/osmgrid/pkg/config"
)

func TestRegionInput(t *testing.T) {
	tests := []struct {
		name     string
		in       RegionInput
		wantKind config.RegionKind
		wantCode ErrorCode
	}{
		{"place", RegionInput{Place: " Berlin "}, config.RegionPlace, ""},
		{"bbox", RegionInput{BBox: &BBoxInput{South: 52.5, West: 13.3, North: 52.6, East: 13.5}}, config.RegionBBox, ""},
		{"center", RegionInput{Center: &CenterInput{Latitude: 52.5, Longitude: 13.4}, RadiusKm: 2}, config.RegionCenterRadius, ""},
		{"nothing", RegionInput{}, 0, ErrMissingParameter},
		{"blank place", RegionInput{Place: "  "}, 0, ErrMissingParameter},
		{"center without radius", RegionInput{Center: &CenterInput{Latitude: 52.5, Longitude: 13.4}}, 0, ErrMissingParameter},
		{"two kinds", RegionInput{Place: "Berlin", BBox: &BBoxInput{North: 1, East: 1}}, 0, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := tt.in.Region()
			if tt.wantCode != "" {
				var mcpErr *MCPError
				if !errors.As(err, &mcpErr) || mcpErr.Code != string(tt.wantCode) {
					t.Fatalf("got %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Region: %v", err)
			}
			if r.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", r.Kind, tt.wantKind)
			}
		})
	}
}

func TestGridInputConfig(t *testing.T) {
	place := RegionInput{Place: "Berlin"}

	cfg, err := GridInput{RegionInput: place}.Config()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.GridResolution != config.DefaultGridResolution || cfg.Features.Key() != config.Urban().Key() {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	cfg, err = GridInput{
		RegionInput:   place,
		Resolution:    ptr(50),
		Preset:        "natural",
		Features:      []string{"railways"},
		Exclude:       []string{"parks"},
		CustomQueries: []string{"shop=bakery"},
	}.Config()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.GridResolution != 50 {
		t.Errorf("resolution = %d", cfg.GridResolution)
	}
	fs := cfg.Features
	if !fs.Contains(config.Railways) || fs.Contains(config.Parks) || !fs.Contains(config.Forests) {
		t.Errorf("unexpected features %s", fs)
	}
	if len(fs.CustomQueries()) != 1 || fs.CustomQueries()[0].Query != config.Eq("shop", "bakery") {
		t.Errorf("custom queries = %+v", fs.CustomQueries())
	}
}

func TestGridInputConfigErrors(t *testing.T) {
	place := RegionInput{Place: "Berlin"}

	tests := []struct {
		name string
		in   GridInput
		code string
	}{
		{"negative resolution", GridInput{RegionInput: place, Resolution: ptr(-1)}, string(config.ErrInvalidResolution)},
		{"zero resolution", GridInput{RegionInput: place, Resolution: ptr(0)}, string(config.ErrInvalidResolution)},
		{"unknown preset", GridInput{RegionInput: place, Preset: "suburban"}, string(config.ErrUnknownPreset)},
		{"unknown feature", GridInput{RegionInput: place, Features: []string{"volcanoes"}}, string(config.ErrUnknownFeature)},
		{"bad custom query", GridInput{RegionInput: place, CustomQueries: []string{"=x"}}, string(ErrInvalidParameter)},
		{"degenerate bbox", GridInput{RegionInput: RegionInput{BBox: &BBoxInput{South: 1, North: 1, East: 1}}}, string(config.ErrDegenerateRegion)},
		{"no region", GridInput{}, string(ErrMissingParameter)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.in.Config()
			if err == nil {
				t.Fatal("expected error")
			}
			if got := FromError(err).Code; got != tt.code {
				t.Errorf("code = %s, want %s (%v)", got, tt.code, err)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestGridInputExplicitZeroResolution(t *testing.T) {
	var in GridInput
	if err := json.Unmarshal([]byte(`{"place":"Berlin","resolution":0}`), &in); err != nil {
		t.Fatal(err)
	}
	cfg, err := in.Config()
	if got := FromError(err); got == nil || got.Code != string(config.ErrInvalidResolution) {
		t.Fatalf("Config() = %d, %v; want INVALID_RESOLUTION", cfg.GridResolution, err)
	}

	in = GridInput{}
	if err := json.Unmarshal([]byte(`{"place":"Berlin"}`), &in); err != nil {
		t.Fatal(err)
	}
	cfg, err = in.Config()
	if err != nil || cfg.GridResolution != config.DefaultGridResolution {
		t.Errorf("omitted resolution: %d, %v", cfg.GridResolution, err)
	}
}

func TestCheckInlineCells(t *testing.T) {
	in := GridInput{IncludeCells: true}
	if err := in.CheckInlineCells(MaxInlineResolution); err != nil {
		t.Errorf("limit should be inclusive: %v", err)
	}
	if err := in.CheckInlineCells(MaxInlineResolution + 1); err == nil {
		t.Error("expected error above limit")
	}
	if err := (GridInput{}).CheckInlineCells(10000); err != nil {
		t.Errorf("cells not requested: %v", err)
	}
}
