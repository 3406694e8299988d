// Package grid rasterizes classified geographic elements into a dense
// grid of tile types.
package grid

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/osmgrid/pkg/config"
	"github.com/NERVsystems/osmgrid/pkg/element"
	"github.com/NERVsystems/osmgrid/pkg/geo"
	"github.com/NERVsystems/osmgrid/pkg/tile"
)

// Algorithm describes the rasterization used, recorded in grid metadata.
const Algorithm = "supercover-line/center-sample-polygon"

// Classified is an element with the tile type and priority assigned by
// the classifier.
type Classified struct {
	Element  element.Element
	Type     tile.Type
	Priority int
}

// TieBreak decides which of two equal-priority elements keeps a cell.
type TieBreak uint8

const (
	// LastWins lets the later element in input order overwrite.
	LastWins TieBreak = iota
	// FirstWins keeps the earlier element.
	FirstWins
)

// String returns the rule name.
func (t TieBreak) String() string {
	if t == FirstWins {
		return "first_wins"
	}
	return "last_wins"
}

// MarshalText implements encoding.TextMarshaler.
func (t TieBreak) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TieBreak) UnmarshalText(b []byte) error {
	parsed, err := ParseTieBreak(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTieBreak parses "last_wins" or "first_wins".
func ParseTieBreak(s string) (TieBreak, error) {
	switch s {
	case "", "last_wins", "last":
		return LastWins, nil
	case "first_wins", "first":
		return FirstWins, nil
	default:
		return LastWins, fmt.Errorf("unknown tie-break rule %q", s)
	}
}

// ProgressFunc receives the number of elements rasterized and the total.
type ProgressFunc func(done, total int)

// Generator turns classified elements into a TileGrid. A Generator holds
// no per-run state and may be used concurrently.
type Generator struct {
	workers  int
	tieBreak TieBreak
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithWorkers sets the number of rasterization workers. 1 runs the
// sequential algorithm; n <= 0 selects GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		g.workers = n
	}
}

// WithTieBreak sets the equal-priority rule.
func WithTieBreak(t TieBreak) Option {
	return func(g *Generator) { g.tieBreak = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithClock overrides the clock used for metadata timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGenerator creates a sequential, last-wins generator modified by opts.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		workers:  1,
		tieBreak: LastWins,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "grid")
	return g
}

// Generate rasterizes features with a default generator.
func Generate(features []Classified, cfg config.Config) (*TileGrid, error) {
	return NewGenerator().Generate(features, cfg)
}

// Generate rasterizes features into a grid for cfg.
func (g *Generator) Generate(features []Classified, cfg config.Config) (*TileGrid, error) {
	return g.GenerateWithProgress(features, cfg, nil)
}

// ErrTooManyClasses is returned when the distinct (type, priority) pairs
// of a run exceed what a cell can index.
var ErrTooManyClasses = errors.New("too many distinct tile classes")

const progressEvery = 1024

// GenerateWithProgress rasterizes features, reporting progress. It fails
// only when cfg is invalid; malformed elements are skipped and counted in
// the grid diagnostics.
func (g *Generator) GenerateWithProgress(features []Classified, cfg config.Config, progress ProgressFunc) (*TileGrid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bounds, err := cfg.Bounds()
	if err != nil {
		return nil, err
	}

	start := g.now()
	w, h := cfg.GridResolution, cfg.GridResolution
	if cfg.PerformanceSensitive() {
		g.logger.Warn("generating a performance-sensitive grid", "resolution", w)
	}

	tr := newTransform(bounds, w, h)
	st := newState(w, h, g.tieBreak)
	diag := Diagnostics{SkipReasons: make(map[string]int)}

	// Classes are assigned in input order so the class table is identical
	// between sequential and parallel runs.
	classIDs := make([]uint16, len(features))
	valid := make([]bool, len(features))
	for i, f := range features {
		if !f.Type.Valid() || f.Type == tile.Empty {
			diag.skip("invalid tile type")
			continue
		}
		if err := f.Element.Validate(); err != nil {
			var merr *element.MalformedError
			if errors.As(err, &merr) {
				diag.skip(merr.Reason)
			} else {
				diag.skip(err.Error())
			}
			g.logger.Debug("skipping malformed element", "id", f.Element.ID, "error", err)
			continue
		}
		id, err := st.classID(f.Type, f.Priority)
		if err != nil {
			return nil, err
		}
		classIDs[i] = id
		valid[i] = true
	}

	var processed int
	if g.workers > 1 && len(features) > 1 {
		processed, err = g.rasterizeParallel(features, valid, classIDs, tr, st, &diag, progress)
		if err != nil {
			return nil, err
		}
	} else {
		processed = g.rasterizeSequential(features, valid, classIDs, tr, st, &diag, progress)
	}

	grid := st.finish(bounds)
	grid.meta = Metadata{
		GeneratedAt:       start,
		Duration:          g.now().Sub(start),
		ElementsProcessed: processed,
		CellsClassified:   grid.countNonEmpty(),
		Algorithm:         Algorithm,
		TieBreak:          g.tieBreak,
		Workers:           g.workers,
	}
	grid.diag = diag

	g.logger.Debug("grid generated",
		"resolution", w,
		"elements", len(features),
		"processed", processed,
		"skipped", diag.SkippedElements,
		"outside", diag.OutsideElements,
		"cells", grid.meta.CellsClassified,
		"duration", grid.meta.Duration)
	return grid, nil
}

func (g *Generator) rasterizeSequential(features []Classified, valid []bool, classIDs []uint16, tr transform, st *state, diag *Diagnostics, progress ProgressFunc) int {
	var fp footprint
	processed := 0
	for i, f := range features {
		if valid[i] {
			if tr.rasterize(f.Element, &fp) {
				st.apply(fp.spans, classIDs[i], 0, st.height)
				processed++
			} else {
				diag.OutsideElements++
			}
		}
		if progress != nil && ((i+1)%progressEvery == 0 || i+1 == len(features)) {
			progress(i+1, len(features))
		}
	}
	if progress != nil && len(features) == 0 {
		progress(0, 0)
	}
	return processed
}

// rasterizeParallel computes footprints concurrently, then applies them in
// input order within disjoint row bands. The result is identical to the
// sequential pass.
func (g *Generator) rasterizeParallel(features []Classified, valid []bool, classIDs []uint16, tr transform, st *state, diag *Diagnostics, progress ProgressFunc) (int, error) {
	n := len(features)
	prints := make([][]span, n)
	inside := make([]bool, n)

	reports := make(chan int, g.workers)
	reportDone := make(chan struct{})
	go func() {
		defer close(reportDone)
		done := 0
		for k := range reports {
			done += k
			if progress != nil {
				progress(done, n)
			}
		}
	}()

	chunk := max((n+g.workers-1)/g.workers, 1)
	var eg errgroup.Group
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		eg.Go(func() error {
			var fp footprint
			for i := lo; i < hi; i++ {
				if !valid[i] {
					continue
				}
				if tr.rasterize(features[i].Element, &fp) {
					prints[i] = append([]span(nil), fp.spans...)
					inside[i] = true
				}
			}
			reports <- hi - lo
			return nil
		})
	}
	err := eg.Wait()
	close(reports)
	<-reportDone
	if err != nil {
		return 0, err
	}

	band := max((st.height+g.workers-1)/g.workers, 1)
	var ag errgroup.Group
	for r0 := 0; r0 < st.height; r0 += band {
		r1 := min(r0+band, st.height)
		ag.Go(func() error {
			for i := range features {
				if inside[i] {
					st.apply(prints[i], classIDs[i], r0, r1)
				}
			}
			return nil
		})
	}
	if err := ag.Wait(); err != nil {
		return 0, err
	}

	processed := 0
	for i := range features {
		switch {
		case inside[i]:
			processed++
		case valid[i]:
			diag.OutsideElements++
		}
	}
	return processed, nil
}

type class struct {
	typ      tile.Type
	priority int
}

// state is the mutable working grid of one run. Cells hold indexes into
// the class table; index 0 is Empty at the lowest priority.
type state struct {
	width, height int
	cells         []uint16
	classes       []class
	index         map[class]uint16
	tieBreak      TieBreak
}

func newState(w, h int, tb TieBreak) *state {
	empty := class{typ: tile.Empty, priority: tile.LowestPriority}
	return &state{
		width:    w,
		height:   h,
		cells:    make([]uint16, w*h),
		classes:  []class{empty},
		index:    map[class]uint16{empty: 0},
		tieBreak: tb,
	}
}

func (s *state) classID(t tile.Type, priority int) (uint16, error) {
	c := class{typ: t, priority: priority}
	if id, ok := s.index[c]; ok {
		return id, nil
	}
	if len(s.classes) > 0xFFFF {
		return 0, ErrTooManyClasses
	}
	id := uint16(len(s.classes))
	s.classes = append(s.classes, c)
	s.index[c] = id
	return id, nil
}

// apply writes class id over the spans whose row lies in [rowLo, rowHi).
func (s *state) apply(spans []span, id uint16, rowLo, rowHi int) {
	p := s.classes[id].priority
	for _, sp := range spans {
		r := int(sp.row)
		if r < rowLo || r >= rowHi {
			continue
		}
		base := r * s.width
		for c := int(sp.x0); c <= int(sp.x1); c++ {
			curID := s.cells[base+c]
			if curID == 0 {
				s.cells[base+c] = id
				continue
			}
			cur := s.classes[curID].priority
			if p > cur || (p == cur && s.tieBreak == LastWins) {
				s.cells[base+c] = id
			}
		}
	}
}

func (s *state) finish(bounds geo.BoundingBox) *TileGrid {
	cells := make([]tile.Type, len(s.cells))
	for i, id := range s.cells {
		cells[i] = s.classes[id].typ
	}
	return newTileGrid(bounds, s.width, s.height, cells)
}
