// Package pipeline sequences a grid load: provider fetch, classification
// and rasterization, reporting progress and honouring cancellation between
// stages.
package pipeline

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned by a load that was cancelled before it could
// produce a grid. It is a terminal state, not a failure.
var ErrCancelled = errors.New("grid load cancelled")

// Stage is a step of a grid load.
type Stage uint8

const (
	Idle Stage = iota
	Fetching
	Classifying
	Rasterizing
	Ready
	Failed
	Cancelled
)

var stageNames = [...]string{
	Idle:        "idle",
	Fetching:    "fetching",
	Classifying: "classifying",
	Rasterizing: "rasterizing",
	Ready:       "ready",
	Failed:      "failed",
	Cancelled:   "cancelled",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition can happen.
func (s Stage) Terminal() bool {
	return s == Ready || s == Failed || s == Cancelled
}

// Indeterminate is the progress fraction reported while the total amount
// of work is unknown.
const Indeterminate = -1.0

// Progress is a snapshot of a load.
type Progress struct {
	Stage Stage `json:"stage"`
	// Fraction is in [0,1], or Indeterminate.
	Fraction  float64 `json:"fraction"`
	Processed int     `json:"processed"`
	Total     int     `json:"total"`
	// Err is set when Stage is Failed.
	Err error `json:"-"`
}

// ProgressFunc receives progress snapshots. Calls are serialised and the
// fraction never decreases within a stage.
type ProgressFunc func(Progress)

func fraction(done, total int) float64 {
	if total <= 0 {
		return 1
	}
	return float64(done) / float64(total)
}
