// Package classify maps element tags to tile types.
package classify

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/osmgrid/pkg/config"
	"github.com/NERVsystems/osmgrid/pkg/element"
	"github.com/NERVsystems/osmgrid/pkg/tile"
)

// Source records which rule produced a classification.
type Source uint8

const (
	SourceBuiltin Source = iota + 1
	SourceCustom
)

// Result is the classification of one element.
type Result struct {
	Type     tile.Type
	Priority int
	Source   Source
	// Feature is set when Source is SourceBuiltin.
	Feature config.Feature
	// Query is the matching rule.
	Query config.TagQuery
}

// Classify returns the tile type and priority of el under fs, or false
// when no enabled rule matches.
//
// Enabled categories are tried in declaration order and their rules in
// order; the first match wins. Custom queries are tried afterwards in
// insertion order and only the first match is considered: it claims an
// unclassified element, and overrides a built-in result only when its
// priority is strictly higher.
func Classify(el element.Element, fs config.FeatureSet) (Result, bool) {
	var (
		res   Result
		found bool
	)

features:
	for _, f := range fs.Features() {
		for _, q := range f.Rules() {
			if q.Matches(el) {
				res = Result{Type: f.TileType(), Priority: f.Priority(), Source: SourceBuiltin, Feature: f, Query: q}
				found = true
				break features
			}
		}
	}

	for _, c := range fs.CustomQueries() {
		if !c.Query.Matches(el) {
			continue
		}
		if !found || c.Priority > res.Priority {
			res = Result{Type: c.TileType, Priority: c.Priority, Source: SourceCustom, Query: c.Query}
			found = true
		}
		break
	}

	return res, found
}

// Classifier classifies element slices, optionally in parallel. Rules are
// compiled once from the feature set.
type Classifier struct {
	fs      config.FeatureSet
	rules   []compiledRule
	custom  []config.CustomQuery
	workers int
}

type compiledRule struct {
	feature config.Feature
	query   config.TagQuery
}

// New builds a classifier for fs. workers <= 0 selects GOMAXPROCS.
func New(fs config.FeatureSet, workers int) *Classifier {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	c := &Classifier{fs: fs, custom: fs.CustomQueries(), workers: workers}
	for _, f := range fs.Features() {
		for _, q := range f.Rules() {
			c.rules = append(c.rules, compiledRule{feature: f, query: q})
		}
	}
	return c
}

// Classify is the compiled equivalent of the package level Classify.
func (c *Classifier) Classify(el element.Element) (Result, bool) {
	var (
		res   Result
		found bool
	)
	for _, r := range c.rules {
		if r.query.Matches(el) {
			res = Result{Type: r.feature.TileType(), Priority: r.feature.Priority(), Source: SourceBuiltin, Feature: r.feature, Query: r.query}
			found = true
			break
		}
	}
	for _, cq := range c.custom {
		if !cq.Query.Matches(el) {
			continue
		}
		if !found || cq.Priority > res.Priority {
			res = Result{Type: cq.TileType, Priority: cq.Priority, Source: SourceCustom, Query: cq.Query}
			found = true
		}
		break
	}
	return res, found
}

// Classified pairs an element with its classification.
type Classified struct {
	Element element.Element
	Result  Result
}

// ProgressFunc receives the number of elements processed so far and the
// total. It may be called from several goroutines but calls are
// serialised.
type ProgressFunc func(done, total int)

const chunkSize = 4096

// ClassifyAll classifies els and returns the matching ones in input
// order. It stops early with ctx.Err() when ctx is cancelled.
func (c *Classifier) ClassifyAll(ctx context.Context, els []element.Element, progress ProgressFunc) ([]Classified, error) {
	total := len(els)
	results := make([]Result, total)
	matched := make([]bool, total)

	reports := make(chan int, c.workers)
	reportDone := make(chan struct{})
	go func() {
		defer close(reportDone)
		done := 0
		for n := range reports {
			done += n
			if progress != nil {
				progress(done, total)
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				results[i], matched[i] = c.Classify(els[i])
			}
			reports <- end - start
			return nil
		})
	}
	err := g.Wait()
	close(reports)
	<-reportDone
	if err != nil {
		return nil, err
	}

	out := make([]Classified, 0, total)
	for i, ok := range matched {
		if ok {
			out = append(out, Classified{Element: els[i], Result: results[i]})
		}
	}
	return out, nil
}
