// Package analysis runs the full derivation pipeline over one topology
// snapshot: critical path, SPOF detection, cycle diagnostics, selected-service
// dependency paths, and render projection. Everything here is a pure function
// of (snapshot, selection, options); the scheduler decides when it runs.
package analysis

import (
	"time"

	"github.com/meshlens/mesh-analyzer/pkg/critical"
	"github.com/meshlens/mesh-analyzer/pkg/cycles"
	"github.com/meshlens/mesh-analyzer/pkg/graph"
	"github.com/meshlens/mesh-analyzer/pkg/model"
	"github.com/meshlens/mesh-analyzer/pkg/paths"
	"github.com/meshlens/mesh-analyzer/pkg/render"
	"github.com/meshlens/mesh-analyzer/pkg/spof"
)

// Options configures one analysis run
type Options struct {
	// MaxPaths bounds each path enumeration; <= 0 uses paths.DefaultMaxPaths
	MaxPaths int
	// MaxDepth bounds path length in hops; <= 0 uses the node count
	MaxDepth int
	// Weights drives critical path scoring
	Weights critical.Weights
	// Thresholds drives SPOF detection
	Thresholds spof.Thresholds
	// Render configures the projector
	Render render.Config
}

// DefaultOptions returns the standard analysis settings
func DefaultOptions() Options {
	return Options{
		MaxPaths:   paths.DefaultMaxPaths,
		Weights:    critical.DefaultWeights(),
		Thresholds: spof.DefaultThresholds(),
		Render:     render.DefaultConfig(),
	}
}

// Run executes the full pipeline over a snapshot. selected may be empty, or
// name a service whose dependency paths should be enumerated in both
// directions. The returned view model is complete and self-contained.
func Run(snap *model.Snapshot, selected string, opts Options) *ViewModel {
	g := graph.BuildMeshGraph(snap)
	detector := spof.NewDetector(opts.Thresholds)
	projector := render.NewProjector(opts.Render)

	vm := &ViewModel{
		SnapshotVersion: snap.Version(),
		GeneratedAt:     time.Now(),
		CriticalPath:    critical.SelectCriticalPath(snap, g, opts.Weights, opts.MaxPaths, opts.MaxDepth),
		SPOFs:           detector.Find(snap, g),
		Cycles:          cycles.FindDependencyCycles(g),
		Nodes:           make(map[string]render.NodeState, snap.NumServices()),
	}

	for _, svc := range snap.Services() {
		vm.Nodes[svc.ID] = projector.Node(svc)
	}
	for _, conn := range snap.Connections() {
		vm.Edges = append(vm.Edges, EdgeView{
			Source: conn.Source,
			Target: conn.Target,
			State:  projector.Edge(conn),
		})
	}

	if selected != "" && g.Has(selected) {
		vm.Selected = selected
		vm.SelectedPaths, vm.SelectedTruncated = dependencyPaths(g, selected, opts)
	}

	return vm
}

// dependencyPaths enumerates paths touching the selected service as an
// endpoint, first outbound (selected as source) then inbound (selected as
// target), sharing a single path budget across the whole scan
func dependencyPaths(g *graph.MeshGraph, selected string, opts Options) ([]model.Path, bool) {
	budget := opts.MaxPaths
	if budget <= 0 {
		budget = paths.DefaultMaxPaths
	}

	var all []model.Path
	truncated := false

	collect := func(start, end string) {
		if budget <= 0 {
			truncated = true
			return
		}
		set := paths.FindAllPaths(g, start, end, budget, opts.MaxDepth)
		all = append(all, set.Paths...)
		budget -= len(set.Paths)
		truncated = truncated || set.Truncated
	}

	for _, other := range g.ServiceIDs() {
		if other == selected {
			continue
		}
		collect(selected, other)
		collect(other, selected)
	}
	return all, truncated
}
