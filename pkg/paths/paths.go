// Package paths enumerates simple dependency paths through the mesh graph.
package paths

import (
	"github.com/meshlens/mesh-analyzer/pkg/graph"
	"github.com/meshlens/mesh-analyzer/pkg/model"
)

// DefaultMaxPaths bounds how many paths a single enumeration may produce.
// Dependency visualization needs a representative handful of routes, not an
// exhaustive enumeration, and dense meshes can hold exponentially many.
const DefaultMaxPaths = 50

// PathSet is the result of one enumeration. Truncated is set when the path or
// depth budget cut the search short of the full graph; callers treat that as
// a precision trade-off, not an error.
type PathSet struct {
	Paths     []model.Path
	Truncated bool
}

// FindAllPaths returns every simple path from start to end, following
// connections in their source->target direction only. A path never revisits a
// service. Exploration of a branch stops after maxDepth hops, and the whole
// search stops once maxPaths paths have been found. maxPaths <= 0 uses
// DefaultMaxPaths; maxDepth <= 0 uses the node count.
//
// No route, an unknown endpoint, or start == end all yield an empty set.
func FindAllPaths(g *graph.MeshGraph, start, end string, maxPaths, maxDepth int) PathSet {
	if maxPaths <= 0 {
		maxPaths = DefaultMaxPaths
	}
	if maxDepth <= 0 {
		maxDepth = g.NumServices()
	}
	if start == end || !g.Has(start) || !g.Has(end) {
		return PathSet{}
	}

	w := &walker{
		graph:    g,
		end:      end,
		maxPaths: maxPaths,
		maxDepth: maxDepth,
		visited:  map[string]bool{start: true},
	}
	w.walk(start, model.Path{start})
	return PathSet{Paths: w.found, Truncated: w.truncated}
}

type walker struct {
	graph     *graph.MeshGraph
	end       string
	maxPaths  int
	maxDepth  int
	visited   map[string]bool
	found     []model.Path
	truncated bool
}

// walk extends the current path from id. Neighbors are visited in sorted
// order so enumeration order, and therefore first-found tie-breaks upstream,
// are deterministic.
func (w *walker) walk(id string, current model.Path) {
	if len(w.found) >= w.maxPaths {
		w.truncated = true
		return
	}
	if len(current)-1 >= w.maxDepth {
		// Depth budget spent with branches still open
		if w.graph.OutDegree(id) > 0 {
			w.truncated = true
		}
		return
	}
	for _, next := range w.graph.Outbound(id) {
		if len(w.found) >= w.maxPaths {
			w.truncated = true
			return
		}
		if next == w.end {
			path := make(model.Path, len(current), len(current)+1)
			copy(path, current)
			w.found = append(w.found, append(path, next))
			continue
		}
		if w.visited[next] {
			continue
		}
		w.visited[next] = true
		w.walk(next, append(current, next))
		w.visited[next] = false
	}
}
