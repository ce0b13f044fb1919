// Package critical selects the single most consequential dependency path in
// the mesh: the highest-scoring route from any frontend to any database.
package critical

import (
	"github.com/meshlens/mesh-analyzer/pkg/graph"
	"github.com/meshlens/mesh-analyzer/pkg/model"
	"github.com/meshlens/mesh-analyzer/pkg/paths"
)

// Weights controls how service roles scale path scores. Gateways are
// mandatory fan-in points, so traffic flowing through them counts double.
type Weights struct {
	Gateway float64 `koanf:"gateway"`
	Default float64 `koanf:"default"`
}

// DefaultWeights returns the standard role weighting
func DefaultWeights() Weights {
	return Weights{Gateway: 2, Default: 1}
}

// roleWeight returns the multiplier for a service's request rate
func (w Weights) roleWeight(role model.Role) float64 {
	if role == model.RoleGateway {
		return w.Gateway
	}
	return w.Default
}

// SelectCriticalPath enumerates paths between every (frontend, database) pair
// and returns the one with the highest score. A path's score is the sum over
// its member services of requestRate * roleWeight. Ties keep the first-found
// path; frontends, databases, and paths are all iterated in sorted order, so
// the result is deterministic for a given snapshot. An empty path means the
// mesh has no frontend, no database, or no route between any pair; that is a
// valid outcome, not an error.
func SelectCriticalPath(snap *model.Snapshot, g *graph.MeshGraph, w Weights, maxPaths, maxDepth int) model.Path {
	frontends := snap.ServicesByRole(model.RoleFrontend)
	databases := snap.ServicesByRole(model.RoleDatabase)
	if len(frontends) == 0 || len(databases) == 0 {
		return nil
	}

	var best model.Path
	bestScore := 0.0
	for _, fe := range frontends {
		for _, db := range databases {
			set := paths.FindAllPaths(g, fe, db, maxPaths, maxDepth)
			for _, path := range set.Paths {
				score := ScorePath(snap, path, w)
				if best == nil || score > bestScore {
					best = path
					bestScore = score
				}
			}
		}
	}
	return best
}

// ScorePath computes the criticality score of a path over a snapshot.
// Services missing from the snapshot contribute nothing.
func ScorePath(snap *model.Snapshot, path model.Path, w Weights) float64 {
	score := 0.0
	for _, id := range path {
		svc, ok := snap.Service(id)
		if !ok {
			continue
		}
		score += svc.Metrics.RequestRate * w.roleWeight(svc.Role)
	}
	return score
}
