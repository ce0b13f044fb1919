// Package cycles detects circular call dependencies between services. A loop
// in the call graph is not an error in the mesh, but it is almost always a
// design smell worth surfacing alongside the SPOF report.
package cycles

import (
	"sort"

	"github.com/meshlens/mesh-analyzer/pkg/graph"
)

// DependencyCycle is a set of services that call each other in a loop
type DependencyCycle struct {
	Services []string `json:"services"`
}

// FindDependencyCycles returns every group of services forming a call cycle.
// Each cycle's members are sorted, and cycles are ordered by their first
// member, so output is stable regardless of graph construction order.
func FindDependencyCycles(g *graph.MeshGraph) []DependencyCycle {
	finder := newSCCFinder(g.Directed())
	sccs := finder.find()

	cycles := make([]DependencyCycle, 0, len(sccs))
	for _, scc := range sccs {
		services := make([]string, 0, len(scc))
		for _, nodeID := range scc {
			if id, ok := g.ServiceID(nodeID); ok {
				services = append(services, id)
			}
		}
		if len(services) > 1 {
			sort.Strings(services)
			cycles = append(cycles, DependencyCycle{Services: services})
		}
	}

	sort.Slice(cycles, func(i, j int) bool {
		return cycles[i].Services[0] < cycles[j].Services[0]
	})
	return cycles
}
