package graph

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/meshlens/mesh-analyzer/pkg/model"
)

// MeshGraph is the connection graph of a topology snapshot, backed by a gonum
// directed graph with a service-ID to node-ID mapping. It is built once per
// snapshot and never mutated afterwards.
type MeshGraph struct {
	graph  *simple.DirectedGraph
	ids    map[string]int64 // service ID -> gonum node ID
	byID   map[int64]string // gonum node ID -> service ID
	nextID int64
}

// NewMeshGraph creates an empty mesh graph
func NewMeshGraph() *MeshGraph {
	return &MeshGraph{
		graph: simple.NewDirectedGraph(),
		ids:   make(map[string]int64),
		byID:  make(map[int64]string),
	}
}

// BuildMeshGraph builds the connection graph for a snapshot. Connections
// referencing services missing from the snapshot are skipped; the store
// guarantees they cannot occur, but the graph layer does not depend on that.
func BuildMeshGraph(snap *model.Snapshot) *MeshGraph {
	g := NewMeshGraph()
	for _, id := range snap.ServiceIDs() {
		g.AddService(id)
	}
	for _, conn := range snap.Connections() {
		if g.Has(conn.Source) && g.Has(conn.Target) {
			g.AddConnection(conn.Source, conn.Target)
		}
	}
	return g
}

// AddService adds a service node to the graph if not already present
func (g *MeshGraph) AddService(id string) {
	if _, exists := g.ids[id]; exists {
		return
	}
	g.ids[id] = g.nextID
	g.byID[g.nextID] = id
	g.graph.AddNode(simple.Node(g.nextID))
	g.nextID++
}

// AddConnection adds a directed edge from source to target. Both endpoints
// must already be in the graph; self edges are ignored.
func (g *MeshGraph) AddConnection(source, target string) {
	srcID, ok := g.ids[source]
	if !ok {
		return
	}
	dstID, ok := g.ids[target]
	if !ok || srcID == dstID {
		return
	}
	if !g.graph.HasEdgeFromTo(srcID, dstID) {
		g.graph.SetEdge(g.graph.NewEdge(g.graph.Node(srcID), g.graph.Node(dstID)))
	}
}

// Has reports whether the service is in the graph
func (g *MeshGraph) Has(id string) bool {
	_, ok := g.ids[id]
	return ok
}

// HasConnection reports whether a directed edge source->target exists
func (g *MeshGraph) HasConnection(source, target string) bool {
	srcID, ok := g.ids[source]
	if !ok {
		return false
	}
	dstID, ok := g.ids[target]
	if !ok {
		return false
	}
	return g.graph.HasEdgeFromTo(srcID, dstID)
}

// Outbound returns the IDs of services called by the given service, sorted
func (g *MeshGraph) Outbound(id string) []string {
	return g.neighbors(id, g.graph.From)
}

// Inbound returns the IDs of services calling the given service, sorted
func (g *MeshGraph) Inbound(id string) []string {
	return g.neighbors(id, g.graph.To)
}

func (g *MeshGraph) neighbors(id string, dir func(int64) graph.Nodes) []string {
	nodeID, ok := g.ids[id]
	if !ok {
		return nil
	}
	var out []string
	iter := dir(nodeID)
	for iter.Next() {
		out = append(out, g.byID[iter.Node().ID()])
	}
	sort.Strings(out)
	return out
}

// InDegree returns the number of inbound connections of a service
func (g *MeshGraph) InDegree(id string) int {
	nodeID, ok := g.ids[id]
	if !ok {
		return 0
	}
	return g.graph.To(nodeID).Len()
}

// OutDegree returns the number of outbound connections of a service
func (g *MeshGraph) OutDegree(id string) int {
	nodeID, ok := g.ids[id]
	if !ok {
		return 0
	}
	return g.graph.From(nodeID).Len()
}

// Degree returns the total (inbound + outbound) connection count of a service
func (g *MeshGraph) Degree(id string) int {
	return g.InDegree(id) + g.OutDegree(id)
}

// NumServices returns the number of nodes in the graph
func (g *MeshGraph) NumServices() int {
	return len(g.ids)
}

// ServiceIDs returns all service IDs in the graph, sorted
func (g *MeshGraph) ServiceIDs() []string {
	ids := make([]string, 0, len(g.ids))
	for id := range g.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ServiceID resolves a gonum node ID back to a service ID
func (g *MeshGraph) ServiceID(nodeID int64) (string, bool) {
	id, ok := g.byID[nodeID]
	return id, ok
}

// Directed exposes the underlying gonum graph for algorithms that operate on
// graph.Directed, such as the cycle finder
func (g *MeshGraph) Directed() graph.Directed {
	return g.graph
}
