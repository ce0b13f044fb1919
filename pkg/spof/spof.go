// Package spof flags services whose loss would disproportionately fragment
// traffic flow. The rules are deliberately over-inclusive heuristics meant to
// surface review candidates, not to prove fault tolerance.
package spof

import (
	"github.com/meshlens/mesh-analyzer/pkg/graph"
	"github.com/meshlens/mesh-analyzer/pkg/model"
)

// Thresholds holds the tunable limits behind each heuristic. These are
// deployment-dependent knobs, not invariants, which is why they live in
// configuration rather than as literals in the rules.
type Thresholds struct {
	// DatabaseInbound flags a database-role service whose distinct inbound
	// connection count exceeds this value.
	DatabaseInbound int `koanf:"database-inbound"`
	// GatewayDegree flags a gateway-role service whose total connection
	// count (inbound + outbound) exceeds this value.
	GatewayDegree int `koanf:"gateway-degree"`
	// HighRequestRate and HighRateInbound together flag any service whose
	// request rate exceeds HighRequestRate while its inbound connection
	// count exceeds HighRateInbound.
	HighRequestRate float64 `koanf:"high-request-rate"`
	HighRateInbound int     `koanf:"high-rate-inbound"`
	// SoleRoleDegree flags the only service of its role when its total
	// connection count exceeds this value. The default is 2 so a plain
	// linear chain, where every service is the sole member of its role,
	// does not flag its middle node.
	SoleRoleDegree int `koanf:"sole-role-degree"`
}

// DefaultThresholds returns the standard limits
func DefaultThresholds() Thresholds {
	return Thresholds{
		DatabaseInbound: 2,
		GatewayDegree:   3,
		HighRequestRate: 100,
		HighRateInbound: 1,
		SoleRoleDegree:  2,
	}
}

// Detector classifies services as single points of failure
type Detector struct {
	thresholds Thresholds
}

// NewDetector creates a detector with the given thresholds
func NewDetector(t Thresholds) *Detector {
	return &Detector{thresholds: t}
}

// Find returns the IDs of all services matching at least one heuristic. Each
// rule triggers independently. The result is a set; it is returned sorted so
// callers get a stable order, but membership does not depend on input order.
func (d *Detector) Find(snap *model.Snapshot, g *graph.MeshGraph) []string {
	roleCounts := make(map[model.Role]int)
	for _, svc := range snap.Services() {
		roleCounts[svc.Role]++
	}

	var flagged []string
	for _, id := range snap.ServiceIDs() {
		svc, _ := snap.Service(id)
		if d.isSPOF(svc, g, roleCounts) {
			flagged = append(flagged, id)
		}
	}
	return flagged
}

func (d *Detector) isSPOF(svc model.Service, g *graph.MeshGraph, roleCounts map[model.Role]int) bool {
	inbound := g.InDegree(svc.ID)
	degree := g.Degree(svc.ID)

	if svc.Role == model.RoleDatabase && inbound > d.thresholds.DatabaseInbound {
		return true
	}
	if svc.Role == model.RoleGateway && degree > d.thresholds.GatewayDegree {
		return true
	}
	if svc.Metrics.RequestRate > d.thresholds.HighRequestRate && inbound > d.thresholds.HighRateInbound {
		return true
	}
	if roleCounts[svc.Role] == 1 && degree > d.thresholds.SoleRoleDegree {
		return true
	}
	return false
}
