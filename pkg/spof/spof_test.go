package spof

import (
	"math/rand"
	"testing"

	"github.com/meshlens/mesh-analyzer/pkg/graph"
	"github.com/meshlens/mesh-analyzer/pkg/model"
)

func buildSnapshot(t *testing.T, services []model.Service, connections []model.Connection) (*model.Snapshot, *graph.MeshGraph) {
	t.Helper()
	svcMap := make(map[string]model.Service)
	for _, svc := range services {
		svcMap[svc.ID] = svc
	}
	connMap := make(map[model.ConnectionKey]model.Connection)
	for _, conn := range connections {
		connMap[conn.Key()] = conn
	}
	snap := model.NewSnapshot(1, svcMap, connMap)
	return snap, graph.BuildMeshGraph(snap)
}

func svc(id string, role model.Role, rate float64) model.Service {
	return model.Service{ID: id, Name: id, Role: role, Metrics: model.ServiceMetrics{RequestRate: rate}}
}

func conn(source, target string) model.Connection {
	return model.Connection{Source: source, Target: target, Protocol: model.ProtocolHTTP}
}

func flaggedSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func TestDatabaseInboundRule(t *testing.T) {
	// db has 3 inbound connections, above the threshold of 2
	snap, g := buildSnapshot(t,
		[]model.Service{
			svc("a", model.RoleBackend, 1),
			svc("b", model.RoleBackend, 1),
			svc("c", model.RoleBackend, 1),
			svc("db", model.RoleDatabase, 1),
		},
		[]model.Connection{conn("a", "db"), conn("b", "db"), conn("c", "db")},
	)

	flagged := flaggedSet(NewDetector(DefaultThresholds()).Find(snap, g))
	if !flagged["db"] {
		t.Error("Expected db flagged by the database-inbound rule")
	}
}

func TestGatewayDegreeRule(t *testing.T) {
	// gw has 2 inbound + 2 outbound = 4 connections, above the threshold of 3
	snap, g := buildSnapshot(t,
		[]model.Service{
			svc("fe1", model.RoleFrontend, 1),
			svc("fe2", model.RoleFrontend, 1),
			svc("gw", model.RoleGateway, 1),
			svc("be1", model.RoleBackend, 1),
			svc("be2", model.RoleBackend, 1),
		},
		[]model.Connection{
			conn("fe1", "gw"), conn("fe2", "gw"),
			conn("gw", "be1"), conn("gw", "be2"),
		},
	)

	flagged := flaggedSet(NewDetector(DefaultThresholds()).Find(snap, g))
	if !flagged["gw"] {
		t.Error("Expected gw flagged by the gateway-degree rule")
	}
}

func TestHighRequestRateRule(t *testing.T) {
	// be handles 150 req/s with 2 inbound connections
	snap, g := buildSnapshot(t,
		[]model.Service{
			svc("fe1", model.RoleFrontend, 1),
			svc("fe2", model.RoleFrontend, 1),
			svc("be", model.RoleBackend, 150),
			svc("be2", model.RoleBackend, 1),
		},
		[]model.Connection{conn("fe1", "be"), conn("fe2", "be")},
	)

	flagged := flaggedSet(NewDetector(DefaultThresholds()).Find(snap, g))
	if !flagged["be"] {
		t.Error("Expected be flagged by the high-request-rate rule")
	}
	if flagged["be2"] {
		t.Error("be2 is idle and unflagged by every rule")
	}
}

func TestSoleRoleRule(t *testing.T) {
	// cache is the only service of its role and has 3 connections
	snap, g := buildSnapshot(t,
		[]model.Service{
			svc("be1", model.RoleBackend, 1),
			svc("be2", model.RoleBackend, 1),
			svc("be3", model.RoleBackend, 1),
			svc("cache", model.RoleCache, 1),
		},
		[]model.Connection{conn("be1", "cache"), conn("be2", "cache"), conn("be3", "cache")},
	)

	flagged := flaggedSet(NewDetector(DefaultThresholds()).Find(snap, g))
	if !flagged["cache"] {
		t.Error("Expected cache flagged by the sole-role rule")
	}
}

func TestSmallMeshHasNoSPOFs(t *testing.T) {
	// fe -> gw -> db with requestRate 50 each: gw has 2 total connections
	// (gateway rule needs more than 3), db has 1 inbound (database rule
	// needs more than 2), rates are modest, and no sole-role service has
	// more than 2 connections. Nothing triggers.
	snap, g := buildSnapshot(t,
		[]model.Service{
			svc("fe", model.RoleFrontend, 50),
			svc("gw", model.RoleGateway, 50),
			svc("db", model.RoleDatabase, 50),
		},
		[]model.Connection{conn("fe", "gw"), conn("gw", "db")},
	)

	if flagged := NewDetector(DefaultThresholds()).Find(snap, g); len(flagged) != 0 {
		t.Errorf("Expected no SPOFs, got %v", flagged)
	}
}

func TestDisconnectedGraphHasNoSPOFs(t *testing.T) {
	// No edges: no rule can trigger regardless of role or rate
	snap, g := buildSnapshot(t,
		[]model.Service{
			svc("fe", model.RoleFrontend, 500),
			svc("gw", model.RoleGateway, 500),
			svc("db", model.RoleDatabase, 500),
		},
		nil,
	)

	if flagged := NewDetector(DefaultThresholds()).Find(snap, g); len(flagged) != 0 {
		t.Errorf("Expected no SPOFs in edgeless graph, got %v", flagged)
	}
}

func TestFindIsOrderInsensitive(t *testing.T) {
	services := []model.Service{
		svc("a", model.RoleBackend, 1),
		svc("b", model.RoleBackend, 1),
		svc("c", model.RoleBackend, 1),
		svc("db", model.RoleDatabase, 1),
		svc("gw", model.RoleGateway, 120),
	}
	connections := []model.Connection{
		conn("a", "db"), conn("b", "db"), conn("c", "db"),
		conn("a", "gw"), conn("b", "gw"), conn("gw", "db"),
	}

	snap, g := buildSnapshot(t, services, connections)
	want := NewDetector(DefaultThresholds()).Find(snap, g)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffledSvcs := append([]model.Service(nil), services...)
		rng.Shuffle(len(shuffledSvcs), func(a, b int) {
			shuffledSvcs[a], shuffledSvcs[b] = shuffledSvcs[b], shuffledSvcs[a]
		})
		shuffledConns := append([]model.Connection(nil), connections...)
		rng.Shuffle(len(shuffledConns), func(a, b int) {
			shuffledConns[a], shuffledConns[b] = shuffledConns[b], shuffledConns[a]
		})

		snap2, g2 := buildSnapshot(t, shuffledSvcs, shuffledConns)
		got := NewDetector(DefaultThresholds()).Find(snap2, g2)
		if len(got) != len(want) {
			t.Fatalf("Permutation %d changed result: %v vs %v", i, got, want)
		}
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("Permutation %d changed result: %v vs %v", i, got, want)
			}
		}
	}
}

func TestCustomThresholds(t *testing.T) {
	snap, g := buildSnapshot(t,
		[]model.Service{
			svc("a", model.RoleBackend, 1),
			svc("db", model.RoleDatabase, 1),
		},
		[]model.Connection{conn("a", "db")},
	)

	strict := Thresholds{
		DatabaseInbound: 0, // any inbound flags a database
		GatewayDegree:   3,
		HighRequestRate: 100,
		HighRateInbound: 1,
		SoleRoleDegree:  10,
	}
	flagged := flaggedSet(NewDetector(strict).Find(snap, g))
	if !flagged["db"] {
		t.Error("Expected db flagged under tightened database-inbound threshold")
	}
}
