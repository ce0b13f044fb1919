package store

import (
	"errors"
	"testing"

	"github.com/meshlens/mesh-analyzer/pkg/model"
)

func svc(id string, role model.Role, rate float64) model.Service {
	return model.Service{
		ID:      id,
		Name:    id,
		Role:    role,
		Health:  model.HealthHealthy,
		Metrics: model.ServiceMetrics{RequestRate: rate},
	}
}

func conn(source, target string, rate float64) model.Connection {
	return model.Connection{
		Source:   source,
		Target:   target,
		Protocol: model.ProtocolHTTP,
		Metrics:  model.ConnectionMetrics{RequestRate: rate},
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	err := s.Ingest(
		[]model.Service{
			svc("fe", model.RoleFrontend, 50),
			svc("gw", model.RoleGateway, 50),
			svc("db", model.RoleDatabase, 50),
		},
		[]model.Connection{
			conn("fe", "gw", 50),
			conn("gw", "db", 50),
		},
	)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	return s
}

func TestIngestReplacesTopology(t *testing.T) {
	s := newTestStore(t)

	if got := s.Current().NumServices(); got != 3 {
		t.Errorf("Expected 3 services, got %d", got)
	}
	if got := s.Current().NumConnections(); got != 2 {
		t.Errorf("Expected 2 connections, got %d", got)
	}
	if s.Version() != 1 {
		t.Errorf("Expected version 1 after first ingest, got %d", s.Version())
	}

	err := s.Ingest([]model.Service{svc("solo", model.RoleBackend, 1)}, nil)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if got := s.Current().NumServices(); got != 1 {
		t.Errorf("Expected full replace to leave 1 service, got %d", got)
	}
	if s.Version() != 2 {
		t.Errorf("Expected version 2, got %d", s.Version())
	}
}

func TestIngestRejectsDanglingConnection(t *testing.T) {
	s := New()
	err := s.Ingest(
		[]model.Service{svc("fe", model.RoleFrontend, 1)},
		[]model.Connection{conn("fe", "ghost", 1)},
	)
	if !errors.Is(err, ErrDanglingConnection) {
		t.Errorf("Expected ErrDanglingConnection, got %v", err)
	}
	if s.Version() != 0 {
		t.Errorf("Rejected ingest must not bump version, got %d", s.Version())
	}
}

func TestIngestRoundTripIsNoOp(t *testing.T) {
	s := newTestStore(t)
	before := s.Version()
	snap := s.Current()

	if err := s.Ingest(snap.Services(), snap.Connections()); err != nil {
		t.Fatalf("Ingest(Current()) error = %v", err)
	}
	if s.Version() != before {
		t.Errorf("Round-trip ingest bumped version %d -> %d", before, s.Version())
	}
	if !s.Current().EqualContents(snap) {
		t.Error("Round-trip ingest changed snapshot contents")
	}
}

func TestApplyDeltaPartialPatchRetainsFields(t *testing.T) {
	s := newTestStore(t)

	rate := 75.0
	err := s.ApplyDelta(model.Delta{
		Services: []model.ServicePatch{{ID: "gw", RequestRate: &rate}},
	})
	if err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}

	gw, ok := s.Current().Service("gw")
	if !ok {
		t.Fatal("gw missing after delta")
	}
	if gw.Metrics.RequestRate != 75 {
		t.Errorf("Expected patched rate 75, got %g", gw.Metrics.RequestRate)
	}
	if gw.Role != model.RoleGateway {
		t.Errorf("Unpatched field changed: role = %q", gw.Role)
	}
	if gw.Name != "gw" {
		t.Errorf("Unpatched field changed: name = %q", gw.Name)
	}
}

func TestApplyDeltaIdempotent(t *testing.T) {
	s := newTestStore(t)

	health := model.HealthWarning
	delta := model.Delta{
		Services: []model.ServicePatch{{ID: "db", Health: &health}},
	}

	if err := s.ApplyDelta(delta); err != nil {
		t.Fatalf("First ApplyDelta() error = %v", err)
	}
	versionAfterFirst := s.Version()
	snapAfterFirst := s.Current()

	if err := s.ApplyDelta(delta); err != nil {
		t.Fatalf("Second ApplyDelta() error = %v", err)
	}
	if s.Version() != versionAfterFirst {
		t.Errorf("Duplicate delta bumped version %d -> %d", versionAfterFirst, s.Version())
	}
	if !s.Current().EqualContents(snapAfterFirst) {
		t.Error("Duplicate delta changed snapshot contents")
	}
}

func TestApplyDeltaRejectsUnknownConnectionTarget(t *testing.T) {
	// Scenario: a delta referencing nonexistent service "ghost" as a
	// connection target is rejected and the version is unchanged
	s := newTestStore(t)
	before := s.Version()

	err := s.ApplyDelta(model.Delta{
		Connections: []model.ConnectionPatch{{Source: "fe", Target: "ghost"}},
	})
	if !errors.Is(err, ErrDanglingConnection) {
		t.Errorf("Expected ErrDanglingConnection, got %v", err)
	}
	if s.Version() != before {
		t.Errorf("Rejected delta bumped version %d -> %d", before, s.Version())
	}
}

func TestApplyDeltaRejectsPartialPatchOfUnknownService(t *testing.T) {
	s := newTestStore(t)
	rate := 10.0

	err := s.ApplyDelta(model.Delta{
		Services: []model.ServicePatch{{ID: "ghost", RequestRate: &rate}},
	})
	if !errors.Is(err, ErrUnknownService) {
		t.Errorf("Expected ErrUnknownService, got %v", err)
	}
}

func TestApplyDeltaCreatesServiceWithCompletePatch(t *testing.T) {
	s := newTestStore(t)

	name := "cache-1"
	role := model.RoleCache
	err := s.ApplyDelta(model.Delta{
		Services: []model.ServicePatch{{ID: "cache", Name: &name, Role: &role}},
	})
	if err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}

	created, ok := s.Current().Service("cache")
	if !ok {
		t.Fatal("Created service not found")
	}
	if created.Role != model.RoleCache || created.Name != "cache-1" {
		t.Errorf("Unexpected created service: %+v", created)
	}
	if created.Health != model.HealthUnknown {
		t.Errorf("New service should default to unknown health, got %q", created.Health)
	}
}

func TestApplyDeltaRejectsRemovalOfConnectedService(t *testing.T) {
	s := newTestStore(t)
	before := s.Version()

	err := s.ApplyDelta(model.Delta{
		Services: []model.ServicePatch{{ID: "gw", Remove: true}},
	})
	if !errors.Is(err, ErrServiceInUse) {
		t.Errorf("Expected ErrServiceInUse, got %v", err)
	}
	if s.Version() != before {
		t.Errorf("Rejected removal bumped version %d -> %d", before, s.Version())
	}
}

func TestApplyDeltaRemovesServiceWithConnectionsInSameDelta(t *testing.T) {
	s := newTestStore(t)

	err := s.ApplyDelta(model.Delta{
		Services: []model.ServicePatch{{ID: "db", Remove: true}},
		Connections: []model.ConnectionPatch{
			{Source: "gw", Target: "db", Remove: true},
		},
	})
	if err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}
	if _, ok := s.Current().Service("db"); ok {
		t.Error("db still present after removal")
	}
	if s.Current().NumConnections() != 1 {
		t.Errorf("Expected 1 connection left, got %d", s.Current().NumConnections())
	}
}

func TestApplyDeltaUpsertsConnectionMetrics(t *testing.T) {
	s := newTestStore(t)

	errRate := 0.2
	err := s.ApplyDelta(model.Delta{
		Connections: []model.ConnectionPatch{{Source: "fe", Target: "gw", ErrorRate: &errRate}},
	})
	if err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}

	c, ok := s.Current().Connection(model.ConnectionKey{Source: "fe", Target: "gw"})
	if !ok {
		t.Fatal("Connection missing after patch")
	}
	if c.Metrics.ErrorRate != 0.2 {
		t.Errorf("Expected error rate 0.2, got %g", c.Metrics.ErrorRate)
	}
	if c.Metrics.RequestRate != 50 {
		t.Errorf("Unpatched metric changed: request rate = %g", c.Metrics.RequestRate)
	}
}

func TestSnapshotIsolatedFromLaterWrites(t *testing.T) {
	s := newTestStore(t)
	snap := s.Current()

	if err := s.Ingest([]model.Service{svc("other", model.RoleBackend, 1)}, nil); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if snap.NumServices() != 3 {
		t.Errorf("Old snapshot mutated: %d services", snap.NumServices())
	}
	if _, ok := snap.Service("fe"); !ok {
		t.Error("Old snapshot lost service fe")
	}
}

func TestChangesCoalesce(t *testing.T) {
	s := newTestStore(t)

	// Drain the tick from setup
	select {
	case <-s.Changes():
	default:
	}

	for i := 0; i < 5; i++ {
		rate := float64(100 + i)
		if err := s.ApplyDelta(model.Delta{
			Services: []model.ServicePatch{{ID: "fe", RequestRate: &rate}},
		}); err != nil {
			t.Fatalf("ApplyDelta() error = %v", err)
		}
	}

	// Burst of effective changes must coalesce to a single pending tick
	ticks := 0
	for {
		select {
		case <-s.Changes():
			ticks++
			continue
		default:
		}
		break
	}
	if ticks != 1 {
		t.Errorf("Expected 1 coalesced tick, got %d", ticks)
	}
}
