package model

import (
	"reflect"
	"testing"
	"time"
)

func strptr(s string) *string    { return &s }
func f64ptr(f float64) *float64  { return &f }
func roleptr(r Role) *Role       { return &r }
func healthptr(h Health) *Health { return &h }

func TestServicePatchApplyRetainsUnsetFields(t *testing.T) {
	base := Service{
		ID:        "be",
		Name:      "orders",
		Namespace: "shop",
		Role:      RoleBackend,
		Health:    HealthHealthy,
		Instances: 3,
		Metrics:   ServiceMetrics{RequestRate: 40, ErrorRate: 0.01, LatencyP95: 80},
	}

	patch := ServicePatch{
		ID:          "be",
		Health:      healthptr(HealthWarning),
		RequestRate: f64ptr(55),
	}
	got := patch.Apply(base)

	if got.Health != HealthWarning || got.Metrics.RequestRate != 55 {
		t.Errorf("Patched fields not applied: %+v", got)
	}
	if got.Name != "orders" || got.Namespace != "shop" || got.Role != RoleBackend ||
		got.Instances != 3 || got.Metrics.ErrorRate != 0.01 || got.Metrics.LatencyP95 != 80 {
		t.Errorf("Unset fields did not retain their values: %+v", got)
	}
}

func TestServicePatchCanCreate(t *testing.T) {
	partial := ServicePatch{ID: "new", RequestRate: f64ptr(10)}
	if partial.CanCreate() {
		t.Error("Patch without name and role must not create a service")
	}

	complete := ServicePatch{ID: "new", Name: strptr("search"), Role: roleptr(RoleBackend)}
	if !complete.CanCreate() {
		t.Error("Patch with name and role must be able to create a service")
	}
}

func TestServiceEqualIgnoresMonotonicClock(t *testing.T) {
	tripped := time.Now()
	a := Service{ID: "be", Role: RoleBackend, Circuit: CircuitBreaker{State: CircuitOpen, LastTripped: tripped}}
	b := a
	// Round-tripping through wall clock strips the monotonic reading
	b.Circuit.LastTripped = tripped.Round(0)

	if !a.Equal(b) {
		t.Error("Equal() must compare timestamps with time.Equal")
	}

	b.Circuit.LastTripped = tripped.Add(time.Second)
	if a.Equal(b) {
		t.Error("Equal() must see different trip times")
	}
}

func TestRoleValid(t *testing.T) {
	for _, role := range Roles {
		if !role.Valid() {
			t.Errorf("Role %q must be valid", role)
		}
	}
	if Role("loadbalancer").Valid() || Role("").Valid() {
		t.Error("Unknown roles must be invalid")
	}
}

func TestSnapshotCopiesItsInputs(t *testing.T) {
	services := map[string]Service{"be": {ID: "be", Role: RoleBackend}}
	connections := map[ConnectionKey]Connection{}
	snap := NewSnapshot(1, services, connections)

	services["ghost"] = Service{ID: "ghost", Role: RoleCache}
	if snap.NumServices() != 1 {
		t.Error("Mutating the source map leaked into the snapshot")
	}
}

func TestSnapshotSortedAccessors(t *testing.T) {
	services := map[string]Service{
		"zeta":  {ID: "zeta", Role: RoleBackend},
		"alpha": {ID: "alpha", Role: RoleFrontend},
		"mid":   {ID: "mid", Role: RoleBackend},
	}
	connections := map[ConnectionKey]Connection{
		{Source: "zeta", Target: "mid"}:   {Source: "zeta", Target: "mid"},
		{Source: "alpha", Target: "zeta"}: {Source: "alpha", Target: "zeta"},
		{Source: "alpha", Target: "mid"}:  {Source: "alpha", Target: "mid"},
	}
	snap := NewSnapshot(1, services, connections)

	if got, want := snap.ServiceIDs(), []string{"alpha", "mid", "zeta"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ServiceIDs() = %v, want %v", got, want)
	}
	if got, want := snap.ServicesByRole(RoleBackend), []string{"mid", "zeta"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ServicesByRole(backend) = %v, want %v", got, want)
	}

	conns := snap.Connections()
	var order []ConnectionKey
	for _, c := range conns {
		order = append(order, c.Key())
	}
	want := []ConnectionKey{
		{Source: "alpha", Target: "mid"},
		{Source: "alpha", Target: "zeta"},
		{Source: "zeta", Target: "mid"},
	}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("Connections() order = %v, want %v", order, want)
	}
}

func TestEqualContentsIgnoresVersion(t *testing.T) {
	services := map[string]Service{"be": {ID: "be", Role: RoleBackend}}
	a := NewSnapshot(1, services, nil)
	b := NewSnapshot(9, services, nil)

	if !a.EqualContents(b) {
		t.Error("Snapshots with identical contents must compare equal across versions")
	}

	changed := map[string]Service{"be": {ID: "be", Role: RoleBackend, Instances: 2}}
	c := NewSnapshot(2, changed, nil)
	if a.EqualContents(c) {
		t.Error("Snapshots with different contents must not compare equal")
	}
}
