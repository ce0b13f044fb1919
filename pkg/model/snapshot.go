package model

import "sort"

// Snapshot is an immutable point-in-time view of the full topology. The store
// builds a fresh Snapshot on every effective change and never mutates one it
// has handed out, so readers need no locking.
type Snapshot struct {
	version     uint64
	services    map[string]Service
	connections map[ConnectionKey]Connection
}

// NewSnapshot builds a snapshot from the given services and connections.
// The maps are copied; callers keep ownership of their arguments.
func NewSnapshot(version uint64, services map[string]Service, connections map[ConnectionKey]Connection) *Snapshot {
	s := &Snapshot{
		version:     version,
		services:    make(map[string]Service, len(services)),
		connections: make(map[ConnectionKey]Connection, len(connections)),
	}
	for id, svc := range services {
		s.services[id] = svc
	}
	for key, conn := range connections {
		s.connections[key] = conn
	}
	return s
}

// Version returns the store version this snapshot was taken at
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Service returns the service with the given ID
func (s *Snapshot) Service(id string) (Service, bool) {
	svc, ok := s.services[id]
	return svc, ok
}

// Connection returns the connection for the given ordered pair
func (s *Snapshot) Connection(key ConnectionKey) (Connection, bool) {
	conn, ok := s.connections[key]
	return conn, ok
}

// ServiceIDs returns all service IDs in sorted order. Analysis iterates in
// this order so results are deterministic across runs.
func (s *Snapshot) ServiceIDs() []string {
	ids := make([]string, 0, len(s.services))
	for id := range s.services {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Services returns all services sorted by ID
func (s *Snapshot) Services() []Service {
	services := make([]Service, 0, len(s.services))
	for _, id := range s.ServiceIDs() {
		services = append(services, s.services[id])
	}
	return services
}

// Connections returns all connections sorted by (source, target)
func (s *Snapshot) Connections() []Connection {
	connections := make([]Connection, 0, len(s.connections))
	for _, conn := range s.connections {
		connections = append(connections, conn)
	}
	sort.Slice(connections, func(i, j int) bool {
		if connections[i].Source != connections[j].Source {
			return connections[i].Source < connections[j].Source
		}
		return connections[i].Target < connections[j].Target
	})
	return connections
}

// ServicesByRole returns the IDs of all services with the given role, sorted
func (s *Snapshot) ServicesByRole(role Role) []string {
	var ids []string
	for id, svc := range s.services {
		if svc.Role == role {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// NumServices returns the number of services in the snapshot
func (s *Snapshot) NumServices() int {
	return len(s.services)
}

// NumConnections returns the number of connections in the snapshot
func (s *Snapshot) NumConnections() int {
	return len(s.connections)
}

// EqualContents reports whether two snapshots hold identical services and
// connections, ignoring version
func (s *Snapshot) EqualContents(o *Snapshot) bool {
	if len(s.services) != len(o.services) || len(s.connections) != len(o.connections) {
		return false
	}
	for id, svc := range s.services {
		other, ok := o.services[id]
		if !ok || !svc.Equal(other) {
			return false
		}
	}
	for key, conn := range s.connections {
		other, ok := o.connections[key]
		if !ok || conn != other {
			return false
		}
	}
	return true
}
