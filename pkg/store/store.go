// Package store holds the authoritative mutable topology. It is the only
// shared mutable state in the analyzer: writers go through a single lock, and
// readers get immutable versioned snapshots, so analysis never observes a
// graph mutating mid-computation.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/meshlens/mesh-analyzer/pkg/model"
)

var (
	// ErrUnknownService is returned when a partial patch addresses a service
	// that does not exist and does not carry enough fields to create it
	ErrUnknownService = errors.New("patch references unknown service")
	// ErrUnknownConnection is returned when a removal addresses a connection
	// that does not exist
	ErrUnknownConnection = errors.New("patch references unknown connection")
	// ErrDanglingConnection is returned when a connection's source or target
	// is not part of the topology
	ErrDanglingConnection = errors.New("connection endpoint does not exist")
	// ErrServiceInUse is returned when removing a service that still has
	// connections; callers must remove dependent connections first
	ErrServiceInUse = errors.New("service still referenced by connections")
	// ErrInvalidService is returned for a service without an ID or with an
	// unknown role
	ErrInvalidService = errors.New("invalid service")
)

// Store is the topology store. The zero value is not usable; use New.
type Store struct {
	mu          sync.Mutex
	services    map[string]model.Service
	connections map[model.ConnectionKey]model.Connection
	version     uint64
	snapshot    *model.Snapshot
	changes     chan struct{}
}

// New creates an empty store at version 0
func New() *Store {
	s := &Store{
		services:    make(map[string]model.Service),
		connections: make(map[model.ConnectionKey]model.Connection),
		changes:     make(chan struct{}, 1),
	}
	s.snapshot = model.NewSnapshot(0, s.services, s.connections)
	return s
}

// Current returns the immutable snapshot of the topology as of the last
// effective change. Safe to call concurrently with writes.
func (s *Store) Current() *model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Version returns the current store version. The version moves only on
// effective changes; rejected or no-op updates leave it untouched.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Changes returns a channel that receives a tick after every effective
// change. The channel is buffered with depth one: bursts coalesce, and the
// scheduler reads the latest snapshot when it gets around to it.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

// Ingest replaces the full topology. Services must carry an ID and a known
// role; every connection's endpoints must be among the ingested services.
// Duplicate connections for the same ordered pair collapse to the last one.
// Ingesting content identical to the current topology is a no-op and does not
// bump the version.
func (s *Store) Ingest(services []model.Service, connections []model.Connection) error {
	next := make(map[string]model.Service, len(services))
	nextConns := make(map[model.ConnectionKey]model.Connection, len(connections))

	for _, svc := range services {
		if svc.ID == "" || !svc.Role.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidService, svc.ID)
		}
		next[svc.ID] = svc
	}
	for _, conn := range connections {
		if _, ok := next[conn.Source]; !ok {
			return fmt.Errorf("%w: source %q", ErrDanglingConnection, conn.Source)
		}
		if _, ok := next[conn.Target]; !ok {
			return fmt.Errorf("%w: target %q", ErrDanglingConnection, conn.Target)
		}
		nextConns[conn.Key()] = conn
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit(next, nextConns)
	return nil
}

// ApplyDelta merges a partial update into the current topology, upserting by
// service ID and connection pair. The delta is validated as a whole against
// the state it would produce; on any violation it is dropped entirely and the
// version is not bumped. Applying a delta whose result equals the current
// topology is a no-op without a version bump.
func (s *Store) ApplyDelta(delta model.Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]model.Service, len(s.services))
	for id, svc := range s.services {
		next[id] = svc
	}
	nextConns := make(map[model.ConnectionKey]model.Connection, len(s.connections))
	for key, conn := range s.connections {
		nextConns[key] = conn
	}

	// Service patches first, so connections added by the same delta can
	// reference services it introduces
	var removed []string
	for _, patch := range delta.Services {
		if patch.Remove {
			if _, ok := next[patch.ID]; !ok {
				return fmt.Errorf("%w: %q", ErrUnknownService, patch.ID)
			}
			delete(next, patch.ID)
			removed = append(removed, patch.ID)
			continue
		}
		base, ok := next[patch.ID]
		if !ok {
			if !patch.CanCreate() {
				return fmt.Errorf("%w: %q", ErrUnknownService, patch.ID)
			}
			base = model.Service{ID: patch.ID, Health: model.HealthUnknown}
		}
		svc := patch.Apply(base)
		if svc.ID == "" || !svc.Role.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidService, patch.ID)
		}
		next[svc.ID] = svc
	}

	for _, patch := range delta.Connections {
		key := patch.Key()
		if patch.Remove {
			if _, ok := nextConns[key]; !ok {
				return fmt.Errorf("%w: %s -> %s", ErrUnknownConnection, key.Source, key.Target)
			}
			delete(nextConns, key)
			continue
		}
		if _, ok := next[patch.Source]; !ok {
			return fmt.Errorf("%w: source %q", ErrDanglingConnection, patch.Source)
		}
		if _, ok := next[patch.Target]; !ok {
			return fmt.Errorf("%w: target %q", ErrDanglingConnection, patch.Target)
		}
		nextConns[key] = patch.Apply(nextConns[key])
	}

	// A removed service must not leave dangling edges behind; dependent
	// connections have to go in the same delta or an earlier one
	for _, id := range removed {
		for key := range nextConns {
			if key.Source == id || key.Target == id {
				return fmt.Errorf("%w: %q (connection %s -> %s)", ErrServiceInUse, id, key.Source, key.Target)
			}
		}
	}

	s.commit(next, nextConns)
	return nil
}

// commit swaps in the new state if it differs from the current one and bumps
// the version. Caller holds the lock.
func (s *Store) commit(services map[string]model.Service, connections map[model.ConnectionKey]model.Connection) {
	candidate := model.NewSnapshot(s.version+1, services, connections)
	if candidate.EqualContents(s.snapshot) {
		return
	}
	s.services = services
	s.connections = connections
	s.version++
	s.snapshot = candidate

	select {
	case s.changes <- struct{}{}:
	default:
	}
}
