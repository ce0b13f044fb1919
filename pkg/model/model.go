package model

import "time"

// Role classifies a service's function in the mesh
type Role string

const (
	RoleFrontend Role = "frontend"
	RoleBackend  Role = "backend"
	RoleDatabase Role = "database"
	RoleCache    Role = "cache"
	RoleGateway  Role = "gateway"
	RoleSidecar  Role = "sidecar"
)

// Roles lists every known role in a stable order
var Roles = []Role{RoleFrontend, RoleBackend, RoleDatabase, RoleCache, RoleGateway, RoleSidecar}

// Valid reports whether the role is one of the known roles
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Health represents the reported health of a service
type Health string

const (
	HealthHealthy Health = "healthy"
	HealthWarning Health = "warning"
	HealthError   Health = "error"
	HealthUnknown Health = "unknown"
)

// Protocol represents the transport protocol of a connection
type Protocol string

const (
	ProtocolHTTP Protocol = "http"
	ProtocolGRPC Protocol = "grpc"
	ProtocolTCP  Protocol = "tcp"
	ProtocolUDP  Protocol = "udp"
)

// CircuitState represents a service's circuit breaker state
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitHalfOpen CircuitState = "half-open"
	CircuitOpen     CircuitState = "open"
)

// ServiceMetrics is the latest measurement snapshot for a service
type ServiceMetrics struct {
	RequestRate float64 `json:"requestRate"` // requests per second
	ErrorRate   float64 `json:"errorRate"`   // fraction of requests failing
	LatencyP50  float64 `json:"latencyP50"`  // milliseconds
	LatencyP95  float64 `json:"latencyP95"`
	LatencyP99  float64 `json:"latencyP99"`
}

// CircuitBreaker describes a service's circuit breaker configuration and state
type CircuitBreaker struct {
	State            CircuitState  `json:"state"`
	FailureThreshold int           `json:"failureThreshold"`
	Timeout          time.Duration `json:"timeout"`
	LastTripped      time.Time     `json:"lastTripped,omitzero"`
}

// Service is a node in the topology graph. ID is stable across snapshots:
// updates mutate fields of the existing node, they never create a duplicate
// under a new identity.
type Service struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Namespace string         `json:"namespace"`
	Role      Role           `json:"role"`
	Health    Health         `json:"health"`
	Instances int            `json:"instances"`
	Metrics   ServiceMetrics `json:"metrics"`
	Circuit   CircuitBreaker `json:"circuitBreaker"`
}

// Equal reports field equality. Timestamps are compared with time.Equal so
// monotonic clock readings do not break idempotence checks.
func (s Service) Equal(o Service) bool {
	if !s.Circuit.LastTripped.Equal(o.Circuit.LastTripped) {
		return false
	}
	s.Circuit.LastTripped = time.Time{}
	o.Circuit.LastTripped = time.Time{}
	return s == o
}

// ConnectionMetrics is the latest measurement snapshot for a connection
type ConnectionMetrics struct {
	RequestRate float64 `json:"requestRate"`
	ErrorRate   float64 `json:"errorRate"`
}

// Connection is a directed edge: Source calls Target. At most one connection
// exists per ordered (Source, Target) pair; updates to the pair replace its
// metrics.
type Connection struct {
	Source     string            `json:"source"`
	Target     string            `json:"target"`
	Protocol   Protocol          `json:"protocol"`
	Encrypted  bool              `json:"encrypted"`
	MutualAuth bool              `json:"mutualAuth"`
	Metrics    ConnectionMetrics `json:"metrics"`
}

// Key returns the identity of the connection's ordered pair
func (c Connection) Key() ConnectionKey {
	return ConnectionKey{Source: c.Source, Target: c.Target}
}

// ConnectionKey identifies a connection by its ordered endpoint pair
type ConnectionKey struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Path is an ordered sequence of service IDs where every consecutive pair is
// backed by a connection. No ID repeats within a path.
type Path []string
