package model

import "time"

// ServicePatch is a partial update to a single service, keyed by ID. Nil
// fields retain their previous value. A patch for an unknown ID creates the
// service, provided Name and Role are present (a partial patch cannot
// meaningfully create a node). Remove deletes the service; the delta is
// rejected if any connection still references it.
type ServicePatch struct {
	ID     string `json:"id"`
	Remove bool   `json:"remove,omitempty"`

	Name      *string `json:"name,omitempty"`
	Namespace *string `json:"namespace,omitempty"`
	Role      *Role   `json:"role,omitempty"`
	Health    *Health `json:"health,omitempty"`
	Instances *int    `json:"instances,omitempty"`

	RequestRate *float64 `json:"requestRate,omitempty"`
	ErrorRate   *float64 `json:"errorRate,omitempty"`
	LatencyP50  *float64 `json:"latencyP50,omitempty"`
	LatencyP95  *float64 `json:"latencyP95,omitempty"`
	LatencyP99  *float64 `json:"latencyP99,omitempty"`

	CircuitState     *CircuitState  `json:"circuitState,omitempty"`
	FailureThreshold *int           `json:"failureThreshold,omitempty"`
	CircuitTimeout   *time.Duration `json:"circuitTimeout,omitempty"`
	LastTripped      *time.Time     `json:"lastTripped,omitempty"`
}

// CanCreate reports whether the patch carries enough to create a new service
func (p ServicePatch) CanCreate() bool {
	return p.Name != nil && p.Role != nil
}

// Apply folds the patch into an existing service value
func (p ServicePatch) Apply(svc Service) Service {
	svc.ID = p.ID
	if p.Name != nil {
		svc.Name = *p.Name
	}
	if p.Namespace != nil {
		svc.Namespace = *p.Namespace
	}
	if p.Role != nil {
		svc.Role = *p.Role
	}
	if p.Health != nil {
		svc.Health = *p.Health
	}
	if p.Instances != nil {
		svc.Instances = *p.Instances
	}
	if p.RequestRate != nil {
		svc.Metrics.RequestRate = *p.RequestRate
	}
	if p.ErrorRate != nil {
		svc.Metrics.ErrorRate = *p.ErrorRate
	}
	if p.LatencyP50 != nil {
		svc.Metrics.LatencyP50 = *p.LatencyP50
	}
	if p.LatencyP95 != nil {
		svc.Metrics.LatencyP95 = *p.LatencyP95
	}
	if p.LatencyP99 != nil {
		svc.Metrics.LatencyP99 = *p.LatencyP99
	}
	if p.CircuitState != nil {
		svc.Circuit.State = *p.CircuitState
	}
	if p.FailureThreshold != nil {
		svc.Circuit.FailureThreshold = *p.FailureThreshold
	}
	if p.CircuitTimeout != nil {
		svc.Circuit.Timeout = *p.CircuitTimeout
	}
	if p.LastTripped != nil {
		svc.Circuit.LastTripped = *p.LastTripped
	}
	return svc
}

// ConnectionPatch is a partial update to a single connection, keyed by the
// ordered (Source, Target) pair. Upserts by pair: patching an unknown pair
// creates the connection, provided both endpoints exist once the delta's
// service patches have been applied.
type ConnectionPatch struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Remove bool   `json:"remove,omitempty"`

	Protocol   *Protocol `json:"protocol,omitempty"`
	Encrypted  *bool     `json:"encrypted,omitempty"`
	MutualAuth *bool     `json:"mutualAuth,omitempty"`

	RequestRate *float64 `json:"requestRate,omitempty"`
	ErrorRate   *float64 `json:"errorRate,omitempty"`
}

// Key returns the ordered pair the patch addresses
func (p ConnectionPatch) Key() ConnectionKey {
	return ConnectionKey{Source: p.Source, Target: p.Target}
}

// Apply folds the patch into an existing connection value
func (p ConnectionPatch) Apply(conn Connection) Connection {
	conn.Source = p.Source
	conn.Target = p.Target
	if p.Protocol != nil {
		conn.Protocol = *p.Protocol
	}
	if p.Encrypted != nil {
		conn.Encrypted = *p.Encrypted
	}
	if p.MutualAuth != nil {
		conn.MutualAuth = *p.MutualAuth
	}
	if p.RequestRate != nil {
		conn.Metrics.RequestRate = *p.RequestRate
	}
	if p.ErrorRate != nil {
		conn.Metrics.ErrorRate = *p.ErrorRate
	}
	return conn
}

// Delta is an incremental update applied to the current topology. It is
// applied atomically: a delta that fails validation is dropped whole and the
// store version is not bumped.
type Delta struct {
	Services    []ServicePatch    `json:"services,omitempty"`
	Connections []ConnectionPatch `json:"connections,omitempty"`
}
