// Package render maps raw service and connection attributes into the discrete
// visual classes the rendering surface consumes. All classification goes
// through exhaustive lookup tables on closed enums; there is no string
// branching to fall out of.
package render

import (
	"math"

	"github.com/meshlens/mesh-analyzer/pkg/model"
)

// ColorMode selects what drives node coloring
type ColorMode string

const (
	// ColorByRole colors nodes with a stable per-role palette
	ColorByRole ColorMode = "role"
	// ColorByLatency colors nodes by their p95 latency bucket
	ColorByLatency ColorMode = "latency"
)

// LatencyBucket is a discrete p95 latency classification
type LatencyBucket string

const (
	LatencyExcellent LatencyBucket = "excellent"
	LatencyGood      LatencyBucket = "good"
	LatencyModerate  LatencyBucket = "moderate"
	LatencySlow      LatencyBucket = "slow"
	LatencyCritical  LatencyBucket = "critical"
)

// EdgeClass is the visual class of a connection. Exactly one class applies;
// classifyEdge picks the highest-priority signal that holds.
type EdgeClass string

const (
	EdgeDanger     EdgeClass = "danger"      // error rate above threshold
	EdgeMutualAuth EdgeClass = "mutual-auth" // mTLS
	EdgeEncrypted  EdgeClass = "encrypted"   // TLS without mutual auth
	EdgePlain      EdgeClass = "plain"
)

// rolePalette is the stable node color per role. Every member of model.Roles
// has an entry; projectNode falls back to the sidecar gray for safety but the
// closed enum makes that path unreachable from validated snapshots.
var rolePalette = map[model.Role]string{
	model.RoleFrontend: "#42a5f5",
	model.RoleBackend:  "#66bb6a",
	model.RoleDatabase: "#ab47bc",
	model.RoleCache:    "#ffa726",
	model.RoleGateway:  "#26c6da",
	model.RoleSidecar:  "#9e9e9e",
}

// latencyLadder maps p95 upper bounds (exclusive) to buckets, in ascending
// order. Anything at or beyond the last bound is critical.
var latencyLadder = []struct {
	upperMs float64
	bucket  LatencyBucket
	color   string
}{
	{50, LatencyExcellent, "#2e7d32"},
	{100, LatencyGood, "#7cb342"},
	{200, LatencyModerate, "#fdd835"},
	{500, LatencySlow, "#fb8c00"},
}

const (
	latencyCriticalColor = "#e53935"

	edgeDangerColor     = "#e53935"
	edgeMutualAuthColor = "#2e7d32"
	edgeEncryptedColor  = "#43a047"
	edgePlainColor      = "#90a4ae"
)

// Config holds the tunables of the projector
type Config struct {
	Mode ColorMode `koanf:"mode"`
	// HighErrorRate is the connection error-rate fraction above which the
	// danger class wins over security posture
	HighErrorRate float64 `koanf:"high-error-rate"`
	// SizeBase and SizeScale control node sizing:
	// base + log10(requestRate+1) * scale
	SizeBase  float64 `koanf:"size-base"`
	SizeScale float64 `koanf:"size-scale"`
}

// DefaultConfig returns the standard projector settings
func DefaultConfig() Config {
	return Config{
		Mode:          ColorByRole,
		HighErrorRate: 0.05,
		SizeBase:      20,
		SizeScale:     10,
	}
}

// NodeState is the render-relevant classification of one service
type NodeState struct {
	Color   string             `json:"color"`
	Bucket  LatencyBucket      `json:"latencyBucket"`
	Size    float64            `json:"size"`
	Role    model.Role         `json:"role"`
	Health  model.Health       `json:"health"`
	Circuit model.CircuitState `json:"circuitState"`
}

// EdgeState is the render-relevant classification of one connection
type EdgeState struct {
	Class EdgeClass `json:"class"`
	Color string    `json:"color"`
}

// Projector folds services and connections into visual classes
type Projector struct {
	cfg Config
}

// NewProjector creates a projector with the given configuration
func NewProjector(cfg Config) *Projector {
	return &Projector{cfg: cfg}
}

// Node projects a service into its node state
func (p *Projector) Node(svc model.Service) NodeState {
	bucket, latencyColor := classifyLatency(svc.Metrics.LatencyP95)

	color := latencyColor
	if p.cfg.Mode == ColorByRole {
		var ok bool
		if color, ok = rolePalette[svc.Role]; !ok {
			color = rolePalette[model.RoleSidecar]
		}
	}

	return NodeState{
		Color:   color,
		Bucket:  bucket,
		Size:    p.cfg.SizeBase + math.Log10(svc.Metrics.RequestRate+1)*p.cfg.SizeScale,
		Role:    svc.Role,
		Health:  svc.Health,
		Circuit: svc.Circuit.State,
	}
}

// Edge projects a connection into its edge state. When several signals hold
// at once the most actionable one wins: high error rate beats mutual auth
// beats plain encryption.
func (p *Projector) Edge(conn model.Connection) EdgeState {
	switch {
	case conn.Metrics.ErrorRate > p.cfg.HighErrorRate:
		return EdgeState{Class: EdgeDanger, Color: edgeDangerColor}
	case conn.MutualAuth:
		return EdgeState{Class: EdgeMutualAuth, Color: edgeMutualAuthColor}
	case conn.Encrypted:
		return EdgeState{Class: EdgeEncrypted, Color: edgeEncryptedColor}
	default:
		return EdgeState{Class: EdgePlain, Color: edgePlainColor}
	}
}

func classifyLatency(p95 float64) (LatencyBucket, string) {
	for _, rung := range latencyLadder {
		if p95 < rung.upperMs {
			return rung.bucket, rung.color
		}
	}
	return LatencyCritical, latencyCriticalColor
}
