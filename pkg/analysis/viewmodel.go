package analysis

import (
	"time"

	"github.com/meshlens/mesh-analyzer/pkg/cycles"
	"github.com/meshlens/mesh-analyzer/pkg/model"
	"github.com/meshlens/mesh-analyzer/pkg/render"
)

// EdgeView pairs a connection with its render state
type EdgeView struct {
	Source string           `json:"source"`
	Target string           `json:"target"`
	State  render.EdgeState `json:"state"`
}

// ViewModel is the derived output of one analysis run. It is rebuilt from
// scratch on every recompute and never patched incrementally; consumers only
// ever read it. Empty collections mean "nothing found", not failure.
type ViewModel struct {
	SnapshotVersion uint64    `json:"snapshotVersion"`
	GeneratedAt     time.Time `json:"generatedAt"`

	// CriticalPath is the highest-scoring frontend-to-database route, empty
	// when no such route exists
	CriticalPath model.Path `json:"criticalPath"`
	// SPOFs lists flagged single points of failure, sorted
	SPOFs []string `json:"spofs"`
	// Cycles lists circular call dependencies between services
	Cycles []cycles.DependencyCycle `json:"cycles"`

	// Selected is the service the dependency paths below belong to; empty
	// when no selection is active
	Selected string `json:"selected,omitempty"`
	// SelectedPaths holds every enumerated path that starts or ends at the
	// selected service
	SelectedPaths []model.Path `json:"selectedPaths,omitempty"`
	// SelectedTruncated reports that the path budget cut the selected-path
	// enumeration short
	SelectedTruncated bool `json:"selectedTruncated,omitempty"`

	// Nodes and Edges carry the per-service and per-connection render
	// classification
	Nodes map[string]render.NodeState `json:"nodes"`
	Edges []EdgeView                  `json:"edges"`
}
