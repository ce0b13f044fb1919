package output

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/meshlens/mesh-analyzer/pkg/analysis"
	"github.com/meshlens/mesh-analyzer/pkg/model"
)

// PrintMeshReport prints a colorized one-shot analysis report to the console
func PrintMeshReport(source string, snap *model.Snapshot, vm *analysis.ViewModel) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	bold.Println("Mesh Topology Analyzer - Report")
	bold.Println("================================")
	fmt.Printf("Source: %s\n", source)
	fmt.Printf("Services: %d, Connections: %d (version %d)\n",
		snap.NumServices(), snap.NumConnections(), snap.Version())
	fmt.Println()

	bold.Println("CRITICAL PATH:")
	if len(vm.CriticalPath) == 0 {
		fmt.Println("  (no frontend-to-database route)")
	} else {
		cyan.Printf("  %s\n", strings.Join(vm.CriticalPath, " -> "))
	}
	fmt.Println()

	bold.Println("SINGLE POINTS OF FAILURE:")
	if len(vm.SPOFs) == 0 {
		green.Println("  none flagged")
	} else {
		for _, id := range vm.SPOFs {
			svc, _ := snap.Service(id)
			red.Printf("  %s", id)
			fmt.Printf(" (%s, %.0f req/s)\n", svc.Role, svc.Metrics.RequestRate)
		}
	}
	fmt.Println()

	if len(vm.Cycles) > 0 {
		bold.Println("DEPENDENCY CYCLES:")
		for _, cycle := range vm.Cycles {
			yellow.Printf("  %s\n", strings.Join(cycle.Services, " <-> "))
		}
		fmt.Println()
	}

	summary := green
	if len(vm.SPOFs) > 0 || len(vm.Cycles) > 0 {
		summary = yellow
	}
	summary.Printf("Summary: %d SPOF(s), %d cycle(s)\n", len(vm.SPOFs), len(vm.Cycles))
}
