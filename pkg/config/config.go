package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/meshlens/mesh-analyzer/pkg/critical"
	"github.com/meshlens/mesh-analyzer/pkg/render"
	"github.com/meshlens/mesh-analyzer/pkg/spof"
)

// Config holds all configuration for the analyzer
type Config struct {
	Feed       string `koanf:"feed"`  // path to the topology JSON document
	Watch      bool   `koanf:"watch"` // keep watching the feed file for changes
	WebMode    bool   `koanf:"web"`
	Port       int    `koanf:"port"`
	Verbosity  string `koanf:"verbosity"`
	VerboseCnt int    `koanf:"verbose"`

	Debounce DebounceConfig   `koanf:"debounce"`
	Paths    PathsConfig      `koanf:"paths"`
	SPOF     spof.Thresholds  `koanf:"spof"`
	Weights  critical.Weights `koanf:"weights"`
	Render   render.Config    `koanf:"render"`
}

// DebounceConfig controls recompute coalescing
type DebounceConfig struct {
	QuietPeriod time.Duration `koanf:"quiet-period"`
	MaxWait     time.Duration `koanf:"max-wait"`
}

// PathsConfig bounds path enumeration
type PathsConfig struct {
	MaxPaths int `koanf:"max-paths"`
	MaxDepth int `koanf:"max-depth"` // 0 = node count
}

// Load loads configuration from defaults, config file, environment variables,
// and flags. Priority: Flags > Env > Config File > Defaults.
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	spofDefaults := spof.DefaultThresholds()
	renderDefaults := render.DefaultConfig()
	weightDefaults := critical.DefaultWeights()
	defaults := map[string]interface{}{
		"feed":                   "topology.json",
		"watch":                  true,
		"web":                    false,
		"port":                   8080,
		"verbosity":              "",
		"verbose":                0,
		"debounce.quiet-period":  "250ms",
		"debounce.max-wait":      "2s",
		"paths.max-paths":        50,
		"paths.max-depth":        0,
		"spof.database-inbound":  spofDefaults.DatabaseInbound,
		"spof.gateway-degree":    spofDefaults.GatewayDegree,
		"spof.high-request-rate": spofDefaults.HighRequestRate,
		"spof.high-rate-inbound": spofDefaults.HighRateInbound,
		"spof.sole-role-degree":  spofDefaults.SoleRoleDegree,
		"weights.gateway":        weightDefaults.Gateway,
		"weights.default":        weightDefaults.Default,
		"render.mode":            string(renderDefaults.Mode),
		"render.high-error-rate": renderDefaults.HighErrorRate,
		"render.size-base":       renderDefaults.SizeBase,
		"render.size-scale":      renderDefaults.SizeScale,
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional) - mesh-analyzer.toml
	// We ignore errors here as the file might not exist
	_ = k.Load(file.Provider("mesh-analyzer.toml"), toml.Parser())

	// 3. Environment Variables
	// Prefix: MESH_ANALYZER_ (e.g., MESH_ANALYZER_PORT=9090)
	if err := k.Load(env.Provider("MESH_ANALYZER_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, "MESH_ANALYZER_")), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// Unmarshal into struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
