package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// exampleDocument is a plain, untagged-for-viper mirror of Config used
// only to marshal a starter file; mapstructure tags control decoding,
// this struct controls the YAML keys a new deployment sees.
type exampleDocument struct {
	Debug            DebugConfig            `yaml:"debug"`
	API              APIConfig              `yaml:"api"`
	Optimization     OptimizationConfig     `yaml:"optimization"`
	BranchPruning    BranchPruningConfig    `yaml:"branchPruning"`
	ArtifactFilters  ArtifactFiltersConfig  `yaml:"artifactFilters"`
	PathConvention   PathConventionConfig   `yaml:"pathConvention"`
	NamingConvention NamingConventionConfig `yaml:"namingConvention"`
	Display          DisplayConfig          `yaml:"display"`
	Output           OutputConfig           `yaml:"output"`
	Log              LogConfig              `yaml:"log"`
	Metrics          MetricsConfig          `yaml:"metrics"`
}

// Example returns a starter configuration populated with the same
// defaults Load applies, for operators bootstrapping a new deployment.
// The crawler accepts both JSON and YAML configuration files (sniffed
// by extension); this helper only ever produces YAML.
func Example() *Config {
	return &Config{
		API: APIConfig{
			ConnectTimeout:   10.0,
			ReadTimeout:      30.0,
			MaxRetries:       3,
			BackoffFactor:    2.0,
			RetryStatusCodes: []int{502, 503, 504},
			RootNodeID:       "root-node-id",
		},
		Optimization: OptimizationConfig{
			ConcurrentRequests:       8,
			ChildrenLevel:            3,
			RateLimitDelay:           0.5,
			CacheMaxSize:             2000,
			AdaptiveTimeoutThreshold: 5.0,
			MinChildrenLevel:         1,
			DepthReductionStep:       1,
			RetryBackoffSeconds:      []float64{2, 4, 8},
			FinalTimeoutSeconds:      60.0,
		},
		PathConvention: PathConventionConfig{
			LabcarPlatforms:    []string{"VME", "PCIe"},
			CSPSWBSubstrings:   []string{"CSP", "SWB"},
			LCOComponentNames:  []string{"vVeh_LCO"},
			TestComponentNames: []string{"test_ECU-TEST"},
			VemoxSearchPath:    "externals/vemox",
		},
		Display: DisplayConfig{DateFormat: "02-01-2006 15:04:05"},
		Output:  OutputConfig{Directory: "./output"},
		Log:     LogConfig{Level: "info", Format: "json", Output: "stdout"},
		Metrics: MetricsConfig{Enabled: false, Addr: ":9090", Path: "/metrics"},
	}
}

// WriteExample marshals Example() as YAML to path.
func WriteExample(path string) error {
	cfg := Example()
	doc := exampleDocument{
		Debug:            cfg.Debug,
		API:              cfg.API,
		Optimization:     cfg.Optimization,
		BranchPruning:    cfg.BranchPruning,
		ArtifactFilters:  cfg.ArtifactFilters,
		PathConvention:   cfg.PathConvention,
		NamingConvention: cfg.NamingConvention,
		Display:          cfg.Display,
		Output:           cfg.Output,
		Log:              cfg.Log,
		Metrics:          cfg.Metrics,
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config: marshal example: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
