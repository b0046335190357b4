// Package config loads and validates the crawler's configuration tree:
// a viper-backed, mapstructure-tagged set of one typed struct per
// top-level section.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root of the crawler's configuration tree. Every field
// maps to a recognized option from the configuration model; there is no
// open-ended passthrough.
type Config struct {
	Debug            DebugConfig            `mapstructure:"debug"`
	API              APIConfig              `mapstructure:"api"`
	Optimization     OptimizationConfig     `mapstructure:"optimization"`
	BranchPruning    BranchPruningConfig    `mapstructure:"branchPruning"`
	ArtifactFilters  ArtifactFiltersConfig  `mapstructure:"artifactFilters"`
	PathConvention   PathConventionConfig   `mapstructure:"pathConvention"`
	NamingConvention NamingConventionConfig `mapstructure:"namingConvention"`
	Display          DisplayConfig          `mapstructure:"display"`
	Output           OutputConfig           `mapstructure:"output"`
	Log              LogConfig              `mapstructure:"log"`
	Metrics          MetricsConfig          `mapstructure:"metrics"`
}

// DebugConfig controls debug-mode short-circuits and verbosity.
type DebugConfig struct {
	DebugMode   bool    `mapstructure:"debugMode"`
	SlowMode    bool    `mapstructure:"slowMode"`
	APIWaitTime float64 `mapstructure:"apiWaitTime"`
	LogLevel    string  `mapstructure:"logLevel"`
}

// APIConfig parameterizes the HTTP client and the remote catalog root.
type APIConfig struct {
	BaseURL          string  `mapstructure:"baseUrl"`
	LinkTemplate     string  `mapstructure:"linkTemplate"`
	ConnectTimeout   float64 `mapstructure:"connectTimeout"`
	ReadTimeout      float64 `mapstructure:"readTimeout"`
	MaxRetries       int     `mapstructure:"maxRetries"`
	BackoffFactor    float64 `mapstructure:"backoffFactor"`
	RetryStatusCodes []int   `mapstructure:"retryStatusCodes"`
	RootNodeID       string  `mapstructure:"rootNodeId"`
}

// OptimizationConfig parameterizes the adaptive fetcher and worker pool.
type OptimizationConfig struct {
	ConcurrentRequests       int       `mapstructure:"concurrentRequests"`
	ChildrenLevel            int       `mapstructure:"childrenLevel"`
	RateLimitDelay           float64   `mapstructure:"rateLimitDelay"`
	CacheMaxSize             int       `mapstructure:"cacheMaxSize"`
	AdaptiveTimeoutThreshold float64   `mapstructure:"adaptiveTimeoutThreshold"`
	MinChildrenLevel         int       `mapstructure:"minChildrenLevel"`
	DepthReductionStep       int       `mapstructure:"depthReductionStep"`
	RetryBackoffSeconds      []float64 `mapstructure:"retryBackoffSeconds"`
	FinalTimeoutSeconds      float64   `mapstructure:"finalTimeoutSeconds"`
}

// BranchPruningConfig controls which projects/software lines/folders the
// traversal orchestrator visits.
type BranchPruningConfig struct {
	IncludeProjects      []string `mapstructure:"includeProjects"`
	IncludeSoftwareLines []string `mapstructure:"includeSoftwareLines"`
	SkipProjects         []string `mapstructure:"skipProjects"`
	SkipFolders          []string `mapstructure:"skipFolders"`
	SkipPatterns         []string `mapstructure:"skipPatterns"`
}

// ArtifactFiltersConfig parameterizes the classifier predicate.
type ArtifactFiltersConfig struct {
	ComponentType   []string `mapstructure:"componentType"`
	ComponentName   []string `mapstructure:"componentName"`
	ComponentGrp    string   `mapstructure:"componentGrp"`
	LifeCycleStatus []string `mapstructure:"lifeCycleStatus"`
	SkipDeleted     bool     `mapstructure:"skipDeleted"`
}

// ComponentConvention is one entry of the path-convention map, keyed by
// component name in PathConventionConfig.Conventions.
type ComponentConvention struct {
	ExpectedStructure string              `mapstructure:"expectedStructure"`
	Enums             map[string][]string `mapstructure:"enums"`
	ContainsEnums     map[string][]string `mapstructure:"containsEnums"`
}

// PathConventionConfig holds the per-component folder-structure rules,
// plus the extraction-time lookup tables the Attribute Extractor needs
// to recognize and format category-specific fields (these travel in the
// same section as the labcar/CSP-SWB vocabulary they share).
type PathConventionConfig struct {
	Enabled          bool                           `mapstructure:"enabled"`
	Conventions      map[string]ComponentConvention `mapstructure:"conventions"`
	LabcarPlatforms  []string                       `mapstructure:"labcarPlatforms"`
	CSPSWBSubstrings []string                       `mapstructure:"cspSwbSubstrings"`

	// LCOComponentNames / TestComponentNames select which componentName
	// values (the node's nameTag) get the LCO-model / test category
	// extensions populated.
	LCOComponentNames  []string `mapstructure:"lcoComponentNames"`
	TestComponentNames []string `mapstructure:"testComponentNames"`

	// VemoxSearchPath is the normalized (forward-slash) path suffix an
	// SVN external's path must end with to be considered for VeMoX
	// version parsing.
	VemoxSearchPath string `mapstructure:"vemoxSearchPath"`
}

// NamingConventionConfig holds the ordered name-pattern rules.
type NamingConventionConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Patterns []string `mapstructure:"patterns"`
}

// DisplayConfig controls how derived timestamps are rendered.
type DisplayConfig struct {
	DateFormat string `mapstructure:"dateFormat"`
}

// OutputConfig controls where emitted JSON payloads land.
type OutputConfig struct {
	Directory string            `mapstructure:"directory"`
	Prefixes  map[string]string `mapstructure:"prefixes"`
}

// LogConfig mirrors pkg/logger.Config, decoupled so internal/config has no
// import-cycle dependency on pkg/logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAge     int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig controls the optional Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// Load reads and validates configuration from path (JSON or YAML, sniffed
// by extension). A missing file or an invalid value is fatal, per the
// crawler's error-handling policy: configuration problems surface before
// any fetch is attempted.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("loading config %q: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %q: %w", path, err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.connectTimeout", 10.0)
	v.SetDefault("api.readTimeout", 30.0)
	v.SetDefault("api.maxRetries", 3)
	v.SetDefault("api.backoffFactor", 2.0)
	v.SetDefault("api.retryStatusCodes", []int{502, 503, 504})

	v.SetDefault("optimization.concurrentRequests", 8)
	v.SetDefault("optimization.childrenLevel", 3)
	v.SetDefault("optimization.rateLimitDelay", 0.5)
	v.SetDefault("optimization.cacheMaxSize", 2000)
	v.SetDefault("optimization.adaptiveTimeoutThreshold", 5.0)
	v.SetDefault("optimization.minChildrenLevel", 1)
	v.SetDefault("optimization.depthReductionStep", 1)
	v.SetDefault("optimization.retryBackoffSeconds", []float64{2, 4, 8})
	v.SetDefault("optimization.finalTimeoutSeconds", 60.0)

	v.SetDefault("pathConvention.labcarPlatforms", []string{"VME", "PCIe"})
	v.SetDefault("pathConvention.cspSwbSubstrings", []string{"CSP", "SWB"})
	v.SetDefault("pathConvention.lcoComponentNames", []string{"vVeh_LCO"})
	v.SetDefault("pathConvention.testComponentNames", []string{"test_ECU-TEST"})
	v.SetDefault("pathConvention.vemoxSearchPath", "externals/vemox")

	v.SetDefault("display.dateFormat", "02-01-2006 15:04:05")
	v.SetDefault("output.directory", "./output")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("metrics.path", "/metrics")
}

// Validate enforces the closed option set: every field that drives a
// divide, a timeout or a required lookup must be sane before the
// orchestrator starts.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.API.BaseURL) == "" {
		errs = append(errs, "api.baseUrl is required")
	}
	if strings.TrimSpace(c.API.RootNodeID) == "" {
		errs = append(errs, "api.rootNodeId is required")
	}
	if c.Optimization.ConcurrentRequests <= 0 {
		errs = append(errs, "optimization.concurrentRequests must be > 0")
	}
	if c.Optimization.MinChildrenLevel < 0 {
		errs = append(errs, "optimization.minChildrenLevel must be >= 0")
	}
	if c.Optimization.ChildrenLevel != -1 && c.Optimization.ChildrenLevel < c.Optimization.MinChildrenLevel {
		errs = append(errs, "optimization.childrenLevel must be -1 or >= minChildrenLevel")
	}
	if c.Optimization.DepthReductionStep <= 0 {
		errs = append(errs, "optimization.depthReductionStep must be > 0")
	}
	if c.Optimization.CacheMaxSize < 0 {
		errs = append(errs, "optimization.cacheMaxSize must be >= 0")
	}
	if c.PathConvention.Enabled && len(c.PathConvention.Conventions) == 0 {
		errs = append(errs, "pathConvention.enabled requires at least one convention")
	}
	if c.NamingConvention.Enabled && len(c.NamingConvention.Patterns) == 0 {
		errs = append(errs, "namingConvention.enabled requires at least one pattern")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}
