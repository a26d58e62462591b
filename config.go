package featuremill

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RunConfig drives a full synthesis and calculation run from a declarative
// configuration. All process-wide state the configuration used to imply
// (current partition directories, global depth settings) is carried here
// explicitly and passed into each run invocation.
type RunConfig struct {
	// TargetTable is the table whose rows are featurized.
	TargetTable string `yaml:"target_table"`

	// MaxDepth is the relationship traversal depth. Default: 2.
	MaxDepth int `yaml:"max_depth,omitempty"`

	// Workers is the in-process worker count for per-entity calculation.
	// Default: 1. Partitioning across processes is the external
	// orchestrator's concern, not this core's.
	Workers int `yaml:"workers,omitempty"`

	// PrimitiveSet restricts the builtin primitives used for synthesis.
	// Empty lists keep the full builtin set.
	PrimitiveSet PrimitiveSetConfig `yaml:"primitive_set,omitempty"`

	// Export configures optional artifact export after the run.
	Export *RunExportConfig `yaml:"export,omitempty"`
}

// PrimitiveSetConfig selects subsets of the primitive registry by name.
type PrimitiveSetConfig struct {
	// Aggregations lists aggregation primitive names to keep. Nil keeps all.
	Aggregations []string `yaml:"aggregations,omitempty"`

	// Transforms lists transform primitive names to keep. Nil keeps all.
	Transforms []string `yaml:"transforms,omitempty"`
}

// RunExportConfig configures post-run artifact export.
type RunExportConfig struct {
	// CSVPath, if set, writes the matrix as CSV to this path.
	CSVPath string `yaml:"csv_path,omitempty"`

	// SnapshotPath, if set, writes a snappy-compressed snapshot
	// (matrix + definitions) to this path.
	SnapshotPath string `yaml:"snapshot_path,omitempty"`

	// SQLitePath, if set, exports the matrix into a SQLite database file.
	SQLitePath string `yaml:"sqlite_path,omitempty"`

	// S3 configures snapshot upload to S3-compatible storage.
	S3 *S3ExportDSL `yaml:"s3,omitempty"`

	// EncryptionPassword, if set, encrypts written snapshots.
	EncryptionPassword string `yaml:"encryption_password,omitempty"`
}

// S3ExportDSL maps onto S3ExporterConfig.
type S3ExportDSL struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region,omitempty"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	Prefix       string `yaml:"prefix,omitempty"`
	UsePathStyle bool   `yaml:"use_path_style,omitempty"`
	Key          string `yaml:"key"`
}

// DefaultRunConfig returns a run configuration with defaults applied.
func DefaultRunConfig(targetTable string) *RunConfig {
	return &RunConfig{
		TargetTable: targetTable,
		MaxDepth:    2,
		Workers:     1,
	}
}

// LoadRunConfig reads a YAML run configuration from a file.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRunConfig(data)
}

// ParseRunConfig parses a YAML run configuration and applies defaults.
func ParseRunConfig(data []byte) (*RunConfig, error) {
	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing run config: %w", err)
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = 2
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for structural problems.
func (c *RunConfig) Validate() error {
	if c.TargetTable == "" {
		return fmt.Errorf("run config: target_table is required")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("run config: max_depth must not be negative")
	}
	if c.Workers < 0 {
		return fmt.Errorf("run config: workers must not be negative")
	}
	if c.Export != nil && c.Export.S3 != nil {
		if c.Export.S3.Bucket == "" || c.Export.S3.Key == "" {
			return fmt.Errorf("run config: s3 export requires bucket and key")
		}
	}
	return nil
}

// Registry resolves the configured primitive subset against the builtin
// registry.
func (c *RunConfig) Registry() (*PrimitiveRegistry, error) {
	return DefaultPrimitives().Subset(c.PrimitiveSet.Aggregations, c.PrimitiveSet.Transforms)
}
