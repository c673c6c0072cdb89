package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/veridata-io/recon-engine/pkg/models"
)

// Reconciliation scopes. Scope limits which checks a run performs.
const (
	ScopeRows   = "rows"   // row presence only
	ScopeUnion  = "union"  // union key coverage only
	ScopeSchema = "schema" // schema snapshots and drift only
	ScopeFull   = "full"   // everything, including profiles
)

// Config holds all configuration for a reconciliation run.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support
// both. Datasource passwords must only come from environment variables
// (DS_<NAME>_PASSWORD).
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Named datasource connections. The map key is the datasource name
	// referenced by dataset handles ("name:schema.table").
	Datasources map[string]DatasourceEntry `yaml:"datasources"`

	Reconcile ReconcileConfig `yaml:"reconcile"`
	Profile   ProfileConfig   `yaml:"profile"`
	Output    OutputConfig    `yaml:"output"`
}

// DatasourceEntry describes one named connection.
type DatasourceEntry struct {
	// Type selects the adapter ("postgres", "mssql").
	Type string `yaml:"type"`
	// Settings is passed verbatim to the adapter's FromMap. The password
	// key is injected from DS_<NAME>_PASSWORD at load time and must not
	// appear in YAML.
	Settings map[string]any `yaml:"settings"`
}

// ReconcileConfig selects the datasets to compare and how.
type ReconcileConfig struct {
	// Target is the reference dataset, "datasource:schema.table".
	Target string `yaml:"target" env:"RECON_TARGET"`
	// Sources are the datasets compared against the target.
	Sources []string `yaml:"sources"`
	// Keys optionally names the reconciliation key columns. When empty,
	// keys are inferred from the schema snapshots.
	Keys []string `yaml:"keys"`
	// Scope is one of rows, union, schema, full.
	Scope string `yaml:"scope" env:"RECON_SCOPE" env-default:"full"`
	// SampleLimit caps missing-row and missing-key samples per comparison.
	SampleLimit int `yaml:"sample_limit" env:"RECON_SAMPLE_LIMIT" env-default:"5"`
	// CompositeFallback keeps the full common-column list as a composite
	// key when no column matches a key pattern, instead of the first
	// common column.
	CompositeFallback bool `yaml:"composite_fallback" env:"RECON_COMPOSITE_FALLBACK" env-default:"false"`
}

// ProfileConfig selects the aggregate profiling work of a full-scope run.
type ProfileConfig struct {
	// Columns to profile on each dataset. Empty means every common column.
	Columns []string `yaml:"columns"`
	// GroupBy requests grouped aggregates in addition to column profiles.
	GroupBy []GroupBySpec `yaml:"group_by"`
}

// GroupBySpec is one grouped-aggregate request.
type GroupBySpec struct {
	GroupColumn   string   `yaml:"group_column"`
	MeasureColumn string   `yaml:"measure_column"`
	Stats         []string `yaml:"stats"`
	// PrimaryStat orders the output groups. Defaults to the first stat.
	PrimaryStat string `yaml:"primary_stat"`
}

// OutputConfig names the run artifacts.
type OutputConfig struct {
	ReportPath     string `yaml:"report_path" env:"RECON_REPORT_PATH" env-default:"recon_report.yaml"`
	OverlapCSVPath string `yaml:"overlap_csv_path" env:"RECON_OVERLAP_CSV_PATH" env-default:"column_overlap.csv"`
}

// Load reads configuration from the given YAML file with environment
// variable overrides. The version parameter is injected at build time and
// set on the returned Config.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.injectSecrets()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// injectSecrets copies DS_<NAME>_PASSWORD environment variables into the
// matching datasource settings. YAML-provided passwords are overridden.
func (c *Config) injectSecrets() {
	for name, entry := range c.Datasources {
		envKey := "DS_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_PASSWORD"
		if password, ok := os.LookupEnv(envKey); ok {
			if entry.Settings == nil {
				entry.Settings = make(map[string]any)
			}
			entry.Settings["password"] = password
			c.Datasources[name] = entry
		}
	}
}

// Validate checks cross-field consistency after loading.
func (c *Config) Validate() error {
	if len(c.Datasources) == 0 {
		return fmt.Errorf("at least one datasource must be configured")
	}
	for name, entry := range c.Datasources {
		if entry.Type == "" {
			return fmt.Errorf("datasource %q has no type", name)
		}
	}

	switch c.Reconcile.Scope {
	case ScopeRows, ScopeUnion, ScopeSchema, ScopeFull:
	default:
		return fmt.Errorf("unknown scope %q", c.Reconcile.Scope)
	}

	if c.Reconcile.SampleLimit < 0 {
		return fmt.Errorf("sample_limit must not be negative")
	}

	if c.Reconcile.Target == "" {
		return fmt.Errorf("reconcile.target is required")
	}
	if _, err := c.TargetDataset(); err != nil {
		return err
	}
	if len(c.Reconcile.Sources) == 0 {
		return fmt.Errorf("at least one source dataset is required")
	}
	if _, err := c.SourceDatasets(); err != nil {
		return err
	}

	for i, spec := range c.Profile.GroupBy {
		if spec.GroupColumn == "" || spec.MeasureColumn == "" {
			return fmt.Errorf("group_by[%d]: group_column and measure_column are required", i)
		}
		if len(spec.Stats) == 0 {
			return fmt.Errorf("group_by[%d]: at least one stat is required", i)
		}
		if spec.PrimaryStat != "" && !contains(spec.Stats, spec.PrimaryStat) {
			return fmt.Errorf("group_by[%d]: primary_stat %q is not in stats", i, spec.PrimaryStat)
		}
	}

	return nil
}

// TargetDataset parses the target handle and checks its datasource exists.
func (c *Config) TargetDataset() (models.DatasetHandle, error) {
	return c.parseDataset(c.Reconcile.Target)
}

// SourceDatasets parses every source handle and checks their datasources
// exist.
func (c *Config) SourceDatasets() ([]models.DatasetHandle, error) {
	handles := make([]models.DatasetHandle, 0, len(c.Reconcile.Sources))
	for _, ref := range c.Reconcile.Sources {
		handle, err := c.parseDataset(ref)
		if err != nil {
			return nil, err
		}
		handles = append(handles, handle)
	}
	return handles, nil
}

func (c *Config) parseDataset(ref string) (models.DatasetHandle, error) {
	handle, err := models.ParseDatasetHandle(ref)
	if err != nil {
		return models.DatasetHandle{}, err
	}
	if _, ok := c.Datasources[handle.Datasource]; !ok {
		return models.DatasetHandle{}, fmt.Errorf("dataset %q references unknown datasource %q", ref, handle.Datasource)
	}
	return handle, nil
}

// PrimaryStatOf returns the ordering stat for a group-by spec.
func (s GroupBySpec) PrimaryStatOf() string {
	if s.PrimaryStat != "" {
		return s.PrimaryStat
	}
	return s.Stats[0]
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
