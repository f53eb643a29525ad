package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ID", cfg.Points.IDColumn)
	assert.Equal(t, "LONGITUDE", cfg.Points.LonColumn)
	assert.Equal(t, "LATITUDE", cfg.Points.LatColumn)
	assert.Equal(t, "HR_UID", cfg.Regions.IDField)
	assert.Equal(t, "ENGNAME", cfg.Regions.NameField)
	assert.Equal(t, "HR_UID", cfg.Regions.RegionColumn)
	assert.Equal(t, "FSA", cfg.Observations.IDColumn)
	assert.Equal(t, "participants", cfg.Observations.ParticipantsColumn)
	assert.Equal(t, "confirmed_pos", cfg.Observations.ConfirmedColumn)
	assert.Equal(t, "DAUID", cfg.Correspondence.FineIDColumn)
	assert.Equal(t, "DAPOP2020", cfg.Correspondence.PopulationColumn)
	assert.Equal(t, "latin1", cfg.Correspondence.Encoding)
	assert.Equal(t, DefaultCRS, cfg.Geometry.CRS)
	assert.True(t, cfg.Geometry.CheckSelfIntersection)
	assert.Equal(t, 0, cfg.Attribution.Workers)
	assert.Equal(t, "abort", cfg.Weighting.OnInvalidUnit)
	assert.Equal(t, int64(5), cfg.Summary.Threshold)
	assert.Equal(t, "Canada", cfg.Summary.NationalID)
	assert.True(t, cfg.Summary.IncludeNational)
	assert.Equal(t, "output", cfg.Output.Dir)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.Empty(t, cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: hrmap.db
log:
  level: debug
  format: console
summary:
  threshold: 10
observations:
  participants_aliases: [n_participants]
output:
  format: xlsx
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, int64(10), cfg.Summary.Threshold)
	assert.Equal(t, "xlsx", cfg.Output.Format)
	assert.Equal(t, []string{"participants", "n_participants"}, cfg.ParticipantsColumns())
	// Defaults still apply for unset values
	assert.Equal(t, "Canada", cfg.Summary.NationalID)
	assert.Equal(t, []string{"confirmed_pos", "confirmed_positive"}, cfg.ConfirmedColumns())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("HRMAP_STORE_DRIVER", "postgres")
	t.Setenv("HRMAP_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("HRMAP_SUMMARY_THRESHOLD", "3")
	t.Setenv("HRMAP_WEIGHTING_ON_INVALID_UNIT", "skip")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(3), cfg.Summary.Threshold)
	assert.Equal(t, "skip", cfg.Weighting.OnInvalidUnit)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("summary: [\n"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Points.LonColumn = "LONGITUDE"
	cfg.Points.LatColumn = "LATITUDE"
	cfg.Regions.IDField = "HR_UID"
	cfg.Regions.RegionColumn = "HR_UID"
	cfg.Observations.IDColumn = "FSA"
	cfg.Correspondence.CoarseIDColumn = "FSA"
	cfg.Correspondence.RegionIDColumn = "HR_UID"
	cfg.Correspondence.PopulationColumn = "DAPOP2020"
	cfg.Summary.Threshold = 5
	cfg.Summary.NationalID = "Canada"
	cfg.Summary.IncludeNational = true
	cfg.Weighting.OnInvalidUnit = "abort"
	cfg.Output.Format = "csv"
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("attribute"))
	assert.NoError(t, cfg.Validate("summarize"))
}

func TestValidateSummarize_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative threshold", func(c *Config) { c.Summary.Threshold = -1 }, "summary.threshold must be >= 0"},
		{"bad policy", func(c *Config) { c.Weighting.OnInvalidUnit = "ignore" }, "weighting.on_invalid_unit"},
		{"bad format", func(c *Config) { c.Output.Format = "parquet" }, "output.format"},
		{"national without id", func(c *Config) { c.Summary.NationalID = "" }, "summary.national_id is required"},
		{"missing population column", func(c *Config) { c.Correspondence.PopulationColumn = "" }, "population columns are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate("summarize")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateSummarize_ZeroThresholdAllowed(t *testing.T) {
	cfg := validDefaults()
	cfg.Summary.Threshold = 0
	assert.NoError(t, cfg.Validate("summarize"))
}

func TestValidateAttribute_Workers(t *testing.T) {
	cfg := validDefaults()

	cfg.Attribution.Workers = -1
	err := cfg.Validate("attribute")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attribution.workers must be between 0 and 256")

	cfg.Attribution.Workers = 8
	assert.NoError(t, cfg.Validate("attribute"))
}

func TestValidateStore(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver is required")

	cfg.Store.Driver = "sqlite"
	err = cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "file:hrmap.db"
	assert.NoError(t, cfg.Validate("store"))

	cfg.Store.Driver = "mysql"
	err = cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be postgres or sqlite")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
