package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultCRS is NAD83 geographic coordinates (EPSG:4269), the CRS points are published in.
const DefaultCRS = "+proj=longlat +ellps=GRS80 +datum=NAD83 +no_defs"

// Config holds the full application configuration.
type Config struct {
	Points         PointsConfig         `yaml:"points" mapstructure:"points"`
	Regions        RegionsConfig        `yaml:"regions" mapstructure:"regions"`
	Observations   ObservationsConfig   `yaml:"observations" mapstructure:"observations"`
	Correspondence CorrespondenceConfig `yaml:"correspondence" mapstructure:"correspondence"`
	Geometry       GeometryConfig       `yaml:"geometry" mapstructure:"geometry"`
	Attribution    AttributionConfig    `yaml:"attribution" mapstructure:"attribution"`
	Weighting      WeightingConfig      `yaml:"weighting" mapstructure:"weighting"`
	Summary        SummaryConfig        `yaml:"summary" mapstructure:"summary"`
	Output         OutputConfig         `yaml:"output" mapstructure:"output"`
	Store          StoreConfig          `yaml:"store" mapstructure:"store"`
	Log            LogConfig            `yaml:"log" mapstructure:"log"`
}

// PointsConfig names the point table columns.
type PointsConfig struct {
	IDColumn  string `yaml:"id_column" mapstructure:"id_column"`
	LonColumn string `yaml:"lon_column" mapstructure:"lon_column"`
	LatColumn string `yaml:"lat_column" mapstructure:"lat_column"`
	Encoding  string `yaml:"encoding" mapstructure:"encoding"`
	// CRS of the point coordinates. Empty means geometry.crs.
	CRS string `yaml:"crs" mapstructure:"crs"`
}

// RegionsConfig configures the region polygon source.
type RegionsConfig struct {
	IDField   string `yaml:"id_field" mapstructure:"id_field"`
	NameField string `yaml:"name_field" mapstructure:"name_field"`
	// SourceCRS overrides the .prj sidecar. GeoJSON defaults to geometry.crs.
	SourceCRS    string `yaml:"source_crs" mapstructure:"source_crs"`
	RegionColumn string `yaml:"region_column" mapstructure:"region_column"`
}

// ObservationsConfig names the coarse-unit observation columns.
type ObservationsConfig struct {
	IDColumn            string   `yaml:"id_column" mapstructure:"id_column"`
	ParticipantsColumn  string   `yaml:"participants_column" mapstructure:"participants_column"`
	ConfirmedColumn     string   `yaml:"confirmed_column" mapstructure:"confirmed_column"`
	ParticipantsAliases []string `yaml:"participants_aliases" mapstructure:"participants_aliases"`
	ConfirmedAliases    []string `yaml:"confirmed_aliases" mapstructure:"confirmed_aliases"`
	Encoding            string   `yaml:"encoding" mapstructure:"encoding"`
}

// CorrespondenceConfig names the fine-unit correspondence columns.
type CorrespondenceConfig struct {
	FineIDColumn     string `yaml:"fine_id_column" mapstructure:"fine_id_column"`
	CoarseIDColumn   string `yaml:"coarse_id_column" mapstructure:"coarse_id_column"`
	RegionIDColumn   string `yaml:"region_id_column" mapstructure:"region_id_column"`
	PopulationColumn string `yaml:"population_column" mapstructure:"population_column"`
	Encoding         string `yaml:"encoding" mapstructure:"encoding"`
}

// GeometryConfig configures the region index.
type GeometryConfig struct {
	CRS                   string `yaml:"crs" mapstructure:"crs"`
	CheckSelfIntersection bool   `yaml:"check_self_intersection" mapstructure:"check_self_intersection"`
}

// AttributionConfig configures the spatial attributor.
type AttributionConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// WeightingConfig configures disaggregation.
type WeightingConfig struct {
	OnInvalidUnit string `yaml:"on_invalid_unit" mapstructure:"on_invalid_unit"`
}

// SummaryConfig configures reaggregation and suppression.
type SummaryConfig struct {
	Threshold       int64  `yaml:"threshold" mapstructure:"threshold"`
	NationalID      string `yaml:"national_id" mapstructure:"national_id"`
	IncludeNational bool   `yaml:"include_national" mapstructure:"include_national"`
}

// OutputConfig configures where and how results are written.
type OutputConfig struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the optional result store. An empty driver disables it.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HRMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("points.id_column", "ID")
	v.SetDefault("points.lon_column", "LONGITUDE")
	v.SetDefault("points.lat_column", "LATITUDE")
	v.SetDefault("points.encoding", "utf-8")
	v.SetDefault("points.crs", "")
	v.SetDefault("regions.id_field", "HR_UID")
	v.SetDefault("regions.name_field", "ENGNAME")
	v.SetDefault("regions.source_crs", "")
	v.SetDefault("regions.region_column", "HR_UID")
	v.SetDefault("observations.id_column", "FSA")
	v.SetDefault("observations.participants_column", "participants")
	v.SetDefault("observations.confirmed_column", "confirmed_pos")
	v.SetDefault("observations.participants_aliases", []string{"total_participants"})
	v.SetDefault("observations.confirmed_aliases", []string{"confirmed_positive"})
	v.SetDefault("observations.encoding", "utf-8")
	v.SetDefault("correspondence.fine_id_column", "DAUID")
	v.SetDefault("correspondence.coarse_id_column", "FSA")
	v.SetDefault("correspondence.region_id_column", "HR_UID")
	v.SetDefault("correspondence.population_column", "DAPOP2020")
	v.SetDefault("correspondence.encoding", "latin1")
	v.SetDefault("geometry.crs", DefaultCRS)
	v.SetDefault("geometry.check_self_intersection", true)
	v.SetDefault("attribution.workers", 0)
	v.SetDefault("weighting.on_invalid_unit", "abort")
	v.SetDefault("summary.threshold", 5)
	v.SetDefault("summary.national_id", "Canada")
	v.SetDefault("summary.include_national", true)
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.format", "csv")
	v.SetDefault("store.driver", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// ParticipantsColumns returns the configured participant column followed by its aliases.
func (c *Config) ParticipantsColumns() []string {
	return append([]string{c.Observations.ParticipantsColumn}, c.Observations.ParticipantsAliases...)
}

// ConfirmedColumns returns the configured confirmed-positive column followed by its aliases.
func (c *Config) ConfirmedColumns() []string {
	return append([]string{c.Observations.ConfirmedColumn}, c.Observations.ConfirmedAliases...)
}

// Validate checks the settings a command depends on. Mode is one of
// "attribute", "summarize" or "store".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "attribute":
		if c.Points.LonColumn == "" || c.Points.LatColumn == "" {
			errs = append(errs, "points.lon_column and points.lat_column are required")
		}
		if c.Regions.IDField == "" {
			errs = append(errs, "regions.id_field is required")
		}
		if c.Regions.RegionColumn == "" {
			errs = append(errs, "regions.region_column is required")
		}
		if c.Attribution.Workers < 0 || c.Attribution.Workers > 256 {
			errs = append(errs, fmt.Sprintf("attribution.workers must be between 0 and 256, got %d", c.Attribution.Workers))
		}
	case "summarize":
		if c.Observations.IDColumn == "" {
			errs = append(errs, "observations.id_column is required")
		}
		if c.Correspondence.CoarseIDColumn == "" || c.Correspondence.RegionIDColumn == "" || c.Correspondence.PopulationColumn == "" {
			errs = append(errs, "correspondence coarse, region and population columns are required")
		}
		if c.Summary.Threshold < 0 {
			errs = append(errs, fmt.Sprintf("summary.threshold must be >= 0, got %d", c.Summary.Threshold))
		}
		if c.Summary.IncludeNational && c.Summary.NationalID == "" {
			errs = append(errs, "summary.national_id is required when summary.include_national is set")
		}
		switch strings.ToLower(c.Weighting.OnInvalidUnit) {
		case "", "abort", "skip":
		default:
			errs = append(errs, fmt.Sprintf("weighting.on_invalid_unit must be abort or skip, got %q", c.Weighting.OnInvalidUnit))
		}
		switch strings.ToLower(c.Output.Format) {
		case "", "csv", "xlsx":
		default:
			errs = append(errs, fmt.Sprintf("output.format must be csv or xlsx, got %q", c.Output.Format))
		}
	case "store":
		if c.Store.Driver == "" {
			errs = append(errs, "store.driver is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "":
	case "postgres", "sqlite":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be postgres or sqlite, got %q", c.Store.Driver))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed for %s: %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
