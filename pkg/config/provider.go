package config

import (
	"errors"
	"fmt"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetStorageConfig() (*StorageData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Input      InputData      `json:"input" yaml:"input"`
	Mask       MaskData       `json:"mask" yaml:"mask"`
	Season     SeasonData     `json:"season" yaml:"season"`
	Covariates CovariateData  `json:"covariates" yaml:"covariates"`
	Processing ProcessingData `json:"processing" yaml:"processing"`
	Cache      CacheData      `json:"cache" yaml:"cache"`
	Storage    StorageData    `json:"storage" yaml:"storage"`
	Server     ServerData     `json:"server" yaml:"server"`
}

// InputData locates the daily precipitation record
type InputData struct {
	PrecipCSV     string   `json:"precip_csv" yaml:"precip_csv"`
	DateFormat    string   `json:"date_format,omitempty" yaml:"date_format,omitempty"`
	Delimiter     string   `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`
	NoDataValue   *float64 `json:"nodata_value,omitempty" yaml:"nodata_value,omitempty"`
	ClampNegative bool     `json:"clamp_negative,omitempty" yaml:"clamp_negative,omitempty"`
	// Grid places the pixels when no mask layers are configured
	Grid *GridData `json:"grid,omitempty" yaml:"grid,omitempty"`
}

// GridData is the geometry of the pixel grid
type GridData struct {
	NCols     int     `json:"ncols" yaml:"ncols"`
	NRows     int     `json:"nrows" yaml:"nrows"`
	XLLCorner float64 `json:"xllcorner" yaml:"xllcorner"`
	YLLCorner float64 `json:"yllcorner" yaml:"yllcorner"`
	CellSize  float64 `json:"cellsize" yaml:"cellsize"`
}

// MaskData configures the study-area mask. With no layer paths every pixel
// is analysed.
type MaskData struct {
	LandCover         string `json:"land_cover,omitempty" yaml:"land_cover,omitempty"`
	Aridity           string `json:"aridity,omitempty" yaml:"aridity,omitempty"`
	RangelandFraction string `json:"rangeland_fraction,omitempty" yaml:"rangeland_fraction,omitempty"`
	ZeroProductivity  string `json:"zero_productivity,omitempty" yaml:"zero_productivity,omitempty"`

	LandCoverClasses            []int   `json:"land_cover_classes" yaml:"land_cover_classes"`
	AridityMin                  float64 `json:"aridity_min" yaml:"aridity_min"`
	AridityMax                  float64 `json:"aridity_max" yaml:"aridity_max"`
	MinRangelandFraction        float64 `json:"min_rangeland_fraction" yaml:"min_rangeland_fraction"`
	MaxZeroProductivityFraction float64 `json:"max_zero_productivity_fraction" yaml:"max_zero_productivity_fraction"`
}

// Enabled reports whether any mask layer is configured
func (m MaskData) Enabled() bool {
	return m.LandCover != "" || m.Aridity != "" || m.RangelandFraction != "" || m.ZeroProductivity != ""
}

// SeasonData holds the season detector thresholds
type SeasonData struct {
	SeasonalityRatioThreshold float64 `json:"seasonality_ratio_threshold" yaml:"seasonality_ratio_threshold"`
	MinFirstHarmonicAmplitude float64 `json:"min_first_harmonic_amplitude" yaml:"min_first_harmonic_amplitude"`
	FlatCurveEpsilon          float64 `json:"flat_curve_epsilon" yaml:"flat_curve_epsilon"`
	MinYears                  int     `json:"min_years" yaml:"min_years"`
	SmoothingHalfWidth        int     `json:"smoothing_half_width" yaml:"smoothing_half_width"`
	ExtremaHalfWidths         []int   `json:"extrema_half_widths" yaml:"extrema_half_widths"`
	HydroYearLeadDays         int     `json:"hydro_year_lead_days" yaml:"hydro_year_lead_days"`
	SeasonMarginDays          int     `json:"season_margin_days" yaml:"season_margin_days"`
	AnomalyToleranceDays      int     `json:"anomaly_tolerance_days" yaml:"anomaly_tolerance_days"`
	ValidYearQuorum           float64 `json:"valid_year_quorum" yaml:"valid_year_quorum"`
}

// CovariateData holds the covariate definitions
type CovariateData struct {
	WetDayThreshold     float64 `json:"wet_day_threshold" yaml:"wet_day_threshold"`
	HeavyRainPercentile float64 `json:"heavy_rain_percentile" yaml:"heavy_rain_percentile"`
}

// ProcessingData controls the worker pool
type ProcessingData struct {
	Workers  int  `json:"workers" yaml:"workers"`
	Progress bool `json:"progress" yaml:"progress"`
}

// CacheData locates the stage cache
type CacheData struct {
	Path     string `json:"path" yaml:"path"`
	Disabled bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// StorageData holds the configuration for the result sinks. More than one
// may be active at once.
type StorageData struct {
	Tabular     *TabularData     `json:"tabular,omitempty" yaml:"tabular,omitempty"`
	Grids       *GridsData       `json:"grids,omitempty" yaml:"grids,omitempty"`
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty" yaml:"timescaledb,omitempty"`
}

type TabularData struct {
	Dir string `json:"dir" yaml:"dir"`
}

type GridsData struct {
	Dir      string `json:"dir" yaml:"dir"`
	Compress bool   `json:"compress,omitempty" yaml:"compress,omitempty"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string" yaml:"connection_string"`
}

// ServerData configures the read-only results API
type ServerData struct {
	Cert       string `json:"cert,omitempty" yaml:"cert,omitempty"`
	Key        string `json:"key,omitempty" yaml:"key,omitempty"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
}

// DefaultConfig returns the configuration used for the African rangelands
// analysis. Providers load on top of it, so a file only needs the settings
// it changes.
func DefaultConfig() *ConfigData {
	return &ConfigData{
		Input: InputData{
			DateFormat: "2006-01-02",
			Delimiter:  ",",
		},
		Mask: MaskData{
			LandCoverClasses:            []int{6, 7, 8, 9, 10},
			AridityMin:                  0.05,
			AridityMax:                  0.65,
			MinRangelandFraction:        0.75,
			MaxZeroProductivityFraction: 0.5,
		},
		Season: SeasonData{
			SeasonalityRatioThreshold: 1.0,
			MinFirstHarmonicAmplitude: 1e-6,
			FlatCurveEpsilon:          1e-9,
			MinYears:                  2,
			SmoothingHalfWidth:        15,
			ExtremaHalfWidths:         []int{45, 30, 15},
			HydroYearLeadDays:         30,
			SeasonMarginDays:          45,
			AnomalyToleranceDays:      60,
			ValidYearQuorum:           0.75,
		},
		Covariates: CovariateData{
			WetDayThreshold:     1.0,
			HeavyRainPercentile: 95,
		},
		Processing: ProcessingData{
			Workers: 4,
		},
		Cache: CacheData{
			Path: "rainseason-cache.db",
		},
		Server: ServerData{
			Port:       8080,
			ListenAddr: "0.0.0.0",
		},
	}
}

// Validate checks the settings that the detector packages do not check
// themselves
func (c *ConfigData) Validate() error {
	var errs []error

	if c.Processing.Workers < 1 {
		errs = append(errs, fmt.Errorf("processing.workers must be at least 1, got %d", c.Processing.Workers))
	}
	if len([]rune(c.Input.Delimiter)) > 1 {
		errs = append(errs, fmt.Errorf("input.delimiter must be a single character, got %q", c.Input.Delimiter))
	}
	if g := c.Input.Grid; g != nil && (g.NCols <= 0 || g.NRows <= 0 || g.CellSize <= 0) {
		errs = append(errs, errors.New("input.grid needs positive ncols, nrows and cellsize"))
	}
	if m := c.Mask; m.Enabled() && (m.LandCover == "" || m.Aridity == "" || m.RangelandFraction == "" || m.ZeroProductivity == "") {
		errs = append(errs, errors.New("mask needs all four layers: land_cover, aridity, rangeland_fraction, zero_productivity"))
	}
	if s := c.Storage; s.Tabular != nil && s.Tabular.Dir == "" {
		errs = append(errs, errors.New("storage.tabular.dir is required"))
	}
	if s := c.Storage; s.Grids != nil && s.Grids.Dir == "" {
		errs = append(errs, errors.New("storage.grids.dir is required"))
	}
	if s := c.Storage; s.TimescaleDB != nil && s.TimescaleDB.ConnectionString == "" {
		errs = append(errs, errors.New("storage.timescaledb.connection_string is required"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	return errors.Join(errs...)
}
