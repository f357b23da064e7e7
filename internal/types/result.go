package types

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Status records how far a pixel got through the pipeline
type Status string

const (
	StatusOK                Status = "ok"
	StatusFlatCurve         Status = "flat_curve"
	StatusAmbiguousExtrema  Status = "ambiguous_extrema"
	StatusUnpairedExtrema   Status = "unpaired_extrema"
	StatusInsufficientData  Status = "insufficient_data"
	StatusInvalidSeries     Status = "invalid_series"
	StatusOutsideStudyArea  Status = "outside_study_area"
	StatusCovariatesFailure Status = "covariates_failure"
)

// Float is a float64 that encodes NaN and infinities as JSON null, so
// missing statistics survive the REST API
type Float float64

// IsMissing reports whether f holds no value
func (f Float) IsMissing() bool {
	return math.IsNaN(float64(f)) || math.IsInf(float64(f), 0)
}

func (f Float) MarshalJSON() ([]byte, error) {
	if f.IsMissing() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(float64(f), 'g', -1, 64)), nil
}

func (f *Float) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = Float(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Floats converts a slice of float64
func Floats(xs []float64) []Float {
	out := make([]Float, len(xs))
	for i, x := range xs {
		out[i] = Float(x)
	}
	return out
}

// SeasonDates is a long-term season in day-of-year units
type SeasonDates struct {
	Onset     int `json:"onset" msgpack:"onset"`
	Cessation int `json:"cessation" msgpack:"cessation"`
	Length    int `json:"length" msgpack:"length"`
}

// AnnualSeason is one season of one hydrological year, in hydro days
type AnnualSeason struct {
	Onset            int  `json:"onset" msgpack:"onset"`
	Cessation        int  `json:"cessation" msgpack:"cessation"`
	OnsetAnomaly     int  `json:"onset_anomaly" msgpack:"onset_anomaly"`
	CessationAnomaly int  `json:"cessation_anomaly" msgpack:"cessation_anomaly"`
	Detected         bool `json:"detected" msgpack:"detected"`
	Valid            bool `json:"valid" msgpack:"valid"`
}

// AnnualRow is a pixel's record for one hydrological year
type AnnualRow struct {
	Year    int            `json:"year" msgpack:"year"`
	Seasons []AnnualSeason `json:"seasons" msgpack:"seasons"`
	Length  int            `json:"length" msgpack:"length"`
	Valid   bool           `json:"valid" msgpack:"valid"`
}

// Covariates are the precipitation-pattern covariates of a pixel, either
// multi-annual means or the values of one calendar year
type Covariates struct {
	Year              int   `json:"year,omitempty" msgpack:"year,omitempty"`
	MAP               Float `json:"map" msgpack:"map"`
	WetDays           Float `json:"wet_days" msgpack:"wet_days"`
	SDII              Float `json:"sdii" msgpack:"sdii"`
	PCI               Float `json:"pci" msgpack:"pci"`
	UGi               Float `json:"ugi" msgpack:"ugi"`
	HeavyRainFraction Float `json:"heavy_rain_fraction" msgpack:"heavy_rain_fraction"`
}

// PixelResult is everything the pipeline produces for one pixel. It is what
// the storage engines receive and what the REST API serves.
type PixelResult struct {
	RunID       string    `json:"run_id" msgpack:"run_id"`
	Label       string    `json:"pixel" msgpack:"pixel"`
	Row         int       `json:"row" msgpack:"row"`
	Col         int       `json:"col" msgpack:"col"`
	Lon         float64   `json:"lon" msgpack:"lon"`
	Lat         float64   `json:"lat" msgpack:"lat"`
	CellAreaKm2 Float     `json:"cell_area_km2" msgpack:"cell_area_km2"`
	Status      Status    `json:"status" msgpack:"status"`
	Error       string    `json:"error,omitempty" msgpack:"error,omitempty"`
	InStudyArea bool      `json:"in_study_area" msgpack:"in_study_area"`
	ComputedAt  time.Time `json:"computed_at" msgpack:"computed_at"`

	Regime           int           `json:"regime" msgpack:"regime"`
	SeasonalityRatio Float         `json:"seasonality_ratio" msgpack:"seasonality_ratio"`
	Amplitude1       Float         `json:"amplitude1" msgpack:"amplitude1"`
	Amplitude2       Float         `json:"amplitude2" msgpack:"amplitude2"`
	Seasons          []SeasonDates `json:"seasons" msgpack:"seasons"`
	HYearStart       int           `json:"hyear_start" msgpack:"hyear_start"`

	LongTermLength int     `json:"long_term_length" msgpack:"long_term_length"`
	MeanLength     Float   `json:"mean_length" msgpack:"mean_length"`
	LengthSD       Float   `json:"length_sd" msgpack:"length_sd"`
	OnsetAnomalySD []Float `json:"onset_anomaly_sd" msgpack:"onset_anomaly_sd"`
	ValidYears     int     `json:"valid_years" msgpack:"valid_years"`
	TotalYears     int     `json:"total_years" msgpack:"total_years"`
	Masked         bool    `json:"masked" msgpack:"masked"`

	Covariates     *Covariates  `json:"covariates,omitempty" msgpack:"covariates,omitempty"`
	CovariateYears []Covariates `json:"covariate_years,omitempty" msgpack:"covariate_years,omitempty"`
	Annual         []AnnualRow  `json:"annual,omitempty" msgpack:"annual,omitempty"`
}

// Usable reports whether the pixel belongs in the model tables: inside the
// study area, detected, and not masked by the anomaly filter
func (r PixelResult) Usable() bool {
	return r.InStudyArea && r.Status == StatusOK && !r.Masked
}

// OnsetAnomalySDOf returns the onset anomaly SD of season k (0-based), or a
// missing value when the pixel has no such season
func (r PixelResult) OnsetAnomalySDOf(k int) Float {
	if k < 0 || k >= len(r.OnsetAnomalySD) {
		return Float(math.NaN())
	}
	return r.OnsetAnomalySD[k]
}
