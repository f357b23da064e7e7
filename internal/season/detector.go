package season

import (
	"fmt"

	"github.com/chrissnell/rainseason/internal/precip"
)

// LongTerm is the climatological season record of a pixel
type LongTerm struct {
	Harmonics Harmonics `json:"harmonics" msgpack:"harmonics"`
	Regime    Regime    `json:"regime" msgpack:"regime"`
	Seasons   []Season  `json:"seasons" msgpack:"seasons"`
	// HYearStart is the day of year on which the pixel's hydrological year begins
	HYearStart int `json:"hyear_start" msgpack:"hyear_start"`
	// ExtremaHalfWidth is the window that resolved a bimodal pixel, 0 otherwise
	ExtremaHalfWidth int `json:"extrema_half_width" msgpack:"extrema_half_width"`
}

// Result is the complete detection for one pixel
type Result struct {
	LongTerm LongTerm       `json:"long_term" msgpack:"long_term"`
	Annual   []AnnualRecord `json:"annual" msgpack:"annual"`
	Summary  Summary        `json:"summary" msgpack:"summary"`
}

// Detector runs season detection with a fixed set of parameters. It holds no
// per-pixel state and may be shared between goroutines.
type Detector struct {
	params Params
}

// NewDetector validates p and returns a Detector
func NewDetector(p Params) (*Detector, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid season parameters: %w", err)
	}
	return &Detector{params: p}, nil
}

// Params returns the detector's parameters
func (d *Detector) Params() Params {
	return d.params
}

// LongTerm classifies the pixel and extracts its climatological seasons. On
// extraction errors the returned record still carries the harmonic fit and
// regime.
func (d *Detector) LongTerm(s precip.Series) (LongTerm, error) {
	var lt LongTerm

	if err := s.Validate(); err != nil {
		return lt, err
	}

	h, err := FitHarmonics(s, d.params)
	if err != nil {
		return lt, err
	}
	lt.Harmonics = h
	lt.Regime = Classify(h, d.params)

	clim, err := Climatology(s)
	if err != nil {
		return lt, err
	}
	curve := CumulativeAnomaly(clim)

	switch lt.Regime {
	case RegimeBimodal:
		dr, err := ExtractDouble(curve, d.params)
		if err != nil {
			return lt, err
		}
		lt.Seasons = dr.Seasons[:]
		lt.ExtremaHalfWidth = dr.HalfWidth
	default:
		single, err := ExtractSingle(curve, d.params)
		if err != nil {
			return lt, err
		}
		lt.Seasons = []Season{single}
	}

	lt.HYearStart = HydroYearStart(lt.Seasons[0].Onset, d.params.HydroYearLeadDays)
	return lt, nil
}

// Annual re-detects the long-term seasons year by year, filters implausible
// years and summarizes the rest
func (d *Detector) Annual(s precip.Series, lt LongTerm) ([]AnnualRecord, Summary) {
	records := DetectAnnual(s, lt, d.params)
	Evaluate(lt, records, d.params)
	masked := ApplyQuorum(records, d.params.ValidYearQuorum)
	return records, Summarize(lt, records, masked)
}

// Detect runs the long-term and annual stages for one pixel
func (d *Detector) Detect(s precip.Series) (*Result, error) {
	lt, err := d.LongTerm(s)
	if err != nil {
		return &Result{LongTerm: lt}, err
	}

	records, summary := d.Annual(s, lt)
	return &Result{LongTerm: lt, Annual: records, Summary: summary}, nil
}
