// Package season detects rainy-season onset and cessation from a pixel's
// daily precipitation record.
//
// The long-term detection classifies the pixel as having one or two rainy
// seasons, builds the cumulative anomaly of its mean annual cycle and reads the
// season dates off the curve's turning points. The annual detection repeats the
// procedure inside each hydrological year and compares the result with the
// long-term dates.
package season

import (
	"errors"
	"fmt"
)

// DaysPerCycle is the length of the climatological annual cycle. Day 366 of
// leap years is left out of the mean cycle.
const DaysPerCycle = 365

var (
	ErrInsufficientData = errors.New("series is too short for season detection")
	ErrFlatCurve        = errors.New("cumulative anomaly curve is flat")
	ErrAmbiguousExtrema = errors.New("no extrema window yields two onsets and two cessations")
	ErrUnpairedExtrema  = errors.New("onsets and cessations do not alternate")
)

// Params holds the thresholds of the detector. Each one is a domain judgment
// call rather than an algorithmic constant, so they are all tunable.
type Params struct {
	// SeasonalityRatioThreshold splits unimodal from bimodal pixels. A ratio of
	// the second to first harmonic amplitude at or above it means two seasons.
	SeasonalityRatioThreshold float64

	// MinFirstHarmonicAmplitude is the first harmonic amplitude (mm/day) below
	// which the ratio is undefined. Such pixels are treated as unimodal.
	MinFirstHarmonicAmplitude float64

	// FlatCurveEpsilon is the minimum range of a cumulative anomaly curve (mm)
	// for its extrema to mean anything.
	FlatCurveEpsilon float64

	// MinYears is the minimum number of complete years in a series
	MinYears int

	// SmoothingHalfWidth is the half-width in days of the cyclic moving average
	// applied before searching for two seasons (e.g., 15 means ±15 days)
	SmoothingHalfWidth int

	// ExtremaHalfWidths are the local-extremum window half-widths in days, tried
	// widest first until one yields exactly two minima and two maxima
	ExtremaHalfWidths []int

	// HydroYearLeadDays is how many days before the long-term onset the
	// hydrological year starts
	HydroYearLeadDays int

	// SeasonMarginDays pads each long-term season when re-detecting a bimodal
	// pixel's seasons year by year
	SeasonMarginDays int

	// AnomalyToleranceDays bounds how far an annual onset may fall after the
	// long-term onset, and how far an annual cessation may fall before the
	// long-term cessation
	AnomalyToleranceDays int

	// ValidYearQuorum is the fraction of years that must pass the anomaly test
	// for a pixel to be kept at all
	ValidYearQuorum float64
}

// DefaultParams returns the thresholds used for the African rangelands analysis
func DefaultParams() Params {
	return Params{
		SeasonalityRatioThreshold: 1.0,
		MinFirstHarmonicAmplitude: 1e-6,
		FlatCurveEpsilon:          1e-9,
		MinYears:                  2,
		SmoothingHalfWidth:        15,                // ±15 days
		ExtremaHalfWidths:         []int{45, 30, 15}, // widest first
		HydroYearLeadDays:         30,                // year boundary a month before onset
		SeasonMarginDays:          45,                // per-season search padding
		AnomalyToleranceDays:      60,                // ±2 months
		ValidYearQuorum:           0.75,              // 3 of 4 years must be plausible
	}
}

// Validate checks that the parameters describe a usable detector
func (p Params) Validate() error {
	switch {
	case p.SeasonalityRatioThreshold <= 0:
		return fmt.Errorf("seasonality ratio threshold must be positive, got %v", p.SeasonalityRatioThreshold)
	case p.MinFirstHarmonicAmplitude < 0:
		return fmt.Errorf("minimum first harmonic amplitude must not be negative, got %v", p.MinFirstHarmonicAmplitude)
	case p.FlatCurveEpsilon < 0:
		return fmt.Errorf("flat curve epsilon must not be negative, got %v", p.FlatCurveEpsilon)
	case p.MinYears < 2:
		return fmt.Errorf("at least two years are needed for a harmonic fit, got %d", p.MinYears)
	case p.SmoothingHalfWidth < 0 || 2*p.SmoothingHalfWidth+1 > DaysPerCycle:
		return fmt.Errorf("smoothing half-width %d out of range", p.SmoothingHalfWidth)
	case len(p.ExtremaHalfWidths) == 0:
		return errors.New("at least one extrema window half-width is required")
	case p.HydroYearLeadDays < 0 || p.HydroYearLeadDays >= DaysPerCycle:
		return fmt.Errorf("hydrological year lead %d out of range", p.HydroYearLeadDays)
	case p.SeasonMarginDays < 0:
		return fmt.Errorf("season margin must not be negative, got %d", p.SeasonMarginDays)
	case p.AnomalyToleranceDays < 0:
		return fmt.Errorf("anomaly tolerance must not be negative, got %d", p.AnomalyToleranceDays)
	case p.ValidYearQuorum < 0 || p.ValidYearQuorum > 1:
		return fmt.Errorf("valid year quorum must be within [0, 1], got %v", p.ValidYearQuorum)
	}

	for _, w := range p.ExtremaHalfWidths {
		if w < 1 || 2*w+1 > DaysPerCycle {
			return fmt.Errorf("extrema window half-width %d out of range", w)
		}
	}
	return nil
}

// wrapDOY maps any day number onto the 1..365 cycle
func wrapDOY(d int) int {
	return ((d-1)%DaysPerCycle+DaysPerCycle)%DaysPerCycle + 1
}
