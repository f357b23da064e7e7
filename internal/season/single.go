package season

import "gonum.org/v1/gonum/floats"

// Season is a rainy season in day-of-year units (1..365). Cessation is smaller
// than Onset when the season spans the new year.
type Season struct {
	Onset     int `json:"onset" msgpack:"onset"`
	Cessation int `json:"cessation" msgpack:"cessation"`
}

// Length returns the number of days from onset to cessation, across the new
// year where needed
func (s Season) Length() int {
	return (s.Cessation - s.Onset + DaysPerCycle) % DaysPerCycle
}

// ExtractSingle reads a unimodal season off a 365-day cumulative anomaly curve.
// Onset is the day after the trough and cessation is the peak.
func ExtractSingle(curve []float64, p Params) (Season, error) {
	if len(curve) != DaysPerCycle {
		return Season{}, ErrInsufficientData
	}
	if isFlat(curve, p.FlatCurveEpsilon) {
		return Season{}, ErrFlatCurve
	}

	return Season{
		Onset:     wrapDOY(floats.MinIdx(curve) + 2),
		Cessation: floats.MaxIdx(curve) + 1,
	}, nil
}
