package season

import (
	"fmt"
	"math"
	"time"

	"github.com/chrissnell/rainseason/internal/precip"
	"gonum.org/v1/gonum/mat"
)

const daysPerYear = 365.25

// Regime is the number of rainy seasons in a pixel's mean year
type Regime int

const (
	RegimeUnimodal Regime = 1
	RegimeBimodal  Regime = 2
)

func (r Regime) String() string {
	switch r {
	case RegimeUnimodal:
		return "unimodal"
	case RegimeBimodal:
		return "bimodal"
	}
	return fmt.Sprintf("regime(%d)", int(r))
}

// Harmonics is the result of the annual harmonic regression
type Harmonics struct {
	// Coefficients are ordered intercept, trend (mm/day per year), cos1, sin1, cos2, sin2
	Coefficients [6]float64
	Amplitude1   float64
	Amplitude2   float64
	// Ratio is Amplitude2/Amplitude1, or NaN when Degenerate
	Ratio float64
	// Degenerate is set when Amplitude1 is too small for Ratio to be defined
	Degenerate bool
}

// FitHarmonics regresses the daily values on an intercept, a linear trend and
// the first two annual harmonics, with t measured in years since the Unix epoch.
func FitHarmonics(s precip.Series, p Params) (Harmonics, error) {
	n := s.Len()
	if n < p.MinYears*DaysPerCycle {
		return Harmonics{}, fmt.Errorf("%w: %d days, need %d", ErrInsufficientData, n, p.MinYears*DaysPerCycle)
	}

	epoch := time.Unix(0, 0).UTC()
	t0 := s.Start.Sub(epoch).Hours() / 24

	// Design matrix
	X := mat.NewDense(n, 6, nil)
	for i := 0; i < n; i++ {
		t := (t0 + float64(i)) / daysPerYear
		w1 := 2 * math.Pi * t
		w2 := 4 * math.Pi * t
		X.SetRow(i, []float64{1, t, math.Cos(w1), math.Sin(w1), math.Cos(w2), math.Sin(w2)})
	}
	y := mat.NewVecDense(n, s.Values)

	// Solve using QR decomposition
	var qr mat.QR
	qr.Factorize(X)

	coeffs := mat.NewVecDense(6, nil)
	if err := qr.SolveVecTo(coeffs, false, y); err != nil {
		return Harmonics{}, fmt.Errorf("harmonic regression failed: %w", err)
	}

	var h Harmonics
	for i := range h.Coefficients {
		h.Coefficients[i] = coeffs.AtVec(i)
	}
	h.Amplitude1 = math.Hypot(h.Coefficients[2], h.Coefficients[3])
	h.Amplitude2 = math.Hypot(h.Coefficients[4], h.Coefficients[5])

	if h.Amplitude1 < p.MinFirstHarmonicAmplitude {
		h.Degenerate = true
		h.Ratio = math.NaN()
	} else {
		h.Ratio = h.Amplitude2 / h.Amplitude1
	}

	return h, nil
}

// Classify routes a pixel to the single- or double-season extractor. Degenerate
// fits default to a single season.
func Classify(h Harmonics, p Params) Regime {
	if h.Degenerate || math.IsNaN(h.Ratio) {
		return RegimeUnimodal
	}
	if h.Ratio >= p.SeasonalityRatioThreshold {
		return RegimeBimodal
	}
	return RegimeUnimodal
}
