package season

import (
	"fmt"

	"github.com/chrissnell/rainseason/internal/precip"
	"gonum.org/v1/gonum/floats"
)

// Climatology averages the series by ordinal day of year. Slot i holds the
// mean for day i+1; day 366 of leap years is dropped.
func Climatology(s precip.Series) ([]float64, error) {
	sums := make([]float64, DaysPerCycle)
	counts := make([]int, DaysPerCycle)

	for i, v := range s.Values {
		doy := DayOfYear(s.Date(i))
		if doy > DaysPerCycle {
			continue
		}
		sums[doy-1] += v
		counts[doy-1]++
	}

	for i := range sums {
		if counts[i] == 0 {
			return nil, fmt.Errorf("%w: no data for day of year %d", ErrInsufficientData, i+1)
		}
		sums[i] /= float64(counts[i])
	}
	return sums, nil
}

// CumulativeAnomaly returns the running sum of daily - mean(daily), that is
// actual rainfall minus the rainfall expected if the window's total fell
// uniformly. Over a full climatological cycle the curve closes at zero, so it
// can be read cyclically.
func CumulativeAnomaly(daily []float64) []float64 {
	curve := make([]float64, len(daily))
	if len(daily) == 0 {
		return curve
	}

	mean := floats.Sum(daily) / float64(len(daily))
	acc := 0.0
	for i, v := range daily {
		acc += v - mean
		curve[i] = acc
	}
	return curve
}

func isFlat(curve []float64, eps float64) bool {
	return len(curve) == 0 || floats.Max(curve)-floats.Min(curve) < eps
}
