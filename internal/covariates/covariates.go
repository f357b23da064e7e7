// Package covariates computes the precipitation-pattern covariates that sit
// next to the season variables in the model tables: annual totals, wet-day
// counts and intensity, concentration indices and the heavy-rain share.
package covariates

import (
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/rainseason/internal/precip"
)

// Params controls the covariate definitions
type Params struct {
	// WetDayThreshold is the daily total (mm) at or above which a day counts as wet
	WetDayThreshold float64

	// HeavyRainPercentile picks the wet-day percentile (0-100) above which rain
	// counts as heavy. The threshold is fixed over the whole record.
	HeavyRainPercentile float64
}

// DefaultParams returns the ETCCDI-style definitions (1 mm wet day, R95p)
func DefaultParams() Params {
	return Params{
		WetDayThreshold:     1.0,
		HeavyRainPercentile: 95,
	}
}

// Annual holds the covariates of one calendar year
type Annual struct {
	Year              int     `json:"year" msgpack:"year"`
	Total             float64 `json:"total" msgpack:"total"`
	WetDays           float64 `json:"wet_days" msgpack:"wet_days"`
	SDII              float64 `json:"sdii" msgpack:"sdii"`
	PCI               float64 `json:"pci" msgpack:"pci"`
	UGi               float64 `json:"ugi" msgpack:"ugi"`
	HeavyRainFraction float64 `json:"heavy_rain_fraction" msgpack:"heavy_rain_fraction"`
}

// Summary holds the multi-annual means and the per-year values
type Summary struct {
	MAP                float64  `json:"map" msgpack:"map"`
	WetDays            float64  `json:"wet_days" msgpack:"wet_days"`
	SDII               float64  `json:"sdii" msgpack:"sdii"`
	PCI                float64  `json:"pci" msgpack:"pci"`
	UGi                float64  `json:"ugi" msgpack:"ugi"`
	HeavyRainFraction  float64  `json:"heavy_rain_fraction" msgpack:"heavy_rain_fraction"`
	HeavyRainThreshold float64  `json:"heavy_rain_threshold" msgpack:"heavy_rain_threshold"`
	Years              []Annual `json:"years" msgpack:"years"`
}

// Compute derives the covariates for every complete calendar year of s and
// averages them. Years with no rain at all leave the ratio-type covariates
// missing (NaN), and the means skip them.
func Compute(s precip.Series, p Params) (Summary, error) {
	if err := s.Validate(); err != nil {
		return Summary{}, err
	}

	threshold, err := heavyRainThreshold(s.Values, p)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{HeavyRainThreshold: threshold}

	for y := s.Start.Year(); y <= s.End().Year(); y++ {
		from := s.IndexOf(time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC))
		to := s.IndexOf(time.Date(y+1, time.January, 1, 0, 0, 0, 0, time.UTC))
		vals, ok := s.Window(from, to)
		if !ok {
			continue
		}
		sum.Years = append(sum.Years, annual(y, s.Start.AddDate(0, 0, from), vals, threshold, p))
	}
	if len(sum.Years) == 0 {
		return Summary{}, fmt.Errorf("no complete calendar year between %s and %s",
			s.Start.Format("2006-01-02"), s.End().Format("2006-01-02"))
	}

	pick := func(f func(Annual) float64) float64 {
		var xs []float64
		for _, a := range sum.Years {
			if v := f(a); !math.IsNaN(v) {
				xs = append(xs, v)
			}
		}
		if len(xs) == 0 {
			return math.NaN()
		}
		return stat.Mean(xs, nil)
	}
	sum.MAP = pick(func(a Annual) float64 { return a.Total })
	sum.WetDays = pick(func(a Annual) float64 { return a.WetDays })
	sum.SDII = pick(func(a Annual) float64 { return a.SDII })
	sum.PCI = pick(func(a Annual) float64 { return a.PCI })
	sum.UGi = pick(func(a Annual) float64 { return a.UGi })
	sum.HeavyRainFraction = pick(func(a Annual) float64 { return a.HeavyRainFraction })

	return sum, nil
}

func annual(year int, first time.Time, vals []float64, heavy float64, p Params) Annual {
	a := Annual{Year: year, Total: floats.Sum(vals)}

	monthly := make([]float64, 12)
	heavySum := 0.0
	for i, v := range vals {
		if v >= p.WetDayThreshold {
			a.WetDays++
		}
		if !math.IsNaN(heavy) && v > heavy {
			heavySum += v
		}
		monthly[first.AddDate(0, 0, i).Month()-1] += v
	}

	a.SDII = math.NaN()
	if a.WetDays > 0 {
		wet := 0.0
		for _, v := range vals {
			if v >= p.WetDayThreshold {
				wet += v
			}
		}
		a.SDII = wet / a.WetDays
	}

	a.PCI = PCI(monthly)
	a.UGi = UnrankedGini(vals)
	a.HeavyRainFraction = math.NaN()
	if a.Total > 0 && !math.IsNaN(heavy) {
		a.HeavyRainFraction = heavySum / a.Total
	}
	return a
}

func heavyRainThreshold(values []float64, p Params) (float64, error) {
	var wet stats.Float64Data
	for _, v := range values {
		if v >= p.WetDayThreshold {
			wet = append(wet, v)
		}
	}
	if len(wet) == 0 {
		return math.NaN(), nil
	}

	t, err := stats.Percentile(wet, p.HeavyRainPercentile)
	if err != nil {
		return 0, fmt.Errorf("could not compute the %vth wet-day percentile: %w", p.HeavyRainPercentile, err)
	}
	return t, nil
}

// PCI is the precipitation concentration index of a set of monthly totals,
// 100 * sum(p^2) / sum(p)^2. It ranges from 100/12 for a perfectly even year
// to 100 when all rain falls in one month.
func PCI(monthly []float64) float64 {
	total := floats.Sum(monthly)
	if total <= 0 {
		return math.NaN()
	}
	return 100 * floats.Dot(monthly, monthly) / (total * total)
}

// UnrankedGini is the Gini index of the chronological Lorenz curve of daily
// totals: days are kept in calendar order rather than sorted by amount, so
// the index measures how bunched in time the rain is. It is twice the area
// between the curve and the line of equality; 0 means perfectly even.
func UnrankedGini(daily []float64) float64 {
	n := len(daily)
	total := floats.Sum(daily)
	if n == 0 || total <= 0 {
		return math.NaN()
	}

	area := 0.0
	prev, acc := 0.0, 0.0
	dx := 1 / float64(n)
	for i, v := range daily {
		acc += v
		d := acc/total - float64(i+1)/float64(n)
		area += dx * betweenArea(prev, d)
		prev = d
	}
	return 2 * area
}

// betweenArea is the mean absolute height of a unit-width step whose
// deviation from the equality line goes linearly from d0 to d1, splitting
// the step where the curve crosses the line
func betweenArea(d0, d1 float64) float64 {
	if d0*d1 >= 0 {
		return (math.Abs(d0) + math.Abs(d1)) / 2
	}
	return (d0*d0 + d1*d1) / (2 * (math.Abs(d0) + math.Abs(d1)))
}
