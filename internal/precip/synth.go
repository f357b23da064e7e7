package precip

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"gonum.org/v1/gonum/stat/distuv"
)

// PeakShape selects the profile of a synthetic rainy season
type PeakShape int

const (
	ShapeTriangle PeakShape = iota
	ShapeBox
)

// Peak is one synthetic rainy season, in day-of-year units. For triangles the
// daily total rises linearly from Start to Top and falls back to zero at End;
// boxes ignore Top and rain Height mm on every day of [Start, End].
type Peak struct {
	Start  int
	Top    int
	End    int
	Height float64
	Shape  PeakShape
}

// SynthConfig describes a synthetic daily record
type SynthConfig struct {
	StartYear int
	Years     int
	Peaks     []Peak
	Baseline  float64 // mm/day added to every day
	NoiseSD   float64 // standard deviation of gaussian noise, mm/day
	Jitter    int     // each year's peaks shift by a uniform offset in [-Jitter, Jitter] days
	Seed      uint64
}

// UnimodalConfig is the single triangular peak used to exercise the season detector
func UnimodalConfig(startYear, years int) SynthConfig {
	return SynthConfig{
		StartYear: startYear,
		Years:     years,
		Peaks:     []Peak{{Start: 100, Top: 180, End: 260, Height: 12, Shape: ShapeTriangle}},
	}
}

// BimodalConfig is the two-peak counterpart of UnimodalConfig
func BimodalConfig(startYear, years int) SynthConfig {
	return SynthConfig{
		StartYear: startYear,
		Years:     years,
		Peaks: []Peak{
			{Start: 60, Top: 90, End: 120, Height: 10, Shape: ShapeTriangle},
			{Start: 220, Top: 250, End: 280, Height: 10, Shape: ShapeTriangle},
		},
	}
}

// Synthesize builds a deterministic series from cfg. Peaks are placed by
// ordinal day of year, so leap years carry an extra dry 31 December.
func Synthesize(cfg SynthConfig) (Series, error) {
	if cfg.Years <= 0 {
		return Series{}, fmt.Errorf("synthetic series needs at least one year, got %d", cfg.Years)
	}
	for i, p := range cfg.Peaks {
		if p.Start < 1 || p.End > 366 || p.Start > p.End {
			return Series{}, fmt.Errorf("peak %d has invalid bounds [%d, %d]", i, p.Start, p.End)
		}
		if p.Shape == ShapeTriangle && (p.Top < p.Start || p.Top > p.End) {
			return Series{}, fmt.Errorf("peak %d top %d outside [%d, %d]", i, p.Top, p.Start, p.End)
		}
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	noise := distuv.Normal{Mu: 0, Sigma: cfg.NoiseSD, Src: rng}

	start := time.Date(cfg.StartYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(cfg.StartYear+cfg.Years, time.January, 1, 0, 0, 0, 0, time.UTC)
	values := make([]float64, 0, int(end.Sub(start).Hours()/24))

	shift := 0
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		doy := julian.DayOfYearGregorian(d.Year(), int(d.Month()), d.Day())
		if doy == 1 && cfg.Jitter > 0 {
			shift = rng.IntN(2*cfg.Jitter+1) - cfg.Jitter
		}

		v := cfg.Baseline
		for _, p := range cfg.Peaks {
			v += p.at(doy - shift)
		}
		if cfg.NoiseSD > 0 {
			v += noise.Rand()
		}
		if v < 0 {
			v = 0
		}
		values = append(values, v)
	}

	return NewSeries(start, values), nil
}

func (p Peak) at(doy int) float64 {
	if doy < p.Start || doy > p.End {
		return 0
	}
	if p.Shape == ShapeBox {
		return p.Height
	}
	if doy <= p.Top {
		if p.Top == p.Start {
			return p.Height
		}
		return p.Height * float64(doy-p.Start) / float64(p.Top-p.Start)
	}
	return p.Height * float64(p.End-doy) / float64(p.End-p.Top)
}

// SynthesizeGrid lays out rows*cols pixels, alternating unimodal and bimodal
// climates by column and varying the seed per pixel.
func SynthesizeGrid(rows, cols int, base SynthConfig) ([]Pixel, error) {
	pixels := make([]Pixel, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cfg := base
			if len(cfg.Peaks) == 0 {
				if c%2 == 0 {
					cfg.Peaks = UnimodalConfig(base.StartYear, base.Years).Peaks
				} else {
					cfg.Peaks = BimodalConfig(base.StartYear, base.Years).Peaks
				}
			}
			cfg.Seed = base.Seed + uint64(r*cols+c)

			s, err := Synthesize(cfg)
			if err != nil {
				return nil, err
			}
			pixels = append(pixels, Pixel{Row: r, Col: c, Series: s})
		}
	}
	return pixels, nil
}
