// Package mask builds the study-area mask from four independent static
// layers. A pixel is in the study area only when every layer admits it.
package mask

import (
	"errors"
	"fmt"
	"math"

	"github.com/chrissnell/rainseason/internal/raster"
)

// Thresholds selects which pixels each layer admits
type Thresholds struct {
	LandCoverClasses            []int   `yaml:"land_cover_classes" json:"land_cover_classes"`                         // IGBP classes kept: shrublands, savannas, grasslands
	AridityMin                  float64 `yaml:"aridity_min" json:"aridity_min"`                                       // inclusive
	AridityMax                  float64 `yaml:"aridity_max" json:"aridity_max"`                                       // inclusive
	MinRangelandFraction        float64 `yaml:"min_rangeland_fraction" json:"min_rangeland_fraction"`                 // share of the cell that is rangeland
	MaxZeroProductivityFraction float64 `yaml:"max_zero_productivity_fraction" json:"max_zero_productivity_fraction"` // share of years with zero GPP, exclusive
}

// DefaultThresholds returns the standard study-area definition
func DefaultThresholds() Thresholds {
	return Thresholds{
		LandCoverClasses:            []int{6, 7, 8, 9, 10},
		AridityMin:                  0.05,
		AridityMax:                  0.65,
		MinRangelandFraction:        0.75,
		MaxZeroProductivityFraction: 0.5,
	}
}

// StrictThresholds is DefaultThresholds with the tighter rangeland cutoff
func StrictThresholds() Thresholds {
	t := DefaultThresholds()
	t.MinRangelandFraction = 0.9
	return t
}

// Validate checks that the thresholds describe non-empty ranges
func (t Thresholds) Validate() error {
	if len(t.LandCoverClasses) == 0 {
		return errors.New("at least one land cover class is required")
	}
	if t.AridityMin > t.AridityMax {
		return fmt.Errorf("aridity range [%v, %v] is empty", t.AridityMin, t.AridityMax)
	}
	if t.MinRangelandFraction < 0 || t.MinRangelandFraction > 1 {
		return fmt.Errorf("rangeland fraction must be in [0, 1], got %v", t.MinRangelandFraction)
	}
	if t.MaxZeroProductivityFraction <= 0 || t.MaxZeroProductivityFraction > 1 {
		return fmt.Errorf("zero productivity fraction must be in (0, 1], got %v", t.MaxZeroProductivityFraction)
	}
	return nil
}

// Inputs are the static layers the mask is built from. All four must share
// one geometry.
type Inputs struct {
	LandCover         *raster.Grid
	Aridity           *raster.Grid
	RangelandFraction *raster.Grid
	ZeroProductivity  *raster.Grid
}

// Layers holds each single-criterion mask and their combination
type Layers struct {
	Geometry     raster.Geometry
	LandCover    []bool
	Aridity      []bool
	Rangeland    []bool
	Productivity []bool
	Combined     []bool
}

// Build evaluates every layer against t. Cells without data are excluded.
func Build(in Inputs, t Thresholds) (*Layers, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	named := []struct {
		name string
		grid *raster.Grid
	}{
		{"land cover", in.LandCover},
		{"aridity", in.Aridity},
		{"rangeland fraction", in.RangelandFraction},
		{"zero productivity", in.ZeroProductivity},
	}
	for _, n := range named {
		if n.grid == nil {
			return nil, fmt.Errorf("%s layer is missing", n.name)
		}
		if !n.grid.SameShape(in.LandCover.Geometry) {
			return nil, fmt.Errorf("%s layer does not match the land cover grid geometry", n.name)
		}
	}

	classes := make(map[int]bool, len(t.LandCoverClasses))
	for _, c := range t.LandCoverClasses {
		classes[c] = true
	}

	l := &Layers{
		Geometry: in.LandCover.Geometry,
		LandCover: threshold(in.LandCover, func(v float64) bool {
			return v == math.Trunc(v) && classes[int(v)]
		}),
		Aridity: threshold(in.Aridity, func(v float64) bool {
			return v >= t.AridityMin && v <= t.AridityMax
		}),
		Rangeland: threshold(in.RangelandFraction, func(v float64) bool {
			return v >= t.MinRangelandFraction
		}),
		Productivity: threshold(in.ZeroProductivity, func(v float64) bool {
			return v < t.MaxZeroProductivityFraction
		}),
	}

	combined, err := Combine(l.LandCover, l.Aridity, l.Rangeland, l.Productivity)
	if err != nil {
		return nil, err
	}
	l.Combined = combined
	return l, nil
}

func threshold(g *raster.Grid, keep func(float64) bool) []bool {
	out := make([]bool, len(g.Data))
	for i, v := range g.Data {
		out[i] = v != g.NoData && !math.IsNaN(v) && keep(v)
	}
	return out
}

// Combine is the cell-wise logical AND of masks of equal length
func Combine(masks ...[]bool) ([]bool, error) {
	if len(masks) == 0 {
		return nil, errors.New("nothing to combine")
	}
	n := len(masks[0])
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	for k, m := range masks {
		if len(m) != n {
			return nil, fmt.Errorf("mask %d has %d cells, want %d", k, len(m), n)
		}
		for i, v := range m {
			out[i] = out[i] && v
		}
	}
	return out, nil
}

// Contains reports whether a cell is inside the combined mask
func (l *Layers) Contains(row, col int) bool {
	i := l.Geometry.Index(row, col)
	return i >= 0 && l.Combined[i]
}

// Count returns the number of cells in the combined mask
func (l *Layers) Count() int {
	n := 0
	for _, v := range l.Combined {
		if v {
			n++
		}
	}
	return n
}

// Grid renders one mask as a 1/0 raster for export
func (l *Layers) Grid(m []bool) *raster.Grid {
	g := raster.NewGrid(l.Geometry)
	for i, v := range m {
		if v {
			g.Data[i] = 1
		} else {
			g.Data[i] = 0
		}
	}
	return g
}

// Named returns the individual and combined masks keyed by export name
func (l *Layers) Named() map[string][]bool {
	return map[string][]bool{
		"land_cover_mask":        l.LandCover,
		"aridity_mask":           l.Aridity,
		"rangeland_mask":         l.Rangeland,
		"zero_productivity_mask": l.Productivity,
		"study_area_mask":        l.Combined,
	}
}
