package season

import (
	"errors"
	"testing"
)

// boxCycle rains height mm on days [start, end] of a 365-day cycle, wrapping
// when start > end
func boxCycle(start, end int, height float64) []float64 {
	c := make([]float64, DaysPerCycle)
	for d := 1; d <= DaysPerCycle; d++ {
		in := d >= start && d <= end
		if start > end {
			in = d >= start || d <= end
		}
		if in {
			c[d-1] = height
		}
	}
	return c
}

// triangleCycle rises from start to top and falls back to zero at end
func triangleCycle(start, top, end int, height float64) []float64 {
	c := make([]float64, DaysPerCycle)
	for d := start; d <= end; d++ {
		v := height * float64(d-start) / float64(top-start)
		if d > top {
			v = height * float64(end-d) / float64(end-top)
		}
		c[wrapDOY(d)-1] += v
	}
	return c
}

func TestExtractSingle(t *testing.T) {
	tests := []struct {
		name               string
		cycle              []float64
		onsetMin, onsetMax int
		cessMin, cessMax   int
	}{
		{
			name:     "box season",
			cycle:    boxCycle(101, 260, 8),
			onsetMin: 101, onsetMax: 101,
			cessMin: 260, cessMax: 260,
		},
		{
			name:     "box season across the new year",
			cycle:    boxCycle(300, 60, 8),
			onsetMin: 300, onsetMax: 300,
			cessMin: 60, cessMax: 60,
		},
		{
			// rainfall only exceeds the uniform rate some way up the rising limb
			name:     "triangular season",
			cycle:    triangleCycle(100, 180, 260, 12),
			onsetMin: 100, onsetMax: 125,
			cessMin: 235, cessMax: 262,
		},
	}

	p := DefaultParams()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractSingle(CumulativeAnomaly(tt.cycle), p)
			if err != nil {
				t.Fatalf("ExtractSingle error: %v", err)
			}
			if got.Onset < tt.onsetMin || got.Onset > tt.onsetMax {
				t.Errorf("onset = %d, want within [%d, %d]", got.Onset, tt.onsetMin, tt.onsetMax)
			}
			if got.Cessation < tt.cessMin || got.Cessation > tt.cessMax {
				t.Errorf("cessation = %d, want within [%d, %d]", got.Cessation, tt.cessMin, tt.cessMax)
			}
		})
	}
}

func TestExtractSingleOnsetPrecedesCessation(t *testing.T) {
	p := DefaultParams()
	for start := 1; start <= DaysPerCycle; start += 17 {
		for _, length := range []int{20, 90, 150, 250} {
			end := wrapDOY(start + length - 1)
			s, err := ExtractSingle(CumulativeAnomaly(boxCycle(start, end, 5)), p)
			if err != nil {
				t.Fatalf("box [%d, %d]: %v", start, end, err)
			}
			if l := s.Length(); l <= 0 || l >= DaysPerCycle {
				t.Errorf("box [%d, %d]: onset %d does not precede cessation %d", start, end, s.Onset, s.Cessation)
			}
		}
	}
}

func TestExtractSingleFlatCurve(t *testing.T) {
	_, err := ExtractSingle(make([]float64, DaysPerCycle), DefaultParams())
	if !errors.Is(err, ErrFlatCurve) {
		t.Errorf("error = %v, want ErrFlatCurve", err)
	}
}

func TestSeasonLength(t *testing.T) {
	tests := []struct {
		s    Season
		want int
	}{
		{Season{Onset: 101, Cessation: 260}, 159},
		{Season{Onset: 300, Cessation: 60}, 125},
		{Season{Onset: 365, Cessation: 1}, 1},
	}
	for _, tt := range tests {
		if got := tt.s.Length(); got != tt.want {
			t.Errorf("%+v.Length() = %d, want %d", tt.s, got, tt.want)
		}
	}
}
