package season

import (
	"errors"
	"math"
	"testing"

	"github.com/chrissnell/rainseason/internal/precip"
)

func TestFitHarmonicsClassification(t *testing.T) {
	box := precip.UnimodalConfig(2001, 10)
	box.Peaks[0].Shape = precip.ShapeBox
	box.Peaks[0].Start, box.Peaks[0].End = 101, 260

	tests := []struct {
		name     string
		cfg      precip.SynthConfig
		regime   Regime
		minRatio float64
		maxRatio float64
	}{
		{
			name:     "single triangular peak",
			cfg:      precip.UnimodalConfig(2001, 10),
			regime:   RegimeUnimodal,
			minRatio: 0.45,
			maxRatio: 0.75,
		},
		{
			name:     "single box peak",
			cfg:      box,
			regime:   RegimeUnimodal,
			minRatio: 0.05,
			maxRatio: 0.35,
		},
		{
			name:     "two triangular peaks",
			cfg:      precip.BimodalConfig(2001, 10),
			regime:   RegimeBimodal,
			minRatio: 3,
			maxRatio: 6,
		},
	}

	p := DefaultParams()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := precip.Synthesize(tt.cfg)
			if err != nil {
				t.Fatalf("Synthesize error: %v", err)
			}

			h, err := FitHarmonics(s, p)
			if err != nil {
				t.Fatalf("FitHarmonics error: %v", err)
			}
			if h.Ratio < tt.minRatio || h.Ratio > tt.maxRatio {
				t.Errorf("ratio = %.3f, want within [%v, %v]", h.Ratio, tt.minRatio, tt.maxRatio)
			}
			if got := Classify(h, p); got != tt.regime {
				t.Errorf("Classify = %v, want %v", got, tt.regime)
			}
		})
	}
}

func TestFitHarmonicsFlatSeriesIsDegenerate(t *testing.T) {
	h, err := FitHarmonics(constantSeries(3, 2.5), DefaultParams())
	if err != nil {
		t.Fatalf("FitHarmonics error: %v", err)
	}
	if !h.Degenerate {
		t.Errorf("expected a degenerate fit, amplitude1 = %g", h.Amplitude1)
	}
	if !math.IsNaN(h.Ratio) {
		t.Errorf("ratio = %v, want NaN", h.Ratio)
	}
	if math.Abs(h.Coefficients[0]-2.5) > 1e-6 {
		t.Errorf("intercept-only fit should recover the mean, got %v", h.Coefficients[0])
	}
	if got := Classify(h, DefaultParams()); got != RegimeUnimodal {
		t.Errorf("Classify = %v, want unimodal", got)
	}
}

func TestFitHarmonicsRejectsShortSeries(t *testing.T) {
	_, err := FitHarmonics(constantSeries(1, 1), DefaultParams())
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("error = %v, want ErrInsufficientData", err)
	}
}

func TestClassifyThreshold(t *testing.T) {
	p := DefaultParams()
	tests := []struct {
		ratio float64
		want  Regime
	}{
		{0.2, RegimeUnimodal},
		{0.999, RegimeUnimodal},
		{1.0, RegimeBimodal},
		{3.5, RegimeBimodal},
		{math.NaN(), RegimeUnimodal},
	}
	for _, tt := range tests {
		if got := Classify(Harmonics{Ratio: tt.ratio}, p); got != tt.want {
			t.Errorf("Classify(ratio=%v) = %v, want %v", tt.ratio, got, tt.want)
		}
	}
}
