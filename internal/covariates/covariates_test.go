package covariates

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/rainseason/internal/precip"
)

func TestPCI(t *testing.T) {
	even := make([]float64, 12)
	for i := range even {
		even[i] = 50
	}
	assert.InDelta(t, 100.0/12, PCI(even), 1e-9)

	oneMonth := make([]float64, 12)
	oneMonth[7] = 300
	assert.InDelta(t, 100, PCI(oneMonth), 1e-9)

	assert.True(t, math.IsNaN(PCI(make([]float64, 12))))
}

func TestUnrankedGini(t *testing.T) {
	even := make([]float64, 365)
	for i := range even {
		even[i] = 2
	}
	assert.InDelta(t, 0, UnrankedGini(even), 1e-9)

	first := make([]float64, 365)
	first[0] = 100
	assert.InDelta(t, 364.0/365, UnrankedGini(first), 1e-9)

	last := make([]float64, 365)
	last[364] = 100
	assert.InDelta(t, 364.0/365, UnrankedGini(last), 1e-9)

	assert.True(t, math.IsNaN(UnrankedGini(make([]float64, 10))))
}

func TestUnrankedGiniSeasonPlacement(t *testing.T) {
	box := func(start int) []float64 {
		daily := make([]float64, 365)
		for d := start; d < start+160; d++ {
			daily[d] = 5
		}
		return daily
	}

	early := UnrankedGini(box(0))
	mid := UnrankedGini(box(102))
	late := UnrankedGini(box(205))

	// a season flush against either end of the year leaves the widest gap
	assert.InDelta(t, 205.0/365, early, 1e-9)
	assert.InDelta(t, early, late, 1e-9)

	// the deficit before a mid-year season must not cancel the surplus after it
	assert.InDelta(t, early/2, mid, 0.01)
	assert.Greater(t, mid, 0.25)
}

func TestComputeCompleteYearsOnly(t *testing.T) {
	// 1 Jul 2000 .. 31 Dec 2002: only 2001 and 2002 are complete
	start := time.Date(2000, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2003, 1, 1, 0, 0, 0, 0, time.UTC)
	values := make([]float64, int(end.Sub(start).Hours()/24))
	for i := range values {
		if i%5 == 0 {
			values[i] = 10
		}
	}

	sum, err := Compute(precip.NewSeries(start, values), DefaultParams())
	require.NoError(t, err)
	require.Len(t, sum.Years, 2)
	assert.Equal(t, 2001, sum.Years[0].Year)
	assert.Equal(t, 2002, sum.Years[1].Year)

	for _, a := range sum.Years {
		assert.InDelta(t, 10*a.WetDays, a.Total, 1e-9)
		assert.InDelta(t, 10, a.SDII, 1e-9)
		assert.InDelta(t, 73, a.WetDays, 1)
	}
	assert.InDelta(t, 10, sum.HeavyRainThreshold, 1e-9)
	// no wet day exceeds a threshold equal to every wet day
	assert.InDelta(t, 0, sum.HeavyRainFraction, 1e-9)
}

func TestComputeSeasonalClimate(t *testing.T) {
	cfg := precip.UnimodalConfig(2001, 5)
	cfg.NoiseSD = 0.5
	cfg.Seed = 1
	s, err := precip.Synthesize(cfg)
	require.NoError(t, err)

	sum, err := Compute(s, DefaultParams())
	require.NoError(t, err)
	require.Len(t, sum.Years, 5)

	// a single 160-day season concentrates rain in time and across months
	assert.Greater(t, sum.UGi, 0.25)
	assert.Greater(t, sum.PCI, 100.0/12)
	assert.Greater(t, sum.MAP, 900.0)
	assert.Greater(t, sum.HeavyRainFraction, 0.0)
	assert.Less(t, sum.HeavyRainFraction, 0.5)
}

func TestComputeDryYearIsMissing(t *testing.T) {
	start := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	values := make([]float64, 730)
	values[400] = 20 // rain only in 2002

	sum, err := Compute(precip.NewSeries(start, values), DefaultParams())
	require.NoError(t, err)
	require.Len(t, sum.Years, 2)

	dry := sum.Years[0]
	assert.Equal(t, 0.0, dry.Total)
	assert.True(t, math.IsNaN(dry.SDII))
	assert.True(t, math.IsNaN(dry.PCI))
	assert.True(t, math.IsNaN(dry.UGi))

	// means skip the missing year
	assert.InDelta(t, 100, sum.PCI, 1e-9)
	assert.InDelta(t, 10, sum.MAP, 1e-9)
}

func TestComputeRejectsInvalidSeries(t *testing.T) {
	_, err := Compute(precip.NewSeries(time.Now(), nil), DefaultParams())
	assert.ErrorIs(t, err, precip.ErrEmptySeries)

	_, err = Compute(precip.NewSeries(time.Date(2001, 3, 1, 0, 0, 0, 0, time.UTC), make([]float64, 100)), DefaultParams())
	assert.Error(t, err)
}
