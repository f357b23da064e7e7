package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/chrissnell/rainseason/internal/cache"
	"github.com/chrissnell/rainseason/internal/covariates"
	"github.com/chrissnell/rainseason/internal/precip"
	"github.com/chrissnell/rainseason/internal/raster"
	"github.com/chrissnell/rainseason/internal/season"
	"github.com/chrissnell/rainseason/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testPixels(t *testing.T) []precip.Pixel {
	t.Helper()
	pixels, err := precip.SynthesizeGrid(2, 2, precip.SynthConfig{StartYear: 2001, Years: 12, NoiseSD: 0.5, Seed: 7})
	require.NoError(t, err)

	start := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	pixels = append(pixels,
		precip.Pixel{Row: 2, Col: 0, Series: precip.NewSeries(start, make([]float64, 12*365))},
		precip.Pixel{Row: 2, Col: 1, Series: pixels[0].Series},
		precip.Pixel{Row: 2, Col: 2, Series: precip.NewSeries(start, nil)},
	)
	return pixels
}

func newRunner(t *testing.T, store *cache.Store, opts Options) *Runner {
	t.Helper()
	d, err := season.NewDetector(season.DefaultParams())
	require.NoError(t, err)
	return NewRunner(d, covariates.DefaultParams(), store, zap.NewNop().Sugar(), opts)
}

func collect(t *testing.T, r *Runner, pixels []precip.Pixel) (map[string]types.PixelResult, Stats) {
	t.Helper()
	out := make(chan types.PixelResult, len(pixels))
	stats, err := r.Run(context.Background(), pixels, out)
	require.NoError(t, err)
	close(out)

	got := make(map[string]types.PixelResult)
	for res := range out {
		got[res.Label] = res
	}
	return got, stats
}

func TestRunStatuses(t *testing.T) {
	geo := raster.Geometry{NCols: 3, NRows: 3, XLLCorner: 30, YLLCorner: -3, CellSize: 1}
	r := newRunner(t, nil, Options{
		Workers:   3,
		Geometry:  &geo,
		StudyArea: func(row, col int) bool { return !(row == 2 && col == 1) },
	})

	got, stats := collect(t, r, testPixels(t))
	require.Len(t, got, 7)
	assert.Equal(t, 7, stats.Pixels)
	assert.Equal(t, 0, stats.CacheHits)

	for _, label := range []string{"0_0", "1_0"} {
		res := got[label]
		assert.Equal(t, types.StatusOK, res.Status, label)
		assert.Equal(t, int(season.RegimeUnimodal), res.Regime, label)
		assert.Len(t, res.Seasons, 1, label)
		assert.NotNil(t, res.Covariates, label)
		assert.NotEmpty(t, res.Annual, label)
		assert.Equal(t, r.RunID(), res.RunID)
	}
	for _, label := range []string{"0_1", "1_1"} {
		res := got[label]
		assert.Equal(t, types.StatusOK, res.Status, label)
		assert.Equal(t, int(season.RegimeBimodal), res.Regime, label)
		assert.Len(t, res.Seasons, 2, label)
	}

	dry := got["2_0"]
	assert.Equal(t, types.StatusFlatCurve, dry.Status)
	assert.NotEmpty(t, dry.Error)
	assert.Empty(t, dry.Seasons)

	outside := got["2_1"]
	assert.Equal(t, types.StatusOutsideStudyArea, outside.Status)
	assert.False(t, outside.InStudyArea)
	assert.InDelta(t, 31.5, outside.Lon, 1e-9)
	assert.InDelta(t, -2.5, outside.Lat, 1e-9)
	assert.Positive(t, float64(outside.CellAreaKm2))

	assert.Equal(t, types.StatusInvalidSeries, got["2_2"].Status)

	assert.Equal(t, 4, stats.ByStatus[types.StatusOK])
	assert.Equal(t, 1, stats.ByStatus[types.StatusFlatCurve])
}

func TestRunFlagsPixelsThatFailedToLoad(t *testing.T) {
	in := "row,col,date,precip\n" +
		"0,0,2001-01-01,1\n0,0,2001-01-02,2\n" +
		"0,1,2001-01-01,1\n0,1,2001-01-03,2\n"
	pixels, err := precip.LoadCSVFromReader(strings.NewReader(in), nil)
	require.NoError(t, err)
	require.Len(t, pixels, 2)

	got, stats := collect(t, newRunner(t, nil, Options{Workers: 2}), pixels)
	require.Len(t, got, 2)

	gapped := got["0_1"]
	assert.Equal(t, types.StatusInvalidSeries, gapped.Status)
	assert.Contains(t, gapped.Error, "gap")

	// two days is too short to analyse, but the series itself is sound
	assert.Equal(t, types.StatusInsufficientData, got["0_0"].Status)
	assert.Equal(t, 1, stats.ByStatus[types.StatusInvalidSeries])
}

func TestRunUsesCache(t *testing.T) {
	store, err := cache.Open(context.Background(), filepath.Join(t.TempDir(), "cache.db"), zap.NewNop().Sugar())
	require.NoError(t, err)
	defer store.Close()

	pixels := testPixels(t)
	first, stats := collect(t, newRunner(t, store, Options{Workers: 2}), pixels)
	assert.Equal(t, 0, stats.CacheHits)

	second, stats := collect(t, newRunner(t, store, Options{Workers: 2}), pixels)
	// season and covariates for the six pixels with a valid series
	assert.Equal(t, 12, stats.CacheHits)

	for label, a := range first {
		b := second[label]
		assert.Equal(t, a.Status, b.Status, label)
		assert.Equal(t, a.Seasons, b.Seasons, label)
		assert.Equal(t, a.HYearStart, b.HYearStart, label)
		assert.Equal(t, a.Annual, b.Annual, label)
		assert.NotEqual(t, a.RunID, b.RunID)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// unbuffered and never read: workers must give up on the send
	out := make(chan types.PixelResult)
	_, err := newRunner(t, nil, Options{Workers: 2}).Run(ctx, testPixels(t), out)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want types.Status
	}{
		{nil, types.StatusOK},
		{season.ErrFlatCurve, types.StatusFlatCurve},
		{fmt.Errorf("wrapped: %w", season.ErrAmbiguousExtrema), types.StatusAmbiguousExtrema},
		{season.ErrUnpairedExtrema, types.StatusUnpairedExtrema},
		{season.ErrInsufficientData, types.StatusInsufficientData},
		{precip.ErrNegativeValue, types.StatusInvalidSeries},
		{errors.New("something else"), types.StatusInvalidSeries},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
