package timescaledb

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/rainseason/internal/types"
)

func samplePixel() types.PixelResult {
	return types.PixelResult{
		RunID: "run-1", Label: "4_7", Row: 4, Col: 7, Lon: 36.1, Lat: -1.4,
		Status: types.StatusOK, InStudyArea: true, Regime: 2, SeasonalityRatio: 1.3, HYearStart: 244,
		Seasons:    []types.SeasonDates{{Onset: 290, Cessation: 350}, {Onset: 60, Cessation: 150}},
		MeanLength: 140, LengthSD: types.Float(math.NaN()),
		Covariates: &types.Covariates{MAP: 810},
		Annual: []types.AnnualRow{
			{Year: 2005, Length: 150, Valid: true, Seasons: []types.AnnualSeason{
				{Onset: 47, Cessation: 107, Valid: true},
				{Onset: 182, Cessation: 272, Valid: true},
			}},
			{Year: 2006, Seasons: []types.AnnualSeason{{Onset: 40, Cessation: 90}}},
		},
		CovariateYears: []types.Covariates{{Year: 2005, MAP: 790}},
	}
}

func TestPixelRecord(t *testing.T) {
	rec, err := pixelRecord(samplePixel())
	require.NoError(t, err)

	assert.Equal(t, "4_7", rec.Pixel)
	require.NotNil(t, rec.Onset2)
	assert.Equal(t, 60, *rec.Onset2)
	require.NotNil(t, rec.MeanLength)
	assert.Equal(t, 140.0, *rec.MeanLength)
	assert.Nil(t, rec.LengthSD, "missing values become NULL")
	assert.Equal(t, 810.0, *rec.MAP)
	assert.False(t, rec.ComputedAt.IsZero())

	var decoded types.PixelResult
	require.NoError(t, json.Unmarshal(rec.Data.Bytes, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Len(t, decoded.Annual, 2)
}

func TestPixelRecordOfFailedPixel(t *testing.T) {
	rec, err := pixelRecord(types.PixelResult{Label: "0_0", Status: types.StatusFlatCurve, InStudyArea: true, MeanLength: 5})
	require.NoError(t, err)
	assert.Nil(t, rec.Onset1)
	assert.Nil(t, rec.HYearStart)
	assert.Nil(t, rec.MeanLength)
	assert.Nil(t, rec.MAP)
}

func TestAnnualRecords(t *testing.T) {
	recs := annualRecords(samplePixel())
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, time.Date(2005, time.September, 1, 0, 0, 0, 0, time.UTC), first.Time)
	assert.True(t, first.Valid)
	assert.Equal(t, 182, *first.Onset2)
	assert.Equal(t, 150, *first.Length)
	assert.Equal(t, 790.0, *first.Total)

	second := recs[1]
	assert.False(t, second.Valid)
	assert.Nil(t, second.Onset1)
	assert.Nil(t, second.Length)
	assert.Nil(t, second.Total)

	masked := samplePixel()
	masked.Masked = true
	for _, r := range annualRecords(masked) {
		assert.False(t, r.Valid)
	}

	assert.Nil(t, annualRecords(types.PixelResult{Status: types.StatusFlatCurve}))
}
