package tabular

import (
	"context"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/rainseason/internal/types"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func column(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func TestTablesFromChannel(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tables")
	s, err := New(dir)
	require.NoError(t, err)

	var wg sync.WaitGroup
	ch := s.StartStorageEngine(context.Background(), &wg)

	ch <- types.PixelResult{
		Label: "1_0", Row: 1, Col: 0, InStudyArea: true, Status: types.StatusOK, Regime: 2,
		Seasons:        []types.SeasonDates{{Onset: 60, Cessation: 120}, {Onset: 220, Cessation: 280}},
		MeanLength:     types.Float(118.5),
		LengthSD:       types.Float(math.NaN()),
		OnsetAnomalySD: []types.Float{4, 6},
		Covariates:     &types.Covariates{MAP: 640, PCI: types.Float(math.NaN())},
		Annual: []types.AnnualRow{{
			Year: 2002, Length: 120, Valid: true,
			Seasons: []types.AnnualSeason{
				{Onset: 10, Cessation: 70, OnsetAnomaly: 2, Valid: true},
				{Onset: 170, Cessation: 230, Valid: true},
			},
		}},
		CovariateYears: []types.Covariates{{Year: 2002, MAP: 600}, {Year: 2003, MAP: 680}},
	}
	ch <- types.PixelResult{Label: "0_5", Row: 0, Col: 5, InStudyArea: true, Status: types.StatusFlatCurve}
	ch <- types.PixelResult{Label: "0_0", Row: 0, Col: 0, Status: types.StatusOutsideStudyArea}
	close(ch)
	wg.Wait()

	multi := readCSV(t, filepath.Join(dir, MultiAnnualFile))
	require.Len(t, multi, 3, "header plus the two study-area pixels")
	header := multi[0]
	assert.Equal(t, multiAnnualHeader, header)
	assert.Equal(t, "0_5", multi[1][0], "rows are ordered by row then column")

	bimodal := multi[2]
	assert.Equal(t, "1_0", bimodal[0])
	assert.Equal(t, "220", bimodal[column(header, "onset_2")])
	assert.Equal(t, "118.5", bimodal[column(header, "mean_length")])
	assert.Equal(t, "NA", bimodal[column(header, "length_sd")])
	assert.Equal(t, "6", bimodal[column(header, "onset_sd_2")])
	assert.Equal(t, "640", bimodal[column(header, "map")])
	assert.Equal(t, "NA", bimodal[column(header, "pci")])

	failed := multi[1]
	assert.Equal(t, "flat_curve", failed[column(header, "status")])
	assert.Equal(t, "NA", failed[column(header, "onset_1")])
	assert.Equal(t, "NA", failed[column(header, "map")])

	annual := readCSV(t, filepath.Join(dir, AnnualFile))
	require.Len(t, annual, 3, "header plus 2002 and 2003 for the bimodal pixel")
	ah := annual[0]
	assert.Equal(t, "2002", annual[1][column(ah, "year")])
	assert.Equal(t, "10", annual[1][column(ah, "onset_hday_1")])
	assert.Equal(t, "2", annual[1][column(ah, "onset_anomaly_1")])
	assert.Equal(t, "170", annual[1][column(ah, "onset_hday_2")])
	assert.Equal(t, "600", annual[1][column(ah, "total")])
	assert.Equal(t, "2003", annual[2][column(ah, "year")])
	assert.Equal(t, "NA", annual[2][column(ah, "onset_hday_1")])
	assert.Equal(t, "false", annual[2][column(ah, "valid")])
	assert.Equal(t, "680", annual[2][column(ah, "total")])
}

func TestMaskedPixelHasNoAnnualDates(t *testing.T) {
	r := types.PixelResult{
		Label: "0_0", InStudyArea: true, Status: types.StatusOK, Masked: true,
		Seasons:    []types.SeasonDates{{Onset: 100, Cessation: 260}},
		MeanLength: 160,
		Annual: []types.AnnualRow{{
			Year: 2004, Length: 160, Valid: true,
			Seasons: []types.AnnualSeason{{Onset: 31, Cessation: 190, Valid: true}},
		}},
	}

	multi := multiAnnualRows(r)[0]
	assert.Equal(t, "100", multi[column(multiAnnualHeader, "onset_1")])
	assert.Equal(t, "NA", multi[column(multiAnnualHeader, "mean_length")])
	assert.Equal(t, "true", multi[column(multiAnnualHeader, "masked")])

	annual := annualRows(r)
	require.Len(t, annual, 1)
	assert.Equal(t, "NA", annual[0][column(annualHeader, "onset_hday_1")])
	assert.Equal(t, "NA", annual[0][column(annualHeader, "length")])
}

func TestAnnualDatesAreNamedAsHydroDays(t *testing.T) {
	// df_multi_annual.csv carries day-of-year dates, df_annual.csv hydro days
	for _, name := range []string{"onset_1", "cessation_1", "onset_2", "cessation_2"} {
		assert.Contains(t, multiAnnualHeader, name)
		assert.NotContains(t, annualHeader, name)
	}
	assert.Contains(t, annualHeader, "onset_hday_1")
	assert.Contains(t, annualHeader, "cessation_hday_2")
}
