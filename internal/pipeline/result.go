package pipeline

import (
	"errors"

	"github.com/chrissnell/rainseason/internal/covariates"
	"github.com/chrissnell/rainseason/internal/season"
	"github.com/chrissnell/rainseason/internal/types"
)

// StatusFor maps a detection error onto the pixel status recorded in the
// outputs
func StatusFor(err error) types.Status {
	switch {
	case err == nil:
		return types.StatusOK
	case errors.Is(err, season.ErrFlatCurve):
		return types.StatusFlatCurve
	case errors.Is(err, season.ErrAmbiguousExtrema):
		return types.StatusAmbiguousExtrema
	case errors.Is(err, season.ErrUnpairedExtrema):
		return types.StatusUnpairedExtrema
	case errors.Is(err, season.ErrInsufficientData):
		return types.StatusInsufficientData
	}
	// anything else is a series the detector refused to read
	return types.StatusInvalidSeries
}

// applySeason copies a season detection into r
func applySeason(r *types.PixelResult, res *season.Result) {
	lt := res.LongTerm
	r.Regime = int(lt.Regime)
	r.SeasonalityRatio = types.Float(lt.Harmonics.Ratio)
	r.Amplitude1 = types.Float(lt.Harmonics.Amplitude1)
	r.Amplitude2 = types.Float(lt.Harmonics.Amplitude2)
	r.HYearStart = lt.HYearStart

	r.Seasons = make([]types.SeasonDates, len(lt.Seasons))
	for i, s := range lt.Seasons {
		r.Seasons[i] = types.SeasonDates{Onset: s.Onset, Cessation: s.Cessation, Length: s.Length()}
	}

	sum := res.Summary
	r.LongTermLength = sum.LongTermLength
	r.MeanLength = types.Float(sum.MeanLength)
	r.LengthSD = types.Float(sum.LengthSD)
	r.OnsetAnomalySD = types.Floats(sum.OnsetAnomalySD)
	r.ValidYears = sum.ValidYears
	r.TotalYears = sum.TotalYears
	r.Masked = sum.Masked

	r.Annual = make([]types.AnnualRow, len(res.Annual))
	for i, rec := range res.Annual {
		row := types.AnnualRow{
			Year:    rec.Year,
			Length:  rec.Length,
			Valid:   rec.Valid,
			Seasons: make([]types.AnnualSeason, len(rec.Seasons)),
		}
		for k, s := range rec.Seasons {
			row.Seasons[k] = types.AnnualSeason{
				Onset:            s.Onset,
				Cessation:        s.Cessation,
				OnsetAnomaly:     s.OnsetAnomaly,
				CessationAnomaly: s.CessationAnomaly,
				Detected:         s.Detected,
				Valid:            s.Valid,
			}
		}
		r.Annual[i] = row
	}
}

// applyHarmonics records the part of a failed detection that is still
// meaningful
func applyHarmonics(r *types.PixelResult, lt season.LongTerm) {
	r.Regime = int(lt.Regime)
	r.SeasonalityRatio = types.Float(lt.Harmonics.Ratio)
	r.Amplitude1 = types.Float(lt.Harmonics.Amplitude1)
	r.Amplitude2 = types.Float(lt.Harmonics.Amplitude2)
}

func applyCovariates(r *types.PixelResult, sum *covariates.Summary) {
	r.Covariates = &types.Covariates{
		MAP:               types.Float(sum.MAP),
		WetDays:           types.Float(sum.WetDays),
		SDII:              types.Float(sum.SDII),
		PCI:               types.Float(sum.PCI),
		UGi:               types.Float(sum.UGi),
		HeavyRainFraction: types.Float(sum.HeavyRainFraction),
	}
	r.CovariateYears = make([]types.Covariates, len(sum.Years))
	for i, a := range sum.Years {
		r.CovariateYears[i] = types.Covariates{
			Year:              a.Year,
			MAP:               types.Float(a.Total),
			WetDays:           types.Float(a.WetDays),
			SDII:              types.Float(a.SDII),
			PCI:               types.Float(a.PCI),
			UGi:               types.Float(a.UGi),
			HeavyRainFraction: types.Float(a.HeavyRainFraction),
		}
	}
}
