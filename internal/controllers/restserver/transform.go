package restserver

import (
	"github.com/chrissnell/rainseason/internal/types"
)

func transformPixelSummary(r types.PixelResult) PixelSummary {
	s := PixelSummary{
		Pixel:      r.Label,
		Row:        r.Row,
		Col:        r.Col,
		Lon:        r.Lon,
		Lat:        r.Lat,
		Status:     r.Status,
		Regime:     r.Regime,
		Seasons:    r.Seasons,
		MeanLength: r.MeanLength,
		Masked:     r.Masked,
		RunID:      r.RunID,
	}
	if s.Seasons == nil {
		s.Seasons = []types.SeasonDates{}
	}
	return s
}

// transformAnnual drops the season dates of masked pixels; their covariates
// are still reported
func transformAnnual(r types.PixelResult) AnnualResponse {
	a := AnnualResponse{
		Pixel:          r.Label,
		HYearStart:     r.HYearStart,
		Masked:         r.Masked,
		Seasons:        r.Annual,
		CovariateYears: r.CovariateYears,
	}
	if r.Masked || a.Seasons == nil {
		a.Seasons = []types.AnnualRow{}
	}
	if a.CovariateYears == nil {
		a.CovariateYears = []types.Covariates{}
	}
	return a
}
