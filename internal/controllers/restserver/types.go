package restserver

import (
	"time"

	"github.com/chrissnell/rainseason/internal/cache"
	"github.com/chrissnell/rainseason/internal/types"
)

// PixelSummary is the list view of a pixel
type PixelSummary struct {
	Pixel      string              `json:"pixel" msgpack:"pixel"`
	Row        int                 `json:"row" msgpack:"row"`
	Col        int                 `json:"col" msgpack:"col"`
	Lon        float64             `json:"lon" msgpack:"lon"`
	Lat        float64             `json:"lat" msgpack:"lat"`
	Status     types.Status        `json:"status" msgpack:"status"`
	Regime     int                 `json:"regime" msgpack:"regime"`
	Seasons    []types.SeasonDates `json:"seasons" msgpack:"seasons"`
	MeanLength types.Float         `json:"mean_length" msgpack:"mean_length"`
	Masked     bool                `json:"masked" msgpack:"masked"`
	RunID      string              `json:"run_id" msgpack:"run_id"`
}

// AnnualResponse holds a pixel's per-year season dates and covariates
type AnnualResponse struct {
	Pixel          string             `json:"pixel" msgpack:"pixel"`
	HYearStart     int                `json:"hyear_start" msgpack:"hyear_start"`
	Masked         bool               `json:"masked" msgpack:"masked"`
	Seasons        []types.AnnualRow  `json:"seasons" msgpack:"seasons"`
	CovariateYears []types.Covariates `json:"covariate_years" msgpack:"covariate_years"`
}

// CacheStatsResponse is returned by /cache/stats
type CacheStatsResponse struct {
	Stages []cache.StageStats `json:"stages" msgpack:"stages"`
}

// HealthResponse is returned by /healthz
type HealthResponse struct {
	Status   string `json:"status" msgpack:"status"`
	Pixels   int    `json:"pixels" msgpack:"pixels"`
	Database bool   `json:"database" msgpack:"database"`
}

// RunSummary is one row of the season_run_summary view
type RunSummary struct {
	RunID      string    `json:"run_id" msgpack:"run_id"`
	Status     string    `json:"status" msgpack:"status"`
	Pixels     int64     `json:"pixels" msgpack:"pixels"`
	Masked     int64     `json:"masked" msgpack:"masked"`
	MeanLength *float64  `json:"mean_length" msgpack:"mean_length"`
	MeanOnset1 *float64  `gorm:"column:mean_onset1" json:"mean_onset1" msgpack:"mean_onset1"`
	Started    time.Time `json:"started" msgpack:"started"`
	Finished   time.Time `json:"finished" msgpack:"finished"`
}
