// Package constants defines application-wide constants and version information.
package constants

import "runtime"

// Version holds the application version information
const Version = "1.2-" + runtime.GOOS + "/" + runtime.GOARCH

// Cache stage names and the version of the code that produces each stage.
// Bump a stage version whenever its output for the same input changes; older
// cache rows are then ignored and can be removed with `rainseason cache purge`.
const (
	StageSeason     = "season"
	StageCovariates = "covariates"
	StagePixel      = "pixel"

	SeasonStageVersion     = 4
	CovariateStageVersion  = 2
	PixelStageVersion      = 1
	DefaultDateLayout      = "2006-01-02"
	DefaultMissingCSVValue = "NA"
)
