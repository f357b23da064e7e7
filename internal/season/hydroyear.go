package season

import (
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// DayOfYear returns the ordinal Gregorian day of t (1..366)
func DayOfYear(t time.Time) int {
	return julian.DayOfYearGregorian(t.Year(), int(t.Month()), t.Day())
}

// HydroYearStart places the start of a pixel's hydrological year leadDays
// before its long-term onset. The result is a day of year in 1..365.
func HydroYearStart(onset, leadDays int) int {
	s := (onset + DaysPerCycle - leadDays) % DaysPerCycle
	if s == 0 {
		return DaysPerCycle
	}
	return s
}

// DayInHydroYear converts a day of year to a 1-based day of the hydrological
// year that starts on day start
func DayInHydroYear(doy, start int) int {
	return cyclic(doy-start, DaysPerCycle) + 1
}

// DOYFromHydroDay is the inverse of DayInHydroYear. Hydro days outside 1..365,
// as produced by windows that reach into the neighbouring years, wrap.
func DOYFromHydroDay(h, start int) int {
	return cyclic(h-1+start-1, DaysPerCycle) + 1
}

// HydroYearStartDate returns the calendar day on which hydrological year
// `year` begins
func HydroYearStartDate(year, start int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, start-1)
}
