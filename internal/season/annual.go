package season

import (
	"gonum.org/v1/gonum/floats"

	"github.com/chrissnell/rainseason/internal/precip"
)

// AnnualSeason is one season re-detected inside a single hydrological year.
// Dates are hydro days counted from the start of that year and may fall
// outside 1..365 when a padded window reaches into a neighbouring year.
type AnnualSeason struct {
	Onset            int  `json:"onset" msgpack:"onset"`
	Cessation        int  `json:"cessation" msgpack:"cessation"`
	OnsetAnomaly     int  `json:"onset_anomaly" msgpack:"onset_anomaly"`
	CessationAnomaly int  `json:"cessation_anomaly" msgpack:"cessation_anomaly"`
	Detected         bool `json:"detected" msgpack:"detected"`
	Valid            bool `json:"valid" msgpack:"valid"`
}

// AnnualRecord holds a pixel's seasons for hydrological year Year, which
// starts in calendar year Year
type AnnualRecord struct {
	Year    int            `json:"year" msgpack:"year"`
	Seasons []AnnualSeason `json:"seasons" msgpack:"seasons"`
	Length  int            `json:"length" msgpack:"length"`
	Valid   bool           `json:"valid" msgpack:"valid"`
}

// hydroSeason returns season k of the long-term record in hydro days. The
// cessation is pushed past 365 when the season would otherwise end before it
// starts.
func (lt LongTerm) hydroSeason(k int) (onset, cessation int) {
	s := lt.Seasons[k]
	onset = DayInHydroYear(s.Onset, lt.HYearStart)
	cessation = DayInHydroYear(s.Cessation, lt.HYearStart)
	if cessation < onset {
		cessation += DaysPerCycle
	}
	return onset, cessation
}

// DetectAnnual re-detects the long-term seasons in every hydrological year
// fully covered by the series. Each window is compared against its own mean
// daily rate, so a dry year is not read as one long dry season.
func DetectAnnual(s precip.Series, lt LongTerm, p Params) []AnnualRecord {
	if s.Len() == 0 || len(lt.Seasons) == 0 {
		return nil
	}

	var records []AnnualRecord
	for y := s.Start.Year() - 1; y <= s.End().Year(); y++ {
		base := s.IndexOf(HydroYearStartDate(y, lt.HYearStart))

		rec := AnnualRecord{Year: y}
		covered := true

		switch lt.Regime {
		case RegimeBimodal:
			for k := range lt.Seasons {
				hOn, hCess := lt.hydroSeason(k)
				offset := hOn - 1 - p.SeasonMarginDays
				vals, ok := s.Window(base+offset, base+hCess+p.SeasonMarginDays)
				if !ok {
					covered = false
					break
				}
				rec.Seasons = append(rec.Seasons, detectWindow(vals, offset, p))
			}
		default:
			vals, ok := s.Window(base, base+DaysPerCycle)
			if !ok {
				covered = false
				break
			}
			rec.Seasons = append(rec.Seasons, detectWindow(vals, 0, p))
		}

		if !covered {
			continue
		}
		for _, as := range rec.Seasons {
			rec.Length += as.Cessation - as.Onset
		}
		records = append(records, rec)
	}

	return records
}

// detectWindow applies the single-season rule to one window. offset is the
// zero-based hydro index of the window's first day.
func detectWindow(vals []float64, offset int, p Params) AnnualSeason {
	curve := CumulativeAnomaly(vals)
	if isFlat(curve, p.FlatCurveEpsilon) {
		return AnnualSeason{}
	}
	return AnnualSeason{
		Onset:     offset + floats.MinIdx(curve) + 2,
		Cessation: offset + floats.MaxIdx(curve) + 1,
		Detected:  true,
	}
}
