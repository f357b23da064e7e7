package season

// AnomalyValid reports whether a season detected in one year is close enough
// to the long-term dates to be trusted. Anomalies are long-term minus annual,
// in days, and seasonLength is the long-term length of the season.
func (p Params) AnomalyValid(onsetAnomaly, cessationAnomaly, seasonLength int) bool {
	tol := p.AnomalyToleranceDays
	return onsetAnomaly >= -tol &&
		onsetAnomaly < seasonLength &&
		cessationAnomaly+seasonLength > 0 &&
		cessationAnomaly <= tol
}

// Evaluate fills in the anomalies of every annual season and marks a year
// valid when all of its seasons pass AnomalyValid and none ends before it
// starts.
func Evaluate(lt LongTerm, records []AnnualRecord, p Params) {
	for i := range records {
		rec := &records[i]
		rec.Valid = len(rec.Seasons) == len(lt.Seasons)

		for k := range rec.Seasons {
			as := &rec.Seasons[k]
			if k >= len(lt.Seasons) || !as.Detected {
				as.Valid = false
				rec.Valid = false
				continue
			}

			hOn, hCess := lt.hydroSeason(k)
			as.OnsetAnomaly = hOn - as.Onset
			as.CessationAnomaly = hCess - as.Cessation
			as.Valid = as.Cessation >= as.Onset && p.AnomalyValid(as.OnsetAnomaly, as.CessationAnomaly, hCess-hOn)
			rec.Valid = rec.Valid && as.Valid
		}
	}
}

// ApplyQuorum drops every year of a pixel whose share of valid years is below
// quorum. It reports whether the pixel was masked. A pixel with no years at all
// is masked.
func ApplyQuorum(records []AnnualRecord, quorum float64) bool {
	if len(records) == 0 {
		return true
	}
	if float64(CountValid(records))/float64(len(records)) >= quorum {
		return false
	}

	for i := range records {
		records[i].Valid = false
	}
	return true
}

// CountValid returns the number of valid years
func CountValid(records []AnnualRecord) int {
	n := 0
	for _, r := range records {
		if r.Valid {
			n++
		}
	}
	return n
}
