package season

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Summary aggregates a pixel's long-term and annual seasons. Statistics that
// need more valid years than the pixel has are NaN rather than zero.
type Summary struct {
	LongTermLength int       `json:"long_term_length" msgpack:"long_term_length"`
	MeanLength     float64   `json:"mean_length" msgpack:"mean_length"`
	LengthSD       float64   `json:"length_sd" msgpack:"length_sd"`
	OnsetAnomalySD []float64 `json:"onset_anomaly_sd" msgpack:"onset_anomaly_sd"`
	ValidYears     int       `json:"valid_years" msgpack:"valid_years"`
	TotalYears     int       `json:"total_years" msgpack:"total_years"`
	Masked         bool      `json:"masked" msgpack:"masked"`
}

// Summarize computes season lengths and their spread over the valid years.
// Bimodal pixels add both seasons into one length.
func Summarize(lt LongTerm, records []AnnualRecord, masked bool) Summary {
	sum := Summary{
		OnsetAnomalySD: make([]float64, len(lt.Seasons)),
		TotalYears:     len(records),
		Masked:         masked,
	}
	for _, s := range lt.Seasons {
		sum.LongTermLength += s.Length()
	}

	var lengths []float64
	onsets := make([][]float64, len(lt.Seasons))
	for _, r := range records {
		if !r.Valid {
			continue
		}
		lengths = append(lengths, float64(r.Length))
		for k, as := range r.Seasons {
			if k < len(onsets) {
				onsets[k] = append(onsets[k], float64(as.OnsetAnomaly))
			}
		}
	}

	sum.ValidYears = len(lengths)
	sum.MeanLength = math.NaN()
	if len(lengths) > 0 {
		sum.MeanLength = stat.Mean(lengths, nil)
	}
	sum.LengthSD = stdDevOrNaN(lengths)
	for k := range onsets {
		sum.OnsetAnomalySD[k] = stdDevOrNaN(onsets[k])
	}

	return sum
}

// stdDevOrNaN is the sample standard deviation, missing below two values
func stdDevOrNaN(x []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	return stat.StdDev(x, nil)
}
