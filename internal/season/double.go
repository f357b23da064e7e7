package season

import (
	"errors"
	"sort"
)

// DoubleResult holds the two seasons of a bimodal pixel. Seasons[0] is the
// season that follows the longer dry spell, which is the main rainy season in
// most of the bimodal rangelands.
type DoubleResult struct {
	Seasons [2]Season
	// HalfWidth is the extrema window that resolved the seasons
	HalfWidth int
}

// ExtractDouble reads two seasons off a 365-day cumulative anomaly curve. The
// curve is smoothed, then local extrema are searched with progressively
// narrower windows until one yields exactly two troughs and two peaks.
func ExtractDouble(curve []float64, p Params) (DoubleResult, error) {
	if len(curve) != DaysPerCycle {
		return DoubleResult{}, ErrInsufficientData
	}

	smoothed := SmoothCyclic(curve, p.SmoothingHalfWidth)
	if isFlat(smoothed, p.FlatCurveEpsilon) {
		return DoubleResult{}, ErrFlatCurve
	}

	var lastErr error = ErrAmbiguousExtrema
	for _, w := range p.ExtremaHalfWidths {
		minima, maxima := LocalExtrema(smoothed, w)
		if len(minima) != 2 || len(maxima) != 2 {
			continue
		}

		onsets := []int{wrapDOY(minima[0] + 2), wrapDOY(minima[1] + 2)}
		cessations := []int{maxima[0] + 1, maxima[1] + 1}

		seasons, err := pairSeasons(onsets, cessations)
		if err != nil {
			lastErr = err
			continue
		}
		return DoubleResult{Seasons: seasons, HalfWidth: w}, nil
	}

	return DoubleResult{}, lastErr
}

type seasonEvent struct {
	day   int
	onset bool
}

// pairSeasons matches each onset with the first cessation after it, going round
// the year if needed. Onsets and cessations must alternate around the cycle.
func pairSeasons(onsets, cessations []int) ([2]Season, error) {
	var out [2]Season
	if len(onsets) != 2 || len(cessations) != 2 {
		return out, errors.New("pairing needs two onsets and two cessations")
	}

	events := make([]seasonEvent, 0, 4)
	for _, d := range onsets {
		events = append(events, seasonEvent{day: d, onset: true})
	}
	for _, d := range cessations {
		events = append(events, seasonEvent{day: d})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].day != events[j].day {
			return events[i].day < events[j].day
		}
		// a cessation on the same day closes the previous season first
		return !events[i].onset && events[j].onset
	})

	for i := range events {
		if events[i].onset == events[(i+1)%len(events)].onset {
			return out, ErrUnpairedExtrema
		}
	}

	k := 0
	for i, e := range events {
		if e.onset {
			out[k] = Season{Onset: e.day, Cessation: events[(i+1)%len(events)].day}
			k++
		}
	}

	// The dry spell before a season runs from the other season's cessation
	gap0 := (out[0].Onset - out[1].Cessation + DaysPerCycle) % DaysPerCycle
	gap1 := (out[1].Onset - out[0].Cessation + DaysPerCycle) % DaysPerCycle
	if gap1 > gap0 {
		out[0], out[1] = out[1], out[0]
	}
	return out, nil
}
