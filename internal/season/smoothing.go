package season

// SmoothCyclic applies a centred moving average of 2*halfWidth+1 days to a
// curve that wraps around, so day 1 averages over the end of the cycle too.
func SmoothCyclic(curve []float64, halfWidth int) []float64 {
	n := len(curve)
	smoothed := make([]float64, n)
	if n == 0 || halfWidth <= 0 {
		copy(smoothed, curve)
		return smoothed
	}

	width := 2*halfWidth + 1
	sum := 0.0
	for k := -halfWidth; k <= halfWidth; k++ {
		sum += curve[cyclic(k, n)]
	}
	smoothed[0] = sum / float64(width)

	// Slide the window one day at a time
	for i := 1; i < n; i++ {
		sum += curve[cyclic(i+halfWidth, n)] - curve[cyclic(i-halfWidth-1, n)]
		smoothed[i] = sum / float64(width)
	}
	return smoothed
}

func cyclic(i, n int) int {
	return ((i % n) + n) % n
}

// LocalExtrema returns the indices that equal the minimum (maximum) of the
// cyclic window [i-halfWidth, i+halfWidth]. A day whose whole window is flat
// is not an extremum by itself, but a flat stretch bordered on both sides by
// extrema of one kind joins them into a single plateau. Runs of adjacent tied
// candidates collapse to the first index of the run. A curve that is flat
// everywhere yields index 0 for both.
func LocalExtrema(curve []float64, halfWidth int) (minima, maxima []int) {
	n := len(curve)
	if n == 0 {
		return nil, nil
	}

	isMin := make([]bool, n)
	isMax := make([]bool, n)
	flat := make([]bool, n)
	allFlat := true
	for i := 0; i < n; i++ {
		lo, hi := true, true
		for k := -halfWidth; k <= halfWidth && (lo || hi); k++ {
			v := curve[cyclic(i+k, n)]
			if v < curve[i] {
				lo = false
			}
			if v > curve[i] {
				hi = false
			}
		}
		flat[i] = lo && hi
		allFlat = allFlat && flat[i]
		isMin[i] = lo && !flat[i]
		isMax[i] = hi && !flat[i]
	}
	if allFlat {
		return []int{0}, []int{0}
	}

	bridgeFlat(isMin, flat)
	bridgeFlat(isMax, flat)
	return collapseRuns(isMin), collapseRuns(isMax)
}

// bridgeFlat marks each cyclic run of flat days whose neighbours on both
// sides are flagged. flat must not be true everywhere.
func bridgeFlat(flags, flat []bool) {
	n := len(flags)
	for s := 0; s < n; s++ {
		if !flat[s] || flat[cyclic(s-1, n)] {
			continue
		}
		e := s
		for flat[cyclic(e+1, n)] {
			e++
		}
		if flags[cyclic(s-1, n)] && flags[cyclic(e+1, n)] {
			for i := s; i <= e; i++ {
				flags[cyclic(i, n)] = true
			}
		}
	}
}

// collapseRuns keeps the first index of each cyclic run of true values
func collapseRuns(flags []bool) []int {
	n := len(flags)
	all := true
	for _, f := range flags {
		all = all && f
	}
	if all {
		return []int{0}
	}

	var out []int
	for i := 0; i < n; i++ {
		if flags[i] && !flags[cyclic(i-1, n)] {
			out = append(out, i)
		}
	}
	return out
}
