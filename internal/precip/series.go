// Package precip holds daily precipitation series and the loaders that produce them.
package precip

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrEmptySeries   = errors.New("precipitation series is empty")
	ErrNegativeValue = errors.New("precipitation series contains a negative value")
	ErrNonFinite     = errors.New("precipitation series contains a non-finite value")
	ErrGap           = errors.New("precipitation series has a gap")
	ErrNoData        = errors.New("precipitation series has no data")
)

// Series is a gap-free daily precipitation record in mm/day.
// Values[i] is the total for Start + i days.
type Series struct {
	Start  time.Time
	Values []float64
}

// NewSeries truncates start to a UTC calendar day so that day arithmetic is exact
func NewSeries(start time.Time, values []float64) Series {
	return Series{
		Start:  time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		Values: values,
	}
}

// Len returns the number of days in the series
func (s Series) Len() int {
	return len(s.Values)
}

// Date returns the calendar day at index i
func (s Series) Date(i int) time.Time {
	return s.Start.AddDate(0, 0, i)
}

// End returns the last calendar day covered by the series
func (s Series) End() time.Time {
	return s.Date(len(s.Values) - 1)
}

// IndexOf returns the index of day t. The result may fall outside [0, Len()).
func (s Series) IndexOf(t time.Time) int {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Round(day.Sub(s.Start).Hours() / 24))
}

// Window returns Values[from:to] when the range is fully covered
func (s Series) Window(from, to int) ([]float64, bool) {
	if from < 0 || to > len(s.Values) || from >= to {
		return nil, false
	}
	return s.Values[from:to], true
}

// Validate checks the series invariants: at least one value, every value finite
// and non-negative.
func (s Series) Validate() error {
	if len(s.Values) == 0 {
		return ErrEmptySeries
	}
	for i, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w on %s", ErrNonFinite, s.Date(i).Format("2006-01-02"))
		}
		if v < 0 {
			return fmt.Errorf("%w (%.3f) on %s", ErrNegativeValue, v, s.Date(i).Format("2006-01-02"))
		}
	}
	return nil
}

// Pixel is one grid cell and its precipitation record
type Pixel struct {
	Row    int
	Col    int
	Series Series
	// LoadErr is set by loaders when the record could not be read as a
	// valid series. Series then holds what was read.
	LoadErr error
}

// Err reports why the pixel's series cannot be analysed, or nil
func (p Pixel) Err() error {
	if p.LoadErr != nil {
		return p.LoadErr
	}
	return p.Series.Validate()
}

// Label identifies a pixel in cache keys, file names and REST paths
func (p Pixel) Label() string {
	return Label(p.Row, p.Col)
}

// Label formats a grid position as "<row>_<col>"
func Label(row, col int) string {
	return fmt.Sprintf("%d_%d", row, col)
}

// ParseLabel is the inverse of Label
func ParseLabel(label string) (row, col int, err error) {
	if _, err := fmt.Sscanf(label, "%d_%d", &row, &col); err != nil {
		return 0, 0, fmt.Errorf("invalid pixel label %q: %w", label, err)
	}
	return row, col, nil
}
