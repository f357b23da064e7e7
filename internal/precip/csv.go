package precip

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CSVOptions holds options for loading long-format precipitation CSV files.
type CSVOptions struct {
	RowColumn     string   // Column name for the grid row (default: "row")
	ColColumn     string   // Column name for the grid column (default: "col")
	DateColumn    string   // Column name for dates (default: "date")
	ValueColumn   string   // Column name for values (default: "precip")
	DateFormat    string   // Date format (default: "2006-01-02")
	Delimiter     rune     // Field delimiter (default: ',')
	NoDataValue   *float64 // Values equal to this mark the pixel as missing data (optional)
	ClampNegative bool     // Replace negative values with zero instead of failing
}

// DefaultCSVOptions returns default options for CSV loading.
func DefaultCSVOptions() *CSVOptions {
	return &CSVOptions{
		RowColumn:   "row",
		ColColumn:   "col",
		DateColumn:  "date",
		ValueColumn: "precip",
		DateFormat:  "2006-01-02",
		Delimiter:   ',',
	}
}

type dailyValue struct {
	date  time.Time
	value float64
}

// LoadCSV loads every pixel series from a CSV file. Files ending in .gz are
// decompressed on the fly.
func LoadCSV(filename string, opts *CSVOptions) ([]Pixel, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(filename, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("could not open gzip stream %s: %w", filename, err)
		}
		defer gz.Close()
		r = gz
	}

	return LoadCSVFromReader(r, opts)
}

// LoadCSVFromReader loads pixel series from an io.Reader. Rows may appear in
// any order. Malformed CSV aborts the load, but a pixel whose days do not form
// a complete, valid run is still returned with LoadErr set.
func LoadCSVFromReader(r io.Reader, opts *CSVOptions) ([]Pixel, error) {
	if opts == nil {
		opts = DefaultCSVOptions()
	}

	reader := csv.NewReader(r)
	reader.Comma = opts.Delimiter
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("could not read CSV header: %w", err)
	}

	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	cols := make([]int, 4)
	for i, name := range []string{opts.RowColumn, opts.ColColumn, opts.DateColumn, opts.ValueColumn} {
		j, ok := idx[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("CSV header is missing column %q", name)
		}
		cols[i] = j
	}

	byPixel := map[[2]int][]dailyValue{}
	noData := map[[2]int]string{}
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row, err := strconv.Atoi(rec[cols[0]])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid row: %w", line, err)
		}
		col, err := strconv.Atoi(rec[cols[1]])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid col: %w", line, err)
		}
		date, err := time.Parse(opts.DateFormat, rec[cols[2]])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date: %w", line, err)
		}
		value, err := strconv.ParseFloat(rec[cols[3]], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid value: %w", line, err)
		}
		key := [2]int{row, col}
		if opts.NoDataValue != nil && value == *opts.NoDataValue {
			value = math.NaN()
			if _, ok := noData[key]; !ok {
				noData[key] = rec[cols[2]]
			}
		}
		if value < 0 && opts.ClampNegative {
			value = 0
		}

		byPixel[key] = append(byPixel[key], dailyValue{date: date, value: value})
	}

	pixels := make([]Pixel, 0, len(byPixel))
	for key, days := range byPixel {
		s, err := assemble(days)
		if day, ok := noData[key]; ok {
			err = fmt.Errorf("%w on %s", ErrNoData, day)
		}
		pixels = append(pixels, Pixel{Row: key[0], Col: key[1], Series: s, LoadErr: err})
	}

	sort.Slice(pixels, func(i, j int) bool {
		if pixels[i].Row != pixels[j].Row {
			return pixels[i].Row < pixels[j].Row
		}
		return pixels[i].Col < pixels[j].Col
	})

	return pixels, nil
}

// assemble lays days out from the first to the last date. Missing days are
// NaN; the returned error names the first defect found.
func assemble(days []dailyValue) (Series, error) {
	sort.SliceStable(days, func(i, j int) bool { return days[i].date.Before(days[j].date) })

	s := NewSeries(days[0].date, nil)
	s.Values = make([]float64, s.IndexOf(days[len(days)-1].date)+1)
	seen := make([]bool, len(s.Values))

	var err error
	for _, d := range days {
		i := s.IndexOf(d.date)
		if seen[i] && err == nil {
			err = fmt.Errorf("duplicate date %s", d.date.Format("2006-01-02"))
		}
		seen[i] = true
		s.Values[i] = d.value
	}
	for i, ok := range seen {
		if ok {
			continue
		}
		s.Values[i] = math.NaN()
		if err == nil {
			err = fmt.Errorf("%w on %s", ErrGap, s.Date(i).Format("2006-01-02"))
		}
	}

	if err == nil {
		err = s.Validate()
	}
	return s, err
}

// WriteCSV writes pixels in the long format read by LoadCSVFromReader
func WriteCSV(w io.Writer, pixels []Pixel) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"row", "col", "date", "precip"}); err != nil {
		return err
	}

	rec := make([]string, 4)
	for _, p := range pixels {
		rec[0] = strconv.Itoa(p.Row)
		rec[1] = strconv.Itoa(p.Col)
		for i, v := range p.Series.Values {
			rec[2] = p.Series.Date(i).Format("2006-01-02")
			rec[3] = strconv.FormatFloat(v, 'f', -1, 64)
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
