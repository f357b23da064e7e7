// Package tabular writes the model tables: one row per study-area pixel
// (df_multi_annual.csv) and one row per pixel and year (df_annual.csv).
package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/chrissnell/rainseason/internal/constants"
	"github.com/chrissnell/rainseason/internal/log"
	"github.com/chrissnell/rainseason/internal/storage"
	"github.com/chrissnell/rainseason/internal/types"
)

const (
	MultiAnnualFile = "df_multi_annual.csv"
	AnnualFile      = "df_annual.csv"
)

var multiAnnualHeader = []string{
	"pixel", "row", "col", "lon", "lat", "status", "regime", "seasonality_ratio", "hyear_start",
	"onset_1", "cessation_1", "onset_2", "cessation_2",
	"long_term_length", "mean_length", "length_sd", "onset_sd_1", "onset_sd_2",
	"valid_years", "total_years", "masked",
	"map", "wet_days", "sdii", "pci", "ugi", "heavy_rain_fraction",
}

var annualHeader = []string{
	"pixel", "row", "col", "year",
	"onset_hday_1", "cessation_hday_1", "onset_anomaly_1", "cessation_anomaly_1",
	"onset_hday_2", "cessation_hday_2", "onset_anomaly_2", "cessation_anomaly_2",
	"length", "valid",
	"total", "wet_days", "sdii", "pci", "ugi", "heavy_rain_fraction",
}

// Storage buffers the results of a run and writes both tables when the run
// ends. Pixels outside the study area are left out.
type Storage struct {
	dir     string
	mu      sync.Mutex
	results []types.PixelResult
}

// New returns a tabular engine writing into dir
func New(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create table directory: %w", err)
	}
	return &Storage{dir: dir}, nil
}

// StartStorageEngine creates a goroutine loop to receive results and write
// the tables once the channel closes
func (t *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.PixelResult {
	log.Infof("starting tabular storage engine in %s...", t.dir)
	resultChan := make(chan types.PixelResult, 10)
	wg.Add(1)
	go storage.ProcessResults(ctx, wg, resultChan, t.StoreResult, t.Flush, "tabular")
	return resultChan
}

// StoreResult buffers r
func (t *Storage) StoreResult(r types.PixelResult) error {
	if !r.InStudyArea {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results = append(t.results, r)
	return nil
}

// Flush writes the buffered results, ordered by row and column
func (t *Storage) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	sort.Slice(t.results, func(i, j int) bool {
		a, b := t.results[i], t.results[j]
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})

	if err := t.writeFile(MultiAnnualFile, multiAnnualHeader, multiAnnualRows); err != nil {
		return err
	}
	if err := t.writeFile(AnnualFile, annualHeader, annualRows); err != nil {
		return err
	}
	log.Infof("wrote %d pixels to %s", len(t.results), t.dir)
	return nil
}

func (t *Storage) writeFile(name string, header []string, rows func(types.PixelResult) [][]string) error {
	path := filepath.Join(t.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	for _, r := range t.results {
		if err := w.WriteAll(rows(r)); err != nil {
			f.Close()
			return fmt.Errorf("could not write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func multiAnnualRows(r types.PixelResult) [][]string {
	row := []string{
		r.Label, strconv.Itoa(r.Row), strconv.Itoa(r.Col),
		fmtFloat(types.Float(r.Lon)), fmtFloat(types.Float(r.Lat)),
		string(r.Status), fmtInt(r.Regime, r.Regime > 0), fmtFloat(r.SeasonalityRatio),
		fmtInt(r.HYearStart, r.HYearStart > 0),
	}
	for k := 0; k < 2; k++ {
		if k < len(r.Seasons) {
			row = append(row, strconv.Itoa(r.Seasons[k].Onset), strconv.Itoa(r.Seasons[k].Cessation))
		} else {
			row = append(row, constants.DefaultMissingCSVValue, constants.DefaultMissingCSVValue)
		}
	}

	usable := r.Usable()
	row = append(row,
		fmtInt(r.LongTermLength, len(r.Seasons) > 0),
		fmtUsable(r.MeanLength, usable),
		fmtUsable(r.LengthSD, usable),
		fmtUsable(r.OnsetAnomalySDOf(0), usable),
		fmtUsable(r.OnsetAnomalySDOf(1), usable),
		strconv.Itoa(r.ValidYears), strconv.Itoa(r.TotalYears), strconv.FormatBool(r.Masked),
	)

	c := r.Covariates
	if c == nil {
		for i := 0; i < 6; i++ {
			row = append(row, constants.DefaultMissingCSVValue)
		}
		return [][]string{row}
	}
	row = append(row, fmtFloat(c.MAP), fmtFloat(c.WetDays), fmtFloat(c.SDII), fmtFloat(c.PCI), fmtFloat(c.UGi), fmtFloat(c.HeavyRainFraction))
	return [][]string{row}
}

func annualRows(r types.PixelResult) [][]string {
	seasons := make(map[int]types.AnnualRow)
	covs := make(map[int]types.Covariates)
	years := make(map[int]bool)
	for _, a := range r.Annual {
		seasons[a.Year] = a
		years[a.Year] = true
	}
	for _, c := range r.CovariateYears {
		covs[c.Year] = c
		years[c.Year] = true
	}

	sorted := make([]int, 0, len(years))
	for y := range years {
		sorted = append(sorted, y)
	}
	sort.Ints(sorted)

	rows := make([][]string, 0, len(sorted))
	for _, y := range sorted {
		row := []string{r.Label, strconv.Itoa(r.Row), strconv.Itoa(r.Col), strconv.Itoa(y)}

		a, ok := seasons[y]
		for k := 0; k < 2; k++ {
			if ok && k < len(a.Seasons) && a.Seasons[k].Valid && !r.Masked {
				s := a.Seasons[k]
				row = append(row, strconv.Itoa(s.Onset), strconv.Itoa(s.Cessation),
					strconv.Itoa(s.OnsetAnomaly), strconv.Itoa(s.CessationAnomaly))
				continue
			}
			row = append(row, constants.DefaultMissingCSVValue, constants.DefaultMissingCSVValue,
				constants.DefaultMissingCSVValue, constants.DefaultMissingCSVValue)
		}
		row = append(row, fmtInt(a.Length, ok && a.Valid && !r.Masked), strconv.FormatBool(ok && a.Valid && !r.Masked))

		if c, ok := covs[y]; ok {
			row = append(row, fmtFloat(c.MAP), fmtFloat(c.WetDays), fmtFloat(c.SDII), fmtFloat(c.PCI), fmtFloat(c.UGi), fmtFloat(c.HeavyRainFraction))
		} else {
			for i := 0; i < 6; i++ {
				row = append(row, constants.DefaultMissingCSVValue)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func fmtFloat(f types.Float) string {
	if f.IsMissing() {
		return constants.DefaultMissingCSVValue
	}
	return strconv.FormatFloat(float64(f), 'f', -1, 64)
}

func fmtUsable(f types.Float, usable bool) string {
	if !usable {
		return constants.DefaultMissingCSVValue
	}
	return fmtFloat(f)
}

func fmtInt(v int, ok bool) string {
	if !ok {
		return constants.DefaultMissingCSVValue
	}
	return strconv.Itoa(v)
}
