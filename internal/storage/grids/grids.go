// Package grids writes pixel results back out as ESRI ASCII rasters, one
// file per variable (and per year for annual variables), in the directory
// layout the GIS side expects.
package grids

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/chrissnell/rainseason/internal/log"
	"github.com/chrissnell/rainseason/internal/mask"
	"github.com/chrissnell/rainseason/internal/raster"
	"github.com/chrissnell/rainseason/internal/storage"
	"github.com/chrissnell/rainseason/internal/types"
)

const (
	SeasonDir  = "season_variables"
	AnnualDir  = "annual_variables"
	MainDir    = "main_variables"
	MasksDir   = "study_area_masks"
	fileSuffix = ".asc"
)

type pixelValue func(types.PixelResult) (float64, bool)

// seasonVariables are long-term season properties of every detected pixel
var seasonVariables = map[string]pixelValue{
	"regime":            func(r types.PixelResult) (float64, bool) { return float64(r.Regime), r.Regime > 0 },
	"seasonality_ratio": func(r types.PixelResult) (float64, bool) { return float64(r.SeasonalityRatio), r.Regime > 0 },
	"hyear_start":       func(r types.PixelResult) (float64, bool) { return float64(r.HYearStart), r.HYearStart > 0 },
	"onset_1":           seasonDate(0, true),
	"cessation_1":       seasonDate(0, false),
	"onset_2":           seasonDate(1, true),
	"cessation_2":       seasonDate(1, false),
	"long_term_length":  func(r types.PixelResult) (float64, bool) { return float64(r.LongTermLength), len(r.Seasons) > 0 },
}

// mainVariables are the model covariates, defined only for usable pixels
var mainVariables = map[string]pixelValue{
	"mean_length": usableFloat(func(r types.PixelResult) types.Float { return r.MeanLength }),
	"length_sd":   usableFloat(func(r types.PixelResult) types.Float { return r.LengthSD }),
	"onset_sd_1":  usableFloat(func(r types.PixelResult) types.Float { return r.OnsetAnomalySDOf(0) }),
	"onset_sd_2":  usableFloat(func(r types.PixelResult) types.Float { return r.OnsetAnomalySDOf(1) }),
	"map":         covariate(func(c types.Covariates) types.Float { return c.MAP }),
	"wet_days":    covariate(func(c types.Covariates) types.Float { return c.WetDays }),
	"sdii":        covariate(func(c types.Covariates) types.Float { return c.SDII }),
	"pci":         covariate(func(c types.Covariates) types.Float { return c.PCI }),
	"ugi":         covariate(func(c types.Covariates) types.Float { return c.UGi }),
	"heavy_rain_fraction": covariate(func(c types.Covariates) types.Float {
		return c.HeavyRainFraction
	}),
}

func seasonDate(k int, onset bool) pixelValue {
	return func(r types.PixelResult) (float64, bool) {
		if k >= len(r.Seasons) {
			return 0, false
		}
		if onset {
			return float64(r.Seasons[k].Onset), true
		}
		return float64(r.Seasons[k].Cessation), true
	}
}

func usableFloat(get func(types.PixelResult) types.Float) pixelValue {
	return func(r types.PixelResult) (float64, bool) {
		v := get(r)
		return float64(v), r.Usable() && !v.IsMissing()
	}
}

func covariate(get func(types.Covariates) types.Float) pixelValue {
	return func(r types.PixelResult) (float64, bool) {
		if r.Covariates == nil {
			return 0, false
		}
		v := get(*r.Covariates)
		return float64(v), !v.IsMissing()
	}
}

// Storage buffers a run's results and writes the rasters when it ends
type Storage struct {
	dir      string
	compress bool
	geometry *raster.Geometry
	masks    *mask.Layers

	mu      sync.Mutex
	results []types.PixelResult
	dropped []string
}

// New returns a raster engine writing under dir. geometry may be nil, in
// which case a unit grid just large enough for the results is used.
func New(dir string, compress bool, geometry *raster.Geometry) *Storage {
	return &Storage{dir: dir, compress: compress, geometry: geometry}
}

// SetMasks adds the study-area layers to the output
func (g *Storage) SetMasks(l *mask.Layers) {
	g.masks = l
	if g.geometry == nil && l != nil {
		geo := l.Geometry
		g.geometry = &geo
	}
}

// StartStorageEngine creates a goroutine loop to receive results and write
// the rasters once the channel closes
func (g *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.PixelResult {
	log.Infof("starting raster storage engine in %s...", g.dir)
	resultChan := make(chan types.PixelResult, 10)
	wg.Add(1)
	go storage.ProcessResults(ctx, wg, resultChan, g.StoreResult, g.Flush, "grids")
	return resultChan
}

// StoreResult buffers r. Pixels outside the study area stay NODATA.
func (g *Storage) StoreResult(r types.PixelResult) error {
	if !r.InStudyArea {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.results = append(g.results, r)
	return nil
}

// Flush writes every raster
func (g *Storage) Flush() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	geo := g.outputGeometry()

	results := make([]types.PixelResult, 0, len(g.results))
	g.dropped = g.dropped[:0]
	for _, r := range g.results {
		if geo.Index(r.Row, r.Col) < 0 {
			log.Warnf("pixel %s lies outside the %dx%d output grid and is left out of every raster", r.Label, geo.NRows, geo.NCols)
			g.dropped = append(g.dropped, r.Label)
			continue
		}
		results = append(results, r)
	}

	for name, get := range seasonVariables {
		if err := g.write(SeasonDir, name, render(geo, results, get)); err != nil {
			return err
		}
	}
	for name, get := range mainVariables {
		if err := g.write(MainDir, name, render(geo, results, get)); err != nil {
			return err
		}
	}
	if err := g.writeAnnual(geo, results); err != nil {
		return err
	}

	if g.masks != nil {
		for name, m := range g.masks.Named() {
			if err := g.write(MasksDir, name, g.masks.Grid(m)); err != nil {
				return err
			}
		}
	}

	log.Infof("wrote rasters for %d pixels under %s", len(results), g.dir)
	return nil
}

// Dropped lists the pixels the last Flush left out because they fall
// outside the output grid
func (g *Storage) Dropped() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.dropped...)
}

func (g *Storage) outputGeometry() raster.Geometry {
	if g.geometry != nil {
		geo := *g.geometry
		if geo.NoData == 0 {
			geo.NoData = raster.DefaultNoData
		}
		return geo
	}

	geo := raster.Geometry{NCols: 1, NRows: 1, CellSize: 1, NoData: raster.DefaultNoData}
	for _, r := range g.results {
		geo.NCols = max(geo.NCols, r.Col+1)
		geo.NRows = max(geo.NRows, r.Row+1)
	}
	log.Warnf("no grid geometry configured, writing a %dx%d unit grid", geo.NRows, geo.NCols)
	return geo
}

func render(geo raster.Geometry, results []types.PixelResult, get pixelValue) *raster.Grid {
	grid := raster.NewGrid(geo)
	for _, r := range results {
		if v, ok := get(r); ok {
			setCell(grid, r, v)
		}
	}
	return grid
}

func setCell(grid *raster.Grid, r types.PixelResult, v float64) {
	if err := grid.Set(r.Row, r.Col, v); err != nil {
		log.Warnf("pixel %s: %v", r.Label, err)
	}
}

// writeAnnual writes one band per variable and year: the valid season dates
// of every hydrological year, in hydro days, and the calendar-year covariates
func (g *Storage) writeAnnual(geo raster.Geometry, results []types.PixelResult) error {
	bands := make(map[string]*raster.Grid)
	band := func(variable string, year int) *raster.Grid {
		name := raster.BandName(variable, year)
		if b, ok := bands[name]; ok {
			return b
		}
		b := raster.NewGrid(geo)
		bands[name] = b
		return b
	}

	for _, r := range results {
		if r.Usable() {
			for _, a := range r.Annual {
				for k, s := range a.Seasons {
					if !s.Valid {
						continue
					}
					setCell(band(fmt.Sprintf("onset_hday_%d", k+1), a.Year), r, float64(s.Onset))
					setCell(band(fmt.Sprintf("cessation_hday_%d", k+1), a.Year), r, float64(s.Cessation))
				}
				if a.Valid {
					setCell(band("length", a.Year), r, float64(a.Length))
				}
			}
		}
		for _, c := range r.CovariateYears {
			setCell(band("total", c.Year), r, float64(c.MAP))
			setCell(band("pci", c.Year), r, float64(c.PCI))
			setCell(band("ugi", c.Year), r, float64(c.UGi))
		}
	}

	names := make([]string, 0, len(bands))
	for name := range bands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := g.write(AnnualDir, name, bands[name]); err != nil {
			return err
		}
	}
	return nil
}

func (g *Storage) write(subdir, name string, grid *raster.Grid) error {
	path := filepath.Join(g.dir, subdir, name+fileSuffix)
	if g.compress {
		path += ".gz"
	}
	if err := raster.WriteASCIIFile(path, grid); err != nil {
		return fmt.Errorf("could not write %s: %w", path, err)
	}
	return nil
}
