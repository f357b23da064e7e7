// Package app wires configuration to the detector, the storage engines and
// the REST server.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/rainseason/internal/cache"
	"github.com/chrissnell/rainseason/internal/controllers/restserver"
	"github.com/chrissnell/rainseason/internal/covariates"
	"github.com/chrissnell/rainseason/internal/managers"
	"github.com/chrissnell/rainseason/internal/mask"
	"github.com/chrissnell/rainseason/internal/pipeline"
	"github.com/chrissnell/rainseason/internal/precip"
	"github.com/chrissnell/rainseason/internal/raster"
	"github.com/chrissnell/rainseason/internal/season"
	"github.com/chrissnell/rainseason/internal/storage/grids"
	"github.com/chrissnell/rainseason/pkg/config"
)

// App represents the main application
type App struct {
	cfg    *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// SeasonParams converts the season section into detector parameters
func SeasonParams(c config.SeasonData) season.Params {
	return season.Params{
		SeasonalityRatioThreshold: c.SeasonalityRatioThreshold,
		MinFirstHarmonicAmplitude: c.MinFirstHarmonicAmplitude,
		FlatCurveEpsilon:          c.FlatCurveEpsilon,
		MinYears:                  c.MinYears,
		SmoothingHalfWidth:        c.SmoothingHalfWidth,
		ExtremaHalfWidths:         append([]int(nil), c.ExtremaHalfWidths...),
		HydroYearLeadDays:         c.HydroYearLeadDays,
		SeasonMarginDays:          c.SeasonMarginDays,
		AnomalyToleranceDays:      c.AnomalyToleranceDays,
		ValidYearQuorum:           c.ValidYearQuorum,
	}
}

// CovariateParams converts the covariates section
func CovariateParams(c config.CovariateData) covariates.Params {
	return covariates.Params{
		WetDayThreshold:     c.WetDayThreshold,
		HeavyRainPercentile: c.HeavyRainPercentile,
	}
}

// MaskThresholds converts the threshold half of the mask section
func MaskThresholds(c config.MaskData) mask.Thresholds {
	return mask.Thresholds{
		LandCoverClasses:            append([]int(nil), c.LandCoverClasses...),
		AridityMin:                  c.AridityMin,
		AridityMax:                  c.AridityMax,
		MinRangelandFraction:        c.MinRangelandFraction,
		MaxZeroProductivityFraction: c.MaxZeroProductivityFraction,
	}
}

// CSVOptions converts the input section into loader options
func CSVOptions(c config.InputData) (*precip.CSVOptions, error) {
	opts := precip.DefaultCSVOptions()
	if c.DateFormat != "" {
		opts.DateFormat = c.DateFormat
	}
	if c.Delimiter != "" {
		d := []rune(c.Delimiter)
		if len(d) != 1 {
			return nil, fmt.Errorf("input.delimiter must be a single character, got %q", c.Delimiter)
		}
		opts.Delimiter = d[0]
	}
	opts.NoDataValue = c.NoDataValue
	opts.ClampNegative = c.ClampNegative
	return opts, nil
}

// LoadMask reads the four mask layers and evaluates them against t. It
// returns nil when no layers are configured.
func LoadMask(c config.MaskData, t mask.Thresholds) (*mask.Layers, error) {
	if !c.Enabled() {
		return nil, nil
	}

	var in mask.Inputs
	for _, layer := range []struct {
		path string
		dst  **raster.Grid
	}{
		{c.LandCover, &in.LandCover},
		{c.Aridity, &in.Aridity},
		{c.RangelandFraction, &in.RangelandFraction},
		{c.ZeroProductivity, &in.ZeroProductivity},
	} {
		g, err := raster.ReadASCIIFile(layer.path)
		if err != nil {
			return nil, fmt.Errorf("could not read mask layer: %w", err)
		}
		*layer.dst = g
	}
	return mask.Build(in, t)
}

// Geometry returns the grid the pixels live on: the mask layers' when
// present, otherwise input.grid, otherwise nil
func Geometry(c config.InputData, layers *mask.Layers) *raster.Geometry {
	if layers != nil {
		g := layers.Geometry
		return &g
	}
	if c.Grid == nil {
		return nil
	}
	return &raster.Geometry{
		NCols:     c.Grid.NCols,
		NRows:     c.Grid.NRows,
		XLLCorner: c.Grid.XLLCorner,
		YLLCorner: c.Grid.YLLCorner,
		CellSize:  c.Grid.CellSize,
		NoData:    raster.DefaultNoData,
	}
}

// OpenCache opens the stage cache, or returns nil when caching is disabled
func (a *App) OpenCache(ctx context.Context) (*cache.Store, error) {
	if a.cfg.Cache.Disabled {
		a.logger.Info("stage cache disabled")
		return nil, nil
	}
	return cache.Open(ctx, a.cfg.Cache.Path, a.logger)
}

// Detect runs season detection over every pixel of the configured input and
// writes the results to the configured storage engines
func (a *App) Detect(ctx context.Context) (pipeline.Stats, error) {
	detector, err := season.NewDetector(SeasonParams(a.cfg.Season))
	if err != nil {
		return pipeline.Stats{}, err
	}

	layers, err := LoadMask(a.cfg.Mask, MaskThresholds(a.cfg.Mask))
	if err != nil {
		return pipeline.Stats{}, err
	}
	if layers != nil {
		a.logger.Infof("study area covers %d of %d cells", layers.Count(), layers.Geometry.Len())
	}
	geometry := Geometry(a.cfg.Input, layers)

	opts, err := CSVOptions(a.cfg.Input)
	if err != nil {
		return pipeline.Stats{}, err
	}
	start := time.Now()
	pixels, err := precip.LoadCSV(a.cfg.Input.PrecipCSV, opts)
	if err != nil {
		return pipeline.Stats{}, err
	}
	a.logger.Infof("loaded %d pixels from %s in %v", len(pixels), a.cfg.Input.PrecipCSV, time.Since(start).Round(time.Millisecond))
	for _, p := range pixels {
		if p.LoadErr != nil {
			a.logger.Warnf("pixel %s will be reported as invalid: %v", p.Label(), p.LoadErr)
		}
	}

	store, err := a.OpenCache(ctx)
	if err != nil {
		return pipeline.Stats{}, err
	}
	if store != nil {
		defer store.Close()
	}

	var wg sync.WaitGroup
	sm, err := managers.NewStorageManager(ctx, &wg, &a.cfg.Storage, managers.StorageDeps{
		Cache:    store,
		Geometry: geometry,
		Masks:    layers,
	})
	if err != nil {
		return pipeline.Stats{}, err
	}

	runnerOpts := pipeline.Options{
		Workers:  a.cfg.Processing.Workers,
		Progress: a.cfg.Processing.Progress,
		Geometry: geometry,
	}
	if layers != nil {
		runnerOpts.StudyArea = layers.Contains
	}
	runner := pipeline.NewRunner(detector, CovariateParams(a.cfg.Covariates), store, a.logger, runnerOpts)

	stats, runErr := runner.Run(ctx, pixels, sm.GetResultDistributor())
	sm.Close()

	// Wait for the storage engines to flush
	a.logger.Info("waiting for storage engines to finish...")
	wg.Wait()

	if runErr != nil {
		return stats, runErr
	}
	for status, n := range stats.ByStatus {
		a.logger.Infof("%-20s %d", status, n)
	}
	a.logger.Infof("run %s: %d pixels in %v (%d cache hits), output in %v",
		runner.RunID(), stats.Pixels, stats.Elapsed.Round(time.Millisecond), stats.CacheHits, managers.OutputDirs(&a.cfg.Storage))
	return stats, nil
}

// WriteMasks builds the study-area layers and writes each of them, plus the
// combined mask, as rasters under dir
func (a *App) WriteMasks(dir string, t mask.Thresholds, compress bool) (*mask.Layers, error) {
	if !a.cfg.Mask.Enabled() {
		return nil, fmt.Errorf("no mask layers configured")
	}
	layers, err := LoadMask(a.cfg.Mask, t)
	if err != nil {
		return nil, err
	}

	for name, m := range layers.Named() {
		path := filepath.Join(dir, grids.MasksDir, name+".asc")
		if compress {
			path += ".gz"
		}
		if err := raster.WriteASCIIFile(path, layers.Grid(m)); err != nil {
			return nil, err
		}
	}
	a.logger.Infof("study area covers %d of %d cells; masks written to %s", layers.Count(), layers.Geometry.Len(), filepath.Join(dir, grids.MasksDir))
	return layers, nil
}

// Serve runs the REST server until ctx is cancelled
func (a *App) Serve(ctx context.Context) error {
	store, err := a.OpenCache(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	var timescaleConn string
	if ts := a.cfg.Storage.TimescaleDB; ts != nil {
		timescaleConn = ts.ConnectionString
	}

	var wg sync.WaitGroup
	ctrl, err := restserver.NewController(ctx, &wg, store, a.cfg.Server, timescaleConn, a.logger)
	if err != nil {
		return err
	}
	if err := ctrl.StartController(); err != nil {
		return err
	}

	<-ctx.Done()
	a.logger.Info("waiting for the REST server to stop...")
	wg.Wait()
	a.logger.Info("shutdown complete")
	return nil
}

// WithSignals returns a context that is cancelled on SIGINT or SIGTERM
func WithSignals(ctx context.Context, logger *zap.SugaredLogger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			logger.Info("shutdown signal received, initiating graceful shutdown...")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
