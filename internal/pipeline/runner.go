// Package pipeline maps the per-pixel detectors over a set of pixels with a
// bounded pool of workers and streams the results to the storage engines.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cheggaaa/pb"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/rainseason/internal/cache"
	"github.com/chrissnell/rainseason/internal/constants"
	"github.com/chrissnell/rainseason/internal/covariates"
	"github.com/chrissnell/rainseason/internal/precip"
	"github.com/chrissnell/rainseason/internal/raster"
	"github.com/chrissnell/rainseason/internal/season"
	"github.com/chrissnell/rainseason/internal/types"
)

// Options controls a Runner
type Options struct {
	// Workers bounds the number of pixels processed at once
	Workers int

	// Progress draws a progress bar on stderr
	Progress bool

	// StudyArea reports whether a pixel is analysed at all. Nil admits every pixel.
	StudyArea func(row, col int) bool

	// Geometry places pixels on the globe. Without it lon, lat and cell area stay zero.
	Geometry *raster.Geometry
}

// Stats counts what a run produced
type Stats struct {
	Pixels    int
	ByStatus  map[types.Status]int
	CacheHits int
	Elapsed   time.Duration
}

// Runner runs season detection and covariates for many pixels
type Runner struct {
	detector  *season.Detector
	covParams covariates.Params
	store     *cache.Store
	logger    *zap.SugaredLogger
	opts      Options
	runID     string
}

type seasonOutcome struct {
	Result season.Result `msgpack:"result"`
	Status types.Status  `msgpack:"status"`
	Error  string        `msgpack:"error"`
}

type covariateOutcome struct {
	Summary covariates.Summary `msgpack:"summary"`
	Error   string             `msgpack:"error"`
}

// NewRunner returns a Runner. store may be nil to disable caching.
func NewRunner(d *season.Detector, cp covariates.Params, store *cache.Store, logger *zap.SugaredLogger, opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{
		detector:  d,
		covParams: cp,
		store:     store,
		logger:    logger,
		opts:      opts,
		runID:     uuid.NewString(),
	}
}

// RunID identifies this runner's results in the outputs
func (r *Runner) RunID() string {
	return r.runID
}

// Run processes pixels and sends one result per pixel to out. Results arrive
// in no particular order. Detection failures are recorded in the result
// status; only cache I/O errors and cancellation stop the run. out is not
// closed.
func (r *Runner) Run(ctx context.Context, pixels []precip.Pixel, out chan<- types.PixelResult) (Stats, error) {
	start := time.Now()
	stats := Stats{ByStatus: make(map[types.Status]int)}
	var mu sync.Mutex

	bar := pb.New(len(pixels)).Prefix("pixels ")
	bar.ShowPercent = true
	bar.ShowBar = true
	bar.ShowCounters = true
	bar.ShowTimeLeft = true
	if r.opts.Progress {
		bar.Output = os.Stderr
	} else {
		bar.NotPrint = true
	}
	bar.Start()
	defer bar.Finish()

	r.logger.Infof("run %s: processing %d pixels with %d workers", r.runID, len(pixels), r.opts.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for _, p := range pixels {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, hits, err := r.process(gctx, p)
			if err != nil {
				return fmt.Errorf("pixel %s: %w", p.Label(), err)
			}

			select {
			case out <- res:
			case <-gctx.Done():
				return gctx.Err()
			}

			mu.Lock()
			stats.Pixels++
			stats.ByStatus[res.Status]++
			stats.CacheHits += hits
			mu.Unlock()
			bar.Increment()
			return nil
		})
	}

	err := g.Wait()
	stats.Elapsed = time.Since(start)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return stats, err
	}

	r.logger.Infof("run %s: %d pixels in %v (%d cache hits), %v",
		r.runID, stats.Pixels, stats.Elapsed.Round(time.Millisecond), stats.CacheHits, stats.ByStatus)
	return stats, nil
}

// Process runs a single pixel
func (r *Runner) Process(ctx context.Context, p precip.Pixel) (types.PixelResult, error) {
	res, _, err := r.process(ctx, p)
	return res, err
}

func (r *Runner) process(ctx context.Context, p precip.Pixel) (types.PixelResult, int, error) {
	res := types.PixelResult{
		RunID:       r.runID,
		Label:       p.Label(),
		Row:         p.Row,
		Col:         p.Col,
		InStudyArea: r.opts.StudyArea == nil || r.opts.StudyArea(p.Row, p.Col),
		ComputedAt:  time.Now().UTC(),
	}
	if g := r.opts.Geometry; g != nil {
		res.Lon, res.Lat = g.CellCenter(p.Row, p.Col)
		res.CellAreaKm2 = types.Float(g.CellAreaKm2(p.Row, p.Col))
	}

	if !res.InStudyArea {
		res.Status = types.StatusOutsideStudyArea
		return res, 0, nil
	}
	if err := p.Err(); err != nil {
		res.Status = types.StatusInvalidSeries
		res.Error = err.Error()
		return res, 0, nil
	}

	start := p.Series.Start.Format(constants.DefaultDateLayout)
	hits := 0

	digest, err := cache.Fingerprint(r.detector.Params(), start, p.Series.Values)
	if err != nil {
		return res, 0, err
	}
	so, hit, err := cache.GetOrCompute(ctx, r.store,
		cache.Key{Stage: constants.StageSeason, Version: constants.SeasonStageVersion, Label: res.Label, Digest: digest},
		func() (seasonOutcome, error) { return r.detectSeason(p.Series), nil })
	if err != nil {
		return res, 0, err
	}
	if hit {
		hits++
	}

	res.Status = so.Status
	res.Error = so.Error
	if so.Status == types.StatusOK {
		applySeason(&res, &so.Result)
	} else {
		applyHarmonics(&res, so.Result.LongTerm)
		r.logger.Debugf("pixel %s: %s", res.Label, so.Error)
	}

	digest, err = cache.Fingerprint(r.covParams, start, p.Series.Values)
	if err != nil {
		return res, hits, err
	}
	co, hit, err := cache.GetOrCompute(ctx, r.store,
		cache.Key{Stage: constants.StageCovariates, Version: constants.CovariateStageVersion, Label: res.Label, Digest: digest},
		func() (covariateOutcome, error) {
			sum, err := covariates.Compute(p.Series, r.covParams)
			if err != nil {
				return covariateOutcome{Error: err.Error()}, nil
			}
			return covariateOutcome{Summary: sum}, nil
		})
	if err != nil {
		return res, hits, err
	}
	if hit {
		hits++
	}

	if co.Error != "" {
		if res.Status == types.StatusOK {
			res.Status = types.StatusCovariatesFailure
			res.Error = co.Error
		}
		return res, hits, nil
	}
	applyCovariates(&res, &co.Summary)
	return res, hits, nil
}

func (r *Runner) detectSeason(s precip.Series) seasonOutcome {
	result, err := r.detector.Detect(s)
	out := seasonOutcome{Status: StatusFor(err)}
	if result != nil {
		out.Result = *result
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}
