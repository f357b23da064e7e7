// Package managers wires configured storage engines to the pipeline.
package managers

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/chrissnell/rainseason/internal/cache"
	"github.com/chrissnell/rainseason/internal/log"
	"github.com/chrissnell/rainseason/internal/mask"
	"github.com/chrissnell/rainseason/internal/raster"
	"github.com/chrissnell/rainseason/internal/storage"
	"github.com/chrissnell/rainseason/internal/storage/cachestore"
	"github.com/chrissnell/rainseason/internal/storage/grids"
	"github.com/chrissnell/rainseason/internal/storage/tabular"
	"github.com/chrissnell/rainseason/internal/storage/timescaledb"
	"github.com/chrissnell/rainseason/internal/types"
	"github.com/chrissnell/rainseason/pkg/config"
)

// StorageDeps are the run-level inputs some engines need besides their own
// configuration. Any of them may be nil.
type StorageDeps struct {
	Cache    *cache.Store
	Geometry *raster.Geometry
	Masks    *mask.Layers
}

// StorageManager holds our active storage backends
type StorageManager struct {
	Engines           []StorageEngine
	ResultDistributor chan types.PixelResult

	closeOnce sync.Once
}

// StorageEngine holds a backend storage engine's interface as well as
// a channel for passing results to the engine
type StorageEngine struct {
	Name   string
	Engine storage.StorageEngineInterface
	C      chan<- types.PixelResult
}

// NewStorageManager creates a StorageManager object, populated with all
// configured StorageEngines. Results sent to the distributor reach every
// engine; Close ends the run and lets the engines flush.
func NewStorageManager(ctx context.Context, wg *sync.WaitGroup, c *config.StorageData, deps StorageDeps) (*StorageManager, error) {
	s := newStorageManager()

	if c.Tabular != nil {
		if err := s.AddEngine(ctx, wg, "tabular", c, deps); err != nil {
			return nil, fmt.Errorf("could not add tabular storage backend: %w", err)
		}
	}

	if c.Grids != nil {
		if err := s.AddEngine(ctx, wg, "grids", c, deps); err != nil {
			return nil, fmt.Errorf("could not add raster storage backend: %w", err)
		}
	}

	if c.TimescaleDB != nil && c.TimescaleDB.ConnectionString != "" {
		if err := s.AddEngine(ctx, wg, "timescaledb", c, deps); err != nil {
			return nil, fmt.Errorf("could not add TimescaleDB storage backend: %w", err)
		}
	}

	if deps.Cache != nil {
		if err := s.AddEngine(ctx, wg, "cachestore", c, deps); err != nil {
			return nil, fmt.Errorf("could not add cache result backend: %w", err)
		}
	}

	s.start(ctx, wg)
	return s, nil
}

func newStorageManager() *StorageManager {
	return &StorageManager{ResultDistributor: make(chan types.PixelResult, 20)}
}

// GetResultDistributor returns the result distributor channel
func (s *StorageManager) GetResultDistributor() chan<- types.PixelResult {
	return s.ResultDistributor
}

// AddEngine adds a new StorageEngine of name engineName to our Storage object
func (s *StorageManager) AddEngine(ctx context.Context, wg *sync.WaitGroup, engineName string, c *config.StorageData, deps StorageDeps) error {
	var engine storage.StorageEngineInterface

	switch engineName {
	case "tabular":
		t, err := tabular.New(c.Tabular.Dir)
		if err != nil {
			return err
		}
		engine = t
	case "grids":
		g := grids.New(c.Grids.Dir, c.Grids.Compress, deps.Geometry)
		g.SetMasks(deps.Masks)
		engine = g
	case "timescaledb":
		t, err := timescaledb.New(ctx, c.TimescaleDB.ConnectionString)
		if err != nil {
			return err
		}
		engine = t
	case "cachestore":
		cs, err := cachestore.New(deps.Cache)
		if err != nil {
			return err
		}
		engine = cs
	default:
		return fmt.Errorf("unknown storage engine %q", engineName)
	}

	s.attach(ctx, wg, engineName, engine)
	return nil
}

func (s *StorageManager) attach(ctx context.Context, wg *sync.WaitGroup, name string, e storage.StorageEngineInterface) {
	s.Engines = append(s.Engines, StorageEngine{Name: name, Engine: e, C: e.StartStorageEngine(ctx, wg)})
}

func (s *StorageManager) start(ctx context.Context, wg *sync.WaitGroup) {
	if len(s.Engines) == 0 {
		log.Warn("no storage engines configured; results will be discarded")
	}
	wg.Add(1)
	go s.startResultDistributor(ctx, wg)
}

// Close ends the run: the distributor drains, then closes every engine's
// channel so that engines flush. Wait on the WaitGroup afterwards.
func (s *StorageManager) Close() {
	s.closeOnce.Do(func() {
		close(s.ResultDistributor)
	})
}

// Names lists the active engines
func (s *StorageManager) Names() []string {
	names := make([]string, 0, len(s.Engines))
	for _, e := range s.Engines {
		names = append(names, e.Name)
	}
	return names
}

// startResultDistributor receives results from the pipeline and fans them
// out to the various storage backends
func (s *StorageManager) startResultDistributor(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	resultCount := 0
	for {
		select {
		case r, ok := <-s.ResultDistributor:
			if !ok {
				for _, e := range s.Engines {
					close(e.C)
				}
				log.Infof("distributed %d results to %d storage engines", resultCount, len(s.Engines))
				return
			}
			resultCount++

			for _, e := range s.Engines {
				select {
				case e.C <- r:
				case <-ctx.Done():
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// OutputDirs returns the directories file-based engines write to, for
// reporting at the end of a run
func OutputDirs(c *config.StorageData) []string {
	var dirs []string
	if c.Tabular != nil {
		dirs = append(dirs, filepath.Clean(c.Tabular.Dir))
	}
	if c.Grids != nil {
		dirs = append(dirs, filepath.Clean(c.Grids.Dir))
	}
	return dirs
}
