// Package cachestore keeps the latest result of every pixel in the stage
// cache, where the REST server reads it from.
package cachestore

import (
	"context"
	"errors"
	"sync"

	"github.com/chrissnell/rainseason/internal/cache"
	"github.com/chrissnell/rainseason/internal/constants"
	"github.com/chrissnell/rainseason/internal/log"
	"github.com/chrissnell/rainseason/internal/storage"
	"github.com/chrissnell/rainseason/internal/types"
)

// Storage writes results to a cache.Store
type Storage struct {
	store *cache.Store
	ctx   context.Context
}

// New returns an engine backed by store
func New(store *cache.Store) (*Storage, error) {
	if store == nil {
		return nil, errors.New("the result store needs an enabled cache")
	}
	return &Storage{store: store}, nil
}

// StartStorageEngine creates a goroutine loop to receive results and save
// them to the cache
func (c *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.PixelResult {
	log.Info("starting cache result storage engine...")
	c.ctx = ctx
	resultChan := make(chan types.PixelResult, 10)
	wg.Add(1)
	go storage.ProcessResults(ctx, wg, resultChan, c.StoreResult, nil, "cachestore")
	return resultChan
}

// StoreResult saves r under the pixel stage, replacing the pixel's result
// from any earlier run
func (c *Storage) StoreResult(r types.PixelResult) error {
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return c.store.Save(ctx, Key(r.Label), r)
}

// Key is the cache key of one pixel's result. It does not depend on the run,
// so the store holds a single row per pixel.
func Key(label string) cache.Key {
	return cache.Key{
		Stage:   constants.StagePixel,
		Version: constants.PixelStageVersion,
		Label:   label,
	}
}

// Latest returns the most recent stored result for a pixel
func Latest(ctx context.Context, store *cache.Store, label string) (types.PixelResult, bool, error) {
	var r types.PixelResult
	_, ok, err := store.Latest(ctx, constants.StagePixel, label, &r)
	return r, ok, err
}
