package storage

import (
	"context"
	"sync"

	"github.com/chrissnell/rainseason/internal/log"
	"github.com/chrissnell/rainseason/internal/types"
)

// ProcessResults provides a standard pattern for processing results from a
// channel. finish runs once the channel is closed; cancellation skips it.
// The caller must have added this loop to wg.
func ProcessResults(ctx context.Context, wg *sync.WaitGroup, resultChan <-chan types.PixelResult, processor func(types.PixelResult) error, finish func() error, name string) {
	defer wg.Done()

	failures := 0
	for {
		select {
		case r, ok := <-resultChan:
			if !ok {
				if failures > 0 {
					log.Warnf("%s: %d results could not be stored", name, failures)
				}
				if finish != nil {
					if err := finish(); err != nil {
						log.Errorf("%s could not finish writing: %v", name, err)
					}
				}
				log.Infof("%s storage engine finished", name)
				return
			}
			if err := processor(r); err != nil {
				failures++
				log.Errorf("%s result processor error for pixel %s: %v", name, r.Label, err)
			}
		case <-ctx.Done():
			log.Infof("cancellation request received. Cancelling %s results processor", name)
			return
		}
	}
}
