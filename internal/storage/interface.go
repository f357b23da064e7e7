// Package storage defines the result sinks that pixel results are written to.
package storage

import (
	"context"
	"sync"

	"github.com/chrissnell/rainseason/internal/types"
)

// StorageEngineInterface is an interface that provides a few standardized
// methods for various storage backends. An engine drains its channel until
// the channel is closed, then flushes whatever it buffered and signals wg.
type StorageEngineInterface interface {
	StartStorageEngine(context.Context, *sync.WaitGroup) chan<- types.PixelResult
}
