package cachestore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/rainseason/internal/cache"
	"github.com/chrissnell/rainseason/internal/constants"
	"github.com/chrissnell/rainseason/internal/types"
)

func TestLatestResultPerPixel(t *testing.T) {
	ctx := context.Background()
	store, err := cache.Open(ctx, filepath.Join(t.TempDir(), "cache.db"), zap.NewNop().Sugar())
	require.NoError(t, err)
	defer store.Close()

	s, err := New(store)
	require.NoError(t, err)

	var wg sync.WaitGroup
	ch := s.StartStorageEngine(ctx, &wg)
	ch <- types.PixelResult{RunID: "first", Label: "0_0", Status: types.StatusFlatCurve}
	ch <- types.PixelResult{RunID: "first", Label: "0_1", Status: types.StatusOK, Regime: 1}
	close(ch)
	wg.Wait()

	require.NoError(t, s.StoreResult(types.PixelResult{RunID: "second", Label: "0_0", Status: types.StatusOK, Regime: 2}))

	r, ok, err := Latest(ctx, store, "0_0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", r.RunID)
	assert.Equal(t, 2, r.Regime)

	r, ok, err = Latest(ctx, store, "0_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.StatusOK, r.Status)

	_, ok, err = Latest(ctx, store, "9_9")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRerunsReplacePixelRows(t *testing.T) {
	ctx := context.Background()
	store, err := cache.Open(ctx, filepath.Join(t.TempDir(), "cache.db"), zap.NewNop().Sugar())
	require.NoError(t, err)
	defer store.Close()

	s, err := New(store)
	require.NoError(t, err)

	for _, run := range []string{"first", "second", "third"} {
		for _, label := range []string{"0_0", "0_1"} {
			require.NoError(t, s.StoreResult(types.PixelResult{RunID: run, Label: label, Status: types.StatusOK}))
		}
	}

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, constants.StagePixel, stats[0].Stage)
	assert.EqualValues(t, 2, stats[0].Entries)

	r, ok, err := Latest(ctx, store, "0_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "third", r.RunID)
}

func TestNeedsStore(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
