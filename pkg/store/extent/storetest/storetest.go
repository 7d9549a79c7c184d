// Package storetest is a conformance suite run against every extent.Store
// backend.
package storetest

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoblk/pkg/store/extent"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) extent.Store

// Run exercises the extent.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("ReadMissing", func(t *testing.T) {
		s := open(t, newStore)
		_, err := s.ReadExtent(context.Background(), "vol", 0)
		require.ErrorIs(t, err, extent.ErrExtentNotFound)
	})

	t.Run("WriteRead", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()
		data := bytes.Repeat([]byte{0xA5}, 4096)

		require.NoError(t, s.WriteExtent(ctx, "vol", 3, data))
		got, err := s.ReadExtent(ctx, "vol", 3)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("WriteCopiesInput", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()
		data := []byte("extent-data")

		require.NoError(t, s.WriteExtent(ctx, "vol", 0, data))
		data[0] = 'X'
		got, err := s.ReadExtent(ctx, "vol", 0)
		require.NoError(t, err)
		assert.Equal(t, []byte("extent-data"), got)
	})

	t.Run("Overwrite", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		require.NoError(t, s.WriteExtent(ctx, "vol", 1, []byte("first")))
		require.NoError(t, s.WriteExtent(ctx, "vol", 1, []byte("second")))
		got, err := s.ReadExtent(ctx, "vol", 1)
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), got)
	})

	t.Run("ListSortedPerVolume", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		for _, idx := range []uint64{17, 2, 256, 0} {
			require.NoError(t, s.WriteExtent(ctx, "a", idx, []byte{byte(idx)}))
		}
		require.NoError(t, s.WriteExtent(ctx, "ab", 5, []byte{5}))

		got, err := s.ListExtents(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []uint64{0, 2, 17, 256}, got)

		got, err = s.ListExtents(ctx, "empty")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Delete", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		require.NoError(t, s.WriteExtent(ctx, "vol", 7, []byte("x")))
		require.NoError(t, s.DeleteExtent(ctx, "vol", 7))
		require.NoError(t, s.DeleteExtent(ctx, "vol", 7))
		_, err := s.ReadExtent(ctx, "vol", 7)
		require.ErrorIs(t, err, extent.ErrExtentNotFound)
	})

	t.Run("DeleteVolume", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		for idx := range uint64(5) {
			require.NoError(t, s.WriteExtent(ctx, "gone", idx, []byte{1}))
		}
		require.NoError(t, s.WriteExtent(ctx, "kept", 0, []byte{2}))

		require.NoError(t, s.DeleteVolume(ctx, "gone"))
		got, err := s.ListExtents(ctx, "gone")
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = s.ListExtents(ctx, "kept")
		require.NoError(t, err)
		assert.Equal(t, []uint64{0}, got)
	})

	t.Run("InvalidVolume", func(t *testing.T) {
		s := open(t, newStore)
		err := s.WriteExtent(context.Background(), "a/b", 0, []byte{1})
		require.ErrorIs(t, err, extent.ErrInvalidVolume)
	})

	t.Run("Concurrent", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				idx := uint64(i)
				assert.NoError(t, s.WriteExtent(ctx, "vol", idx, []byte{byte(i)}))
				got, err := s.ReadExtent(ctx, "vol", idx)
				assert.NoError(t, err)
				assert.Equal(t, []byte{byte(i)}, got)
			}()
		}
		wg.Wait()

		got, err := s.ListExtents(ctx, "vol")
		require.NoError(t, err)
		assert.Len(t, got, 8)
	})

	t.Run("HealthAndClose", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.HealthCheck(ctx))
		require.NoError(t, s.Close())
		require.ErrorIs(t, s.HealthCheck(ctx), extent.ErrStoreClosed)
		require.ErrorIs(t, s.WriteExtent(ctx, "vol", 0, []byte{1}), extent.ErrStoreClosed)
		_, err := s.ReadExtent(ctx, "vol", 0)
		require.ErrorIs(t, err, extent.ErrStoreClosed)
	})
}

func open(t *testing.T, newStore Factory) extent.Store {
	t.Helper()
	s := newStore(t)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}
