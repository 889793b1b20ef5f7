package sysmem_test

import (
	"testing"

	"github.com/arsenal-go/handlemem/memutils"
	"github.com/arsenal-go/handlemem/memutils/sysmem"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestHeapProviderLimit(t *testing.T) {
	heap := &sysmem.HeapProvider{Limit: 1000}

	first, err := heap.Alloc(600)
	require.NoError(t, err)
	require.Len(t, first, 600)

	_, err = heap.Alloc(600)
	require.Error(t, err)
	require.True(t, errors.Is(err, memutils.ErrOutOfSystemMemory))

	require.NoError(t, heap.Free(first))
	require.Equal(t, 0, heap.Outstanding())

	second, err := heap.Alloc(1000)
	require.NoError(t, err)
	require.Len(t, second, 1000)
}

func TestHeapProviderInvalidSize(t *testing.T) {
	heap := &sysmem.HeapProvider{}
	_, err := heap.Alloc(-1)
	require.Error(t, err)
}

func TestChunkListReleaseAll(t *testing.T) {
	heap := &sysmem.HeapProvider{}
	chunks := sysmem.NewChunkList(heap)

	_, err := chunks.Alloc(100)
	require.NoError(t, err)
	_, err = chunks.Alloc(200)
	require.NoError(t, err)

	require.Equal(t, 2, chunks.Count())
	require.Equal(t, 300, chunks.TotalBytes())
	require.Equal(t, 300, heap.Outstanding())

	require.NoError(t, chunks.ReleaseAll())
	require.Equal(t, 0, chunks.Count())
	require.Equal(t, 0, chunks.TotalBytes())
	require.Equal(t, 0, heap.Outstanding())

	// Releasing again is harmless
	require.NoError(t, chunks.ReleaseAll())
}
