package handles

import (
	"testing"

	"github.com/arsenal-go/handlemem/memutils/sysmem"
	"github.com/stretchr/testify/require"
)

func TestReallocRoundTrip(t *testing.T) {
	manager, _ := readyManager(t, CreateOptions{})

	h := manager.AllocHandle(100, 0)
	buf := manager.bytes(h)
	for i := range buf {
		buf[i] = byte(i)
	}

	grown := manager.ReallocHandle(h, 300)
	require.NotEqual(t, NoHandle, grown)
	require.NotEqual(t, h, grown)
	require.Equal(t, 300, manager.Size(grown))
	require.Equal(t, buf, manager.bytes(grown)[:100])
	require.Equal(t, 300, manager.TotalAllocatedMemory())
	require.Equal(t, 1024-304, manager.TotalFreeMemory())
	require.NoError(t, manager.Validate())

	shrunk := manager.ReallocHandle(grown, 50)
	require.Equal(t, grown, shrunk)
	require.Equal(t, 50, manager.Size(shrunk))
	require.Equal(t, buf[:50], manager.bytes(shrunk))
	require.Equal(t, 50, manager.TotalAllocatedMemory())
	require.Equal(t, 1024-64, manager.TotalFreeMemory())
	require.NoError(t, manager.Validate())

	require.Equal(t, shrunk, manager.ReallocHandle(shrunk, 50))
}

func TestReallocNoHandleAndZero(t *testing.T) {
	manager, _ := readyManager(t, CreateOptions{})

	require.Equal(t, NoHandle, manager.ReallocHandle(NoHandle, 0))

	h := manager.ReallocHandle(NoHandle, 64)
	require.NotEqual(t, NoHandle, h)
	require.Equal(t, 64, manager.Size(h))

	require.Equal(t, NoHandle, manager.ReallocHandle(h, 0))
	require.Equal(t, [][2]int{{0, 1024}}, freeRanges(manager))
	require.NoError(t, manager.Validate())
}

func TestReallocCarriesState(t *testing.T) {
	manager, _ := readyManager(t, CreateOptions{})

	h := manager.AllocHandle(100, FlagFixed)
	manager.SetID(h, 7)
	manager.SetPurgeFlag(h, true)

	grown := manager.ReallocHandle(h, 200)
	require.NotEqual(t, NoHandle, grown)
	require.Equal(t, ID(7), manager.ID(grown))
	require.Equal(t, FlagFixed|FlagPurgeable, manager.LockedState(grown))
	require.Equal(t, 912-208, manager.rec(grown).offset)
	require.NoError(t, manager.Validate())
}

func TestReallocGrowthFailureKeepsOriginal(t *testing.T) {
	manager, _ := readyManager(t, CreateOptions{Provider: &sysmem.HeapProvider{Limit: 1024}})

	h := manager.AllocHandle(500, 0)
	fill(manager, h, 0x77)
	manager.SetPurgeFlag(h, true)

	require.Equal(t, NoHandle, manager.ReallocHandle(h, 2000))
	require.Equal(t, 500, manager.Size(h))
	require.Equal(t, FlagPurgeable, manager.LockedState(h))
	requireFilled(t, manager, h, 0x77)
	require.Equal(t, 500, manager.TotalAllocatedMemory())
	require.NoError(t, manager.Validate())
}

func TestReallocPurgedHandle(t *testing.T) {
	manager, _ := readyManager(t, CreateOptions{})

	h := manager.AllocHandle(100, 0)
	manager.Purge(h)

	require.Equal(t, h, manager.ReallocHandle(h, 200))
	require.Equal(t, 200, manager.Size(h))
	require.Nil(t, manager.Lock(h))

	refreshed := manager.RefreshHandle(h)
	require.Equal(t, 200, manager.Size(refreshed))
	require.NoError(t, manager.Validate())
}

func TestReallocFallbackHandle(t *testing.T) {
	manager, heap := readyManager(t, CreateOptions{})

	h := manager.AllocHandle(2000, 0)
	require.Equal(t, FlagMalloc, manager.LockedState(h))
	fill(manager, h, 0x33)

	// Shrinking a fallback allocation moves it back into the arena
	shrunk := manager.ReallocHandle(h, 100)
	require.NotEqual(t, NoHandle, shrunk)
	require.Equal(t, Flags(0), manager.LockedState(shrunk))
	requireFilled(t, manager, shrunk, 0x33)
	require.Equal(t, 1024, heap.Outstanding())
	require.NoError(t, manager.Validate())
}
