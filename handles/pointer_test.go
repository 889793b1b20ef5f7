package handles

import (
	"testing"

	"github.com/arsenal-go/handlemem/memutils/sysmem"
	"github.com/stretchr/testify/require"
)

func TestAllocateFreeResize(t *testing.T) {
	manager, _ := readyManager(t, CreateOptions{})

	buf := manager.Allocate(100)
	require.Len(t, buf, 100)
	require.Equal(t, 100, cap(buf))
	require.Equal(t, 100, manager.PointerSize(buf))
	copy(buf, "pointer facade")

	h := manager.FindHandle(buf)
	require.NotEqual(t, NoHandle, h)
	require.Equal(t, FlagFixed, manager.LockedState(h))
	require.Equal(t, h, manager.FindHandle(buf[50:]))

	grown := manager.Resize(buf, 300)
	require.Len(t, grown, 300)
	require.Equal(t, "pointer facade", string(grown[:14]))
	require.Equal(t, 300, manager.PointerSize(grown))
	require.NoError(t, manager.Validate())

	shrunk := manager.Resize(grown, 20)
	require.Equal(t, addressOf(grown), addressOf(shrunk))
	require.Equal(t, "pointer facade", string(shrunk[:14]))
	require.Equal(t, 20, manager.PointerSize(shrunk))

	manager.Free(shrunk)
	require.Equal(t, 0, manager.pointers.Count())
	require.Equal(t, [][2]int{{0, 1024}}, freeRanges(manager))
	require.NoError(t, manager.Validate())
}

func TestAllocateEdgeCases(t *testing.T) {
	manager, _ := readyManager(t, CreateOptions{})

	require.Nil(t, manager.Allocate(0))
	manager.Free(nil)
	require.Equal(t, 0, manager.PointerSize(nil))

	buf := manager.Resize(nil, 10)
	require.Len(t, buf, 10)
	require.Nil(t, manager.Resize(buf, 0))
	require.Equal(t, 0, manager.pointers.Count())
	require.NoError(t, manager.Validate())
}

func TestFreeForeignBufferPanics(t *testing.T) {
	manager, _ := readyManager(t, CreateOptions{})

	require.Panics(t, func() {
		manager.Free(make([]byte, 10))
	})

	buf := manager.Allocate(64)
	require.Panics(t, func() {
		manager.Free(buf[16:])
	})
	manager.Free(buf)
}

func TestResizeFailureKeepsBuffer(t *testing.T) {
	manager, _ := readyManager(t, CreateOptions{Provider: &sysmem.HeapProvider{Limit: 1024}})

	buf := manager.Allocate(500)
	copy(buf, "keep")

	require.Nil(t, manager.Resize(buf, 2000))
	require.Equal(t, 500, manager.PointerSize(buf))
	require.Equal(t, "keep", string(buf[:4]))

	manager.Free(buf)
	require.NoError(t, manager.Validate())
}

func TestPointerBlocksStayPut(t *testing.T) {
	manager, _ := readyManager(t, CreateOptions{})

	buf := manager.Allocate(64)
	a := manager.AllocHandle(100, 0)
	manager.AllocHandle(100, 0)
	manager.FreeHandle(a)
	manager.CompactHandles()

	require.Equal(t, 960, manager.rec(manager.FindHandle(buf)).offset)
	require.Equal(t, 64, manager.PointerSize(buf))
	require.NoError(t, manager.Validate())
}

func TestFindHandle(t *testing.T) {
	manager, _ := readyManager(t, CreateOptions{})

	a := manager.AllocHandle(100, 0)
	b := manager.AllocHandle(100, 0)

	require.Equal(t, a, manager.FindHandle(manager.arena[99:]))
	// Alignment padding belongs to no handle
	require.Equal(t, NoHandle, manager.FindHandle(manager.arena[100:]))
	require.Equal(t, b, manager.FindHandle(manager.arena[112:]))
	require.Equal(t, NoHandle, manager.FindHandle(manager.arena[500:]))
	require.Equal(t, NoHandle, manager.FindHandle(make([]byte, 4)))
	require.Equal(t, NoHandle, manager.FindHandle(nil))
}
