package handles

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFreeLedgerMerges(t *testing.T) {
	manager, _ := readyManager(t, CreateOptions{})

	a := manager.AllocHandle(100, 0)
	b := manager.AllocHandle(100, 0)
	c := manager.AllocHandle(100, 0)
	require.Equal(t, [][2]int{{336, 688}}, freeRanges(manager))

	manager.FreeHandle(a)
	require.Equal(t, [][2]int{{0, 112}, {336, 688}}, freeRanges(manager))
	require.NoError(t, manager.Validate())

	manager.FreeHandle(c)
	require.Equal(t, [][2]int{{0, 112}, {224, 800}}, freeRanges(manager))
	require.NoError(t, manager.Validate())

	manager.FreeHandle(b)
	require.Equal(t, [][2]int{{0, 1024}}, freeRanges(manager))
	require.NoError(t, manager.Validate())
}

func TestFreeEntriesTrackTheirParent(t *testing.T) {
	manager, _ := readyManager(t, CreateOptions{})

	a := manager.AllocHandle(100, 0)
	b := manager.AllocHandle(100, 0)
	manager.AllocHandle(100, 0)
	manager.FreeHandle(b)

	first := manager.rec(freeList).next
	require.Equal(t, a, manager.rec(first).parent)
	require.Equal(t, 112, manager.rec(first).offset)
}

func TestGrabRangeRejectsMiddleCarve(t *testing.T) {
	manager, _ := readyManager(t, CreateOptions{})

	require.Panics(t, func() {
		manager.grabRange(64, 16, usedLow, NoHandle)
	})
}

func TestGrabRangeRejectsUnknownRange(t *testing.T) {
	manager, _ := readyManager(t, CreateOptions{})
	manager.AllocHandle(1024, 0)

	require.Panics(t, func() {
		manager.grabRange(0, 16, usedLow, NoHandle)
	})
}

func TestReleaseRangeRejectsOverlap(t *testing.T) {
	manager, _ := readyManager(t, CreateOptions{})

	require.Panics(t, func() {
		manager.releaseRange(0, 16, usedLow)
	})
}

func TestFreeHandleRejectsStaleHandle(t *testing.T) {
	manager, _ := readyManager(t, CreateOptions{})

	h := manager.AllocHandle(100, 0)
	manager.FreeHandle(h)

	require.Panics(t, func() {
		manager.FreeHandle(h)
	})
	require.Panics(t, func() {
		manager.FreeHandle(freeList)
	})
	require.Panics(t, func() {
		manager.Size(Handle(100000))
	})
}
