package handles

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompactRespectsLocks(t *testing.T) {
	manager, _ := readyManager(t, CreateOptions{})

	a := manager.AllocHandle(100, 0)
	b := manager.AllocHandle(100, 0)
	c := manager.AllocHandle(100, 0)
	fill(manager, b, 0xBB)
	fill(manager, c, 0xCC)
	manager.FreeHandle(a)

	locked := manager.Lock(b)
	require.NotNil(t, locked)
	manager.CompactHandles()
	require.Equal(t, 112, manager.rec(b).offset)
	require.Equal(t, 224, manager.rec(c).offset)
	require.Equal(t, addressOf(locked), addressOf(manager.Lock(b)))

	manager.Unlock(b)
	manager.CompactHandles()
	require.Equal(t, 0, manager.rec(b).offset)
	require.Equal(t, 112, manager.rec(c).offset)
	require.Equal(t, [][2]int{{224, 800}}, freeRanges(manager))
	requireFilled(t, manager, b, 0xBB)
	requireFilled(t, manager, c, 0xCC)
	require.NoError(t, manager.Validate())
}

func TestCompactLeavesFixedBlocks(t *testing.T) {
	manager, _ := readyManager(t, CreateOptions{})

	fixed := manager.AllocHandle(100, FlagFixed)
	a := manager.AllocHandle(100, 0)
	b := manager.AllocHandle(100, 0)
	fill(manager, fixed, 0xF0)
	manager.FreeHandle(a)

	manager.CompactHandles()
	require.Equal(t, 0, manager.rec(b).offset)
	require.Equal(t, 912, manager.rec(fixed).offset)
	require.Equal(t, [][2]int{{112, 800}}, freeRanges(manager))
	requireFilled(t, manager, fixed, 0xF0)
	require.NoError(t, manager.Validate())
}

func TestCompactNotifiesOnlyWhenMoving(t *testing.T) {
	var recorder stageRecorder
	manager, _ := readyManager(t, CreateOptions{Callbacks: recorder.Callbacks()})

	a := manager.AllocHandle(100, 0)
	manager.AllocHandle(100, 0)
	manager.AllocHandle(100, 0)

	manager.CompactHandles()
	require.Empty(t, recorder.stages)

	manager.FreeHandle(a)
	manager.CompactHandles()
	require.Equal(t, []Stage{StageCompact}, recorder.stages)
	require.NoError(t, manager.Validate())
}

func TestCompactCallbackMayFreeHandles(t *testing.T) {
	var doomed Handle
	manager, _ := readyManager(t, CreateOptions{
		Callbacks: &CallbackOptions{
			Purge: func(manager *Manager, stage Stage, userData any) {
				manager.FreeHandle(doomed)
				doomed = NoHandle
			},
		},
	})

	a := manager.AllocHandle(100, 0)
	b := manager.AllocHandle(100, 0)
	doomed = manager.AllocHandle(100, 0)
	d := manager.AllocHandle(100, 0)
	fill(manager, d, 0xDD)
	manager.FreeHandle(a)

	manager.CompactHandles()
	require.Equal(t, NoHandle, doomed)
	require.Equal(t, 0, manager.rec(b).offset)
	require.Equal(t, 112, manager.rec(d).offset)
	requireFilled(t, manager, d, 0xDD)
	require.Equal(t, [][2]int{{224, 800}}, freeRanges(manager))
	require.NoError(t, manager.Validate())
}
