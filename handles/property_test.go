package handles

import (
	"math/rand"
	"testing"

	"github.com/arsenal-go/handlemem/memutils"
	"github.com/arsenal-go/handlemem/memutils/sysmem"
	"github.com/stretchr/testify/require"
)

type liveHandle struct {
	handle Handle
	value  byte
	purged bool
}

type livePointer struct {
	buf   []byte
	value byte
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	manager, _ := readyManager(t, CreateOptions{
		ArenaSize: 64 * 1024,
		Provider:  &sysmem.HeapProvider{Limit: 96 * 1024},
	})
	random := rand.New(rand.NewSource(1))

	var handles []*liveHandle
	var pointers []*livePointer
	nextValue := byte(1)
	value := func() byte {
		nextValue++
		if nextValue == 0 {
			nextValue = 1
		}
		return nextValue
	}

	pick := func() (int, *liveHandle) {
		index := random.Intn(len(handles))
		return index, handles[index]
	}
	remove := func(index int) {
		handles[index] = handles[len(handles)-1]
		handles = handles[:len(handles)-1]
	}

	steps := 3000
	if memutils.DebugEnabled {
		// Every call already validates the whole manager
		steps = 500
	}

	for step := 0; step < steps; step++ {
		op := random.Intn(12)
		if len(handles) == 0 {
			op = 0
		}

		switch op {
		case 0, 1:
			var flags Flags
			if random.Intn(5) == 0 {
				flags |= FlagFixed
			}
			h := manager.AllocHandle(1+random.Intn(3000), flags)
			if h != NoHandle {
				live := &liveHandle{handle: h, value: value()}
				fill(manager, h, live.value)
				handles = append(handles, live)
			}
		case 2:
			index, live := pick()
			manager.FreeHandle(live.handle)
			remove(index)
		case 3:
			_, live := pick()
			h := manager.ReallocHandle(live.handle, 1+random.Intn(3000))
			if h != NoHandle {
				live.handle = h
				if !live.purged {
					// The surviving prefix keeps its value, so refill the whole block
					fill(manager, h, live.value)
				}
			}
		case 4:
			_, live := pick()
			manager.SetPurgeFlag(live.handle, random.Intn(2) == 0)
		case 5:
			_, live := pick()
			if manager.Lock(live.handle) == nil {
				require.True(t, live.purged)
			}
		case 6:
			_, live := pick()
			manager.Unlock(live.handle)
		case 7:
			_, live := pick()
			manager.Purge(live.handle)
		case 8:
			manager.CompactHandles()
		case 9:
			_, live := pick()
			h := manager.RefreshHandle(live.handle)
			if h != NoHandle && live.purged {
				live.handle = h
				live.purged = false
				fill(manager, h, live.value)
			} else if h == NoHandle {
				live.handle = NoHandle
			}
		case 10:
			if len(pointers) > 0 && random.Intn(2) == 0 {
				index := random.Intn(len(pointers))
				manager.Free(pointers[index].buf)
				pointers[index] = pointers[len(pointers)-1]
				pointers = pointers[:len(pointers)-1]
			} else {
				buf := manager.Allocate(1 + random.Intn(512))
				if buf != nil {
					live := &livePointer{buf: buf, value: value()}
					for i := range buf {
						buf[i] = live.value
					}
					pointers = append(pointers, live)
				}
			}
		case 11:
			manager.PurgeHandles(random.Intn(4096))
		}

		// Drop handles that a failed refresh released
		for index := len(handles) - 1; index >= 0; index-- {
			if handles[index].handle == NoHandle {
				remove(index)
			}
		}

		require.NoErrorf(t, manager.Validate(), "step %d", step)

		for _, live := range handles {
			if manager.rec(live.handle).state == statePurged {
				live.purged = true
				continue
			}
			require.False(t, live.purged, "step %d: handle %d came back without a refresh", step, live.handle)
			requireFilled(t, manager, live.handle, live.value)
		}
		for _, live := range pointers {
			for i, b := range live.buf {
				if b != live.value {
					require.Failf(t, "unexpected pointer contents", "step %d: byte %d is %#x, expected %#x", step, i, b, live.value)
				}
			}
		}
	}

	for _, live := range handles {
		manager.FreeHandle(live.handle)
	}
	for _, live := range pointers {
		manager.Free(live.buf)
	}
	require.NoError(t, manager.Validate())
	require.Equal(t, 0, manager.TotalAllocatedMemory())
	require.Equal(t, [][2]int{{0, 64 * 1024}}, freeRanges(manager))
}
