package handles

import (
	"unsafe"

	"github.com/arsenal-go/handlemem/alloc"
	"github.com/arsenal-go/handlemem/memutils"
	"github.com/arsenal-go/handlemem/memutils/sysmem"
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"golang.org/x/exp/slog"
)

// Manager hands out relocatable blocks of a single arena. Blocks are addressed by Handle and
// may be moved by compaction or discarded by purging whenever they are not locked, which lets
// the arena be used without fragmenting over time.
//
// A Manager is not safe for concurrent use. Callers that share one between goroutines must
// serialize access themselves, for instance with a synchronized alloc.Context.
type Manager struct {
	logger    *slog.Logger
	provider  sysmem.Provider
	system    *sysmem.ChunkList
	callbacks purgeCallbacks

	arena     []byte
	alignment int

	records     [][]record
	handleCount int
	poolHead    Handle
	recordBytes int
	pending     int

	pointers *swiss.Map[uintptr, Handle]

	totalAllocated int
	mallocBytes    int
	shutdown       bool
}

var _ alloc.Allocator = &Manager{}
var _ memutils.Validatable = &Manager{}

// record is the bookkeeping entry behind every handle, free range and sentinel
type record struct {
	offset int
	length int
	flags  Flags
	id     ID
	state  recordState

	prev Handle
	next Handle

	purgePrev Handle
	purgeNext Handle

	parent Handle

	malloc []byte
}

func (m *Manager) rec(h Handle) *record {
	chunk := int(h) / m.handleCount
	return &m.records[chunk][int(h)%m.handleCount]
}

// mustRecord returns the record of a handle that a caller passed in, panicking if the handle
// does not identify a live allocation
func (m *Manager) mustRecord(h Handle) *record {
	if h < firstPoolHandle || int(h) >= len(m.records)*m.handleCount {
		panic(errors.AssertionFailedf("handle %d does not belong to this manager", h))
	}

	r := m.rec(h)
	if r.state != stateUsed && r.state != statePurged && r.state != stateMalloc {
		panic(errors.AssertionFailedf("handle %d is not allocated (%s)", h, r.state))
	}
	return r
}

func (m *Manager) align(size int) int {
	return memutils.AlignUp(size, m.alignment)
}

// linkAfter inserts h into the address list that parent belongs to, directly after parent
func (m *Manager) linkAfter(parent, h Handle) {
	p := m.rec(parent)
	r := m.rec(h)
	r.prev = parent
	r.next = p.next
	m.rec(p.next).prev = h
	p.next = h
}

func (m *Manager) unlink(h Handle) {
	r := m.rec(h)
	m.rec(r.prev).next = r.next
	m.rec(r.next).prev = r.prev
	r.prev = NoHandle
	r.next = NoHandle
}

func (m *Manager) queued(h Handle) bool {
	return m.rec(h).purgeNext != NoHandle
}

// queuePurge adds h to the newest end of the purge queue
func (m *Manager) queuePurge(h Handle) {
	if m.queued(h) {
		return
	}

	queue := m.rec(purgeQueue)
	r := m.rec(h)
	r.purgePrev = purgeQueue
	r.purgeNext = queue.purgeNext
	m.rec(queue.purgeNext).purgePrev = h
	queue.purgeNext = h
}

func (m *Manager) dequeuePurge(h Handle) {
	if !m.queued(h) {
		return
	}

	r := m.rec(h)
	m.rec(r.purgePrev).purgeNext = r.purgeNext
	m.rec(r.purgeNext).purgePrev = r.purgePrev
	r.purgePrev = NoHandle
	r.purgeNext = NoHandle
}

// bytes returns the data of a handle, or nil if the handle has been purged
func (m *Manager) bytes(h Handle) []byte {
	r := m.rec(h)
	if r.offset == noData {
		return nil
	}

	end := r.offset + r.length
	if r.state == stateMalloc {
		return r.malloc[r.offset:end:end]
	}
	return m.arena[r.offset:end:end]
}

// arenaOffset converts the address of buf's first byte to an arena offset
func (m *Manager) arenaOffset(buf []byte) (int, bool) {
	if cap(buf) == 0 || len(m.arena) == 0 {
		return 0, false
	}

	base := uintptr(unsafe.Pointer(unsafe.SliceData(m.arena)))
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	if addr < base || addr >= base+uintptr(len(m.arena)) {
		return 0, false
	}
	return int(addr - base), true
}

// ArenaSize returns the number of bytes in the arena
func (m *Manager) ArenaSize() int {
	return len(m.arena)
}

// Alignment returns the granularity of every allocation
func (m *Manager) Alignment() int {
	return m.alignment
}

// TotalAllocatedMemory returns the number of bytes requested by every allocation that currently
// holds data, without alignment padding
func (m *Manager) TotalAllocatedMemory() int {
	return m.totalAllocated
}

// TotalSystemMemory returns the number of bytes the manager has obtained from the system: the
// arena, the record pool and any fallback allocations
func (m *Manager) TotalSystemMemory() int {
	return m.system.TotalBytes() + m.recordBytes + m.mallocBytes
}

// TotalHandleCount returns the number of handle records that the record pool has grown to,
// whether or not they are in use
func (m *Manager) TotalHandleCount() int {
	total := len(m.records)*m.handleCount - int(firstPoolHandle)
	if total < 0 {
		return 0
	}
	return total
}

// Shutdown releases the arena and every fallback allocation back to the system. Handles and
// slices obtained from the manager must not be used afterward. It is safe to call Shutdown more
// than once.
func (m *Manager) Shutdown() {
	if m.shutdown {
		return
	}
	m.logger.Debug("Manager::Shutdown")

	if m.totalAllocated > 0 {
		m.logger.Warn("handle manager shut down with live allocations",
			slog.Int("AllocatedBytes", m.totalAllocated),
			slog.Int("PointerCount", m.pointers.Count()),
		)
	}

	var err error
	if len(m.records) > 0 {
		for h := m.rec(mallocList).next; h != mallocList; h = m.rec(h).next {
			err = errors.CombineErrors(err, m.provider.Free(m.rec(h).malloc))
		}
	}
	err = errors.CombineErrors(err, m.system.ReleaseAll())
	if err != nil {
		m.logger.Error("failed to release system memory", slog.Any("error", err))
	}

	m.shutdown = true
	m.arena = nil
	m.records = nil
	m.poolHead = NoHandle
	m.recordBytes = 0
	m.mallocBytes = 0
	m.totalAllocated = 0
	m.pointers = swiss.NewMap[uintptr, Handle](uint32(MinimumHandleCount))
}
