package handles

import (
	"math"
	"unsafe"

	"github.com/arsenal-go/handlemem/memutils"
	"golang.org/x/exp/slog"
)

type allocStage int

const (
	allocStageCompact allocStage = iota
	allocStagePurge
	allocStageExhausted
)

// AllocHandle allocates size bytes and returns a handle to them. Movable blocks are placed at
// the lowest address that fits and FlagFixed blocks at the highest, so fixed blocks collect at
// the top of the arena. If nothing fits, the manager compacts, then purges, then compacts again
// before falling back to the system provider. NoHandle is returned if size is not positive or
// the memory cannot be found anywhere.
//
// FlagMalloc and FlagPurgeable are ignored; use SetPurgeFlag to make a handle purgeable.
func (m *Manager) AllocHandle(size int, flags Flags) Handle {
	m.logger.Debug("Manager::AllocHandle", slog.Int("Size", size), slog.String("Flags", flags.String()))

	h := m.allocHandle(size, flags)

	memutils.DebugValidate(m)
	return h
}

func (m *Manager) allocHandle(size int, flags Flags) Handle {
	if size <= 0 || m.shutdown {
		return NoHandle
	}
	if size > maxRequestSize(m.alignment) {
		m.logger.Warn("allocation request is too large to pad", slog.Int("Size", size))
		return NoHandle
	}

	padded := m.align(size)
	flags &= FlagFixed | FlagLocked

	h := m.allocRecord()
	r := m.rec(h)
	r.length = size
	r.flags = flags
	r.state = statePending
	m.pending++
	defer func() { m.pending-- }()

	stage := allocStageCompact
	for {
		if m.place(h, padded) {
			r.state = stateUsed
			m.totalAllocated += size
			return h
		}

		switch stage {
		case allocStageCompact:
			m.logger.Debug("arena has no room, compacting", slog.Int("Size", padded))
			m.compact()
			stage = allocStagePurge
			continue
		case allocStagePurge:
			m.logger.Debug("arena has no room after compaction, purging", slog.Int("Size", padded))
			if m.purgeHandles(padded) {
				stage = allocStageCompact
			} else {
				stage = allocStageExhausted
			}
			continue
		}

		break
	}

	if m.allocFallback(h, size) {
		return h
	}

	m.retireRecord(h)
	return NoHandle
}

// maxRequestSize is the largest size that can be padded to alignment, with room for the extra
// alignment bytes of a fallback buffer
func maxRequestSize(alignment int) int {
	return math.MaxInt - alignment
}

// place scans the free ledger for the first run that can hold padded bytes and carves the
// record's data out of it
func (m *Manager) place(h Handle, padded int) bool {
	r := m.rec(h)

	if r.flags&FlagFixed != 0 {
		for run := m.rec(freeList).prev; run != freeList; run = m.rec(run).prev {
			free := m.rec(run)
			if free.length < padded {
				continue
			}

			parent := free.parent
			r.offset = free.offset + free.length - padded
			m.linkAfter(parent, h)
			m.grabRange(r.offset, padded, parent, run)
			return true
		}
		return false
	}

	for run := m.rec(freeList).next; run != freeList; run = m.rec(run).next {
		free := m.rec(run)
		if free.length < padded {
			continue
		}

		r.offset = free.offset
		m.linkAfter(free.parent, h)
		m.grabRange(r.offset, padded, h, run)
		return true
	}
	return false
}

// allocFallback serves the record from a buffer of its own, obtained directly from the system
// provider. The record stays out of every ledger.
func (m *Manager) allocFallback(h Handle, size int) bool {
	buf, err := m.provider.Alloc(size + m.alignment)
	if err != nil {
		m.logger.Warn("arena exhausted and the system cannot supply a fallback buffer",
			slog.Int("Size", size),
			slog.Any("error", err),
		)
		return false
	}

	memutils.DebugCheckPow2(m.alignment, "alignment")
	base := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	skip := int(memutils.AlignUp(base, uintptr(m.alignment)) - base)

	r := m.rec(h)
	r.malloc = buf
	r.offset = skip
	r.flags |= FlagMalloc
	r.state = stateMalloc
	m.linkAfter(mallocList, h)

	m.totalAllocated += size
	m.mallocBytes += cap(buf)

	m.logger.Warn("arena exhausted, allocation served by the system provider",
		slog.Int("Size", size),
		slog.Int("Handle", int(h)),
	)
	return true
}
