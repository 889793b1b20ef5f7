package handles

import (
	"github.com/arsenal-go/handlemem/memutils"
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// FreeHandle releases a handle and its memory. NoHandle is ignored, as is any handle passed in
// after the manager has been shut down.
func (m *Manager) FreeHandle(h Handle) {
	m.logger.Debug("Manager::FreeHandle", slog.Int("Handle", int(h)))
	if h == NoHandle || m.shutdown {
		return
	}

	m.freeHandle(h)

	memutils.DebugValidate(m)
}

func (m *Manager) freeHandle(h Handle) {
	r := m.mustRecord(h)

	switch r.state {
	case stateMalloc:
		err := m.provider.Free(r.malloc)
		if err != nil {
			m.logger.Error("failed to release a fallback allocation", slog.Int("Handle", int(h)), slog.Any("error", err))
		}
		m.mallocBytes -= cap(r.malloc)
		m.totalAllocated -= r.length
		m.unlink(h)
	case statePurged:
		m.unlink(h)
	default:
		m.dequeuePurge(h)
		prev := r.prev
		m.unlink(h)
		m.releaseRange(r.offset, r.length, prev)
		m.totalAllocated -= r.length
	}

	m.retireRecord(h)
}

// ReallocHandle changes the size of a handle's block, keeping min(old, new) bytes of its data.
// A shrinking block stays in place and keeps its handle. A growing block is copied to a new
// handle, which is returned, and the old handle is released. If the new block cannot be
// allocated, NoHandle is returned and the old handle is left untouched.
//
// A NoHandle input allocates a new movable block, and a size of zero or less frees the handle
// and returns NoHandle.
func (m *Manager) ReallocHandle(h Handle, size int) Handle {
	m.logger.Debug("Manager::ReallocHandle", slog.Int("Handle", int(h)), slog.Int("Size", size))
	if m.shutdown {
		return NoHandle
	}

	if h == NoHandle {
		if size <= 0 {
			return NoHandle
		}
		h = m.allocHandle(size, 0)
		memutils.DebugValidate(m)
		return h
	}

	if size <= 0 {
		m.freeHandle(h)
		memutils.DebugValidate(m)
		return NoHandle
	}

	newHandle := m.reallocHandle(h, size)

	memutils.DebugValidate(m)
	return newHandle
}

func (m *Manager) reallocHandle(h Handle, size int) Handle {
	r := m.mustRecord(h)
	oldSize := r.length
	if size == oldSize {
		return h
	}

	if size > maxRequestSize(m.alignment) {
		return NoHandle
	}

	if r.state == statePurged {
		r.length = size
		return h
	}

	if size < oldSize && r.state == stateUsed {
		oldPadded := m.align(oldSize)
		newPadded := m.align(size)
		r.length = size
		m.totalAllocated -= oldSize - size
		if newPadded < oldPadded {
			m.releaseRange(r.offset+newPadded, oldPadded-newPadded, h)
		}
		return h
	}

	// Keep the source out of reach of the purge pass that the allocation may run
	purgeable := m.queued(h)
	m.dequeuePurge(h)

	newHandle := m.allocHandle(size, r.flags)
	if newHandle == NoHandle {
		if purgeable {
			m.queuePurge(h)
		}
		return NoHandle
	}

	// The source may have been relocated by compaction, so its bytes are only looked up now
	copy(m.bytes(newHandle), m.bytes(h))
	m.rec(newHandle).id = r.id
	if purgeable && m.rec(newHandle).state == stateUsed {
		m.queuePurge(newHandle)
	}

	m.freeHandle(h)
	return newHandle
}

// RefreshHandle makes sure a handle has memory. If the handle still holds its data, it is taken
// out of the purge queue and returned as is. If it was purged, it is released and a new handle
// of the same size and flags is allocated in its place; the caller must then reload the data.
// NoHandle is returned if the new allocation fails.
func (m *Manager) RefreshHandle(h Handle) Handle {
	m.logger.Debug("Manager::RefreshHandle", slog.Int("Handle", int(h)))
	if h == NoHandle || m.shutdown {
		return NoHandle
	}

	r := m.mustRecord(h)
	if r.state != statePurged {
		m.dequeuePurge(h)
		return h
	}

	size := r.length
	flags := r.flags
	id := r.id
	m.freeHandle(h)

	newHandle := m.allocHandle(size, flags)
	if newHandle != NoHandle {
		m.rec(newHandle).id = id
	}

	memutils.DebugValidate(m)
	return newHandle
}

// FindHandle returns the handle whose arena block contains the first byte of buf. buf does not
// need to start at the beginning of the block. NoHandle is returned if buf is not part of any
// block in the arena.
func (m *Manager) FindHandle(buf []byte) Handle {
	if m.shutdown {
		return NoHandle
	}

	offset, ok := m.arenaOffset(buf)
	if !ok {
		return NoHandle
	}

	for h := m.rec(usedLow).next; h != usedHigh; h = m.rec(h).next {
		r := m.rec(h)
		if r.offset > offset {
			break
		}
		if offset < r.offset+r.length {
			return h
		}
	}
	return NoHandle
}

// Size returns the number of bytes requested for a handle, or 0 for NoHandle
func (m *Manager) Size(h Handle) int {
	if h == NoHandle || m.shutdown {
		return 0
	}
	return m.mustRecord(h).length
}

// Lock pins a handle's block in place and returns its bytes. The slice stays valid until the
// handle is unlocked. A purged handle returns nil. Locks do not nest: a single Unlock releases
// any number of Lock calls.
func (m *Manager) Lock(h Handle) []byte {
	if h == NoHandle || m.shutdown {
		return nil
	}

	r := m.mustRecord(h)
	if r.state == statePurged {
		return nil
	}
	r.flags |= FlagLocked
	return m.bytes(h)
}

// Unlock allows a handle's block to be relocated by compaction again
func (m *Manager) Unlock(h Handle) {
	if h == NoHandle || m.shutdown {
		return
	}

	m.mustRecord(h).flags &^= FlagLocked
}

// SetID tags a handle with an ID that shows up in DumpHandles. The manager's own IDs cannot be
// assigned.
func (m *Manager) SetID(h Handle, id ID) {
	if h == NoHandle || m.shutdown {
		return
	}

	if id == IDUnused || id == IDFree || id == IDReserved {
		panic(errors.AssertionFailedf("ID %d is reserved by the manager", id))
	}
	m.mustRecord(h).id = id
}

// ID returns the tag of a handle
func (m *Manager) ID(h Handle) ID {
	if h == NoHandle || m.shutdown {
		return IDDefault
	}
	return m.mustRecord(h).id
}
