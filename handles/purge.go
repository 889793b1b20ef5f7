package handles

import (
	"github.com/arsenal-go/handlemem/memutils"
	"golang.org/x/exp/slog"
)

// SetPurgeFlag marks a handle as purgeable or not. Purgeable handles wait in a queue and are
// discarded oldest-first when the arena runs out of room. Marking a handle that is already
// purgeable does not change its place in the queue. Fallback allocations are never purgeable.
func (m *Manager) SetPurgeFlag(h Handle, purgeable bool) {
	m.logger.Debug("Manager::SetPurgeFlag", slog.Int("Handle", int(h)), slog.Bool("Purgeable", purgeable))
	if h == NoHandle || m.shutdown {
		return
	}

	r := m.mustRecord(h)
	if r.state == stateMalloc {
		return
	}

	if !purgeable {
		m.dequeuePurge(h)
		return
	}

	if r.state == stateUsed {
		m.queuePurge(h)
	}
}

// LockedState returns the handle's flags. FlagPurgeable is reported while the handle is waiting
// in the purge queue.
func (m *Manager) LockedState(h Handle) Flags {
	if h == NoHandle || m.shutdown {
		return 0
	}

	r := m.mustRecord(h)
	flags := r.flags
	if m.queued(h) {
		flags |= FlagPurgeable
	}
	return flags
}

// SetLockedState applies the FlagLocked and FlagPurgeable bits of flags to the handle, typically
// to restore a state previously returned by LockedState. All other bits are ignored.
func (m *Manager) SetLockedState(h Handle, flags Flags) {
	m.logger.Debug("Manager::SetLockedState", slog.Int("Handle", int(h)), slog.String("Flags", flags.String()))
	if h == NoHandle || m.shutdown {
		return
	}

	r := m.mustRecord(h)
	if r.state == statePurged {
		return
	}

	r.flags = r.flags&^FlagLocked | flags&FlagLocked
	if r.state == stateMalloc {
		return
	}

	if flags&FlagPurgeable != 0 {
		m.queuePurge(h)
	} else {
		m.dequeuePurge(h)
	}
}

// Purge discards the data of a handle and returns its memory to the arena. The handle itself
// survives: Lock returns nil for it until RefreshHandle gives it memory again. Handles that are
// already purged and fallback allocations are left alone. If the purge callback is registered,
// it receives StagePurge first.
func (m *Manager) Purge(h Handle) {
	m.logger.Debug("Manager::Purge", slog.Int("Handle", int(h)))
	if h == NoHandle || m.shutdown {
		return
	}

	r := m.mustRecord(h)
	if r.state != stateUsed {
		return
	}

	m.callbacks.Notify(StagePurge)

	// The callback may have released the handle itself
	if r.state == stateUsed {
		m.purge(h)
	}

	memutils.DebugValidate(m)
}

// PurgeHandles purges handles from the purge queue, oldest first, until at least target bytes
// have been returned to the arena or the queue is empty. It returns true if any handle was
// purged.
func (m *Manager) PurgeHandles(target int) bool {
	m.logger.Debug("Manager::PurgeHandles", slog.Int("Target", target))
	if m.shutdown {
		return false
	}

	purged := m.purgeHandles(target)

	memutils.DebugValidate(m)
	return purged
}

func (m *Manager) purgeHandles(target int) bool {
	if m.rec(purgeQueue).purgePrev == purgeQueue {
		return false
	}

	m.callbacks.Notify(StagePurge)

	reclaimed := 0
	count := 0
	for h := m.rec(purgeQueue).purgePrev; h != purgeQueue && (count == 0 || reclaimed < target); {
		older := m.rec(h).purgePrev
		reclaimed += m.align(m.rec(h).length)
		m.purge(h)
		count++
		h = older
	}

	if count > 0 {
		m.logger.Debug("purged handles", slog.Int("PurgedCount", count), slog.Int("ReclaimedBytes", reclaimed))
	}
	return count > 0
}

func (m *Manager) purge(h Handle) {
	r := m.rec(h)
	r.flags &^= FlagLocked
	m.dequeuePurge(h)

	prev := r.prev
	m.unlink(h)
	m.releaseRange(r.offset, r.length, prev)
	r.offset = noData
	r.state = statePurged
	m.totalAllocated -= r.length

	m.linkAfter(purgedList, h)
}
