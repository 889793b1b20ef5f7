package handles

import (
	"github.com/arsenal-go/handlemem/memutils"
	"github.com/cockroachdb/errors"
)

// Validate checks every structural invariant of the manager and returns an error describing the
// first violation found. It walks every list, so it is meant for tests and debugging; builds with
// the debug_mem_utils tag run it after every mutating call.
func (m *Manager) Validate() error {
	if m.shutdown {
		return nil
	}

	for h := usedLow; h < firstPoolHandle; h++ {
		r := m.rec(h)
		if r.state != stateSentinel || r.id != IDReserved {
			return errors.Errorf("sentinel %d has state %s and ID %d", h, r.state, r.id)
		}
	}

	low := m.rec(usedLow)
	high := m.rec(usedHigh)
	if low.offset != 0 || low.length != 0 || high.offset != len(m.arena) || high.length != 0 {
		return errors.Errorf("used ledger sentinels span %d+%d to %d+%d, expected the arena bounds 0 to %d", low.offset, low.length, high.offset, high.length, len(m.arena))
	}

	listed := 0

	usedBytes, usedCount, allocated, err := m.validateUsed()
	if err != nil {
		return err
	}
	listed += usedCount

	freeBytes, freeCount, err := m.validateFree()
	if err != nil {
		return err
	}
	listed += freeCount

	if usedBytes+freeBytes != len(m.arena) {
		return errors.Errorf("used ledger holds %d bytes and free ledger holds %d bytes, but the arena is %d bytes", usedBytes, freeBytes, len(m.arena))
	}

	count, err := m.validateList(purgedList, statePurged, func(h Handle, r *record) error {
		if r.offset != noData {
			return errors.Errorf("purged handle %d still points at offset %d", h, r.offset)
		}
		if m.queued(h) {
			return errors.Errorf("purged handle %d is in the purge queue", h)
		}
		return nil
	})
	if err != nil {
		return err
	}
	listed += count

	count, err = m.validateList(mallocList, stateMalloc, func(h Handle, r *record) error {
		if r.flags&FlagMalloc == 0 {
			return errors.Errorf("fallback handle %d is missing FlagMalloc", h)
		}
		if r.offset+r.length > len(r.malloc) {
			return errors.Errorf("fallback handle %d spans %d+%d of a %d byte buffer", h, r.offset, r.length, len(r.malloc))
		}
		if m.queued(h) {
			return errors.Errorf("fallback handle %d is in the purge queue", h)
		}
		allocated += r.length
		return nil
	})
	if err != nil {
		return err
	}
	listed += count

	if allocated != m.totalAllocated {
		return errors.Errorf("handles hold %d bytes, but the allocated total is %d", allocated, m.totalAllocated)
	}

	err = m.validatePurgeQueue()
	if err != nil {
		return err
	}

	poolCount := 0
	for h := m.poolHead; h != NoHandle; h = m.rec(h).next {
		if m.rec(h).state != statePool {
			return errors.Errorf("record %d is in the record pool but has state %s", h, m.rec(h).state)
		}
		poolCount++
		if poolCount > m.TotalHandleCount() {
			return errors.New("the record pool contains a cycle")
		}
	}
	listed += poolCount
	// Records still being placed by an allocation that is running a purge callback
	listed += m.pending

	if listed != m.TotalHandleCount() {
		return errors.Errorf("%d records are accounted for, but the pool has grown to %d", listed, m.TotalHandleCount())
	}

	var pointerErr error
	m.pointers.Iter(func(address uintptr, h Handle) bool {
		r := m.rec(h)
		if r.state != stateUsed && r.state != stateMalloc {
			pointerErr = errors.Errorf("pointer %#x refers to handle %d with state %s", address, h, r.state)
			return true
		}
		if r.flags&FlagFixed == 0 {
			pointerErr = errors.Errorf("pointer %#x refers to movable handle %d", address, h)
			return true
		}
		if addressOf(m.bytes(h)) != address {
			pointerErr = errors.Errorf("pointer %#x refers to handle %d, which is at %#x", address, h, addressOf(m.bytes(h)))
			return true
		}
		return false
	})
	return pointerErr
}

func (m *Manager) validateUsed() (usedBytes, count, allocated int, err error) {
	end := 0
	prev := usedLow
	for h := m.rec(usedLow).next; h != usedHigh; h = m.rec(h).next {
		r := m.rec(h)
		if r.state != stateUsed {
			return 0, 0, 0, errors.Errorf("record %d is in the used ledger but has state %s", h, r.state)
		}
		if r.prev != prev {
			return 0, 0, 0, errors.Errorf("used handle %d links back to %d instead of %d", h, r.prev, prev)
		}
		if r.length <= 0 {
			return 0, 0, 0, errors.Errorf("used handle %d has length %d", h, r.length)
		}
		if r.offset < end || !memutils.IsAligned(r.offset, m.alignment) {
			return 0, 0, 0, errors.Errorf("used handle %d is at offset %d, but the previous block ends at %d", h, r.offset, end)
		}

		padded := m.align(r.length)
		end = r.offset + padded
		usedBytes += padded
		allocated += r.length
		prev = h

		count++
		if count > m.TotalHandleCount() {
			return 0, 0, 0, errors.New("the used ledger contains a cycle")
		}
	}

	if m.rec(usedHigh).prev != prev {
		return 0, 0, 0, errors.Errorf("used ledger tail is %d, but the last handle is %d", m.rec(usedHigh).prev, prev)
	}
	if end > len(m.arena) {
		return 0, 0, 0, errors.Errorf("used ledger extends to %d, past the end of the %d byte arena", end, len(m.arena))
	}
	return usedBytes, count, allocated, nil
}

func (m *Manager) validateFree() (freeBytes, count int, err error) {
	end := -1
	prev := freeList
	for h := m.rec(freeList).next; h != freeList; h = m.rec(h).next {
		r := m.rec(h)
		if r.state != stateFreeRange || r.id != IDFree {
			return 0, 0, errors.Errorf("record %d is in the free ledger but has state %s and ID %d", h, r.state, r.id)
		}
		if r.prev != prev {
			return 0, 0, errors.Errorf("free entry %d links back to %d instead of %d", h, r.prev, prev)
		}
		if r.length <= 0 || !memutils.IsAligned(r.length, m.alignment) || !memutils.IsAligned(r.offset, m.alignment) {
			return 0, 0, errors.Errorf("free entry %d has unaligned range %d+%d", h, r.offset, r.length)
		}
		if r.offset < end {
			return 0, 0, errors.Errorf("free entry %d at offset %d overlaps the previous entry, which ends at %d", h, r.offset, end)
		}
		if r.offset == end {
			return 0, 0, errors.Errorf("free entry %d at offset %d abuts the previous entry", h, r.offset)
		}

		parent := m.rec(r.parent)
		if r.parent != usedLow && parent.state != stateUsed {
			return 0, 0, errors.Errorf("free entry %d has parent %d with state %s", h, r.parent, parent.state)
		}
		if parent.offset+m.align(parent.length) != r.offset {
			return 0, 0, errors.Errorf("free entry %d at offset %d does not follow its parent %d, which ends at %d", h, r.offset, r.parent, parent.offset+m.align(parent.length))
		}

		end = r.offset + r.length
		freeBytes += r.length
		prev = h

		count++
		if count > m.TotalHandleCount() {
			return 0, 0, errors.New("the free ledger contains a cycle")
		}
	}

	if m.rec(freeList).prev != prev {
		return 0, 0, errors.Errorf("free ledger tail is %d, but the last entry is %d", m.rec(freeList).prev, prev)
	}
	return freeBytes, count, nil
}

func (m *Manager) validateList(sentinel Handle, state recordState, check func(h Handle, r *record) error) (int, error) {
	count := 0
	prev := sentinel
	for h := m.rec(sentinel).next; h != sentinel; h = m.rec(h).next {
		r := m.rec(h)
		if r.state != state {
			return 0, errors.Errorf("record %d is in the %s list but has state %s", h, state, r.state)
		}
		if r.prev != prev {
			return 0, errors.Errorf("record %d links back to %d instead of %d", h, r.prev, prev)
		}

		err := check(h, r)
		if err != nil {
			return 0, err
		}

		prev = h
		count++
		if count > m.TotalHandleCount() {
			return 0, errors.Errorf("the %s list contains a cycle", state)
		}
	}
	return count, nil
}

func (m *Manager) validatePurgeQueue() error {
	count := 0
	prev := purgeQueue
	for h := m.rec(purgeQueue).purgeNext; h != purgeQueue; h = m.rec(h).purgeNext {
		r := m.rec(h)
		if r.state != stateUsed {
			return errors.Errorf("handle %d is in the purge queue but has state %s", h, r.state)
		}
		if r.purgePrev != prev {
			return errors.Errorf("purgeable handle %d links back to %d instead of %d", h, r.purgePrev, prev)
		}

		prev = h
		count++
		if count > m.TotalHandleCount() {
			return errors.New("the purge queue contains a cycle")
		}
	}

	if m.rec(purgeQueue).purgePrev != prev {
		return errors.Errorf("purge queue tail is %d, but the last handle is %d", m.rec(purgeQueue).purgePrev, prev)
	}
	return nil
}
