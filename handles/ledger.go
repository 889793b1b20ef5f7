package handles

import "github.com/cockroachdb/errors"

// grabRange removes length bytes starting at offset from the free ledger. The range must start
// or end exactly at the edge of a single free entry. run is the free entry that owns the range,
// or NoHandle to have it found by scan. parent becomes the used record preceding whatever is
// left of the entry.
func (m *Manager) grabRange(offset, length int, parent, run Handle) {
	length = m.align(length)

	if run == NoHandle {
		for run = m.rec(freeList).next; ; run = m.rec(run).next {
			if run == freeList {
				panic(errors.AssertionFailedf("range %d+%d is not in the free ledger", offset, length))
			}

			candidate := m.rec(run)
			if offset >= candidate.offset && offset < candidate.offset+candidate.length {
				break
			}
		}
	}

	r := m.rec(run)
	end := offset + length
	runEnd := r.offset + r.length
	if offset < r.offset || end > runEnd {
		panic(errors.AssertionFailedf("range %d+%d exceeds free entry %d+%d", offset, length, r.offset, r.length))
	}

	switch {
	case offset == r.offset && end == runEnd:
		m.unlink(run)
		m.retireRecord(run)
	case offset == r.offset:
		r.offset = end
		r.length -= length
		r.parent = parent
	case end == runEnd:
		r.length -= length
		r.parent = parent
	default:
		panic(errors.AssertionFailedf("range %d+%d would split free entry %d+%d", offset, length, r.offset, r.length))
	}
}

// releaseRange returns length bytes starting at offset to the free ledger, merging them with
// the free entries on either side when they abut. parent is the used record immediately
// preceding the range.
func (m *Manager) releaseRange(offset, length int, parent Handle) {
	length = m.align(length)
	if length == 0 {
		return
	}
	end := offset + length

	prev := m.rec(freeList).prev
	for prev != freeList && m.rec(prev).offset > offset {
		prev = m.rec(prev).prev
	}
	next := m.rec(prev).next

	if prev != freeList {
		p := m.rec(prev)
		if p.offset+p.length > offset {
			panic(errors.AssertionFailedf("range %d+%d overlaps free entry %d+%d", offset, length, p.offset, p.length))
		}
	}
	if next != freeList {
		n := m.rec(next)
		if end > n.offset {
			panic(errors.AssertionFailedf("range %d+%d overlaps free entry %d+%d", offset, length, n.offset, n.length))
		}
	}

	if prev != freeList {
		p := m.rec(prev)
		if p.offset+p.length == offset {
			p.length += length
			p.parent = parent

			if next != freeList {
				n := m.rec(next)
				if end == n.offset {
					p.length += n.length
					m.unlink(next)
					m.retireRecord(next)
				}
			}
			return
		}
	}

	if next != freeList {
		n := m.rec(next)
		if end == n.offset {
			n.offset = offset
			n.length += length
			n.parent = parent
			return
		}
	}

	h := m.allocRecord()
	r := m.rec(h)
	r.offset = offset
	r.length = length
	r.id = IDFree
	r.state = stateFreeRange
	r.parent = parent
	m.linkAfter(prev, h)
}
