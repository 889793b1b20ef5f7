package handles

// initRecords creates the first record chunk, links the sentinels into empty circular lists and
// describes the whole arena as a single free range
func (m *Manager) initRecords() {
	m.growPool()

	for h := usedLow; h < firstPoolHandle; h++ {
		r := m.rec(h)
		*r = record{
			offset: noData,
			id:     IDReserved,
			state:  stateSentinel,
			prev:   h,
			next:   h,
		}
	}

	low := m.rec(usedLow)
	high := m.rec(usedHigh)
	low.offset = 0
	low.next = usedHigh
	low.prev = usedHigh
	high.offset = len(m.arena)
	high.next = usedLow
	high.prev = usedLow

	queue := m.rec(purgeQueue)
	queue.purgeNext = purgeQueue
	queue.purgePrev = purgeQueue

	m.releaseRange(0, len(m.arena), usedLow)
}

// growPool adds a chunk of handleCount records to the pool. Chunks are never reallocated, so
// record pointers remain valid across growth.
func (m *Manager) growPool() {
	base := len(m.records) * m.handleCount
	chunk := make([]record, m.handleCount)
	m.records = append(m.records, chunk)
	m.recordBytes += m.handleCount * recordSize

	first := base
	if first < int(firstPoolHandle) {
		first = int(firstPoolHandle)
	}

	for index := base + m.handleCount - 1; index >= first; index-- {
		chunk[index-base] = record{
			offset: noData,
			id:     IDUnused,
			state:  statePool,
			next:   m.poolHead,
		}
		m.poolHead = Handle(index)
	}

	m.logger.Debug("Manager::growPool", "TotalHandleCount", m.TotalHandleCount())
}

// allocRecord takes a record from the pool, growing it if it is empty
func (m *Manager) allocRecord() Handle {
	if m.poolHead == NoHandle {
		m.growPool()
	}

	h := m.poolHead
	r := m.rec(h)
	m.poolHead = r.next
	*r = record{
		offset: noData,
		id:     IDDefault,
	}
	return h
}

// retireRecord returns a record to the pool. The record must already be unlinked from every list.
func (m *Manager) retireRecord(h Handle) {
	r := m.rec(h)
	*r = record{
		offset: noData,
		id:     IDUnused,
		state:  statePool,
		next:   m.poolHead,
	}
	m.poolHead = h
}
