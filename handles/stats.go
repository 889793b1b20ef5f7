package handles

import (
	"github.com/arsenal-go/handlemem/memutils"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// TotalFreeMemory returns the number of bytes that an allocation could obtain by compacting and
// purging: the free ranges of the arena plus the blocks of unlocked purgeable handles
func (m *Manager) TotalFreeMemory() int {
	if m.shutdown {
		return 0
	}
	return m.freeBytes() + m.purgeableBytes()
}

func (m *Manager) freeBytes() int {
	total := 0
	for h := m.rec(freeList).next; h != freeList; h = m.rec(h).next {
		total += m.rec(h).length
	}
	return total
}

func (m *Manager) purgeableBytes() int {
	total := 0
	for h := m.rec(usedLow).next; h != usedHigh; h = m.rec(h).next {
		r := m.rec(h)
		if r.flags&FlagLocked == 0 && m.queued(h) {
			total += m.align(r.length)
		}
	}
	return total
}

// AddStatistics adds the manager's arena and allocations to stats
func (m *Manager) AddStatistics(stats *memutils.Statistics) {
	if m.shutdown {
		return
	}

	stats.BlockCount++
	stats.BlockBytes += len(m.arena)
	stats.AllocationBytes += m.totalAllocated
	stats.PurgeableBytes += m.purgeableBytes()

	for h := m.rec(usedLow).next; h != usedHigh; h = m.rec(h).next {
		stats.AllocationCount++
	}
	for h := m.rec(mallocList).next; h != mallocList; h = m.rec(h).next {
		stats.AllocationCount++
	}
}

// AddDetailedStatistics adds the manager's arena, allocations and free ranges to stats
func (m *Manager) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	if m.shutdown {
		return
	}

	stats.BlockCount++
	stats.BlockBytes += len(m.arena)
	stats.PurgeableBytes += m.purgeableBytes()

	for h := m.rec(usedLow).next; h != usedHigh; h = m.rec(h).next {
		stats.AddAllocation(m.rec(h).length)
	}
	for h := m.rec(mallocList).next; h != mallocList; h = m.rec(h).next {
		stats.AddAllocation(m.rec(h).length)
		stats.FallbackCount++
	}
	for h := m.rec(purgedList).next; h != purgedList; h = m.rec(h).next {
		stats.PurgedCount++
	}
	for h := m.rec(freeList).next; h != freeList; h = m.rec(h).next {
		stats.AddUnusedRange(m.rec(h).length)
	}
}

// BuildStatsString returns a JSON document describing the manager. When detailed is true, every
// used handle, purged handle and free range is listed as well.
func (m *Manager) BuildStatsString(detailed bool) string {
	var stats memutils.DetailedStatistics
	stats.Clear()
	m.AddDetailedStatistics(&stats)

	writer := jwriter.NewWriter()
	objState := writer.Object()

	totalObj := objState.Name("Total").Object()
	totalObj.Name("ArenaBytes").Int(stats.BlockBytes)
	totalObj.Name("SystemBytes").Int(m.TotalSystemMemory())
	totalObj.Name("HandleCount").Int(m.TotalHandleCount())
	totalObj.Name("Allocations").Int(stats.AllocationCount)
	totalObj.Name("AllocationBytes").Int(stats.AllocationBytes)
	totalObj.Name("UnusedRanges").Int(stats.UnusedRangeCount)
	totalObj.Name("UnusedBytes").Int(stats.UnusedBytes)
	totalObj.Name("PurgeableBytes").Int(stats.PurgeableBytes)
	totalObj.Name("PurgedHandles").Int(stats.PurgedCount)
	totalObj.Name("FallbackAllocations").Int(stats.FallbackCount)
	if stats.AllocationCount > 0 {
		totalObj.Name("AllocationSizeMin").Int(stats.AllocationSizeMin)
		totalObj.Name("AllocationSizeMax").Int(stats.AllocationSizeMax)
	}
	if stats.UnusedRangeCount > 0 {
		totalObj.Name("UnusedRangeSizeMin").Int(stats.UnusedRangeSizeMin)
		totalObj.Name("UnusedRangeSizeMax").Int(stats.UnusedRangeSizeMax)
	}
	totalObj.End()

	if detailed && !m.shutdown {
		m.printDetailedList(objState, "UsedHandles", usedLow, usedHigh)
		m.printDetailedList(objState, "PurgedHandles", purgedList, purgedList)
		m.printDetailedList(objState, "FallbackHandles", mallocList, mallocList)
		m.printDetailedList(objState, "FreeRanges", freeList, freeList)
	}

	objState.End()

	return string(writer.Bytes())
}

func (m *Manager) printDetailedList(json jwriter.ObjectState, name string, first, last Handle) {
	arrayState := json.Name(name).Array()
	defer arrayState.End()

	for h := m.rec(first).next; h != last; h = m.rec(h).next {
		r := m.rec(h)

		obj := arrayState.Object()
		obj.Name("Handle").Int(int(h))
		if r.state != statePurged {
			obj.Name("Offset").Int(r.offset)
		}
		obj.Name("Size").Int(r.length)
		if r.state != stateFreeRange {
			obj.Name("ID").Int(int(r.id))
			obj.Name("Flags").String(m.LockedState(h).String())
		}
		obj.End()
	}
}
