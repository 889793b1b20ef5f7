package handles

import (
	"github.com/arsenal-go/handlemem/memutils"
	"golang.org/x/exp/slog"
)

// CompactHandles slides every movable, unlocked block down to close the gaps below it. Locked
// and fixed blocks stay where they are, so gaps below them may survive. The order of the used
// ledger never changes. If the purge callback is registered, it receives StageCompact before
// the first block is moved.
func (m *Manager) CompactHandles() {
	m.logger.Debug("Manager::CompactHandles")
	if m.shutdown {
		return
	}

	m.compact()

	memutils.DebugValidate(m)
}

func (m *Manager) compact() {
	notified := false
	moved := 0

restart:
	for h := m.rec(usedLow).next; h != usedHigh; h = m.rec(h).next {
		r := m.rec(h)
		if r.flags&(FlagLocked|FlagFixed) != 0 {
			continue
		}

		prevHandle := r.prev
		prev := m.rec(prevHandle)
		target := prev.offset + m.align(prev.length)
		if target >= r.offset {
			continue
		}

		if !notified {
			notified = true
			if m.callbacks.Registered() {
				// The callback is free to release handles, so the walk can't be trusted afterward
				m.callbacks.Notify(StageCompact)
				goto restart
			}
		}

		old := r.offset
		m.releaseRange(old, r.length, prevHandle)
		m.grabRange(target, r.length, h, NoHandle)
		copy(m.arena[target:target+r.length], m.arena[old:old+r.length])
		r.offset = target
		moved++
	}

	if moved > 0 {
		m.logger.Debug("compacted arena", slog.Int("MovedCount", moved))
	}
}
