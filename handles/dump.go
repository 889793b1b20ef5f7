package handles

import (
	"bufio"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
)

const dumpHeader = "#    Handle   Offset   Attr ID   Size     Prev     Next\n"

// DumpHandles writes a table of the used ledger, the purged handles, the fallback allocations and
// the free ledger to w. The used ledger is printed with its two sentinels. Numbers are in hex.
func (m *Manager) DumpHandles(w io.Writer) error {
	if m.shutdown {
		return errors.New("the manager has been shut down")
	}

	out := bufio.NewWriter(w)
	fmt.Fprintf(out, "Total free mem with purging %d\n", m.TotalFreeMemory())

	fmt.Fprint(out, "Used handle list\n")
	m.dumpList(out, usedLow, usedLow, true)
	fmt.Fprint(out, "Purged handle list\n")
	m.dumpList(out, m.rec(purgedList).next, purgedList, false)
	fmt.Fprint(out, "Fallback handle list\n")
	m.dumpList(out, m.rec(mallocList).next, mallocList, false)
	fmt.Fprint(out, "Free memory list\n")
	m.dumpList(out, m.rec(freeList).next, freeList, false)

	return errors.Wrap(out.Flush(), "failed to write handle dump")
}

func (m *Manager) dumpList(out io.Writer, first, last Handle, includeFirst bool) {
	fmt.Fprint(out, dumpHeader)
	if !includeFirst && first == last {
		return
	}

	count := 1
	h := first
	for {
		r := m.rec(h)
		fmt.Fprintf(out, "%04x %08x %08x %04x %04x %08x %08x %08x\n",
			count, uint32(h), uint32(r.offset), uint32(r.flags), uint32(r.id), uint32(r.length), uint32(r.prev), uint32(r.next))

		count++
		h = r.next
		if h == last {
			return
		}
	}
}
