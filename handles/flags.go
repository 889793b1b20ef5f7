package handles

import (
	"math"
	"strings"
)

// Handle identifies one block of memory owned by a Manager. The block's address may change
// whenever the handle is unlocked, so the only way to reach its bytes is Manager.Lock.
type Handle uint32

// NoHandle is the null handle. It is returned when an allocation fails and is accepted as a
// no-op input by most Manager methods.
const NoHandle Handle = 0

// Sentinel records. They occupy the first indices of the record pool and are never handed out.
const (
	usedLow Handle = iota + 1
	usedHigh
	freeList
	purgeQueue
	purgedList
	mallocList

	firstPoolHandle
)

// Flags describe the attributes of a handle
type Flags uint32

const (
	// FlagFixed marks a block that is never relocated. Fixed blocks are allocated from the top of
	// the arena so that they don't get in the way of compaction.
	FlagFixed Flags = 1 << iota
	// FlagLocked marks a block whose bytes are currently in use by the caller. Locked blocks are
	// not relocated by compaction.
	FlagLocked
	// FlagMalloc marks a block that was served directly by the system provider because the arena
	// was exhausted. It cannot be set by callers.
	FlagMalloc
	// FlagPurgeable is reported by LockedState and accepted by SetLockedState. It is not stored
	// on the handle: a handle is purgeable exactly when it sits in the purge queue.
	FlagPurgeable
)

var flagsMapping = map[Flags]string{
	FlagFixed:     "FlagFixed",
	FlagLocked:    "FlagLocked",
	FlagMalloc:    "FlagMalloc",
	FlagPurgeable: "FlagPurgeable",
}

func (f Flags) String() string {
	if f == 0 {
		return "None"
	}

	var names []string
	for bit := Flags(1); bit != 0 && bit <= f; bit <<= 1 {
		if f&bit == 0 {
			continue
		}
		name, ok := flagsMapping[bit]
		if !ok {
			name = "Unknown"
		}
		names = append(names, name)
	}
	return strings.Join(names, "|")
}

// ID is a caller-assigned tag used to classify handles in diagnostics
type ID uint32

const (
	// IDDefault is the ID of a newly allocated handle
	IDDefault ID = 0
	// IDUnused is carried by records sitting in the record pool
	IDUnused ID = math.MaxUint16 - 2
	// IDFree is carried by records that describe a free range of the arena
	IDFree ID = math.MaxUint16 - 1
	// IDReserved is carried by the manager's sentinel records
	IDReserved ID = math.MaxUint16
)

// Stage identifies why the purge callback is being invoked
type Stage uint32

const (
	// StageCompact is sent before compaction relocates any movable block
	StageCompact Stage = iota
	// StagePurge is sent before purgeable blocks are discarded
	StagePurge
)

var stageMapping = map[Stage]string{
	StageCompact: "StageCompact",
	StagePurge:   "StagePurge",
}

func (s Stage) String() string {
	return stageMapping[s]
}

// recordState tracks which list a record belongs to
type recordState uint8

const (
	statePool recordState = iota
	stateSentinel
	stateUsed
	stateFreeRange
	statePurged
	stateMalloc
	statePending
)

var recordStateMapping = map[recordState]string{
	statePool:      "Pool",
	stateSentinel:  "Sentinel",
	stateUsed:      "Used",
	stateFreeRange: "FreeRange",
	statePurged:    "Purged",
	stateMalloc:    "Malloc",
	statePending:   "Pending",
}

func (s recordState) String() string {
	return recordStateMapping[s]
}
