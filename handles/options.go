package handles

import (
	"io"
	"unsafe"

	"github.com/arsenal-go/handlemem/alloc"
	"github.com/arsenal-go/handlemem/memutils"
	"github.com/arsenal-go/handlemem/memutils/sysmem"
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"golang.org/x/exp/slog"
)

const (
	// DefaultArenaSize is the arena size used when none is provided via CreateOptions. It is
	// equal to 4Mb.
	DefaultArenaSize int = 4 * 1024 * 1024
	// DefaultHandleCount is the number of records added to the record pool each time it runs dry
	DefaultHandleCount int = 500
	// DefaultMinReserveSize is the amount of memory left to the operating system while the
	// arena is negotiated. It is equal to 64Kb.
	DefaultMinReserveSize int = 64 * 1024
	// DefaultAlignment is the granularity of every allocation in the arena
	DefaultAlignment int = 16

	// MinimumArenaSize is the smallest arena a Manager will operate on
	MinimumArenaSize int = 1024
	// MinimumHandleCount is the smallest batch the record pool will grow by
	MinimumHandleCount int = 8
)

const (
	noData     = -1
	recordSize = int(unsafe.Sizeof(record{}))
)

// CreateOptions contains optional settings when creating a Manager. It is valid to leave all of
// the fields blank.
type CreateOptions struct {
	// ArenaSize is the number of bytes to request for the arena. If the system cannot supply
	// that much, the largest obtainable size is used instead.
	ArenaSize int
	// HandleCount is the number of handle records the record pool grows by at a time. Values
	// below MinimumHandleCount are raised to it.
	HandleCount int
	// MinReserveSize is the amount of memory that must remain available to the system after the
	// arena has been acquired. Zero selects DefaultMinReserveSize and a negative value disables
	// the reserve.
	MinReserveSize int
	// Alignment is the granularity of every allocation and must be a power of two
	Alignment int

	// Provider supplies the arena and the buffers used for fallback allocations. When it is
	// left nil, sysmem.DefaultProvider is used.
	Provider sysmem.Provider

	// Callbacks is an optional set of callbacks that will be executed before the manager
	// relocates or purges handle data
	Callbacks *CallbackOptions
}

// New creates a new Manager. The arena is acquired up front; an error wrapping
// memutils.ErrOutOfSystemMemory is returned if the system cannot supply at least
// MinimumArenaSize bytes of it.
//
// logger - The logger that manager operations are reported to. May be nil.
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, options CreateOptions) (*Manager, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard))
	}

	arenaSize := options.ArenaSize
	if arenaSize == 0 {
		arenaSize = DefaultArenaSize
	}
	if arenaSize < MinimumArenaSize {
		return nil, errors.Wrapf(memutils.ErrInvalidOptions, "arena size %d is below the minimum of %d", arenaSize, MinimumArenaSize)
	}

	handleCount := options.HandleCount
	if handleCount == 0 {
		handleCount = DefaultHandleCount
	}
	if handleCount < MinimumHandleCount {
		handleCount = MinimumHandleCount
	}

	reserveSize := options.MinReserveSize
	if reserveSize == 0 {
		reserveSize = DefaultMinReserveSize
	} else if reserveSize < 0 {
		reserveSize = 0
	}

	alignment := options.Alignment
	if alignment == 0 {
		alignment = DefaultAlignment
	}
	err := memutils.CheckPow2(alignment, "handles.CreateOptions.Alignment")
	if err != nil {
		return nil, errors.Mark(err, memutils.ErrInvalidOptions)
	}

	provider := options.Provider
	if provider == nil {
		provider = sysmem.DefaultProvider()
	}

	manager := &Manager{
		logger:      logger,
		provider:    provider,
		system:      sysmem.NewChunkList(provider),
		alignment:   alignment,
		handleCount: handleCount,
		pointers:    swiss.NewMap[uintptr, Handle](uint32(handleCount)),
	}
	manager.callbacks = purgeCallbacks{
		Callbacks: options.Callbacks,
		Manager:   manager,
	}

	chunk, err := sysmem.AcquireArena(provider, arenaSize, reserveSize)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to acquire a %d byte arena", arenaSize)
	}
	manager.system.Track(chunk)

	// The arena starts at the first aligned address of the chunk so that offsets and addresses
	// share alignment
	skip := 0
	if len(chunk) > 0 {
		base := uintptr(unsafe.Pointer(unsafe.SliceData(chunk)))
		skip = int(memutils.AlignUp(base, uintptr(alignment)) - base)
	}
	usable := 0
	if len(chunk) > skip {
		usable = memutils.AlignDown(len(chunk)-skip, alignment)
	}
	if usable < MinimumArenaSize {
		releaseErr := manager.system.ReleaseAll()
		return nil, errors.CombineErrors(
			errors.Wrapf(memutils.ErrOutOfSystemMemory, "only %d usable arena bytes could be acquired, at least %d are required", usable, MinimumArenaSize),
			releaseErr,
		)
	}
	manager.arena = chunk[skip : skip+usable : skip+usable]

	manager.initRecords()

	logger.Debug("Manager::New",
		slog.Int("ArenaSize", usable),
		slog.Int("HandleCount", handleCount),
		slog.Int("Alignment", alignment),
	)

	memutils.DebugValidate(manager)
	return manager, nil
}

// MustNew creates a new Manager the same way as New, but panics if the manager cannot be
// created. It is meant for process-wide managers that the program cannot run without.
func MustNew(logger *slog.Logger, options CreateOptions) *Manager {
	manager, err := New(logger, options)
	if err != nil {
		panic(errors.Wrap(err, "failed to create the handle manager"))
	}
	return manager
}

// NewGlobal creates a Manager with MustNew and attaches it to ctx, so that every allocation made
// through ctx is served from the manager's arena until ctx is shut down.
func NewGlobal(ctx *alloc.Context, logger *slog.Logger, options CreateOptions) *Manager {
	manager := MustNew(logger, options)
	ctx.Init(manager)
	return manager
}
