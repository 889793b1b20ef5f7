package sysmem

import (
	"github.com/arsenal-go/handlemem/memutils"
	"github.com/cockroachdb/errors"
)

// NegotiationWindow is the precision of the largest-chunk search: Negotiate stops bisecting once
// the gap between the largest size known to succeed and the smallest size known to fail is
// smaller than this many bytes.
const NegotiationWindow = 1024

// Negotiate obtains a single chunk of requested bytes from provider. If the provider refuses,
// the largest obtainable chunk is found by bisection: each probe is allocated and immediately
// released, and the window between the known-good and known-bad sizes is halved until it is
// smaller than NegotiationWindow. The chunk returned may therefore be smaller than requested.
func Negotiate(provider Provider, requested int) ([]byte, error) {
	if requested <= 0 {
		return nil, errors.Newf("invalid arena size %d", requested)
	}

	chunk, err := provider.Alloc(requested)
	if err == nil {
		return chunk, nil
	}

	maxSize := requested
	minSize := 0
	swing := requested >> 1

	for swing > 0 {
		size := minSize + swing
		probe, probeErr := provider.Alloc(size)
		if probeErr == nil {
			err = provider.Free(probe)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to release a %d byte probe", size)
			}
			minSize = size
		} else {
			maxSize = size
		}

		swing = (maxSize - minSize) >> 1
		if swing < NegotiationWindow {
			break
		}
	}

	if minSize == 0 {
		return nil, errors.Wrapf(memutils.ErrOutOfSystemMemory, "no chunk of up to %d bytes is available", requested)
	}

	chunk, err = provider.Alloc(minSize)
	if err != nil {
		return nil, errors.Wrapf(errors.Mark(err, memutils.ErrOutOfSystemMemory), "a %d byte chunk was available during negotiation but not afterwards", minSize)
	}
	return chunk, nil
}

// AcquireArena sets aside minReserve bytes so that the operating system is left with working
// room, negotiates the largest chunk up to requested bytes, and then returns the reserve.
func AcquireArena(provider Provider, requested, minReserve int) ([]byte, error) {
	var reserve []byte
	if minReserve > 0 {
		var err error
		reserve, err = provider.Alloc(minReserve)
		if err != nil {
			return nil, errors.Wrapf(errors.Mark(err, memutils.ErrOutOfSystemMemory), "can't allocate the minimum reserve of %d bytes", minReserve)
		}
	}

	arena, err := Negotiate(provider, requested)

	if reserve != nil {
		freeErr := provider.Free(reserve)
		if freeErr != nil {
			if arena != nil {
				freeErr = errors.CombineErrors(freeErr, provider.Free(arena))
			}
			return nil, errors.CombineErrors(err, freeErr)
		}
	}

	if err != nil {
		return nil, err
	}
	return arena, nil
}
