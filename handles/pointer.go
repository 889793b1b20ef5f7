package handles

import (
	"unsafe"

	"github.com/arsenal-go/handlemem/memutils"
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

func addressOf(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
}

// pointerHandle finds the handle behind a slice returned by Allocate or Resize
func (m *Manager) pointerHandle(buf []byte) Handle {
	h, ok := m.pointers.Get(addressOf(buf))
	if !ok {
		panic(errors.AssertionFailedf("buffer at %#x was not allocated by this manager", addressOf(buf)))
	}
	return h
}

// Allocate returns a fixed block of size bytes. Blocks handed out this way are never moved or
// purged, so the slice stays valid until it is passed to Free or Resize. nil is returned if
// size is not positive or no memory could be found.
func (m *Manager) Allocate(size int) []byte {
	m.logger.Debug("Manager::Allocate", slog.Int("Size", size))
	if size <= 0 || m.shutdown {
		return nil
	}

	h := m.allocHandle(size, FlagFixed)
	if h == NoHandle {
		return nil
	}

	buf := m.bytes(h)
	m.pointers.Put(addressOf(buf), h)

	memutils.DebugValidate(m)
	return buf
}

// Free releases a slice returned by Allocate or Resize. A slice with no capacity is ignored.
// Passing any other slice, including one resliced from a returned slice so that it starts at a
// different byte, panics.
func (m *Manager) Free(buf []byte) {
	m.logger.Debug("Manager::Free", slog.Int("Size", len(buf)))
	if cap(buf) == 0 || m.shutdown {
		return
	}

	h := m.pointerHandle(buf)
	m.pointers.Delete(addressOf(buf))
	m.freeHandle(h)

	memutils.DebugValidate(m)
}

// Resize changes the size of a slice returned by Allocate or Resize, keeping min(old, new) bytes
// of its contents. The returned slice may start at a different address, in which case buf must
// no longer be used. If the memory cannot be found, nil is returned and buf remains valid.
//
// A buf with no capacity is allocated as new, and a size of zero or less frees buf and returns nil.
func (m *Manager) Resize(buf []byte, size int) []byte {
	m.logger.Debug("Manager::Resize", slog.Int("OldSize", len(buf)), slog.Int("Size", size))
	if m.shutdown {
		return nil
	}

	if cap(buf) == 0 {
		return m.Allocate(size)
	}

	if size <= 0 {
		m.Free(buf)
		return nil
	}

	h := m.pointerHandle(buf)
	newHandle := m.reallocHandle(h, size)
	if newHandle == NoHandle {
		return nil
	}

	resized := m.bytes(newHandle)
	if newHandle != h {
		m.pointers.Delete(addressOf(buf))
		m.pointers.Put(addressOf(resized), newHandle)
	}

	memutils.DebugValidate(m)
	return resized
}

// PointerSize returns the number of bytes requested for a slice returned by Allocate or Resize
func (m *Manager) PointerSize(buf []byte) int {
	if cap(buf) == 0 || m.shutdown {
		return 0
	}
	return m.rec(m.pointerHandle(buf)).length
}
