// Package alloc defines the contract shared by every memory manager in this module, along with
// a Context that lets a program choose which manager serves its allocations.
package alloc

//go:generate mockgen -source allocator.go -destination mocks/allocator.go -package mock_alloc

// Allocator is the generic memory manager contract. Implementations hand out slices whose
// length equals the requested size.
type Allocator interface {
	// Allocate returns size bytes, or nil if size is not positive or the memory cannot be found
	Allocate(size int) []byte
	// Free releases a slice returned by Allocate or Resize. A slice with no capacity is ignored.
	Free(buf []byte)
	// Resize changes the size of a slice returned by Allocate or Resize, keeping min(old, new)
	// bytes of its contents. A buf with no capacity is allocated as new and a size of zero or
	// less frees buf and returns nil. If the memory cannot be found, nil is returned and buf
	// remains valid.
	Resize(buf []byte, size int) []byte
	// Shutdown releases every resource held by the allocator. It is safe to call more than once.
	Shutdown()
}

// HeapAllocator serves allocations from the Go heap. Free is a no-op: memory is reclaimed by the
// garbage collector once it is no longer referenced.
type HeapAllocator struct{}

var _ Allocator = HeapAllocator{}

func (HeapAllocator) Allocate(size int) []byte {
	if size <= 0 {
		return nil
	}
	return make([]byte, size)
}

func (HeapAllocator) Free(buf []byte) {}

func (h HeapAllocator) Resize(buf []byte, size int) []byte {
	if cap(buf) == 0 {
		return h.Allocate(size)
	}
	if size <= 0 {
		return nil
	}

	if size <= cap(buf) {
		return buf[:size]
	}

	resized := make([]byte, size)
	copy(resized, buf)
	return resized
}

func (HeapAllocator) Shutdown() {}
