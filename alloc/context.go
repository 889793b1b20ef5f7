package alloc

import (
	"github.com/arsenal-go/handlemem/internal/utils"
)

// ContextOptions contains optional settings when creating a Context
type ContextOptions struct {
	// Synchronized wraps every call made through the Context in a mutex, which allows an
	// Allocator that is not safe for concurrent use to be shared between goroutines
	Synchronized bool
}

// Context routes allocations to whichever Allocator was most recently attached with Init, or to
// the Go heap when none is attached. Programs typically create one Context at startup and pass it
// to every component that allocates.
//
// Slices must be returned through the same Allocator that produced them, so allocators should
// only be swapped while nothing they handed out is still live.
type Context struct {
	mutex     utils.OptionalMutex
	allocator Allocator
}

var _ Allocator = &Context{}

// NewContext creates a Context that serves allocations from the Go heap until Init is called
func NewContext(options ContextOptions) *Context {
	return &Context{
		mutex:     utils.OptionalMutex{UseMutex: options.Synchronized},
		allocator: HeapAllocator{},
	}
}

// Init attaches allocator to the Context and returns the Allocator that was attached before it.
// Passing nil restores the Go heap.
func (c *Context) Init(allocator Allocator) Allocator {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if allocator == nil {
		allocator = HeapAllocator{}
	}

	previous := c.allocator
	c.allocator = allocator
	return previous
}

// Shutdown shuts down the attached Allocator and restores the Go heap
func (c *Context) Shutdown() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.allocator.Shutdown()
	c.allocator = HeapAllocator{}
}

// Allocator returns the Allocator currently attached to the Context
func (c *Context) Allocator() Allocator {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.allocator
}

func (c *Context) Allocate(size int) []byte {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.allocator.Allocate(size)
}

// AllocateClear returns size bytes, all set to zero
func (c *Context) AllocateClear(size int) []byte {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	buf := c.allocator.Allocate(size)
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// Clone returns a copy of src allocated from the Context. nil is returned if src is empty or the
// memory cannot be found.
func (c *Context) Clone(src []byte) []byte {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	buf := c.allocator.Allocate(len(src))
	copy(buf, src)
	return buf
}

func (c *Context) Free(buf []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.allocator.Free(buf)
}

func (c *Context) Resize(buf []byte, size int) []byte {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.allocator.Resize(buf, size)
}
