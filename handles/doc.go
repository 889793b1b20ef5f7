// Package handles implements a memory manager that owns a single arena and hands out relocatable
// blocks through handles instead of raw pointers.
//
// Because callers reach their data through a Handle, the manager is free to slide unlocked blocks
// together (compaction) and to discard blocks that were marked purgeable when memory runs short.
// Free space and allocations are tracked in two address-ordered ledgers of records. Allocation
// escalates from a first-fit scan to compaction, then purging, and finally to a dedicated buffer
// from the system provider.
//
// Manager also implements alloc.Allocator with fixed blocks, so it can serve code that expects
// ordinary slices.
package handles
