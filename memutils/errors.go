package memutils

import "github.com/cockroachdb/errors"

// ErrNotPowerOfTwo is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var ErrNotPowerOfTwo = errors.New("number must be a power of two")

// ErrOutOfSystemMemory is returned when the operating system cannot supply a chunk of memory that is
// required for a memory manager to operate at all. Running out of memory while serving an ordinary
// allocation is never reported this way: allocations simply fail.
var ErrOutOfSystemMemory = errors.New("out of system memory")

// ErrInvalidOptions is returned when construction options cannot be used as provided
var ErrInvalidOptions = errors.New("invalid options")
