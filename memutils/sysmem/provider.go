// Package sysmem acquires large chunks of memory from the operating system on behalf of memory
// managers. It knows nothing about how the chunks are subdivided.
package sysmem

//go:generate mockgen -source provider.go -destination mocks/provider.go -package mock_sysmem

// Provider hands out chunks of system memory. Alloc must return a slice whose length is exactly
// size, or an error if the memory is unavailable. Free must accept any slice previously returned
// by Alloc on the same Provider.
type Provider interface {
	Alloc(size int) ([]byte, error)
	Free(buf []byte) error
}
