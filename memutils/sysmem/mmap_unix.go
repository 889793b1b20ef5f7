//go:build linux || darwin || freebsd

package sysmem

import (
	"github.com/arsenal-go/handlemem/memutils"
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// MmapProvider is a Provider that maps anonymous private pages directly from the kernel. Chunks
// live outside of the Go heap, so the garbage collector never scans or moves them, and a refused
// mapping is reported as an error instead of crashing the process.
type MmapProvider struct{}

var _ Provider = MmapProvider{}

func (MmapProvider) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.Newf("invalid chunk size %d", size)
	}

	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(errors.Mark(err, memutils.ErrOutOfSystemMemory), "mmap of %d bytes failed", size)
	}
	return buf, nil
}

func (MmapProvider) Free(buf []byte) error {
	if cap(buf) == 0 {
		return nil
	}
	return errors.Wrap(unix.Munmap(buf[:cap(buf)]), "munmap failed")
}

// DefaultProvider returns the Provider that memory managers use when none is configured
func DefaultProvider() Provider {
	return MmapProvider{}
}
