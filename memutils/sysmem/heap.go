package sysmem

import (
	"fmt"

	"github.com/arsenal-go/handlemem/memutils"
	"github.com/cockroachdb/errors"
)

// HeapProvider is a Provider backed by the Go heap. The Go runtime treats heap exhaustion as a
// fatal error rather than a recoverable one, so a HeapProvider is expected to be given a Limit
// when it may be asked for more memory than the machine has.
type HeapProvider struct {
	// Limit is the maximum number of bytes that may be outstanding at once, or 0 for no limit
	Limit int

	outstanding int
}

var _ Provider = &HeapProvider{}

func (p *HeapProvider) Alloc(size int) (buf []byte, err error) {
	if size <= 0 {
		return nil, errors.Newf("invalid chunk size %d", size)
	}
	if p.Limit > 0 && size > p.Limit-p.outstanding {
		return nil, errors.Wrapf(memutils.ErrOutOfSystemMemory, "heap provider has %d of %d bytes outstanding, cannot supply %d", p.outstanding, p.Limit, size)
	}

	defer func() {
		// makeslice panics on lengths the runtime can't represent
		if r := recover(); r != nil {
			buf = nil
			err = errors.Wrapf(memutils.ErrOutOfSystemMemory, "%v", fmt.Sprint(r))
		}
	}()

	buf = make([]byte, size)
	p.outstanding += size
	return buf, nil
}

func (p *HeapProvider) Free(buf []byte) error {
	if cap(buf) == 0 {
		return nil
	}
	p.outstanding -= cap(buf)
	if p.outstanding < 0 {
		p.outstanding = 0
		return errors.AssertionFailedf("heap provider freed more memory than it allocated")
	}
	return nil
}

// Outstanding returns the number of bytes currently handed out
func (p *HeapProvider) Outstanding() int {
	return p.outstanding
}
