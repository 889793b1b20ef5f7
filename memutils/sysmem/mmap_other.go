//go:build !(linux || darwin || freebsd)

package sysmem

// DefaultProvider returns the Provider that memory managers use when none is configured
func DefaultProvider() Provider {
	return &HeapProvider{}
}
