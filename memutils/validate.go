package memutils

// Validatable is implemented by memory managers that can check their own bookkeeping. Validate
// returns an error describing the first inconsistency found, and DebugValidate calls it after
// mutations in builds with the debug_mem_utils tag.
type Validatable interface {
	Validate() error
}
