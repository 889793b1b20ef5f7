package sysmem

import "github.com/cockroachdb/errors"

// ChunkList tracks every chunk a memory manager has obtained from a Provider so that all of them
// can be given back together at shutdown.
type ChunkList struct {
	provider   Provider
	chunks     [][]byte
	totalBytes int
}

// NewChunkList creates an empty ChunkList drawing from provider
func NewChunkList(provider Provider) *ChunkList {
	return &ChunkList{provider: provider}
}

// Provider returns the Provider the chunks come from
func (l *ChunkList) Provider() Provider {
	return l.provider
}

// Alloc obtains a new chunk from the provider and tracks it
func (l *ChunkList) Alloc(size int) ([]byte, error) {
	chunk, err := l.provider.Alloc(size)
	if err != nil {
		return nil, err
	}
	l.Track(chunk)
	return chunk, nil
}

// Track adds a chunk that was obtained from the provider by other means, such as Negotiate
func (l *ChunkList) Track(chunk []byte) {
	l.chunks = append(l.chunks, chunk)
	l.totalBytes += len(chunk)
}

// Count returns the number of chunks being tracked
func (l *ChunkList) Count() int {
	return len(l.chunks)
}

// TotalBytes returns the number of bytes across all tracked chunks
func (l *ChunkList) TotalBytes() int {
	return l.totalBytes
}

// ReleaseAll returns every tracked chunk to the provider, most recent first. It is safe to call
// more than once.
func (l *ChunkList) ReleaseAll() error {
	var err error
	for i := len(l.chunks) - 1; i >= 0; i-- {
		err = errors.CombineErrors(err, l.provider.Free(l.chunks[i]))
		l.chunks[i] = nil
	}
	l.chunks = l.chunks[:0]
	l.totalBytes = 0
	return err
}
