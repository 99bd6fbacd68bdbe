package audio

import (
	"sync"
)

// ChunkBuffer accumulates opaque audio fragments in arrival order until
// they are flushed as a single unit for transcription. Thread-safe.
type ChunkBuffer struct {
	mu     sync.Mutex
	chunks [][]byte
	size   int
}

// NewChunkBuffer creates an empty chunk buffer.
func NewChunkBuffer() *ChunkBuffer {
	return &ChunkBuffer{}
}

// Append adds one fragment to the buffer. The fragment is copied so the
// caller may reuse its slice.
func (b *ChunkBuffer) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	owned := make([]byte, len(chunk))
	copy(owned, chunk)

	b.mu.Lock()
	b.chunks = append(b.chunks, owned)
	b.size += len(owned)
	b.mu.Unlock()
}

// Flush concatenates all buffered fragments in arrival order, clears the
// buffer, and returns the unit. Returns nil when the buffer is empty.
func (b *ChunkBuffer) Flush() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return nil
	}

	unit := make([]byte, 0, b.size)
	for _, chunk := range b.chunks {
		unit = append(unit, chunk...)
	}
	b.chunks = nil
	b.size = 0
	return unit
}

// Len returns the number of buffered bytes.
func (b *ChunkBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Chunks returns the number of buffered fragments.
func (b *ChunkBuffer) Chunks() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}
