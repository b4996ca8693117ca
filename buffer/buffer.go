// Package buffer is a growable ring buffer used as the per-connection
// read/write staging area (see httpserver's connBuffer), grounded on
// original_source/mjber/buffer.h. One slot of the underlying array is
// always left empty so a full buffer (write_pos caught up to
// read_pos) can be told apart from an empty one without a separate
// counter.
package buffer

import "github.com/Majianb/Mjber/rwmutex"

const defaultSize = 4096

// Buffer is a single growable ring buffer, safe for concurrent
// readers and writers.
type Buffer struct {
	mu       *rwmutex.RWMutex
	data     []byte
	readPos  int
	writePos int
}

// New constructs a Buffer with the given initial capacity, or the
// default 4 KiB if size <= 0.
func New(size int) *Buffer {
	if size <= 0 {
		size = defaultSize
	}
	return &Buffer{
		mu:   rwmutex.New(),
		data: make([]byte, size),
	}
}

// ReadableBytes reports how many bytes are available to Read.
func (b *Buffer) ReadableBytes() int {
	g := b.mu.ReadGuard()
	defer g.Unlock()
	return b.readableLocked()
}

func (b *Buffer) readableLocked() int {
	if b.writePos >= b.readPos {
		return b.writePos - b.readPos
	}
	return len(b.data) - b.readPos + b.writePos
}

// WritableBytes reports how many bytes can be written before the
// buffer must grow.
func (b *Buffer) WritableBytes() int {
	g := b.mu.ReadGuard()
	defer g.Unlock()
	return b.writableLocked()
}

func (b *Buffer) writableLocked() int {
	if b.writePos >= b.readPos {
		return len(b.data) - b.writePos + b.readPos - 1
	}
	return b.readPos - b.writePos - 1
}

// EnsureWritable grows the buffer, migrating existing readable data,
// until at least n bytes can be written without blocking.
func (b *Buffer) EnsureWritable(n int) {
	if b.WritableBytes() >= n {
		return
	}
	g := b.mu.WriteGuard()
	defer g.Unlock()
	b.ensureWritableLocked(n)
}

// ensureWritableLocked is EnsureWritable for callers that already hold
// the write lock; it re-checks the free space under that lock.
func (b *Buffer) ensureWritableLocked(n int) {
	if b.writableLocked() >= n {
		return
	}
	readable := b.readableLocked()
	newCap := len(b.data)
	for newCap-readable-1 < n {
		newCap *= 2
	}

	newData := make([]byte, newCap)
	copied := b.copyReadableLocked(newData, readable)

	b.data = newData
	b.readPos = 0
	b.writePos = copied
}

// copyReadableLocked copies up to max readable bytes into dst,
// unwrapping the ring, and advances read_pos as original readFixSize
// did when called from ensureWritable's migration path.
func (b *Buffer) copyReadableLocked(dst []byte, max int) int {
	n := b.readableLocked()
	if n > max {
		n = max
	}
	first := len(b.data) - b.readPos
	if first > n {
		first = n
	}
	copy(dst, b.data[b.readPos:b.readPos+first])
	if n > first {
		copy(dst[first:], b.data[:n-first])
	}
	b.readPos = (b.readPos + n) % len(b.data)
	return n
}

// Write appends len(p) bytes, growing the buffer first if needed.
// Unlike Read, Write always succeeds for its full length.
func (b *Buffer) Write(p []byte) (int, error) {
	g := b.mu.WriteGuard()
	defer g.Unlock()
	b.ensureWritableLocked(len(p))

	first := len(b.data) - b.writePos
	if first > len(p) {
		first = len(p)
	}
	copy(b.data[b.writePos:], p[:first])
	if len(p) > first {
		copy(b.data[0:], p[first:])
	}
	b.writePos = (b.writePos + len(p)) % len(b.data)
	return len(p), nil
}

// Peek returns a copy of up to n readable bytes without consuming
// them, for callers that need to scan ahead (a delimiter search)
// before deciding how much to consume.
func (b *Buffer) Peek(n int) []byte {
	g := b.mu.ReadGuard()
	defer g.Unlock()
	readable := b.readableLocked()
	if n > readable {
		n = readable
	}
	out := make([]byte, n)
	first := len(b.data) - b.readPos
	if first > n {
		first = n
	}
	copy(out, b.data[b.readPos:b.readPos+first])
	if n > first {
		copy(out[first:], b.data[:n-first])
	}
	return out
}

// Discard consumes up to n readable bytes without copying them
// anywhere, returning the number actually discarded.
func (b *Buffer) Discard(n int) int {
	g := b.mu.WriteGuard()
	defer g.Unlock()
	readable := b.readableLocked()
	if n > readable {
		n = readable
	}
	b.readPos = (b.readPos + n) % len(b.data)
	return n
}

// Read copies up to len(p) readable bytes into p, returning the
// number actually copied (which may be less than len(p), and is 0
// when the buffer is empty).
func (b *Buffer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	g := b.mu.WriteGuard()
	defer g.Unlock()

	readable := b.readableLocked()
	if readable == 0 {
		return 0, nil
	}
	n := len(p)
	if n > readable {
		n = readable
	}

	first := len(b.data) - b.readPos
	if first > n {
		first = n
	}
	copy(p, b.data[b.readPos:b.readPos+first])
	if n > first {
		copy(p[first:], b.data[:n-first])
	}
	b.readPos = (b.readPos + n) % len(b.data)
	return n, nil
}
