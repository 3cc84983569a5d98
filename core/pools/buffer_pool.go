// Package pools provides tiered byte-buffer recycling for connection read
// buffers, sized for typical HTTP head and body workloads.
package pools

import "sync"

// BufferPool is a multi-tiered byte slice pool. Buffers are handed out by
// capacity class and returned to the matching class; sizes that fall outside
// every tier are allocated directly and left to the garbage collector.
type BufferPool struct {
	pools []*sync.Pool
	sizes []int
}

// Tiers chosen for HTTP traffic: a head fits the first two classes in the
// common case, bodies use the larger ones.
var defaultSizes = []int{2048, 8192, 32768, 131072}

// NewBufferPool creates a pool with the standard size tiers.
func NewBufferPool() *BufferPool {
	return NewBufferPoolWithSizes(defaultSizes)
}

// NewBufferPoolWithSizes creates a pool with custom ascending size tiers.
func NewBufferPoolWithSizes(sizes []int) *BufferPool {
	bp := &BufferPool{
		pools: make([]*sync.Pool, len(sizes)),
		sizes: sizes,
	}
	for i, size := range sizes {
		sz := size
		bp.pools[i] = &sync.Pool{
			New: func() any {
				buf := make([]byte, sz)
				return &buf
			},
		}
	}
	return bp
}

// Get returns a zero-length slice with capacity of at least size.
func (bp *BufferPool) Get(size int) []byte {
	for i, poolSize := range bp.sizes {
		if size <= poolSize {
			buf := *bp.pools[i].Get().(*[]byte)
			return buf[:0]
		}
	}
	return make([]byte, 0, size)
}

// Put returns a slice to its tier. Slices whose capacity matches no tier
// are dropped.
func (bp *BufferPool) Put(buf []byte) {
	capacity := cap(buf)
	for i, poolSize := range bp.sizes {
		if capacity == poolSize {
			buf = buf[:capacity]
			bp.pools[i].Put(&buf)
			return
		}
	}
}

// Grow returns a buffer holding the same bytes as buf with capacity of at
// least want, recycling the old buffer when it came from a tier.
func (bp *BufferPool) Grow(buf []byte, want int) []byte {
	if cap(buf) >= want {
		return buf
	}
	bigger := bp.Get(want)
	bigger = append(bigger, buf...)
	bp.Put(buf)
	return bigger
}
