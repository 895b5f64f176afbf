package comm

import "sync"

// BufferPool recycles message bodies between phases.
type BufferPool struct {
	pool sync.Pool
	size int
}

func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		size: size,
		pool: sync.Pool{
			New: func() interface{} {
				b := make([]byte, 0, size)
				return &b
			},
		},
	}
}

// Get returns an empty buffer with at least the pool's default capacity.
func (p *BufferPool) Get() []byte {
	return (*p.pool.Get().(*[]byte))[:0]
}

// Put returns a buffer to the pool. Buffers smaller than the default size
// are dropped.
func (p *BufferPool) Put(b []byte) {
	if cap(b) >= p.size {
		b = b[:0]
		p.pool.Put(&b)
	}
}
