// Package bufpool hands out reusable byte buffers for connection reads and
// file streaming.
package bufpool

import "sync"

const (
	// ChunkSize is the size of a single read from a connection or a file.
	ChunkSize = 4096

	largeSize = 32768
)

// Pool manages reusable byte buffers in two size classes.
type Pool struct {
	small sync.Pool // 4KB buffers
	large sync.Pool // 32KB buffers
}

var global = &Pool{
	small: sync.Pool{
		New: func() interface{} {
			buf := make([]byte, ChunkSize)
			return &buf
		},
	},
	large: sync.Pool{
		New: func() interface{} {
			buf := make([]byte, largeSize)
			return &buf
		},
	},
}

// Get returns a buffer of exactly size bytes. Sizes above the largest class
// are allocated directly and never pooled.
func Get(size int) []byte {
	switch {
	case size <= ChunkSize:
		buf := global.small.Get().(*[]byte)
		return (*buf)[:size]
	case size <= largeSize:
		buf := global.large.Get().(*[]byte)
		return (*buf)[:size]
	default:
		return make([]byte, size)
	}
}

// Put returns a buffer obtained from Get to its pool.
func Put(buf []byte) {
	switch cap(buf) {
	case ChunkSize:
		full := buf[:ChunkSize]
		global.small.Put(&full)
	case largeSize:
		full := buf[:largeSize]
		global.large.Put(&full)
	}
	// Else: non-standard size, let GC handle it
}
