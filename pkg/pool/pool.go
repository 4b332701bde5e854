// Package pool provides object pooling for netgraph to reduce allocations.
//
// Object pooling reuses allocated objects instead of creating new ones,
// reducing GC pressure for high-frequency operations.
//
// Pooled objects:
// - Id slices (flood-fill frontiers in the component tracker)
// - Byte buffers (compressed parse cache entries)
//
// Usage:
//
//	var frontiers = pool.NewSlicePool[graph.NodeID](64)
//
//	queue := frontiers.Get()
//	defer func() { frontiers.Put(queue) }()
//	queue = append(queue, root)
package pool

import (
	"sync"
)

// PoolConfig configures object pooling behavior.
type PoolConfig struct {
	// Enabled controls whether pooling is active
	Enabled bool

	// MaxSize limits the capacity of slices kept in a pool
	MaxSize int
}

var globalConfig = PoolConfig{
	Enabled: true,
	MaxSize: 1 << 16,
}

// Configure sets global pool configuration.
// Should be called early during initialization.
func Configure(config PoolConfig) {
	globalConfig = config
}

// IsEnabled returns whether pooling is enabled.
func IsEnabled() bool {
	return globalConfig.Enabled
}

// =============================================================================
// Slice Pool
// =============================================================================

// SlicePool hands out empty slices of T with at least the configured
// capacity.
type SlicePool[T any] struct {
	pool     sync.Pool
	capacity int
}

// NewSlicePool returns a pool whose fresh slices have the given capacity.
func NewSlicePool[T any](capacity int) *SlicePool[T] {
	p := &SlicePool[T]{capacity: capacity}
	p.pool.New = func() any {
		s := make([]T, 0, capacity)
		return &s
	}
	return p
}

// Get returns a slice from the pool.
// The returned slice has length 0 but may have capacity.
// Call Put when done.
func (p *SlicePool[T]) Get() []T {
	if !globalConfig.Enabled {
		return make([]T, 0, p.capacity)
	}
	return (*p.pool.Get().(*[]T))[:0]
}

// Put returns a slice to the pool. The slice must not be used afterwards.
func (p *SlicePool[T]) Put(s []T) {
	if !globalConfig.Enabled || s == nil {
		return
	}
	// Don't pool very large slices (memory leak prevention)
	if cap(s) > globalConfig.MaxSize {
		return
	}
	// Clear references to allow GC of contents
	clear(s)
	s = s[:0]
	p.pool.Put(&s)
}

// =============================================================================
// Byte Buffer Pool
// =============================================================================

var byteBufferPool = NewSlicePool[byte](1024)

// GetByteBuffer returns a byte buffer from the pool.
func GetByteBuffer() []byte {
	return byteBufferPool.Get()
}

// PutByteBuffer returns a byte buffer to the pool.
func PutByteBuffer(buf []byte) {
	if cap(buf) > 1024*1024 { // Don't pool huge buffers (>1MB)
		return
	}
	byteBufferPool.Put(buf)
}
