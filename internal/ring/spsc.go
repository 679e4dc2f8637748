// Package ring provides a wait-free single-producer/single-consumer ring
// buffer used to hand events (fills, book deltas) out of the matching
// engine's single hot-path goroutine to async collaborators such as a
// market-data publisher, without either side ever blocking the other.
package ring

import (
	"fmt"
	"sync/atomic"
)

// cacheLinePad is sized so each cursor below occupies its own 128-byte
// region, keeping the producer's and consumer's cursors off each other's
// cache lines. Two monotonic counters bouncing between cores on a shared
// line is the single biggest latency cost a naive ring buffer pays.
const cacheLinePad = 128 - 8

// paddedCursor is a monotonically increasing sequence counter padded out to
// its own cache line.
type paddedCursor struct {
	value atomic.Uint64
	_     [cacheLinePad]byte
}

// SPSC is a fixed-capacity ring buffer for exactly one producer and one
// consumer goroutine. Capacity must be a power of two; indices are masked
// rather than taken modulo, keeping the hot path branch-free.
//
// Each side keeps its own cached mirror of the opposite side's cursor so
// the common case (room to publish, something to consume) never has to
// load the other side's cursor at all, let alone with acquire ordering.
type SPSC[T any] struct {
	writeCursor paddedCursor
	cachedRead  paddedCursor
	readCursor  paddedCursor
	cachedWrite paddedCursor

	mask   uint64
	buffer []T
}

// New constructs a ring of the given capacity, which must be a power of two.
func New[T any](capacity int) *SPSC[T] {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic(fmt.Sprintf("ring: capacity %d must be a power of two", capacity))
	}
	return &SPSC[T]{
		mask:   uint64(capacity - 1),
		buffer: make([]T, capacity),
	}
}

// Capacity returns the ring's fixed capacity.
func (r *SPSC[T]) Capacity() int {
	return len(r.buffer)
}

// TryPublish attempts to write value into the ring. It returns false if the
// ring is full. Only the producer goroutine may call this.
func (r *SPSC[T]) TryPublish(value T) bool {
	writePos := r.writeCursor.value.Load()

	cachedRead := r.cachedRead.value.Load()
	if writePos-cachedRead >= uint64(len(r.buffer)) {
		currentRead := r.readCursor.value.Load()
		r.cachedRead.value.Store(currentRead)
		if writePos-currentRead >= uint64(len(r.buffer)) {
			return false
		}
	}

	r.buffer[writePos&r.mask] = value
	r.writeCursor.value.Store(writePos + 1)
	return true
}

// Publish spins until value has been written. It never returns false; use it
// only when the consumer is known to keep pace, e.g. in tests.
func (r *SPSC[T]) Publish(value T) {
	for !r.TryPublish(value) {
	}
}

// TryConsume attempts to read the next value. It returns the zero value and
// false if the ring is empty. Only the consumer goroutine may call this.
func (r *SPSC[T]) TryConsume() (T, bool) {
	readPos := r.readCursor.value.Load()

	cachedWrite := r.cachedWrite.value.Load()
	if readPos >= cachedWrite {
		currentWrite := r.writeCursor.value.Load()
		r.cachedWrite.value.Store(currentWrite)
		if readPos >= currentWrite {
			var zero T
			return zero, false
		}
	}

	value := r.buffer[readPos&r.mask]
	r.readCursor.value.Store(readPos + 1)
	return value, true
}

// Consume spins until a value is available.
func (r *SPSC[T]) Consume() T {
	for {
		if value, ok := r.TryConsume(); ok {
			return value
		}
	}
}

// RemainingCapacity returns the number of additional items that can be
// published before the ring reports full, as observed by the producer.
func (r *SPSC[T]) RemainingCapacity() int {
	writePos := r.writeCursor.value.Load()
	readPos := r.readCursor.value.Load()
	return len(r.buffer) - int(writePos-readPos)
}

// Available returns the number of items ready to be consumed, as observed
// by the consumer.
func (r *SPSC[T]) Available() int {
	writePos := r.writeCursor.value.Load()
	readPos := r.readCursor.value.Load()
	return int(writePos - readPos)
}
