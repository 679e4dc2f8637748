package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAllocateDeallocate(t *testing.T) {
	pool := NewPool(2) // capacity 4

	h0, ok := pool.Allocate()
	require.True(t, ok)
	assert.True(t, h0.IsValid())
	assert.Equal(t, 1, pool.Active())
	assert.Equal(t, 3, pool.FreeStackDepth())

	h1, ok := pool.Allocate()
	require.True(t, ok)
	assert.NotEqual(t, h0, h1)

	pool.Deallocate(h0)
	assert.Equal(t, 1, pool.Active())

	// Most-recently-freed slot is reused first.
	h2, ok := pool.Allocate()
	require.True(t, ok)
	assert.Equal(t, h0, h2)
}

func TestPoolExhaustion(t *testing.T) {
	pool := NewPool(1) // capacity 2

	_, ok := pool.Allocate()
	require.True(t, ok)
	_, ok = pool.Allocate()
	require.True(t, ok)

	_, ok = pool.Allocate()
	assert.False(t, ok, "pool should report exhaustion rather than grow")
	assert.True(t, pool.IsFull())
}

func TestPoolInsertAndGet(t *testing.T) {
	pool := NewPool(2)
	h, ok := pool.Allocate()
	require.True(t, ok)

	pool.Insert(h, Order{ID: OrderID(42), Price: Price(100), RemainingQty: Quantity(10)})
	order := pool.Get(h)
	assert.Equal(t, OrderID(42), order.ID)
	assert.Equal(t, Price(100), order.Price)
}

func TestPoolDeallocateDoubleFreePanics(t *testing.T) {
	pool := NewPool(1)
	h, ok := pool.Allocate()
	require.True(t, ok)

	pool.Deallocate(h)
	assert.Panics(t, func() {
		pool.Deallocate(h)
	})
}

func TestPoolDeallocateOutOfRangePanics(t *testing.T) {
	pool := NewPool(1)
	assert.Panics(t, func() {
		pool.Deallocate(OrderHandle(99))
	})
}

func TestPoolCapacityMatchesBits(t *testing.T) {
	pool := NewPool(10)
	assert.Equal(t, 1024, pool.Capacity())
}

func TestNewPoolPanicsAboveMaxBits(t *testing.T) {
	assert.Panics(t, func() {
		NewPool(MaxPoolBits + 1)
	})
}
