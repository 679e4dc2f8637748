package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelPushFrontPop(t *testing.T) {
	level := NewLevel()
	assert.True(t, level.IsEmpty())

	ok := level.PushBack(OrderHandle(1), Quantity(10))
	require.True(t, ok)
	ok = level.PushBack(OrderHandle(2), Quantity(5))
	require.True(t, ok)

	assert.Equal(t, Quantity(15), level.TotalQty)
	assert.Equal(t, 2, level.Len())

	front, ok := level.Front()
	require.True(t, ok)
	assert.Equal(t, OrderHandle(1), front, "FIFO: first pushed is first out")

	h, ok := level.PopFront()
	require.True(t, ok)
	assert.Equal(t, OrderHandle(1), h)
	// PopFront does not touch TotalQty; the engine reduces it explicitly.
	assert.Equal(t, Quantity(15), level.TotalQty)

	h, ok = level.PopFront()
	require.True(t, ok)
	assert.Equal(t, OrderHandle(2), h)
	assert.True(t, level.IsEmpty())
}

func TestLevelWrapAround(t *testing.T) {
	level := NewLevel()
	// Fill to capacity, drain half, push more so head/tail wrap past the
	// array boundary, and confirm FIFO order survives the wrap.
	for i := 0; i < MaxOrdersPerLevel; i++ {
		ok := level.PushBack(OrderHandle(i), Quantity(1))
		require.True(t, ok)
	}
	assert.True(t, level.IsFull())

	for i := 0; i < MaxOrdersPerLevel/2; i++ {
		h, ok := level.PopFront()
		require.True(t, ok)
		assert.Equal(t, OrderHandle(i), h)
	}

	for i := 0; i < MaxOrdersPerLevel/2; i++ {
		ok := level.PushBack(OrderHandle(10000+i), Quantity(1))
		require.True(t, ok)
	}
	assert.True(t, level.IsFull())

	for i := MaxOrdersPerLevel / 2; i < MaxOrdersPerLevel; i++ {
		h, ok := level.PopFront()
		require.True(t, ok)
		assert.Equal(t, OrderHandle(i), h)
	}
	for i := 0; i < MaxOrdersPerLevel/2; i++ {
		h, ok := level.PopFront()
		require.True(t, ok)
		assert.Equal(t, OrderHandle(10000+i), h)
	}
	assert.True(t, level.IsEmpty())
}

func TestLevelFullRejectsPush(t *testing.T) {
	level := NewLevel()
	for i := 0; i < MaxOrdersPerLevel; i++ {
		require.True(t, level.PushBack(OrderHandle(i), Quantity(1)))
	}
	ok := level.PushBack(OrderHandle(99999), Quantity(1))
	assert.False(t, ok)
}

func TestLevelReduceAndAddQty(t *testing.T) {
	level := NewLevel()
	level.PushBack(OrderHandle(1), Quantity(10))

	level.ReduceQty(Quantity(4))
	assert.Equal(t, Quantity(6), level.TotalQty)

	level.ReduceQty(Quantity(100))
	assert.Equal(t, Quantity(0), level.TotalQty, "saturates at zero")

	level.AddQty(Quantity(3))
	assert.Equal(t, Quantity(3), level.TotalQty)
}

func TestLevelHandlesOrdering(t *testing.T) {
	level := NewLevel()
	level.PushBack(OrderHandle(1), Quantity(1))
	level.PushBack(OrderHandle(2), Quantity(1))
	level.PopFront()
	level.PushBack(OrderHandle(3), Quantity(1))

	assert.Equal(t, []OrderHandle{OrderHandle(2), OrderHandle(3)}, level.Handles())
}

func TestEmptyLevelFrontAndPop(t *testing.T) {
	level := NewLevel()
	_, ok := level.Front()
	assert.False(t, ok)
	_, ok = level.PopFront()
	assert.False(t, ok)
}
