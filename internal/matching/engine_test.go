package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/lobcore/internal/orders"
)

func newTestEngine() *Engine {
	return NewEngine(Config{
		Symbol:    orders.SymbolID(1),
		PoolBits:  10, // 1024 orders
		BasePrice: orders.ZeroPrice,
	}, nil)
}

func limitOrder(id uint64, side orders.Side, price, qty uint64) orders.Order {
	return orders.Order{
		ID:           orders.OrderID(id),
		Symbol:       orders.SymbolID(1),
		Side:         side,
		Type:         orders.Limit,
		Price:        orders.Price(price),
		RemainingQty: orders.Quantity(qty),
	}
}

func TestCleanCross(t *testing.T) {
	e := newTestEngine()

	sell := limitOrder(1, orders.Sell, 100, 100)
	res := e.SubmitOrder(sell, 1)
	require.Equal(t, Resting, res.Kind)

	buy := limitOrder(2, orders.Buy, 100, 100)
	res = e.SubmitOrder(buy, 2)

	require.Equal(t, Filled, res.Kind)
	require.Len(t, res.Fills, 1)
	assert.Equal(t, orders.Quantity(100), res.Fills[0].Quantity)
	assert.Equal(t, orders.Price(100), res.Fills[0].Price)
	assert.Equal(t, orders.OrderID(1), res.Fills[0].MakerOrderID)
	assert.Equal(t, orders.OrderID(2), res.Fills[0].TakerOrderID)
}

func TestPartialFillMaker(t *testing.T) {
	e := newTestEngine()

	sell := limitOrder(1, orders.Sell, 100, 50)
	e.SubmitOrder(sell, 1)

	buy := limitOrder(2, orders.Buy, 100, 100)
	res := e.SubmitOrder(buy, 2)

	require.Equal(t, PartialFill, res.Kind)
	require.Len(t, res.Fills, 1)
	assert.Equal(t, orders.Quantity(50), res.Fills[0].Quantity)
	assert.Equal(t, orders.Quantity(50), res.RestingQty)
	assert.True(t, res.Handle.IsValid())

	resting, ok := e.GetOrder(res.Handle)
	require.True(t, ok)
	assert.Equal(t, orders.Quantity(50), resting.RemainingQty)
}

func TestTimePriority(t *testing.T) {
	e := newTestEngine()

	e.SubmitOrder(limitOrder(1, orders.Sell, 100, 50), 1)
	e.SubmitOrder(limitOrder(2, orders.Sell, 100, 50), 2)

	res := e.SubmitOrder(limitOrder(3, orders.Buy, 100, 50), 3)

	require.Equal(t, Filled, res.Kind)
	require.Len(t, res.Fills, 1)
	assert.Equal(t, orders.OrderID(1), res.Fills[0].MakerOrderID, "earlier resting order must match first")
}

func TestIOCNoLiquidityCancelled(t *testing.T) {
	e := newTestEngine()

	order := orders.Order{
		ID:           orders.OrderID(1),
		Symbol:       orders.SymbolID(1),
		Side:         orders.Buy,
		Type:         orders.IOC,
		Price:        orders.Price(100),
		RemainingQty: orders.Quantity(100),
	}
	res := e.SubmitOrder(order, 1)

	require.Equal(t, Cancelled, res.Kind)
	assert.Equal(t, orders.Quantity(0), res.FilledQty)
	assert.Empty(t, res.Fills)
}

func TestIOCPartialFillThenCancel(t *testing.T) {
	e := newTestEngine()
	e.SubmitOrder(limitOrder(1, orders.Sell, 100, 30), 1)

	order := orders.Order{
		ID:           orders.OrderID(2),
		Symbol:       orders.SymbolID(1),
		Side:         orders.Buy,
		Type:         orders.IOC,
		Price:        orders.Price(100),
		RemainingQty: orders.Quantity(100),
	}
	res := e.SubmitOrder(order, 2)

	require.Equal(t, Cancelled, res.Kind)
	assert.Equal(t, orders.Quantity(30), res.FilledQty)
	require.Len(t, res.Fills, 1)
}

func TestPostOnlyRejectedWhenWouldMatch(t *testing.T) {
	e := newTestEngine()
	e.SubmitOrder(limitOrder(1, orders.Sell, 100, 100), 1)

	order := limitOrder(2, orders.Buy, 100, 100)
	order.Type = orders.PostOnly
	res := e.SubmitOrder(order, 2)

	require.Equal(t, Rejected, res.Kind)
	assert.Equal(t, orders.PostOnlyWouldMatch, res.Reason)
}

func TestPostOnlyRestsWhenNoCross(t *testing.T) {
	e := newTestEngine()
	e.SubmitOrder(limitOrder(1, orders.Sell, 110, 100), 1)

	order := limitOrder(2, orders.Buy, 100, 100)
	order.Type = orders.PostOnly
	res := e.SubmitOrder(order, 2)

	require.Equal(t, Resting, res.Kind)
}

func TestFOKRejectedOnInsufficientLiquidity(t *testing.T) {
	e := newTestEngine()
	e.SubmitOrder(limitOrder(1, orders.Sell, 100, 30), 1)

	order := orders.Order{
		ID:           orders.OrderID(2),
		Symbol:       orders.SymbolID(1),
		Side:         orders.Buy,
		Type:         orders.FOK,
		Price:        orders.Price(100),
		RemainingQty: orders.Quantity(100),
	}
	res := e.SubmitOrder(order, 2)

	require.Equal(t, Rejected, res.Kind)
	assert.Equal(t, orders.InsufficientLiquidity, res.Reason)

	// Nothing should have been filled or rested.
	active, _ := e.PoolStats()
	assert.Equal(t, 1, active, "only the original resting sell order occupies the pool")
}

func TestFOKFilledInFull(t *testing.T) {
	e := newTestEngine()
	e.SubmitOrder(limitOrder(1, orders.Sell, 100, 100), 1)

	order := orders.Order{
		ID:           orders.OrderID(2),
		Symbol:       orders.SymbolID(1),
		Side:         orders.Buy,
		Type:         orders.FOK,
		Price:        orders.Price(100),
		RemainingQty: orders.Quantity(100),
	}
	res := e.SubmitOrder(order, 2)

	require.Equal(t, Filled, res.Kind)
	require.Len(t, res.Fills, 1)
}

func TestRejectZeroQuantity(t *testing.T) {
	e := newTestEngine()
	res := e.SubmitOrder(limitOrder(1, orders.Buy, 100, 0), 1)
	assert.Equal(t, Rejected, res.Kind)
	assert.Equal(t, orders.InvalidQuantity, res.Reason)
}

func TestRejectZeroPriceNonIOC(t *testing.T) {
	e := newTestEngine()
	res := e.SubmitOrder(limitOrder(1, orders.Buy, 0, 10), 1)
	assert.Equal(t, Rejected, res.Kind)
	assert.Equal(t, orders.InvalidPrice, res.Reason)
}

func TestRejectWrongSymbol(t *testing.T) {
	e := newTestEngine()
	order := limitOrder(1, orders.Buy, 100, 10)
	order.Symbol = orders.SymbolID(99)
	res := e.SubmitOrder(order, 1)
	assert.Equal(t, Rejected, res.Kind)
	assert.Equal(t, orders.SymbolNotFound, res.Reason)
}

func TestCancelOrderRemovesFromBook(t *testing.T) {
	e := newTestEngine()
	res := e.SubmitOrder(limitOrder(1, orders.Sell, 100, 100), 1)
	require.Equal(t, Resting, res.Kind)

	cancelled, ok := e.CancelOrder(res.Handle)
	require.True(t, ok)
	assert.Equal(t, orders.OrderID(1), cancelled.ID)

	_, ok = e.book.Asks.BestPrice()
	assert.False(t, ok, "book must be empty after cancelling the only resting order")

	active, _ := e.PoolStats()
	assert.Equal(t, 0, active)
}

func TestCancelInvalidHandleReturnsFalse(t *testing.T) {
	e := newTestEngine()
	_, ok := e.CancelOrder(orders.InvalidHandle)
	assert.False(t, ok)
}

func TestPoolExhaustionRejectsResting(t *testing.T) {
	e := NewEngine(Config{
		Symbol:    orders.SymbolID(1),
		PoolBits:  1, // capacity 2
		BasePrice: orders.ZeroPrice,
	}, nil)

	res := e.SubmitOrder(limitOrder(1, orders.Sell, 100, 10), 1)
	require.Equal(t, Resting, res.Kind)
	res = e.SubmitOrder(limitOrder(2, orders.Sell, 101, 10), 2)
	require.Equal(t, Resting, res.Kind)

	res = e.SubmitOrder(limitOrder(3, orders.Sell, 102, 10), 3)
	assert.Equal(t, Rejected, res.Kind)
	assert.Equal(t, orders.PoolExhausted, res.Reason)
}
