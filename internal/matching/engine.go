// Package matching implements the single-symbol, single-threaded matching
// core: order submission and cancellation against a price-time priority
// book, built entirely on the order pool and book types in internal/orders.
// It is the hot path of the system; it performs no I/O and takes no locks.
// It is not allocation-free: every submission that reaches the crossing loop
// allocates the fill slice it returns, and a price level is allocated the
// first time an order rests at a price whose level is absent (an emptied
// best level is released).
package matching

import (
	"go.uber.org/zap"

	"github.com/abdoElHodaky/lobcore/internal/orders"
)

// MaxFillsPerOrder bounds the number of fill records a single submission can
// report. Fills beyond this bound still execute against the book, but are
// not recorded in Result.Fills.
const MaxFillsPerOrder = 64

// Config parameterizes a single Engine instance.
type Config struct {
	// Symbol is the only symbol this Engine will accept orders for.
	Symbol orders.SymbolID
	// PoolBits is log2 of the order pool's capacity.
	PoolBits uint32
	// BasePrice is the floor price both book sides index from.
	BasePrice orders.Price
}

// ResultKind tags the disposition of a submitted order.
type ResultKind uint8

const (
	// Filled means the order fully executed against resting liquidity.
	Filled ResultKind = iota
	// PartialFill means the order partially executed and the remainder
	// now rests on the book.
	PartialFill
	// Resting means the order had no crossing liquidity and rests in full.
	Resting
	// Rejected means the order was refused before or during matching.
	Rejected
	// Cancelled means an IOC or FOK order's unfilled remainder was discarded.
	Cancelled
)

// Result is the outcome of a single SubmitOrder call. Exactly the fields
// relevant to Kind are meaningful; callers should switch on Kind first.
type Result struct {
	Kind       ResultKind
	Fills      []orders.Fill
	RestingQty orders.Quantity
	Handle     orders.OrderHandle
	FilledQty  orders.Quantity
	Reason     orders.RejectReason
}

// Engine owns one symbol's book and order pool and matches orders against
// them with price-time priority. It is not safe for concurrent use; callers
// serialize access to a single Engine (typically via an SPSC ring feeding a
// single consumer goroutine).
type Engine struct {
	book   *orders.Book
	pool   *orders.Pool
	symbol orders.SymbolID
	logger *zap.Logger
}

// NewEngine constructs an Engine from cfg. A nil logger is replaced with
// zap.NewNop(), matching the convention of accepting an injected logger
// while staying usable without one in tests.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := &Engine{
		book:   orders.NewBook(cfg.BasePrice),
		pool:   orders.NewPool(cfg.PoolBits),
		symbol: cfg.Symbol,
		logger: logger,
	}
	logger.Info("matching engine constructed",
		zap.Uint32("symbol", uint32(cfg.Symbol)),
		zap.Uint32("pool_bits", cfg.PoolBits),
		zap.Uint64("base_price", uint64(cfg.BasePrice)),
	)
	return engine
}

// PoolStats reports current pool occupancy, mirroring the diagnostic the
// original engine exposes for capacity monitoring.
func (e *Engine) PoolStats() (active, capacity int) {
	return e.pool.Active(), e.pool.Capacity()
}

// GetOrder returns a snapshot of the live order at handle, or (zero, false)
// if handle is invalid.
func (e *Engine) GetOrder(handle orders.OrderHandle) (orders.Order, bool) {
	if !handle.IsValid() {
		return orders.Order{}, false
	}
	return *e.pool.Get(handle), true
}

// SubmitOrder is the hot path: validate, stamp, check PostOnly and FOK
// preconditions, cross against the book, then apply the time-in-force's
// post-match disposition.
func (e *Engine) SubmitOrder(order orders.Order, timestamp int64) Result {
	if order.RemainingQty.IsZero() {
		return Result{Kind: Rejected, Reason: orders.InvalidQuantity}
	}
	if order.Symbol != e.symbol {
		return Result{Kind: Rejected, Reason: orders.SymbolNotFound}
	}
	if order.Price.IsZero() && order.Type != orders.IOC {
		return Result{Kind: Rejected, Reason: orders.InvalidPrice}
	}

	order.Timestamp = timestamp
	order.OriginalQty = order.RemainingQty

	if order.Type == orders.PostOnly {
		opposite := e.book.OppositeSide(order.Side)
		if opposite.WouldMatch(order.Price, order.Side) {
			return Result{Kind: Rejected, Reason: orders.PostOnlyWouldMatch}
		}
	}

	if order.Type == orders.FOK && !e.canFillCompletely(&order) {
		return Result{Kind: Rejected, Reason: orders.InsufficientLiquidity}
	}

	fills := e.matchOrder(&order)

	if order.IsFilled() {
		return Result{Kind: Filled, Fills: fills}
	}

	switch order.Type {
	case orders.IOC, orders.FOK:
		return Result{Kind: Cancelled, FilledQty: order.FilledQty(), Fills: fills}
	default: // Limit, PostOnly
		handle, ok := e.addToBook(order)
		if !ok {
			reason := orders.BookFull
			if e.pool.IsFull() {
				reason = orders.PoolExhausted
			}
			return Result{Kind: Rejected, Reason: reason, Fills: fills}
		}
		if len(fills) == 0 {
			return Result{Kind: Resting, Handle: handle}
		}
		return Result{Kind: PartialFill, Fills: fills, RestingQty: order.RemainingQty, Handle: handle}
	}
}

// canFillCompletely is the FOK precheck: it only inspects the best opposing
// level's aggregate quantity, matching the engine's policy of never walking
// the full book before committing to a match. An order that could be filled
// by combining several levels but not the best one alone is rejected; this
// is a deliberate precision/latency tradeoff, not an oversight.
func (e *Engine) canFillCompletely(order *orders.Order) bool {
	opposite := e.book.OppositeSide(order.Side)
	best, ok := opposite.BestPrice()
	if !ok {
		return false
	}
	if !opposite.WouldMatch(order.Price, order.Side) {
		return false
	}
	_ = best
	level := opposite.BestLevel()
	if level == nil {
		return false
	}
	return level.TotalQty >= order.RemainingQty
}

// matchOrder repeatedly crosses order against the opposite side's best
// level until it is filled or no more crossing liquidity remains. It
// accumulates at most MaxFillsPerOrder fill records; once this degree of
// fragmentation occurs, subsequent fills still execute but are no longer
// recorded individually, mirroring the bounded fill buffer of the order
// result.
func (e *Engine) matchOrder(order *orders.Order) []orders.Fill {
	fills := make([]orders.Fill, 0, 4)

	for !order.RemainingQty.IsZero() {
		opposite := e.book.OppositeSide(order.Side)
		bestPrice, ok := opposite.BestPrice()
		if !ok {
			break
		}
		if !opposite.WouldMatch(order.Price, order.Side) {
			break
		}

		fill, matched := e.matchOneAtBest(order.Side.Opposite(), order, bestPrice)
		if matched {
			if len(fills) < MaxFillsPerOrder {
				fills = append(fills, fill)
			}
			continue
		}
		opposite.FindNextBest()
	}

	return fills
}

// matchOneAtBest executes one fill against the front order at the best
// level on makerSide, or returns (zero, false) if that level has nothing
// left to match (the caller should then advance to the next best level).
func (e *Engine) matchOneAtBest(makerSide orders.Side, taker *orders.Order, execPrice orders.Price) (orders.Fill, bool) {
	book := e.book.Side(makerSide)
	level := book.BestLevel()
	if level == nil || level.IsEmpty() {
		return orders.Fill{}, false
	}

	makerHandle, ok := level.Front()
	if !ok {
		return orders.Fill{}, false
	}
	maker := e.pool.Get(makerHandle)

	fillQty := taker.RemainingQty.Min(maker.RemainingQty)

	fill := orders.Fill{
		MakerOrderID: maker.ID,
		TakerOrderID: taker.ID,
		Price:        execPrice,
		Quantity:     fillQty,
		MakerSide:    maker.Side,
		Symbol:       taker.Symbol,
		Timestamp:    taker.Timestamp,
	}

	taker.Fill(fillQty)
	maker.Fill(fillQty)

	level.ReduceQty(fillQty)
	if maker.IsFilled() {
		level.PopFront()
		e.pool.Deallocate(makerHandle)
		book.DecrementOrderCount()
		if level.IsEmpty() {
			book.FindNextBest()
		}
	}
	book.ReduceQty(fillQty)

	return fill, true
}

// addToBook allocates a pool slot for order and inserts it at its price
// level. It returns (InvalidHandle, false) on pool exhaustion or a full
// price level, deallocating the slot it provisionally took in the latter
// case so the pool's accounting stays exact.
func (e *Engine) addToBook(order orders.Order) (orders.OrderHandle, bool) {
	handle, ok := e.pool.Allocate()
	if !ok {
		e.logger.Warn("order pool exhausted, rejecting resting order",
			zap.Uint64("order_id", uint64(order.ID)),
			zap.Int("pool_capacity", e.pool.Capacity()),
		)
		return orders.InvalidHandle, false
	}
	e.pool.Insert(handle, order)

	side := e.book.Side(order.Side)
	ref := e.pool.Get(handle)
	if side.AddOrder(handle, ref) {
		return handle, true
	}
	e.logger.Warn("price level full, rejecting resting order",
		zap.Uint64("order_id", uint64(order.ID)),
		zap.Uint64("price", uint64(order.Price)),
	)
	e.pool.Deallocate(handle)
	return orders.InvalidHandle, false
}

// CancelOrder removes the resting order at handle from the book and
// releases its pool slot, returning the order as it stood at cancellation.
// It reports (zero, false) for an invalid handle.
func (e *Engine) CancelOrder(handle orders.OrderHandle) (orders.Order, bool) {
	if !handle.IsValid() {
		return orders.Order{}, false
	}
	order := *e.pool.Get(handle)

	side := e.book.Side(order.Side)
	if level := side.LevelAtPrice(order.Price); level != nil {
		// Rotate the queue once, dropping handle and keeping every other
		// handle in its original FIFO order.
		for i, n := 0, level.Len(); i < n; i++ {
			h, _ := level.PopFront()
			if h != handle {
				level.PushBack(h, 0)
			}
		}
		level.ReduceQty(order.RemainingQty)
	}
	side.ReduceQty(order.RemainingQty)
	side.DecrementOrderCount()
	side.FindNextBest()

	e.pool.Deallocate(handle)
	return order, true
}
