package orders

// MaxLevels bounds the number of distinct price levels a single side can
// index. A dense array sized to this gives O(1) level lookup and constant-
// time best-price comparisons, at the cost of a per-side array allocated up
// front; the matching engine amortizes the one-time cost across the life of
// the book.
const MaxLevels = 65536

// BookSide is one side (bids or asks) of the order book: a dense array of
// optional price levels indexed by tick offset from BasePrice, plus a
// best-index cache so the matching loop never has to scan for the best
// price.
type BookSide struct {
	levels     []*Level
	bestIdx    int // -1 means absent
	side       Side
	basePrice  Price
	orderCount uint64
	totalQty   Quantity
}

// NewBookSide constructs an empty side. basePrice is the lowest price this
// side can index; prices below it are rejected as out of range.
func NewBookSide(side Side, basePrice Price) *BookSide {
	return &BookSide{
		levels:    make([]*Level, MaxLevels),
		bestIdx:   -1,
		side:      side,
		basePrice: basePrice,
	}
}

// priceToIdx maps price to its dense-array slot, or (-1) if price is below
// BasePrice or would index past MaxLevels.
func (s *BookSide) priceToIdx(price Price) int {
	if uint64(price) < uint64(s.basePrice) {
		return -1
	}
	offset := uint64(price) - uint64(s.basePrice)
	idx := offset / TickSize
	if idx >= MaxLevels {
		return -1
	}
	return int(idx)
}

// idxToPrice is the inverse of priceToIdx.
func (s *BookSide) idxToPrice(idx int) Price {
	return Price(uint64(s.basePrice) + uint64(idx)*TickSize)
}

// AddOrder resolves order.Price to a level index, lazily creates the level
// if needed, appends the handle, and refreshes the side's aggregate counters
// and best-price cache. It returns false if the price is out of range or the
// level is already at MaxOrdersPerLevel (BookFull upstream).
func (s *BookSide) AddOrder(h OrderHandle, order *Order) bool {
	idx := s.priceToIdx(order.Price)
	if idx < 0 {
		return false
	}
	level := s.levels[idx]
	if level == nil {
		level = NewLevel()
		s.levels[idx] = level
	}
	if !level.PushBack(h, order.RemainingQty) {
		return false
	}
	s.orderCount++
	s.totalQty = s.totalQty.SaturatingAdd(order.RemainingQty)
	s.updateBestAfterAdd(idx)
	return true
}

func (s *BookSide) updateBestAfterAdd(idx int) {
	if s.bestIdx < 0 {
		s.bestIdx = idx
		return
	}
	var better bool
	if s.side == Buy {
		better = idx > s.bestIdx
	} else {
		better = idx < s.bestIdx
	}
	if better {
		s.bestIdx = idx
	}
}

// BestLevel returns the level at the current best index, or nil if the side
// is empty.
func (s *BookSide) BestLevel() *Level {
	if s.bestIdx < 0 {
		return nil
	}
	return s.levels[s.bestIdx]
}

// BestPrice returns the current best price and true, or (0, false) if the
// side is empty.
func (s *BookSide) BestPrice() (Price, bool) {
	if s.bestIdx < 0 {
		return 0, false
	}
	return s.idxToPrice(s.bestIdx), true
}

// WouldMatch reports whether an incoming order at price on incomingSide
// would cross this side's current best: a buy crosses iff price >= best
// ask, a sell crosses iff price <= best bid.
func (s *BookSide) WouldMatch(price Price, incomingSide Side) bool {
	best, ok := s.BestPrice()
	if !ok {
		return false
	}
	if incomingSide == Buy {
		return price >= best
	}
	return price <= best
}

// FindNextBest is called after the current best level has been exhausted or
// its front fully consumed. If the best level is now empty, its slot is
// released and the scan proceeds: downward toward zero for bids, upward
// toward MaxLevels for asks. The first non-empty level becomes the new best;
// finding none leaves the side empty.
func (s *BookSide) FindNextBest() {
	if s.bestIdx < 0 {
		return
	}
	current := s.bestIdx
	if s.levels[current] == nil || s.levels[current].IsEmpty() {
		s.levels[current] = nil
	} else {
		return
	}

	s.bestIdx = -1
	if s.side == Buy {
		for idx := current - 1; idx >= 0; idx-- {
			if s.levels[idx] != nil && !s.levels[idx].IsEmpty() {
				s.bestIdx = idx
				break
			}
		}
	} else {
		for idx := current + 1; idx < MaxLevels; idx++ {
			if s.levels[idx] != nil && !s.levels[idx].IsEmpty() {
				s.bestIdx = idx
				break
			}
		}
	}
}

// LevelAtPrice returns the level resting at price, or nil if there is none
// or the price is out of range. Used by cancellation to locate the level
// holding the cancelled order.
func (s *BookSide) LevelAtPrice(price Price) *Level {
	idx := s.priceToIdx(price)
	if idx < 0 {
		return nil
	}
	return s.levels[idx]
}

// IsEmpty reports whether every level on this side is empty; by invariant
// this is equivalent to BestIdx being absent.
func (s *BookSide) IsEmpty() bool {
	return s.bestIdx < 0
}

// OrderCount returns the total number of resting orders on this side.
func (s *BookSide) OrderCount() uint64 {
	return s.orderCount
}

// TotalQty returns the aggregate remaining quantity across every level on
// this side.
func (s *BookSide) TotalQty() Quantity {
	return s.totalQty
}

// ReduceQty saturating-subtracts qty from the side's aggregate quantity.
func (s *BookSide) ReduceQty(qty Quantity) {
	s.totalQty = s.totalQty.SaturatingSub(qty)
}

// DecrementOrderCount decrements the side's resting-order counter, saturating
// at zero.
func (s *BookSide) DecrementOrderCount() {
	if s.orderCount > 0 {
		s.orderCount--
	}
}

// Book is the complete order book for a single symbol: a bid side, an ask
// side, and a monotonically increasing sequence counter. The counter
// advances only when NextSequence is called; neither Book nor the matching
// Engine calls it, so submissions and cancels leave it unchanged.
type Book struct {
	Bids     *BookSide
	Asks     *BookSide
	sequence uint64
}

// NewBook constructs an empty book. basePrice is the floor price both sides
// index from.
func NewBook(basePrice Price) *Book {
	return &Book{
		Bids: NewBookSide(Buy, basePrice),
		Asks: NewBookSide(Sell, basePrice),
	}
}

// Sequence returns the current sequence counter.
func (b *Book) Sequence() uint64 {
	return b.sequence
}

// NextSequence increments and returns the sequence counter.
func (b *Book) NextSequence() uint64 {
	b.sequence++
	return b.sequence
}

// BestBid returns the best bid price, if any.
func (b *Book) BestBid() (Price, bool) {
	return b.Bids.BestPrice()
}

// BestAsk returns the best ask price, if any.
func (b *Book) BestAsk() (Price, bool) {
	return b.Asks.BestPrice()
}

// IsEmpty reports whether both sides are empty.
func (b *Book) IsEmpty() bool {
	return b.Bids.IsEmpty() && b.Asks.IsEmpty()
}

// Side returns the requested side.
func (b *Book) Side(side Side) *BookSide {
	if side == Buy {
		return b.Bids
	}
	return b.Asks
}

// OppositeSide returns the side opposite to side, i.e. the resting liquidity
// an incoming order on side would cross against.
func (b *Book) OppositeSide(side Side) *BookSide {
	if side == Buy {
		return b.Asks
	}
	return b.Bids
}
