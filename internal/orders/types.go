// Package orders defines the core value types of the matching engine: fixed-point
// prices and quantities, the cache-line-sized Order record, and the closed set of
// sides and time-in-force variants dispatched on the hot path.
package orders

import "fmt"

// Price is a non-negative count of minimum price increments (ticks) above zero.
// All arithmetic on Price is integer; the engine never uses floating point on
// the hot path.
type Price uint64

// TickSize is the minimum price increment represented by one unit of Price.
// A compile-time constant keeps every price stored in the book a multiple of it.
const TickSize uint64 = 1

// ZeroPrice is the reserved "no price" / market-order sentinel.
const ZeroPrice Price = 0

// FromTicks builds a Price from a raw tick count. It is the identity function
// under TickSize == 1, kept so call sites read the same regardless of tick grid.
func FromTicks(ticks uint64) Price {
	return Price(ticks * TickSize)
}

// ToTicks returns the number of minimum price increments represented by p.
func (p Price) ToTicks() uint64 {
	return uint64(p) / TickSize
}

// IsZero reports whether the price is the zero sentinel.
func (p Price) IsZero() bool {
	return p == 0
}

// Quantity is a non-negative count of base units (shares, contracts, lots).
type Quantity uint64

// ZeroQuantity is the empty-fill sentinel.
const ZeroQuantity Quantity = 0

// IsZero reports whether the quantity is zero.
func (q Quantity) IsZero() bool {
	return q == 0
}

// SaturatingSub subtracts other from q, clamping at zero instead of
// wrapping. Used everywhere an underflow would otherwise be possible, e.g.
// reducing a price level's aggregate quantity after a cancel races a fill.
func (q Quantity) SaturatingSub(other Quantity) Quantity {
	if other >= q {
		return 0
	}
	return q - other
}

// SaturatingAdd adds other to q, clamping at the maximum representable value.
func (q Quantity) SaturatingAdd(other Quantity) Quantity {
	sum := q + other
	if sum < q {
		return Quantity(^uint64(0))
	}
	return sum
}

// Min returns the smaller of q and other.
func (q Quantity) Min(other Quantity) Quantity {
	if q < other {
		return q
	}
	return other
}

// OrderID is a client-assigned opaque identifier. Zero is reserved as "invalid".
type OrderID uint64

// InvalidOrderID is the reserved "no order" sentinel.
const InvalidOrderID OrderID = 0

// IsValid reports whether the order id is usable.
func (id OrderID) IsValid() bool {
	return id != InvalidOrderID
}

// SymbolID is a pre-interned 32-bit symbol tag. One Engine instance matches
// exactly one SymbolID; the Engine rejects orders carrying another with
// SymbolNotFound.
type SymbolID uint32

// InvalidSymbolID is the reserved "unset" sentinel.
const InvalidSymbolID SymbolID = 0xFFFF_FFFF

// Side identifies which book an order rests on.
type Side uint8

const (
	// Buy is the bid side.
	Buy Side = iota
	// Sell is the ask side.
	Sell
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// String implements fmt.Stringer for diagnostics and log fields.
func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// OrderType is the time-in-force of an order: a closed, four-case tagged
// variant dispatched by switch, never by dynamic lookup.
type OrderType uint8

const (
	// Limit rests on the book until fully filled or cancelled.
	Limit OrderType = iota
	// IOC (Immediate-Or-Cancel) fills what it can and cancels the remainder.
	IOC
	// FOK (Fill-Or-Kill) fills in full immediately or is rejected entirely.
	FOK
	// PostOnly rejects instead of resting if it would immediately match.
	PostOnly
)

// ShouldRest reports whether an order of this type is added to the book
// when it is not fully filled by the crossing loop.
func (t OrderType) ShouldRest() bool {
	return t == Limit || t == PostOnly
}

// String implements fmt.Stringer for diagnostics and log fields.
func (t OrderType) String() string {
	switch t {
	case Limit:
		return "limit"
	case IOC:
		return "ioc"
	case FOK:
		return "fok"
	case PostOnly:
		return "post_only"
	default:
		return "unknown"
	}
}

// OrderHandle is an index into the order pool. InvalidHandle marks "no order".
// A handle is live from the moment the pool emits it until it is deallocated;
// get(handle) is only meaningful for the engine during that interval.
type OrderHandle uint32

// InvalidHandle is the reserved sentinel value (pool capacity never reaches it).
const InvalidHandle OrderHandle = 0xFFFF_FFFF

// IsValid reports whether the handle refers to a live slot.
func (h OrderHandle) IsValid() bool {
	return h != InvalidHandle
}

// Order is the canonical order record. It is laid out hot-fields-first so
// that the fields touched on every crossing iteration (price, remaining
// quantity, id, timestamp) share the leading 32 bytes of the struct; the
// warm fields and trailing padding round the record out to one 64-byte
// cache line on a 64-bit platform.
type Order struct {
	// Price is the limit price; zero is only valid for IOC "market" orders.
	Price Price
	// RemainingQty is the quantity left to fill; zero means fully filled.
	RemainingQty Quantity
	// ID is the client-assigned order identifier.
	ID OrderID
	// Timestamp is stamped by the engine at submission, before matching.
	Timestamp int64

	// OriginalQty is the quantity the order was submitted with.
	OriginalQty Quantity
	// Symbol is the order's symbol tag; must equal the engine's SymbolID.
	Symbol SymbolID
	// Side is buy or sell.
	Side Side
	// Type is the time-in-force variant.
	Type OrderType
	// Flags holds reserved bits for future per-order behavior.
	Flags uint8

	_ [17]byte // deterministic padding out to 64 bytes
}

// IsFilled reports whether the order has no remaining quantity.
func (o *Order) IsFilled() bool {
	return o.RemainingQty.IsZero()
}

// Fill reduces the order's remaining quantity by qty. The caller guarantees
// qty does not exceed RemainingQty; Fill panics if it does.
func (o *Order) Fill(qty Quantity) {
	if qty > o.RemainingQty {
		panic(fmt.Sprintf("orders: fill quantity %d exceeds remaining %d for order %d", qty, o.RemainingQty, o.ID))
	}
	o.RemainingQty -= qty
}

// FilledQty returns how much of the order has executed so far.
func (o *Order) FilledQty() Quantity {
	return o.OriginalQty - o.RemainingQty
}

// Fill is an immutable record of one maker/taker crossing, emitted once per
// execution inside the matching loop.
type Fill struct {
	MakerOrderID OrderID
	TakerOrderID OrderID
	Price        Price
	Quantity     Quantity
	MakerSide    Side
	Symbol       SymbolID
	Timestamp    int64
}

// RejectReason enumerates the synchronous rejection kinds surfaced in
// matching.Result. Every rejection is a local, non-retried decision.
type RejectReason uint8

const (
	// InvalidPrice marks a zero price on a non-IOC order.
	InvalidPrice RejectReason = iota
	// InvalidQuantity marks a zero remaining quantity.
	InvalidQuantity
	// PoolExhausted marks that the order pool has no free slots.
	PoolExhausted
	// BookFull marks a price level at MaxOrdersPerLevel capacity.
	BookFull
	// PostOnlyWouldMatch marks a PostOnly order that would cross on arrival.
	PostOnlyWouldMatch
	// SymbolNotFound marks a symbol mismatch against the engine's SymbolID.
	SymbolNotFound
	// InsufficientLiquidity marks an FOK order that cannot be filled in full.
	InsufficientLiquidity
)

// String implements fmt.Stringer for diagnostics and log fields.
func (r RejectReason) String() string {
	switch r {
	case InvalidPrice:
		return "invalid_price"
	case InvalidQuantity:
		return "invalid_quantity"
	case PoolExhausted:
		return "pool_exhausted"
	case BookFull:
		return "book_full"
	case PostOnlyWouldMatch:
		return "post_only_would_match"
	case SymbolNotFound:
		return "symbol_not_found"
	case InsufficientLiquidity:
		return "insufficient_liquidity"
	default:
		return "unknown"
	}
}
