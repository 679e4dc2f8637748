// Package publisher republishes matching-engine fills onto NATS, off the
// engine's hot path. It drains fills handed to it over an SPSC ring,
// dispatches each publish through a bounded goroutine pool, and wraps the
// underlying publish call in a circuit breaker so a stalled broker degrades
// to dropped market-data messages rather than blocking the drain loop.
//
// The NATS transport goes through watermill's message.Publisher abstraction,
// backed by watermill-nats, rather than a raw *nats.Conn — the same pairing
// the teacher repo uses for its own NATS publish path
// (internal/architecture/fx/eventbus_adapters.go's NewWatermillEventBus).
package publisher

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/lobcore/internal/apperrors"
	"github.com/abdoElHodaky/lobcore/internal/orders"
	"github.com/abdoElHodaky/lobcore/internal/ring"
)

// Config parameterizes a Publisher.
type Config struct {
	SubjectPrefix      string
	CircuitMaxRequests uint32
	CircuitInterval    int64 // seconds
	CircuitTimeout     int64 // seconds
	WorkerPoolSize     int
}

// fillMessage is the wire shape published to NATS: a flattened, JSON-tagged
// view of an orders.Fill.
type fillMessage struct {
	MakerOrderID uint64 `json:"maker_order_id"`
	TakerOrderID uint64 `json:"taker_order_id"`
	Price        uint64 `json:"price"`
	Quantity     uint64 `json:"quantity"`
	MakerSide    string `json:"maker_side"`
	Symbol       uint32 `json:"symbol"`
	Timestamp    int64  `json:"timestamp"`
}

// Publisher drains a fill ring and republishes each fill to NATS through a
// watermill message.Publisher.
type Publisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker
	pool      *ants.Pool
	prefix    string
	logger    *zap.Logger

	done chan struct{}
}

// New connects to natsURL and constructs a Publisher. A nil logger is
// replaced with zap.NewNop().
func New(natsURL string, cfg Config, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	watermillLogger := watermill.NewStdLogger(false, false)

	pub, err := wmnats.NewPublisher(wmnats.PublisherConfig{
		URL:       natsURL,
		Marshaler: wmnats.GobMarshaler{},
	}, watermillLogger)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrServiceUnavailable, "construct watermill nats publisher")
	}

	pool, err := ants.NewPool(cfg.WorkerPoolSize)
	if err != nil {
		pub.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrConfigInvalid, "construct worker pool")
	}

	breakerSettings := gobreaker.Settings{
		Name:        "nats-publish",
		MaxRequests: cfg.CircuitMaxRequests,
		Interval:    time.Duration(cfg.CircuitInterval) * time.Second,
		Timeout:     time.Duration(cfg.CircuitTimeout) * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Publisher{
		publisher: pub,
		breaker:   gobreaker.NewCircuitBreaker(breakerSettings),
		pool:      pool,
		prefix:    cfg.SubjectPrefix,
		logger:    logger,
		done:      make(chan struct{}),
	}, nil
}

// Subject returns the NATS subject a fill for the given symbol is
// published on.
func (p *Publisher) Subject(symbol orders.SymbolID) string {
	return fmt.Sprintf("%s.%d", p.prefix, symbol)
}

// PublishFill submits fill to NATS through the circuit breaker, dispatched
// onto the worker pool so the caller (the ring drain loop) never blocks on
// network I/O.
func (p *Publisher) PublishFill(fill orders.Fill) error {
	return p.pool.Submit(func() {
		if _, err := p.breaker.Execute(func() (interface{}, error) {
			return nil, p.publish(fill)
		}); err != nil {
			p.logger.Warn("dropped fill publish",
				zap.Uint64("maker_order_id", uint64(fill.MakerOrderID)),
				zap.Uint64("taker_order_id", uint64(fill.TakerOrderID)),
				zap.Error(err),
			)
		}
	})
}

func (p *Publisher) publish(fill orders.Fill) error {
	msg := fillMessage{
		MakerOrderID: uint64(fill.MakerOrderID),
		TakerOrderID: uint64(fill.TakerOrderID),
		Price:        uint64(fill.Price),
		Quantity:     uint64(fill.Quantity),
		MakerSide:    fill.MakerSide.String(),
		Symbol:       uint32(fill.Symbol),
		Timestamp:    fill.Timestamp,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrPublishFailed, "marshal fill")
	}

	wmMsg := message.NewMessage(uuid.New().String(), data)
	if err := p.publisher.Publish(p.Subject(fill.Symbol), wmMsg); err != nil {
		return apperrors.Wrap(err, apperrors.ErrPublishFailed, "publish to nats")
	}
	return nil
}

// Run drains fills off r until Stop is called, publishing each one. It is
// meant to run in its own goroutine, consuming the same output ring the
// matching core's caller feeds from committed fills.
func (p *Publisher) Run(r *ring.SPSC[orders.Fill]) {
	for {
		select {
		case <-p.done:
			return
		default:
		}
		fill, ok := r.TryConsume()
		if !ok {
			continue
		}
		if err := p.PublishFill(fill); err != nil {
			p.logger.Warn("failed to dispatch fill publish", zap.Error(err))
		}
	}
}

// Stop signals Run to return and releases the worker pool and NATS publisher.
func (p *Publisher) Stop() {
	close(p.done)
	p.pool.Release()
	p.publisher.Close()
}
