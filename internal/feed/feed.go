// Package feed fans the matching engine's fill stream out to connected
// WebSocket clients as JSON trade ticks, supplementing the NATS publisher
// with a transport browser-based dashboards can consume directly.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/lobcore/internal/orders"
)

// Trade is the JSON shape broadcast to every connected client for one fill.
type Trade struct {
	Symbol    uint32 `json:"symbol"`
	Price     uint64 `json:"price"`
	Quantity  uint64 `json:"quantity"`
	Side      string `json:"side"`
	Timestamp int64  `json:"timestamp"`
}

// Broadcaster accepts WebSocket upgrades and fans out Trade messages to
// every currently connected client. A slow or disconnected client is
// dropped rather than allowed to block the broadcast of new fills.
type Broadcaster struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan Trade
}

// NewBroadcaster constructs a Broadcaster with the given read/write buffer
// sizes. A nil logger is replaced with zap.NewNop().
func NewBroadcaster(readBufferSize, writeBufferSize int, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: writeBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*websocket.Conn]chan Trade),
	}
}

// ServeHTTP upgrades the connection and registers it as a broadcast
// recipient until it disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	outbox := make(chan Trade, 256)
	b.mu.Lock()
	b.clients[conn] = outbox
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.clients, conn)
		b.mu.Unlock()
		conn.Close()
	}()

	for trade := range outbox {
		if err := conn.WriteJSON(trade); err != nil {
			return
		}
	}
}

// BroadcastFill converts fill to a Trade and enqueues it for every
// connected client. A client whose outbox is full is dropped rather than
// allowed to backpressure the broadcast.
func (b *Broadcaster) BroadcastFill(fill orders.Fill) {
	trade := Trade{
		Symbol:    uint32(fill.Symbol),
		Price:     uint64(fill.Price),
		Quantity:  uint64(fill.Quantity),
		Side:      fill.MakerSide.Opposite().String(),
		Timestamp: fill.Timestamp,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for conn, outbox := range b.clients {
		select {
		case outbox <- trade:
		default:
			b.logger.Warn("dropping slow websocket client")
			delete(b.clients, conn)
			close(outbox)
			conn.Close()
		}
	}
}

// ClientCount returns the number of currently connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}
