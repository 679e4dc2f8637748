// Command engined runs a single-symbol matching engine behind an ingress
// SPSC ring, republishing its fills to NATS and a WebSocket dashboard feed
// while exposing an admin/stats HTTP API.
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/lobcore/internal/config"
	"github.com/abdoElHodaky/lobcore/internal/feed"
	"github.com/abdoElHodaky/lobcore/internal/matching"
	"github.com/abdoElHodaky/lobcore/internal/metrics"
	"github.com/abdoElHodaky/lobcore/internal/orders"
	"github.com/abdoElHodaky/lobcore/internal/publisher"
	"github.com/abdoElHodaky/lobcore/internal/ring"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the engine's YAML configuration")
	env := flag.String("env", "development", "deployment environment")
	flag.Parse()

	logger := newLogger(*env)
	defer logger.Sync()

	cfgMgr, err := config.NewManager(*configPath, *env, logger)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	defer cfgMgr.Close()
	cfg := cfgMgr.Get()

	if err := config.ApplyGCTuning(&cfg.GC, logger); err != nil {
		logger.Fatal("failed to apply gc tuning", zap.Error(err))
	}

	reg := metrics.New(cfg.Metrics.Namespace, logger)

	engine := matching.NewEngine(matching.Config{
		Symbol:    orders.SymbolID(cfg.Engine.Symbol),
		PoolBits:  cfg.Engine.PoolBits,
		BasePrice: orders.Price(cfg.Engine.BasePrice),
	}, logger)

	ingress := ring.New[orders.Order](1 << 16)
	fillsOut := ring.New[orders.Fill](1 << 16)

	pub, err := publisher.New(cfg.NATS.URL, publisher.Config{
		SubjectPrefix:      cfg.NATS.SubjectPrefix,
		CircuitMaxRequests: cfg.CircuitBreaker.MaxRequests,
		CircuitInterval:    int64(cfg.CircuitBreaker.Interval / time.Second),
		CircuitTimeout:     int64(cfg.CircuitBreaker.Timeout / time.Second),
		WorkerPoolSize:     cfg.WorkerPool.Size,
	}, logger)
	if err != nil {
		logger.Warn("nats publisher unavailable, fills will not be republished", zap.Error(err))
	}

	broadcaster := feed.NewBroadcaster(cfg.WebSocket.ReadBufferSize, cfg.WebSocket.WriteBufferSize, logger)

	stop := make(chan struct{})
	go runEngineLoop(engine, ingress, fillsOut, reg, logger, stop)
	go fanOutFills(fillsOut, pub, broadcaster, logger, stop)

	httpServer := newHTTPServer(cfg.HTTP.ListenAddr, engine, ingress, reg, broadcaster, logger)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server stopped", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	close(stop)
	if pub != nil {
		pub.Stop()
	}
}

func newLogger(env string) *zap.Logger {
	var logger *zap.Logger
	var err error
	if env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	return logger
}

// runEngineLoop is the engine's single consumer goroutine: it drains
// ingress, submits every order to the engine, and pushes resulting fills
// onto fillsOut. No other goroutine may touch engine.
func runEngineLoop(engine *matching.Engine, ingress *ring.SPSC[orders.Order], fillsOut *ring.SPSC[orders.Fill], reg *metrics.Registry, logger *zap.Logger, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		order, ok := ingress.TryConsume()
		if !ok {
			continue
		}

		start := time.Now()
		result := engine.SubmitOrder(order, time.Now().UnixNano())
		reg.SubmitLatency.Observe(time.Since(start).Seconds())

		recordResult(reg, result)

		for _, fill := range result.Fills {
			if !fillsOut.TryPublish(fill) {
				logger.Warn("fill output ring full, dropping fill", zap.Uint64("taker_order_id", uint64(fill.TakerOrderID)))
			}
		}

		active, capacity := engine.PoolStats()
		reg.ObservePoolStats(active, capacity)
		reg.ObserveRingStats(ingress.Available(), ingress.Capacity())
	}
}

func recordResult(reg *metrics.Registry, result matching.Result) {
	var kind string
	switch result.Kind {
	case matching.Filled:
		kind = "filled"
	case matching.PartialFill:
		kind = "partial_fill"
	case matching.Resting:
		kind = "resting"
	case matching.Cancelled:
		kind = "cancelled"
	case matching.Rejected:
		kind = "rejected"
		reg.Rejections.WithLabelValues(result.Reason.String()).Inc()
	}
	reg.OrdersSubmitted.WithLabelValues(kind).Inc()
	reg.FillsExecuted.Add(float64(len(result.Fills)))
	for _, fill := range result.Fills {
		reg.FillQuantity.Add(float64(fill.Quantity))
	}
}

// fanOutFills drains fillsOut and republishes every fill to NATS and the
// WebSocket broadcaster.
func fanOutFills(fillsOut *ring.SPSC[orders.Fill], pub *publisher.Publisher, broadcaster *feed.Broadcaster, logger *zap.Logger, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		fill, ok := fillsOut.TryConsume()
		if !ok {
			continue
		}
		if pub != nil {
			if err := pub.PublishFill(fill); err != nil {
				logger.Warn("failed to publish fill", zap.Error(err))
			}
		}
		broadcaster.BroadcastFill(fill)
	}
}

func newHTTPServer(addr string, engine *matching.Engine, ingress *ring.SPSC[orders.Order], reg *metrics.Registry, broadcaster *feed.Broadcaster, logger *zap.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/stats", func(c *gin.Context) {
		active, capacity := engine.PoolStats()
		c.JSON(http.StatusOK, gin.H{
			"pool_active":     active,
			"pool_capacity":   capacity,
			"ring_available":  ingress.Available(),
			"ring_capacity":   ingress.Capacity(),
			"ws_client_count": broadcaster.ClientCount(),
		})
	})

	router.POST("/orders", func(c *gin.Context) {
		var req orderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		requestID := uuid.New().String()
		order := req.toOrder(engine)
		if !ingress.TryPublish(order) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingress ring full", "request_id": requestID})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"request_id": requestID})
	})

	router.GET("/ws", gin.WrapF(broadcaster.ServeHTTP))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg.Gatherer(), promhttp.HandlerOpts{})))

	return &http.Server{Addr: addr, Handler: router}
}

// orderRequest is the JSON body accepted by POST /orders.
type orderRequest struct {
	ID       uint64 `json:"id" binding:"required"`
	Side     string `json:"side" binding:"required"`
	Type     string `json:"type"`
	Price    uint64 `json:"price"`
	Quantity uint64 `json:"quantity" binding:"required"`
}

func (r orderRequest) toOrder(engine *matching.Engine) orders.Order {
	side := orders.Buy
	if r.Side == "sell" {
		side = orders.Sell
	}

	orderType := orders.Limit
	switch r.Type {
	case "ioc":
		orderType = orders.IOC
	case "fok":
		orderType = orders.FOK
	case "post_only":
		orderType = orders.PostOnly
	}

	return orders.Order{
		ID:           orders.OrderID(r.ID),
		Side:         side,
		Type:         orderType,
		Price:        orders.Price(r.Price),
		RemainingQty: orders.Quantity(r.Quantity),
	}
}
