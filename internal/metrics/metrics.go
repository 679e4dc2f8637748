// Package metrics exposes Prometheus instrumentation for the engine and its
// ambient collaborators. It never touches the engine's hot path directly;
// the caller (the ring consumer loop) is responsible for calling these
// methods once per submission outside of Engine.SubmitOrder itself.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Registry bundles the collectors this service reports, registered against
// a dedicated prometheus.Registry rather than the global default so tests
// can construct independent instances without collisions.
type Registry struct {
	registry *prometheus.Registry
	logger   *zap.Logger

	OrdersSubmitted *prometheus.CounterVec
	FillsExecuted   prometheus.Counter
	FillQuantity    prometheus.Counter
	Rejections      *prometheus.CounterVec
	PoolActive      prometheus.Gauge
	PoolCapacity    prometheus.Gauge
	RingAvailable   prometheus.Gauge
	RingCapacity    prometheus.Gauge
	SubmitLatency   prometheus.Histogram
}

// New constructs a Registry with collectors namespaced under namespace. A
// nil logger is replaced with zap.NewNop().
func New(namespace string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		logger:   logger,
		OrdersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_submitted_total",
			Help:      "Orders submitted to the matching engine, by result kind.",
		}, []string{"kind"}),
		FillsExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fills_executed_total",
			Help:      "Total number of maker/taker fills executed.",
		}),
		FillQuantity: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fill_quantity_total",
			Help:      "Total base-unit quantity executed across all fills.",
		}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_rejections_total",
			Help:      "Order rejections, by reason.",
		}, []string{"reason"}),
		PoolActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_active_orders",
			Help:      "Currently allocated order pool slots.",
		}),
		PoolCapacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_capacity",
			Help:      "Total order pool capacity.",
		}),
		RingAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ring_available_items",
			Help:      "Items currently queued in the ingress SPSC ring.",
		}),
		RingCapacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ring_capacity",
			Help:      "Capacity of the ingress SPSC ring.",
		}),
		SubmitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submit_order_seconds",
			Help:      "Wall-clock latency of a single SubmitOrder call.",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 2, 20),
		}),
	}

	reg.MustRegister(
		r.OrdersSubmitted,
		r.FillsExecuted,
		r.FillQuantity,
		r.Rejections,
		r.PoolActive,
		r.PoolCapacity,
		r.RingAvailable,
		r.RingCapacity,
		r.SubmitLatency,
	)

	logger.Info("metrics registry initialized", zap.String("namespace", namespace))

	return r
}

// Gatherer exposes the underlying registry for an HTTP metrics handler.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// ObservePoolStats records the current pool occupancy.
func (r *Registry) ObservePoolStats(active, capacity int) {
	r.PoolActive.Set(float64(active))
	r.PoolCapacity.Set(float64(capacity))
}

// ObserveRingStats records the current ingress ring occupancy.
func (r *Registry) ObserveRingStats(available, capacity int) {
	r.RingAvailable.Set(float64(available))
	r.RingCapacity.Set(float64(capacity))
}
