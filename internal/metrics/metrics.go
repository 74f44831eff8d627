// Package metrics exposes Prometheus collectors for the position manager.
package metrics

import (
	"math/big"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elys-network/clpm/internal/types"
)

const defaultNamespace = "clpm"

// Collectors holds all Prometheus metrics for the manager. It implements manager.Observer.
type Collectors struct {
	registry *prometheus.Registry

	// Lifecycle metrics
	OperationsTotal      *prometheus.CounterVec
	OperationDuration    *prometheus.HistogramVec
	ReentrancyRejections prometheus.Counter

	// Fee metrics
	FeesUSDTotal *prometheus.CounterVec

	// Position metrics
	PositionActive    prometheus.Gauge
	PositionLiquidity prometheus.Gauge
	PositionTickLower prometheus.Gauge
	PositionTickUpper prometheus.Gauge
}

// New creates collectors registered on a fresh registry, together with the Go and process collectors.
func New(namespace string) *Collectors {
	if namespace == "" {
		namespace = defaultNamespace
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collectors{
		registry: reg,

		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "operations_total",
			Help:      "Total number of lifecycle operations by type and result",
		}, []string{"op", "result"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "operation_duration_seconds",
			Help:      "Lifecycle operation duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"op"}),
		ReentrancyRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "reentrancy_rejected_total",
			Help:      "Total number of calls rejected because another operation was in flight",
		}),

		FeesUSDTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fees",
			Name:      "realized_usd_total",
			Help:      "Realized fee value in USD by source",
		}, []string{"source"}),

		PositionActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "active",
			Help:      "1 while a position is held, 0 otherwise",
		}),
		PositionLiquidity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "liquidity",
			Help:      "Liquidity of the held position",
		}),
		PositionTickLower: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "tick_lower",
			Help:      "Lower tick of the held position",
		}),
		PositionTickUpper: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "tick_upper",
			Help:      "Upper tick of the held position",
		}),
	}
}

// Registry returns the registry the collectors are registered on.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collectors) OperationCompleted(op types.OperationType, success bool, elapsed time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.OperationsTotal.WithLabelValues(string(op), result).Inc()
	c.OperationDuration.WithLabelValues(string(op)).Observe(elapsed.Seconds())
}

func (c *Collectors) FeesRealized(source types.FeeSource, usdValue float64) {
	if usdValue <= 0 {
		return
	}
	c.FeesUSDTotal.WithLabelValues(string(source)).Add(usdValue)
}

func (c *Collectors) PositionChanged(pos types.Position) {
	if !pos.IsActive() {
		c.PositionActive.Set(0)
		c.PositionLiquidity.Set(0)
		c.PositionTickLower.Set(0)
		c.PositionTickUpper.Set(0)
		return
	}
	c.PositionActive.Set(1)
	c.PositionTickLower.Set(float64(pos.TickLower))
	c.PositionTickUpper.Set(float64(pos.TickUpper))
	if !pos.Liquidity.IsNil() {
		f, _ := new(big.Float).SetInt(pos.Liquidity.BigInt()).Float64()
		c.PositionLiquidity.Set(f)
	}
}

func (c *Collectors) ReentrancyRejected() {
	c.ReentrancyRejections.Inc()
}
