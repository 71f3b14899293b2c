// Package metrics holds the Prometheus collectors of the node. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "devnet"

type Metrics struct {
	// JSON-RPC
	RPCRequestsTotal   *prometheus.CounterVec
	RPCRequestDuration *prometheus.HistogramVec
	WSConnections      prometheus.Gauge
	WSSubscriptions    *prometheus.GaugeVec

	// Chain
	BlocksMinedTotal prometheus.Counter
	TxsMinedTotal    prometheus.Counter
	HeadBlockNumber  prometheus.Gauge
	BlockGasUsed     prometheus.Histogram
	TxPoolPending    prometheus.Gauge
}

// NewMetrics creates and registers all collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	m := &Metrics{}
	m.initRPCMetrics(factory)
	m.initChainMetrics(factory)
	return m
}

func (m *Metrics) initRPCMetrics(factory promauto.Factory) {
	m.RPCRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of JSON-RPC calls by method and outcome",
		},
		[]string{"method", "status"},
	)

	m.RPCRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "Duration of JSON-RPC calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"method"},
	)

	m.WSConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "rpc",
			Name:      "ws_connections",
			Help:      "Number of open WebSocket connections",
		},
	)

	m.WSSubscriptions = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "rpc",
			Name:      "ws_subscriptions",
			Help:      "Number of active eth_subscribe subscriptions by kind",
		},
		[]string{"kind"},
	)
}

func (m *Metrics) initChainMetrics(factory promauto.Factory) {
	m.BlocksMinedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "chain",
			Name:      "blocks_mined_total",
			Help:      "Total number of mined blocks",
		},
	)

	m.TxsMinedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "chain",
			Name:      "transactions_mined_total",
			Help:      "Total number of transactions included in blocks",
		},
	)

	m.HeadBlockNumber = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "chain",
			Name:      "head_block_number",
			Help:      "Number of the current head block",
		},
	)

	m.BlockGasUsed = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "chain",
			Name:      "block_gas_used",
			Help:      "Gas used per mined block",
			Buckets:   prometheus.ExponentialBuckets(21000, 2, 12),
		},
	)

	m.TxPoolPending = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "txpool",
			Name:      "pending",
			Help:      "Number of transactions waiting in the pool",
		},
	)
}

// ObserveRPC records one JSON-RPC call.
func (m *Metrics) ObserveRPC(method string, failed bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	m.RPCRequestsTotal.WithLabelValues(method, status).Inc()
	m.RPCRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// BlockMined records a new head block.
func (m *Metrics) BlockMined(number uint64, txs int, gasUsed uint64) {
	if m == nil {
		return
	}
	m.BlocksMinedTotal.Inc()
	m.TxsMinedTotal.Add(float64(txs))
	m.HeadBlockNumber.Set(float64(number))
	m.BlockGasUsed.Observe(float64(gasUsed))
}

func (m *Metrics) SetPoolSize(n int) {
	if m == nil {
		return
	}
	m.TxPoolPending.Set(float64(n))
}

func (m *Metrics) WSConnected(delta int) {
	if m == nil {
		return
	}
	m.WSConnections.Add(float64(delta))
}

func (m *Metrics) Subscribed(kind string, delta int) {
	if m == nil {
		return
	}
	m.WSSubscriptions.WithLabelValues(kind).Add(float64(delta))
}
