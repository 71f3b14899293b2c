package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveRPC("eth_chainId", false, time.Millisecond)
	m.ObserveRPC("eth_chainId", false, time.Millisecond)
	m.ObserveRPC("eth_call", true, time.Millisecond)
	assert.InDelta(t, 2, testutil.ToFloat64(m.RPCRequestsTotal.WithLabelValues("eth_chainId", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RPCRequestsTotal.WithLabelValues("eth_call", "error")), 0)

	m.BlockMined(3, 2, 42000)
	assert.InDelta(t, 1, testutil.ToFloat64(m.BlocksMinedTotal), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.TxsMinedTotal), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.HeadBlockNumber), 0)

	m.SetPoolSize(5)
	assert.InDelta(t, 5, testutil.ToFloat64(m.TxPoolPending), 0)

	m.WSConnected(1)
	m.Subscribed("newHeads", 1)
	assert.InDelta(t, 1, testutil.ToFloat64(m.WSConnections), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.WSSubscriptions.WithLabelValues("newHeads")), 0)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRPC("x", false, 0)
		m.BlockMined(1, 1, 1)
		m.SetPoolSize(1)
		m.WSConnected(1)
		m.Subscribed("newHeads", 1)
	})
}
