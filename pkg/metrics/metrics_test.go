package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestEngineIsSingleton(t *testing.T) {
	assert.Same(t, Engine(), Engine())
}

func TestObserveCounters(t *testing.T) {
	m := Engine()

	before := testutil.ToFloat64(m.swaps.WithLabelValues("sell", "submitted"))
	m.ObserveSwap("sell", "submitted")
	assert.Equal(t, before+1, testutil.ToFloat64(m.swaps.WithLabelValues("sell", "submitted")))

	errBefore := testutil.ToFloat64(m.quotes.WithLabelValues("buy", "error"))
	m.ObserveQuote("buy", time.Now(), errors.New("reverted"))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(m.quotes.WithLabelValues("buy", "error")))

	sharedBefore := testutil.ToFloat64(m.faucetShared)
	m.ObserveFaucet(nil, true)
	assert.Equal(t, sharedBefore+1, testutil.ToFloat64(m.faucetShared))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *EngineMetrics
	assert.NotPanics(t, func() {
		m.ObserveSwap("sell", "submitted")
		m.ObserveRPC("eth_call", nil)
		m.ObserveFaucet(nil, false)
	})
}
