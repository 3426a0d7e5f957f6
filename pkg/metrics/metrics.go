// Package metrics exposes Prometheus collectors for the swap engine and faucet.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tempo_swap"

// EngineMetrics groups the collectors shared by the engine components
type EngineMetrics struct {
	quotes       *prometheus.CounterVec
	quoteLatency *prometheus.HistogramVec
	approvals    *prometheus.CounterVec
	swaps        *prometheus.CounterVec
	settlements  *prometheus.CounterVec
	rpcCalls     *prometheus.CounterVec
	faucet       *prometheus.CounterVec
	faucetShared prometheus.Counter
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *EngineMetrics
)

// Engine returns the process-wide collectors, registering them on first use
func Engine() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "quote",
				Name:      "requests_total",
				Help:      "Venue quote requests by mode and result.",
			}, []string{"mode", "result"}),
			quoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "quote",
				Name:      "latency_seconds",
				Help:      "Latency of venue quote requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"mode"}),
			approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "allowance",
				Name:      "approvals_total",
				Help:      "Approval transactions by outcome.",
			}, []string{"outcome"}),
			swaps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "swap",
				Name:      "submissions_total",
				Help:      "Swap submissions by mode and outcome.",
			}, []string{"mode", "outcome"}),
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "swap",
				Name:      "settlements_total",
				Help:      "Finalized swap receipts by status.",
			}, []string{"status"}),
			rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "chain",
				Name:      "rpc_calls_total",
				Help:      "JSON-RPC calls issued to the node by method and result.",
			}, []string{"method", "result"}),
			faucet: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "faucet",
				Name:      "requests_total",
				Help:      "Faucet funding requests by outcome.",
			}, []string{"outcome"}),
			faucetShared: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "faucet",
				Name:      "coalesced_total",
				Help:      "Faucet requests that joined an in-flight funding call.",
			}),
		}
		prometheus.MustRegister(
			engineRegistry.quotes,
			engineRegistry.quoteLatency,
			engineRegistry.approvals,
			engineRegistry.swaps,
			engineRegistry.settlements,
			engineRegistry.rpcCalls,
			engineRegistry.faucet,
			engineRegistry.faucetShared,
		)
	})
	return engineRegistry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveQuote records one venue quote
func (m *EngineMetrics) ObserveQuote(mode string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.quotes.WithLabelValues(mode, result(err)).Inc()
	m.quoteLatency.WithLabelValues(mode).Observe(time.Since(started).Seconds())
}

// ObserveApproval records an approval outcome: skipped, confirmed, failed
func (m *EngineMetrics) ObserveApproval(outcome string) {
	if m == nil {
		return
	}
	m.approvals.WithLabelValues(outcome).Inc()
}

// ObserveSwap records a submission outcome
func (m *EngineMetrics) ObserveSwap(mode, outcome string) {
	if m == nil {
		return
	}
	m.swaps.WithLabelValues(mode, outcome).Inc()
}

// ObserveSettlement records a finalized swap receipt
func (m *EngineMetrics) ObserveSettlement(status string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(status).Inc()
}

// ObserveRPC records one node call
func (m *EngineMetrics) ObserveRPC(method string, err error) {
	if m == nil {
		return
	}
	m.rpcCalls.WithLabelValues(method, result(err)).Inc()
}

// ObserveFaucet records a faucet request; shared marks a coalesced caller
func (m *EngineMetrics) ObserveFaucet(err error, shared bool) {
	if m == nil {
		return
	}
	m.faucet.WithLabelValues(result(err)).Inc()
	if shared {
		m.faucetShared.Inc()
	}
}
