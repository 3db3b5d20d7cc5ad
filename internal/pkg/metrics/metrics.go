package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// BalanceSyncs counts balance synchronizations by outcome (ok, unchanged, reset, skipped, error).
	BalanceSyncs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tg_wallet",
		Name:      "balance_syncs_total",
		Help:      "Balance synchronizations by outcome.",
	}, []string{"outcome"})

	// Transactions counts submitted flows by direction and final state.
	Transactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tg_wallet",
		Name:      "transactions_total",
		Help:      "Transaction flows by direction and outcome.",
	}, []string{"direction", "outcome"})

	// ConfirmationSeconds observes the time between send and receipt.
	ConfirmationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tg_wallet",
		Name:      "confirmation_seconds",
		Help:      "Time spent waiting for transaction confirmation.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"direction"})

	// RPCCalls counts read-only contract calls by chain and result.
	RPCCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tg_wallet",
		Name:      "rpc_calls_total",
		Help:      "Read-only contract calls by chain and result.",
	}, []string{"chain", "result"})

	registerOnce sync.Once
)

// MustRegisterMetrics registers all collectors with the default registry once.
func MustRegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(BalanceSyncs, Transactions, ConfirmationSeconds, RPCCalls)
	})
}
