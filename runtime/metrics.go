// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "receiptvm_runtime"

// Metrics counts what the runtime applies.
type Metrics struct {
	transactions      *prometheus.CounterVec
	receipts          *prometheus.CounterVec
	gasBurnt          prometheus.Counter
	delayedQueueLen   prometheus.Gauge
	applyDuration     prometheus.Histogram
	tokensBurntInGwei prometheus.Counter
}

// NewMetrics registers the runtime metrics on [registerer].
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "transactions",
				Help:      "Number of transactions processed",
			},
			[]string{"result"},
		),
		receipts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "receipts",
				Help:      "Number of receipts by scheduling decision",
			},
			[]string{"decision"},
		),
		gasBurnt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "gas_burnt",
			Help:      "Total gas burnt",
		}),
		delayedQueueLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "delayed_receipts",
			Help:      "Length of the delayed receipt queue after the last apply",
		}),
		applyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "apply_duration_seconds",
			Help:      "Time spent applying a block",
			Buckets:   prometheus.DefBuckets,
		}),
		tokensBurntInGwei: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tx_burnt_gwei",
			Help:      "Tokens burnt by transactions and receipts, in units of 1e9",
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(m.transactions),
		registerer.Register(m.receipts),
		registerer.Register(m.gasBurnt),
		registerer.Register(m.delayedQueueLen),
		registerer.Register(m.applyDuration),
		registerer.Register(m.tokensBurntInGwei),
	)
	return m, errs.Err
}

// newNoopMetrics returns metrics that are not registered anywhere.
func newNoopMetrics() *Metrics {
	m, _ := NewMetrics(prometheus.NewRegistry())
	return m
}

func (m *Metrics) transaction(ok bool) {
	if ok {
		m.transactions.WithLabelValues("success").Inc()
	} else {
		m.transactions.WithLabelValues("invalid").Inc()
	}
}

func (m *Metrics) receipt(decision string) {
	m.receipts.WithLabelValues(decision).Inc()
}
