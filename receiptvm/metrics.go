// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package receiptvm

import (
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "receiptvm"

type metrics struct {
	blocks      prometheus.Counter
	height      prometheus.Gauge
	mempoolSize prometheus.Gauge
	rejectedTxs prometheus.Counter
}

func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		blocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "blocks_produced",
			Help:      "Number of blocks produced",
		}),
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "height",
			Help:      "Height of the last accepted block",
		}),
		mempoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "mempool_size",
			Help:      "Number of transactions waiting in the mempool",
		}),
		rejectedTxs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rejected_txs",
			Help:      "Number of transactions dropped before inclusion",
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(m.blocks),
		registerer.Register(m.height),
		registerer.Register(m.mempoolSize),
		registerer.Register(m.rejectedTxs),
	)
	return m, errs.Err
}
