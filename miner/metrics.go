package miner

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts the work of one miner.
type Metrics struct {
	HashesTried    prometheus.Counter
	BlocksFound    prometheus.Counter
	BlocksRejected prometheus.Counter
}

// NewMetrics creates the miner collectors, passed to NewRegistry as extras.
func NewMetrics() *Metrics {
	return &Metrics{
		HashesTried: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "powchain",
			Subsystem: "miner",
			Name:      "hashes_total",
			Help:      "Number of block hashes computed.",
		}),
		BlocksFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "powchain",
			Subsystem: "miner",
			Name:      "blocks_found_total",
			Help:      "Number of blocks that met the difficulty.",
		}),
		BlocksRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "powchain",
			Subsystem: "miner",
			Name:      "blocks_rejected_total",
			Help:      "Number of found blocks the chain refused, mostly stale.",
		}),
	}
}

// Collectors returns every metric for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.HashesTried, m.BlocksFound, m.BlocksRejected}
}
