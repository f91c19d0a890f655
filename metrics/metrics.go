// Package metrics exposes node statistics to prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rony4d/go-powchain/logger"
)

// Chain is the part of the chain manager the gauges read.
type Chain interface {
	Height() idx.Block
	PendingCount() int
}

// Node counts events seen by a node.
type Node struct {
	BlocksAccepted prometheus.Counter
	Reorgs         prometheus.Counter
	PeerRejects    *prometheus.CounterVec
}

// NewNode creates the per-node collectors. NewRegistry registers them.
func NewNode() *Node {
	return &Node{
		BlocksAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "powchain",
			Subsystem: "chain",
			Name:      "blocks_accepted_total",
			Help:      "Number of blocks that became canonical.",
		}),
		Reorgs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "powchain",
			Subsystem: "chain",
			Name:      "reorgs_total",
			Help:      "Number of times canonical blocks were replaced.",
		}),
		PeerRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "powchain",
			Subsystem: "p2p",
			Name:      "rejected_total",
			Help:      "Peer messages refused by validation, by kind.",
		}, []string{"kind"}),
	}
}

// NewRegistry builds a registry with the chain gauges, the node counters
// and any extra collectors.
func NewRegistry(c Chain, node *Node, extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "powchain",
			Subsystem: "chain",
			Name:      "height",
			Help:      "Height of the canonical tip.",
		},
		func() float64 {
			return float64(c.Height())
		}))
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "powchain",
			Subsystem: "txpool",
			Name:      "pending",
			Help:      "Number of pooled transfers.",
		},
		func() float64 {
			return float64(c.PendingCount())
		}))
	reg.MustRegister(node.BlocksAccepted, node.Reorgs, node.PeerRejects)
	reg.MustRegister(extra...)
	return reg
}

// Serve answers /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, log logger.Instance) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Log.WithField("addr", addr).Info("Metrics server started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
