package metrics

import (
	"testing"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type fakeChain struct {
	height  idx.Block
	pending int
}

func (f *fakeChain) Height() idx.Block { return f.height }
func (f *fakeChain) PendingCount() int { return f.pending }

func TestRegistry(t *testing.T) {
	require := require.New(t)

	c := &fakeChain{height: 7, pending: 2}
	node := NewNode()
	extra := prometheus.NewCounter(prometheus.CounterOpts{Name: "extra_total", Help: "extra"})
	reg := NewRegistry(c, node, extra)

	node.Reorgs.Inc()
	node.PeerRejects.WithLabelValues("block").Inc()

	families, err := reg.Gather()
	require.NoError(err)
	values := map[string]float64{}
	for _, f := range families {
		m := f.GetMetric()[0]
		switch {
		case m.GetGauge() != nil:
			values[f.GetName()] = m.GetGauge().GetValue()
		case m.GetCounter() != nil:
			values[f.GetName()] = m.GetCounter().GetValue()
		}
	}
	require.Equal(float64(7), values["powchain_chain_height"])
	require.Equal(float64(2), values["powchain_txpool_pending"])
	require.Equal(float64(1), values["powchain_chain_reorgs_total"])
	require.Equal(float64(1), values["powchain_p2p_rejected_total"])
	require.Contains(values, "extra_total")

	c.height = 9
	require.Equal(float64(1), testutil.ToFloat64(node.Reorgs))
	families, err = reg.Gather()
	require.NoError(err)
	for _, f := range families {
		if f.GetName() == "powchain_chain_height" {
			require.Equal(float64(9), f.GetMetric()[0].GetGauge().GetValue())
		}
	}
}
