package integration

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rony4d/go-powchain/crypto"
	"github.com/rony4d/go-powchain/logger"
	"github.com/rony4d/go-powchain/node"
	"github.com/rony4d/go-powchain/powchain"
)

// FakeNet is a set of nodes joined on one in-process network. Node i mines
// to crypto.FakeAccount(i).
type FakeNet struct {
	Network *node.LocalNetwork
	Nodes   []*node.Node
}

// NewFakeNet builds size nodes from base. Each node gets its own
// subdirectory of base.DataDir and only the first one serves metrics.
func NewFakeNet(size int, rules powchain.Rules, base node.Config, log logger.Instance) (*FakeNet, error) {
	if size <= 0 {
		return nil, fmt.Errorf("fake network needs at least one node, got %d", size)
	}
	net := &FakeNet{Network: node.NewLocalNetwork(log.Named("network"))}
	for i := 0; i < size; i++ {
		cfg := base
		cfg.Name = fmt.Sprintf("node%d", i)
		if base.DataDir != "" {
			cfg.DataDir = filepath.Join(base.DataDir, cfg.Name)
		}
		if i > 0 {
			cfg.MetricsAddr = ""
		}
		_, cfg.Miner.Coinbase = crypto.FakeAccount(uint64(i))

		n, err := node.New(cfg, rules, crypto.Default, log)
		if err != nil {
			net.Stop()
			return nil, err
		}
		net.Nodes = append(net.Nodes, n)
		transport, err := net.Network.Join(cfg.Name, n)
		if err != nil {
			net.Stop()
			return nil, err
		}
		n.SetTransport(transport)
	}
	return net, nil
}

// Start launches the mining loop of every node. Stop reverses it.
func (f *FakeNet) Start(ctx context.Context) {
	for _, n := range f.Nodes {
		n.Start(ctx)
	}
}

// Stop stops every node and detaches it from the network.
func (f *FakeNet) Stop() error {
	var errs []error
	for _, n := range f.Nodes {
		errs = append(errs, n.Stop())
	}
	f.Network.Close()
	return errors.Join(errs...)
}
