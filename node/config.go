package node

import (
	"github.com/rony4d/go-powchain/chain"
	"github.com/rony4d/go-powchain/miner"
)

// Config of a node.
type Config struct {
	// Name tags logs and identifies the node on a network.
	Name string
	// DataDir holds the chain database. Empty keeps the chain in memory.
	DataDir   string
	DBCache   int
	DBHandles int

	Chain chain.Config

	Mine  bool
	Miner miner.Config

	// MetricsAddr serves prometheus metrics when non-empty.
	MetricsAddr string
}

// DefaultConfig returns the node config with default chain and miner settings.
func DefaultConfig() Config {
	return Config{
		Name:      "powchain",
		DBCache:   64,
		DBHandles: 64,
		Chain:     chain.DefaultConfig(),
		Miner:     miner.DefaultConfig(),
	}
}
