package launcher

import (
	"path/filepath"
	"time"

	"github.com/rony4d/go-powchain/inter/accountpk"
	"github.com/rony4d/go-powchain/logger"
	"github.com/rony4d/go-powchain/pow"
	"github.com/rony4d/go-powchain/powchain"
	"github.com/rony4d/go-powchain/txpool"
)

// Config aggregates every subsystem's configuration the launcher needs. It
// is also the layout of the --config TOML file.
type Config struct {
	Node    NodeConfig
	Logging logger.Config
	Network NetworkConfig
	TxPool  TxPoolConfig
	Miner   MinerConfig
	Metrics MetricsConfig
	// Preset is applied on top of everything else.
	Preset string
}

// NodeConfig captures the local node settings.
type NodeConfig struct {
	Name     string //	Identity shown in logs and used as the peer id on a fake network.
	DataDir  string //	Filesystem root of the chain database. On a fake network every node gets a subdirectory.
	InMemory bool   //	Keep the chain in memory only; nothing survives a restart.
	CacheMB  int    //	Megabytes of leveldb cache.
	Handles  int    //	Open file handles allowed to leveldb.
}

// NetworkConfig selects the chain rules.
type NetworkConfig struct {
	Name      string //	main, test or fake. Nodes only accept blocks built under the same rules.
	FakeNet   int    //	When positive, runs that many in-process nodes on fake rules; overrides Name.
	FakeZeros uint   //	Leading zero hex digits the fake rules demand from block hashes.
}

// TxPoolConfig is the [TxPool] section of the config file.
type TxPoolConfig struct {
	AccountSlots int      //	Pending transactions allowed per sender.
	GlobalSlots  int      //	Pending transactions allowed in total.
	Lifetime     Duration //	How long a transaction may stay pending; 0 disables expiry.
}

// MinerConfig is the [Miner] section of the config file.
type MinerConfig struct {
	Enabled  bool             //	Start mining with the node.
	Threads  int              //	Concurrent nonce search workers, each scanning its own residue class.
	Coinbase accountpk.PubKey //	Reward recipient. Ignored on a fake network where node i mines to fake account i.
	Strategy string           //	increment or random starting nonce per round.
	MaxTxs   int              //	Transfers per candidate block; negative uses the network limit.
}

// MetricsConfig is the [Metrics] section of the config file.
type MetricsConfig struct {
	Enabled bool   //	Serve prometheus metrics on Addr:Port under /metrics.
	Addr    string //	Interface the metrics server binds to.
	Port    int    //	TCP port of the metrics server.
}

// Duration is a time.Duration written as "3h0m0s" in TOML.
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(input []byte) error {
	v, err := time.ParseDuration(string(input))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// DefaultConfig returns the baseline before the config file, flags and
// preset are applied.
func DefaultConfig() Config {
	pool := txpool.DefaultConfig()
	return Config{
		Node: NodeConfig{
			Name:    "powchain",
			DataDir: filepath.Join(GuessHomeDir(), ".powchain"),
			CacheMB: 64,
			Handles: 64,
		},
		Logging: logger.DefaultConfig(),
		Network: NetworkConfig{
			Name:      "main",
			FakeZeros: powchain.DefaultFakeMinZeros,
		},
		TxPool: TxPoolConfig{
			AccountSlots: pool.AccountSlots,
			GlobalSlots:  pool.GlobalSlots,
			Lifetime:     Duration(pool.Lifetime),
		},
		Miner: MinerConfig{
			Threads:  1,
			Strategy: pow.Increment.String(),
			MaxTxs:   -1,
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1",
			Port: 6060,
		},
	}
}
