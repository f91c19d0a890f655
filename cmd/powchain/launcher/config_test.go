package launcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-powchain/crypto"
	"github.com/rony4d/go-powchain/flags"
	"github.com/rony4d/go-powchain/integration"
	"github.com/rony4d/go-powchain/pow"
	"github.com/rony4d/go-powchain/powchain"
)

// runConfigFromArgs runs MakeAllConfigs with a synthetic CLI context.
func runConfigFromArgs(t *testing.T, args []string) (Config, error) {
	t.Helper()

	app := cli.NewApp()
	app.HideHelp = true
	app.HideVersion = true
	app.Flags = flags.Merge(
		flags.CommonFlags(),
		flags.NetworkFlags(),
		flags.NodeFlags(),
		flags.TxPoolFlags(),
		flags.MinerFlags(),
	)

	var (
		got     Config
		makeErr error
	)
	app.Action = func(c *cli.Context) error {
		got, makeErr = MakeAllConfigs(c)
		return nil
	}
	require.NoError(t, app.Run(append([]string{"powchain"}, args...)))
	return got, makeErr
}

func TestMakeAllConfigsFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	_, alice := crypto.FakeAccount(7)

	tests := []struct {
		name string
		args []string
		want func(*require.Assertions, Config)
	}{
		{
			name: "defaults",
			want: func(require *require.Assertions, cfg Config) {
				require.Equal(DefaultConfig(), cfg)
			},
		},
		{
			name: "datadir and identity",
			args: []string{"--datadir", dir, "--identity", "alpha", "--cache", "32", "--handles", "16"},
			want: func(require *require.Assertions, cfg Config) {
				require.Equal(dir, cfg.Node.DataDir)
				require.Equal("alpha", cfg.Node.Name)
				require.Equal(32, cfg.Node.CacheMB)
				require.Equal(16, cfg.Node.Handles)
				require.False(cfg.Node.InMemory)
			},
		},
		{
			name: "relative datadir",
			args: []string{"--datadir", "chain", "--nodb"},
			want: func(require *require.Assertions, cfg Config) {
				require.Equal(filepath.Join(GuessWorkDir(), "chain"), cfg.Node.DataDir)
				require.True(cfg.Node.InMemory)
			},
		},
		{
			name: "logging",
			args: []string{"--log.format", "json", "--log.verbosity", "5", "--log.color", "--log.sentry", "https://key@sentry.example/1"},
			want: func(require *require.Assertions, cfg Config) {
				require.Equal("json", cfg.Logging.Format)
				require.Equal(5, cfg.Logging.Verbosity)
				require.True(cfg.Logging.Color)
				require.Equal("https://key@sentry.example/1", cfg.Logging.SentryDSN)
			},
		},
		{
			name: "fake network",
			args: []string{"--fakenet", "3", "--fakenet.zeros", "6"},
			want: func(require *require.Assertions, cfg Config) {
				require.Equal(3, cfg.Network.FakeNet)
				require.Equal(uint(6), cfg.Network.FakeZeros)
			},
		},
		{
			name: "txpool",
			args: []string{"--txpool.accountslots", "4", "--txpool.globalslots", "40", "--txpool.lifetime", "90s"},
			want: func(require *require.Assertions, cfg Config) {
				require.Equal(4, cfg.TxPool.AccountSlots)
				require.Equal(40, cfg.TxPool.GlobalSlots)
				require.Equal(Duration(90*time.Second), cfg.TxPool.Lifetime)
			},
		},
		{
			name: "miner",
			args: []string{"--mine", "--miner.threads", "4", "--miner.coinbase", alice.String(), "--miner.strategy", "random", "--miner.maxtxs", "3"},
			want: func(require *require.Assertions, cfg Config) {
				require.True(cfg.Miner.Enabled)
				require.Equal(4, cfg.Miner.Threads)
				require.Equal(alice, cfg.Miner.Coinbase)
				require.Equal("random", cfg.Miner.Strategy)
				require.Equal(3, cfg.Miner.MaxTxs)
			},
		},
		{
			name: "metrics and preset",
			args: []string{"--metrics", "--metrics.addr", "0.0.0.0", "--metrics.port", "9100", "--preset", "lite"},
			want: func(require *require.Assertions, cfg Config) {
				require.True(cfg.Metrics.Enabled)
				require.Equal("0.0.0.0", cfg.Metrics.Addr)
				require.Equal(9100, cfg.Metrics.Port)
				require.Equal("lite", cfg.Preset)
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg, err := runConfigFromArgs(t, test.args)
			require.NoError(t, err)
			test.want(require.New(t), cfg)
		})
	}
}

func TestMakeAllConfigsErrors(t *testing.T) {
	for name, args := range map[string][]string{
		"bad coinbase":   {"--miner.coinbase", "0x1234"},
		"unknown preset": {"--preset", "archive"},
		"missing file":   {"--config", filepath.Join(t.TempDir(), "absent.toml")},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := runConfigFromArgs(t, args)
			require.Error(t, err)
		})
	}
}

func TestConfigFile(t *testing.T) {
	require := require.New(t)

	file := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(os.WriteFile(file, []byte(`
Preset = "full"

[Node]
Name = "from-file"
CacheMB = 128

[Network]
Name = "test"

[TxPool]
Lifetime = "10m0s"

[Miner]
Enabled = true
Threads = 2
`), 0o644))

	// flags win over the file
	cfg, err := runConfigFromArgs(t, []string{"--config", file, "--miner.threads", "3"})
	require.NoError(err)
	require.Equal("from-file", cfg.Node.Name)
	require.Equal(128, cfg.Node.CacheMB)
	require.Equal(DefaultConfig().Node.Handles, cfg.Node.Handles)
	require.Equal("test", cfg.Network.Name)
	require.Equal(Duration(10*time.Minute), cfg.TxPool.Lifetime)
	require.True(cfg.Miner.Enabled)
	require.Equal(3, cfg.Miner.Threads)
	require.Equal("full", cfg.Preset)
}

func TestConfigFileUnknownField(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(file, []byte("[Node]\nListenPort = 5050\n"), 0o644))

	_, err := runConfigFromArgs(t, []string{"--config", file})
	require.ErrorContains(t, err, "ListenPort")
}

func TestDumpConfigRoundTrip(t *testing.T) {
	require := require.New(t)

	want := DefaultConfig()
	want.Node.Name = "dumped"
	want.Miner.Enabled = true
	_, want.Miner.Coinbase = crypto.FakeAccount(3)
	want.TxPool.Lifetime = Duration(42 * time.Second)

	out, err := dumpConfig(want)
	require.NoError(err)
	file := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(os.WriteFile(file, out, 0o644))

	got := DefaultConfig()
	require.NoError(loadConfigFile(file, &got))
	require.Equal(want, got)
}

func TestRules(t *testing.T) {
	require := require.New(t)

	cfg := DefaultConfig()
	rules, err := cfg.Rules()
	require.NoError(err)
	require.Equal(powchain.MainNetRules(), rules)

	cfg.Network.Name = "test"
	rules, err = cfg.Rules()
	require.NoError(err)
	require.Equal(powchain.TestNetRules(), rules)

	cfg.Network.FakeNet = 2
	cfg.Network.FakeZeros = 3
	rules, err = cfg.Rules()
	require.NoError(err)
	require.Equal(powchain.FakeNetRules(3), rules)

	cfg.Network.FakeZeros = powchain.MaxMinZeros + 1
	_, err = cfg.Rules()
	require.Error(err)

	cfg = DefaultConfig()
	cfg.Network.Name = "moon"
	_, err = cfg.Rules()
	require.Error(err)
}

func TestNodeConfig(t *testing.T) {
	require := require.New(t)

	cfg := DefaultConfig()
	cfg.Node.Name = "n"
	cfg.Miner.Enabled = true
	cfg.Miner.Threads = 2
	cfg.Miner.Strategy = "random"
	cfg.TxPool.AccountSlots = 5
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = 9100

	got, err := cfg.NodeConfig()
	require.NoError(err)
	require.Equal("n", got.Name)
	require.Equal(cfg.Node.DataDir, got.DataDir)
	require.True(got.Mine)
	require.Equal(2, got.Miner.Workers)
	require.Equal(pow.Random, got.Miner.Strategy)
	require.Equal(5, got.Chain.TxPool.AccountSlots)
	require.Equal(time.Duration(cfg.TxPool.Lifetime), got.Chain.TxPool.Lifetime)
	require.Equal("127.0.0.1:9100", got.MetricsAddr)

	// the preset is applied last
	cfg.Preset = "lite"
	got, err = cfg.NodeConfig()
	require.NoError(err)
	require.Empty(got.DataDir)
	require.Equal(integration.LitePreset().CacheMB, got.DBCache)
	require.Equal("127.0.0.1:9100", got.MetricsAddr)

	cfg.Miner.Strategy = "guess"
	_, err = cfg.NodeConfig()
	require.Error(err)
}
