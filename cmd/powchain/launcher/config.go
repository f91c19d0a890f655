// This file maps the CLI context and the optional TOML file onto Config.

package launcher

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/naoina/toml"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-powchain/chain"
	"github.com/rony4d/go-powchain/integration"
	"github.com/rony4d/go-powchain/inter/accountpk"
	"github.com/rony4d/go-powchain/node"
	"github.com/rony4d/go-powchain/pow"
	"github.com/rony4d/go-powchain/powchain"
	"github.com/rony4d/go-powchain/txpool"
)

// Field names are used verbatim as TOML keys and unknown keys are errors.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// MakeAllConfigs merges defaults, the optional config file, then CLI flag
// overrides. The preset named by the result is checked here and applied
// by NodeConfig.
func MakeAllConfigs(ctx *cli.Context) (Config, error) {
	cfg := DefaultConfig()

	if file := ctx.String("config"); file != "" {
		if err := loadConfigFile(file, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := applyCLIOverrides(ctx, &cfg); err != nil {
		return cfg, err
	}

	if _, err := integration.GetPresetByName(cfg.Preset); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(path + ", " + err.Error())
	}
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return nil
}

// dumpConfig writes cfg in the format loadConfigFile reads.
func dumpConfig(cfg Config) ([]byte, error) {
	return tomlSettings.Marshal(&cfg)
}

func applyCLIOverrides(ctx *cli.Context, cfg *Config) error {
	if ctx.IsSet("preset") {
		cfg.Preset = ctx.String("preset")
	}

	if ctx.IsSet("datadir") {
		cfg.Node.DataDir = resolvePath(ctx.String("datadir"))
	}
	if ctx.IsSet("identity") {
		cfg.Node.Name = ctx.String("identity")
	}
	if ctx.IsSet("nodb") {
		cfg.Node.InMemory = ctx.Bool("nodb")
	}
	if ctx.IsSet("cache") {
		cfg.Node.CacheMB = ctx.Int("cache")
	}
	if ctx.IsSet("handles") {
		cfg.Node.Handles = ctx.Int("handles")
	}

	if ctx.IsSet("log.format") {
		cfg.Logging.Format = ctx.String("log.format")
	}
	if ctx.IsSet("log.verbosity") {
		cfg.Logging.Verbosity = ctx.Int("log.verbosity")
	}
	if ctx.IsSet("log.color") {
		cfg.Logging.Color = ctx.Bool("log.color")
	}
	if ctx.IsSet("log.sentry") {
		cfg.Logging.SentryDSN = ctx.String("log.sentry")
	}

	if ctx.IsSet("network") {
		cfg.Network.Name = ctx.String("network")
	}
	if ctx.IsSet("fakenet") {
		cfg.Network.FakeNet = ctx.Int("fakenet")
	}
	if ctx.IsSet("fakenet.zeros") {
		cfg.Network.FakeZeros = ctx.Uint("fakenet.zeros")
	}

	if ctx.IsSet("txpool.accountslots") {
		cfg.TxPool.AccountSlots = ctx.Int("txpool.accountslots")
	}
	if ctx.IsSet("txpool.globalslots") {
		cfg.TxPool.GlobalSlots = ctx.Int("txpool.globalslots")
	}
	if ctx.IsSet("txpool.lifetime") {
		cfg.TxPool.Lifetime = Duration(ctx.Duration("txpool.lifetime"))
	}

	if ctx.IsSet("mine") {
		cfg.Miner.Enabled = ctx.Bool("mine")
	}
	if ctx.IsSet("miner.threads") {
		cfg.Miner.Threads = ctx.Int("miner.threads")
	}
	if ctx.IsSet("miner.coinbase") {
		pk, err := accountpk.FromString(ctx.String("miner.coinbase"))
		if err != nil {
			return fmt.Errorf("--miner.coinbase: %w", err)
		}
		cfg.Miner.Coinbase = pk
	}
	if ctx.IsSet("miner.strategy") {
		cfg.Miner.Strategy = ctx.String("miner.strategy")
	}
	if ctx.IsSet("miner.maxtxs") {
		cfg.Miner.MaxTxs = ctx.Int("miner.maxtxs")
	}

	if ctx.IsSet("metrics") {
		cfg.Metrics.Enabled = ctx.Bool("metrics")
	}
	if ctx.IsSet("metrics.addr") {
		cfg.Metrics.Addr = ctx.String("metrics.addr")
	}
	if ctx.IsSet("metrics.port") {
		cfg.Metrics.Port = ctx.Int("metrics.port")
	}
	return nil
}

// Rules returns the chain rules selected by the network settings.
func (c Config) Rules() (powchain.Rules, error) {
	rules := powchain.FakeNetRules(c.Network.FakeZeros)
	if c.Network.FakeNet <= 0 {
		var err error
		if rules, err = powchain.RulesByName(c.Network.Name); err != nil {
			return rules, err
		}
	}
	return rules, rules.Validate()
}

// NodeConfig converts c into the node's own config with the preset applied.
func (c Config) NodeConfig() (node.Config, error) {
	strategy, err := pow.ParseStrategy(c.Miner.Strategy)
	if err != nil {
		return node.Config{}, err
	}
	preset, err := integration.GetPresetByName(c.Preset)
	if err != nil {
		return node.Config{}, err
	}

	cfg := node.DefaultConfig()
	cfg.Name = c.Node.Name
	if !c.Node.InMemory {
		cfg.DataDir = c.Node.DataDir
	}
	cfg.DBCache = c.Node.CacheMB
	cfg.DBHandles = c.Node.Handles

	cfg.Chain = chain.DefaultConfig()
	cfg.Chain.TxPool = txpool.Config{
		AccountSlots: c.TxPool.AccountSlots,
		GlobalSlots:  c.TxPool.GlobalSlots,
		Lifetime:     time.Duration(c.TxPool.Lifetime),
	}

	cfg.Mine = c.Miner.Enabled
	cfg.Miner.Workers = c.Miner.Threads
	cfg.Miner.Coinbase = c.Miner.Coinbase
	cfg.Miner.Strategy = strategy
	cfg.Miner.MaxTxs = c.Miner.MaxTxs

	if c.Metrics.Enabled {
		cfg.MetricsAddr = net.JoinHostPort(c.Metrics.Addr, strconv.Itoa(c.Metrics.Port))
	}

	if c.Preset != "" {
		integration.ApplyPreset(&cfg, preset)
	}
	return cfg, nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create datadir %s: %w", dir, err)
	}
	return nil
}

func resolvePath(p string) string {
	if strings.HasPrefix(p, "~") {
		return filepath.Join(GuessHomeDir(), strings.TrimPrefix(p, "~"))
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(GuessWorkDir(), p)
}

// GuessWorkDir returns the current working directory, or "." if it cannot be found.
func GuessWorkDir() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// GuessHomeDir returns the user's home directory, or "." if it cannot be found.
func GuessHomeDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return "."
}
