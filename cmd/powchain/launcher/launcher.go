package launcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-powchain/chainstore"
	"github.com/rony4d/go-powchain/crypto"
	"github.com/rony4d/go-powchain/flags"
	"github.com/rony4d/go-powchain/integration"
	"github.com/rony4d/go-powchain/logger"
	"github.com/rony4d/go-powchain/node"
)

var app = flags.NewApp("proof of work ledger node")

func init() {
	nodeFlags := flags.Merge(
		flags.CommonFlags(),
		flags.NetworkFlags(),
		flags.NodeFlags(),
		flags.TxPoolFlags(),
		flags.MinerFlags(),
	)
	app.Flags = nodeFlags
	app.Action = run
	app.Commands = []cli.Command{
		{
			Name:   "dumpchain",
			Usage:  "Print the stored canonical chain as JSON",
			Flags:  nodeFlags,
			Action: dumpChain,
		},
		{
			Name:   "dumpconfig",
			Usage:  "Print the merged configuration as TOML",
			Flags:  nodeFlags,
			Action: dumpConfigAction,
		},
	}
}

// Launch runs the CLI with the given os.Args style arguments.
func Launch(args []string) error {
	return app.Run(args)
}

func makeLogger(cfg Config) (logger.Instance, error) {
	base, err := logger.New(cfg.Logging)
	if err != nil {
		return logger.Instance{}, err
	}
	return logger.MakeInstance(base, "powchain"), nil
}

// run starts a node, or a whole fake network, and blocks until SIGINT or
// SIGTERM.
func run(ctx *cli.Context) error {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}
	log, err := makeLogger(cfg)
	if err != nil {
		return err
	}
	rules, err := cfg.Rules()
	if err != nil {
		return err
	}
	nodeCfg, err := cfg.NodeConfig()
	if err != nil {
		return err
	}
	if nodeCfg.DataDir != "" {
		if err := ensureDir(nodeCfg.DataDir); err != nil {
			return err
		}
	}
	log.Log.WithField("network", rules.Name).WithField("zeros", rules.Mining.MinZeros).Info("Starting")

	sigctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if size := cfg.Network.FakeNet; size > 0 {
		fake, err := integration.NewFakeNet(size, rules, nodeCfg, log)
		if err != nil {
			return err
		}
		fake.Start(sigctx)
		<-sigctx.Done()
		return fake.Stop()
	}

	n, err := node.New(nodeCfg, rules, crypto.Default, log)
	if err != nil {
		return err
	}
	n.Start(sigctx)
	<-sigctx.Done()
	return n.Stop()
}

func dumpChain(ctx *cli.Context) error {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}
	if cfg.Node.InMemory {
		return fmt.Errorf("nothing to dump from an in-memory chain")
	}
	log, err := makeLogger(cfg)
	if err != nil {
		return err
	}
	store, err := chainstore.OpenLevelDB(cfg.Node.DataDir, cfg.Node.CacheMB, cfg.Node.Handles, log.Named("store"))
	if err != nil {
		return err
	}
	defer store.Close()

	blocks, err := store.Load()
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(blocks, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(ctx.App.Writer, string(out))
	return err
}

func dumpConfigAction(ctx *cli.Context) error {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}
	out, err := dumpConfig(cfg)
	if err != nil {
		return err
	}
	_, err = ctx.App.Writer.Write(out)
	return err
}
