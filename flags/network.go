package flags

import (
	"time"

	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-powchain/powchain"
)

// NetworkFlags select the chain rules and the in-process fake network.
func NetworkFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "network",
			Usage: "Chain rules to run (main|test|fake)",
			Value: "main",
		},
		cli.IntFlag{
			Name:  "fakenet",
			Usage: "Run N in-process nodes on fake network rules, node i mining to fake account i",
		},
		cli.UintFlag{
			Name:  "fakenet.zeros",
			Usage: "Leading zero hex digits required from fake network block hashes",
			Value: powchain.DefaultFakeMinZeros,
		},
	}
}

// TxPoolFlags isolates transaction-pool tuning knobs.
func TxPoolFlags() []cli.Flag {
	return []cli.Flag{
		cli.IntFlag{
			Name:  "txpool.accountslots",
			Usage: "Maximum number of pending transactions per sender",
			Value: 64,
		},
		cli.IntFlag{
			Name:  "txpool.globalslots",
			Usage: "Maximum number of pending transactions total",
			Value: 4096,
		},
		cli.DurationFlag{
			Name:  "txpool.lifetime",
			Usage: "Maximum time a transaction stays pending (0 keeps it forever)",
			Value: 3 * time.Hour,
		},
	}
}
