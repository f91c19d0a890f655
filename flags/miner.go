package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// MinerFlags control the local proof of work search.
func MinerFlags() []cli.Flag {
	return []cli.Flag{
		cli.BoolFlag{
			Name:  "mine",
			Usage: "Enable mining",
		},
		cli.IntFlag{
			Name:  "miner.threads",
			Usage: "Number of concurrent nonce search workers",
			Value: 1,
		},
		cli.StringFlag{
			Name:  "miner.coinbase",
			Usage: "Hex public key receiving block rewards",
		},
		cli.StringFlag{
			Name:  "miner.strategy",
			Usage: "Nonce search strategy (increment|random)",
			Value: "increment",
		},
		cli.IntFlag{
			Name:  "miner.maxtxs",
			Usage: "Maximum transfers per mined block (-1 uses the network limit)",
			Value: -1,
		},
	}
}
