package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// NodeFlags holds knobs specific to the local node instance (identity, storage).
func NodeFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "identity",
			Usage: "Custom node name used in logs and on the network",
		},
		cli.IntFlag{
			Name:  "cache",
			Usage: "Megabytes of memory allocated to the database cache",
			Value: 64,
		},
		cli.IntFlag{
			Name:  "handles",
			Usage: "Number of file handles allocated to the database",
			Value: 64,
		},
		cli.BoolFlag{
			Name:  "nodb",
			Usage: "Keep the chain in memory only",
		},
	}
}
