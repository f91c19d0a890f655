package main

import (
	"fmt"
	"os"

	"github.com/rony4d/go-powchain/cmd/powchain/launcher"
)

func main() {
	if err := launcher.Launch(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
