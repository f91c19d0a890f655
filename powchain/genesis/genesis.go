// Package genesis derives block zero from the network rules.
//
// The genesis block is not shipped as data. Every node rebuilds it from
// Rules.Genesis: one coinbase of the mining reward to the configured
// recipient at the configured time, with the nonce found by an incremental
// search from zero. The search is deterministic, so all nodes that share
// rules share the genesis hash. Genesis is held to the same proof-of-work
// rule as every other block; only the linkage check is skipped.
package genesis

import (
	"context"

	"github.com/Fantom-foundation/lachesis-base/hash"

	"github.com/rony4d/go-powchain/inter"
	"github.com/rony4d/go-powchain/pow"
	"github.com/rony4d/go-powchain/powchain"
)

// Build mines the genesis block of rules.
func Build(rules powchain.Rules) (*inter.Block, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	coinbase := inter.NewCoinbase(rules.Genesis.Recipient, rules.Mining.Reward, 0)
	candidate := inter.Assemble(hash.Hash{}, 0, coinbase, nil, rules.Genesis.Time)
	b, _, err := pow.Mine(context.Background(), candidate, rules.Mining.MinZeros, pow.Increment.FirstNonce(0, 1), 1)
	return b, err
}

// MustBuild is Build for rules known to be valid.
func MustBuild(rules powchain.Rules) *inter.Block {
	b, err := Build(rules)
	if err != nil {
		panic(err)
	}
	return b
}
