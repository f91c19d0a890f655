// Package powchain defines the consensus rules of a powchain network.
//
// Rules are a static value chosen at startup (mainnet, testnet or a local
// fakenet) and passed by value to every component that validates or
// produces blocks. Nothing mutates them at runtime, and every node of a
// network must run with identical rules or their chains will diverge.
package powchain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/rony4d/go-powchain/crypto"
	"github.com/rony4d/go-powchain/inter"
	"github.com/rony4d/go-powchain/inter/accountpk"
)

// Network identification constants
const (
	MainNetworkID uint64 = 0x9f1
	TestNetworkID uint64 = 0x9f2
	FakeNetworkID uint64 = 0x9f3

	// DefaultMiningReward is the amount credited by every coinbase.
	DefaultMiningReward int64 = 50

	// DefaultFakeMinZeros is the fakenet difficulty unless overridden.
	DefaultFakeMinZeros uint = 2

	// MaxMinZeros bounds Mining.MinZeros. Every node mines the genesis block
	// itself at startup, so the difficulty must stay searchable in minutes
	// on one core: 10 hex digits is about 2^40 hashes.
	MaxMinZeros uint = 10

	// DefaultMaxTxs is the number of transfers a block may carry besides its
	// coinbase.
	DefaultMaxTxs = 10
)

// Rules describes the complete consensus configuration of a network.
type Rules struct {
	Name      string
	NetworkID uint64

	Mining  MiningRules
	Blocks  BlocksRules
	Genesis GenesisRules
}

// MiningRules holds the proof-of-work parameters.
type MiningRules struct {
	// Reward is the exact amount of every coinbase.
	Reward int64
	// MinZeros is the number of leading zero hex digits a block hash needs.
	MinZeros uint
	// TargetBlockTime is what MinZeros was tuned for. It is informational;
	// difficulty does not retarget.
	TargetBlockTime time.Duration
}

// BlocksRules limits block contents and chain reorganizations.
type BlocksRules struct {
	// MaxTxs is the maximum number of transfers per block.
	MaxTxs int
	// MaxReorgDepth rejects competing chains that fork more than this many
	// blocks below the tip. Zero disables the limit.
	MaxReorgDepth idx.Block
}

// GenesisRules fixes the contents of block zero.
type GenesisRules struct {
	// Recipient receives the genesis coinbase.
	Recipient accountpk.PubKey
	Time      inter.Timestamp
}

// MainNetRules returns the rules of the production network.
func MainNetRules() Rules {
	return Rules{
		Name:      "main",
		NetworkID: MainNetworkID,
		Mining: MiningRules{
			Reward:          DefaultMiningReward,
			MinZeros:        5,
			TargetBlockTime: time.Minute,
		},
		Blocks: BlocksRules{
			MaxTxs:        DefaultMaxTxs,
			MaxReorgDepth: 10,
		},
		Genesis: GenesisRules{
			Recipient: accountpk.MustFromString("0x03ebab41dbae845eb96acf163d845b185eb3bbf7ebed15f1b08380093dce39b003"),
			Time:      inter.FromUnix(1704067200),
		},
	}
}

// TestNetRules returns the rules of the public test network. It is mainnet
// with a lower difficulty.
func TestNetRules() Rules {
	r := MainNetRules()
	r.Name = "test"
	r.NetworkID = TestNetworkID
	r.Mining.MinZeros = 4
	r.Mining.TargetBlockTime = 15 * time.Second
	r.Genesis.Recipient = accountpk.MustFromString("0x0293b5fb7c8f450240df9092a8564f52b6c3d0606ea6acebd2940612eed1d05478")
	return r
}

// FakeNetRules returns rules for local networks and tests. The genesis
// reward goes to crypto.FakeAccount(0) and the reorg depth is unlimited.
func FakeNetRules(minZeros uint) Rules {
	_, recipient := crypto.FakeAccount(0)
	return Rules{
		Name:      "fake",
		NetworkID: FakeNetworkID,
		Mining: MiningRules{
			Reward:          DefaultMiningReward,
			MinZeros:        minZeros,
			TargetBlockTime: time.Second,
		},
		Blocks: BlocksRules{
			MaxTxs: DefaultMaxTxs,
		},
		Genesis: GenesisRules{
			Recipient: recipient,
			Time:      inter.FromUnix(1608600000),
		},
	}
}

// RulesByName resolves main, test or fake.
func RulesByName(name string) (Rules, error) {
	switch name {
	case "main", "mainnet":
		return MainNetRules(), nil
	case "test", "testnet":
		return TestNetRules(), nil
	case "fake", "fakenet":
		return FakeNetRules(DefaultFakeMinZeros), nil
	}
	return Rules{}, fmt.Errorf("unknown network %q", name)
}

// Validate rejects rules no chain could be built with.
func (r Rules) Validate() error {
	switch {
	case r.Mining.Reward <= 0:
		return fmt.Errorf("mining reward must be positive, got %d", r.Mining.Reward)
	case r.Mining.MinZeros > MaxMinZeros:
		return fmt.Errorf("min zeros %d exceeds the minable limit %d", r.Mining.MinZeros, MaxMinZeros)
	case r.Blocks.MaxTxs < 0:
		return fmt.Errorf("max txs must not be negative, got %d", r.Blocks.MaxTxs)
	case r.Genesis.Recipient.IsCoinbase():
		return fmt.Errorf("genesis recipient is not set")
	}
	return nil
}

// String returns the rules as JSON for logs and config dumps.
func (r Rules) String() string {
	b, _ := json.Marshal(&r)
	return string(b)
}
