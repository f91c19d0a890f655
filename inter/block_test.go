package inter

import (
	"testing"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-powchain/crypto"
)

func testTransfers(t *testing.T, n int) []*Transfer {
	aliceKey, alice := crypto.FakeAccount(1)
	_, bob := crypto.FakeAccount(2)
	out := make([]*Transfer, n)
	for i := range out {
		tx, err := NewTransferWithNonce(crypto.Default, aliceKey, alice, bob, int64(i+1), uint64(i))
		require.NoError(t, err)
		out[i] = tx
	}
	return out
}

func TestAssemble(t *testing.T) {
	require := require.New(t)

	_, miner := crypto.FakeAccount(9)
	prev := hash.Of([]byte("parent"))
	pending := testTransfers(t, 3)
	cb := NewCoinbase(miner, 50, 4)

	b := Assemble(prev, 4, cb, pending, FromUnix(1000))
	require.Equal(prev, b.PrevHash)
	require.Len(b.Txs, 4)
	require.Equal(cb, b.Coinbase())
	require.Equal(pending, b.Transfers())
	require.False(b.IsGenesis())
	require.Equal(hash.Hash{}, b.Hash, "candidate is unsealed")
}

func TestBlockHash(t *testing.T) {
	require := require.New(t)

	_, miner := crypto.FakeAccount(9)
	b := Assemble(hash.Hash{}, 1, NewCoinbase(miner, 50, 1), testTransfers(t, 2), FromUnix(1000))

	sealer := NewSealer(b)
	h7 := sealer.HashWith(7)
	require.Equal(h7, b.Seal(7, h7).ComputeHash())
	require.NotEqual(h7, sealer.HashWith(8))
	require.Equal(h7, sealer.HashWith(7), "sealer reuses its buffer")

	sealed := b.Seal(7, h7)
	require.Equal(uint64(0), b.Nonce, "Seal does not mutate the candidate")

	// every hashed field changes the hash
	mutants := []func(cp *Block){
		func(cp *Block) { cp.Height++ },
		func(cp *Block) { cp.PrevHash = hash.Of([]byte("x")) },
		func(cp *Block) { cp.Time++ },
		func(cp *Block) { cp.Nonce++ },
		func(cp *Block) { cp.Txs = cp.Txs[:2] },
	}
	for i, mutate := range mutants {
		cp := *sealed
		mutate(&cp)
		require.NotEqual(h7, cp.ComputeHash(), "mutant %d", i)
	}
}

func TestTxRoot(t *testing.T) {
	require := require.New(t)

	_, miner := crypto.FakeAccount(9)
	cb := NewCoinbase(miner, 50, 1)

	empty := &Block{}
	require.Equal(hash.Hash{}, empty.TxRoot())

	single := Assemble(hash.Hash{}, 1, cb, nil, 0)
	require.Equal(cb.ID(), single.TxRoot())

	txs := testTransfers(t, 2)
	three := Assemble(hash.Hash{}, 1, cb, txs, 0)
	left := crypto.Default.Digest(cb.ID().Bytes(), txs[0].ID().Bytes())
	right := crypto.Default.Digest(txs[1].ID().Bytes(), txs[1].ID().Bytes())
	require.Equal(crypto.Default.Digest(left.Bytes(), right.Bytes()), three.TxRoot())
}

func TestTimestamp(t *testing.T) {
	require := require.New(t)

	ts := FromUnix(1608600000)
	require.Equal(int64(1608600000), ts.Unix())
	require.Equal("2020-12-22T01:20:00Z", ts.String())
	require.Equal(ts, FromTime(ts.Time()))
	require.Len(ts.Bytes(), 8)
}
