package inter

import (
	"encoding/json"
	"testing"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-powchain/crypto"
	"github.com/rony4d/go-powchain/utils/cser"
)

func testBlock(t *testing.T) *Block {
	_, miner := crypto.FakeAccount(9)
	b := Assemble(hash.Of([]byte("parent")), 12, NewCoinbase(miner, 50, 12), testTransfers(t, 3), FromUnix(1700000000))
	return b.Seal(123456789, b.Seal(123456789, hash.Hash{}).ComputeHash())
}

func TestBlockBinaryRoundTrip(t *testing.T) {
	require := require.New(t)

	orig := testBlock(t)
	raw, err := orig.MarshalBinary()
	require.NoError(err)

	var got Block
	require.NoError(got.UnmarshalBinary(raw))
	require.Equal(*orig, got)
	require.Equal(orig.Hash, got.ComputeHash())
}

func TestTransactionBinaryRoundTrip(t *testing.T) {
	require := require.New(t)

	b := testBlock(t)
	for _, tx := range b.Txs {
		raw, err := MarshalTransaction(tx)
		require.NoError(err)
		got, err := UnmarshalTransaction(raw)
		require.NoError(err)
		require.Equal(tx, got)
		require.Equal(tx.ID(), got.ID())
	}
}

func TestBlockBinaryMalformed(t *testing.T) {
	require := require.New(t)

	raw, err := testBlock(t).MarshalBinary()
	require.NoError(err)

	var b Block
	require.Error(b.UnmarshalBinary(raw[:len(raw)/2]))
	require.Error(b.UnmarshalBinary(nil))

	// unknown kind byte
	bad, err := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.U8(7)
		return nil
	})
	require.NoError(err)
	_, err = UnmarshalTransaction(bad)
	require.ErrorIs(err, ErrUnknownTxKind)

	// a transfer whose recipient is not a compressed key
	badKey, err := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.U8(uint8(CoinbaseKind))
		w.FixedBytes(append([]byte{0x07}, make([]byte, 32)...))
		w.U64(50)
		w.U64(1)
		return nil
	})
	require.NoError(err)
	_, err = UnmarshalTransaction(badKey)
	require.Equal(cser.ErrMalformedEncoding, err)
}

func TestBlockJSON(t *testing.T) {
	require := require.New(t)

	b := testBlock(t)
	raw, err := json.Marshal(b)
	require.NoError(err)

	var decoded map[string]interface{}
	require.NoError(json.Unmarshal(raw, &decoded))
	require.Equal(float64(12), decoded["height"])
	require.Equal(hexutil.Encode(b.Hash.Bytes()), decoded["hash"])
	txs := decoded["txs"].([]interface{})
	require.Len(txs, 4)
	require.Equal("coinbase", txs[0].(map[string]interface{})["kind"])
	require.Equal("COINBASE", txs[0].(map[string]interface{})["from"])
	require.Equal("transfer", txs[1].(map[string]interface{})["kind"])
}
