package inter

import (
	"encoding/json"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/rony4d/go-powchain/inter/accountpk"
)

// TxJSON is the display form of a transaction.
type TxJSON struct {
	Kind   string           `json:"kind"`
	ID     hexutil.Bytes    `json:"id"`
	From   accountpk.PubKey `json:"from"`
	To     accountpk.PubKey `json:"to"`
	Amount int64            `json:"amount"`
	Nonce  *hexutil.Uint64  `json:"nonce,omitempty"`
	Height *hexutil.Uint64  `json:"height,omitempty"`
	Sig    hexutil.Bytes    `json:"sig,omitempty"`
}

// ToJSON converts tx into its display form.
func ToJSON(tx Transaction) TxJSON {
	id := tx.ID()
	out := TxJSON{
		Kind:   tx.Kind().String(),
		ID:     id.Bytes(),
		From:   tx.Sender(),
		To:     tx.Recipient(),
		Amount: tx.Value(),
	}
	switch tx := tx.(type) {
	case *Coinbase:
		h := hexutil.Uint64(tx.Height)
		out.Height = &h
	case *Transfer:
		n := hexutil.Uint64(tx.Nonce)
		out.Nonce = &n
		out.Sig = tx.Sig[:]
	}
	return out
}

type blockJSON struct {
	Height   uint64         `json:"height"`
	Hash     hexutil.Bytes  `json:"hash"`
	PrevHash hexutil.Bytes  `json:"prevHash"`
	TxRoot   hexutil.Bytes  `json:"txRoot"`
	Time     Timestamp      `json:"time"`
	Nonce    hexutil.Uint64 `json:"nonce"`
	Txs      []TxJSON       `json:"txs"`
}

func hashBytes(h hash.Hash) hexutil.Bytes {
	return h.Bytes()
}

// HashHex formats h as 0x-prefixed hex.
func HashHex(h hash.Hash) string {
	return hexutil.Encode(h.Bytes())
}

// MarshalJSON encodes the block with hex hashes and typed transactions.
func (b *Block) MarshalJSON() ([]byte, error) {
	out := blockJSON{
		Height:   uint64(b.Height),
		Hash:     hashBytes(b.Hash),
		PrevHash: hashBytes(b.PrevHash),
		TxRoot:   hashBytes(b.TxRoot()),
		Time:     b.Time,
		Nonce:    hexutil.Uint64(b.Nonce),
		Txs:      make([]TxJSON, len(b.Txs)),
	}
	for i, tx := range b.Txs {
		out.Txs[i] = ToJSON(tx)
	}
	return json.Marshal(out)
}
