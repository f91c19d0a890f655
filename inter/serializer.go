package inter

import (
	"errors"
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/rony4d/go-powchain/inter/accountpk"
	"github.com/rony4d/go-powchain/utils/cser"
)

// The binary forms below are what the chain store writes and what peers
// exchange. They round-trip every field, including the nonce and the stored
// hash; derived values (IDs, tx root) are recomputed after decoding.

// ErrUnknownTxKind is returned when decoding an unsupported kind byte.
var ErrUnknownTxKind = errors.New("unknown tx kind")

// MaxBlockTxs bounds the transaction count accepted by the decoder.
const MaxBlockTxs = 1 << 16

func writePubKey(w *cser.Writer, pk accountpk.PubKey) {
	w.FixedBytes(pk[:])
}

func readPubKey(r *cser.Reader) accountpk.PubKey {
	var raw [accountpk.Size]byte
	r.FixedBytes(raw[:])
	pk, err := accountpk.FromBytes(raw[:])
	if err != nil {
		panic(cser.ErrMalformedEncoding)
	}
	return pk
}

func writeHash(w *cser.Writer, h hash.Hash) {
	w.FixedBytes(h.Bytes())
}

func readHash(r *cser.Reader) hash.Hash {
	var raw [32]byte
	r.FixedBytes(raw[:])
	return hash.BytesToHash(raw[:])
}

func readAmount(r *cser.Reader) int64 {
	v := r.U64()
	if v > MaxAmount {
		panic(cser.ErrMalformedEncoding)
	}
	return int64(v)
}

// TransactionMarshalCSER writes the kind byte followed by the variant fields.
func TransactionMarshalCSER(w *cser.Writer, tx Transaction) error {
	switch tx := tx.(type) {
	case *Coinbase:
		w.U8(uint8(CoinbaseKind))
		writePubKey(w, tx.To)
		w.U64(uint64(tx.Amount))
		w.U64(uint64(tx.Height))
	case *Transfer:
		w.U8(uint8(TransferKind))
		writePubKey(w, tx.From)
		writePubKey(w, tx.To)
		w.U64(uint64(tx.Amount))
		w.U64(tx.Nonce)
		w.FixedBytes(tx.Sig[:])
	default:
		return ErrUnknownTxKind
	}
	return nil
}

// TransactionUnmarshalCSER is the inverse of TransactionMarshalCSER.
func TransactionUnmarshalCSER(r *cser.Reader) (Transaction, error) {
	switch kind := TxKind(r.U8()); kind {
	case CoinbaseKind:
		cb := &Coinbase{}
		cb.To = readPubKey(r)
		cb.Amount = readAmount(r)
		cb.Height = idx.Block(r.U64())
		return cb, nil
	case TransferKind:
		t := &Transfer{}
		t.From = readPubKey(r)
		t.To = readPubKey(r)
		t.Amount = readAmount(r)
		t.Nonce = r.U64()
		r.FixedBytes(t.Sig[:])
		return t, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownTxKind, kind)
	}
}

// MarshalTransaction encodes a single transaction for the wire.
func MarshalTransaction(tx Transaction) ([]byte, error) {
	return cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		return TransactionMarshalCSER(w, tx)
	})
}

// UnmarshalTransaction decodes the output of MarshalTransaction.
func UnmarshalTransaction(raw []byte) (tx Transaction, err error) {
	err = cser.UnmarshalBinaryAdapter(raw, func(r *cser.Reader) error {
		tx, err = TransactionUnmarshalCSER(r)
		return err
	})
	return tx, err
}

// MarshalCSER writes the block into w.
func (b *Block) MarshalCSER(w *cser.Writer) error {
	w.U64(uint64(b.Height))
	writeHash(w, b.PrevHash)
	w.U64(uint64(b.Time))
	w.U64(b.Nonce)
	w.U56(uint64(len(b.Txs)))
	for _, tx := range b.Txs {
		if err := TransactionMarshalCSER(w, tx); err != nil {
			return err
		}
	}
	writeHash(w, b.Hash)
	return nil
}

// UnmarshalCSER reads the block from r.
func (b *Block) UnmarshalCSER(r *cser.Reader) error {
	b.Height = idx.Block(r.U64())
	b.PrevHash = readHash(r)
	b.Time = Timestamp(r.U64())
	b.Nonce = r.U64()
	n := r.U56()
	if n > MaxBlockTxs {
		return cser.ErrTooLargeAlloc
	}
	b.Txs = make([]Transaction, 0, n)
	for i := uint64(0); i < n; i++ {
		tx, err := TransactionUnmarshalCSER(r)
		if err != nil {
			return err
		}
		b.Txs = append(b.Txs, tx)
	}
	b.Hash = readHash(r)
	return nil
}

// MarshalBinary encodes the block in the CSER format.
func (b *Block) MarshalBinary() ([]byte, error) {
	return cser.MarshalBinaryAdapter(b.MarshalCSER)
}

// UnmarshalBinary decodes a CSER-encoded block.
func (b *Block) UnmarshalBinary(raw []byte) error {
	return cser.UnmarshalBinaryAdapter(raw, b.UnmarshalCSER)
}
