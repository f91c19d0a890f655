package inter

import (
	"encoding/binary"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/rony4d/go-powchain/crypto"
)

// Block is an ordered batch of transactions sealed by proof of work.
//
// Txs[0] is the coinbase and every following entry is a *Transfer in
// inclusion order. Hash is stored alongside the fields it is derived from
// so that a block read from disk or the network can be checked against a
// recomputation.
//
// A Block must not be mutated once its nonce is fixed. Blocks are shared
// between the chain, the miner and subscribers without copying.
type Block struct {
	Height   idx.Block
	PrevHash hash.Hash
	Time     Timestamp
	Nonce    uint64
	Txs      []Transaction
	Hash     hash.Hash
}

// Assemble builds an unmined candidate: the coinbase first, then pending in
// the order supplied.
func Assemble(prev hash.Hash, height idx.Block, coinbase *Coinbase, pending []*Transfer, time Timestamp) *Block {
	txs := make([]Transaction, 0, len(pending)+1)
	txs = append(txs, coinbase)
	for _, tx := range pending {
		txs = append(txs, tx)
	}
	return &Block{
		Height:   height,
		PrevHash: prev,
		Time:     time,
		Txs:      txs,
	}
}

// Coinbase returns the first transaction when it is a reward, else nil.
func (b *Block) Coinbase() *Coinbase {
	if len(b.Txs) == 0 {
		return nil
	}
	cb, _ := b.Txs[0].(*Coinbase)
	return cb
}

// Transfers returns every transfer in inclusion order. Entries of another
// kind are skipped; shape checks catch them separately.
func (b *Block) Transfers() []*Transfer {
	out := make([]*Transfer, 0, len(b.Txs))
	for _, tx := range b.Txs {
		if t, ok := tx.(*Transfer); ok {
			out = append(out, t)
		}
	}
	return out
}

// TxRoot is the pairwise Merkle root of the transaction IDs. An odd level
// repeats its last node.
func (b *Block) TxRoot() hash.Hash {
	if len(b.Txs) == 0 {
		return hash.Hash{}
	}
	level := make([]hash.Hash, len(b.Txs))
	for i, tx := range b.Txs {
		level[i] = tx.ID()
	}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]hash.Hash, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, crypto.Default.Digest(level[i].Bytes(), level[i+1].Bytes()))
		}
		level = next
	}
	return level[0]
}

// HashPrefix is every hashed field except the nonce:
// RLP[height, prev hash, tx root, tx count, time].
func (b *Block) HashPrefix() []byte {
	return mustRLP([]interface{}{
		uint64(b.Height),
		b.PrevHash.Bytes(),
		b.TxRoot().Bytes(),
		uint64(len(b.Txs)),
		uint64(b.Time),
	})
}

// Sealer hashes one candidate with many nonces without re-encoding it.
// It is not safe for concurrent use; give each worker its own.
type Sealer struct {
	buf []byte
}

// NewSealer captures the hash prefix of b. Later changes to b are not seen.
func NewSealer(b *Block) *Sealer {
	prefix := b.HashPrefix()
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)
	return &Sealer{buf: buf}
}

// HashWith returns the block hash for nonce.
func (s *Sealer) HashWith(nonce uint64) hash.Hash {
	binary.BigEndian.PutUint64(s.buf[len(s.buf)-8:], nonce)
	return crypto.Default.Digest(s.buf)
}

// ComputeHash recomputes the hash from the stored fields and nonce.
func (b *Block) ComputeHash() hash.Hash {
	return NewSealer(b).HashWith(b.Nonce)
}

// Seal returns a copy of b with the nonce set and the hash filled in.
func (b *Block) Seal(nonce uint64, h hash.Hash) *Block {
	cp := *b
	cp.Nonce = nonce
	cp.Hash = h
	return &cp
}

// IsGenesis reports whether b sits at height zero.
func (b *Block) IsGenesis() bool {
	return b.Height == 0
}
