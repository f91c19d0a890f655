// Package inter defines the ledger's data model: transactions, blocks and
// the canonical byte forms that identifiers, signatures and block hashes are
// computed over.
//
// A transaction is one of two kinds that share the Transaction interface:
//   - Coinbase: the block reward. It has no sender and no signature.
//   - Transfer: a signed movement of funds between two accounts.
//
// Both kinds are immutable once built. Identifiers and block hashes use the
// consensus digest (crypto.Default); signatures use whatever Scheme the
// caller supplies.
package inter

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/rony4d/go-powchain/crypto"
	"github.com/rony4d/go-powchain/inter/accountpk"
)

// TxKind tags the transaction variant in every serialized form.
type TxKind uint8

const (
	CoinbaseKind TxKind = 1
	TransferKind TxKind = 2
)

// MaxAmount is the largest amount a single transaction may carry.
const MaxAmount = math.MaxInt64

// String returns the kind name.
func (k TxKind) String() string {
	switch k {
	case CoinbaseKind:
		return "coinbase"
	case TransferKind:
		return "transfer"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Transaction is implemented by *Coinbase and *Transfer only.
type Transaction interface {
	Kind() TxKind
	// ID is the digest of SigningBytes. Equal fields give equal IDs.
	ID() hash.Hash
	// Sender is accountpk.Coinbase for rewards.
	Sender() accountpk.PubKey
	Recipient() accountpk.PubKey
	Value() int64
	// SigningBytes is the canonical RLP serialization of every field except
	// the signature.
	SigningBytes() []byte

	sealed()
}

// Coinbase credits the block reward to the miner.
type Coinbase struct {
	To     accountpk.PubKey
	Amount int64
	// Height of the carrying block. It makes reward IDs unique per block.
	Height idx.Block
}

// Transfer moves Amount from From to To.
type Transfer struct {
	From   accountpk.PubKey
	To     accountpk.PubKey
	Amount int64
	// Nonce distinguishes otherwise identical transfers.
	Nonce uint64
	Sig   [crypto.SignatureSize]byte
}

// NewCoinbase returns an unsigned reward transaction for the block at height.
func NewCoinbase(to accountpk.PubKey, reward int64, height idx.Block) *Coinbase {
	return &Coinbase{To: to, Amount: reward, Height: height}
}

// NewTransfer builds and signs a transfer with a random nonce.
func NewTransfer(scheme crypto.Scheme, priv *ecdsa.PrivateKey, from, to accountpk.PubKey, amount int64) (*Transfer, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, err
	}
	return NewTransferWithNonce(scheme, priv, from, to, amount, binary.BigEndian.Uint64(buf[:]))
}

// NewTransferWithNonce is NewTransfer with a caller-chosen nonce.
func NewTransferWithNonce(scheme crypto.Scheme, priv *ecdsa.PrivateKey, from, to accountpk.PubKey, amount int64, nonce uint64) (*Transfer, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	if to.IsCoinbase() {
		return nil, fmt.Errorf("%w: transfer to the coinbase sentinel", ErrInvalidCoinbase)
	}
	owner, err := crypto.AccountOf(scheme, priv)
	if err != nil {
		return nil, err
	}
	if owner != from {
		return nil, fmt.Errorf("%w: private key does not belong to %s", ErrInvalidKey, from.Short())
	}

	tx := &Transfer{From: from, To: to, Amount: amount, Nonce: nonce}
	sig, err := scheme.Sign(tx.SigningBytes(), priv)
	if err != nil {
		return nil, err
	}
	copy(tx.Sig[:], sig)
	return tx, nil
}

// Kind returns CoinbaseKind.
func (*Coinbase) Kind() TxKind { return CoinbaseKind }

// Kind returns TransferKind.
func (*Transfer) Kind() TxKind { return TransferKind }

// Sender returns the reserved coinbase account.
func (c *Coinbase) Sender() accountpk.PubKey { return accountpk.Coinbase }

// Sender returns the debited account.
func (t *Transfer) Sender() accountpk.PubKey { return t.From }

// Recipient returns the rewarded miner.
func (c *Coinbase) Recipient() accountpk.PubKey { return c.To }

// Recipient returns the credited account.
func (t *Transfer) Recipient() accountpk.PubKey { return t.To }

// Value returns the minted reward.
func (c *Coinbase) Value() int64 { return c.Amount }

// Value returns the transferred amount.
func (t *Transfer) Value() int64 { return t.Amount }

func (*Coinbase) sealed() {}
func (*Transfer) sealed() {}

// SigningBytes returns the canonical encoding covered by a signature.
func (c *Coinbase) SigningBytes() []byte {
	return mustRLP([]interface{}{uint8(CoinbaseKind), c.To[:], uint64(c.Amount), uint64(c.Height)})
}

// SigningBytes returns the canonical encoding covered by the sender's signature.
func (t *Transfer) SigningBytes() []byte {
	return mustRLP([]interface{}{uint8(TransferKind), t.From[:], t.To[:], uint64(t.Amount), t.Nonce})
}

// ID returns the transaction hash.
func (c *Coinbase) ID() hash.Hash {
	return crypto.Default.Digest(c.SigningBytes())
}

// ID returns the transaction hash.
func (t *Transfer) ID() hash.Hash {
	return crypto.Default.Digest(t.SigningBytes())
}

// VerifyTransaction reports whether tx is authentic: true for a coinbase,
// otherwise the signature must verify over SigningBytes against the sender.
// Any malformed input yields false.
func VerifyTransaction(scheme crypto.Scheme, tx Transaction) bool {
	switch tx := tx.(type) {
	case *Coinbase:
		return tx != nil
	case *Transfer:
		if tx == nil || tx.From.IsCoinbase() {
			return false
		}
		return scheme.Verify(tx.SigningBytes(), tx.Sig[:], tx.From[:])
	}
	return false
}

// CheckTransfer runs every stateless check on a transfer and classifies the
// first failure.
func CheckTransfer(scheme crypto.Scheme, tx *Transfer) error {
	if tx == nil {
		return fmt.Errorf("%w: nil transfer", ErrInvalidSignature)
	}
	if tx.Amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, tx.Amount)
	}
	if tx.From.IsCoinbase() || tx.To.IsCoinbase() {
		return fmt.Errorf("%w: transfer uses the coinbase sentinel", ErrInvalidCoinbase)
	}
	if !VerifyTransaction(scheme, tx) {
		return fmt.Errorf("%w: tx %s", ErrInvalidSignature, HashHex(tx.ID()))
	}
	return nil
}

// Touches reports whether pk sends or receives in tx.
func Touches(tx Transaction, pk accountpk.PubKey) bool {
	return tx.Sender() == pk || tx.Recipient() == pk
}

func mustRLP(v interface{}) []byte {
	b, err := rlp.EncodeToBytes(v)
	if err != nil {
		panic(err)
	}
	return b
}
