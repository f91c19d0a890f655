// Package crypto is the narrow signing and hashing contract the ledger
// consumes. The ledger never touches curve arithmetic directly; it asks a
// Scheme to digest bytes, sign a message and verify a signature.
//
// The production scheme signs with secp256k1 (the go-ethereum bindings)
// and digests with double SHA-256 (the btcd chainhash helpers). Signatures
// are the 64-byte [R || S] form; the recovery byte is not kept because the
// sender's public key always travels with the transaction.
package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	// SignatureSize is the length of an [R || S] signature.
	SignatureSize = 64
	// PubKeySize is the length of a compressed public key.
	PubKeySize = 33
)

// ErrInvalidKey reports unusable key material. It is never swallowed into a
// successful result.
var ErrInvalidKey = errors.New("invalid key")

// Scheme signs, verifies and digests.
type Scheme interface {
	// Digest hashes the concatenation of data into a fixed-width digest.
	Digest(data ...[]byte) hash.Hash
	// Sign signs Digest(msg).
	Sign(msg []byte, priv *ecdsa.PrivateKey) ([]byte, error)
	// Verify checks sig over Digest(msg) against a compressed public key.
	// It never panics and returns false on any malformed input.
	Verify(msg, sig, pub []byte) bool
	// PublicKey returns the compressed public key of priv.
	PublicKey(priv *ecdsa.PrivateKey) ([]byte, error)
}

// Secp256k1 is the production Scheme.
type Secp256k1 struct{}

var _ Scheme = Secp256k1{}

// Default is the scheme used when none is configured.
var Default Scheme = Secp256k1{}

func (Secp256k1) Digest(data ...[]byte) hash.Hash {
	if len(data) == 1 {
		return hash.Hash(chainhash.DoubleHashH(data[0]))
	}
	size := 0
	for _, d := range data {
		size += len(d)
	}
	buf := make([]byte, 0, size)
	for _, d := range data {
		buf = append(buf, d...)
	}
	return hash.Hash(chainhash.DoubleHashH(buf))
}

func (s Secp256k1) Sign(msg []byte, priv *ecdsa.PrivateKey) (sig []byte, err error) {
	if priv == nil || priv.D == nil || priv.Curve == nil {
		return nil, ErrInvalidKey
	}
	defer func() {
		if r := recover(); r != nil {
			sig, err = nil, fmt.Errorf("%w: %v", ErrInvalidKey, r)
		}
	}()
	digest := s.Digest(msg)
	sig, err = ethcrypto.Sign(digest.Bytes(), priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return sig[:SignatureSize], nil
}

func (s Secp256k1) Verify(msg, sig, pub []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if len(sig) != SignatureSize || len(pub) != PubKeySize {
		return false
	}
	digest := s.Digest(msg)
	return ethcrypto.VerifySignature(pub, digest.Bytes(), sig)
}

func (Secp256k1) PublicKey(priv *ecdsa.PrivateKey) ([]byte, error) {
	if priv == nil || priv.D == nil || priv.X == nil || priv.Y == nil {
		return nil, ErrInvalidKey
	}
	return ethcrypto.CompressPubkey(&priv.PublicKey), nil
}
