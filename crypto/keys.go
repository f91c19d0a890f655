package crypto

import (
	"crypto/ecdsa"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/rony4d/go-powchain/inter/accountpk"
)

// FakeKey returns the n-th deterministic test key. The scalar is
// sha256("powchain fake key" || n), rehashed until it is a valid scalar,
// so the same n always yields the same key on every platform.
func FakeKey(n uint64) *ecdsa.PrivateKey {
	seed := append([]byte("powchain fake key"), bigendian.Uint64ToBytes(n)...)
	for {
		d := chainhash.HashB(seed)
		key, err := ethcrypto.ToECDSA(d)
		if err == nil {
			return key
		}
		seed = d
	}
}

// FakeAccount returns FakeKey(n) together with its account identity.
func FakeAccount(n uint64) (*ecdsa.PrivateKey, accountpk.PubKey) {
	key := FakeKey(n)
	pub, err := AccountOf(Default, key)
	if err != nil {
		panic(err)
	}
	return key, pub
}

// AccountOf derives the account identity of priv under scheme.
func AccountOf(scheme Scheme, priv *ecdsa.PrivateKey) (accountpk.PubKey, error) {
	raw, err := scheme.PublicKey(priv)
	if err != nil {
		return accountpk.PubKey{}, err
	}
	pk, err := accountpk.FromBytes(raw)
	if err != nil {
		return accountpk.PubKey{}, ErrInvalidKey
	}
	return pk, nil
}

// ParsePrivateKey decodes a hex private key.
func ParsePrivateKey(hexkey string) (*ecdsa.PrivateKey, error) {
	key, err := ethcrypto.HexToECDSA(hexkey)
	if err != nil {
		return nil, ErrInvalidKey
	}
	return key, nil
}
