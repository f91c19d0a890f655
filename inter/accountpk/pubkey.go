// Package accountpk holds the account identity used by the ledger: a
// compressed secp256k1 public key. The type is a comparable array so it can
// key balance maps directly, and its zero value is the COINBASE sentinel
// that stands in for the missing sender of a reward transaction.
package accountpk

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// Size is the length of a compressed secp256k1 public key.
const Size = 33

var (
	ErrBadLength = errors.New("account pubkey: wrong length")
	ErrBadPrefix = errors.New("account pubkey: not a compressed key")
)

// PubKey is a compressed secp256k1 public key: a 0x02/0x03 parity byte
// followed by the 32-byte X coordinate.
type PubKey [Size]byte

// Coinbase is the reserved sender of reward transactions.
var Coinbase = PubKey{}

// IsCoinbase reports whether pk is the COINBASE sentinel.
func (pk PubKey) IsCoinbase() bool {
	return pk == Coinbase
}

// Bytes returns a fresh copy of the key bytes.
func (pk PubKey) Bytes() []byte {
	return common.CopyBytes(pk[:])
}

// String returns the key as 0x-prefixed hex, or "COINBASE" for the sentinel.
func (pk PubKey) String() string {
	if pk.IsCoinbase() {
		return "COINBASE"
	}
	return "0x" + common.Bytes2Hex(pk[:])
}

// Short is a log-friendly abbreviation.
func (pk PubKey) Short() string {
	s := pk.String()
	if len(s) <= 12 {
		return s
	}
	return s[:10] + ".." + s[len(s)-4:]
}

// FromBytes parses a compressed key. The all-zero key is accepted and
// yields the COINBASE sentinel.
func FromBytes(b []byte) (PubKey, error) {
	var pk PubKey
	if len(b) != Size {
		return pk, ErrBadLength
	}
	copy(pk[:], b)
	if pk.IsCoinbase() {
		return pk, nil
	}
	if b[0] != 0x02 && b[0] != 0x03 {
		return PubKey{}, ErrBadPrefix
	}
	return pk, nil
}

// FromString parses hex with or without the 0x prefix.
func FromString(str string) (PubKey, error) {
	if str == "COINBASE" {
		return Coinbase, nil
	}
	return FromBytes(common.FromHex(str))
}

// MustFromString is FromString for package-level constants.
func MustFromString(str string) PubKey {
	pk, err := FromString(str)
	if err != nil {
		panic(err)
	}
	return pk
}

// MarshalText encodes the key in its String form.
func (pk PubKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

// UnmarshalText decodes a key written by MarshalText.
func (pk *PubKey) UnmarshalText(input []byte) error {
	res, err := FromString(string(input))
	if err != nil {
		return err
	}
	*pk = res
	return nil
}
