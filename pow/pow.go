// Package pow implements the proof-of-work rule shared by miners and
// validators.
//
// A block hash meets difficulty N when its first N hex digits are zero,
// which is the same as its value being below 2^(256-4N). Miners and
// validators call the same predicate, so a block a miner produces always
// passes validation with the same N.
package pow

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/hash"

	"github.com/rony4d/go-powchain/inter"
)

// MaxZeros is the number of hex digits in a digest. Anything above it can
// never be met.
const MaxZeros = 64

// checkEvery is how many nonces are tried between cancellation checks.
const checkEvery = 1024

// ErrNonceSpaceExhausted is returned when a search wraps around without a
// solution. The caller should rebuild the candidate (new timestamp) and retry.
var ErrNonceSpaceExhausted = errors.New("nonce space exhausted")

// MeetsDifficulty reports whether the first zeros hex digits of h are zero.
func MeetsDifficulty(h hash.Hash, zeros uint) bool {
	if zeros > MaxZeros {
		return false
	}
	full := zeros / 2
	for i := uint(0); i < full; i++ {
		if h[i] != 0 {
			return false
		}
	}
	if zeros%2 == 1 && h[full]>>4 != 0 {
		return false
	}
	return true
}

// Target returns the exclusive upper bound 2^(256-4*zeros) that a hash
// value must stay below. It is zero when zeros exceeds MaxZeros.
func Target(zeros uint) *big.Int {
	if zeros > MaxZeros {
		return new(big.Int)
	}
	return new(big.Int).Lsh(big.NewInt(1), 256-4*zeros)
}

// MeetsTarget is the numeric form of MeetsDifficulty.
func MeetsTarget(h hash.Hash, zeros uint) bool {
	return new(big.Int).SetBytes(h.Bytes()).Cmp(Target(zeros)) < 0
}

// Mine searches nonces start, start+stride, start+2*stride, ... until the
// candidate's hash meets zeros. It returns the sealed block and the number
// of hashes computed. It stops with ctx.Err() once ctx is cancelled.
func Mine(ctx context.Context, candidate *inter.Block, zeros uint, start, stride uint64) (*inter.Block, uint64, error) {
	if stride == 0 {
		stride = 1
	}
	sealer := inter.NewSealer(candidate)
	nonce := start
	var tried uint64
	for {
		if tried%checkEvery == 0 {
			select {
			case <-ctx.Done():
				return nil, tried, ctx.Err()
			default:
			}
		}
		h := sealer.HashWith(nonce)
		tried++
		if MeetsDifficulty(h, zeros) {
			return candidate.Seal(nonce, h), tried, nil
		}
		next := nonce + stride
		if next < nonce {
			return nil, tried, ErrNonceSpaceExhausted
		}
		nonce = next
	}
}

// Verify recomputes the hash of b from its fields and nonce, and checks that
// it matches the stored hash and meets zeros.
func Verify(b *inter.Block, zeros uint) error {
	h := b.ComputeHash()
	if h != b.Hash {
		return fmt.Errorf("%w: stored hash %s, computed %s", inter.ErrInvalidProofOfWork, inter.HashHex(b.Hash), inter.HashHex(h))
	}
	if !MeetsDifficulty(h, zeros) {
		return fmt.Errorf("%w: %s has fewer than %d leading zeros", inter.ErrInvalidProofOfWork, inter.HashHex(h), zeros)
	}
	return nil
}

// Strategy picks where a worker starts in its nonce slice.
type Strategy uint8

const (
	// Increment starts every round at the worker's index.
	Increment Strategy = iota
	// Random starts at a random point of the worker's slice.
	Random
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case Increment:
		return "increment"
	case Random:
		return "random"
	}
	return fmt.Sprintf("strategy(%d)", uint8(s))
}

// ParseStrategy is the inverse of String.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "increment", "":
		return Increment, nil
	case "random":
		return Random, nil
	}
	return 0, fmt.Errorf("unknown mining strategy %q", s)
}

// FirstNonce returns the first nonce of worker in a search split across
// stride workers. Every value it returns is congruent to worker mod stride,
// so slices of different workers never overlap.
func (s Strategy) FirstNonce(worker, stride uint64) uint64 {
	if stride == 0 {
		stride = 1
	}
	if s != Random {
		return worker
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return worker
	}
	// leave headroom so the search rarely wraps
	k := (binary.BigEndian.Uint64(buf[:]) >> 1) / stride
	return k*stride + worker
}
