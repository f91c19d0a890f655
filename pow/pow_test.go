package pow

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/rony4d/go-powchain/crypto"
	"github.com/rony4d/go-powchain/inter"
)

func candidate(sec uint64) *inter.Block {
	_, miner := crypto.FakeAccount(9)
	return inter.Assemble(hash.Of([]byte("parent")), 0, inter.NewCoinbase(miner, 50, 0), nil, inter.FromUnix(int64(sec)))
}

func TestMeetsDifficulty(t *testing.T) {
	require := require.New(t)

	var h hash.Hash
	h[0], h[1], h[2] = 0x00, 0x0f, 0xff

	require.True(MeetsDifficulty(h, 0))
	require.True(MeetsDifficulty(h, 1))
	require.True(MeetsDifficulty(h, 2))
	require.True(MeetsDifficulty(h, 3))
	require.False(MeetsDifficulty(h, 4))

	require.True(MeetsDifficulty(hash.Hash{}, MaxZeros))
	require.False(MeetsDifficulty(hash.Hash{}, MaxZeros+1))
}

func TestPredicateMatchesTarget(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var h hash.Hash
		copy(h[:], rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "hash"))
		// bias towards interesting prefixes
		zeroed := rapid.IntRange(0, 64).Draw(t, "zeroed")
		for i := 0; i < zeroed/2; i++ {
			h[i] = 0
		}
		if zeroed%2 == 1 {
			h[zeroed/2] &= 0x0f
		}
		zeros := uint(rapid.IntRange(0, MaxZeros+2).Draw(t, "zeros"))

		if MeetsDifficulty(h, zeros) != MeetsTarget(h, zeros) {
			t.Fatalf("predicate and target disagree for %x at %d zeros", h, zeros)
		}
	})
}

func TestMineSelfValidates(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		zeros := uint(rapid.IntRange(0, 3).Draw(t, "zeros"))
		stride := rapid.Uint64Range(1, 4).Draw(t, "stride")
		start := rapid.Uint64Range(0, stride-1).Draw(t, "start")
		c := candidate(rapid.Uint64Range(0, 1<<40).Draw(t, "time"))

		b, tried, err := Mine(context.Background(), c, zeros, start, stride)
		if err != nil {
			t.Fatal(err)
		}
		if tried == 0 {
			t.Fatal("no hashes counted")
		}
		if b.Nonce%stride != start {
			t.Fatalf("nonce %d outside the worker slice %d mod %d", b.Nonce, start, stride)
		}
		if err := Verify(b, zeros); err != nil {
			t.Fatal(err)
		}
	})
}

func TestVerifyRejects(t *testing.T) {
	require := require.New(t)

	b, _, err := Mine(context.Background(), candidate(1), 2, 0, 1)
	require.NoError(err)
	require.NoError(Verify(b, 2))

	// stored hash does not match the fields
	forged := *b
	forged.Nonce++
	require.ErrorIs(Verify(&forged, 0), inter.ErrInvalidProofOfWork)

	// hash matches but difficulty is not met
	require.ErrorIs(Verify(b, MaxZeros), inter.ErrInvalidProofOfWork)
}

func TestMineCancellation(t *testing.T) {
	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := Mine(ctx, candidate(2), MaxZeros+1, 0, 1)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		require.True(errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("search did not stop after cancellation")
	}
}

func TestMineExhausted(t *testing.T) {
	_, tried, err := Mine(context.Background(), candidate(3), MaxZeros+1, math.MaxUint64-1, 1)
	require.ErrorIs(t, err, ErrNonceSpaceExhausted)
	require.Equal(t, uint64(2), tried)
}

func TestFirstNonce(t *testing.T) {
	require := require.New(t)

	require.Equal(uint64(2), Increment.FirstNonce(2, 4))
	for i := 0; i < 20; i++ {
		require.Equal(uint64(3), Random.FirstNonce(3, 4)%4)
	}

	s, err := ParseStrategy("random")
	require.NoError(err)
	require.Equal(Random, s)
	s, err = ParseStrategy("")
	require.NoError(err)
	require.Equal(Increment, s)
	_, err = ParseStrategy("fastest")
	require.Error(err)
}
