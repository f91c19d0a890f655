package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDigestIsDoubleSHA256(t *testing.T) {
	require := require.New(t)

	first := sha256.Sum256([]byte("abc"))
	want := sha256.Sum256(first[:])

	got := Default.Digest([]byte("abc"))
	require.Equal(want[:], got.Bytes())

	// multi-part input digests the concatenation
	require.Equal(got, Default.Digest([]byte("a"), []byte("bc")))
	require.Equal(got, Default.Digest([]byte("ab"), nil, []byte("c")))
}

func TestSignVerify(t *testing.T) {
	require := require.New(t)

	key := FakeKey(1)
	pub, err := Default.PublicKey(key)
	require.NoError(err)
	require.Len(pub, PubKeySize)

	msg := []byte("send 10 to bob")
	sig, err := Default.Sign(msg, key)
	require.NoError(err)
	require.Len(sig, SignatureSize)

	require.True(Default.Verify(msg, sig, pub))
	require.False(Default.Verify([]byte("send 11 to bob"), sig, pub))

	otherPub, err := Default.PublicKey(FakeKey(2))
	require.NoError(err)
	require.False(Default.Verify(msg, sig, otherPub))
}

func TestVerifyFailsClosed(t *testing.T) {
	require := require.New(t)

	key := FakeKey(3)
	pub, err := Default.PublicKey(key)
	require.NoError(err)
	msg := []byte("m")
	sig, err := Default.Sign(msg, key)
	require.NoError(err)

	tests := []struct {
		name string
		sig  []byte
		pub  []byte
	}{
		{"nil signature", nil, pub},
		{"short signature", sig[:63], pub},
		{"long signature", append(append([]byte{}, sig...), 0), pub},
		{"nil key", sig, nil},
		{"zero key", sig, make([]byte, PubKeySize)},
		{"bad prefix", sig, append([]byte{0x05}, pub[1:]...)},
		{"zero signature", make([]byte, SignatureSize), pub},
	}
	for _, tt := range tests {
		require.False(Default.Verify(msg, tt.sig, tt.pub), tt.name)
	}
}

func TestInvalidKey(t *testing.T) {
	require := require.New(t)

	_, err := Default.Sign([]byte("m"), nil)
	require.ErrorIs(err, ErrInvalidKey)

	_, err = Default.PublicKey(&ecdsa.PrivateKey{})
	require.ErrorIs(err, ErrInvalidKey)

	_, err = Default.Sign([]byte("m"), &ecdsa.PrivateKey{D: big.NewInt(0)})
	require.ErrorIs(err, ErrInvalidKey)

	_, err = ParsePrivateKey("zz")
	require.ErrorIs(err, ErrInvalidKey)
}

func TestFakeKeysAreDeterministic(t *testing.T) {
	require := require.New(t)

	_, a0 := FakeAccount(0)
	_, a0again := FakeAccount(0)
	_, a1 := FakeAccount(1)
	require.Equal(a0, a0again)
	require.NotEqual(a0, a1)
	require.False(a0.IsCoinbase())
}
