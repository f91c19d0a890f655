package fast

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterReader(t *testing.T) {
	require := require.New(t)

	w := NewWriter(make([]byte, 0, 4))
	w.WriteByte(0x01)
	w.Write([]byte{0x02, 0x03, 0x04, 0x05})
	require.Equal([]byte{1, 2, 3, 4, 5}, w.Bytes())

	r := NewReader(w.Bytes())
	require.False(r.Empty())
	require.Equal(byte(1), r.ReadByte())
	require.Equal([]byte{2, 3}, r.Read(2))
	require.Equal(3, r.Position())
	require.Equal([]byte{4, 5}, r.Read(2))
	require.True(r.Empty())
}

func TestReaderOverrun(t *testing.T) {
	r := NewReader([]byte{0x01})
	r.ReadByte()
	require.Panics(t, func() { r.ReadByte() })
	require.Panics(t, func() { r.Read(1) })
}
