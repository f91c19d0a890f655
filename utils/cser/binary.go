package cser

import (
	"github.com/rony4d/go-powchain/utils/bits"
	"github.com/rony4d/go-powchain/utils/fast"
)

// MarshalBinaryAdapter runs marshalCser and packs both streams as
// body || bit stream || reversed varint(len(bit stream)).
func MarshalBinaryAdapter(marshalCser func(*Writer) error) ([]byte, error) {
	w := NewWriter()
	if err := marshalCser(w); err != nil {
		return nil, err
	}

	out := fast.NewWriter(w.BytesW.Bytes())
	out.Write(w.BitsW.Bytes)

	size := fast.NewWriter(make([]byte, 0, 4))
	writeVarint(size, uint64(len(w.BitsW.Bytes)))
	out.Write(reversed(size.Bytes()))
	return out.Bytes(), nil
}

// UnmarshalBinaryAdapter splits raw into streams, runs unmarshalCser and
// checks that nothing was left unread.
func UnmarshalBinaryAdapter(raw []byte, unmarshalCser func(*Reader) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && (e == ErrNonCanonicalEncoding || e == ErrTooLargeAlloc) {
				err = e
				return
			}
			err = ErrMalformedEncoding
		}
	}()

	sizeR := fast.NewReader(reversed(tail(raw, 9)))
	bitsSize := readVarint(sizeR)
	raw = raw[:len(raw)-sizeR.Position()]
	if uint64(len(raw)) < bitsSize {
		return ErrMalformedEncoding
	}
	split := uint64(len(raw)) - bitsSize

	r := &Reader{
		BitsR:  bits.NewReader(&bits.Array{Bytes: raw[split:]}),
		BytesR: fast.NewReader(raw[:split]),
	}
	if err := unmarshalCser(r); err != nil {
		return err
	}

	if r.BitsR.NonReadBits() >= 8 {
		return ErrNonCanonicalEncoding
	}
	if r.BitsR.Read(r.BitsR.NonReadBits()) != 0 {
		return ErrNonCanonicalEncoding
	}
	if !r.BytesR.Empty() {
		return ErrNonCanonicalEncoding
	}
	return nil
}

// writeVarint is a base-128 varint whose final byte carries the 0x80 flag.
func writeVarint(w *fast.Writer, v uint64) {
	for {
		chunk := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			w.WriteByte(chunk | 0x80)
			return
		}
		w.WriteByte(chunk)
	}
}

func readVarint(r *fast.Reader) uint64 {
	var v uint64
	for i := 0; ; i++ {
		chunk := r.ReadByte()
		v |= uint64(chunk&0x7f) << uint(7*i)
		if chunk&0x80 != 0 {
			if i > 0 && chunk&0x7f == 0 {
				panic(ErrNonCanonicalEncoding)
			}
			return v
		}
	}
}

func tail(b []byte, n int) []byte {
	if len(b) > n {
		return b[len(b)-n:]
	}
	return b
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
