// Package cser is a canonical compact binary encoding.
//
// Values are split in two streams: payload bytes go to a byte stream while
// length prefixes and booleans go to a bit stream. Every value has exactly
// one valid encoding; decoders reject padding, unused bits and trailing data.
package cser

import (
	"errors"

	"github.com/rony4d/go-powchain/utils/bits"
	"github.com/rony4d/go-powchain/utils/fast"
)

var (
	ErrNonCanonicalEncoding = errors.New("non canonical encoding")
	ErrMalformedEncoding    = errors.New("malformed encoding")
	ErrTooLargeAlloc        = errors.New("too large allocation")
)

// MaxAlloc bounds any single length-prefixed allocation while decoding.
const MaxAlloc = 100 * 1024

// Writer orchestrates writing to the bits stream and the bytes stream.
type Writer struct {
	BitsW  *bits.Writer
	BytesW *fast.Writer
}

// Reader consumes what a Writer produced.
type Reader struct {
	BitsR  *bits.Reader
	BytesR *fast.Reader
}

// NewWriter creates a ready-to-use CSER writer.
func NewWriter() *Writer {
	return &Writer{
		BitsW:  bits.NewWriter(&bits.Array{Bytes: make([]byte, 0, 32)}),
		BytesW: fast.NewWriter(make([]byte, 0, 256)),
	}
}

// writeLE writes v little-endian using the fewest bytes, but at least minSize.
func writeLE(w *fast.Writer, v uint64, minSize int) (size int) {
	for size < minSize || v != 0 {
		w.WriteByte(byte(v))
		v >>= 8
		size++
	}
	return size
}

func readLE(r *fast.Reader, size int) uint64 {
	buf := r.Read(size)
	var v uint64
	for i, b := range buf {
		v |= uint64(b) << uint(8*i)
	}
	if size > 1 && buf[size-1] == 0 {
		panic(ErrNonCanonicalEncoding)
	}
	return v
}

// writeSized stores the byte length (minus minSize) in the bit stream.
func (w *Writer) writeSized(minSize, sizeBits int, v uint64) {
	size := writeLE(w.BytesW, v, minSize)
	w.BitsW.Write(sizeBits, uint(size-minSize))
}

func (r *Reader) readSized(minSize, sizeBits int) uint64 {
	size := int(r.BitsR.Read(sizeBits)) + minSize
	return readLE(r.BytesR, size)
}

// U8 writes a single byte directly (no length prefix needed).
func (w *Writer) U8(v uint8) {
	w.BytesW.WriteByte(v)
}

// U8 reads a single byte.
func (r *Reader) U8() uint8 {
	return r.BytesR.ReadByte()
}

// U32 writes v with its byte length in the bits stream.
func (w *Writer) U32(v uint32) {
	w.writeSized(1, 2, uint64(v))
}

// U32 reads a value written by Writer.U32.
func (r *Reader) U32() uint32 {
	return uint32(r.readSized(1, 2))
}

// U64 writes v with its byte length in the bits stream.
func (w *Writer) U64(v uint64) {
	w.writeSized(1, 3, v)
}

// U64 reads a value written by Writer.U64.
func (r *Reader) U64() uint64 {
	return r.readSized(1, 3)
}

// U56 is used for lengths. Zero takes no payload bytes.
func (w *Writer) U56(v uint64) {
	const max = 1<<(8*7) - 1
	if v > max {
		panic(ErrTooLargeAlloc)
	}
	w.writeSized(0, 3, v)
}

// U56 reads a value written by Writer.U56.
func (r *Reader) U56() uint64 {
	return r.readSized(0, 3)
}

// Bool writes a single bit.
func (w *Writer) Bool(v bool) {
	var b uint
	if v {
		b = 1
	}
	w.BitsW.Write(1, b)
}

// Bool reads a single bit.
func (r *Reader) Bool() bool {
	return r.BitsR.Read(1) != 0
}

// FixedBytes writes v without a length prefix; the reader must know the size.
func (w *Writer) FixedBytes(v []byte) {
	w.BytesW.Write(v)
}

// FixedBytes fills v from the bytes stream. The length is known to both sides.
func (r *Reader) FixedBytes(v []byte) {
	copy(v, r.BytesR.Read(len(v)))
}

// SliceBytes writes a length-prefixed byte slice.
func (w *Writer) SliceBytes(v []byte) {
	w.U56(uint64(len(v)))
	w.FixedBytes(v)
}

// SliceBytes reads a length-prefixed slice of at most maxLen bytes.
func (r *Reader) SliceBytes(maxLen int) []byte {
	size := r.U56()
	if size > uint64(maxLen) {
		panic(ErrTooLargeAlloc)
	}
	buf := make([]byte, size)
	r.FixedBytes(buf)
	return buf
}
