// Package fast is an unchecked byte cursor used by the binary codecs.
// Reads past the end panic; callers recover at the codec boundary.
package fast

import "io"

// Writer appends to a byte slice.
type Writer struct {
	buf []byte
}

// Reader consumes a byte slice from the front.
type Reader struct {
	buf    []byte
	offset int
}

// NewWriter creates a writer appending to bb.
func NewWriter(bb []byte) *Writer {
	return &Writer{buf: bb}
}

// NewReader creates a reader over bb.
func NewReader(bb []byte) *Reader {
	return &Reader{buf: bb}
}

// WriteByte appends a single byte.
func (w *Writer) WriteByte(v byte) {
	w.buf = append(w.buf, v)
}

// Write appends v.
func (w *Writer) Write(v []byte) {
	w.buf = append(w.buf, v...)
}

// Bytes returns the written data. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Read returns the next n bytes. The result aliases the source slice.
func (r *Reader) Read(n int) []byte {
	if n < 0 || r.offset+n > len(r.buf) {
		panic(io.ErrUnexpectedEOF)
	}
	res := r.buf[r.offset : r.offset+n]
	r.offset += n
	return res
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() byte {
	res := r.buf[r.offset]
	r.offset++
	return res
}

// Position is the number of consumed bytes.
func (r *Reader) Position() int {
	return r.offset
}

// Empty reports whether every byte was consumed.
func (r *Reader) Empty() bool {
	return r.offset == len(r.buf)
}
