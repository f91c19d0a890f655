// Package bits packs small unsigned values into a little-endian bit stream.
package bits

type (
	// Array is the backing storage shared by a Writer or a Reader.
	Array struct {
		Bytes []byte
	}

	// Writer appends values of arbitrary bit width.
	Writer struct {
		*Array
		bitOffset int
	}

	// Reader consumes values in the order they were written.
	Reader struct {
		*Array
		byteOffset int
		bitOffset  int
	}
)

// NewWriter creates a writer appending to arr.
func NewWriter(arr *Array) *Writer {
	return &Writer{Array: arr}
}

// NewReader creates a reader consuming arr from the start.
func NewReader(arr *Array) *Reader {
	return &Reader{Array: arr}
}

// Write appends the low `width` bits of v. Higher bits of v must be zero.
func (w *Writer) Write(width int, v uint) {
	for width > 0 {
		if w.bitOffset == 0 {
			w.Bytes = append(w.Bytes, 0)
		}
		free := 8 - w.bitOffset
		n := width
		if n > free {
			n = free
		}
		chunk := v & (1<<uint(n) - 1)
		w.Bytes[len(w.Bytes)-1] |= byte(chunk << uint(w.bitOffset))
		w.bitOffset = (w.bitOffset + n) % 8
		v >>= uint(n)
		width -= n
	}
}

// Read returns the next `width` bits.
func (r *Reader) Read(width int) uint {
	var (
		v     uint
		shift uint
	)
	for width > 0 {
		free := 8 - r.bitOffset
		n := width
		if n > free {
			n = free
		}
		cur := uint(r.Bytes[r.byteOffset]) >> uint(r.bitOffset)
		v |= (cur & (1<<uint(n) - 1)) << shift
		shift += uint(n)
		width -= n
		r.bitOffset += n
		if r.bitOffset == 8 {
			r.bitOffset = 0
			r.byteOffset++
		}
	}
	return v
}

// View returns the next `width` bits without consuming them.
func (r *Reader) View(width int) uint {
	cp := *r
	return cp.Read(width)
}

// NonReadBytes counts bytes not fully consumed, including a partially read one.
func (r *Reader) NonReadBytes() int {
	return len(r.Bytes) - r.byteOffset
}

// NonReadBits counts bits left in the stream.
func (r *Reader) NonReadBits() int {
	return r.NonReadBytes()*8 - r.bitOffset
}
