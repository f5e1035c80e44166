package column

// EncodeMasked bit-packs every value to the minimum width that fits the
// column's maximum, generalizing the bit-writer discipline the teacher's
// Gorilla encoder uses for its sign/exponent/mantissa fields to a single
// fixed-width field repeated once per value. The payload is a 1-byte
// width header followed by the packed bitstream, LSB-first within each
// byte.
func EncodeMasked(c *Column) []byte {
	width := bitWidth(c.Stats().Max())
	if width == 0 {
		width = 1
	}

	out := make([]byte, 1, 1+(c.Len()*width+7)/8)
	out[0] = byte(width)

	w := newBitWriter(out[1:])
	c.Each(func(v uint64) {
		w.write(v, width)
	})

	return append(out[:1], w.bytes()...)
}

// DecodeMasked unpacks a MASKED payload of count values.
func DecodeMasked(data []byte, count int) []uint64 {
	width := int(data[0])
	r := newBitReader(data[1:])

	out := make([]uint64, count)
	for i := 0; i < count; i++ {
		out[i] = r.read(width)
	}
	return out
}

type bitWriter struct {
	buf    []byte
	bitPos int
}

func newBitWriter(prealloc []byte) *bitWriter {
	return &bitWriter{buf: prealloc[:0]}
}

// write appends the low `width` bits of v, LSB-first, growing buf as needed.
func (w *bitWriter) write(v uint64, width int) {
	for i := 0; i < width; i++ {
		byteIdx := w.bitPos / 8
		for byteIdx >= len(w.buf) {
			w.buf = append(w.buf, 0)
		}

		if v&(1<<uint(i)) != 0 {
			w.buf[byteIdx] |= 1 << uint(w.bitPos%8)
		}
		w.bitPos++
	}
}

func (w *bitWriter) bytes() []byte {
	return w.buf
}

type bitReader struct {
	buf    []byte
	bitPos int
}

func newBitReader(buf []byte) *bitReader {
	return &bitReader{buf: buf}
}

func (r *bitReader) read(width int) uint64 {
	var v uint64
	for i := 0; i < width; i++ {
		byteIdx := r.bitPos / 8
		if r.buf[byteIdx]&(1<<uint(r.bitPos%8)) != 0 {
			v |= 1 << uint(i)
		}
		r.bitPos++
	}
	return v
}
