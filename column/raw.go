package column

import "github.com/pallas-trace/pallas/internal/endian"

// EncodeRaw serializes every value as 8 uncompressed little-endian bytes.
func EncodeRaw(c *Column) []byte {
	out := make([]byte, 0, c.Len()*8)
	c.Each(func(v uint64) {
		out = endian.LittleEndian.AppendUint64(out, v)
	})
	return out
}

// DecodeRaw parses a RAW-encoded payload of count values.
func DecodeRaw(data []byte, count int) []uint64 {
	out := make([]uint64, count)
	for i := 0; i < count; i++ {
		out[i] = endian.LittleEndian.Uint64(data[i*8 : i*8+8])
	}
	return out
}
