package column

import (
	"github.com/pallas-trace/pallas/internal/endian"
	"github.com/pallas-trace/pallas/internal/pool"
)

// EncodeHistogram stores a column as a dictionary of distinct values
// (in first-seen order) followed by an index stream referencing that
// dictionary, generalizing the teacher's text_encoder dictionary-style
// string interning from strings to uint64 values. Effective when the
// column's distinct-value count is much smaller than its length, which
// is common for duration columns from tightly-looping regions.
//
// Layout: u32 dictionary size, dictionary entries (u64 each), then one
// dictionary index per value, packed with EncodeMasked over the index
// stream (index values are usually small, so this compacts further).
func EncodeHistogram(c *Column) []byte {
	dict := make([]uint64, 0)
	index := make(map[uint64]int)

	indices, release := pool.GetUint64Slice(c.Len())
	defer release()

	pos := 0
	c.Each(func(v uint64) {
		idx, ok := index[v]
		if !ok {
			idx = len(dict)
			index[v] = idx
			dict = append(dict, v)
		}
		indices[pos] = uint64(idx)
		pos++
	})

	out := make([]byte, 0, 4+len(dict)*8)
	out = endian.LittleEndian.AppendUint32(out, uint32(len(dict)))
	for _, v := range dict {
		out = endian.LittleEndian.AppendUint64(out, v)
	}

	indexColumn := New()
	for _, idx := range indices {
		indexColumn.Append(idx)
	}
	out = append(out, EncodeMasked(indexColumn)...)

	return out
}

// DecodeHistogram reverses EncodeHistogram for a column of count values.
func DecodeHistogram(data []byte, count int) []uint64 {
	dictSize := int(endian.LittleEndian.Uint32(data[:4]))
	offset := 4

	dict := make([]uint64, dictSize)
	for i := 0; i < dictSize; i++ {
		dict[i] = endian.LittleEndian.Uint64(data[offset : offset+8])
		offset += 8
	}

	indices := DecodeMasked(data[offset:], count)

	out := make([]uint64, count)
	for i, idx := range indices {
		out[i] = dict[idx]
	}
	return out
}
