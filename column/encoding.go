package column

import (
	"github.com/pallas-trace/pallas/compress"
)

// Encoding identifies how a column's values are packed into bytes before
// an optional compression pass. Stored in the column's descriptor
// alongside its CompressionType.
type Encoding uint8

const (
	// EncodingRaw stores every value as an uncompressed little-endian
	// uint64.
	EncodingRaw Encoding = iota
	// EncodingMasked bit-packs every value to the minimum width that
	// fits the column's observed maximum.
	EncodingMasked
	// EncodingZstd stores the raw byte stream compressed with Zstd.
	EncodingZstd
	// EncodingHistogram stores a dictionary of distinct values plus an
	// index stream, for low-cardinality columns.
	EncodingHistogram
)

// String renders the encoding name for log lines and pallas_info output.
func (e Encoding) String() string {
	switch e {
	case EncodingRaw:
		return "RAW"
	case EncodingMasked:
		return "MASKED"
	case EncodingZstd:
		return "ZSTD"
	case EncodingHistogram:
		return "HISTOGRAM"
	default:
		return "UNKNOWN"
	}
}

// histogramCardinalityRatio is the threshold below which a column is
// considered low-cardinality enough for HISTOGRAM to win: distinct
// values must be no more than this fraction of the column's length.
const histogramCardinalityRatio = 0.25

// maskedMaxBitWidth is the bit width above which MASKED packing no
// longer saves enough over RAW to be worth the unpacking cost at read
// time.
const maskedMaxBitWidth = 48

// ChooseEncoding inspects a flushed column's values and statistics and
// picks the encoding expected to produce the smallest on-disk
// representation, generalizing the teacher's format.EncodingType /
// format.CompressionType selection pair (itself driven by per-column
// cardinality and bit-width heuristics) to Pallas's four column
// encodings.
func ChooseEncoding(c *Column) (Encoding, compress.CompressionType) {
	n := c.Len()
	if n == 0 {
		return EncodingRaw, compress.CompressionNone
	}

	distinct := countDistinct(c)
	if distinct <= 1 || float64(distinct)/float64(n) <= histogramCardinalityRatio {
		return EncodingHistogram, compress.CompressionZstd
	}

	width := bitWidth(c.Stats().Max())
	if width <= maskedMaxBitWidth {
		return EncodingMasked, compress.CompressionNone
	}

	return EncodingZstd, compress.CompressionZstd
}

func countDistinct(c *Column) int {
	seen := make(map[uint64]struct{}, c.Len())
	c.Each(func(v uint64) {
		seen[v] = struct{}{}
	})
	return len(seen)
}

// bitWidth returns the number of bits needed to represent v (0 for v==0).
func bitWidth(v uint64) int {
	width := 0
	for v > 0 {
		width++
		v >>= 1
	}
	return width
}
