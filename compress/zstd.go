package compress

// ZstdCompressor is the codec column.ChooseEncoding picks for HISTOGRAM
// and ZSTD columns: dictionary-indexed bytes and wide raw values still
// carry enough redundancy for a general-purpose compressor to shrink
// further, and
// zstd's ratio beats S2/LZ4 at a speed archive flushing can absorb.
//
// Two build variants exist, same as the storage engine's own pattern:
// zstd_cgo.go links valyala/gozstd behind a build tag, zstd_pure.go falls
// back to klauspost/compress/zstd when cgo is unavailable.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a Zstd compressor with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
