package compress

// CompressionType identifies which codec compressed a column's payload. It
// is stored in the column's on-disk descriptor so a reader can pick the
// matching decompressor without trying each one in turn.
type CompressionType uint8

const (
	// CompressionNone stores the payload uncompressed.
	CompressionNone CompressionType = iota
	// CompressionZstd uses Zstandard, the codec picked for HISTOGRAM and ZSTD columns.
	CompressionZstd
	// CompressionS2 uses klauspost/compress's Snappy-compatible S2 codec.
	CompressionS2
	// CompressionLZ4 uses LZ4 block compression.
	CompressionLZ4
)

// String renders the compression type for log lines and pallas_info output.
func (t CompressionType) String() string {
	switch t {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionS2:
		return "s2"
	case CompressionLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}
