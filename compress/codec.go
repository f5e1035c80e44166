package compress

import "fmt"

// Compressor compresses a chunk's encoded bytes before they are written to
// disk.
type Compressor interface {
	// Compress compresses data and returns the compressed result. The
	// returned slice is newly allocated; data is not modified.
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses a Compressor. Implementations must tolerate a
// zero-length input, since an empty column still writes an (empty) chunk.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions. Every on-disk compression scheme Pallas
// supports implements Codec.
type Codec interface {
	Compressor
	Decompressor
}

// CompressionStats summarizes one column's flush, logged at verbose
// level when a thread file is written.
type CompressionStats struct {
	Algorithm           CompressionType
	OriginalSize        int64
	CompressedSize      int64
	CompressionTimeNs   int64
	DecompressionTimeNs int64
}

// CompressionRatio returns CompressedSize/OriginalSize; 0 if OriginalSize is 0.
func (s CompressionStats) CompressionRatio() float64 {
	if s.OriginalSize == 0 {
		return 0.0
	}

	return float64(s.CompressedSize) / float64(s.OriginalSize)
}

// SpaceSavings returns the space saved as a percentage (0-100).
func (s CompressionStats) SpaceSavings() float64 {
	return (1.0 - s.CompressionRatio()) * 100.0
}

// CreateCodec builds a fresh Codec for the given compression type. target
// names the caller for error messages (e.g. "column flush", "thread file").
func CreateCodec(compressionType CompressionType, target string) (Codec, error) {
	switch compressionType {
	case CompressionNone:
		return NewNoOpCompressor(), nil
	case CompressionZstd:
		return NewZstdCompressor(), nil
	case CompressionS2:
		return NewS2Compressor(), nil
	case CompressionLZ4:
		return NewLZ4Compressor(), nil
	default:
		return nil, fmt.Errorf("invalid %s compression: %s", target, compressionType)
	}
}

var builtinCodecs = map[CompressionType]Codec{
	CompressionNone: NewNoOpCompressor(),
	CompressionZstd: NewZstdCompressor(),
	CompressionS2:   NewS2Compressor(),
	CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec retrieves a shared, stateless Codec instance for compressionType.
// Safe for concurrent use: none of the builtin codecs hold per-call state
// outside their own internal pools.
func GetCodec(compressionType CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
}
