//go:build cgo

package compress

import (
	"github.com/valyala/gozstd"
)

// Compress compresses data with gozstd's cgo binding at level 3, the same
// level the pure-Go fallback's zstd.SpeedDefault targets.
func (c ZstdCompressor) Compress(data []byte) ([]byte, error) {
	return gozstd.CompressLevel(nil, data, 3), nil
}

// Decompress reverses Compress.
func (c ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return gozstd.Decompress(nil, data)
}
