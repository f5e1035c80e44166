package compress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressionType_String(t *testing.T) {
	tests := []struct {
		name     string
		cType    CompressionType
		expected string
	}{
		{"none", CompressionNone, "none"},
		{"zstd", CompressionZstd, "zstd"},
		{"s2", CompressionS2, "s2"},
		{"lz4", CompressionLZ4, "lz4"},
		{"unknown", CompressionType(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cType.String())
		})
	}
}

func TestCreateCodec(t *testing.T) {
	for _, ct := range []CompressionType{CompressionNone, CompressionZstd, CompressionS2, CompressionLZ4} {
		codec, err := CreateCodec(ct, "test")
		require.NoError(t, err)
		require.NotNil(t, codec)
	}

	_, err := CreateCodec(CompressionType(99), "test")
	assert.Error(t, err)
}

func TestGetCodec(t *testing.T) {
	codec, err := GetCodec(CompressionZstd)
	require.NoError(t, err)
	require.NotNil(t, codec)

	_, err = GetCodec(CompressionType(99))
	assert.Error(t, err)
}

func TestCodecRoundTrip(t *testing.T) {
	data := []byte("pallas thread chunk payload, repeated repeated repeated repeated")

	for _, ct := range []CompressionType{CompressionNone, CompressionZstd, CompressionS2, CompressionLZ4} {
		t.Run(ct.String(), func(t *testing.T) {
			codec, err := GetCodec(ct)
			require.NoError(t, err)

			compressed, err := codec.Compress(data)
			require.NoError(t, err)

			decompressed, err := codec.Decompress(compressed)
			require.NoError(t, err)

			assert.Equal(t, data, decompressed)
		})
	}
}

func TestCodecRoundTrip_Empty(t *testing.T) {
	for _, ct := range []CompressionType{CompressionNone, CompressionZstd, CompressionS2, CompressionLZ4} {
		t.Run(ct.String(), func(t *testing.T) {
			codec, err := GetCodec(ct)
			require.NoError(t, err)

			compressed, err := codec.Compress(nil)
			require.NoError(t, err)

			decompressed, err := codec.Decompress(compressed)
			require.NoError(t, err)

			assert.Empty(t, decompressed)
		})
	}
}

func TestCompressionStats(t *testing.T) {
	stats := CompressionStats{
		Algorithm:      CompressionZstd,
		OriginalSize:   1000,
		CompressedSize: 250,
	}

	assert.InDelta(t, 0.25, stats.CompressionRatio(), 0.0001)
	assert.InDelta(t, 75.0, stats.SpaceSavings(), 0.0001)
}

func TestCompressionStats_ZeroOriginalSize(t *testing.T) {
	stats := CompressionStats{OriginalSize: 0}
	assert.Equal(t, 0.0, stats.CompressionRatio())
}
