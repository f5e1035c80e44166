package column

import (
	"fmt"

	"github.com/pallas-trace/pallas/compress"
	"github.com/pallas-trace/pallas/internal/debug"
)

// Flush serializes c into its chosen Encoding's byte payload, then
// compresses that payload, returning everything a storage.Chunk needs:
// the encoding, the compression type, and the compressed bytes. Writing
// failures (a codec returning an error) are fatal for the thread's
// flush, matching spec.md §4.2.
func Flush(c *Column) (Encoding, compress.CompressionType, []byte, error) {
	enc, ct := ChooseEncoding(c)

	var payload []byte
	switch enc {
	case EncodingRaw:
		payload = EncodeRaw(c)
	case EncodingMasked:
		payload = EncodeMasked(c)
	case EncodingZstd:
		payload = EncodeRaw(c)
	case EncodingHistogram:
		payload = EncodeHistogram(c)
	default:
		return 0, 0, nil, fmt.Errorf("column: unknown encoding %d", enc)
	}

	codec, err := compress.GetCodec(ct)
	if err != nil {
		return 0, 0, nil, err
	}

	compressed, err := codec.Compress(payload)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("column flush: %w", err)
	}

	stats := compress.CompressionStats{
		Algorithm:      ct,
		OriginalSize:   int64(len(payload)),
		CompressedSize: int64(len(compressed)),
	}
	debug.Logger().Debugf("column flush: enc=%s codec=%s len=%d saved=%.1f%%",
		enc, ct, c.Len(), stats.SpaceSavings())

	return enc, ct, compressed, nil
}

// OpenedColumn is the reader-side lazy view of a flushed column: the
// column descriptor (encoding, compression, count, stats) is parsed eagerly,
// but the payload is only decompressed and unpacked into values on first
// access, mirroring the teacher's two-phase decode split.
type OpenedColumn struct {
	encoding    Encoding
	compression compress.CompressionType
	compressed  []byte
	count       int
	stats       Stats

	decoded []uint64
}

// Open constructs an OpenedColumn from a flushed chunk's metadata and
// compressed bytes, without decoding the payload yet.
func Open(enc Encoding, ct compress.CompressionType, compressed []byte, count int, stats Stats) *OpenedColumn {
	return &OpenedColumn{
		encoding:    enc,
		compression: ct,
		compressed:  compressed,
		count:       count,
		stats:       stats,
	}
}

// ensureDecoded decompresses and unpacks the payload on first use.
func (o *OpenedColumn) ensureDecoded() error {
	if o.decoded != nil || o.count == 0 {
		return nil
	}

	codec, err := compress.GetCodec(o.compression)
	if err != nil {
		return err
	}

	payload, err := codec.Decompress(o.compressed)
	if err != nil {
		return fmt.Errorf("column decode: %w", err)
	}

	switch o.encoding {
	case EncodingRaw, EncodingZstd:
		if len(payload) < o.count*8 {
			return fmt.Errorf("column decode: payload holds %d bytes, need %d for %d values", len(payload), o.count*8, o.count)
		}
		o.decoded = DecodeRaw(payload, o.count)
	case EncodingMasked:
		o.decoded = DecodeMasked(payload, o.count)
	case EncodingHistogram:
		o.decoded = DecodeHistogram(payload, o.count)
	default:
		return fmt.Errorf("column: unknown encoding %d", o.encoding)
	}

	return nil
}

// At returns the value at index i, decoding the column on first call.
func (o *OpenedColumn) At(i int) (uint64, error) {
	if err := o.ensureDecoded(); err != nil {
		return 0, err
	}
	return o.decoded[i], nil
}

// Front returns the first value.
func (o *OpenedColumn) Front() (uint64, error) {
	return o.At(0)
}

// Values returns the column's decoded values as one contiguous slice,
// decoding on first call. The returned slice is the column's own backing
// store — callers borrow it for bulk numeric-array construction (the
// language-binding path) and must not modify it.
func (o *OpenedColumn) Values() ([]uint64, error) {
	if err := o.ensureDecoded(); err != nil {
		return nil, err
	}
	return o.decoded, nil
}

// Size returns the column's length without requiring a decode: it is
// stored in the column descriptor alongside the other statistics.
func (o *OpenedColumn) Size() int {
	return o.count
}

// Stats returns the column's min/max/mean/size, available without
// decoding the payload.
func (o *OpenedColumn) Stats() Stats {
	return o.stats
}
