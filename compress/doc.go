// Package compress provides the on-disk compression codecs for column
// chunks: None, Zstd, S2, and LZ4. A column picks one at flush time
// (column.ChooseEncoding) from the encoding it produced alone: Zstd for
// HISTOGRAM and ZSTD columns, None for MASKED and empty RAW columns. S2 and
// LZ4 are never picked there; they are reachable through GetCodec and
// CreateCodec. The chosen CompressionType is stored in each column's
// descriptor so a reader picks the matching decoder without probing.
//
// # Choosing an algorithm
//
//   - None: the encoding already removed the redundancy (MASKED columns
//     are stored this way) and a codec pass would just add latency.
//   - Zstd: best ratio; used for HISTOGRAM columns, whose
//     dictionary-indexed bytes still compress well, and for ZSTD columns.
//   - S2: Snappy-compatible, faster than Zstd at a lower ratio; a
//     middle ground for RAW columns worth compressing but not archiving.
//   - LZ4: fastest decompression; useful when a reader replays many threads
//     and decode latency dominates over on-disk size.
//
// All four implement the Codec interface and are safe for concurrent use.
package compress
