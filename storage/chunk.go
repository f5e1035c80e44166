// Package storage implements the on-disk framing spec.md §4.5 defines:
// a 16-byte magic+version header followed by a sequence of typed chunks,
// used identically by GlobalArchive, Archive, and Thread files. Chunk
// framing is grounded on the teacher's section.NumericHeader Bytes()/
// Parse() fixed-header round-trip, generalized from one fixed header to
// a repeating {kind, uncompressed_size, on_disk_size, bytes} stream since
// a Pallas file holds a variable set of chunks rather than one metric
// blob's fixed sections.
package storage

import (
	"fmt"
	"io"

	"github.com/pallas-trace/pallas/internal/endian"
	"github.com/pallas-trace/pallas/internal/errs"
)

// magic is the 7-byte literal every Pallas file begins with, followed by
// a NUL pad byte to round the signature out to 8 bytes.
var magic = [8]byte{'P', 'A', 'L', 'L', 'A', 'S', 0, 0}

// FormatVersion is the single on-disk format version this package
// writes. The header carries no separate minor version: ReadFileHeader
// rejects any file whose version is higher than FormatVersion, and
// unknown chunk kinds are skipped only inside a supported version.
const FormatVersion uint32 = 1

// fileHeaderSize is the fixed 16-byte magic+version+reserved header
// every file begins with: 8 bytes magic, 4 bytes version, 4 bytes
// reserved.
const fileHeaderSize = 16

// ChunkKind identifies what a Chunk's payload holds.
type ChunkKind uint32

const (
	ChunkStringTable ChunkKind = iota
	ChunkRegionTable
	ChunkGroupTable
	ChunkCommTable
	ChunkLocationGroupTable
	ChunkLocationTable
	ChunkArchiveList
	ChunkEventTable
	ChunkSequenceTable
	ChunkLoopTable
	ChunkTimestampColumns
	ChunkDurationColumns
	ChunkAttributeBlobs
	ChunkRootToken
)

// String renders the chunk kind for pallas_info -v diagnostics.
func (k ChunkKind) String() string {
	switch k {
	case ChunkStringTable:
		return "StringTable"
	case ChunkRegionTable:
		return "RegionTable"
	case ChunkGroupTable:
		return "GroupTable"
	case ChunkCommTable:
		return "CommTable"
	case ChunkLocationGroupTable:
		return "LocationGroupTable"
	case ChunkLocationTable:
		return "LocationTable"
	case ChunkArchiveList:
		return "ArchiveList"
	case ChunkEventTable:
		return "EventTable"
	case ChunkSequenceTable:
		return "SequenceTable"
	case ChunkLoopTable:
		return "LoopTable"
	case ChunkTimestampColumns:
		return "TimestampColumns"
	case ChunkDurationColumns:
		return "DurationColumns"
	case ChunkAttributeBlobs:
		return "AttributeBlobs"
	case ChunkRootToken:
		return "RootToken"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(k))
	}
}

// chunkHeaderSize is the fixed size of a chunk's descriptor, preceding
// its payload bytes: u32 kind, u64 uncompressed_size, u64 on_disk_size.
const chunkHeaderSize = 4 + 8 + 8

// Chunk is one typed, length-prefixed section of a Pallas file.
type Chunk struct {
	Kind             ChunkKind
	UncompressedSize uint64
	Bytes            []byte // on-disk (possibly compressed) payload
}

// WriteFileHeader writes the 16-byte magic+version+reserved header every
// Pallas file begins with.
func WriteFileHeader(w io.Writer) error {
	buf := make([]byte, 0, fileHeaderSize)
	buf = append(buf, magic[:]...)
	buf = endian.LittleEndian.AppendUint32(buf, FormatVersion)
	buf = endian.LittleEndian.AppendUint32(buf, 0) // reserved

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: file header: %v", errs.ErrWriteFailed, err)
	}
	return nil
}

// ReadFileHeader reads and validates the file header, returning the
// format version found.
func ReadFileHeader(r io.Reader) (uint32, error) {
	buf := make([]byte, fileHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, fmt.Errorf("%w: file header: %v", errs.ErrReadFailed, err)
	}

	if string(buf[:6]) != "PALLAS" {
		return 0, fmt.Errorf("%w: got %q", errs.ErrBadMagic, buf[:8])
	}

	version := endian.LittleEndian.Uint32(buf[8:12])
	if version > FormatVersion {
		return 0, fmt.Errorf("%w: file is format version %d, reader supports up to %d", errs.ErrUnknownVersion, version, FormatVersion)
	}

	return version, nil
}

// WriteChunk writes one chunk's descriptor and payload.
func WriteChunk(w io.Writer, c Chunk) error {
	header := make([]byte, 0, chunkHeaderSize)
	header = endian.LittleEndian.AppendUint32(header, uint32(c.Kind))
	header = endian.LittleEndian.AppendUint64(header, c.UncompressedSize)
	header = endian.LittleEndian.AppendUint64(header, uint64(len(c.Bytes)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("%w: chunk %s header: %v", errs.ErrWriteFailed, c.Kind, err)
	}
	if _, err := w.Write(c.Bytes); err != nil {
		return fmt.Errorf("%w: chunk %s payload: %v", errs.ErrWriteFailed, c.Kind, err)
	}
	return nil
}

// ReadChunk reads one chunk's descriptor and payload. io.EOF (unwrapped)
// is returned when the reader is exhausted between chunks, signalling
// the caller that no more chunks follow; a short read mid-header or
// mid-payload is a truncated-chunk FormatError.
func ReadChunk(r io.Reader) (Chunk, error) {
	header := make([]byte, chunkHeaderSize)
	n, err := io.ReadFull(r, header)
	if err == io.EOF && n == 0 {
		return Chunk{}, io.EOF
	}
	if err != nil {
		return Chunk{}, fmt.Errorf("%w: chunk header: %v", errs.ErrTruncatedChunk, err)
	}

	kind := ChunkKind(endian.LittleEndian.Uint32(header[0:4]))
	uncompressedSize := endian.LittleEndian.Uint64(header[4:12])
	onDiskSize := endian.LittleEndian.Uint64(header[12:20])

	// Chunk bodies are stored uncompressed in format version 1 (columns
	// compress their own payloads inside the chunk), so the two declared
	// sizes must agree.
	if uncompressedSize != onDiskSize {
		return Chunk{}, fmt.Errorf("%w: chunk %s declares %d bytes uncompressed but %d on disk", errs.ErrSizeMismatch, kind, uncompressedSize, onDiskSize)
	}

	payload := make([]byte, onDiskSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Chunk{}, fmt.Errorf("%w: chunk %s payload (%d bytes): %v", errs.ErrTruncatedChunk, kind, onDiskSize, err)
	}

	return Chunk{Kind: kind, UncompressedSize: uncompressedSize, Bytes: payload}, nil
}

// ReadAllChunks reads every chunk in r until EOF, in order. Unknown chunk
// kinds are returned to the caller rather than dropped here — each file
// type's reader decides what to skip: ReadThreadFile logs a warning for a
// kind it does not know, and the archive and main-file readers ignore
// such kinds silently.
func ReadAllChunks(r io.Reader) ([]Chunk, error) {
	var chunks []Chunk
	for {
		c, err := ReadChunk(r)
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, c)
	}
}
