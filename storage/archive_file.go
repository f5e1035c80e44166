// archive_file.go serializes and deserializes one Archive's header file
// (archive_<id>/archive.pallas): the file header plus its per-process
// definition tables.
package storage

import (
	"io"

	"github.com/pallas-trace/pallas/defs"
)

// WriteArchiveFile serializes d as a complete archive file to w.
func WriteArchiveFile(w io.Writer, d *defs.Definitions) error {
	if err := WriteFileHeader(w); err != nil {
		return err
	}

	for _, c := range encodeDefinitionChunks(d) {
		if err := WriteChunk(w, c); err != nil {
			return err
		}
	}

	return nil
}

// ReadArchiveFile parses an archive file from r, returning its
// per-process Definitions.
func ReadArchiveFile(r io.Reader) (*defs.Definitions, error) {
	if _, err := ReadFileHeader(r); err != nil {
		return nil, err
	}

	chunks, err := ReadAllChunks(r)
	if err != nil {
		return nil, err
	}

	return decodeDefinitionChunks(chunks)
}
