// global_file.go serializes and deserializes the trace-level main.pallas
// file: the file header, the trace-wide definition tables, the
// location-group/location tree, and the list of Archive descriptors.
package storage

import (
	"bytes"
	"io"

	"github.com/pallas-trace/pallas/defs"
	"github.com/pallas-trace/pallas/internal/endian"
)

// WriteGlobalArchiveFile serializes d's definitions, the location-
// group/location tree, and the archive-id list as a complete
// main.pallas file to w.
func WriteGlobalArchiveFile(w io.Writer, d *defs.Definitions, locationGroups []defs.LocationGroup, locations []defs.Location, archiveIDs []uint32) error {
	if err := WriteFileHeader(w); err != nil {
		return err
	}

	chunks := encodeDefinitionChunks(d)
	chunks = append(chunks,
		encodeLocationGroupChunk(locationGroups),
		encodeLocationChunk(locations),
		encodeArchiveListChunk(archiveIDs),
	)

	for _, c := range chunks {
		if err := WriteChunk(w, c); err != nil {
			return err
		}
	}

	return nil
}

// GlobalArchiveData is the result of reading a main.pallas file: the
// trace-wide definitions, location tree, and the ids of every Archive
// the trace holds (each loaded separately from its own archive.pallas).
type GlobalArchiveData struct {
	Definitions    *defs.Definitions
	LocationGroups []defs.LocationGroup
	Locations      []defs.Location
	ArchiveIDs     []uint32
}

// ReadGlobalArchiveFile parses a main.pallas file from r.
func ReadGlobalArchiveFile(r io.Reader) (*GlobalArchiveData, error) {
	if _, err := ReadFileHeader(r); err != nil {
		return nil, err
	}

	chunks, err := ReadAllChunks(r)
	if err != nil {
		return nil, err
	}

	d, err := decodeDefinitionChunks(chunks)
	if err != nil {
		return nil, err
	}

	data := &GlobalArchiveData{Definitions: d}

	for _, c := range chunks {
		switch c.Kind {
		case ChunkLocationGroupTable:
			data.LocationGroups, err = decodeLocationGroupChunk(c.Bytes)
		case ChunkLocationTable:
			data.Locations, err = decodeLocationChunk(c.Bytes)
		case ChunkArchiveList:
			data.ArchiveIDs, err = decodeArchiveListChunk(c.Bytes)
		}
		if err != nil {
			return nil, err
		}
	}

	return data, nil
}

func encodeLocationGroupChunk(groups []defs.LocationGroup) Chunk {
	var buf bytes.Buffer
	buf.Write(endian.LittleEndian.AppendUint32(nil, uint32(len(groups))))
	for _, g := range groups {
		buf.Write(endian.LittleEndian.AppendUint32(nil, g.NameRef))
		buf.Write(endian.LittleEndian.AppendUint32(nil, g.Parent))
		buf.WriteByte(byte(g.Kind))
	}
	return Chunk{Kind: ChunkLocationGroupTable, Bytes: buf.Bytes(), UncompressedSize: uint64(buf.Len())}
}

func decodeLocationGroupChunk(data []byte) ([]defs.LocationGroup, error) {
	r := bytes.NewReader(data)
	count, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]defs.LocationGroup, count)
	for i := range out {
		nameRef, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		parent, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		out[i] = defs.LocationGroup{NameRef: nameRef, Parent: parent, Kind: defs.LocationGroupKind(kind)}
	}
	return out, nil
}

func encodeLocationChunk(locations []defs.Location) Chunk {
	var buf bytes.Buffer
	buf.Write(endian.LittleEndian.AppendUint32(nil, uint32(len(locations))))
	for _, l := range locations {
		buf.Write(endian.LittleEndian.AppendUint32(nil, l.NameRef))
		buf.Write(endian.LittleEndian.AppendUint32(nil, l.Parent))
		buf.WriteByte(byte(l.Kind))
	}
	return Chunk{Kind: ChunkLocationTable, Bytes: buf.Bytes(), UncompressedSize: uint64(buf.Len())}
}

func decodeLocationChunk(data []byte) ([]defs.Location, error) {
	r := bytes.NewReader(data)
	count, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]defs.Location, count)
	for i := range out {
		nameRef, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		parent, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		out[i] = defs.Location{NameRef: nameRef, Parent: parent, Kind: defs.LocationKind(kind)}
	}
	return out, nil
}

func encodeArchiveListChunk(archiveIDs []uint32) Chunk {
	var buf bytes.Buffer
	buf.Write(endian.LittleEndian.AppendUint32(nil, uint32(len(archiveIDs))))
	for _, id := range archiveIDs {
		buf.Write(endian.LittleEndian.AppendUint32(nil, id))
	}
	return Chunk{Kind: ChunkArchiveList, Bytes: buf.Bytes(), UncompressedSize: uint64(buf.Len())}
}

func decodeArchiveListChunk(data []byte) ([]uint32, error) {
	r := bytes.NewReader(data)
	count, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, count)
	for i := range out {
		id, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}
