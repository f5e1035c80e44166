// definitions.go serializes the defs.Definitions tables shared by both
// archive.pallas (per-process) and main.pallas (trace-wide) files:
// StringTable, RegionTable, GroupTable, CommTable.
package storage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pallas-trace/pallas/defs"
	"github.com/pallas-trace/pallas/internal/endian"
	"github.com/pallas-trace/pallas/internal/errs"
)

func encodeDefinitionChunks(d *defs.Definitions) []Chunk {
	strTable := encodeStringTable(d.Strings())
	regionTable := encodeRegionTable(d.Regions())
	groupTable := encodeGroupTable(d.Groups())
	commTable := encodeCommTable(d.Comms())

	return []Chunk{
		{Kind: ChunkStringTable, Bytes: strTable, UncompressedSize: uint64(len(strTable))},
		{Kind: ChunkRegionTable, Bytes: regionTable, UncompressedSize: uint64(len(regionTable))},
		{Kind: ChunkGroupTable, Bytes: groupTable, UncompressedSize: uint64(len(groupTable))},
		{Kind: ChunkCommTable, Bytes: commTable, UncompressedSize: uint64(len(commTable))},
	}
}

// decodeDefinitionChunks scans chunks for the four definition-table
// kinds and rebuilds a Definitions. A thread file that references a
// region or string ref beyond what's rebuilt here is caught by the
// caller validating against these tables (spec.md §9 point 3).
func decodeDefinitionChunks(chunks []Chunk) (*defs.Definitions, error) {
	d := defs.NewDefinitions()
	var haveStrings, haveRegions, haveGroups, haveComms bool

	for _, c := range chunks {
		switch c.Kind {
		case ChunkStringTable:
			if err := decodeStringTable(c.Bytes, d); err != nil {
				return nil, err
			}
			haveStrings = true
		case ChunkRegionTable:
			if err := decodeRegionTable(c.Bytes, d); err != nil {
				return nil, err
			}
			haveRegions = true
		case ChunkGroupTable:
			if err := decodeGroupTable(c.Bytes, d); err != nil {
				return nil, err
			}
			haveGroups = true
		case ChunkCommTable:
			if err := decodeCommTable(c.Bytes, d); err != nil {
				return nil, err
			}
			haveComms = true
		}
	}

	if !haveStrings || !haveRegions || !haveGroups || !haveComms {
		return nil, fmt.Errorf("%w: definitions file missing a required table chunk", errs.ErrTruncatedChunk)
	}

	return d, nil
}

func encodeStringTable(strings []string) []byte {
	var buf bytes.Buffer
	buf.Write(endian.LittleEndian.AppendUint32(nil, uint32(len(strings))))
	for _, s := range strings {
		buf.Write(endian.LittleEndian.AppendUint32(nil, uint32(len(s))))
		buf.WriteString(s)
	}
	return buf.Bytes()
}

func decodeStringTable(data []byte, d *defs.Definitions) error {
	r := bytes.NewReader(data)
	count, err := readUint32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		n, err := readUint32(r)
		if err != nil {
			return err
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("%w: string table entry: %v", errs.ErrTruncatedChunk, err)
		}
		d.AddString(string(buf))
	}
	return nil
}

func encodeRegionTable(regions []defs.Region) []byte {
	var buf bytes.Buffer
	buf.Write(endian.LittleEndian.AppendUint32(nil, uint32(len(regions))))
	for _, r := range regions {
		buf.Write(endian.LittleEndian.AppendUint32(nil, r.NameRef))
	}
	return buf.Bytes()
}

func decodeRegionTable(data []byte, d *defs.Definitions) error {
	r := bytes.NewReader(data)
	count, err := readUint32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		nameRef, err := readUint32(r)
		if err != nil {
			return err
		}
		d.AddRegion(defs.Region{NameRef: nameRef})
	}
	return nil
}

func encodeGroupTable(groups []defs.Group) []byte {
	var buf bytes.Buffer
	buf.Write(endian.LittleEndian.AppendUint32(nil, uint32(len(groups))))
	for _, g := range groups {
		buf.Write(endian.LittleEndian.AppendUint32(nil, g.NameRef))
		buf.Write(endian.LittleEndian.AppendUint32(nil, uint32(len(g.Members))))
		for _, m := range g.Members {
			buf.Write(endian.LittleEndian.AppendUint32(nil, m))
		}
	}
	return buf.Bytes()
}

func decodeGroupTable(data []byte, d *defs.Definitions) error {
	r := bytes.NewReader(data)
	count, err := readUint32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		nameRef, err := readUint32(r)
		if err != nil {
			return err
		}
		memberCount, err := readUint32(r)
		if err != nil {
			return err
		}
		members := make([]uint32, memberCount)
		for j := range members {
			m, err := readUint32(r)
			if err != nil {
				return err
			}
			members[j] = m
		}
		d.AddGroup(defs.Group{NameRef: nameRef, Members: members})
	}
	return nil
}

func encodeCommTable(comms []defs.Comm) []byte {
	var buf bytes.Buffer
	buf.Write(endian.LittleEndian.AppendUint32(nil, uint32(len(comms))))
	for _, c := range comms {
		buf.Write(endian.LittleEndian.AppendUint32(nil, c.NameRef))
		buf.Write(endian.LittleEndian.AppendUint32(nil, c.GroupRef))
	}
	return buf.Bytes()
}

func decodeCommTable(data []byte, d *defs.Definitions) error {
	r := bytes.NewReader(data)
	count, err := readUint32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		nameRef, err := readUint32(r)
		if err != nil {
			return err
		}
		groupRef, err := readUint32(r)
		if err != nil {
			return err
		}
		d.AddComm(defs.Comm{NameRef: nameRef, GroupRef: groupRef})
	}
	return nil
}
