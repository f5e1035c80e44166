// thread_file.go serializes and deserializes one Thread's grammar and
// columns to/from the archive_<id>/thread_<tid>.pallas chunk stream
// spec.md §4.5 specifies. Grounded on blob.NumericDecoder's
// NewNumericDecoder/Decode two-phase split: ReadThreadFile parses every
// chunk's metadata eagerly but leaves column payloads compressed until
// an OpenedColumn's first access.
package storage

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/pallas-trace/pallas/column"
	"github.com/pallas-trace/pallas/compress"
	"github.com/pallas-trace/pallas/defs"
	"github.com/pallas-trace/pallas/grammar"
	"github.com/pallas-trace/pallas/internal/debug"
	"github.com/pallas-trace/pallas/internal/endian"
	"github.com/pallas-trace/pallas/internal/errs"
	"github.com/pallas-trace/pallas/token"
)

// columnOwnerKind distinguishes which dense table a serialized column
// belongs to, the "kind_id" half of spec.md §4.5's per-column
// "(kind_id, owner_id, encoding, length)" descriptor.
type columnOwnerKind uint8

const (
	ownerEvent columnOwnerKind = iota
	ownerSequence
)

// ReadEventSummary is the reader-side counterpart of grammar.EventSummary:
// its Timestamps/Durations are lazily-decoded OpenedColumns rather than
// growable write-side Columns.
type ReadEventSummary struct {
	Event       grammar.Event
	Timestamps  *column.OpenedColumn
	Durations   *column.OpenedColumn
	Attributes  []byte
	Occurrences uint64
}

// ReadSequence is the reader-side counterpart of grammar.Sequence.
type ReadSequence struct {
	Body       []token.Token
	Timestamps *column.OpenedColumn
	Durations  *column.OpenedColumn
}

// ReadLoop is the reader-side counterpart of grammar.Loop.
type ReadLoop struct {
	Repeated        token.Token
	StartOffsets    *column.OpenedColumn
	IterationCounts *column.OpenedColumn
}

// ThreadTables holds one thread's fully-parsed, lazily-decoded grammar,
// as read back from a thread_<tid>.pallas file.
type ThreadTables struct {
	Events    []*ReadEventSummary
	Sequences []*ReadSequence
	Loops     []*ReadLoop
}

// WriteThreadFile serializes tables and rootToken as a complete thread
// file, including the file header, to w.
func WriteThreadFile(w io.Writer, tables *grammar.Tables, rootToken token.Token) error {
	if err := WriteFileHeader(w); err != nil {
		return err
	}

	chunks, err := buildThreadChunks(tables, rootToken)
	if err != nil {
		return err
	}

	for _, c := range chunks {
		if err := WriteChunk(w, c); err != nil {
			return err
		}
	}

	return nil
}

func buildThreadChunks(tables *grammar.Tables, rootToken token.Token) ([]Chunk, error) {
	eventTable, attrBlobs := encodeEventTable(tables.Events())
	seqTable := encodeSequenceTable(tables.Sequences())
	loopTable, err := encodeLoopTable(tables.Loops())
	if err != nil {
		return nil, err
	}

	tsColumns, err := encodeColumnChunk(tables, func(c columnSource) *column.Column { return c.timestamps })
	if err != nil {
		return nil, err
	}
	durColumns, err := encodeColumnChunk(tables, func(c columnSource) *column.Column { return c.durations })
	if err != nil {
		return nil, err
	}

	return []Chunk{
		{Kind: ChunkEventTable, Bytes: eventTable, UncompressedSize: uint64(len(eventTable))},
		rootTokenChunk(rootToken),
		{Kind: ChunkSequenceTable, Bytes: seqTable, UncompressedSize: uint64(len(seqTable))},
		{Kind: ChunkLoopTable, Bytes: loopTable, UncompressedSize: uint64(len(loopTable))},
		{Kind: ChunkTimestampColumns, Bytes: tsColumns, UncompressedSize: uint64(len(tsColumns))},
		{Kind: ChunkDurationColumns, Bytes: durColumns, UncompressedSize: uint64(len(durColumns))},
		{Kind: ChunkAttributeBlobs, Bytes: attrBlobs, UncompressedSize: uint64(len(attrBlobs))},
	}, nil
}

// rootTokenChunk holds the thread's root Sequence token in its own tiny
// chunk, since it is metadata about the thread rather than a row in any
// of the dense tables.
func rootTokenChunk(rootToken token.Token) Chunk {
	buf := endian.LittleEndian.AppendUint32(nil, uint32(rootToken))
	return Chunk{Kind: ChunkRootToken, Bytes: buf, UncompressedSize: uint64(len(buf))}
}

type columnSource struct {
	timestamps *column.Column
	durations  *column.Column
}

func encodeEventTable(events []*grammar.EventSummary) (table []byte, attrBlobs []byte) {
	var tb, ab bytes.Buffer

	tb.Write(endian.LittleEndian.AppendUint32(nil, uint32(len(events))))
	ab.Write(endian.LittleEndian.AppendUint32(nil, uint32(len(events))))

	for _, ev := range events {
		tb.WriteByte(byte(ev.Event.Type))
		tb.Write(endian.LittleEndian.AppendUint32(nil, ev.Event.RegionRef))
		tb.Write(endian.LittleEndian.AppendUint64(nil, ev.Event.RefParam))
		tb.Write(endian.LittleEndian.AppendUint32(nil, uint32(len(ev.Event.Params))))
		tb.Write(ev.Event.Params)
		tb.Write(endian.LittleEndian.AppendUint64(nil, ev.Occurrences))

		ab.Write(endian.LittleEndian.AppendUint32(nil, uint32(len(ev.Attributes))))
		ab.Write(ev.Attributes)
	}

	return tb.Bytes(), ab.Bytes()
}

func encodeSequenceTable(sequences []*grammar.Sequence) []byte {
	var buf bytes.Buffer
	buf.Write(endian.LittleEndian.AppendUint32(nil, uint32(len(sequences))))

	for _, seq := range sequences {
		buf.Write(endian.LittleEndian.AppendUint32(nil, uint32(len(seq.Body))))
		for _, tok := range seq.Body {
			buf.Write(endian.LittleEndian.AppendUint32(nil, uint32(tok)))
		}
	}

	return buf.Bytes()
}

func encodeLoopTable(loops []*grammar.Loop) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(endian.LittleEndian.AppendUint32(nil, uint32(len(loops))))

	for _, l := range loops {
		buf.Write(endian.LittleEndian.AppendUint32(nil, uint32(l.Repeated)))
		if err := encodeInlineColumn(&buf, l.StartOffsets); err != nil {
			return nil, err
		}
		if err := encodeInlineColumn(&buf, l.IterationCounts); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// encodeInlineColumn writes one column's descriptor and payload directly
// into buf, used for Loop bookkeeping columns (StartOffsets,
// IterationCounts) which aren't timestamps or durations and so don't
// belong in the TimestampColumns/DurationColumns chunks spec.md §4.5
// names for per-event/per-sequence occurrence data.
func encodeInlineColumn(buf *bytes.Buffer, c *column.Column) error {
	enc, ct, payload, err := column.Flush(c)
	if err != nil {
		return err
	}

	stats := c.Stats()
	buf.WriteByte(byte(enc))
	buf.WriteByte(byte(ct))
	buf.Write(endian.LittleEndian.AppendUint32(nil, uint32(c.Len())))
	buf.Write(endian.LittleEndian.AppendUint64(nil, stats.Min()))
	buf.Write(endian.LittleEndian.AppendUint64(nil, stats.Max()))
	buf.Write(endian.LittleEndian.AppendUint64(nil, mathFloatBits(stats.Mean())))
	buf.Write(endian.LittleEndian.AppendUint32(nil, uint32(len(payload))))
	buf.Write(payload)
	return nil
}

func decodeInlineColumn(r *bytes.Reader) (*column.OpenedColumn, error) {
	var head [2]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, fmt.Errorf("%w: inline column header: %v", errs.ErrTruncatedChunk, err)
	}
	enc := column.Encoding(head[0])
	ct := compress.CompressionType(head[1])

	count, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	min, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	max, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	meanBits, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	payloadLen, err := readUint32(r)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: inline column payload: %v", errs.ErrTruncatedChunk, err)
	}

	stats := column.NewStats(min, max, mathFloatFromBits(meanBits), uint64(count))
	return column.Open(enc, ct, payload, int(count), stats), nil
}

// encodeColumnChunk builds the TimestampColumns or DurationColumns chunk
// (selected by pick) as a concatenation of descriptor+payload entries,
// events first in id order, then sequences in id order — matching the
// order ReadThreadFile expects when it re-slots columns back onto their
// owners.
func encodeColumnChunk(tables *grammar.Tables, pick func(columnSource) *column.Column) ([]byte, error) {
	var buf bytes.Buffer

	for id, ev := range tables.Events() {
		col := pick(columnSource{timestamps: ev.Timestamps, durations: ev.Durations})
		if err := encodeColumnEntry(&buf, ownerEvent, uint32(id), col); err != nil {
			return nil, err
		}
	}
	for id, seq := range tables.Sequences() {
		col := pick(columnSource{timestamps: seq.Timestamps, durations: seq.Durations})
		if err := encodeColumnEntry(&buf, ownerSequence, uint32(id), col); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func encodeColumnEntry(buf *bytes.Buffer, kind columnOwnerKind, ownerID uint32, c *column.Column) error {
	buf.WriteByte(byte(kind))
	buf.Write(endian.LittleEndian.AppendUint32(nil, ownerID))
	return encodeInlineColumn(buf, c)
}

// ReadThreadFile parses a complete thread file from r: the file header,
// then every required chunk. Missing required chunks are fatal; unknown
// chunk kinds are skipped (spec.md §4.5).
func ReadThreadFile(r io.Reader) (*ThreadTables, token.Token, error) {
	if _, err := ReadFileHeader(r); err != nil {
		return nil, token.Invalid(), err
	}

	chunks, err := ReadAllChunks(r)
	if err != nil {
		return nil, token.Invalid(), err
	}

	var (
		eventTable, seqTable, loopTable, tsColumns, durColumns, attrBlobs []byte
		rootToken                                                        = token.Invalid()
		haveEventTable, haveSeqTable, haveLoopTable                      bool
		haveTsColumns, haveDurColumns, haveAttrBlobs                     bool
	)

	for _, c := range chunks {
		switch c.Kind {
		case ChunkEventTable:
			eventTable, haveEventTable = c.Bytes, true
		case ChunkSequenceTable:
			seqTable, haveSeqTable = c.Bytes, true
		case ChunkLoopTable:
			loopTable, haveLoopTable = c.Bytes, true
		case ChunkTimestampColumns:
			tsColumns, haveTsColumns = c.Bytes, true
		case ChunkDurationColumns:
			durColumns, haveDurColumns = c.Bytes, true
		case ChunkAttributeBlobs:
			attrBlobs, haveAttrBlobs = c.Bytes, true
		case ChunkRootToken:
			if len(c.Bytes) >= 4 {
				rootToken = token.Token(endian.LittleEndian.Uint32(c.Bytes))
			}
		default:
			debug.Logger().Warnf("thread file: skipping unknown chunk kind %s", c.Kind)
			continue
		}
	}

	if !haveEventTable || !haveSeqTable || !haveLoopTable || !haveTsColumns || !haveDurColumns || !haveAttrBlobs {
		return nil, token.Invalid(), fmt.Errorf("%w: thread file missing a required chunk", errs.ErrTruncatedChunk)
	}

	events, attrs, err := decodeEventTable(eventTable, attrBlobs)
	if err != nil {
		return nil, token.Invalid(), err
	}

	bodies, err := decodeSequenceTable(seqTable)
	if err != nil {
		return nil, token.Invalid(), err
	}

	loops, err := decodeLoopTable(loopTable)
	if err != nil {
		return nil, token.Invalid(), err
	}

	tsEvents, tsSeqs, err := decodeColumnChunk(tsColumns, len(events), len(bodies))
	if err != nil {
		return nil, token.Invalid(), err
	}
	durEvents, durSeqs, err := decodeColumnChunk(durColumns, len(events), len(bodies))
	if err != nil {
		return nil, token.Invalid(), err
	}

	tables := &ThreadTables{
		Events:    make([]*ReadEventSummary, len(events)),
		Sequences: make([]*ReadSequence, len(bodies)),
		Loops:     loops,
	}

	for i, ev := range events {
		tables.Events[i] = &ReadEventSummary{
			Event:       ev.event,
			Occurrences: ev.occurrences,
			Attributes:  attrs[i],
			Timestamps:  tsEvents[i],
			Durations:   durEvents[i],
		}
	}
	for i, body := range bodies {
		tables.Sequences[i] = &ReadSequence{
			Body:       body,
			Timestamps: tsSeqs[i],
			Durations:  durSeqs[i],
		}
	}

	return tables, rootToken, nil
}

type decodedEvent struct {
	event       grammar.Event
	occurrences uint64
}

func decodeEventTable(eventTable, attrBlobs []byte) ([]decodedEvent, [][]byte, error) {
	er := bytes.NewReader(eventTable)
	ar := bytes.NewReader(attrBlobs)

	evCount, err := readUint32(er)
	if err != nil {
		return nil, nil, err
	}
	attrCount, err := readUint32(ar)
	if err != nil {
		return nil, nil, err
	}
	if attrCount != evCount {
		return nil, nil, fmt.Errorf("%w: event table has %d entries, attribute blob table has %d", errs.ErrSizeMismatch, evCount, attrCount)
	}

	events := make([]decodedEvent, evCount)
	attrs := make([][]byte, evCount)

	for i := uint32(0); i < evCount; i++ {
		recordType, err := er.ReadByte()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: event record type: %v", errs.ErrTruncatedChunk, err)
		}
		regionRef, err := readUint32(er)
		if err != nil {
			return nil, nil, err
		}
		refParam, err := readUint64(er)
		if err != nil {
			return nil, nil, err
		}
		paramsLen, err := readUint32(er)
		if err != nil {
			return nil, nil, err
		}
		params := make([]byte, paramsLen)
		if _, err := io.ReadFull(er, params); err != nil {
			return nil, nil, fmt.Errorf("%w: event params: %v", errs.ErrTruncatedChunk, err)
		}
		occurrences, err := readUint64(er)
		if err != nil {
			return nil, nil, err
		}

		events[i] = decodedEvent{
			event: grammar.Event{
				Type:      grammar.RecordType(recordType),
				RegionRef: regionRef,
				RefParam:  refParam,
				Params:    params,
			},
			occurrences: occurrences,
		}

		attrLen, err := readUint32(ar)
		if err != nil {
			return nil, nil, err
		}
		attr := make([]byte, attrLen)
		if _, err := io.ReadFull(ar, attr); err != nil {
			return nil, nil, fmt.Errorf("%w: attribute blob: %v", errs.ErrTruncatedChunk, err)
		}
		attrs[i] = attr
	}

	return events, attrs, nil
}

func decodeSequenceTable(data []byte) ([][]token.Token, error) {
	r := bytes.NewReader(data)
	count, err := readUint32(r)
	if err != nil {
		return nil, err
	}

	bodies := make([][]token.Token, count)
	for i := uint32(0); i < count; i++ {
		bodyLen, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		body := make([]token.Token, bodyLen)
		for j := uint32(0); j < bodyLen; j++ {
			w, err := readUint32(r)
			if err != nil {
				return nil, err
			}
			body[j] = token.Token(w)
		}
		bodies[i] = body
	}

	return bodies, nil
}

func decodeLoopTable(data []byte) ([]*ReadLoop, error) {
	r := bytes.NewReader(data)
	count, err := readUint32(r)
	if err != nil {
		return nil, err
	}

	loops := make([]*ReadLoop, count)
	for i := uint32(0); i < count; i++ {
		repeated, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		starts, err := decodeInlineColumn(r)
		if err != nil {
			return nil, err
		}
		counts, err := decodeInlineColumn(r)
		if err != nil {
			return nil, err
		}

		loops[i] = &ReadLoop{
			Repeated:        token.Token(repeated),
			StartOffsets:    starts,
			IterationCounts: counts,
		}
	}

	if err := validateLoops(loops); err != nil {
		return nil, err
	}

	return loops, nil
}

// validateLoops checks spec.md invariant 2: every Loop's repeated token
// must refer to a Sequence. The iteration-count >= 2 half of the
// invariant is enforced by the detector at construction time, not
// re-checked here — a serialized file that violates it is a
// CorruptInvariant the thread Reader surfaces lazily when EnterBlock
// descends into that Loop occurrence, not eagerly at open time.
func validateLoops(loops []*ReadLoop) error {
	for _, l := range loops {
		if l.Repeated.Kind() != token.KindSequence {
			return fmt.Errorf("%w: loop repeated token %s is not a sequence", errs.ErrLoopBody, l.Repeated)
		}
	}
	return nil
}

func decodeColumnChunk(data []byte, eventCount, seqCount int) ([]*column.OpenedColumn, []*column.OpenedColumn, error) {
	r := bytes.NewReader(data)

	events := make([]*column.OpenedColumn, eventCount)
	seqs := make([]*column.OpenedColumn, seqCount)

	for r.Len() > 0 {
		kindByte, err := r.ReadByte()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: column entry kind: %v", errs.ErrTruncatedChunk, err)
		}
		ownerID, err := readUint32(r)
		if err != nil {
			return nil, nil, err
		}
		col, err := decodeInlineColumn(r)
		if err != nil {
			return nil, nil, err
		}

		switch columnOwnerKind(kindByte) {
		case ownerEvent:
			if int(ownerID) >= len(events) {
				return nil, nil, fmt.Errorf("%w: column refers to missing event id %d", errs.ErrMissingDefinition, ownerID)
			}
			events[ownerID] = col
		case ownerSequence:
			if int(ownerID) >= len(seqs) {
				return nil, nil, fmt.Errorf("%w: column refers to missing sequence id %d", errs.ErrMissingDefinition, ownerID)
			}
			seqs[ownerID] = col
		default:
			return nil, nil, fmt.Errorf("%w: unknown column owner kind %d", errs.ErrSizeMismatch, kindByte)
		}
	}

	return events, seqs, nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", errs.ErrTruncatedChunk, err)
	}
	return endian.LittleEndian.Uint32(b[:]), nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", errs.ErrTruncatedChunk, err)
	}
	return endian.LittleEndian.Uint64(b[:]), nil
}

// ValidateDefinitionRefs checks every Enter/Leave event's region
// reference against the definition tables d resolves from. The original
// engine accepted unresolvable refs silently; here a ref with no backing
// definition is a FormatError (spec.md §9's third open question).
func ValidateDefinitionRefs(t *ThreadTables, d *defs.Definitions) error {
	for id, ev := range t.Events {
		switch ev.Event.Type {
		case grammar.RecordEnter, grammar.RecordLeave:
			if _, ok := d.Region(ev.Event.RegionRef); !ok {
				return fmt.Errorf("%w: event E%d references region %d", errs.ErrMissingDefinition, id, ev.Event.RegionRef)
			}
		}
	}
	return nil
}

func mathFloatBits(f float64) uint64     { return math.Float64bits(f) }
func mathFloatFromBits(b uint64) float64 { return math.Float64frombits(b) }
