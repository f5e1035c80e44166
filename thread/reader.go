package thread

import (
	"fmt"

	"github.com/pallas-trace/pallas/column"
	"github.com/pallas-trace/pallas/internal/errs"
	"github.com/pallas-trace/pallas/storage"
	"github.com/pallas-trace/pallas/token"
)

// Occurrence describes one appearance of a Token in a frame: its
// duration and timestamp, and — for Sequences and Loops — the
// occurrence index needed to descend into it with EnterBlock.
type Occurrence struct {
	Timestamp       uint64
	Duration        uint64
	OccurrenceIndex int
}

// LevelEntry is one (Token, Occurrence) pair returned by
// ReadCurrentLevel.
type LevelEntry struct {
	Token      token.Token
	Occurrence Occurrence
}

// frame is one entry on the Reader's cursor stack: either a Sequence
// occurrence being walked child-by-child, or a Loop occurrence being
// walked iteration-by-iteration. Which fields apply is determined by
// tok.Kind().
type frame struct {
	tok      token.Token
	occIndex int

	// Sequence-frame fields.
	body     []token.Token
	childOcc []int
	pos      int

	// Loop-frame fields.
	repeated    token.Token
	startOffset int
	iterCount   uint64
	iterPos     uint64

	startTimestamp uint64
	elapsed        uint64
}

// Reader walks a finished thread's grammar back out in execution order,
// lazily decoding columns and reconstructing timestamps/durations as it
// goes — grounded on blob.NumericDecoder's NewNumericDecoder/Decode
// two-phase split (eager metadata parse, lazy payload decode).
//
// Not safe for concurrent use: spec.md §5 permits one reader per Thread
// object, never two operations on the same Thread concurrently.
type Reader struct {
	id        uint64
	tables    *storage.ThreadTables
	rootToken token.Token

	occCursor map[token.Token]int
	stack     []frame
}

// OpenReader constructs a Reader positioned at the root of a thread's
// grammar. tables and rootToken are typically the result of
// storage.ReadThreadFile.
func OpenReader(id uint64, tables *storage.ThreadTables, rootToken token.Token) (*Reader, error) {
	if rootToken.Kind() != token.KindSequence || rootToken.ID() != 0 {
		return nil, fmt.Errorf("%w: root token %s is not sequence id 0", errs.ErrRootSequence, rootToken)
	}
	if int(rootToken.ID()) >= len(tables.Sequences) {
		return nil, fmt.Errorf("%w: root sequence id 0 missing from sequence table", errs.ErrRootSequence)
	}

	r := &Reader{
		id:        id,
		tables:    tables,
		rootToken: rootToken,
		occCursor: make(map[token.Token]int),
	}

	if n := tables.Sequences[rootToken.ID()].Timestamps.Size(); n != 1 {
		return nil, fmt.Errorf("%w: root sequence has %d occurrences, want exactly 1", errs.ErrRootSequence, n)
	}

	root, err := r.newSequenceFrame(rootToken, 0)
	if err != nil {
		return nil, err
	}
	r.stack = []frame{root}

	return r, nil
}

// ID returns the thread's id.
func (r *Reader) ID() uint64 { return r.id }

// Depth returns how many frames deep the cursor is, 1 at the root.
func (r *Reader) Depth() int { return len(r.stack) }

func (r *Reader) sequence(tok token.Token) (*storage.ReadSequence, error) {
	id := int(tok.ID())
	if tok.Kind() != token.KindSequence || id >= len(r.tables.Sequences) {
		return nil, fmt.Errorf("%w: sequence %s", errs.ErrMissingDefinition, tok)
	}
	return r.tables.Sequences[id], nil
}

func (r *Reader) loop(tok token.Token) (*storage.ReadLoop, error) {
	id := int(tok.ID())
	if tok.Kind() != token.KindLoop || id >= len(r.tables.Loops) {
		return nil, fmt.Errorf("%w: loop %s", errs.ErrMissingDefinition, tok)
	}
	return r.tables.Loops[id], nil
}

func (r *Reader) event(tok token.Token) (*storage.ReadEventSummary, error) {
	id := int(tok.ID())
	if tok.Kind() != token.KindEvent || id >= len(r.tables.Events) {
		return nil, fmt.Errorf("%w: event %s", errs.ErrMissingDefinition, tok)
	}
	return r.tables.Events[id], nil
}

// consume claims and returns the next unclaimed occurrence index for
// tok, advancing the shared per-token cursor. Used to assign an
// occurrence index to a bare (non-loop) child the first time its
// enclosing frame is materialized — correct because, by construction,
// a Sequence or Event's occurrence rows were appended in exactly the
// chronological order a canonical depth-first walk from the root visits
// them.
func (r *Reader) consume(tok token.Token) int {
	idx := r.occCursor[tok]
	r.occCursor[tok] = idx + 1
	return idx
}

// reserveRange marks [start, start+count) as claimed for tok, used when
// a Loop's StartOffsets/IterationCounts give us an explicit occurrence
// range for its repeated Sequence directly from disk, so a later bare
// (non-loop) reuse of the same Sequence elsewhere continues from the
// right place instead of colliding.
func (r *Reader) reserveRange(tok token.Token, start int, count uint64) {
	end := start + int(count)
	if cur := r.occCursor[tok]; end > cur {
		r.occCursor[tok] = end
	}
}

// newSequenceFrame builds a frame for occurrence occIndex of Sequence
// tok, precomputing each child's occurrence index in body order.
func (r *Reader) newSequenceFrame(tok token.Token, occIndex int) (frame, error) {
	seq, err := r.sequence(tok)
	if err != nil {
		return frame{}, err
	}
	if occIndex >= seq.Timestamps.Size() {
		return frame{}, fmt.Errorf("%w: sequence %s has no occurrence %d", errs.ErrMissingDefinition, tok, occIndex)
	}

	ts, err := seq.Timestamps.At(occIndex)
	if err != nil {
		return frame{}, fmt.Errorf("%w: %v", errs.ErrReadFailed, err)
	}

	childOcc := make([]int, len(seq.Body))
	for i, child := range seq.Body {
		childOcc[i] = r.consume(child)
	}

	return frame{
		tok:            tok,
		occIndex:       occIndex,
		body:           seq.Body,
		childOcc:       childOcc,
		startTimestamp: ts,
	}, nil
}

// newLoopFrame builds a frame for occurrence occIndex of Loop tok,
// reading its iteration range directly from the StartOffsets/
// IterationCounts columns and reserving that range against the repeated
// Sequence's occurrence cursor.
func (r *Reader) newLoopFrame(tok token.Token, occIndex int) (frame, error) {
	l, err := r.loop(tok)
	if err != nil {
		return frame{}, err
	}
	if occIndex >= l.StartOffsets.Size() {
		return frame{}, fmt.Errorf("%w: loop %s has no occurrence %d", errs.ErrMissingDefinition, tok, occIndex)
	}

	startOffset, err := l.StartOffsets.At(occIndex)
	if err != nil {
		return frame{}, fmt.Errorf("%w: %v", errs.ErrReadFailed, err)
	}
	iterCount, err := l.IterationCounts.At(occIndex)
	if err != nil {
		return frame{}, fmt.Errorf("%w: %v", errs.ErrReadFailed, err)
	}
	if iterCount < 2 {
		return frame{}, fmt.Errorf("%w: loop %s occurrence %d has iteration count %d", errs.ErrLoopBody, tok, occIndex, iterCount)
	}

	r.reserveRange(l.Repeated, int(startOffset), iterCount)

	repSeq, err := r.sequence(l.Repeated)
	if err != nil {
		return frame{}, err
	}
	ts, err := repSeq.Timestamps.At(int(startOffset))
	if err != nil {
		return frame{}, fmt.Errorf("%w: %v", errs.ErrReadFailed, err)
	}

	return frame{
		tok:            tok,
		occIndex:       occIndex,
		repeated:       l.Repeated,
		startOffset:    int(startOffset),
		iterCount:      iterCount,
		startTimestamp: ts,
	}, nil
}

// expectedToken returns the token EnterBlock must be called with to
// validly descend from the current frame.
func (f *frame) expectedToken() (token.Token, bool) {
	switch f.tok.Kind() {
	case token.KindSequence:
		if f.pos >= len(f.body) {
			return token.Invalid(), false
		}
		return f.body[f.pos], true
	case token.KindLoop:
		if f.iterPos >= f.iterCount {
			return token.Invalid(), false
		}
		return f.repeated, true
	default:
		return token.Invalid(), false
	}
}

// EnterBlock pushes the referenced Sequence or Loop onto the cursor
// stack. Fails with InvalidState if the current position's next token is
// not tok (spec.md §4.6).
func (r *Reader) EnterBlock(tok token.Token) error {
	top := &r.stack[len(r.stack)-1]

	expected, ok := top.expectedToken()
	if !ok || expected != tok {
		return fmt.Errorf("%w: enter_block(%s) does not match expected %s", errs.ErrWrongEnterToken, tok, expected)
	}
	if tok.Kind() != token.KindSequence && tok.Kind() != token.KindLoop {
		return fmt.Errorf("%w: enter_block(%s) is not a block token", errs.ErrWrongEnterToken, tok)
	}

	var (
		childOccIdx int
		next        frame
		err         error
	)

	if top.tok.Kind() == token.KindSequence {
		childOccIdx = top.childOcc[top.pos]
	} else {
		childOccIdx = top.startOffset + int(top.iterPos)
	}

	if tok.Kind() == token.KindSequence {
		next, err = r.newSequenceFrame(tok, childOccIdx)
	} else {
		next, err = r.newLoopFrame(tok, childOccIdx)
	}
	if err != nil {
		return err
	}

	r.stack = append(r.stack, next)
	return nil
}

// LeaveBlock pops the top frame, folding its duration into the new top
// frame's elapsed time and advancing its position. Fails with
// InvalidState at the root.
func (r *Reader) LeaveBlock() error {
	if len(r.stack) <= 1 {
		return errs.ErrLeaveAtRoot
	}

	child := r.stack[len(r.stack)-1]
	duration, err := r.frameDuration(&child)
	if err != nil {
		return err
	}

	r.stack = r.stack[:len(r.stack)-1]
	top := &r.stack[len(r.stack)-1]
	top.elapsed += duration

	switch top.tok.Kind() {
	case token.KindSequence:
		top.pos++
	case token.KindLoop:
		top.iterPos++
	}

	return nil
}

// frameDuration returns f's own occurrence duration: the stored
// Sequence duration, or — for a Loop, which stores no duration of its
// own — the sum of the iteration-count contiguous repeated-Sequence
// occurrence durations starting at its entry offset (spec.md §4.6).
func (r *Reader) frameDuration(f *frame) (uint64, error) {
	if f.tok.Kind() == token.KindLoop {
		repSeq, err := r.sequence(f.repeated)
		if err != nil {
			return 0, err
		}
		var total uint64
		for k := 0; k < int(f.iterCount); k++ {
			d, err := repSeq.Durations.At(f.startOffset + k)
			if err != nil {
				return 0, fmt.Errorf("%w: %v", errs.ErrReadFailed, err)
			}
			total += d
		}
		return total, nil
	}

	seq, err := r.sequence(f.tok)
	if err != nil {
		return 0, err
	}
	d, err := seq.Durations.At(f.occIndex)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errs.ErrReadFailed, err)
	}
	return d, nil
}

// ReadCurrentLevel returns every (Token, Occurrence) pair in the current
// frame: the Sequence's children in body order, or a Loop's iterations
// in order, each carrying the occurrence index a subsequent EnterBlock
// needs to descend into it.
func (r *Reader) ReadCurrentLevel() ([]LevelEntry, error) {
	top := &r.stack[len(r.stack)-1]

	if top.tok.Kind() == token.KindLoop {
		return r.readLoopLevel(top)
	}
	return r.readSequenceLevel(top)
}

func (r *Reader) readSequenceLevel(top *frame) ([]LevelEntry, error) {
	entries := make([]LevelEntry, len(top.body))
	for i, child := range top.body {
		occIdx := top.childOcc[i]
		ts, dur, err := r.resolveOccurrence(child, occIdx)
		if err != nil {
			return nil, err
		}
		entries[i] = LevelEntry{Token: child, Occurrence: Occurrence{Timestamp: ts, Duration: dur, OccurrenceIndex: occIdx}}
	}
	return entries, nil
}

func (r *Reader) readLoopLevel(top *frame) ([]LevelEntry, error) {
	repSeq, err := r.sequence(top.repeated)
	if err != nil {
		return nil, err
	}

	entries := make([]LevelEntry, top.iterCount)
	for k := 0; k < int(top.iterCount); k++ {
		occIdx := top.startOffset + k
		ts, err := repSeq.Timestamps.At(occIdx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrReadFailed, err)
		}
		dur, err := repSeq.Durations.At(occIdx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrReadFailed, err)
		}
		entries[k] = LevelEntry{Token: top.repeated, Occurrence: Occurrence{Timestamp: ts, Duration: dur, OccurrenceIndex: occIdx}}
	}
	return entries, nil
}

// resolveOccurrence returns the timestamp and duration of occurrence
// occIdx of tok, recursing into a Loop's repeated Sequence to compute
// its aggregate duration when tok is a Loop.
func (r *Reader) resolveOccurrence(tok token.Token, occIdx int) (timestamp, duration uint64, err error) {
	switch tok.Kind() {
	case token.KindEvent:
		ev, err := r.event(tok)
		if err != nil {
			return 0, 0, err
		}
		ts, err := ev.Timestamps.At(occIdx)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %v", errs.ErrReadFailed, err)
		}
		dur, err := ev.Durations.At(occIdx)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %v", errs.ErrReadFailed, err)
		}
		return ts, dur, nil

	case token.KindSequence:
		seq, err := r.sequence(tok)
		if err != nil {
			return 0, 0, err
		}
		ts, err := seq.Timestamps.At(occIdx)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %v", errs.ErrReadFailed, err)
		}
		dur, err := seq.Durations.At(occIdx)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %v", errs.ErrReadFailed, err)
		}
		return ts, dur, nil

	case token.KindLoop:
		l, err := r.loop(tok)
		if err != nil {
			return 0, 0, err
		}
		startOffset, err := l.StartOffsets.At(occIdx)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %v", errs.ErrReadFailed, err)
		}
		iterCount, err := l.IterationCounts.At(occIdx)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %v", errs.ErrReadFailed, err)
		}

		repSeq, err := r.sequence(l.Repeated)
		if err != nil {
			return 0, 0, err
		}
		ts, err := repSeq.Timestamps.At(int(startOffset))
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %v", errs.ErrReadFailed, err)
		}

		var total uint64
		for k := 0; k < int(iterCount); k++ {
			d, err := repSeq.Durations.At(int(startOffset) + k)
			if err != nil {
				return 0, 0, fmt.Errorf("%w: %v", errs.ErrReadFailed, err)
			}
			total += d
		}
		return ts, total, nil

	default:
		return 0, 0, fmt.Errorf("%w: unresolvable token %s", errs.ErrMissingDefinition, tok)
	}
}

// CurrentTimestamp returns the absolute timestamp of the cursor: the
// current frame occurrence's own start timestamp plus the durations of
// every child already consumed at this level (spec.md §4.6). Equal, by
// the child-duration-sum invariant, to the thread's base timestamp plus
// every duration consumed from the root down to here.
func (r *Reader) CurrentTimestamp() uint64 {
	top := &r.stack[len(r.stack)-1]
	return top.startTimestamp + top.elapsed
}

// DurationStats returns the duration-column summary statistics for the
// construct tok refers to: per-occurrence event or sequence durations,
// or — for a Loop, which stores no durations of its own — its
// iteration-count column's statistics. This is the aggregate-accounting
// surface: min/max/mean/size are exact and available without decoding
// the column payload.
func (r *Reader) DurationStats(tok token.Token) (column.Stats, error) {
	switch tok.Kind() {
	case token.KindEvent:
		ev, err := r.event(tok)
		if err != nil {
			return column.Stats{}, err
		}
		return ev.Durations.Stats(), nil
	case token.KindSequence:
		seq, err := r.sequence(tok)
		if err != nil {
			return column.Stats{}, err
		}
		return seq.Durations.Stats(), nil
	case token.KindLoop:
		l, err := r.loop(tok)
		if err != nil {
			return column.Stats{}, err
		}
		return l.IterationCounts.Stats(), nil
	default:
		return column.Stats{}, fmt.Errorf("%w: no construct for token %s", errs.ErrMissingDefinition, tok)
	}
}

// durationTolerance is the rounding tolerance spec.md §4.6 and §8
// invariant 1 allow between a stored duration and its children's sum.
const durationTolerance = 1

// VerifyInvariants recursively checks, for the given frame depth
// downward, that every Sequence/Loop's stored (or reconstructed)
// duration equals the sum of its children's durations within
// durationTolerance. It does not mutate the Reader's cursor. Deviations
// beyond tolerance are returned as CorruptInvariant errors; the caller
// decides whether to treat them as fatal or as warnings, per spec.md §7.
func (r *Reader) VerifyInvariants() []error {
	var out []error
	cursor := make(map[token.Token]int)
	r.verifyFrame(r.rootToken, 0, cursor, &out)
	return out
}

// verifyFrame walks tok's occurrence occIdx and its children, threading
// a single cursor map shared across the whole VerifyInvariants call so
// a Sequence or Event reused across multiple parents is still assigned
// the correct globally-increasing occurrence indices — the same
// invariant r.consume relies on, but kept independent of the live
// Reader's own occCursor (which may already be partway through
// navigation when VerifyInvariants is called).
func (r *Reader) verifyFrame(tok token.Token, occIdx int, cursor map[token.Token]int, out *[]error) {
	switch tok.Kind() {
	case token.KindEvent:
		return
	case token.KindSequence:
		seq, err := r.sequence(tok)
		if err != nil {
			*out = append(*out, err)
			return
		}
		stored, err := seq.Durations.At(occIdx)
		if err != nil {
			*out = append(*out, err)
			return
		}

		var childSum uint64
		for _, child := range seq.Body {
			occ := cursor[child]
			cursor[child] = occ + 1

			_, dur, err := r.resolveOccurrence(child, occ)
			if err != nil {
				*out = append(*out, err)
				continue
			}
			childSum += dur

			if child.Kind() == token.KindLoop {
				if l, lerr := r.loop(child); lerr == nil {
					if startOffset, serr := l.StartOffsets.At(occ); serr == nil {
						if iterCount, cerr := l.IterationCounts.At(occ); cerr == nil {
							if end := int(startOffset) + int(iterCount); cursor[l.Repeated] < end {
								cursor[l.Repeated] = end
							}
						}
					}
				}
			}

			r.verifyFrame(child, occ, cursor, out)
		}

		if diff := absDiff(stored, childSum); diff > durationTolerance {
			*out = append(*out, fmt.Errorf("%w: sequence %s occurrence %d: stored=%d children=%d", errs.ErrDurationMismatch, tok, occIdx, stored, childSum))
		}
	case token.KindLoop:
		l, err := r.loop(tok)
		if err != nil {
			*out = append(*out, err)
			return
		}
		startOffset, err := l.StartOffsets.At(occIdx)
		if err != nil {
			*out = append(*out, err)
			return
		}
		iterCount, err := l.IterationCounts.At(occIdx)
		if err != nil {
			*out = append(*out, err)
			return
		}
		for k := 0; k < int(iterCount); k++ {
			r.verifyFrame(l.Repeated, int(startOffset)+k, cursor, out)
		}
	}
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
