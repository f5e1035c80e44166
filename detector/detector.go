// Package detector implements the online, bounded-lookback pattern
// detector: it receives tokens one at a time from a thread writer and
// maintains a grammar under construction, contracting repeated runs into
// Loops and abstracting Enter/Leave frames into interned Sequences.
//
// It is greedy and single-pass, grounded on the teacher's streaming
// encoder state machine (StartMetric/AddDataPoint/EndMetric/Finish):
// EnterBlock/Push/LeaveBlock mirror that per-item streaming discipline,
// and Close mirrors Finish. It does not produce a globally minimal
// grammar, only one competitive with offline approaches at O(1)
// amortized work per token.
package detector

import (
	"fmt"

	"github.com/pallas-trace/pallas/grammar"
	"github.com/pallas-trace/pallas/internal/errs"
	"github.com/pallas-trace/pallas/internal/options"
	"github.com/pallas-trace/pallas/token"
)

// defaultLookbackBound is N from spec.md §4.3: the largest loop-body
// length the detector will try to recognize per push, absent an
// explicit WithLookbackBound option. Bounded so each Push stays
// amortized O(1) regardless of stream length.
const defaultLookbackBound = 8

// entry is one token occupying a position in a frame's in-progress
// stream, carrying the timestamp and duration of that occurrence so a
// later contraction can aggregate them into the Sequence or Loop it
// produces.
type entry struct {
	tok       token.Token
	timestamp uint64
	duration  uint64
}

type frameState struct {
	entries   []entry
	regionRef uint32
}

// Detector holds one thread's grammar under construction. The caller
// drives it with EnterBlock/Push/LeaveBlock as it is fed a region's
// events, and calls Close once when the thread itself closes.
//
// Calling convention: EnterBlock opens a new frame; the Enter event's own
// token is then Push'd as that frame's first entry; nested activity is
// Push'd or bracketed by further EnterBlock/LeaveBlock pairs; the Leave
// event's token is Push'd as the frame's last entry; LeaveBlock closes
// the frame, interning it into the parent frame's stream as a single
// Sequence (or Loop, after the next pass of loop-extension) token.
type Detector struct {
	tables        *grammar.Tables
	interner      *grammar.Interner
	frames        []*frameState
	rootToken     token.Token
	lookbackBound int
}

// WithLookbackBound overrides N from spec.md §4.3, the largest loop-body
// length a Push will try to contract. Values below 1 are clamped to 1.
// Mainly useful for tests exercising the tie-break rules with a small,
// easy-to-reason-about bound.
func WithLookbackBound(n int) options.Option[*Detector] {
	return options.NoError(func(d *Detector) {
		if n < 1 {
			n = 1
		}
		d.lookbackBound = n
	})
}

// New returns a Detector backed by tables, reserving Sequence id 0 for
// the root — the invariant spec.md §8 requires (root_sequence.id == 0).
func New(tables *grammar.Tables, opts ...options.Option[*Detector]) *Detector {
	interner := grammar.NewInterner(tables)
	rootTok := tables.AddSequence(grammar.NewSequence(nil))

	d := &Detector{
		tables:        tables,
		interner:      interner,
		frames:        []*frameState{{}},
		rootToken:     rootTok,
		lookbackBound: defaultLookbackBound,
	}

	// Detector options are all built with options.NoError; Apply cannot
	// fail here.
	_ = options.Apply(d, opts...)

	return d
}

// Push feeds one token into the current frame, with the timestamp and
// duration of its occurrence, then runs loop-extension until no further
// contraction applies.
func (d *Detector) Push(tok token.Token, timestamp, duration uint64) error {
	top := d.frames[len(d.frames)-1]
	top.entries = append(top.entries, entry{tok: tok, timestamp: timestamp, duration: duration})
	d.loopExtend(top)
	return nil
}

// EnterBlock opens a new frame for a region identified by regionRef (an
// opaque caller-chosen id used only to validate the matching LeaveBlock
// call — typically the region definition id).
func (d *Detector) EnterBlock(regionRef uint32) {
	d.frames = append(d.frames, &frameState{regionRef: regionRef})
}

// LeaveBlock closes the most recently opened frame, interning its
// contents into a Sequence (skipped for a single-entry frame, whose
// token is promoted directly — spec.md's "length 1 is never created"
// edge case) and pushing the result into the now-current frame.
func (d *Detector) LeaveBlock(regionRef uint32) (token.Token, error) {
	if len(d.frames) <= 1 {
		return token.Invalid(), errs.ErrLeaveAtRoot
	}

	top := d.frames[len(d.frames)-1]
	if top.regionRef != regionRef {
		return token.Invalid(), fmt.Errorf("%w: leave_block(%d) does not match enter_block(%d)", errs.ErrWrongEnterToken, regionRef, top.regionRef)
	}

	d.frames = d.frames[:len(d.frames)-1]

	resultTok, timestamp, duration := d.closeFrame(top)

	parent := d.frames[len(d.frames)-1]
	parent.entries = append(parent.entries, entry{tok: resultTok, timestamp: timestamp, duration: duration})
	d.loopExtend(parent)

	return resultTok, nil
}

// Close finalizes the root frame and returns the root Sequence token.
// Every thread's root is a Sequence with exactly one occurrence,
// regardless of how many entries it contains — unlike LeaveBlock's
// length-1 promotion, the root is always wrapped so callers can rely on
// root().kind() == Sequence.
func (d *Detector) Close() (token.Token, error) {
	if len(d.frames) != 1 {
		return token.Invalid(), fmt.Errorf("%w: thread closed with %d block(s) still open", errs.ErrLeaveAtRoot, len(d.frames)-1)
	}

	root := d.frames[0]

	var timestamp, duration uint64
	if len(root.entries) > 0 {
		timestamp = root.entries[0].timestamp
		duration = sumDurations(root.entries)
	}

	seq := grammar.NewSequence(extractTokens(root.entries))
	seq.RecordOccurrence(timestamp, duration)
	d.tables.ReplaceSequence(d.rootToken, seq)

	return d.rootToken, nil
}

// closeFrame interns frame's entries into a Sequence, or for a single
// entry promotes its token directly rather than wrapping it (spec.md's
// "a Sequence of length 1 is never created" edge case), and returns the
// resulting token along with the occurrence's aggregate timestamp (its
// first entry's) and duration (the sum of its entries' durations).
func (d *Detector) closeFrame(frame *frameState) (token.Token, uint64, uint64) {
	if len(frame.entries) == 0 {
		return token.Invalid(), 0, 0
	}

	timestamp := frame.entries[0].timestamp
	duration := sumDurations(frame.entries)

	if len(frame.entries) == 1 {
		return frame.entries[0].tok, timestamp, duration
	}

	bodyTokens := extractTokens(frame.entries)
	seqTok := d.interner.Intern(bodyTokens)
	d.tables.Sequence(seqTok).RecordOccurrence(timestamp, duration)

	return seqTok, timestamp, duration
}

// loopExtend repeatedly contracts frame's trailing entries until no
// further loop-extension check fires, so a long run of repetitions
// collapses within a single Push/LeaveBlock call rather than nesting one
// contraction per push (see DESIGN.md's Scenario C resolution).
func (d *Detector) loopExtend(frame *frameState) {
	for d.contractOnce(frame) {
	}
}

// contractOnce tries, for k from the largest body length down to 1 (the
// "longer loop bodies beat shorter ones" tie-break), to either extend an
// existing Loop immediately preceding the last k entries, or to collapse
// a freshly-repeated k-entry run into a brand new Loop of count 2.
func (d *Detector) contractOnce(frame *frameState) bool {
	n := len(frame.entries)

	maxK := d.lookbackBound
	if n-1 < maxK {
		maxK = n - 1
	}

	for k := maxK; k >= 1; k-- {
		if d.tryExtendExistingLoop(frame, k) {
			return true
		}
		if d.tryCreateLoop(frame, k) {
			return true
		}
	}

	return false
}

// tryExtendExistingLoop checks whether the entry immediately before the
// last k entries is already a Loop over a Sequence whose body equals
// those k entries' tokens; if so it increments that loop's count in
// place and drops the k entries.
func (d *Detector) tryExtendExistingLoop(frame *frameState, k int) bool {
	entries := frame.entries
	n := len(entries)

	precedingIdx := n - k - 1
	if precedingIdx < 0 {
		return false
	}

	preceding := entries[precedingIdx]
	if preceding.tok.Kind() != token.KindLoop {
		return false
	}

	loop := d.tables.Loop(preceding.tok)
	seq := d.tables.Sequence(loop.Repeated)
	if len(seq.Body) != k {
		return false
	}

	if !tokensMatchWindow(seq.Body, entries[n-k:]) {
		return false
	}

	window := entries[n-k:]
	windowDuration := sumDurations(window)
	seq.RecordOccurrence(window[0].timestamp, windowDuration)
	loop.ExtendLast(1)

	// The contracted window's duration folds into the Loop's own frame
	// entry, so an eventual parent contraction still sums to the full
	// elapsed time.
	frame.entries = entries[:n-k]
	frame.entries[len(frame.entries)-1].duration += windowDuration
	return true
}

// tryCreateLoop checks whether the last k entries equal the preceding k
// entries token-for-token, and if so interns the shared body as a
// Sequence (or reuses an existing one) and replaces both runs with a new
// Loop of count 2.
func (d *Detector) tryCreateLoop(frame *frameState, k int) bool {
	entries := frame.entries
	n := len(entries)

	if n < 2*k {
		return false
	}

	runStart := n - 2*k
	prev := entries[runStart : n-k]
	last := entries[n-k:]

	if !windowsMatch(prev, last) {
		return false
	}

	bodyTokens := extractTokens(last)
	seqTok := d.interner.Intern(bodyTokens)
	seq := d.tables.Sequence(seqTok)

	startOffset := uint64(seq.Durations.Len())
	seq.RecordOccurrence(prev[0].timestamp, sumDurations(prev))
	seq.RecordOccurrence(last[0].timestamp, sumDurations(last))

	loop := grammar.NewLoop(seqTok, startOffset, 2)
	loopTok := d.tables.AddLoop(loop)

	totalDuration := sumDurations(entries[runStart:n])
	firstTimestamp := entries[runStart].timestamp

	frame.entries = append(entries[:runStart], entry{tok: loopTok, timestamp: firstTimestamp, duration: totalDuration})
	return true
}

func windowsMatch(a, b []entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].tok != b[i].tok {
			return false
		}
	}
	return true
}

func tokensMatchWindow(body []token.Token, window []entry) bool {
	if len(body) != len(window) {
		return false
	}
	for i := range body {
		if body[i] != window[i].tok {
			return false
		}
	}
	return true
}

func extractTokens(entries []entry) []token.Token {
	out := make([]token.Token, len(entries))
	for i, e := range entries {
		out[i] = e.tok
	}
	return out
}

func sumDurations(entries []entry) uint64 {
	var total uint64
	for _, e := range entries {
		total += e.duration
	}
	return total
}
