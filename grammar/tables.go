package grammar

import "github.com/pallas-trace/pallas/token"

// Tables holds one thread's event/sequence/loop definitions, each a
// dense, append-only slice indexed directly by token id — the teacher's
// section.NumericIndexEntry dense-index-by-id layout generalized from a
// single flat table to three parallel ones, one per Kind.
type Tables struct {
	events    []*EventSummary
	sequences []*Sequence
	loops     []*Loop
}

// NewTables returns empty tables.
func NewTables() *Tables {
	return &Tables{}
}

// AddEvent appends a new EventSummary and returns its Token.
func (t *Tables) AddEvent(s *EventSummary) token.Token {
	id := uint32(len(t.events))
	t.events = append(t.events, s)
	return token.New(token.KindEvent, id)
}

// AddSequence appends a new Sequence and returns its Token.
func (t *Tables) AddSequence(s *Sequence) token.Token {
	id := uint32(len(t.sequences))
	t.sequences = append(t.sequences, s)
	return token.New(token.KindSequence, id)
}

// AddLoop appends a new Loop and returns its Token.
func (t *Tables) AddLoop(l *Loop) token.Token {
	id := uint32(len(t.loops))
	t.loops = append(t.loops, l)
	return token.New(token.KindLoop, id)
}

// ReplaceSequence overwrites the Sequence at tok's id. Used once, by the
// detector closing a thread's root frame: the root Sequence's id is
// reserved at 0 by a placeholder AddSequence call made when the detector
// starts, and ReplaceSequence installs the real body once the thread
// closes.
func (t *Tables) ReplaceSequence(tok token.Token, s *Sequence) {
	t.sequences[tok.ID()] = s
}

// Event resolves a Token of kind Event. Panics if tok isn't Kind Event or
// is out of range — callers are expected to check tok.Kind() first.
func (t *Tables) Event(tok token.Token) *EventSummary {
	return t.events[tok.ID()]
}

// Sequence resolves a Token of kind Sequence.
func (t *Tables) Sequence(tok token.Token) *Sequence {
	return t.sequences[tok.ID()]
}

// Loop resolves a Token of kind Loop.
func (t *Tables) Loop(tok token.Token) *Loop {
	return t.loops[tok.ID()]
}

// EventCount returns the number of distinct events defined.
func (t *Tables) EventCount() int { return len(t.events) }

// SequenceCount returns the number of interned sequences.
func (t *Tables) SequenceCount() int { return len(t.sequences) }

// LoopCount returns the number of loops defined.
func (t *Tables) LoopCount() int { return len(t.loops) }

// Events returns the dense event table for serialization and aggregate
// accounting. The returned slice must not be mutated by the caller.
func (t *Tables) Events() []*EventSummary { return t.events }

// Sequences returns the dense sequence table.
func (t *Tables) Sequences() []*Sequence { return t.sequences }

// Loops returns the dense loop table.
func (t *Tables) Loops() []*Loop { return t.loops }
