package grammar

import (
	"github.com/pallas-trace/pallas/column"
	"github.com/pallas-trace/pallas/token"
)

// Sequence is a finite ordered list of Tokens (its "body"), interned
// once by content and then referenced by any number of occurrences, each
// contributing one entry to Durations and Timestamps.
//
// Invariant: for every occurrence i, |Durations.At(i) - sum of the
// occurrence's child durations| <= 1ns (tolerance for accumulated
// rounding across nested constructs). Timestamps are monotonically
// non-decreasing within one Sequence.
type Sequence struct {
	Body       []token.Token
	Durations  *column.Column
	Timestamps *column.Column
}

// NewSequence interns body as a new Sequence with empty occurrence
// columns. body is copied so later mutation of the caller's slice (e.g.
// a reused detector scratch buffer) cannot corrupt the interned body.
func NewSequence(body []token.Token) *Sequence {
	owned := make([]token.Token, len(body))
	copy(owned, body)

	return &Sequence{
		Body:       owned,
		Durations:  column.New(),
		Timestamps: column.New(),
	}
}

// RecordOccurrence appends one occurrence.
func (s *Sequence) RecordOccurrence(timestamp, duration uint64) {
	s.Timestamps.Append(timestamp)
	s.Durations.Append(duration)
}

// Len returns the number of tokens in the sequence's body.
func (s *Sequence) Len() int {
	return len(s.Body)
}
