package grammar

import (
	"github.com/pallas-trace/pallas/column"
	"github.com/pallas-trace/pallas/token"
)

// Loop is a back-to-back repetition of a single Sequence: the repeated
// token must have kind Sequence, and every entry in IterationCounts must
// be >= 2 — a single occurrence never becomes a Loop, it stays a bare
// Sequence token in the parent stream (spec.md's Loop invariant).
//
// A Loop stores no duration of its own. Each of its occurrences names a
// contiguous run of rows in Repeated's own Durations/Timestamps columns
// via StartOffsets — one row per iteration, appended by the detector as
// each iteration is recognized — so a reader reconstructs an occurrence's
// duration by summing IterationCounts.At(i) consecutive rows starting at
// StartOffsets.At(i).
type Loop struct {
	Repeated        token.Token
	StartOffsets    *column.Column
	IterationCounts *column.Column
}

// NewLoop creates a Loop over repeated with one initial occurrence:
// iterationCount iterations starting at startOffset in Repeated's columns.
func NewLoop(repeated token.Token, startOffset, iterationCount uint64) *Loop {
	l := &Loop{
		Repeated:        repeated,
		StartOffsets:    column.New(),
		IterationCounts: column.New(),
	}
	l.StartOffsets.Append(startOffset)
	l.IterationCounts.Append(iterationCount)
	return l
}

// RecordOccurrence appends another occurrence of this Loop (a separate
// run elsewhere in the stream with its own starting offset and iteration
// count), as opposed to ExtendLast which grows the most recent run.
func (l *Loop) RecordOccurrence(startOffset, iterationCount uint64) {
	l.StartOffsets.Append(startOffset)
	l.IterationCounts.Append(iterationCount)
}

// ExtendLast increments the iteration count of the Loop's most recent
// occurrence in place by delta, used when the detector finds the run
// immediately preceding a new contraction is already this same Loop.
func (l *Loop) ExtendLast(delta uint64) {
	last := l.IterationCounts.Len() - 1
	current := l.IterationCounts.At(last)
	l.IterationCounts.SetAt(last, current+delta)
}

// LastCount returns the most recent occurrence's iteration count.
func (l *Loop) LastCount() uint64 {
	return l.IterationCounts.At(l.IterationCounts.Len() - 1)
}
