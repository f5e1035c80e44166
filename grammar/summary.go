package grammar

import "github.com/pallas-trace/pallas/column"

// EventSummary is the canonical record for one distinct Event observed
// within a thread: every occurrence of that exact Event shares one
// EventSummary, distinguished only by its entries in the duration and
// timestamp columns.
//
// Invariant: Durations.Len() == Timestamps.Len() == Occurrences.
type EventSummary struct {
	Event       Event
	Durations   *column.Column
	Timestamps  *column.Column
	Attributes  []byte
	Occurrences uint64
}

// NewEventSummary returns an EventSummary for the canonical ev, with
// empty columns ready to receive its first occurrence.
func NewEventSummary(ev Event) *EventSummary {
	return &EventSummary{
		Event:      ev,
		Durations:  column.New(),
		Timestamps: column.New(),
	}
}

// RecordOccurrence appends one occurrence's timestamp; its duration is
// finalized later by the thread writer once the next same-thread event's
// timestamp is known (spec.md §4.4), via FinalizeDuration.
func (s *EventSummary) RecordOccurrence(timestamp uint64) {
	s.Timestamps.Append(timestamp)
	s.Occurrences++
}

// FinalizeDuration appends the duration computed for the occurrence most
// recently recorded. Must be called exactly once per RecordOccurrence
// call, after the next event's timestamp (or the thread's closing
// timestamp) becomes known.
func (s *EventSummary) FinalizeDuration(duration uint64) {
	s.Durations.Append(duration)
}
