// Package thread implements the writer and reader halves of one thread's
// trace: Writer turns a stream of timestamped events into a grammar
// under construction (delegating pattern contraction to detector.Detector),
// and Reader walks a finished grammar back out in execution order.
package thread

import (
	"fmt"

	"github.com/pallas-trace/pallas/detector"
	"github.com/pallas-trace/pallas/grammar"
	"github.com/pallas-trace/pallas/internal/errs"
	"github.com/pallas-trace/pallas/internal/hash"
	"github.com/pallas-trace/pallas/token"
)

// writerState is the Open/Closing/Closed state machine spec.md §4.4
// requires, made explicit per the teacher's single-shot encoder
// lifecycle (blob.NumericEncoder's doc comment: "NOT reusable ... after
// calling Finish").
type writerState uint8

const (
	stateOpen writerState = iota
	stateClosing
	stateClosed
)

// pendingEvent is the one event a Writer always holds back: its
// duration is the gap to the NEXT same-thread event's timestamp, so it
// cannot be finalized and pushed into the detector until that next
// event (or Close) arrives.
type pendingEvent struct {
	tok       token.Token
	event     grammar.Event
	timestamp uint64
}

// Writer is a single thread's event sink. It is single-threaded with
// respect to one Thread object — an owning Archive's mutex protects only
// its thread-list registration, never a Writer's own methods.
type Writer struct {
	id       uint64
	tables   *grammar.Tables
	detector *detector.Detector

	state      writerState
	pending    pendingEvent
	hasPending bool

	eventsByHash map[uint64][]token.Token

	rootToken token.Token
}

// NewWriter returns an Open Writer for the thread identified by id (an
// archive-scoped id assigned by the caller's LocationTable).
func NewWriter(id uint64) *Writer {
	tables := grammar.NewTables()
	return &Writer{
		id:           id,
		tables:       tables,
		detector:     detector.New(tables),
		state:        stateOpen,
		eventsByHash: make(map[uint64][]token.Token),
	}
}

// ID returns the thread's id.
func (w *Writer) ID() uint64 { return w.id }

// Tables returns the thread's grammar tables. Safe to read once Close
// has returned successfully; reading mid-construction sees a partially
// built grammar.
func (w *Writer) Tables() *grammar.Tables { return w.tables }

// RootToken returns the thread's root Sequence token, valid only once
// Close has returned successfully.
func (w *Writer) RootToken() token.Token { return w.rootToken }

// Closed reports whether the Writer has finished closing.
func (w *Writer) Closed() bool { return w.state == stateClosed }

// RecordEvent appends one occurrence of ev at timestamp, with an
// optional attribute payload, creating ev's EventSummary on first sight.
// It emits the event's token into the pattern detector and updates the
// enclosing-Sequence stack for Enter/Leave events — but only once the
// event's own duration is known, which happens one RecordEvent call (or
// Close) later, when the following same-thread timestamp arrives. So
// RecordEvent always finalizes the PREVIOUS call's event, never this
// one's.
func (w *Writer) RecordEvent(ev grammar.Event, timestamp uint64, attributes []byte) error {
	if w.state != stateOpen {
		return fmt.Errorf("%w: record_event called on a %s writer", errs.ErrThreadClosed, w.state)
	}

	evTok := w.internEvent(ev)
	summary := w.tables.Event(evTok)
	summary.RecordOccurrence(timestamp)
	if len(attributes) > 0 {
		summary.Attributes = append(summary.Attributes, attributes...)
	}

	if w.hasPending {
		if err := w.flushPending(timestamp); err != nil {
			return err
		}
	}

	w.pending = pendingEvent{tok: evTok, event: ev, timestamp: timestamp}
	w.hasPending = true

	return nil
}

// flushPending finalizes the pending event's duration as the gap to
// untilTimestamp, then feeds its token into the detector — opening a new
// Sequence frame first if the pending event was an Enter, or closing the
// current frame after if it was a Leave.
func (w *Writer) flushPending(untilTimestamp uint64) error {
	p := w.pending
	duration := untilTimestamp - p.timestamp

	w.tables.Event(p.tok).FinalizeDuration(duration)

	switch p.event.Type {
	case grammar.RecordEnter:
		w.detector.EnterBlock(p.event.RegionRef)
		return w.detector.Push(p.tok, p.timestamp, duration)
	case grammar.RecordLeave:
		if err := w.detector.Push(p.tok, p.timestamp, duration); err != nil {
			return err
		}
		_, err := w.detector.LeaveBlock(p.event.RegionRef)
		return err
	default:
		return w.detector.Push(p.tok, p.timestamp, duration)
	}
}

// Close finalizes the last pending event's duration against
// closingTimestamp, wraps the root frame's entries into the root
// Sequence, and transitions to Closed. Closing an already-Closed Writer is a
// no-op, per spec.md §8's idempotence invariant; closing a thread that
// still has unmatched Enter events fails with the detector's
// InvalidState-classified ErrLeaveAtRoot and leaves the Writer Closing,
// so a later Close returns ErrThreadClosing.
func (w *Writer) Close(closingTimestamp uint64) error {
	if w.state == stateClosed {
		return nil
	}
	if w.state == stateClosing {
		return errs.ErrThreadClosing
	}

	w.state = stateClosing

	if w.hasPending {
		if err := w.flushPending(closingTimestamp); err != nil {
			return err
		}
		w.hasPending = false
	}

	rootTok, err := w.detector.Close()
	if err != nil {
		return err
	}

	w.rootToken = rootTok
	w.state = stateClosed
	return nil
}

// internEvent returns ev's token, creating a new EventSummary the first
// time this exact Event is observed on this thread — the EventSummary
// analog of blob.NumericEncoder.StartMetricID/StartMetricName's
// first-sight definition creation, generalized from a caller-supplied
// metric id to a content hash since Events carry no id of their own.
func (w *Writer) internEvent(ev grammar.Event) token.Token {
	h := hashEvent(ev)
	for _, candidate := range w.eventsByHash[h] {
		if w.tables.Event(candidate).Event.Equal(ev) {
			return candidate
		}
	}

	tok := w.tables.AddEvent(grammar.NewEventSummary(ev))
	w.eventsByHash[h] = append(w.eventsByHash[h], tok)
	return tok
}

func hashEvent(ev grammar.Event) uint64 {
	var buf [13]byte
	buf[0] = byte(ev.Type)
	buf[1] = byte(ev.RegionRef)
	buf[2] = byte(ev.RegionRef >> 8)
	buf[3] = byte(ev.RegionRef >> 16)
	buf[4] = byte(ev.RegionRef >> 24)
	for i := 0; i < 8; i++ {
		buf[5+i] = byte(ev.RefParam >> (8 * i))
	}

	h := hash.Bytes(buf[:])
	if len(ev.Params) == 0 {
		return h
	}
	return h ^ hash.Bytes(ev.Params)
}

func (s writerState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateClosing:
		return "closing"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
