// Package otf2shim is the thin collaborator surface spec.md §6 reserves
// for an OTF2-compatible write path: a tool instrumented with OTF2's
// callback-style event emission can translate each callback into one of
// these calls without the core ever depending on OTF2 types.
//
// Grounded on the pattern of pallas.go (itself grounded on the teacher's
// top-level mebo.go): a flat set of functions thin-wrapping the
// underlying archive/thread constructors, one call per OTF2 callback.
package otf2shim

import (
	"github.com/pallas-trace/pallas/archive"
	"github.com/pallas-trace/pallas/grammar"
	"github.com/pallas-trace/pallas/thread"
)

// GlobalArchiveNew opens a new trace rooted at path, named traceName —
// the shim's entry point for OTF2_Archive_Open.
func GlobalArchiveNew(path, traceName string) *archive.GlobalArchive {
	return archive.NewGlobalArchive(path, traceName)
}

// GlobalArchiveClose closes every Archive (and their Threads) registered
// to g at closingTimestamp — OTF2_Archive_Close.
func GlobalArchiveClose(g *archive.GlobalArchive, closingTimestamp uint64) error {
	return g.Close(closingTimestamp)
}

// StoreGlobalArchive serializes g and every registered Archive to disk —
// the shim's flush point, called once tracing for the whole run has
// finished (after GlobalArchiveClose).
func StoreGlobalArchive(g *archive.GlobalArchive) error {
	return g.Flush()
}

// ArchiveNew registers and returns a new per-process Archive identified
// by id within g — OTF2_Archive_OpenEvtFiles per location group.
func ArchiveNew(g *archive.GlobalArchive, id uint32) *archive.Archive {
	return g.NewArchive(id)
}

// ArchiveClose closes every Thread registered to a at closingTimestamp.
func ArchiveClose(a *archive.Archive, closingTimestamp uint64) error {
	return a.Close(closingTimestamp)
}

// ThreadWriterNew registers and returns a new open Writer for the
// location identified by locationRef within a — OTF2_EvtWriter_New.
func ThreadWriterNew(a *archive.Archive, locationRef uint64) *thread.Writer {
	return a.NewThread(locationRef)
}

// ThreadWriterClose closes w at closingTimestamp, flushing its final
// pending event and finalizing its grammar — OTF2_EvtWriter_Delete.
func ThreadWriterClose(w *thread.Writer, closingTimestamp uint64) error {
	return w.Close(closingTimestamp)
}

// RecordEvent translates one OTF2 event callback (OTF2_EvtReader_Read*)
// into a RecordEvent call on w: recordType/regionRef/refParam/params
// describe the action (see grammar.Event), timestamp is the event's
// absolute timestamp, and attributes is an optional opaque payload
// (OTF2 attribute list, pre-encoded by the caller).
func RecordEvent(w *thread.Writer, recordType grammar.RecordType, regionRef uint32, refParam uint64, params []byte, timestamp uint64, attributes []byte) error {
	ev := grammar.Event{
		Type:      recordType,
		RegionRef: regionRef,
		RefParam:  refParam,
		Params:    params,
	}
	return w.RecordEvent(ev, timestamp, attributes)
}
