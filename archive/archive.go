// Package archive implements the Archive and GlobalArchive containers
// spec.md §3 describes: GlobalArchive owns the trace-wide definition
// tables and the list of per-process Archives; each Archive owns its own
// per-process definition tables (defs.Definitions) and the Threads
// registered to it.
//
// Grounded on the teacher's section.NumericIndexEntry dense-index-by-id
// layout (section/numeric_index_entry.go) for the definition tables
// themselves (see package defs), and on the teacher's pooling discipline
// of never holding a lock across I/O (internal/pool) for the
// thread-list/archive-list registration mutex.
package archive

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pallas-trace/pallas/defs"
	"github.com/pallas-trace/pallas/internal/errs"
	"github.com/pallas-trace/pallas/internal/pool"
	"github.com/pallas-trace/pallas/storage"
	"github.com/pallas-trace/pallas/thread"
)

// Archive is the per-process container within a trace, typically one
// MPI rank: it owns its Threads and its own per-process definition
// tables (spec.md §3). Thread-list mutation is guarded by a short-lived
// mutex held only for the append itself, never across I/O — the
// AtomicAppendList re-architecture spec.md §9 calls for, implemented
// here as a plain mutex since Go's sync.Mutex already satisfies "never
// held across I/O" without a lock-free structure; lookups after
// registration (Threads()) take no lock.
type Archive struct {
	id   uint32
	defs *defs.Definitions

	mu      sync.Mutex
	threads []*thread.Writer
}

// New returns an empty, open Archive identified by id within its
// GlobalArchive.
func New(id uint32) *Archive {
	return &Archive{id: id, defs: defs.NewDefinitions()}
}

// ID returns the archive's id, used to compute its directory name
// (archive_<id>).
func (a *Archive) ID() uint32 { return a.id }

// Definitions returns the archive's per-process definition tables.
func (a *Archive) Definitions() *defs.Definitions { return a.defs }

// NewThread registers and returns a new open thread.Writer for the
// location (thread) identified by locationRef. The registration itself
// is the only part of thread creation guarded by a.mu; the returned
// Writer's own methods are not — per spec.md §5, no operation on one
// Thread may run concurrently with another operation on that same
// Thread, but distinct Threads may run fully concurrently.
func (a *Archive) NewThread(locationRef uint64) *thread.Writer {
	w := thread.NewWriter(locationRef)

	a.mu.Lock()
	a.threads = append(a.threads, w)
	a.mu.Unlock()

	return w
}

// Threads returns every Writer registered to this Archive, in
// registration order. Safe to call without additional synchronization
// once registration has quiesced (spec.md §5: "lookups after
// registration are read-only and lock-free").
func (a *Archive) Threads() []*thread.Writer { return a.threads }

// Close closes every still-open Writer registered to the archive. A
// failure does not stop the remaining threads from being closed; only the
// first error encountered (if any) is returned.
func (a *Archive) Close(closingTimestamp uint64) error {
	var firstErr error
	for _, w := range a.threads {
		if w.Closed() {
			continue
		}
		if err := w.Close(closingTimestamp); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%w: archive %d thread %d: %v", errs.ErrWriteFailed, a.id, w.ID(), err)
		}
	}
	return firstErr
}

// Flush serializes the archive's definition tables and every one of its
// closed threads' grammars to traceDir/archive_<id>/, per spec.md §4.5's
// directory layout. A thread that is not yet Closed is not flushed
// mid-construction: Flush returns an error at that thread, and the
// threads registered after it are not written.
func (a *Archive) Flush(traceDir string) error {
	dir := storage.ArchiveDir(traceDir, a.id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrOpenFailed, err)
	}

	if err := flushToFile(storage.ArchiveFile(traceDir, a.id), func(f *os.File) error {
		return stageWrite(f, func(w io.Writer) error {
			return storage.WriteArchiveFile(w, a.defs)
		})
	}); err != nil {
		return err
	}

	for _, w := range a.threads {
		if !w.Closed() {
			return fmt.Errorf("%w: archive %d thread %d is not closed", errs.ErrThreadClosing, a.id, w.ID())
		}

		path := storage.ThreadFile(traceDir, a.id, w.ID())
		if err := flushToFile(path, func(f *os.File) error {
			return stageWrite(f, func(iw io.Writer) error {
				return storage.WriteThreadFile(iw, w.Tables(), w.RootToken())
			})
		}); err != nil {
			return err
		}
	}

	return nil
}

// flushToFile opens path for writing, invokes write, and closes the
// file on every exit path — failure included — matching spec.md §5's
// resource-acquisition rule that file handles are released on all exit
// paths. Every caller passes a write that goes through stageWrite, so
// the serialized bytes are staged in a pooled buffer (rather than written
// directly through many small os.File.Write calls) and released back to
// the pool once the single file write completes.
func flushToFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrOpenFailed, err)
	}
	defer f.Close()

	if err := write(f); err != nil {
		return err
	}

	return nil
}

// stageWrite runs write against a pooled byte buffer and flushes the
// result to f in one call, so storage's per-chunk WriteChunk calls don't
// each hit the file descriptor directly.
func stageWrite(f *os.File, write func(io.Writer) error) error {
	buf := pool.GetFileBuffer()
	defer pool.PutFileBuffer(buf)

	if err := write(buf); err != nil {
		return err
	}
	if _, err := buf.WriteTo(f); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrWriteFailed, err)
	}
	return nil
}
