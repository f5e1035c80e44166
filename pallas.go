// Package pallas provides convenient top-level wrappers around the
// archive, thread, and storage packages for the most common use case:
// writing a trace from a stream of timestamped events, then reading it
// back.
//
// # Writing a trace
//
//	trace := pallas.NewTrace("/tmp/mytrace", "mytrace")
//	proc := trace.NewArchive(0)
//	th := proc.NewThread(0)
//	th.RecordEvent(grammar.Event{Type: grammar.RecordEnter, RegionRef: 3}, 0, nil)
//	th.RecordEvent(grammar.Event{Type: grammar.RecordLeave, RegionRef: 3}, 100, nil)
//	th.Close(100)
//	proc.Close(100)
//	trace.Close(100)
//	trace.Flush()
//
// # Reading a trace
//
//	tables, err := pallas.OpenThreadFile("/tmp/mytrace/archive_0/thread_0.pallas")
//	reader, _ := thread.OpenReader(0, tables.Tables, tables.RootToken)
//
// This package provides thin wrappers over archive/thread/storage for
// the common path; for fine-grained control (custom definition tables,
// savestate re-entry, invariant verification) use those packages
// directly.
package pallas

import (
	"fmt"
	"os"

	"github.com/pallas-trace/pallas/archive"
	"github.com/pallas-trace/pallas/defs"
	"github.com/pallas-trace/pallas/internal/errs"
	"github.com/pallas-trace/pallas/storage"
	"github.com/pallas-trace/pallas/thread"
	"github.com/pallas-trace/pallas/token"
)

// NewTrace creates a new, empty GlobalArchive rooted at path.
func NewTrace(path, traceName string) *archive.GlobalArchive {
	return archive.NewGlobalArchive(path, traceName)
}

// ThreadFile bundles a thread's parsed grammar tables with its root
// token, the two values thread.OpenReader needs together.
type ThreadFile struct {
	Tables    *storage.ThreadTables
	RootToken token.Token
}

// OpenThreadFile reads one thread file from disk, returning its parsed
// grammar tables and root token ready for thread.OpenReader.
func OpenThreadFile(path string) (*ThreadFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrOpenFailed, err)
	}
	defer f.Close()

	tables, root, err := storage.ReadThreadFile(f)
	if err != nil {
		return nil, err
	}

	return &ThreadFile{Tables: tables, RootToken: root}, nil
}

// OpenThreadReader opens path as a thread file and returns a Reader
// positioned at its root, combining OpenThreadFile and thread.OpenReader
// for the common case where the caller does not need the raw tables.
func OpenThreadReader(id uint64, path string) (*thread.Reader, error) {
	tf, err := OpenThreadFile(path)
	if err != nil {
		return nil, err
	}

	return thread.OpenReader(id, tf.Tables, tf.RootToken)
}

// OpenArchiveFile reads one archive_<id>/archive.pallas file from disk,
// returning its per-process definition tables.
func OpenArchiveFile(path string) (*defs.Definitions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrOpenFailed, err)
	}
	defer f.Close()

	return storage.ReadArchiveFile(f)
}

// OpenGlobalArchiveFile reads a main.pallas file from disk, returning
// its trace-wide definitions, location tree, and registered archive ids.
func OpenGlobalArchiveFile(path string) (*storage.GlobalArchiveData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrOpenFailed, err)
	}
	defer f.Close()

	return storage.ReadGlobalArchiveFile(f)
}
