package archive

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pallas-trace/pallas/defs"
	"github.com/pallas-trace/pallas/internal/errs"
	"github.com/pallas-trace/pallas/storage"
)

// GlobalArchive is the top-level container for one trace: a directory
// path, a trace name, the list of per-process Archives, and the global
// definition tables (strings, regions, groups, comms, plus the
// location-group/location tree every Archive's threads hang off of).
//
// GlobalArchive.defs is mutated only while the global writer is the sole
// active writer in the process (spec.md §5); readers treat it as
// immutable once the trace is finalized, so no lock guards reads of defs
// or of the location tables. archives is guarded the same way Archive
// guards its own thread list: a short-lived mutex around append only.
type GlobalArchive struct {
	path      string
	traceName string

	defs *defs.Definitions

	locationGroups []defs.LocationGroup
	locations      []defs.Location

	mu       sync.Mutex
	archives []*Archive
}

// NewGlobalArchive returns an empty GlobalArchive rooted at path, named
// traceName.
func NewGlobalArchive(path, traceName string) *GlobalArchive {
	return &GlobalArchive{
		path:      path,
		traceName: traceName,
		defs:      defs.NewDefinitions(),
	}
}

// Path returns the trace's directory path.
func (g *GlobalArchive) Path() string { return g.path }

// TraceName returns the trace's name.
func (g *GlobalArchive) TraceName() string { return g.traceName }

// Definitions returns the trace-wide definition tables.
func (g *GlobalArchive) Definitions() *defs.Definitions { return g.defs }

// NewArchive creates, registers, and returns a new Archive identified by
// id. Registration is guarded by g.mu; the returned Archive's own
// methods are not.
func (g *GlobalArchive) NewArchive(id uint32) *Archive {
	a := New(id)

	g.mu.Lock()
	g.archives = append(g.archives, a)
	g.mu.Unlock()

	return a
}

// Archives returns every registered Archive, in registration order.
func (g *GlobalArchive) Archives() []*Archive { return g.archives }

// ArchiveByID returns the Archive registered under id, or nil if none
// matches.
func (g *GlobalArchive) ArchiveByID(id uint32) *Archive {
	for _, a := range g.archives {
		if a.ID() == id {
			return a
		}
	}
	return nil
}

// AddLocationGroup appends a LocationGroup (a process node) to the
// trace-wide tree, returning its ref.
func (g *GlobalArchive) AddLocationGroup(lg defs.LocationGroup) uint32 {
	ref := uint32(len(g.locationGroups))
	g.locationGroups = append(g.locationGroups, lg)
	return ref
}

// LocationGroups returns the dense location-group table.
func (g *GlobalArchive) LocationGroups() []defs.LocationGroup { return g.locationGroups }

// AddLocation appends a Location (a thread node) to the trace-wide
// tree, returning its ref.
func (g *GlobalArchive) AddLocation(l defs.Location) uint32 {
	ref := uint32(len(g.locations))
	g.locations = append(g.locations, l)
	return ref
}

// Locations returns the dense location table.
func (g *GlobalArchive) Locations() []defs.Location { return g.locations }

// Close closes every Archive's still-open threads at closingTimestamp,
// collecting the first error encountered.
func (g *GlobalArchive) Close(closingTimestamp uint64) error {
	var firstErr error
	for _, a := range g.archives {
		if err := a.Close(closingTimestamp); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Flush serializes main.pallas plus every registered Archive (and its
// closed threads) under g.path, per spec.md §4.5's directory layout.
func (g *GlobalArchive) Flush() error {
	if err := os.MkdirAll(g.path, 0o755); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrOpenFailed, err)
	}

	archiveIDs := make([]uint32, len(g.archives))
	for i, a := range g.archives {
		archiveIDs[i] = a.ID()
	}

	if err := flushToFile(storage.GlobalArchiveFile(g.path), func(f *os.File) error {
		return stageWrite(f, func(w io.Writer) error {
			return storage.WriteGlobalArchiveFile(w, g.defs, g.locationGroups, g.locations, archiveIDs)
		})
	}); err != nil {
		return err
	}

	for _, a := range g.archives {
		if err := a.Flush(g.path); err != nil {
			return err
		}
	}

	return nil
}
