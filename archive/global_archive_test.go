package archive

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pallas-trace/pallas/defs"
)

func TestGlobalArchive_NewArchive_RegistersAndResolvesByID(t *testing.T) {
	g := NewGlobalArchive("/tmp/trace", "demo")

	a0 := g.NewArchive(0)
	a1 := g.NewArchive(1)

	require.Len(t, g.Archives(), 2)
	assert.Same(t, a0, g.ArchiveByID(0))
	assert.Same(t, a1, g.ArchiveByID(1))
	assert.Nil(t, g.ArchiveByID(99))
}

func TestGlobalArchive_LocationTree_AppendsInOrder(t *testing.T) {
	g := NewGlobalArchive("/tmp/trace", "demo")

	groupRef := g.AddLocationGroup(defs.LocationGroup{NameRef: 1, Parent: defs.InvalidRef, Kind: defs.GroupKindProcess})
	locRef := g.AddLocation(defs.Location{NameRef: 2, Parent: groupRef, Kind: defs.LocationKindCPUThread})

	require.Len(t, g.LocationGroups(), 1)
	require.Len(t, g.Locations(), 1)
	assert.Equal(t, groupRef, g.Locations()[locRef].Parent)
}

func TestGlobalArchive_Flush_WritesMainPallasAndEveryArchive(t *testing.T) {
	dir := t.TempDir()
	g := NewGlobalArchive(dir, "demo")

	for id := uint32(0); id < 2; id++ {
		a := g.NewArchive(id)
		w := a.NewThread(0)
		require.NoError(t, w.Close(0))
	}

	require.NoError(t, g.Close(0))
	require.NoError(t, g.Flush())

	assert.FileExists(t, filepath.Join(dir, "main.pallas"))
	assert.FileExists(t, filepath.Join(dir, "archive_0", "thread_0.pallas"))
	assert.FileExists(t, filepath.Join(dir, "archive_1", "thread_0.pallas"))
}
