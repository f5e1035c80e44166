package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pallas-trace/pallas/grammar"
	"github.com/pallas-trace/pallas/storage"
)

func TestArchive_NewThread_RegistersInOrder(t *testing.T) {
	a := New(0)

	t0 := a.NewThread(10)
	t1 := a.NewThread(20)

	require.Len(t, a.Threads(), 2)
	assert.Same(t, t0, a.Threads()[0])
	assert.Same(t, t1, a.Threads()[1])
}

func TestArchive_Close_ClosesAllThreadsAndIsIdempotent(t *testing.T) {
	a := New(0)
	w := a.NewThread(0)
	require.NoError(t, w.RecordEvent(grammar.Event{Type: grammar.RecordSingleton, RegionRef: 1}, 0, nil))

	require.NoError(t, a.Close(10))
	assert.True(t, w.Closed())

	// Closing again must not error or re-close an already-closed thread.
	require.NoError(t, a.Close(20))
}

func TestArchive_Flush_RejectsUnclosedThread(t *testing.T) {
	a := New(0)
	a.NewThread(0)

	err := a.Flush(t.TempDir())
	assert.Error(t, err)
}

func TestArchive_Flush_WritesExpectedFiles(t *testing.T) {
	dir := t.TempDir()
	a := New(3)
	w := a.NewThread(0)
	require.NoError(t, w.Close(0))
	require.NoError(t, a.Flush(dir))

	assert.FileExists(t, filepath.Join(dir, "archive_3", "archive.pallas"))
	assert.FileExists(t, filepath.Join(dir, "archive_3", "thread_0.pallas"))

	f, err := os.Open(storage.ArchiveFile(dir, 3))
	require.NoError(t, err)
	defer f.Close()

	got, err := storage.ReadArchiveFile(f)
	require.NoError(t, err)
	assert.Empty(t, got.Strings())
}
