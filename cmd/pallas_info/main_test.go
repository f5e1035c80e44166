package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pallas-trace/pallas/archive"
	"github.com/pallas-trace/pallas/defs"
	"github.com/pallas-trace/pallas/grammar"
)

// buildTrace writes a small trace directory the CLI tests can point at:
// one archive, one thread, a handful of Enter/Leave events.
func buildTrace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	g := archive.NewGlobalArchive(dir, "cli-demo")
	nameRef := g.Definitions().AddString("region")
	g.Definitions().AddRegion(defs.Region{NameRef: nameRef})

	a := g.NewArchive(0)
	w := a.NewThread(0)

	ts := uint64(0)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.RecordEvent(grammar.Event{Type: grammar.RecordEnter, RegionRef: 0}, ts, nil))
		ts++
		require.NoError(t, w.RecordEvent(grammar.Event{Type: grammar.RecordLeave, RegionRef: 0}, ts, nil))
		ts++
	}
	require.NoError(t, w.Close(ts))
	require.NoError(t, g.Close(ts))
	require.NoError(t, g.Flush())

	return dir
}

func TestRun_ListArchivesAndThreads(t *testing.T) {
	dir := buildTrace(t)

	var out, errOut bytes.Buffer
	code := run([]string{"-la", "-lt", dir}, &out, &errOut)

	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "archives: [0]")
	assert.Contains(t, out.String(), "archive 0 thread 0")
	assert.Empty(t, errOut.String())
}

func TestRun_ThreadDetail_ShowsGrammarSummary(t *testing.T) {
	dir := buildTrace(t)

	var out, errOut bytes.Buffer
	code := run([]string{"-t", "--content", dir}, &out, &errOut)

	assert.Equal(t, 0, code)
	assert.True(t, strings.Contains(out.String(), "root="))
	assert.True(t, strings.Contains(out.String(), "loops="))
}

func TestRun_DumpDefinitions(t *testing.T) {
	dir := buildTrace(t)

	var out, errOut bytes.Buffer
	code := run([]string{"-D", dir}, &out, &errOut)

	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "regions: 1")
}

func TestRun_ArchiveFilter_SkipsNonMatchingArchive(t *testing.T) {
	dir := buildTrace(t)

	var out, errOut bytes.Buffer
	code := run([]string{"-lt", "--archive", "7", dir}, &out, &errOut)

	assert.Equal(t, 0, code)
	assert.NotContains(t, out.String(), "archive 0 thread")
}

func TestRun_MissingTraceDir_ReturnsUsageError(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(nil, &out, &errOut)

	assert.NotEqual(t, 0, code)
	assert.Contains(t, errOut.String(), "missing trace directory")
}

func TestRun_NonexistentTrace_ReturnsIOError(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{t.TempDir()}, &out, &errOut)

	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "pallas_info:")
}

func TestRun_Help_ReturnsZero(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{"-h"}, &out, &errOut)

	assert.Equal(t, 0, code)
}

func TestRun_MainPallasPathAccepted(t *testing.T) {
	dir := buildTrace(t)

	var out, errOut bytes.Buffer
	code := run([]string{"-la", dir + "/main.pallas"}, &out, &errOut)

	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "archives: [0]")
}
