package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pallas-trace/pallas/grammar"
	"github.com/pallas-trace/pallas/token"
)

// newEventToken defines one Event in tables and returns its token, for
// tests to Push repeatedly — a real thread writer shares one
// EventSummary across every occurrence of the same region, so token
// identity (not just value equality) is what the detector compares.
func newEventToken(tables *grammar.Tables, regionRef uint32) token.Token {
	return tables.AddEvent(grammar.NewEventSummary(grammar.Event{Type: grammar.RecordSingleton, RegionRef: regionRef}))
}

func TestNew_ReservesRootAtSequenceZero(t *testing.T) {
	tables := grammar.NewTables()
	d := New(tables)

	assert.Equal(t, token.KindSequence, d.rootToken.Kind())
	assert.Equal(t, uint32(0), d.rootToken.ID())
}

func TestPush_NoRepetition_StaysFlat(t *testing.T) {
	tables := grammar.NewTables()
	d := New(tables)

	a := newEventToken(tables, 1)
	b := newEventToken(tables, 2)
	require.NoError(t, d.Push(a, 10, 1))
	require.NoError(t, d.Push(b, 20, 1))

	root := d.frames[0]
	require.Len(t, root.entries, 2)
	assert.Equal(t, a, root.entries[0].tok)
	assert.Equal(t, b, root.entries[1].tok)
}

func TestContractOnce_CreatesLoopOnFirstRepeat(t *testing.T) {
	tables := grammar.NewTables()
	d := New(tables)

	ev := newEventToken(tables, 1)
	require.NoError(t, d.Push(ev, 10, 5))
	require.NoError(t, d.Push(ev, 20, 5))

	root := d.frames[0]
	require.Len(t, root.entries, 1, "two back-to-back identical events must collapse to one Loop entry")

	loopTok := root.entries[0].tok
	require.Equal(t, token.KindLoop, loopTok.Kind())

	loop := tables.Loop(loopTok)
	assert.Equal(t, uint64(2), loop.LastCount())

	body := tables.Sequence(loop.Repeated).Body
	require.Len(t, body, 1)
}

func TestLoopExtend_ExtendsExistingLoopInPlace(t *testing.T) {
	tables := grammar.NewTables()
	d := New(tables)

	ev := newEventToken(tables, 1)
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Push(ev, uint64(i*10), 5))
	}

	root := d.frames[0]
	require.Len(t, root.entries, 1, "repeated pushes of the same event must stay collapsed into one Loop entry")

	loopTok := root.entries[0].tok
	require.Equal(t, token.KindLoop, loopTok.Kind())

	loop := tables.Loop(loopTok)
	assert.Equal(t, uint64(5), loop.LastCount())
	assert.Equal(t, 1, loop.IterationCounts.Len(), "extension must mutate the existing entry, never append a new one")
	assert.Equal(t, 1, tables.LoopCount(), "extension must not define a second Loop")
}

// TestLoopExtend_RecordsOneSequenceRowPerIteration pins the invariant the
// thread reader depends on: a Loop stores no duration of its own, so its
// repeated Sequence must carry exactly one occurrence row per iteration,
// contiguous from the Loop's recorded start offset.
func TestLoopExtend_RecordsOneSequenceRowPerIteration(t *testing.T) {
	tables := grammar.NewTables()
	d := New(tables)

	ev := newEventToken(tables, 1)
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Push(ev, uint64(i*10), 5))
	}

	loopTok := d.frames[0].entries[0].tok
	loop := tables.Loop(loopTok)
	seq := tables.Sequence(loop.Repeated)

	assert.Equal(t, 5, seq.Durations.Len(), "one repeated-sequence occurrence row per loop iteration")
	assert.Equal(t, uint64(0), loop.StartOffsets.At(0))
	assert.Equal(t, uint64(5), loop.IterationCounts.At(0))
}

func TestLoopExtend_TwoTokenBody(t *testing.T) {
	tables := grammar.NewTables()
	d := New(tables)

	evA := newEventToken(tables, 1)
	evB := newEventToken(tables, 2)
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Push(evA, uint64(i*20), 1))
		require.NoError(t, d.Push(evB, uint64(i*20+10), 1))
	}

	root := d.frames[0]
	require.Len(t, root.entries, 1)

	loopTok := root.entries[0].tok
	require.Equal(t, token.KindLoop, loopTok.Kind())

	loop := tables.Loop(loopTok)
	assert.Equal(t, uint64(3), loop.LastCount())

	body := tables.Sequence(loop.Repeated).Body
	require.Len(t, body, 2)
}

func TestEnterLeaveBlock_SingleEntryFrame_PromotedNotWrapped(t *testing.T) {
	tables := grammar.NewTables()
	d := New(tables)

	d.EnterBlock(7)
	inner := newEventToken(tables, 7)
	require.NoError(t, d.Push(inner, 1, 1))
	resultTok, err := d.LeaveBlock(7)
	require.NoError(t, err)

	assert.Equal(t, inner, resultTok, "a single-entry frame's token must be promoted, not wrapped in a Sequence")
	assert.Equal(t, 1, tables.SequenceCount(), "promoting a lone entry must not intern a new Sequence beyond the reserved root")
}

func TestEnterLeaveBlock_MultiEntryFrame_Interned(t *testing.T) {
	tables := grammar.NewTables()
	d := New(tables)

	d.EnterBlock(7)
	require.NoError(t, d.Push(newEventToken(tables, 100), 1, 1))
	require.NoError(t, d.Push(newEventToken(tables, 101), 2, 1))
	resultTok, err := d.LeaveBlock(7)
	require.NoError(t, err)

	assert.Equal(t, token.KindSequence, resultTok.Kind())
	assert.Equal(t, 2, tables.SequenceCount(), "the reserved root plus the one interned frame body")
	assert.Len(t, tables.Sequence(resultTok).Body, 2)
}

func TestLeaveBlock_WrongRegionRef(t *testing.T) {
	tables := grammar.NewTables()
	d := New(tables)

	d.EnterBlock(7)
	require.NoError(t, d.Push(newEventToken(tables, 1), 1, 1))

	_, err := d.LeaveBlock(99)
	assert.Error(t, err)
}

func TestLeaveBlock_AtRoot(t *testing.T) {
	tables := grammar.NewTables()
	d := New(tables)

	_, err := d.LeaveBlock(0)
	assert.Error(t, err)
}

func TestEnterLeaveBlock_IdenticalBodiesReuseSequence(t *testing.T) {
	tables := grammar.NewTables()
	d := New(tables)

	evA := tables.AddEvent(grammar.NewEventSummary(grammar.Event{Type: grammar.RecordEnter, RegionRef: 1}))
	evB := tables.AddEvent(grammar.NewEventSummary(grammar.Event{Type: grammar.RecordLeave, RegionRef: 1}))

	runFrame := func() token.Token {
		d.EnterBlock(1)
		require.NoError(t, d.Push(evA, 0, 0))
		require.NoError(t, d.Push(evB, 0, 0))
		tok, err := d.LeaveBlock(1)
		require.NoError(t, err)
		return tok
	}

	first := runFrame()
	second := runFrame()

	assert.Equal(t, token.KindSequence, first.Kind())
	assert.Equal(t, first, second, "two equal frame bodies must share one interned Sequence")
	// Both resulting frame tokens feed into loop-extension at the parent
	// level once they sit adjacent in the root frame, so by the time the
	// second frame closes the pair has already contracted into a Loop
	// over a new Sequence that simply wraps the shared frame-body token.
	assert.Equal(t, 1, tables.LoopCount())
	assert.Equal(t, 3, tables.SequenceCount(), "reserved root + shared frame body + the loop's wrapper Sequence")
}

func TestClose_RootAlwaysWrapped_EvenEmpty(t *testing.T) {
	tables := grammar.NewTables()
	d := New(tables)

	rootTok, err := d.Close()
	require.NoError(t, err)

	assert.Equal(t, token.KindSequence, rootTok.Kind())
	assert.Equal(t, uint32(0), rootTok.ID())

	root := tables.Sequence(rootTok)
	assert.Equal(t, 1, root.Timestamps.Len())
	assert.Empty(t, root.Body)
}

func TestClose_RootAlwaysWrapped_SingleEntry(t *testing.T) {
	tables := grammar.NewTables()
	d := New(tables)

	require.NoError(t, d.Push(newEventToken(tables, 1), 5, 2))

	rootTok, err := d.Close()
	require.NoError(t, err)

	root := tables.Sequence(rootTok)
	assert.Equal(t, 1, root.Timestamps.Len())
	assert.Len(t, root.Body, 1, "unlike a nested frame, the root wraps even a single entry")
}

func TestClose_WithOpenFrame_Errors(t *testing.T) {
	tables := grammar.NewTables()
	d := New(tables)

	d.EnterBlock(1)

	_, err := d.Close()
	assert.Error(t, err)
}

// TestScenarioC_FifteenCallsCollapseToOneLoop mirrors DESIGN.md's
// resolution for fifteen consecutive calls to the same region: they
// collapse to a single Loop of count 15 over a one-token Sequence that
// wraps the two-token [Enter, Leave] Sequence, not fifteen separate frame
// entries.
func TestScenarioC_FifteenCallsCollapseToOneLoop(t *testing.T) {
	tables := grammar.NewTables()
	d := New(tables)

	evEnter := tables.AddEvent(grammar.NewEventSummary(grammar.Event{Type: grammar.RecordEnter, RegionRef: 42}))
	evLeave := tables.AddEvent(grammar.NewEventSummary(grammar.Event{Type: grammar.RecordLeave, RegionRef: 42}))

	const calls = 15
	for i := 0; i < calls; i++ {
		d.EnterBlock(42)
		require.NoError(t, d.Push(evEnter, uint64(i*10), 0))
		require.NoError(t, d.Push(evLeave, uint64(i*10+5), 1))
		_, err := d.LeaveBlock(42)
		require.NoError(t, err)
	}

	root := d.frames[0]
	require.Len(t, root.entries, 1, "all fifteen calls must collapse into a single root entry")

	loopTok := root.entries[0].tok
	require.Equal(t, token.KindLoop, loopTok.Kind())

	loop := tables.Loop(loopTok)
	assert.Equal(t, uint64(calls), loop.LastCount())
	assert.Equal(t, 1, loop.IterationCounts.Len())
	assert.Equal(t, 1, tables.LoopCount())

	// The Loop repeats the per-call frame-body token, a Sequence that in
	// turn wraps the two raw region events.
	outerBody := tables.Sequence(loop.Repeated).Body
	require.Len(t, outerBody, 1)
	require.Equal(t, token.KindSequence, outerBody[0].Kind())

	innerBody := tables.Sequence(outerBody[0]).Body
	require.Len(t, innerBody, 2)
	assert.Equal(t, evEnter, innerBody[0])
	assert.Equal(t, evLeave, innerBody[1])
}

func TestLoopOverLoop_NestedRepetitionPermitted(t *testing.T) {
	tables := grammar.NewTables()
	d := New(tables)

	// A two-token body (evA, evB) repeating twice collapses into a Loop
	// whose own body length (2) differs from a later single-token window
	// (k=1), so when that Loop's token itself reappears twice back to
	// back, Case1 (extend-in-place) cannot match and Case2 fires instead,
	// wrapping the Loop token into a fresh Sequence and a new outer Loop.
	evA := newEventToken(tables, 1)
	evB := newEventToken(tables, 2)
	require.NoError(t, d.Push(evA, 0, 1))
	require.NoError(t, d.Push(evB, 1, 1))
	require.NoError(t, d.Push(evA, 2, 1))
	require.NoError(t, d.Push(evB, 3, 1))

	root := d.frames[0]
	require.Len(t, root.entries, 1)
	innerLoopTok := root.entries[0].tok
	require.Equal(t, token.KindLoop, innerLoopTok.Kind())

	require.NoError(t, d.Push(innerLoopTok, 4, 4))
	require.NoError(t, d.Push(innerLoopTok, 5, 4))

	require.Len(t, root.entries, 1, "the repeated Loop token must itself collapse into an outer Loop")
	outerTok := root.entries[0].tok
	require.Equal(t, token.KindLoop, outerTok.Kind())
	require.NotEqual(t, innerLoopTok, outerTok)

	outerLoop := tables.Loop(outerTok)
	outerBody := tables.Sequence(outerLoop.Repeated).Body
	require.Len(t, outerBody, 1)
	assert.Equal(t, innerLoopTok, outerBody[0])
	assert.Equal(t, token.KindLoop, outerBody[0].Kind(), "the repeated unit here is itself a Loop")
}

func TestLookbackBound_LongerBodyPreferredOverShorter(t *testing.T) {
	tables := grammar.NewTables()
	d := New(tables)

	evs := make([]token.Token, 3)
	for i := range evs {
		evs[i] = tables.AddEvent(grammar.NewEventSummary(grammar.Event{Type: grammar.RecordSingleton, RegionRef: uint32(i)}))
	}

	for rep := 0; rep < 2; rep++ {
		for _, ev := range evs {
			require.NoError(t, d.Push(ev, 0, 0))
		}
	}

	root := d.frames[0]
	require.Len(t, root.entries, 1, "the full three-token run must contract as one unit, not as shorter sub-runs")

	loopTok := root.entries[0].tok
	require.Equal(t, token.KindLoop, loopTok.Kind())

	body := tables.Sequence(tables.Loop(loopTok).Repeated).Body
	assert.Len(t, body, 3)
}
