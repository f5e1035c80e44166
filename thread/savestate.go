package thread

import "github.com/pallas-trace/pallas/token"

// SaveState is an opaque snapshot of a Reader's traversal position: the
// full frame stack plus the occurrence cursor used to assign freshly-
// entered children their occurrence indices. Grounded on
// blob_set_material's materialize-to-plain-struct pattern (snapshot into
// an independent struct sharing no mutable state with the live decoder),
// adapted here to a cursor snapshot rather than a decoded blob.
//
// A SaveState taken from one Reader must only be passed to
// LoadSaveState on that same Reader (or a Reader opened from the same
// thread file) — it references occurrence indices that are only
// meaningful against that thread's grammar tables.
type SaveState struct {
	stack  []frame
	cursor map[token.Token]int
}

// SaveState captures the Reader's current traversal position.
func (r *Reader) SaveState() SaveState {
	stack := make([]frame, len(r.stack))
	copy(stack, r.stack)

	cursor := make(map[token.Token]int, len(r.occCursor))
	for k, v := range r.occCursor {
		cursor[k] = v
	}

	return SaveState{stack: stack, cursor: cursor}
}

// LoadSaveState restores a previously captured SaveState, discarding the
// Reader's current position.
func (r *Reader) LoadSaveState(s SaveState) {
	stack := make([]frame, len(s.stack))
	copy(stack, s.stack)
	r.stack = stack

	cursor := make(map[token.Token]int, len(s.cursor))
	for k, v := range s.cursor {
		cursor[k] = v
	}
	r.occCursor = cursor
}
