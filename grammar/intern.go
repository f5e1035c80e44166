package grammar

import (
	"github.com/pallas-trace/pallas/internal/hash"
	"github.com/pallas-trace/pallas/internal/pool"
	"github.com/pallas-trace/pallas/token"
)

// Interner deduplicates Sequence bodies by structural equality: two
// occurrences of the same token list become one Sequence definition
// referenced by both. Lookup is by content hash with an exact-compare
// fallback on collision, adapted from the teacher's
// internal/collision.Tracker (there keyed on metric-name hashes; here
// keyed on a token vector's hash via internal/hash.TokenSequence).
type Interner struct {
	tables *Tables
	byHash map[uint64][]token.Token
}

// NewInterner returns an Interner backed by tables; every Sequence it
// creates is added to tables.
func NewInterner(tables *Tables) *Interner {
	return &Interner{
		tables: tables,
		byHash: make(map[uint64][]token.Token),
	}
}

// Intern returns the Token of the existing Sequence whose body equals
// body, or defines a new one if none matches. A length-1 body is never
// worth interning as a Sequence on its own (spec.md's edge case), but
// Intern does not special-case that here — callers decide whether to
// invoke Intern at all for single-token runs, since the detector is the
// one that knows when a Sequence frame genuinely closed.
func (in *Interner) Intern(body []token.Token) token.Token {
	words, release := pool.GetUint32Slice(len(body))
	for i, t := range body {
		words[i] = uint32(t)
	}
	h := hash.TokenSequence(words)
	release()

	for _, candidate := range in.byHash[h] {
		if tokensEqual(in.tables.Sequence(candidate).Body, body) {
			return candidate
		}
	}

	seq := NewSequence(body)
	tok := in.tables.AddSequence(seq)
	in.byHash[h] = append(in.byHash[h], tok)

	return tok
}

func tokensEqual(a, b []token.Token) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
