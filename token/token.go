// Package token implements the Token value type: a compact (kind, id)
// handle that refers to an Event, Sequence, or Loop defined on a Thread.
// A Token alone is meaningless — resolving it against the Thread that
// produced it yields the referenced object.
package token

import "fmt"

// Kind classifies what a Token refers to.
type Kind uint8

const (
	KindEvent Kind = iota
	KindSequence
	KindLoop
	KindInvalid
)

// String renders the kind's one-letter tag, used as the Token.String()
// prefix ("E", "S", "L").
func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "E"
	case KindSequence:
		return "S"
	case KindLoop:
		return "L"
	default:
		return "?"
	}
}

const (
	kindBits = 2
	idBits   = 30
	idMask   = 1<<idBits - 1

	// invalidID is the reserved id paired with KindInvalid; no valid
	// Token ever carries it, so Invalid() compares unequal to everything.
	invalidID = idMask
)

// Token is a 32-bit (kind, id) pair: the top 2 bits hold the Kind, the
// bottom 30 bits hold an id unique within that kind for one Thread.
// Tokens are cheap value types, totally ordered by (kind, id), and carry
// no reference to the Thread that defines them — resolution happens at
// the call site via the Thread's definition tables.
type Token uint32

// New packs kind and id into a Token. id must fit in 30 bits; a caller
// that accidentally overflows gets a Token whose id is silently masked,
// matching the packed-bitfield discipline the rest of the format uses
// (callers are expected to never hand this function an out-of-range id —
// archive/thread id counters are uint32 but bounded by idMask in practice).
func New(kind Kind, id uint32) Token {
	return Token(uint32(kind)<<idBits | (id & idMask))
}

// Invalid returns the reserved Token (KindInvalid, invalidID) that
// compares unequal to every Event, Sequence, or Loop Token, used as a
// sentinel (for example, the Token detector.Close returns alongside an
// error when blocks are still open).
func Invalid() Token {
	return New(KindInvalid, invalidID)
}

// Kind returns the Token's kind.
func (t Token) Kind() Kind {
	return Kind(uint32(t) >> idBits)
}

// ID returns the Token's id, meaningful only relative to its Kind.
func (t Token) ID() uint32 {
	return uint32(t) & idMask
}

// IsValid reports whether t is not the Invalid sentinel.
func (t Token) IsValid() bool {
	return t != Invalid()
}

// Less orders Tokens by (kind, id), matching the totally-ordered
// comparison spec.md requires for deterministic definition-table output.
func (t Token) Less(other Token) bool {
	if t.Kind() != other.Kind() {
		return t.Kind() < other.Kind()
	}
	return t.ID() < other.ID()
}

// String renders a short textual form: "E12", "S3", "L7", "?1073741823"
// for the invalid sentinel.
func (t Token) String() string {
	return fmt.Sprintf("%s%d", t.Kind(), t.ID())
}
