// Package hash provides the hashing primitives used to intern grammar
// objects: sequence bodies are hashed to find a candidate match in the
// Sequence table before falling back to an exact token-by-token compare.
package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// String computes the xxHash64 of a definition name (region name, string
// reference, metric label) for definition-table lookups.
func String(data string) uint64 {
	return xxhash.Sum64String(data)
}

// Bytes computes the xxHash64 of an arbitrary byte slice, used to key an
// Event's parameter payload when interning EventSummaries by content.
func Bytes(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// TokenSequence computes the xxHash64 of a token sequence by hashing its
// little-endian uint32 byte form, without allocating an intermediate byte
// slice for the whole sequence.
func TokenSequence(tokens []uint32) uint64 {
	d := xxhash.New()
	var buf [4]byte
	for _, tok := range tokens {
		binary.LittleEndian.PutUint32(buf[:], tok)
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}
