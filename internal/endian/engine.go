// Package endian wraps the single byte order Pallas ever writes to disk.
// spec.md fixes little-endian for every integer in a file, so unlike the
// teacher's EndianEngine (which switched between binary.LittleEndian and
// binary.BigEndian behind a functional option), this package exposes only
// the little-endian engine — there is no WithBigEndian to carry forward.
package endian

import "encoding/binary"

// Engine reads and writes fixed-width integers using AppendByteOrder,
// the same interface the teacher's chunk headers were built on.
type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

type Engine struct {
	order byteOrder
}

// LittleEndian is the one Engine Pallas uses, exported as a package-level
// value since there is nothing to configure.
var LittleEndian = Engine{order: binary.LittleEndian}

// AppendUint32 appends v to dst in the engine's byte order.
func (e Engine) AppendUint32(dst []byte, v uint32) []byte {
	return e.order.AppendUint32(dst, v)
}

// AppendUint64 appends v to dst in the engine's byte order.
func (e Engine) AppendUint64(dst []byte, v uint64) []byte {
	return e.order.AppendUint64(dst, v)
}

// Uint32 reads a uint32 from the front of b.
func (e Engine) Uint32(b []byte) uint32 {
	return e.order.Uint32(b)
}

// Uint64 reads a uint64 from the front of b.
func (e Engine) Uint64(b []byte) uint64 {
	return e.order.Uint64(b)
}
