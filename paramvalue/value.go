// Package paramvalue defines the abstract parameter value type the rest of
// entromatica is polymorphic over (spec.md §3's "Parameter value T"): every
// implementation must support equality, deterministic hashing, cloning,
// and binary-stable serialization.
package paramvalue

import (
	"encoding/binary"
	"math"

	"github.com/Entromatica/entromatica/units"
)

// Value is an opaque parameter payload. Implementations are treated
// opaquely everywhere outside this package.
type Value interface {
	// Equal reports whether v and other hold the same value.
	Equal(other Value) bool
	// Hash returns a deterministic, bit-stable hash of this value alone.
	Hash() uint64
	// Clone returns an independent copy.
	Clone() Value
	// AppendBinary appends this value's binary-stable encoding to buf and
	// returns the extended slice, for statehash and persist.
	AppendBinary(buf []byte) []byte
}

// typeTag distinguishes concrete Value kinds in the binary encoding so
// that distinct kinds never collide even when their payloads do.
type typeTag byte

const (
	tagFloat64 typeTag = iota + 1
	tagString
	tagBool
	tagInt
)

// Float64 is a numeric parameter value, e.g. a resource amount.
type Float64 float64

func (v Float64) Equal(other Value) bool {
	o, ok := other.(Float64)
	return ok && units.HashBits(float64(v)) == units.HashBits(float64(o))
}

func (v Float64) Hash() uint64 {
	h := units.HashBits(float64(v))
	return mix(uint64(tagFloat64), h)
}

func (v Float64) Clone() Value { return v }

func (v Float64) AppendBinary(buf []byte) []byte {
	buf = append(buf, byte(tagFloat64))
	var tmp [8]byte
	bits := math.Float64bits(float64(v))
	if math.IsNaN(float64(v)) {
		bits = units.HashBits(float64(v))
	}
	binary.BigEndian.PutUint64(tmp[:], bits)
	return append(buf, tmp[:]...)
}

// String is a textual parameter value.
type String string

func (v String) Equal(other Value) bool {
	o, ok := other.(String)
	return ok && v == o
}

func (v String) Hash() uint64 {
	return mix(uint64(tagString), fnv64a([]byte(v)))
}

func (v String) Clone() Value { return v }

func (v String) AppendBinary(buf []byte) []byte {
	buf = append(buf, byte(tagString))
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(v)))
	buf = append(buf, length[:]...)
	return append(buf, v...)
}

// Bool is a boolean parameter value.
type Bool bool

func (v Bool) Equal(other Value) bool {
	o, ok := other.(Bool)
	return ok && v == o
}

func (v Bool) Hash() uint64 {
	if v {
		return mix(uint64(tagBool), 1)
	}
	return mix(uint64(tagBool), 0)
}

func (v Bool) Clone() Value { return v }

func (v Bool) AppendBinary(buf []byte) []byte {
	b := byte(0)
	if v {
		b = 1
	}
	return append(buf, byte(tagBool), b)
}

// Int is an integral parameter value.
type Int int64

func (v Int) Equal(other Value) bool {
	o, ok := other.(Int)
	return ok && v == o
}

func (v Int) Hash() uint64 {
	return mix(uint64(tagInt), uint64(v))
}

func (v Int) Clone() Value { return v }

func (v Int) AppendBinary(buf []byte) []byte {
	buf = append(buf, byte(tagInt))
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(v))
	return append(buf, tmp[:]...)
}

// mix commutes a type tag and a payload hash into a single 64-bit value.
func mix(tag, payload uint64) uint64 {
	h := tag*1099511628211 + payload
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return h
}

// fnv64a is a small FNV-1a implementation for hashing raw byte payloads
// (string parameter values) without pulling in a dedicated hash package for
// a handful of bytes.
func fnv64a(data []byte) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for _, b := range data {
		h ^= uint64(b)
		h *= prime64
	}
	return h
}
