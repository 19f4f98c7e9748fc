// Package statehash computes the deterministic 64-bit fingerprint that
// serves as state identity throughout entromatica (spec.md §4.1).
//
// Of canonicalizes a State's contents before hashing: entity names and
// parameter names are sorted, each (entity, parameter, value) triple is
// encoded with a fixed, length-prefixed binary layout (the same technique
// internal/incremental/invalidation.go uses for InvalidationReason), and
// the resulting byte stream is hashed with crypto/sha256, folded down to a
// uint64. Sorting first means iteration order over the underlying Go maps
// can never influence the result.
package statehash

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"github.com/Entromatica/entromatica/state"
)

// StateHash is a 64-bit fingerprint of a State's unordered contents.
type StateHash uint64

// Of returns the deterministic fingerprint of s.
func Of(s state.State) StateHash {
	type triple struct {
		entity    state.EntityName
		parameter state.ParameterName
		param     state.Parameter
	}

	var triples []triple
	s.Iter(func(entityName state.EntityName, entity state.Entity) {
		entity.Iter(func(paramName state.ParameterName, p state.Parameter) {
			triples = append(triples, triple{entityName, paramName, p})
		})
	})

	sort.Slice(triples, func(i, j int) bool {
		if triples[i].entity != triples[j].entity {
			return triples[i].entity < triples[j].entity
		}
		return triples[i].parameter < triples[j].parameter
	})

	h := sha256.New()
	for _, t := range triples {
		writeLengthPrefixed(h, []byte(t.entity))
		writeLengthPrefixed(h, []byte(t.parameter))
		buf := t.param.Value.AppendBinary(nil)
		writeLengthPrefixed(h, buf)
	}

	sum := h.Sum(nil)
	return StateHash(binary.BigEndian.Uint64(sum[:8]))
}

func writeLengthPrefixed(h interface{ Write([]byte) (int, error) }, data []byte) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(data)))
	h.Write(length[:])
	h.Write(data)
}
