// Package ruleset detects changes to the data-only parts of a rule
// universe between runs and invalidates the cache entries that a changed
// rule's earlier memoized results would otherwise poison.
//
// Snapshot/Delta are adapted from internal/incremental/graphdelta.go's
// CalculateGraphDelta (added/removed/modified-by-content-equality over a
// named set) and internal/incremental/invalidation.go's canonical,
// order-independent fingerprint encoding. "Graph nodes" become "data-only
// rule definitions"; "task hash" becomes a fingerprint over a rule's
// weight, condition kind, and action kind+payload.
package ruleset

import (
	"encoding/binary"
	"hash/fnv"
	"sort"

	"github.com/Entromatica/entromatica/cache"
	"github.com/Entromatica/entromatica/rule"
	"github.com/Entromatica/entromatica/state"
	"github.com/Entromatica/entromatica/statehash"
)

// RuleSnapshot maps each rule's name to a deterministic fingerprint of its
// data-only content. Function-valued conditions/actions (Predicate,
// Compute) fingerprint by kind alone: their payload is an opaque
// in-process closure, so two Predicate-conditioned rules are only ever
// considered "the same" by kind, never by behavior.
type RuleSnapshot map[rule.RuleName]uint64

// Snapshot fingerprints every rule in rules.
func Snapshot(rules map[rule.RuleName]rule.Rule) RuleSnapshot {
	out := make(RuleSnapshot, len(rules))
	for name, r := range rules {
		out[name] = fingerprint(r)
	}
	return out
}

func fingerprint(r rule.Rule) uint64 {
	h := fnv.New64a()

	var weightBits [8]byte
	binary.BigEndian.PutUint64(weightBits[:], uint64(r.Weight().Hash()))
	h.Write(weightBits[:])

	writeConditionTag(h, r.ConditionVariant())
	writeActionTag(h, r.ActionVariant())

	return h.Sum64()
}

func writeConditionTag(h hashWriter, c rule.Condition) {
	switch c.(type) {
	case rule.Never:
		h.Write([]byte{0})
	case rule.Always:
		h.Write([]byte{1})
	case rule.Predicate:
		h.Write([]byte{2})
	default:
		h.Write([]byte{255})
	}
}

func writeActionTag(h hashWriter, a rule.Action) {
	switch action := a.(type) {
	case rule.None:
		h.Write([]byte{0})
	case rule.SetParameter:
		h.Write([]byte{1})
		writeString(h, string(action.Entity))
		writeString(h, string(action.Parameter))
		writeUint64(h, action.Value.Value.Hash())
	case rule.InsertEntity:
		h.Write([]byte{2})
		writeString(h, string(action.Entity))
		entityState := state.NewState(map[state.EntityName]state.Entity{action.Entity: action.Value})
		writeUint64(h, uint64(statehash.Of(entityState)))
	case rule.Compute:
		h.Write([]byte{3})
	default:
		h.Write([]byte{255})
	}
}

type hashWriter interface {
	Write([]byte) (int, error)
}

func writeString(h hashWriter, s string) {
	writeUint64(h, uint64(len(s)))
	h.Write([]byte(s))
}

func writeUint64(h hashWriter, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

// RuleDelta is the deterministic difference between two RuleSnapshots:
// rules added, removed, or whose fingerprint changed. All three slices
// are sorted for reproducibility.
type RuleDelta struct {
	Added    []rule.RuleName
	Removed  []rule.RuleName
	Modified []rule.RuleName
}

// CalculateDelta computes the delta from oldSnap to newSnap.
func CalculateDelta(oldSnap, newSnap RuleSnapshot) RuleDelta {
	var delta RuleDelta

	for name, newFp := range newSnap {
		oldFp, ok := oldSnap[name]
		if !ok {
			delta.Added = append(delta.Added, name)
			continue
		}
		if oldFp != newFp {
			delta.Modified = append(delta.Modified, name)
		}
	}
	for name := range oldSnap {
		if _, ok := newSnap[name]; !ok {
			delta.Removed = append(delta.Removed, name)
		}
	}

	sort.Slice(delta.Added, func(i, j int) bool { return delta.Added[i] < delta.Added[j] })
	sort.Slice(delta.Removed, func(i, j int) bool { return delta.Removed[i] < delta.Removed[j] })
	sort.Slice(delta.Modified, func(i, j int) bool { return delta.Modified[i] < delta.Modified[j] })

	return delta
}

// IsEmpty reports whether the delta carries no changes at all.
func (d RuleDelta) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// Invalidate discards every cache entry belonging to a removed or
// modified rule. Added rules need no invalidation: they have no prior
// cache entries to go stale.
func Invalidate(c *cache.Cache, delta RuleDelta) {
	for _, name := range delta.Removed {
		c.InvalidateRule(name)
	}
	for _, name := range delta.Modified {
		c.InvalidateRule(name)
	}
}
