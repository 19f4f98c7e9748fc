// Package reachable holds ReachableStates, the probability distribution
// over StateHash that the advance-step driver replaces wholesale each
// step, following original_source/src/state.rs::ReachableStates.
package reachable

import (
	"math"

	"github.com/Entromatica/entromatica/errs"
	"github.com/Entromatica/entromatica/statehash"
	"github.com/Entromatica/entromatica/units"
)

// ReachableStates maps StateHash to accumulated Probability mass.
type ReachableStates struct {
	mass    map[statehash.StateHash]units.Probability
	epsilon float64
}

// New returns an empty distribution with the given tolerance for mass
// accumulation checks (spec.md §4.6).
func New(epsilon float64) *ReachableStates {
	return &ReachableStates{mass: map[statehash.StateHash]units.Probability{}, epsilon: epsilon}
}

// Append accumulates p into hash's existing mass. Errors if the
// accumulated mass would exceed 1+epsilon.
func (r *ReachableStates) Append(hash statehash.StateHash, p units.Probability) error {
	next := r.mass[hash] + p
	if !next.InRange(r.epsilon) {
		return errs.NewOutOfRange(next.Float64(), 0, 1)
	}
	r.mass[hash] = next
	return nil
}

// Merge repeatedly appends every entry of other into r.
func (r *ReachableStates) Merge(other *ReachableStates) error {
	for hash, p := range other.mass {
		if err := r.Append(hash, p); err != nil {
			return err
		}
	}
	return nil
}

// Values returns a snapshot of every (hash, mass) pair.
func (r *ReachableStates) Values() map[statehash.StateHash]units.Probability {
	out := make(map[statehash.StateHash]units.Probability, len(r.mass))
	for h, p := range r.mass {
		out[h] = p
	}
	return out
}

// Iter calls fn for every (hash, mass) pair in an unspecified order.
func (r *ReachableStates) Iter(fn func(statehash.StateHash, units.Probability)) {
	for h, p := range r.mass {
		fn(h, p)
	}
}

// IterMut calls fn for every (hash, mass) pair, replacing the stored mass
// with fn's return value.
func (r *ReachableStates) IterMut(fn func(statehash.StateHash, units.Probability) units.Probability) {
	for h, p := range r.mass {
		r.mass[h] = fn(h, p)
	}
}

// Len returns the number of distinct states with a recorded entry,
// including entries whose mass is zero.
func (r *ReachableStates) Len() int { return len(r.mass) }

// IsEmpty reports whether the distribution holds no states.
func (r *ReachableStates) IsEmpty() bool { return len(r.mass) == 0 }

// Contains reports whether hash has an entry.
func (r *ReachableStates) Contains(hash statehash.StateHash) bool {
	_, ok := r.mass[hash]
	return ok
}

// ProbabilitySum returns the total mass across all entries.
func (r *ReachableStates) ProbabilitySum() units.Probability {
	var sum units.Probability
	for _, p := range r.mass {
		sum = sum.Add(p)
	}
	return sum
}

// Entropy returns the Shannon entropy in bits of the distribution, using
// the convention 0*log2(0) = 0.
func (r *ReachableStates) Entropy() units.Entropy {
	var h units.Entropy
	for _, p := range r.mass {
		f := p.Float64()
		if f <= 0 {
			continue
		}
		h = h.Add(units.Entropy(-f * math.Log2(f)))
	}
	return h
}
