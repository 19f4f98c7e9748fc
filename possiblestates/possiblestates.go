// Package possiblestates is the append-only pool of every State
// entromatica has ever seen in a run, addressed by StateHash
// (spec.md §4.2, original_source/src/state.rs::PossibleStates).
package possiblestates

import (
	"errors"
	"sync"

	"github.com/Entromatica/entromatica/errs"
	"github.com/Entromatica/entromatica/state"
	"github.com/Entromatica/entromatica/statehash"
)

// PossibleStates maps StateHash to State. Once inserted, a (hash, state)
// pair is never modified or removed during a run.
type PossibleStates struct {
	mu     sync.RWMutex
	states map[statehash.StateHash]state.State
}

// New returns an empty PossibleStates pool.
func New() *PossibleStates {
	return &PossibleStates{states: map[statehash.StateHash]state.State{}}
}

// Insert adds (hash, s). Re-inserting an identical (hash, s) pair leaves
// the pool unchanged and returns an AlreadyExists error, which callers
// such as Merge may ignore; inserting a genuinely different state under an
// existing hash is a hash collision. The two cases are told apart by comparing the
// states' own content (State.Equal) rather than re-deriving StateHash from
// each side: both existing and s are already known to hash to hash by
// construction, so comparing statehash.Of(existing) == statehash.Of(s)
// would always be true and could never detect a real 64-bit digest
// collision between two distinct states.
func (p *PossibleStates) Insert(hash statehash.StateHash, s state.State) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.states[hash]; ok {
		if existing.Equal(s) {
			return errs.NewAlreadyExists("state", hash, existing, s)
		}
		return errs.NewHashCollision(hash, existing, s)
	}
	p.states[hash] = s
	return nil
}

// Get returns the state stored under hash, if any.
func (p *PossibleStates) Get(hash statehash.StateHash) (state.State, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.states[hash]
	return s, ok
}

// Iter calls fn for every (hash, state) pair in an unspecified order. fn
// must not call back into p.
func (p *PossibleStates) Iter(fn func(statehash.StateHash, state.State)) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for h, s := range p.states {
		fn(h, s)
	}
}

// Values returns a snapshot slice of every stored State.
func (p *PossibleStates) Values() []state.State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]state.State, 0, len(p.states))
	for _, s := range p.states {
		out = append(out, s)
	}
	return out
}

// Len returns the number of stored states.
func (p *PossibleStates) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.states)
}

// IsEmpty reports whether the pool holds no states.
func (p *PossibleStates) IsEmpty() bool { return p.Len() == 0 }

// Contains reports whether hash is present in the pool.
func (p *PossibleStates) Contains(hash statehash.StateHash) bool {
	_, ok := p.Get(hash)
	return ok
}

// Merge inserts every (hash, state) pair from other into p. Identical
// states already present (AlreadyExists) are skipped; the first
// HashCollision error aborts the merge, and entries already merged remain.
func (p *PossibleStates) Merge(other *PossibleStates) error {
	var firstErr error
	other.Iter(func(h statehash.StateHash, s state.State) {
		if firstErr != nil {
			return
		}
		if err := p.Insert(h, s); err != nil {
			var already *errs.AlreadyExistsError
			if errors.As(err, &already) {
				return // idempotent: identical state already present
			}
			firstErr = err
		}
	})
	return firstErr
}
