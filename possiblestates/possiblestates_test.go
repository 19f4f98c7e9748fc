package possiblestates

import (
	"errors"
	"testing"

	"github.com/Entromatica/entromatica/errs"
	"github.com/Entromatica/entromatica/paramvalue"
	"github.com/Entromatica/entromatica/state"
	"github.com/Entromatica/entromatica/statehash"
)

func testState(amount float64) state.State {
	return state.NewState(map[state.EntityName]state.Entity{
		"A": state.NewEntity(map[state.ParameterName]state.Parameter{
			"amount": state.NewParameter(paramvalue.Float64(amount)),
		}),
	})
}

func TestInsertAndGet(t *testing.T) {
	p := New()
	s := testState(1)
	h := statehash.Of(s)

	if err := p.Insert(h, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := p.Get(h)
	if !ok {
		t.Fatalf("expected state to be present")
	}
	if statehash.Of(got) != h {
		t.Errorf("stored state does not match inserted state")
	}
}

func TestInsertIdenticalStateIsAlreadyExists(t *testing.T) {
	p := New()
	s := testState(1)
	h := statehash.Of(s)

	if err := p.Insert(h, s); err != nil {
		t.Fatalf("unexpected error on first insert: %v", err)
	}
	err := p.Insert(h, s)
	if !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestInsertDifferentStateSameHashIsCollision(t *testing.T) {
	p := New()
	s1 := testState(1)
	h := statehash.Of(s1)

	if err := p.Insert(h, s1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s2 := testState(2)
	err := p.Insert(h, s2) // force a collision under s1's hash
	if !errors.Is(err, errs.ErrHashCollision) {
		t.Fatalf("expected ErrHashCollision, got %v", err)
	}
}

func TestInsertContentEqualityIsIndependentOfRehashing(t *testing.T) {
	// Regression: Insert must decide AlreadyExists vs HashCollision by
	// comparing the two states' own content, not by re-deriving
	// statehash.Of from each side — both existing and s already hash to
	// the hash parameter by construction, so a hash-vs-hash comparison can
	// never observe a genuine collision.
	p := New()
	s1 := testState(1)
	h := statehash.Of(s1)
	if err := p.Insert(h, s1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s2 := testState(2)
	err := p.Insert(h, s2)
	if !errors.Is(err, errs.ErrHashCollision) {
		t.Fatalf("expected ErrHashCollision for content-distinct states sharing a hash, got %v", err)
	}

	// A content-identical state under the same hash is still idempotent.
	err = p.Insert(h, s1)
	if !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for a content-identical re-insert, got %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	p := New()
	_, ok := p.Get(statehash.StateHash(0))
	if ok {
		t.Errorf("expected missing hash to report ok=false")
	}
}

func TestLenAndIsEmpty(t *testing.T) {
	p := New()
	if !p.IsEmpty() {
		t.Fatalf("expected new pool to be empty")
	}
	s := testState(1)
	if err := p.Insert(statehash.Of(s), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.IsEmpty() || p.Len() != 1 {
		t.Errorf("got len=%d isEmpty=%v, want len=1 isEmpty=false", p.Len(), p.IsEmpty())
	}
}

func TestContains(t *testing.T) {
	p := New()
	s := testState(1)
	h := statehash.Of(s)
	if p.Contains(h) {
		t.Errorf("empty pool should not contain anything")
	}
	if err := p.Insert(h, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Contains(h) {
		t.Errorf("expected pool to contain inserted hash")
	}
}

func TestValuesAndIter(t *testing.T) {
	p := New()
	s1, s2 := testState(1), testState(2)
	if err := p.Insert(statehash.Of(s1), s1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Insert(statehash.Of(s2), s2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := len(p.Values()); got != 2 {
		t.Errorf("Values() returned %d states, want 2", got)
	}

	seen := 0
	p.Iter(func(statehash.StateHash, state.State) { seen++ })
	if seen != 2 {
		t.Errorf("Iter visited %d states, want 2", seen)
	}
}

func TestMergeCombinesDisjointPools(t *testing.T) {
	a, b := New(), New()
	s1, s2 := testState(1), testState(2)
	if err := a.Insert(statehash.Of(s1), s1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Insert(statehash.Of(s2), s2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := a.Merge(b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Len() != 2 {
		t.Errorf("got len=%d, want 2", a.Len())
	}
}

func TestMergeIsIdempotentForIdenticalOverlap(t *testing.T) {
	a, b := New(), New()
	s := testState(1)
	h := statehash.Of(s)
	if err := a.Insert(h, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Insert(h, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := a.Merge(b); err != nil {
		t.Fatalf("merging identical overlapping states should not error: %v", err)
	}
	if a.Len() != 1 {
		t.Errorf("got len=%d, want 1", a.Len())
	}
}

func TestMergePropagatesCollision(t *testing.T) {
	a, b := New(), New()
	s1 := testState(1)
	h := statehash.Of(s1)
	if err := a.Insert(h, s1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s2 := testState(2)
	if err := b.Insert(h, s2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := a.Merge(b)
	if !errors.Is(err, errs.ErrHashCollision) {
		t.Fatalf("expected ErrHashCollision, got %v", err)
	}
}
