package paramvalue

import (
	"math"
	"testing"
)

func TestFloat64EqualAndHash(t *testing.T) {
	a := Float64(1.5)
	b := Float64(1.5)
	c := Float64(2.5)

	if !a.Equal(b) {
		t.Errorf("expected %v to equal %v", a, b)
	}
	if a.Equal(c) {
		t.Errorf("expected %v to not equal %v", a, c)
	}
	if a.Hash() != b.Hash() {
		t.Errorf("equal values hashed differently")
	}
}

func TestFloat64NaNEqualsItself(t *testing.T) {
	n1 := Float64(math.NaN())
	n2 := Float64(math.Float64frombits(math.Float64bits(math.NaN()) ^ 0xF))

	if !n1.Equal(n2) {
		t.Errorf("expected NaN to equal NaN regardless of payload")
	}
	if n1.Hash() != n2.Hash() {
		t.Errorf("expected NaN hashes to be canonicalized")
	}
}

func TestDistinctKindsNeverEqual(t *testing.T) {
	var a Value = Float64(1)
	var b Value = Int(1)
	if a.Equal(b) || b.Equal(a) {
		t.Errorf("values of distinct concrete kinds must never be equal")
	}
}

func TestAppendBinaryDeterministic(t *testing.T) {
	values := []Value{Float64(3.25), String("hello"), Bool(true), Int(-7)}
	for _, v := range values {
		first := v.AppendBinary(nil)
		second := v.AppendBinary(nil)
		if string(first) != string(second) {
			t.Errorf("AppendBinary not deterministic for %#v", v)
		}
	}
}

func TestCloneIndependence(t *testing.T) {
	v := String("abc")
	cloned := v.Clone()
	if !v.Equal(cloned) {
		t.Errorf("clone should be equal to original")
	}
}
