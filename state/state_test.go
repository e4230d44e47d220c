package state

import (
	"errors"
	"testing"

	"github.com/corejit/pyjit/pybc"
	"github.com/corejit/pyjit/pysource"
	"github.com/corejit/pyjit/pyvalue"
)

func TestNewStateAllLocalsUndefined(t *testing.T) {
	s := New(3)
	for i := 0; i < 3; i++ {
		li := s.Locals.At(i)
		if li.VWS.Value.Kind() != pyvalue.KindUndefined || !li.MaybeUndefined {
			t.Fatalf("local %d = %+v, want definitely-undefined", i, li)
		}
	}
}

func TestPushPopRoundTrip(t *testing.T) {
	s := New(0)
	arena := pysource.NewArena()
	src := arena.New(pysource.ProducerConst, int(pyvalue.KindInteger))
	s.Push(ValueWithSource{Value: pyvalue.Integer, Source: src})

	top := s.Pop()
	if top.Value != pyvalue.Integer || top.Source != src {
		t.Fatalf("Pop() = %+v, want the pushed value", top)
	}
	if len(s.Stack) != 0 {
		t.Fatalf("stack should be empty after pop, len=%d", len(s.Stack))
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := New(1)
	c := s.Clone()
	c.Push(ValueWithSource{Value: pyvalue.Integer, Source: pysource.None})

	if len(s.Stack) != 0 {
		t.Fatalf("mutating clone's stack must not affect original")
	}
	c.Locals = c.Locals.Set(0, LocalInfo{VWS: ValueWithSource{Value: pyvalue.Str, Source: pysource.None}})
	if s.Locals.At(0).VWS.Value != pyvalue.Undefined {
		t.Fatalf("mutating clone's locals must not affect original")
	}
}

func TestMergeRejectsUnequalStackDepth(t *testing.T) {
	arena := pysource.NewArena()
	a := New(0)
	a.Push(ValueWithSource{Value: pyvalue.Integer, Source: pysource.None})
	b := New(0)

	_, err := Merge(a, b, arena)
	if !errors.Is(err, pybc.ErrMalformedBytecode) {
		t.Fatalf("Merge with unequal stack depth should report ErrMalformedBytecode, got %v", err)
	}
}

func TestMergeIsCommutativeAndIdempotent(t *testing.T) {
	arena := pysource.NewArena()
	a := New(1)
	a.Locals = a.Locals.Set(0, LocalInfo{VWS: ValueWithSource{Value: pyvalue.Integer, Source: pysource.None}})
	b := New(1)
	b.Locals = b.Locals.Set(0, LocalInfo{VWS: ValueWithSource{Value: pyvalue.Float, Source: pysource.None}})

	ab, err := Merge(a, b, arena)
	if err != nil {
		t.Fatalf("Merge error = %v", err)
	}
	ba, err := Merge(b, a, arena)
	if err != nil {
		t.Fatalf("Merge error = %v", err)
	}
	if !Equal(ab, ba) {
		t.Fatalf("Merge(a,b) != Merge(b,a)")
	}

	aa, err := Merge(a, a, arena)
	if err != nil {
		t.Fatalf("Merge error = %v", err)
	}
	if !Equal(aa, a) {
		t.Fatalf("Merge(a,a) != a")
	}
}

func TestNewLocalInfoRejectsUndefinedDefinitelyAssigned(t *testing.T) {
	_, err := NewLocalInfo(ValueWithSource{Value: pyvalue.Undefined, Source: pysource.None}, false)
	if err == nil {
		t.Fatalf("expected error constructing a definitely-assigned Undefined local")
	}
}
